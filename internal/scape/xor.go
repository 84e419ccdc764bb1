package scape

import (
	"context"
	"fmt"
)

type XORScape struct{}

func (XORScape) Name() string {
	return "xor"
}

type xorCase struct {
	in   []float64
	want float64
}

var xorCases = []xorCase{
	{in: []float64{0, 0}, want: 0},
	{in: []float64{0, 1}, want: 1},
	{in: []float64{1, 0}, want: 1},
	{in: []float64{1, 1}, want: 0},
}

func (XORScape) Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error) {
	runner, err := stepAgent(agent)
	if err != nil {
		return 0, nil, err
	}
	var sse float64
	predictions := make([]float64, 0, len(xorCases))
	for _, c := range xorCases {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		out, err := runner.RunStep(ctx, c.in)
		if err != nil {
			return 0, nil, err
		}
		if len(out) != 1 {
			return 0, nil, fmt.Errorf("xor requires one output, got %d", len(out))
		}
		predictions = append(predictions, out[0])
		delta := out[0] - c.want
		sse += delta * delta
	}
	// Reciprocal SSE; the epsilon bounds a perfect score.
	fitness := Fitness(1.0 / (sse + 0.000001))
	return fitness, Trace{
		"sse":         sse,
		"mse":         sse / float64(len(xorCases)),
		"predictions": predictions,
	}, nil
}

// TrainingSet exposes the truth table for gradient training.
func (XORScape) TrainingSet() (inputs, targets [][]float64) {
	for _, c := range xorCases {
		inputs = append(inputs, append([]float64(nil), c.in...))
		targets = append(targets, []float64{c.want})
	}
	return inputs, targets
}
