package scape

import (
	"context"
	"fmt"
	"math"
)

// SineScape scores a one-input, one-output agent on y = 1 + sin(pi/4 * p)
// sampled over p in [-2, 2].
type SineScape struct{}

func (SineScape) Name() string {
	return "sine"
}

var sineInputs = []float64{-2, -1.5, -1, -0.5, 0, 0.5, 1, 1.5, 2}

func sineTarget(p float64) float64 {
	return 1 + math.Sin(math.Pi/4*p)
}

func (SineScape) Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error) {
	runner, err := stepAgent(agent)
	if err != nil {
		return 0, nil, err
	}
	predictions := make([]float64, 0, len(sineInputs))
	var squaredErr float64
	for _, p := range sineInputs {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		out, err := runner.RunStep(ctx, []float64{p})
		if err != nil {
			return 0, nil, err
		}
		if len(out) != 1 {
			return 0, nil, fmt.Errorf("sine requires one output, got %d", len(out))
		}
		predictions = append(predictions, out[0])
		delta := out[0] - sineTarget(p)
		squaredErr += delta * delta
	}
	mse := squaredErr / float64(len(sineInputs))
	return Fitness(1.0 - mse), Trace{"mse": mse, "predictions": predictions}, nil
}

func (SineScape) TrainingSet() (inputs, targets [][]float64) {
	for _, p := range sineInputs {
		inputs = append(inputs, []float64{p})
		targets = append(targets, []float64{sineTarget(p)})
	}
	return inputs, targets
}
