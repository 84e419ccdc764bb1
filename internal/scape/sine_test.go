package scape

import (
	"context"
	"math"
	"testing"
)

func TestSineScapePerfectAgent(t *testing.T) {
	agent := &funcAgent{id: "exact", fn: func(in []float64) []float64 { return []float64{sineTarget(in[0])} }}
	fitness, trace, err := SineScape{}.Evaluate(context.Background(), agent)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if fitness != 1 || trace["mse"].(float64) != 0 {
		t.Fatalf("expected perfect fitness, got %f (trace=%+v)", fitness, trace)
	}
}

func TestSineScapeConstantAgent(t *testing.T) {
	agent := &funcAgent{id: "flat", fn: func([]float64) []float64 { return []float64{1} }}
	fitness, _, err := SineScape{}.Evaluate(context.Background(), agent)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	// The squared sines over the nine samples sum to five.
	if math.Abs(float64(fitness)-4.0/9.0) > 1e-12 {
		t.Fatalf("unexpected fitness: %f", fitness)
	}
}

func TestSineTrainingSetSpansRange(t *testing.T) {
	inputs, targets := SineScape{}.TrainingSet()
	if len(inputs) != 9 || inputs[0][0] != -2 || inputs[8][0] != 2 {
		t.Fatalf("unexpected inputs: %v", inputs)
	}
	if math.Abs(targets[0][0]) > 1e-12 || math.Abs(targets[8][0]-2) > 1e-12 || targets[4][0] != 1 {
		t.Fatalf("unexpected targets: %v", targets)
	}
}

func TestSineScapeHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	agent := &funcAgent{id: "exact", fn: func(in []float64) []float64 { return []float64{1} }}
	if _, _, err := (SineScape{}).Evaluate(ctx, agent); err == nil {
		t.Fatal("expected cancellation error")
	}
}
