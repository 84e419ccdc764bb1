package evo

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"asteroidnet/internal/nn"
	"asteroidnet/internal/tensor"
)

var testMutation = MutationConfig{Lower: -5, Upper: 5, Stdev: 0.5}

func denseFactory(inputs int) Factory {
	return func(rng *rand.Rand) (*nn.Network, error) {
		layer, err := nn.LayerOfNeurons(inputs, 1, true, "logsig", nn.WeightInit{Rand: rng, Stdev: 1})
		if err != nil {
			return nil, err
		}
		return nn.NewNetwork(layer, nn.Options{Workers: 1})
	}
}

func newTestPopulation(t *testing.T, size int) *Population {
	t.Helper()
	pop, err := NewPopulation(PopulationConfig{Size: size, Seed: 11, Mutation: testMutation}, denseFactory(2))
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	return pop
}

func snapshot(t *testing.T, pop *Population) []*nn.Network {
	t.Helper()
	out := make([]*nn.Network, pop.Size())
	for i := range out {
		net, err := pop.Candidate(i)
		if err != nil {
			t.Fatalf("candidate %d: %v", i, err)
		}
		out[i] = net
	}
	return out
}

func weightsOf(net *nn.Network) []*tensor.Array {
	nodes := net.Layer().Weights()
	out := make([]*tensor.Array, len(nodes))
	for i, node := range nodes {
		out[i] = node.Weights()
	}
	return out
}

func sameWeights(a, b *nn.Network) bool {
	wa, wb := weightsOf(a), weightsOf(b)
	if len(wa) != len(wb) {
		return false
	}
	for i := range wa {
		if !tensor.Equal(wa[i], wb[i]) {
			return false
		}
	}
	return true
}

func scoreAll(t *testing.T, pop *Population, scores []float64) {
	t.Helper()
	for _, score := range scores {
		pop.SetScore(score)
		if err := pop.AdvanceToNextCandidate(); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
}

func TestGenerationAdvanceClonesBestOverWorst(t *testing.T) {
	const size = 6
	pop := newTestPopulation(t, size)
	before := snapshot(t, pop)

	for i := 0; i < size; i++ {
		if pop.Generation() != 1 || pop.CurrentIndex() != i {
			t.Fatalf("unexpected cursor before advance %d: gen=%d idx=%d", i, pop.Generation(), pop.CurrentIndex())
		}
		if pop.CurrentCandidate() != before[i] {
			t.Fatalf("current candidate %d is not the original", i)
		}
		pop.SetScore(float64(i))
		if err := pop.AdvanceToNextCandidate(); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}

	if pop.Generation() != 2 || pop.CurrentIndex() != 0 {
		t.Fatalf("unexpected cursor after generation: gen=%d idx=%d", pop.Generation(), pop.CurrentIndex())
	}
	for i, score := range pop.Scores() {
		if score != 0 {
			t.Fatalf("score %d was not reset: %f", i, score)
		}
	}

	after := snapshot(t, pop)
	for i := 0; i < size/2; i++ {
		parent := before[size-1-i]
		clone := after[i]
		if clone == parent {
			t.Fatalf("candidate %d shares identity with its parent", i)
		}
		if clone.InputSize() != parent.InputSize() || clone.OutputSize() != parent.OutputSize() {
			t.Fatalf("candidate %d changed shape", i)
		}
		if len(weightsOf(clone)) != len(weightsOf(parent)) {
			t.Fatalf("candidate %d changed weight count", i)
		}
		if sameWeights(clone, parent) {
			t.Fatalf("candidate %d was not mutated", i)
		}
	}
	for i := size / 2; i < size; i++ {
		if after[i] != before[i] {
			t.Fatalf("survivor %d was replaced", i)
		}
	}

	history := pop.History()
	if len(history) != 1 {
		t.Fatalf("unexpected history length: %d", len(history))
	}
	want := GenerationSummary{Generation: 1, BestFitness: 5, MeanFitness: 2.5, MinFitness: 0, BestIndex: 5}
	if history[0] != want {
		t.Fatalf("unexpected summary: got=%+v want=%+v", history[0], want)
	}
}

func TestGenerationAdvanceSortsByScore(t *testing.T) {
	pop := newTestPopulation(t, 4)
	before := snapshot(t, pop)
	scoreAll(t, pop, []float64{3, 2, 1, 0})

	after := snapshot(t, pop)
	// Ascending rank is 3, 2, 1, 0; the two best keep the top slots.
	if after[3] != before[0] || after[2] != before[1] {
		t.Fatal("survivors are not ordered by ascending score")
	}
	if after[0] == before[0] || after[1] == before[1] {
		t.Fatal("worst slots still hold originals")
	}
	if got := pop.History()[0].BestIndex; got != 0 {
		t.Fatalf("best index should be recorded before reproduction: %d", got)
	}
}

func TestOddPopulationLeavesMiddleUntouched(t *testing.T) {
	pop := newTestPopulation(t, 3)
	before := snapshot(t, pop)
	scoreAll(t, pop, []float64{0, 1, 2})

	after := snapshot(t, pop)
	if after[1] != before[1] || after[2] != before[2] {
		t.Fatal("middle or best candidate was replaced")
	}
	if after[0] == before[0] || after[0] == before[2] {
		t.Fatal("worst candidate was not replaced by a clone")
	}
}

func TestSingleCandidatePopulation(t *testing.T) {
	pop := newTestPopulation(t, 1)
	only := pop.CurrentCandidate()
	scoreAll(t, pop, []float64{4})
	if pop.Generation() != 2 || pop.CurrentCandidate() != only {
		t.Fatalf("single candidate should survive untouched: gen=%d", pop.Generation())
	}
}

func TestNaNScoreRanksLowest(t *testing.T) {
	pop := newTestPopulation(t, 2)
	before := snapshot(t, pop)
	scoreAll(t, pop, []float64{1, math.NaN()})

	after := snapshot(t, pop)
	if after[1] != before[0] {
		t.Fatal("scored candidate should survive over NaN")
	}
	summary := pop.History()[0]
	if summary.BestFitness != 1 || summary.BestIndex != 0 || !math.IsNaN(summary.MinFitness) {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestSeededPopulationsMatch(t *testing.T) {
	a := newTestPopulation(t, 4)
	b := newTestPopulation(t, 4)
	scores := []float64{0.5, 0.1, 0.9, 0.3}
	scoreAll(t, a, scores)
	scoreAll(t, b, scores)
	ca, cb := snapshot(t, a), snapshot(t, b)
	for i := range ca {
		if !sameWeights(ca[i], cb[i]) {
			t.Fatalf("candidate %d differs between seeded runs", i)
		}
	}
}

func TestNewPopulationValidation(t *testing.T) {
	failing := func(*rand.Rand) (*nn.Network, error) { return nil, errors.New("boom") }
	cases := []struct {
		name    string
		cfg     PopulationConfig
		factory Factory
	}{
		{name: "size", cfg: PopulationConfig{Size: 0, Mutation: testMutation}, factory: denseFactory(2)},
		{name: "factory", cfg: PopulationConfig{Size: 2, Mutation: testMutation}},
		{name: "stdev", cfg: PopulationConfig{Size: 2, Mutation: MutationConfig{Lower: -1, Upper: 1}}, factory: denseFactory(2)},
		{name: "limits", cfg: PopulationConfig{Size: 2, Mutation: MutationConfig{Lower: 1, Upper: 1, Stdev: 1}}, factory: denseFactory(2)},
		{name: "factory error", cfg: PopulationConfig{Size: 2, Mutation: testMutation}, factory: failing},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewPopulation(tc.cfg, tc.factory); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNewPopulationRejectsMixedShapes(t *testing.T) {
	calls := 0
	factory := func(rng *rand.Rand) (*nn.Network, error) {
		calls++
		return denseFactory(calls)(rng)
	}
	_, err := NewPopulation(PopulationConfig{Size: 2, Mutation: testMutation}, factory)
	if !errors.Is(err, ErrCandidateShape) {
		t.Fatalf("expected ErrCandidateShape, got: %v", err)
	}
}

func TestSetCurrentCandidate(t *testing.T) {
	pop := newTestPopulation(t, 2)
	replacement, err := denseFactory(2)(rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if err := pop.SetCurrentCandidate(replacement); err != nil {
		t.Fatalf("set current candidate: %v", err)
	}
	if pop.CurrentCandidate() != replacement {
		t.Fatal("current candidate was not replaced")
	}

	wrong, err := denseFactory(3)(rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if err := pop.SetCurrentCandidate(wrong); !errors.Is(err, ErrCandidateShape) {
		t.Fatalf("expected ErrCandidateShape, got: %v", err)
	}
	if err := pop.SetCurrentCandidate(nil); err == nil {
		t.Fatal("expected nil candidate error")
	}
	if _, err := pop.Candidate(2); err == nil {
		t.Fatal("expected out of range error")
	}
}
