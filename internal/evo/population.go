package evo

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"asteroidnet/internal/model"
	"asteroidnet/internal/nn"
)

// Factory builds one fresh candidate network, drawing its weights from rng.
type Factory func(rng *rand.Rand) (*nn.Network, error)

type MutationConfig struct {
	Lower float64
	Upper float64
	Stdev float64
}

func (m MutationConfig) validate() error {
	if !(m.Stdev > 0) || math.IsInf(m.Stdev, 0) {
		return fmt.Errorf("mutation stdev must be > 0")
	}
	if !(m.Lower < m.Upper) {
		return fmt.Errorf("mutation lower limit must be below upper limit")
	}
	return nil
}

type PopulationConfig struct {
	Size     int
	Seed     int64
	Mutation MutationConfig
}

type GenerationSummary struct {
	Generation  int     `json:"generation"`
	BestFitness float64 `json:"best_fitness"`
	MeanFitness float64 `json:"mean_fitness"`
	MinFitness  float64 `json:"min_fitness"`
	BestIndex   int     `json:"best_index"`
}

func (s GenerationSummary) Record() model.GenerationRecord {
	return model.GenerationRecord(s)
}

var ErrCandidateShape = errors.New("candidate shape differs from population")

// Population is a fixed-size set of candidate networks evaluated one at a
// time. Once every candidate has been scored the population reproduces:
// the better half is cloned over the worse half and each clone is mutated.
type Population struct {
	cfg        PopulationConfig
	rng        *rand.Rand
	candidates []*nn.Network
	scores     []float64
	index      int
	generation int
	history    []GenerationSummary
}

func NewPopulation(cfg PopulationConfig, factory Factory) (*Population, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("population size must be > 0")
	}
	if factory == nil {
		return nil, fmt.Errorf("network factory is required")
	}
	if err := cfg.Mutation.validate(); err != nil {
		return nil, err
	}

	p := &Population{
		cfg:        cfg,
		rng:        rand.New(rand.NewSource(cfg.Seed)),
		candidates: make([]*nn.Network, cfg.Size),
		scores:     make([]float64, cfg.Size),
		generation: 1,
	}
	for i := range p.candidates {
		net, err := factory(p.rng)
		if err != nil {
			return nil, fmt.Errorf("build candidate %d: %w", i, err)
		}
		if net == nil {
			return nil, fmt.Errorf("build candidate %d: factory returned nil network", i)
		}
		if i > 0 {
			if err := sameShape(p.candidates[0], net); err != nil {
				return nil, fmt.Errorf("candidate %d: %w", i, err)
			}
		}
		p.candidates[i] = net
	}
	return p, nil
}

func sameShape(want, got *nn.Network) error {
	if want.InputSize() != got.InputSize() || want.OutputSize() != got.OutputSize() {
		return fmt.Errorf("%w: got=%dx%d want=%dx%d", ErrCandidateShape,
			got.InputSize(), got.OutputSize(), want.InputSize(), want.OutputSize())
	}
	return nil
}

func (p *Population) Size() int { return len(p.candidates) }

// Generation starts at 1 and increments after each reproduction.
func (p *Population) Generation() int { return p.generation }

func (p *Population) CurrentIndex() int { return p.index }

func (p *Population) CurrentCandidate() *nn.Network { return p.candidates[p.index] }

// SetCurrentCandidate replaces the network at the current index. The
// replacement must have the same input and output sizes.
func (p *Population) SetCurrentCandidate(net *nn.Network) error {
	if net == nil {
		return fmt.Errorf("candidate network is required")
	}
	if err := sameShape(p.candidates[p.index], net); err != nil {
		return err
	}
	p.candidates[p.index] = net
	return nil
}

func (p *Population) Candidate(i int) (*nn.Network, error) {
	if i < 0 || i >= len(p.candidates) {
		return nil, fmt.Errorf("candidate index out of range: %d", i)
	}
	return p.candidates[i], nil
}

// SetScore records the fitness of the current candidate.
func (p *Population) SetScore(score float64) {
	p.scores[p.index] = score
}

func (p *Population) Scores() []float64 {
	return append([]float64(nil), p.scores...)
}

// History returns one summary per completed generation.
func (p *Population) History() []GenerationSummary {
	return append([]GenerationSummary(nil), p.history...)
}

// AdvanceToNextCandidate moves to the next candidate, reproducing the
// population after the last one. On error the cursor stays on the last
// candidate and the population is unchanged.
func (p *Population) AdvanceToNextCandidate() error {
	if p.index+1 < len(p.candidates) {
		p.index++
		return nil
	}
	summary := summarize(p.scores, p.generation)
	next, err := p.reproduce()
	if err != nil {
		return err
	}
	p.candidates = next
	for i := range p.scores {
		p.scores[i] = 0
	}
	p.history = append(p.history, summary)
	p.generation++
	p.index = 0
	return nil
}

func summarize(scores []float64, generation int) GenerationSummary {
	s := GenerationSummary{Generation: generation, BestFitness: scores[0], MinFitness: scores[0]}
	total := 0.0
	for i, score := range scores {
		total += score
		if scoreLess(s.BestFitness, score) {
			s.BestFitness = score
			s.BestIndex = i
		}
		if scoreLess(score, s.MinFitness) {
			s.MinFitness = score
		}
	}
	s.MeanFitness = total / float64(len(scores))
	return s
}

// scoreLess orders NaN below every number.
func scoreLess(a, b float64) bool {
	if math.IsNaN(a) {
		return !math.IsNaN(b)
	}
	return a < b
}

func (p *Population) reproduce() ([]*nn.Network, error) {
	n := len(p.candidates)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return scoreLess(p.scores[order[i]], p.scores[order[j]])
	})

	ranked := make([]*nn.Network, n)
	for i, idx := range order {
		ranked[i] = p.candidates[idx]
	}
	m := p.cfg.Mutation
	for i := 0; i < n/2; i++ {
		clone, err := ranked[n-1-i].Copy()
		if err != nil {
			return nil, fmt.Errorf("clone candidate: %w", err)
		}
		if err := clone.Mutate(p.rng, m.Lower, m.Upper, m.Stdev); err != nil {
			return nil, fmt.Errorf("mutate clone: %w", err)
		}
		ranked[i] = clone
	}
	return ranked, nil
}
