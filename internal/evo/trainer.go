package evo

import (
	"context"
	"fmt"
	"log/slog"

	"asteroidnet/internal/model"
	"asteroidnet/internal/nn"
	"asteroidnet/internal/scape"
	"asteroidnet/internal/storage"
)

type RunResult struct {
	BestByGeneration []float64
	Summaries        []GenerationSummary
	// Champion is a copy of the best candidate seen across all generations.
	Champion        *nn.Network
	ChampionFitness float64
}

type TrainerConfig struct {
	Scape       scape.Scape
	Generations int
	// RunID keys generation history in Store. Both are optional.
	RunID  string
	Store  storage.Store
	Logger *slog.Logger
}

// Trainer evaluates every candidate of a population against a scape,
// one at a time, for a fixed number of generations.
type Trainer struct {
	cfg TrainerConfig
	log *slog.Logger
}

func NewTrainer(cfg TrainerConfig) (*Trainer, error) {
	if cfg.Scape == nil {
		return nil, fmt.Errorf("scape is required")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.Store != nil && cfg.RunID == "" {
		return nil, fmt.Errorf("run id is required when a store is configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Trainer{cfg: cfg, log: logger.With("scape", cfg.Scape.Name())}, nil
}

func (t *Trainer) Run(ctx context.Context, pop *Population) (RunResult, error) {
	if pop == nil {
		return RunResult{}, fmt.Errorf("population is required")
	}

	result := RunResult{
		BestByGeneration: make([]float64, 0, t.cfg.Generations),
		Summaries:        make([]GenerationSummary, 0, t.cfg.Generations),
	}
	for gen := 0; gen < t.cfg.Generations; gen++ {
		generation := pop.Generation()
		for i := 0; i < pop.Size(); i++ {
			if err := ctx.Err(); err != nil {
				return RunResult{}, err
			}
			candidate := pop.CurrentCandidate()
			fitness, err := t.evaluate(ctx, candidate)
			if err != nil {
				return RunResult{}, fmt.Errorf("generation %d candidate %d: %w", generation, pop.CurrentIndex(), err)
			}
			t.log.Debug("candidate evaluated",
				"generation", generation,
				"candidate", pop.CurrentIndex(),
				"fitness", fitness,
			)
			if result.Champion == nil || scoreLess(result.ChampionFitness, fitness) {
				champion, err := candidate.Copy()
				if err != nil {
					return RunResult{}, fmt.Errorf("copy champion: %w", err)
				}
				result.Champion, result.ChampionFitness = champion, fitness
			}
			pop.SetScore(fitness)
			if err := pop.AdvanceToNextCandidate(); err != nil {
				return RunResult{}, fmt.Errorf("generation %d: %w", generation, err)
			}
		}

		history := pop.History()
		summary := history[len(history)-1]
		result.Summaries = append(result.Summaries, summary)
		result.BestByGeneration = append(result.BestByGeneration, summary.BestFitness)
		t.log.Info("generation complete",
			"generation", summary.Generation,
			"best", summary.BestFitness,
			"mean", summary.MeanFitness,
			"min", summary.MinFitness,
		)
		if err := t.persist(ctx, result.Summaries); err != nil {
			return RunResult{}, err
		}
	}
	return result, nil
}

func (t *Trainer) evaluate(ctx context.Context, candidate *nn.Network) (float64, error) {
	if err := candidate.Reset(); err != nil {
		return 0, err
	}
	fitness, _, err := t.cfg.Scape.Evaluate(ctx, candidate)
	if err != nil {
		return 0, err
	}
	return float64(fitness), nil
}

func (t *Trainer) persist(ctx context.Context, summaries []GenerationSummary) error {
	if t.cfg.Store == nil {
		return nil
	}
	records := make([]model.GenerationRecord, len(summaries))
	for i, s := range summaries {
		records[i] = s.Record()
	}
	if err := t.cfg.Store.SaveGenerations(ctx, t.cfg.RunID, records); err != nil {
		return fmt.Errorf("save generations: %w", err)
	}
	return nil
}
