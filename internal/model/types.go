package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunKind distinguishes evolutionary runs from gradient fits.
type RunKind string

const (
	RunKindEvolve RunKind = "evolve"
	RunKindFit    RunKind = "fit"
)

type RunRecord struct {
	VersionedRecord
	ID             string    `json:"id"`
	Kind           RunKind   `json:"kind"`
	Scape          string    `json:"scape"`
	Seed           int64     `json:"seed"`
	PopulationSize int       `json:"population_size,omitempty"`
	Generations    int       `json:"generations,omitempty"`
	Passes         int       `json:"passes,omitempty"`
	BestFitness    float64   `json:"best_fitness"`
	Converged      bool      `json:"converged,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

type GenerationRecord struct {
	Generation  int     `json:"generation"`
	BestFitness float64 `json:"best_fitness"`
	MeanFitness float64 `json:"mean_fitness"`
	MinFitness  float64 `json:"min_fitness"`
	BestIndex   int     `json:"best_index"`
}

// FitPass is one batch training pass with the R² of every output dimension.
type FitPass struct {
	Pass     int       `json:"pass"`
	RSquared []float64 `json:"r_squared"`
}
