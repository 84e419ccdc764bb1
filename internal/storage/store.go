package storage

import (
	"context"

	"asteroidnet/internal/model"
)

// Store persists training run history. Networks themselves are not stored.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveGenerations(ctx context.Context, runID string, generations []model.GenerationRecord) error
	GetGenerations(ctx context.Context, runID string) ([]model.GenerationRecord, bool, error)
	SaveFitHistory(ctx context.Context, runID string, passes []model.FitPass) error
	GetFitHistory(ctx context.Context, runID string) ([]model.FitPass, bool, error)
}
