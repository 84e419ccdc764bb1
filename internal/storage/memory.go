package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"asteroidnet/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	generations map[string][]model.GenerationRecord
	fitHistory  map[string][]model.FitPass
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.generations = make(map[string][]model.GenerationRecord)
	s.fitHistory = make(map[string][]model.FitPass)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

// ListRuns returns runs ordered by start time, oldest first.
func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) SaveGenerations(_ context.Context, runID string, generations []model.GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.generations[runID] = append([]model.GenerationRecord(nil), generations...)
	return nil
}

func (s *MemoryStore) GetGenerations(_ context.Context, runID string) ([]model.GenerationRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	generations, ok := s.generations[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.GenerationRecord(nil), generations...), true, nil
}

func (s *MemoryStore) SaveFitHistory(_ context.Context, runID string, passes []model.FitPass) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.fitHistory[runID] = copyPasses(passes)
	return nil
}

func (s *MemoryStore) GetFitHistory(_ context.Context, runID string) ([]model.FitPass, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	passes, ok := s.fitHistory[runID]
	if !ok {
		return nil, false, nil
	}
	return copyPasses(passes), true, nil
}

func copyPasses(passes []model.FitPass) []model.FitPass {
	copied := make([]model.FitPass, len(passes))
	for i, p := range passes {
		copied[i] = model.FitPass{Pass: p.Pass, RSquared: append([]float64(nil), p.RSquared...)}
	}
	return copied
}

func sortRuns(runs []model.RunRecord) {
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
}
