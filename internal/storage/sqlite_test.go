//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"asteroidnet/internal/model"
)

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "asteroidnet.db"))
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestSQLiteStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	later := Stamp(model.RunRecord{ID: "r2", Kind: model.RunKindFit, StartedAt: base.Add(time.Hour)})
	earlier := Stamp(model.RunRecord{ID: "r1", Kind: model.RunKindEvolve, Scape: "xor", Generations: 5, StartedAt: base})
	for _, run := range []model.RunRecord{later, earlier} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	loaded, ok, err := store.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok || loaded.Scape != "xor" || loaded.Generations != 5 {
		t.Fatalf("unexpected run: ok=%t %+v", ok, loaded)
	}

	earlier.BestFitness = 7
	if err := store.SaveRun(ctx, earlier); err != nil {
		t.Fatalf("update run: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r1" || runs[0].BestFitness != 7 || runs[1].ID != "r2" {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}
}

func TestSQLiteStoreHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openSQLite(t)

	generations := []model.GenerationRecord{{Generation: 1, BestFitness: 0.5}, {Generation: 2, BestFitness: 0.75}}
	if err := store.SaveGenerations(ctx, "r1", generations); err != nil {
		t.Fatalf("save generations: %v", err)
	}
	loadedGenerations, ok, err := store.GetGenerations(ctx, "r1")
	if err != nil {
		t.Fatalf("get generations: %v", err)
	}
	if !ok || len(loadedGenerations) != 2 || loadedGenerations[1].BestFitness != 0.75 {
		t.Fatalf("unexpected generations: %+v", loadedGenerations)
	}

	passes := []model.FitPass{{Pass: 1, RSquared: []float64{0.2}}}
	if err := store.SaveFitHistory(ctx, "r2", passes); err != nil {
		t.Fatalf("save fit history: %v", err)
	}
	loadedPasses, ok, err := store.GetFitHistory(ctx, "r2")
	if err != nil {
		t.Fatalf("get fit history: %v", err)
	}
	if !ok || len(loadedPasses) != 1 || loadedPasses[0].RSquared[0] != 0.2 {
		t.Fatalf("unexpected fit history: %+v", loadedPasses)
	}

	if _, ok, err := store.GetFitHistory(ctx, "r1"); err != nil || ok {
		t.Fatalf("expected missing fit history, ok=%t err=%v", ok, err)
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "unused.db"))
	if _, err := store.ListRuns(context.Background()); err == nil {
		t.Fatal("expected uninitialized store error")
	}
}
