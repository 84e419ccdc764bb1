package storage

import (
	"errors"
	"testing"
	"time"

	"asteroidnet/internal/model"
)

func TestRunCodecChecksVersion(t *testing.T) {
	run := Stamp(model.RunRecord{
		ID:         "run-1",
		Kind:       model.RunKindFit,
		Scape:      "sine",
		Passes:     12,
		Converged:  true,
		StartedAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 2, 3, 5, 5, 0, time.UTC),
	})
	data, err := EncodeRun(run)
	if err != nil {
		t.Fatalf("encode run: %v", err)
	}
	decoded, err := DecodeRun(data)
	if err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if decoded.ID != run.ID || decoded.Passes != 12 || !decoded.Converged || !decoded.StartedAt.Equal(run.StartedAt) {
		t.Fatalf("unexpected decoded run: %+v", decoded)
	}

	stale := run
	stale.SchemaVersion = CurrentSchemaVersion + 1
	data, err = EncodeRun(stale)
	if err != nil {
		t.Fatalf("encode stale run: %v", err)
	}
	if _, err := DecodeRun(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got: %v", err)
	}
}

func TestHistoryCodecsRejectUnversionedPayloads(t *testing.T) {
	if _, err := DecodeGenerations([]byte(`{"generations":[{"generation":1}]}`)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch for generations, got: %v", err)
	}
	if _, err := DecodeFitHistory([]byte(`{"passes":[]}`)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch for fit history, got: %v", err)
	}
	if _, err := DecodeRun([]byte(`not json`)); err == nil {
		t.Fatal("expected json error")
	}
}

func TestHistoryCodecsRoundTrip(t *testing.T) {
	data, err := EncodeGenerations([]model.GenerationRecord{{Generation: 4, BestFitness: 1.5, BestIndex: 2}})
	if err != nil {
		t.Fatalf("encode generations: %v", err)
	}
	generations, err := DecodeGenerations(data)
	if err != nil {
		t.Fatalf("decode generations: %v", err)
	}
	if len(generations) != 1 || generations[0].Generation != 4 || generations[0].BestIndex != 2 {
		t.Fatalf("unexpected generations: %+v", generations)
	}

	data, err = EncodeFitHistory([]model.FitPass{{Pass: 3, RSquared: []float64{0.25, 0.5}}})
	if err != nil {
		t.Fatalf("encode fit history: %v", err)
	}
	passes, err := DecodeFitHistory(data)
	if err != nil {
		t.Fatalf("decode fit history: %v", err)
	}
	if len(passes) != 1 || passes[0].Pass != 3 || len(passes[0].RSquared) != 2 {
		t.Fatalf("unexpected fit history: %+v", passes)
	}
}
