package tensor

import (
	"errors"
	"math/rand"
	"testing"
)

func TestMutateInPlaceRejectsBadArguments(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := []struct {
		name                string
		lower, upper, stdev float64
	}{
		{name: "zero stdev", lower: -1, upper: 1, stdev: 0},
		{name: "negative stdev", lower: -1, upper: 1, stdev: -0.5},
		{name: "equal limits", lower: 1, upper: 1, stdev: 0.1},
		{name: "inverted limits", lower: 2, upper: -2, stdev: 0.1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := Vector(0.1, 0.2)
			if err := MutateInPlace(rng, a, tc.lower, tc.upper, tc.stdev); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got: %v", err)
			}
			if !Equal(a, Vector(0.1, 0.2)) {
				t.Fatalf("array changed on rejected mutation: %v", a)
			}
		})
	}
}

func TestMutateInPlaceStaysWithinLimits(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := Matrix(4, 5, []float64{
		-3, -1, 0, 1, 3,
		0.5, 0.5, 0.5, 0.5, 0.5,
		-0.9, 0.9, -0.9, 0.9, 0,
		10, -10, 2, -2, 0.1,
	})
	for round := 0; round < 200; round++ {
		if err := MutateInPlace(rng, a, -1, 1, 0.8); err != nil {
			t.Fatalf("mutate: %v", err)
		}
		for _, v := range a.data {
			if v < -1 || v > 1 {
				t.Fatalf("round %d: value %f escaped limits", round, v)
			}
		}
	}
}

func TestMutateInPlaceIsSeeded(t *testing.T) {
	a := Vector(0, 0.25, -0.25)
	b := a.Clone()
	if err := MutateInPlace(rand.New(rand.NewSource(9)), a, -1, 1, 0.1); err != nil {
		t.Fatalf("mutate a: %v", err)
	}
	if err := MutateInPlace(rand.New(rand.NewSource(9)), b, -1, 1, 0.1); err != nil {
		t.Fatalf("mutate b: %v", err)
	}
	if !Equal(a, b) {
		t.Fatalf("same seed produced different mutations: %v vs %v", a, b)
	}
	if Equal(a, Vector(0, 0.25, -0.25)) {
		t.Fatal("mutation left every element unchanged")
	}
}

func TestReflect(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{in: 0.5, want: 0.5},
		{in: 1.25, want: 0.75},
		{in: -1.5, want: -0.5},
		{in: 5, want: -1},
	}
	for _, tc := range cases {
		if got := reflect(tc.in, -1, 1); got != tc.want {
			t.Fatalf("reflect(%g): got=%g want=%g", tc.in, got, tc.want)
		}
	}
}
