package pilot

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"asteroidnet/internal/nn"
)

func sampleObservation() Observation {
	return Observation{
		Eyes:              []float64{1, 0.25, 0, 0.5},
		VelocityX:         2,
		VelocityY:         -4,
		MaxVelocity:       8,
		PositionX:         150,
		PositionY:         50,
		Field:             Bounds{MinX: 100, MinY: 0, MaxX: 300, MaxY: 200},
		MissilesRemaining: 3,
		MissilesTotal:     4,
	}
}

func TestEncode(t *testing.T) {
	in, err := Encode(sampleObservation(), 4)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []float64{0, 0.75, 1, 0.5, 0.25, -0.5, -0.5, -0.5, 0.25}
	if len(in) != InputSize(4) || len(in) != len(want) {
		t.Fatalf("unexpected input length: %d", len(in))
	}
	for i := range want {
		if math.Abs(in[i]-want[i]) > 1e-12 {
			t.Fatalf("input %d: got=%f want=%f", i, in[i], want[i])
		}
	}
}

func TestEncodeValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Observation)
		eyes   int
	}{
		{name: "eye count", mutate: func(*Observation) {}, eyes: 8},
		{name: "max velocity", mutate: func(o *Observation) { o.MaxVelocity = 0 }, eyes: 4},
		{name: "empty field", mutate: func(o *Observation) { o.Field.MaxX = o.Field.MinX }, eyes: 4},
		{name: "missile capacity", mutate: func(o *Observation) { o.MissilesTotal = 0 }, eyes: 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obs := sampleObservation()
			tc.mutate(&obs)
			if _, err := Encode(obs, tc.eyes); !errors.Is(err, ErrObservation) {
				t.Fatalf("expected ErrObservation, got: %v", err)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		name string
		out  []float64
		want Commands
	}{
		{name: "all off", out: []float64{0, 0, 0, 0}, want: Commands{}},
		{name: "thrust and shoot", out: []float64{1, 0, 0, 1}, want: Commands{Thrust: true, Shoot: true}},
		{name: "left", out: []float64{0, 1, 0, 0}, want: Commands{Left: true}},
		{name: "right", out: []float64{0, 0, 1, 0}, want: Commands{Right: true}},
		{name: "both turns cancel", out: []float64{1, 1, 1, 0}, want: Commands{Thrust: true}},
		{name: "near one is off", out: []float64{0.999, 1.0001, 0, 0}, want: Commands{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.out)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected commands: got=%+v want=%+v", got, tc.want)
			}
		})
	}
	if _, err := Decode([]float64{1, 0, 0}); !errors.Is(err, ErrOutput) {
		t.Fatalf("expected ErrOutput, got: %v", err)
	}
}

func TestNewNetworkProducesCommandBits(t *testing.T) {
	net, err := NewNetwork(NetworkConfig{
		NumEyes: DefaultEyes,
		Hidden:  []int{6},
		Bias:    true,
		Init:    nn.WeightInit{Rand: rand.New(rand.NewSource(8)), Stdev: 1},
	})
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	if net.InputSize() != InputSize(DefaultEyes) || net.OutputSize() != OutputSize {
		t.Fatalf("unexpected sizes: in=%d out=%d", net.InputSize(), net.OutputSize())
	}
	obs := sampleObservation()
	obs.Eyes = make([]float64, DefaultEyes)
	in, err := Encode(obs, DefaultEyes)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := net.Calculate(context.Background(), in)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	for i, v := range out {
		if v != 0 && v != 1 {
			t.Fatalf("output %d is not a command bit: %f", i, v)
		}
	}
	if _, err := Decode(out); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestFactoryUsesPopulationRandom(t *testing.T) {
	factory := Factory(NetworkConfig{NumEyes: 2, Hidden: []int{3}, Init: nn.WeightInit{Stdev: 1}})
	a, err := factory(rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("factory a: %v", err)
	}
	b, err := factory(rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("factory b: %v", err)
	}
	wa, wb := a.Layer().Weights(), b.Layer().Weights()
	if len(wa) != len(wb) {
		t.Fatalf("weight counts differ: %d vs %d", len(wa), len(wb))
	}
	for i := range wa {
		da, db := wa[i].Weights().Data(), wb[i].Weights().Data()
		for j := range da {
			if da[j] != db[j] {
				t.Fatalf("same seed gave different weights at node %d", i)
			}
		}
	}
}
