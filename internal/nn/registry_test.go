package nn

import (
	"errors"
	"math"
	"testing"
)

func TestRegisterAndGetTransfer(t *testing.T) {
	resetTransferRegistryForTests()
	t.Cleanup(resetTransferRegistryForTests)

	if err := RegisterTransfer(Transfer{Name: "quad", Func: func(x float64) float64 { return x * x }}); err != nil {
		t.Fatalf("register transfer: %v", err)
	}
	tf, err := GetTransfer("quad")
	if err != nil {
		t.Fatalf("get transfer: %v", err)
	}
	if got := tf.Func(3); got != 9 {
		t.Fatalf("unexpected transfer result: got=%f want=9", got)
	}
}

func TestRegisterTransferValidation(t *testing.T) {
	resetTransferRegistryForTests()
	t.Cleanup(resetTransferRegistryForTests)

	if err := RegisterTransfer(Transfer{Func: func(x float64) float64 { return x }}); err == nil {
		t.Fatal("expected empty name error")
	}
	if err := RegisterTransfer(Transfer{Name: "nil"}); err == nil {
		t.Fatal("expected nil function error")
	}
	if err := RegisterTransfer(Transfer{Name: "logsig", Func: math.Sin}); !errors.Is(err, ErrTransferExists) {
		t.Fatalf("expected ErrTransferExists, got: %v", err)
	}
}

func TestGetTransferNotFound(t *testing.T) {
	if _, err := GetTransfer("missing"); !errors.Is(err, ErrTransferNotFound) {
		t.Fatalf("expected ErrTransferNotFound, got: %v", err)
	}
}

func TestListTransfersSorted(t *testing.T) {
	names := ListTransfers()
	if len(names) < 9 {
		t.Fatalf("expected built-in transfers, got: %+v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("transfer list not sorted: %+v", names)
		}
	}
}

func TestBuiltinTransfers(t *testing.T) {
	tests := []struct {
		name  string
		x     float64
		want  float64
		delta float64
	}{
		{name: "logsig", x: -1.8, want: 1 / (1 + math.Exp(1.8)), delta: 1e-12},
		{name: "purelin", x: 2.5, want: 2.5, delta: 1e-12},
		{name: "tanh", x: 0, want: 0, delta: 1e-12},
		{name: "relu", x: -1, want: 0, delta: 1e-12},
		{name: "hardlim", x: 0, want: 1, delta: 1e-12},
		{name: "hardlim", x: -0.01, want: 0, delta: 1e-12},
		{name: "gaussian", x: 0, want: 1, delta: 1e-12},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tf, err := GetTransfer(tc.name)
			if err != nil {
				t.Fatalf("get transfer: %v", err)
			}
			if got := tf.Func(tc.x); math.Abs(got-tc.want) > tc.delta {
				t.Fatalf("unexpected value: got=%f want=%f", got, tc.want)
			}
		})
	}
}
