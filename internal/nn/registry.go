package nn

import (
	"math"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ScalarFunc maps one element of a pre-activation array.
type ScalarFunc func(x float64) float64

// Transfer is an element-wise nonlinearity. Deriv may be nil, in which case
// a central finite difference is used.
type Transfer struct {
	Name  string
	Func  ScalarFunc
	Deriv ScalarFunc
}

var transferRegistry = struct {
	mu sync.RWMutex
	m  map[string]Transfer
}{
	m: make(map[string]Transfer),
}

func init() {
	initializeBuiltInTransfers()
}

func initializeBuiltInTransfers() {
	logsig := Transfer{Name: "logsig", Func: logSigmoid, Deriv: func(x float64) float64 {
		e := math.Exp(-x)
		return e / ((1 + e) * (1 + e))
	}}
	purelin := Transfer{Name: "purelin", Func: func(x float64) float64 { return x }, Deriv: func(float64) float64 { return 1 }}

	MustRegisterTransfer(logsig)
	MustRegisterTransfer(purelin)
	MustRegisterTransfer(Transfer{Name: "sigmoid", Func: logsig.Func, Deriv: logsig.Deriv})
	MustRegisterTransfer(Transfer{Name: "identity", Func: purelin.Func, Deriv: purelin.Deriv})
	MustRegisterTransfer(Transfer{Name: "tanh", Func: math.Tanh, Deriv: func(x float64) float64 {
		y := math.Tanh(x)
		return 1 - y*y
	}})
	MustRegisterTransfer(Transfer{Name: "relu", Func: func(x float64) float64 {
		if x < 0 {
			return 0
		}
		return x
	}, Deriv: func(x float64) float64 {
		if x > 0 {
			return 1
		}
		return 0
	}})
	// hardlim has a zero derivative everywhere it is defined; it is meant for
	// evolved pilots whose outputs are read as command bits.
	MustRegisterTransfer(Transfer{Name: "hardlim", Func: func(x float64) float64 {
		if x >= 0 {
			return 1
		}
		return 0
	}, Deriv: func(float64) float64 { return 0 }})
	MustRegisterTransfer(Transfer{Name: "sin", Func: math.Sin, Deriv: math.Cos})
	MustRegisterTransfer(Transfer{Name: "gaussian", Func: func(x float64) float64 {
		return math.Exp(-(x * x))
	}, Deriv: func(x float64) float64 {
		return -2 * x * math.Exp(-(x * x))
	}})
}

func logSigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func RegisterTransfer(tf Transfer) error {
	if tf.Name == "" {
		return errors.New("transfer name is required")
	}
	if tf.Func == nil {
		return errors.New("transfer function is required")
	}

	transferRegistry.mu.Lock()
	defer transferRegistry.mu.Unlock()

	if _, exists := transferRegistry.m[tf.Name]; exists {
		return errors.Wrap(ErrTransferExists, tf.Name)
	}
	transferRegistry.m[tf.Name] = tf
	return nil
}

func MustRegisterTransfer(tf Transfer) {
	if err := RegisterTransfer(tf); err != nil {
		panic(err)
	}
}

func GetTransfer(name string) (Transfer, error) {
	transferRegistry.mu.RLock()
	tf, ok := transferRegistry.m[name]
	transferRegistry.mu.RUnlock()
	if !ok {
		return Transfer{}, errors.Wrap(ErrTransferNotFound, name)
	}
	return tf, nil
}

func ListTransfers() []string {
	transferRegistry.mu.RLock()
	defer transferRegistry.mu.RUnlock()

	names := make([]string, 0, len(transferRegistry.m))
	for name := range transferRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetTransferRegistryForTests() {
	transferRegistry.mu.Lock()
	transferRegistry.m = make(map[string]Transfer)
	transferRegistry.mu.Unlock()
	initializeBuiltInTransfers()
}
