package nn

import (
	"context"
	"math/rand"
	"runtime"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"asteroidnet/internal/tensor"
)

const DefaultMaxPasses = 1_000_000

// Options tunes how a network executes.
type Options struct {
	// Workers bounds the goroutines used within one schedule level. Zero
	// means GOMAXPROCS; one runs every pass on the calling goroutine.
	Workers int
	// MaxPasses caps BatchTrain. Zero means DefaultMaxPasses.
	MaxPasses int
}

func (o Options) normalized() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.MaxPasses <= 0 {
		o.MaxPasses = DefaultMaxPasses
	}
	return o
}

// Stats counts the passes a network has run.
type Stats struct {
	Forward  int64
	Backward int64
	Learn    int64
}

type phase uint8

const (
	phaseIdle phase = iota
	phaseComputed
	phaseSensitivities
)

// Network wraps a compiled layer. Its methods are not meant for concurrent
// use; overlapping calls fail with ErrBusy instead of corrupting state.
type Network struct {
	id    uuid.UUID
	root  *Layer
	plan  *plan
	opts  Options
	phase phase

	busy     atomic.Bool
	forward  atomic.Int64
	backward atomic.Int64
	learned  atomic.Int64

	observer func(BatchProgress)
}

// NewNetwork compiles root into an evaluation schedule. Arity, cycle and
// shape errors are reported here rather than on the first pass.
func NewNetwork(root *Layer, opts Options) (*Network, error) {
	if root == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "network: nil layer")
	}
	p, err := compile(root)
	if err != nil {
		return nil, errors.Wrap(err, "compile network")
	}
	root.freeze()
	return &Network{
		id:   uuid.New(),
		root: root,
		plan: p,
		opts: opts.normalized(),
	}, nil
}

// ID identifies the network instance. Copies get a new ID.
func (n *Network) ID() string { return n.id.String() }

func (n *Network) Layer() *Layer { return n.root }

func (n *Network) InputSize() int { return n.plan.nodes[n.plan.input].rows }

func (n *Network) OutputSize() int {
	size := 1
	for _, d := range n.plan.shapes[n.plan.output] {
		size *= d
	}
	return size
}

func (n *Network) Stats() Stats {
	return Stats{Forward: n.forward.Load(), Backward: n.backward.Load(), Learn: n.learned.Load()}
}

func (n *Network) acquire() error {
	if !n.busy.CompareAndSwap(false, true) {
		return errors.WithStack(ErrBusy)
	}
	return nil
}

func (n *Network) release() { n.busy.Store(false) }

// Calculate loads input into the input vector, runs a forward pass and
// returns the output flattened row-major.
func (n *Network) Calculate(ctx context.Context, input []float64) ([]float64, error) {
	if err := n.acquire(); err != nil {
		return nil, err
	}
	defer n.release()
	out, err := n.calculate(ctx, input)
	if err != nil {
		return nil, err
	}
	return out.Data(), nil
}

// RunStep is Calculate under the name step-driven agents use.
func (n *Network) RunStep(ctx context.Context, input []float64) ([]float64, error) {
	return n.Calculate(ctx, input)
}

func (n *Network) calculate(ctx context.Context, input []float64) (*tensor.Array, error) {
	if len(input) != n.InputSize() {
		return nil, errors.Wrapf(ErrDimensionMismatch, "input has %d values, network expects %d", len(input), n.InputSize())
	}
	if err := n.plan.nodes[n.plan.input].SetValue(input); err != nil {
		return nil, err
	}
	n.phase = phaseIdle
	if err := n.plan.forward(ctx, n.opts.Workers); err != nil {
		return nil, err
	}
	n.phase = phaseComputed
	n.forward.Inc()
	return n.outputValue(), nil
}

func (n *Network) outputValue() *tensor.Array {
	out := n.plan.nodes[n.plan.output]
	if out.kind == KindWeight {
		return out.weights
	}
	return out.value
}

// UpdateSensitivities propagates the derivative of the error with respect
// to the output back through the graph. It requires a prior Calculate.
func (n *Network) UpdateSensitivities(ctx context.Context, sensitivity []float64, mode TrainingMode) error {
	if err := n.acquire(); err != nil {
		return err
	}
	defer n.release()
	return n.updateSensitivities(ctx, sensitivity, mode)
}

func (n *Network) updateSensitivities(ctx context.Context, sensitivity []float64, mode TrainingMode) error {
	if n.phase == phaseIdle {
		return errors.Wrap(ErrInvalidOperation, "update sensitivities before calculate")
	}
	out := n.outputValue()
	if len(sensitivity) != out.Len() {
		return errors.Wrapf(ErrDimensionMismatch, "sensitivity has %d values, output has %d", len(sensitivity), out.Len())
	}
	external := tensor.CreateMatchingShape(out)
	for i, v := range sensitivity {
		external.Set(v, i/out.Cols(), i%out.Cols())
	}
	if err := n.plan.backward(ctx, external, mode, n.opts.Workers); err != nil {
		return err
	}
	n.phase = phaseSensitivities
	n.backward.Inc()
	return nil
}

// Learn moves every weight against its stored sensitivity and clears the
// sensitivities. It requires a prior UpdateSensitivities.
func (n *Network) Learn(ctx context.Context, rate float64) error {
	if err := n.acquire(); err != nil {
		return err
	}
	defer n.release()
	return n.learn(ctx, rate)
}

func (n *Network) learn(ctx context.Context, rate float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.phase != phaseSensitivities {
		return errors.Wrap(ErrInvalidOperation, "learn before update sensitivities")
	}
	if err := n.plan.learn(rate); err != nil {
		return err
	}
	n.phase = phaseIdle
	n.learned.Inc()
	return nil
}

// Reset returns every node to its idle state. Weights are kept.
func (n *Network) Reset() error {
	if err := n.acquire(); err != nil {
		return err
	}
	defer n.release()
	n.plan.reset()
	n.phase = phaseIdle
	return nil
}

// Mutate perturbs every weight; see tensor.MutateInPlace.
func (n *Network) Mutate(rng *rand.Rand, lower, upper, stdev float64) error {
	if err := n.acquire(); err != nil {
		return err
	}
	defer n.release()
	return n.root.Mutate(rng, lower, upper, stdev)
}

// Copy returns an independent network with the same topology and weights.
func (n *Network) Copy() (*Network, error) {
	if err := n.acquire(); err != nil {
		return nil, err
	}
	defer n.release()
	c, err := NewNetwork(n.root.Copy(), n.opts)
	if err != nil {
		return nil, err
	}
	c.observer = n.observer
	return c, nil
}
