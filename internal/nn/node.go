package nn

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"asteroidnet/internal/tensor"
)

// Component is a member of a Layer: either a *Node or a nested *Layer.
type Component interface {
	ID() uuid.UUID
	component()
}

// Node is a single operator in the computation graph. The enclosing Layer
// owns it; neighbours only hold references.
type Node struct {
	id       uuid.UUID
	kind     Kind
	transfer Transfer
	weights  *tensor.Array
	// rows is the configured height of a leaf vector or a recurrent buffer.
	rows int
	// frozen marks a node compiled into a Network.
	frozen bool

	inputs     []*Node
	priorities []int
	outputs    []*Node

	mu          sync.Mutex
	value       *tensor.Array
	sensitivity *tensor.Array
	pending     []*tensor.Array
	previous    *tensor.Array
}

func newNode(kind Kind) *Node {
	return &Node{id: uuid.New(), kind: kind}
}

// NewVector returns a vector node. Without inputs it is a settable leaf of
// the given height; with inputs it concatenates them, and a non-zero rows is
// checked against the concatenated height when the network is compiled.
func NewVector(rows int) *Node {
	n := newNode(KindVector)
	n.rows = rows
	return n
}

// NewWeight returns a trainable weight node holding a copy of w.
func NewWeight(w *tensor.Array) (*Node, error) {
	if w == nil || w.Rank() != 2 {
		return nil, errors.Wrapf(ErrInvalidArgument, "weight must be a rank-2 array, got %v", w)
	}
	n := newNode(KindWeight)
	n.weights = w.Clone()
	return n, nil
}

// GaussianWeights draws a rows x cols matrix from N(mean, stdev^2).
func GaussianWeights(rng *rand.Rand, rows, cols int, mean, stdev float64) *tensor.Array {
	w := tensor.New(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			w.Set(rng.NormFloat64()*stdev+mean, i, j)
		}
	}
	return w
}

func NewAdd() *Node { return newNode(KindAdd) }

// NewMultiply returns a matrix product node. The input connected with the
// lower priority is the left operand; ties go to the first connected.
func NewMultiply() *Node { return newNode(KindMultiply) }

// NewTransfer returns a transfer node using a registered function.
func NewTransfer(name string) (*Node, error) {
	tf, err := GetTransfer(name)
	if err != nil {
		return nil, err
	}
	return NewTransferFunc(tf), nil
}

func NewTransferFunc(tf Transfer) *Node {
	n := newNode(KindTransfer)
	n.transfer = tf
	return n
}

// NewRecurrent returns a one-tick delay whose buffer holds rows values. The
// rows must equal the concatenated height of its inputs.
func NewRecurrent(rows int) *Node {
	n := newNode(KindRecurrent)
	n.rows = rows
	return n
}

func (n *Node) component() {}

func (n *Node) ID() uuid.UUID { return n.id }

func (n *Node) Kind() Kind { return n.kind }

// TransferName is empty for nodes that are not transfer functions.
func (n *Node) TransferName() string { return n.transfer.Name }

func (n *Node) Inputs() []*Node { return append([]*Node(nil), n.inputs...) }

func (n *Node) Outputs() []*Node { return append([]*Node(nil), n.outputs...) }

func (n *Node) Priorities() []int { return append([]int(nil), n.priorities...) }

func (n *Node) String() string {
	return fmt.Sprintf("%s(%s)", n.kind, n.id.String()[:8])
}

// SetValue loads a leaf vector with values as an [len,1] column.
func (n *Node) SetValue(values []float64) error {
	if n.kind != KindVector || len(n.inputs) > 0 {
		return errors.Wrapf(ErrInvalidOperation, "%s: only an unconnected vector can be set", n)
	}
	if n.rows != 0 && len(values) != n.rows {
		return errors.Wrapf(ErrDimensionMismatch, "%s: %d values for %d rows", n, len(values), n.rows)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.value != nil && n.value.Len() == len(values) {
		for i, v := range values {
			n.value.Set(v, i, 0)
		}
		return nil
	}
	n.value = tensor.Column(values...)
	return nil
}

// Value returns a copy of the most recent forward result.
func (n *Node) Value() (*tensor.Array, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kind == KindWeight {
		return n.weights.Clone(), nil
	}
	if n.value == nil {
		return nil, errors.Wrapf(ErrInvalidOperation, "%s: read before calculation", n)
	}
	return n.value.Clone(), nil
}

// Sensitivity returns a copy of the stored error derivative, if any.
func (n *Node) Sensitivity() (*tensor.Array, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sensitivity == nil {
		return nil, false
	}
	return n.sensitivity.Clone(), true
}

// Weights returns a copy of a weight node's matrix, or nil for other kinds.
func (n *Node) Weights() *tensor.Array {
	if n.kind != KindWeight {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.weights.Clone()
}

// SetWeights overwrites a weight node's matrix. The shape may not change.
func (n *Node) SetWeights(w *tensor.Array) error {
	if n.kind != KindWeight {
		return errors.Wrapf(ErrInvalidOperation, "%s: not a weight", n)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if !tensor.SameShape(n.weights, w) {
		return errors.Wrapf(ErrInvalidOperation, "%s: weight shape %v cannot become %v", n, n.weights.Shape(), w)
	}
	return tensor.SetEqual(w, n.weights)
}

func (n *Node) mutate(rng *rand.Rand, lower, upper, stdev float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return tensor.MutateInPlace(rng, n.weights, lower, upper, stdev)
}

// reset clears per-pass state. Weights and leaf vector values survive.
func (n *Node) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kind != KindVector || len(n.inputs) > 0 {
		n.value = nil
	}
	n.sensitivity = nil
	for i := range n.pending {
		n.pending[i] = nil
	}
	n.previous = nil
}

// cloneEmpty returns a same-kind node with a fresh identity and no edges.
func (n *Node) cloneEmpty() *Node {
	c := newNode(n.kind)
	c.transfer = n.transfer
	c.rows = n.rows
	if n.weights != nil {
		n.mu.Lock()
		c.weights = n.weights.Clone()
		n.mu.Unlock()
	}
	return c
}

// link records the edge from -> to without arity checks.
func link(from, to *Node, priority int) {
	to.inputs = append(to.inputs, from)
	to.priorities = append(to.priorities, priority)
	to.pending = append(to.pending, nil)
	from.outputs = append(from.outputs, to)
}

// unlink removes every edge between n and its neighbours.
func (n *Node) unlink() {
	for _, out := range n.outputs {
		out.dropInput(n)
	}
	for _, in := range n.inputs {
		in.dropOutput(n)
	}
	n.inputs, n.priorities, n.pending, n.outputs = nil, nil, nil, nil
}

func (n *Node) dropInput(target *Node) {
	inputs := n.inputs[:0]
	priorities := n.priorities[:0]
	pending := n.pending[:0]
	for i, in := range n.inputs {
		if in == target {
			continue
		}
		inputs = append(inputs, in)
		priorities = append(priorities, n.priorities[i])
		pending = append(pending, n.pending[i])
	}
	n.inputs, n.priorities, n.pending = inputs, priorities, pending
}

func (n *Node) dropOutput(target *Node) {
	outputs := n.outputs[:0]
	for _, out := range n.outputs {
		if out != target {
			outputs = append(outputs, out)
		}
	}
	n.outputs = outputs
}
