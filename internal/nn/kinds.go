package nn

import (
	"github.com/pkg/errors"

	"asteroidnet/internal/tensor"
)

// Kind is the closed set of node operators.
type Kind uint8

const (
	KindVector Kind = iota
	KindWeight
	KindAdd
	KindMultiply
	KindTransfer
	KindRecurrent
)

func (k Kind) String() string {
	switch k {
	case KindVector:
		return "vector"
	case KindWeight:
		return "weight"
	case KindAdd:
		return "add"
	case KindMultiply:
		return "multiply"
	case KindTransfer:
		return "transfer"
	case KindRecurrent:
		return "recurrent"
	default:
		return "unknown"
	}
}

const unbounded = -1

type arity struct {
	minInputs, maxInputs   int
	minOutputs, maxOutputs int
}

var arities = [...]arity{
	KindVector:    {0, unbounded, 0, unbounded},
	KindWeight:    {0, 0, 1, unbounded},
	KindAdd:       {2, 2, 1, unbounded},
	KindMultiply:  {2, 2, 1, unbounded},
	KindTransfer:  {1, 1, 1, 1},
	KindRecurrent: {1, unbounded, 1, unbounded},
}

func (k Kind) arity() arity { return arities[k] }

// canAcceptInput reports whether one more inbound edge stays within bounds.
func (n *Node) canAcceptInput() bool {
	limit := n.kind.arity().maxInputs
	return limit == unbounded || len(n.inputs) < limit
}

func (n *Node) canAcceptOutput() bool {
	limit := n.kind.arity().maxOutputs
	return limit == unbounded || len(n.outputs) < limit
}

// checkArity verifies both bounds on the current edge lists. The network
// output may have no outputs of its own.
func (n *Node) checkArity(isOutput bool) error {
	a := n.kind.arity()
	if isOutput && len(n.outputs) == 0 {
		a.minOutputs = 0
	}
	if len(n.inputs) < a.minInputs || (a.maxInputs != unbounded && len(n.inputs) > a.maxInputs) {
		return errors.Wrapf(ErrArityViolation, "%s has %d inputs", n, len(n.inputs))
	}
	if len(n.outputs) < a.minOutputs || (a.maxOutputs != unbounded && len(n.outputs) > a.maxOutputs) {
		return errors.Wrapf(ErrArityViolation, "%s has %d outputs", n, len(n.outputs))
	}
	return nil
}

// operands returns the left and right input slots of a multiply node.
func (n *Node) operands() (left, right int) {
	if n.priorities[0] <= n.priorities[1] {
		return 0, 1
	}
	return 1, 0
}

// compute runs the forward rule of n over the given input values and
// returns the result. dst is reused when it already has the result shape.
func (n *Node) compute(in []*tensor.Array, dst *tensor.Array) (*tensor.Array, error) {
	switch n.kind {
	case KindVector:
		if len(in) == 0 {
			if dst == nil {
				return nil, errors.Wrapf(ErrInvalidOperation, "%s: leaf vector has no value", n)
			}
			return dst, nil
		}
		out, err := tensor.ConcatRows(in...)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", n)
		}
		return out, nil
	case KindWeight:
		return n.weights, nil
	case KindAdd:
		if dst == nil || !tensor.SameShape(dst, in[0]) {
			dst = tensor.CreateMatchingShape(in[0])
		}
		if err := tensor.AddTo(dst, in[0], in[1]); err != nil {
			return nil, errors.Wrapf(err, "%s", n)
		}
		return dst, nil
	case KindMultiply:
		l, r := n.operands()
		out, err := tensor.Multiply(in[l], in[r])
		if err != nil {
			return nil, errors.Wrapf(err, "%s", n)
		}
		return out, nil
	case KindTransfer:
		if dst == nil || !tensor.SameShape(dst, in[0]) {
			dst = tensor.CreateMatchingShape(in[0])
		}
		if err := tensor.MapTo(dst, in[0], n.transfer.Func); err != nil {
			return nil, errors.Wrapf(err, "%s", n)
		}
		return dst, nil
	case KindRecurrent:
		return n.previous, nil
	default:
		return nil, errors.Wrapf(ErrInvalidOperation, "unknown node kind %d", n.kind)
	}
}

// inputSensitivities runs the backward rule of n: given the node's averaged
// sensitivity s and its input values, it returns one sensitivity per inbound
// edge. Leaves and recurrent vectors return nil.
func (n *Node) inputSensitivities(s *tensor.Array, in []*tensor.Array) ([]*tensor.Array, error) {
	switch n.kind {
	case KindVector:
		if len(in) == 0 {
			return nil, nil
		}
		heights := make([]int, len(in))
		for i, v := range in {
			heights[i] = v.Rows()
		}
		parts, err := tensor.SplitRows(s, heights)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", n)
		}
		return parts, nil
	case KindAdd:
		return []*tensor.Array{s, s}, nil
	case KindMultiply:
		l, r := n.operands()
		rightT, err := tensor.Transpose(in[r])
		if err != nil {
			return nil, errors.Wrapf(err, "%s right operand", n)
		}
		leftT, err := tensor.Transpose(in[l])
		if err != nil {
			return nil, errors.Wrapf(err, "%s left operand", n)
		}
		out := make([]*tensor.Array, 2)
		if out[l], err = tensor.Multiply(s, rightT); err != nil {
			return nil, errors.Wrapf(err, "%s", n)
		}
		if out[r], err = tensor.Multiply(leftT, s); err != nil {
			return nil, errors.Wrapf(err, "%s", n)
		}
		return out, nil
	case KindTransfer:
		grad := tensor.CreateMatchingShape(in[0])
		if err := tensor.MapTo(grad, in[0], n.transfer.derivative); err != nil {
			return nil, errors.Wrapf(err, "%s", n)
		}
		if err := tensor.MulElemTo(grad, grad, s); err != nil {
			return nil, errors.Wrapf(err, "%s", n)
		}
		return []*tensor.Array{grad}, nil
	default:
		return nil, nil
	}
}
