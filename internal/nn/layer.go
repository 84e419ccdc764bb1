package nn

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Layer owns a list of nodes and nested layers. Input and Output must be
// members; a nested layer resolves to its own Input or Output when edges are
// connected to it.
type Layer struct {
	id      uuid.UUID
	members []Component
	input   Component
	output  Component
	// frozen is set once a Network has been compiled from the layer.
	frozen bool
}

func NewLayer() *Layer {
	return &Layer{id: uuid.New()}
}

func (l *Layer) component() {}

func (l *Layer) ID() uuid.UUID { return l.id }

// Members returns the direct members in insertion order.
func (l *Layer) Members() []Component {
	return append([]Component(nil), l.members...)
}

func (l *Layer) Input() Component { return l.input }

func (l *Layer) Output() Component { return l.output }

// Frozen reports whether l belongs to a built Network. A frozen layer
// rejects every structural edit; weights can still be mutated.
func (l *Layer) Frozen() bool { return l.frozen }

func (l *Layer) freeze() {
	l.frozen = true
	for _, m := range l.members {
		switch v := m.(type) {
		case *Layer:
			v.freeze()
		case *Node:
			v.frozen = true
		}
	}
}

func (l *Layer) checkEditable(op string) error {
	if l.frozen {
		return errors.Wrapf(ErrInvalidOperation, "%s: layer %s belongs to a built network", op, l.id)
	}
	return nil
}

func checkNodesEditable(op string, c Component) error {
	for _, n := range flatten(c) {
		if n.frozen {
			return errors.Wrapf(ErrInvalidOperation, "%s: %s belongs to a built network", op, n)
		}
	}
	return nil
}

// AddNode appends c to the member list. Adding a component twice, or a
// layer to itself, is an error.
func (l *Layer) AddNode(c Component) error {
	if c == nil {
		return errors.Wrap(ErrInvalidArgument, "add: nil component")
	}
	if err := l.checkEditable("add"); err != nil {
		return err
	}
	if err := checkNodesEditable("add", c); err != nil {
		return err
	}
	if nested, ok := c.(*Layer); ok && (nested == l || nested.Contains(l)) {
		return errors.Wrap(ErrInvalidOperation, "add: layer cannot contain itself")
	}
	if l.Contains(c) {
		return errors.Wrapf(ErrInvalidOperation, "add: %s is already a member", c.ID())
	}
	l.members = append(l.members, c)
	return nil
}

func (l *Layer) SetInput(c Component) error {
	if c == nil {
		return errors.Wrap(ErrInvalidArgument, "input: nil component")
	}
	if err := l.checkEditable("input"); err != nil {
		return err
	}
	if !l.isDirect(c) {
		return errors.Wrapf(ErrNotMember, "input %s", c.ID())
	}
	l.input = c
	return nil
}

func (l *Layer) SetOutput(c Component) error {
	if c == nil {
		return errors.Wrap(ErrInvalidArgument, "output: nil component")
	}
	if err := l.checkEditable("output"); err != nil {
		return err
	}
	if !l.isDirect(c) {
		return errors.Wrapf(ErrNotMember, "output %s", c.ID())
	}
	l.output = c
	return nil
}

// ConnectNodes adds the edge from -> to with the given priority. Both ends
// must be contained in l. The edge is rejected up front when it would push
// either node past its arity bound.
func (l *Layer) ConnectNodes(from, to Component, priority int) error {
	if err := l.checkEditable("connect"); err != nil {
		return err
	}
	src, err := outputNode(from)
	if err != nil {
		return err
	}
	dst, err := inputNode(to)
	if err != nil {
		return err
	}
	if !l.Contains(src) {
		return errors.Wrapf(ErrNotMember, "connect: source %s", src)
	}
	if !l.Contains(dst) {
		return errors.Wrapf(ErrNotMember, "connect: target %s", dst)
	}
	if src.frozen || dst.frozen {
		return errors.Wrapf(ErrInvalidOperation, "connect: %s -> %s touches a built network", src, dst)
	}
	if src == dst {
		return errors.Wrapf(ErrInvalidOperation, "connect: %s to itself", src)
	}
	if !dst.canAcceptInput() {
		return errors.Wrapf(ErrArityViolation, "connect: %s accepts at most %d inputs", dst, dst.kind.arity().maxInputs)
	}
	if !src.canAcceptOutput() {
		return errors.Wrapf(ErrArityViolation, "connect: %s accepts at most %d outputs", src, src.kind.arity().maxOutputs)
	}
	link(src, dst, priority)
	return nil
}

// Remove detaches c from the graph and drops it from whichever layer holds
// it directly. Input and Output are cleared if they pointed at c.
func (l *Layer) Remove(c Component) error {
	if c == nil {
		return errors.Wrap(ErrInvalidArgument, "remove: nil component")
	}
	if err := l.checkEditable("remove"); err != nil {
		return err
	}
	for i, m := range l.members {
		if m != c {
			continue
		}
		if err := checkNodesEditable("remove", c); err != nil {
			return err
		}
		for _, n := range flatten(c) {
			n.unlink()
		}
		l.members = append(l.members[:i], l.members[i+1:]...)
		if l.input == c {
			l.input = nil
		}
		if l.output == c {
			l.output = nil
		}
		return nil
	}
	for _, m := range l.members {
		if nested, ok := m.(*Layer); ok && nested.Contains(c) {
			return nested.Remove(c)
		}
	}
	return errors.Wrapf(ErrNotMember, "remove %s", c.ID())
}

// Contains reports whether c is a member of l or of any nested layer.
func (l *Layer) Contains(c Component) bool {
	for _, m := range l.members {
		if m == c {
			return true
		}
		if nested, ok := m.(*Layer); ok && nested.Contains(c) {
			return true
		}
	}
	return false
}

func (l *Layer) isDirect(c Component) bool {
	for _, m := range l.members {
		if m == c {
			return true
		}
	}
	return false
}

// Nodes returns every node in l depth-first in member order. The order is
// stable and is what Copy relies on.
func (l *Layer) Nodes() []*Node {
	return flatten(l)
}

func flatten(c Component) []*Node {
	switch v := c.(type) {
	case *Node:
		return []*Node{v}
	case *Layer:
		var out []*Node
		for _, m := range v.members {
			out = append(out, flatten(m)...)
		}
		return out
	default:
		return nil
	}
}

// Weights returns the weight nodes of l in Nodes order.
func (l *Layer) Weights() []*Node {
	var out []*Node
	for _, n := range l.Nodes() {
		if n.kind == KindWeight {
			out = append(out, n)
		}
	}
	return out
}

// Mutate perturbs every weight in l and its nested layers.
func (l *Layer) Mutate(rng *rand.Rand, lower, upper, stdev float64) error {
	for _, m := range l.members {
		switch v := m.(type) {
		case *Layer:
			if err := v.Mutate(rng, lower, upper, stdev); err != nil {
				return err
			}
		case *Node:
			if v.kind != KindWeight {
				continue
			}
			if err := v.mutate(rng, lower, upper, stdev); err != nil {
				return errors.Wrapf(err, "mutate %s", v)
			}
		}
	}
	return nil
}

func outputNode(c Component) (*Node, error) {
	for {
		switch v := c.(type) {
		case *Node:
			return v, nil
		case *Layer:
			if v.output == nil {
				return nil, errors.Wrapf(ErrInvalidOperation, "layer %s has no output", v.id)
			}
			c = v.output
		default:
			return nil, errors.Wrap(ErrInvalidArgument, "nil component")
		}
	}
}

func inputNode(c Component) (*Node, error) {
	for {
		switch v := c.(type) {
		case *Node:
			return v, nil
		case *Layer:
			if v.input == nil {
				return nil, errors.Wrapf(ErrInvalidOperation, "layer %s has no input", v.id)
			}
			c = v.input
		default:
			return nil, errors.Wrap(ErrInvalidArgument, "nil component")
		}
	}
}
