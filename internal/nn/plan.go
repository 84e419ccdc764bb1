package nn

import (
	"context"
	"slices"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"asteroidnet/internal/tensor"
)

// TrainingMode selects how a backward pass stores sensitivities.
type TrainingMode uint8

const (
	// Incremental overwrites each node's sensitivity.
	Incremental TrainingMode = iota
	// Batch adds into each node's sensitivity until the next Learn.
	Batch
)

type edgeRef struct {
	node int
	slot int
}

// plan is the compiled evaluation schedule of a layer. Nodes live in an
// arena addressed by index; levels group nodes whose inputs are all in
// earlier levels. Edges into recurrent vectors are left out of the
// schedule, which is what keeps feedback loops acyclic.
type plan struct {
	nodes  []*Node
	index  map[*Node]int
	inputs [][]int
	// outEdges lists, per node, the scheduled edges leaving it.
	outEdges  [][]edgeRef
	levels    [][]int
	shapes    [][]int
	recurrent []int
	input     int
	output    int
}

func compile(root *Layer) (*plan, error) {
	in, err := inputNode(root)
	if err != nil {
		return nil, err
	}
	out, err := outputNode(root)
	if err != nil {
		return nil, err
	}
	if in.kind != KindVector || len(in.inputs) > 0 {
		return nil, errors.Wrapf(ErrInvalidOperation, "network input %s must be an unconnected vector", in)
	}
	if in.rows <= 0 {
		return nil, errors.Wrapf(ErrInvalidOperation, "network input %s has no configured length", in)
	}

	p := &plan{nodes: root.Nodes(), index: make(map[*Node]int)}
	for i, n := range p.nodes {
		p.index[n] = i
	}
	p.input, p.output = p.index[in], p.index[out]

	g := simple.NewDirectedGraph()
	for i := range p.nodes {
		g.AddNode(simple.Node(i))
	}
	p.inputs = make([][]int, len(p.nodes))
	p.outEdges = make([][]edgeRef, len(p.nodes))
	for j, n := range p.nodes {
		if err := n.checkArity(j == p.output); err != nil {
			return nil, err
		}
		if n.kind == KindRecurrent {
			p.recurrent = append(p.recurrent, j)
		}
		for slot, src := range n.inputs {
			i, ok := p.index[src]
			if !ok {
				return nil, errors.Wrapf(ErrNotMember, "%s reads from %s outside the network", n, src)
			}
			p.inputs[j] = append(p.inputs[j], i)
			if n.kind == KindRecurrent {
				continue
			}
			p.outEdges[i] = append(p.outEdges[i], edgeRef{node: j, slot: slot})
			g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
		}
	}

	sorted, err := topo.SortStabilized(g, nil)
	if err != nil {
		return nil, errors.Wrap(ErrCycle, err.Error())
	}
	order := make([]int, len(sorted))
	for k, gn := range sorted {
		order[k] = int(gn.ID())
	}
	depth := make([]int, len(p.nodes))
	for _, j := range order {
		if p.nodes[j].kind == KindRecurrent {
			continue
		}
		for _, i := range p.inputs[j] {
			if depth[i]+1 > depth[j] {
				depth[j] = depth[i] + 1
			}
		}
	}
	for _, j := range order {
		for len(p.levels) <= depth[j] {
			p.levels = append(p.levels, nil)
		}
		p.levels[depth[j]] = append(p.levels[depth[j]], j)
	}

	if err := p.inferShapes(order); err != nil {
		return nil, err
	}
	return p, nil
}

// inferShapes walks the schedule once with zero-valued arrays so shape
// errors surface at construction instead of on the first pass.
func (p *plan) inferShapes(order []int) error {
	values := make([]*tensor.Array, len(p.nodes))
	p.shapes = make([][]int, len(p.nodes))
	for _, j := range order {
		n := p.nodes[j]
		var v *tensor.Array
		switch {
		case n.kind == KindVector && len(n.inputs) == 0:
			if n.rows <= 0 {
				return errors.Wrapf(ErrInvalidOperation, "%s is an unconnected vector without a length", n)
			}
			v = tensor.New(n.rows, 1)
		case n.kind == KindRecurrent:
			v = tensor.New(n.rows, 1)
		default:
			in := make([]*tensor.Array, len(p.inputs[j]))
			for s, i := range p.inputs[j] {
				in[s] = values[i]
			}
			var err error
			if v, err = n.compute(in, nil); err != nil {
				return err
			}
			if n.kind == KindVector && n.rows != 0 && v.Rows() != n.rows {
				return errors.Wrapf(ErrShapeMismatch, "%s concatenates %d rows, configured for %d", n, v.Rows(), n.rows)
			}
		}
		values[j] = v
		p.shapes[j] = v.Shape()
	}
	for _, j := range p.recurrent {
		n := p.nodes[j]
		in := make([]*tensor.Array, len(p.inputs[j]))
		for s, i := range p.inputs[j] {
			in[s] = values[i]
		}
		joined, err := tensor.ConcatRows(in...)
		if err != nil {
			return errors.Wrapf(err, "%s", n)
		}
		if !tensor.SameShape(joined, values[j]) {
			return errors.Wrapf(ErrShapeMismatch, "%s buffers %v, inputs give %v", n, p.shapes[j], joined.Shape())
		}
	}
	return nil
}

// run executes fn for every node in each level, one level at a time. Nodes
// of a level run concurrently on at most workers goroutines.
func (p *plan) run(ctx context.Context, levels [][]int, workers int, fn func(int) error) error {
	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			return err
		}
		if workers <= 1 || len(level) == 1 {
			for _, j := range level {
				if err := fn(j); err != nil {
					return err
				}
			}
			continue
		}
		var g errgroup.Group
		g.SetLimit(workers)
		for _, j := range level {
			g.Go(func() error { return fn(j) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (p *plan) inputValues(j int) []*tensor.Array {
	in := make([]*tensor.Array, len(p.inputs[j]))
	for s, i := range p.inputs[j] {
		in[s] = p.nodes[i].value
		if p.nodes[i].kind == KindWeight {
			in[s] = p.nodes[i].weights
		}
	}
	return in
}

func (p *plan) forward(ctx context.Context, workers int) error {
	for _, j := range p.recurrent {
		n := p.nodes[j]
		if n.previous == nil {
			n.previous = tensor.New(p.shapes[j]...)
		}
	}
	err := p.run(ctx, p.levels, workers, func(j int) error {
		n := p.nodes[j]
		n.mu.Lock()
		defer n.mu.Unlock()
		v, err := n.compute(p.inputValues(j), n.value)
		if err != nil {
			return err
		}
		n.value = v
		return nil
	})
	if err != nil {
		return err
	}
	// Recurrent buffers take this tick's upstream values for the next tick.
	for _, j := range p.recurrent {
		joined, err := tensor.ConcatRows(p.inputValues(j)...)
		if err != nil {
			return errors.Wrapf(err, "%s", p.nodes[j])
		}
		p.nodes[j].previous = joined
	}
	return nil
}

func (p *plan) backward(ctx context.Context, external *tensor.Array, mode TrainingMode, workers int) error {
	if external == nil || !slices.Equal(external.Shape(), p.shapes[p.output]) {
		return errors.Wrapf(ErrShapeMismatch, "sensitivity %v for output %v", external, p.shapes[p.output])
	}
	reversed := make([][]int, len(p.levels))
	for i, level := range p.levels {
		reversed[len(p.levels)-1-i] = level
	}
	return p.run(ctx, reversed, workers, func(j int) error {
		n := p.nodes[j]
		current, err := p.averageSensitivity(j, external)
		if err != nil {
			return err
		}
		pending, err := n.inputSensitivities(current, p.inputValues(j))
		if err != nil {
			return err
		}

		n.mu.Lock()
		defer n.mu.Unlock()
		switch {
		case mode == Incremental || n.sensitivity == nil:
			n.sensitivity = current
		default:
			if err := tensor.AddTo(n.sensitivity, n.sensitivity, current); err != nil {
				return errors.Wrapf(err, "%s", n)
			}
		}
		for s := range n.pending {
			n.pending[s] = nil
			if s < len(pending) {
				n.pending[s] = pending[s]
			}
		}
		return nil
	})
}

// averageSensitivity is the mean of the contributions left by a node's
// scheduled outputs. An output that produced nothing counts as zero. The
// network output also counts the external sensitivity.
func (p *plan) averageSensitivity(j int, external *tensor.Array) (*tensor.Array, error) {
	sum := tensor.New(p.shapes[j]...)
	count := len(p.outEdges[j])
	if j == p.output {
		if err := tensor.AddTo(sum, sum, external); err != nil {
			return nil, err
		}
		count++
	}
	for _, e := range p.outEdges[j] {
		contribution := p.nodes[e.node].pending[e.slot]
		if contribution == nil {
			continue
		}
		if err := tensor.AddTo(sum, sum, contribution); err != nil {
			return nil, errors.Wrapf(err, "%s from %s", p.nodes[j], p.nodes[e.node])
		}
	}
	if count > 1 {
		if err := tensor.ScaleTo(sum, 1/float64(count), sum); err != nil {
			return nil, err
		}
	}
	return sum, nil
}

// learn applies w -= rate * sensitivity to every weight and then clears
// all stored sensitivities.
func (p *plan) learn(rate float64) error {
	for _, n := range p.nodes {
		n.mu.Lock()
		if n.kind == KindWeight && n.sensitivity != nil {
			if err := tensor.AddScaled(n.weights, -rate, n.sensitivity); err != nil {
				n.mu.Unlock()
				return errors.Wrapf(err, "%s", n)
			}
		}
		n.sensitivity = nil
		n.mu.Unlock()
	}
	return nil
}

func (p *plan) reset() {
	for _, n := range p.nodes {
		n.reset()
	}
}
