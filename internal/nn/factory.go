package nn

import (
	"math/rand"

	"github.com/pkg/errors"

	"asteroidnet/internal/tensor"
)

// WeightInit describes the Gaussian used to seed new weight matrices.
type WeightInit struct {
	Rand  *rand.Rand
	Mean  float64
	Stdev float64
}

func (w WeightInit) draw(rows, cols int) (*tensor.Array, error) {
	if w.Rand == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "weight init: nil random source")
	}
	if w.Stdev < 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "weight init: stdev %g must be >= 0", w.Stdev)
	}
	return GaussianWeights(w.Rand, rows, cols, w.Mean, w.Stdev), nil
}

// LayerOfNeurons builds a dense layer computing
// transfer(W x input + bias) with W drawn from init.
func LayerOfNeurons(inputs, outputs int, bias bool, transfer string, init WeightInit) (*Layer, error) {
	if inputs <= 0 || outputs <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "layer of neurons: %d inputs, %d outputs", inputs, outputs)
	}
	w, err := init.draw(outputs, inputs)
	if err != nil {
		return nil, err
	}
	var b *tensor.Array
	if bias {
		if b, err = init.draw(outputs, 1); err != nil {
			return nil, err
		}
	}
	return LayerOfNeuronsFromWeights(w, b, transfer)
}

// LayerOfNeuronsFromWeights builds a dense layer with explicit weights. w is
// outputs x inputs; bias is outputs x 1 or nil.
func LayerOfNeuronsFromWeights(w, bias *tensor.Array, transfer string) (*Layer, error) {
	if w == nil || w.Rank() != 2 {
		return nil, errors.Wrapf(ErrInvalidArgument, "layer of neurons: weights %v", w)
	}
	if bias != nil && (bias.Rank() != 2 || bias.Rows() != w.Rows() || bias.Cols() != 1) {
		return nil, errors.Wrapf(ErrShapeMismatch, "layer of neurons: bias %v for weights %v", bias.Shape(), w.Shape())
	}
	tf, err := NewTransfer(transfer)
	if err != nil {
		return nil, err
	}
	weight, err := NewWeight(w)
	if err != nil {
		return nil, err
	}

	layer := NewLayer()
	in := NewVector(w.Cols())
	mul := NewMultiply()
	out := NewVector(w.Rows())
	b := &builder{layer: layer}
	b.add(in, weight, mul)
	b.connect(weight, mul, 0)
	b.connect(in, mul, 1)
	last := Component(mul)
	if bias != nil {
		biasNode, err := NewWeight(bias)
		if err != nil {
			return nil, err
		}
		sum := NewAdd()
		b.add(biasNode, sum)
		b.connect(mul, sum, 0)
		b.connect(biasNode, sum, 1)
		last = sum
	}
	b.add(tf, out)
	b.connect(last, tf, 0)
	b.connect(tf, out, 0)
	b.endpoints(in, out)
	if b.err != nil {
		return nil, b.err
	}
	return layer, nil
}

// SeriesOfLayers chains layers so that each one's output feeds the next
// one's input. The series exposes the first input and the last output.
func SeriesOfLayers(layers ...*Layer) (*Layer, error) {
	if len(layers) == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "series of layers: no layers")
	}
	series := NewLayer()
	b := &builder{layer: series}
	for i, l := range layers {
		b.add(l)
		if i > 0 {
			b.connect(layers[i-1], l, 0)
		}
	}
	b.endpoints(layers[0], layers[len(layers)-1])
	if b.err != nil {
		return nil, b.err
	}
	return series, nil
}

// MultiLayerPerceptron chains dense layers through the given widths, where
// widths[0] is the input size and the last width the output size. Hidden
// layers use hidden and the last layer uses output as transfer.
func MultiLayerPerceptron(widths []int, bias bool, hidden, output string, init WeightInit) (*Layer, error) {
	if len(widths) < 2 {
		return nil, errors.Wrapf(ErrInvalidArgument, "multi-layer perceptron: %d widths", len(widths))
	}
	layers := make([]*Layer, 0, len(widths)-1)
	for i := 1; i < len(widths); i++ {
		transfer := hidden
		if i == len(widths)-1 {
			transfer = output
		}
		layer, err := LayerOfNeurons(widths[i-1], widths[i], bias, transfer, init)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d", i-1)
		}
		layers = append(layers, layer)
	}
	return SeriesOfLayers(layers...)
}

// RecurrentLayerOfNeurons builds a dense layer whose input is the external
// input followed by its own output from the previous tick.
func RecurrentLayerOfNeurons(inputs, outputs int, bias bool, transfer string, init WeightInit) (*Layer, error) {
	if inputs <= 0 || outputs <= 0 {
		return nil, errors.Wrapf(ErrInvalidArgument, "recurrent layer: %d inputs, %d outputs", inputs, outputs)
	}
	dense, err := LayerOfNeurons(inputs+outputs, outputs, bias, transfer, init)
	if err != nil {
		return nil, err
	}
	layer := NewLayer()
	in := NewVector(inputs)
	feedback := NewRecurrent(outputs)
	b := &builder{layer: layer}
	b.add(in, feedback, dense)
	b.connect(in, dense, 0)
	b.connect(feedback, dense, 1)
	b.connect(dense, feedback, 0)
	b.endpoints(in, dense)
	if b.err != nil {
		return nil, b.err
	}
	return layer, nil
}

// builder keeps the first error from a sequence of layer edits.
type builder struct {
	layer *Layer
	err   error
}

func (b *builder) add(cs ...Component) {
	for _, c := range cs {
		if b.err == nil {
			b.err = b.layer.AddNode(c)
		}
	}
}

func (b *builder) connect(from, to Component, priority int) {
	if b.err == nil {
		b.err = b.layer.ConnectNodes(from, to, priority)
	}
}

func (b *builder) endpoints(in, out Component) {
	if b.err == nil {
		b.err = b.layer.SetInput(in)
	}
	if b.err == nil {
		b.err = b.layer.SetOutput(out)
	}
}
