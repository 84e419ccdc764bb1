package tensor

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Add returns left + right element-wise.
func Add(left, right *Array) (*Array, error) {
	if err := checkSame("add", left, right); err != nil {
		return nil, err
	}
	out := CreateMatchingShape(left)
	floats.AddTo(out.data, left.data, right.data)
	return out, nil
}

// AddTo stores left + right in dst. dst may alias either operand.
func AddTo(dst, left, right *Array) error {
	if err := checkSame("add", left, right, dst); err != nil {
		return err
	}
	floats.AddTo(dst.data, left.data, right.data)
	return nil
}

// AddScaled performs dst += alpha * s.
func AddScaled(dst *Array, alpha float64, s *Array) error {
	if err := checkSame("add scaled", dst, s); err != nil {
		return err
	}
	floats.AddScaled(dst.data, alpha, s.data)
	return nil
}

// ScalarMultiply returns scalar * a.
func ScalarMultiply(scalar float64, a *Array) *Array {
	out := CreateMatchingShape(a)
	floats.ScaleTo(out.data, scalar, a.data)
	return out
}

// ScaleTo stores scalar * a in dst. dst may alias a.
func ScaleTo(dst *Array, scalar float64, a *Array) error {
	if err := checkSame("scale", a, dst); err != nil {
		return err
	}
	floats.ScaleTo(dst.data, scalar, a.data)
	return nil
}

// MulElemTo stores the element-wise product of a and b in dst.
func MulElemTo(dst, a, b *Array) error {
	if err := checkSame("multiply elements", a, b, dst); err != nil {
		return err
	}
	floats.MulTo(dst.data, a.data, b.data)
	return nil
}

// MapTo stores fn(src[i]) in dst[i].
func MapTo(dst, src *Array, fn func(float64) float64) error {
	if err := checkSame("map", src, dst); err != nil {
		return err
	}
	for i, v := range src.data {
		dst.data[i] = fn(v)
	}
	return nil
}

// productShape applies the rank-1 promotion rules: a rank-1 left operand is
// a row, a rank-1 right operand is a column, and the matching output
// dimension collapses again.
func productShape(left, right *Array) (lr, lc, rc int, shape []int, err error) {
	if left == nil || right == nil {
		return 0, 0, 0, nil, errors.Wrap(ErrInvalidArgument, "multiply: nil operand")
	}
	var rr int
	switch left.Rank() {
	case 1:
		lr, lc = 1, left.shape[0]
	default:
		lr, lc = left.shape[0], left.shape[1]
	}
	switch right.Rank() {
	case 1:
		rr, rc = right.shape[0], 1
	default:
		rr, rc = right.shape[0], right.shape[1]
	}
	if lc != rr {
		return 0, 0, 0, nil, errors.Wrapf(ErrDimensionMismatch, "multiply: %v x %v", left.shape, right.shape)
	}
	switch {
	case left.Rank() == 1 && right.Rank() == 1:
		shape = []int{1}
	case left.Rank() == 1:
		shape = []int{rc}
	case right.Rank() == 1:
		shape = []int{lr}
	default:
		shape = []int{lr, rc}
	}
	return lr, lc, rc, shape, nil
}

// Multiply returns the matrix product left x right.
func Multiply(left, right *Array) (*Array, error) {
	_, _, _, shape, err := productShape(left, right)
	if err != nil {
		return nil, err
	}
	out := New(shape...)
	if err := MultiplyTo(out, left, right); err != nil {
		return nil, err
	}
	return out, nil
}

// MultiplyTo stores left x right in dst, which must already have the product
// shape. dst may alias an operand.
func MultiplyTo(dst, left, right *Array) error {
	lr, lc, rc, shape, err := productShape(left, right)
	if err != nil {
		return err
	}
	if dst == nil || !SameShape(dst, &Array{shape: shape}) {
		return errors.Wrapf(ErrShapeMismatch, "multiply: destination %v, want %v", dst, shape)
	}
	if lr == 0 || rc == 0 {
		return nil
	}
	if lc == 0 {
		SetAll(dst, 0)
		return nil
	}
	var product mat.Dense
	product.Mul(mat.NewDense(lr, lc, left.data), mat.NewDense(lc, rc, right.data))
	for i := 0; i < lr; i++ {
		copy(dst.data[i*rc:(i+1)*rc], product.RawRowView(i))
	}
	return nil
}

// Transpose returns a new array with the two dimensions swapped.
func Transpose(a *Array) (*Array, error) {
	if a == nil {
		return nil, errors.Wrap(ErrInvalidArgument, "transpose: nil operand")
	}
	if a.Rank() != 2 {
		return nil, errors.Wrapf(ErrRank, "transpose: rank %d", a.Rank())
	}
	rows, cols := a.shape[0], a.shape[1]
	out := New(cols, rows)
	if rows == 0 || cols == 0 {
		return out, nil
	}
	t := mat.DenseCopyOf(mat.NewDense(rows, cols, a.data).T())
	for i := 0; i < cols; i++ {
		copy(out.data[i*rows:(i+1)*rows], t.RawRowView(i))
	}
	return out, nil
}

// CreateMatchingShape returns a zero-filled array shaped like a.
func CreateMatchingShape(a *Array) *Array {
	return New(a.shape...)
}

// SetEqual copies every element of source into destination.
func SetEqual(source, destination *Array) error {
	if err := checkSame("set equal", source, destination); err != nil {
		return err
	}
	copy(destination.data, source.data)
	return nil
}

func SetAll(a *Array, value float64) {
	for i := range a.data {
		a.data[i] = value
	}
}

// Equal reports whether a and b have the same shape and identical elements.
func Equal(a, b *Array) bool {
	return SameShape(a, b) && floats.Equal(a.data, b.data)
}

// EqualApprox is Equal with an absolute or relative tolerance per element.
func EqualApprox(a, b *Array, tol float64) bool {
	return SameShape(a, b) && floats.EqualApprox(a.data, b.data, tol)
}

// ConcatRows stacks the operands vertically. Every operand must have the
// same column count; rank-1 operands count as columns.
func ConcatRows(parts ...*Array) (*Array, error) {
	if len(parts) == 0 {
		return New(0, 1), nil
	}
	cols := parts[0].Cols()
	rows := 0
	for i, p := range parts {
		if p.Cols() != cols {
			return nil, errors.Wrapf(ErrShapeMismatch, "concat: operand %d %v has %d columns, want %d", i, p.shape, p.Cols(), cols)
		}
		rows += p.Rows()
	}
	out := New(rows, cols)
	off := 0
	for _, p := range parts {
		off += copy(out.data[off:], p.data)
	}
	return out, nil
}

// SplitRows is the inverse of ConcatRows: it cuts a into consecutive row
// blocks of the given heights.
func SplitRows(a *Array, heights []int) ([]*Array, error) {
	total := 0
	for _, h := range heights {
		total += h
	}
	if total != a.Rows() {
		return nil, errors.Wrapf(ErrShapeMismatch, "split: %d rows into %v", a.Rows(), heights)
	}
	cols := a.Cols()
	out := make([]*Array, len(heights))
	off := 0
	for i, h := range heights {
		out[i] = New(h, cols)
		off += copy(out[i].data, a.data[off:off+h*cols])
	}
	return out, nil
}
