// Package tensor implements the rank-1 and rank-2 float64 arrays that flow
// between graph nodes. Shapes never change after construction and every
// operation rejects mismatched shapes instead of broadcasting.
package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Array is a dense row-major array of rank 1 or 2.
type Array struct {
	shape []int
	data  []float64
}

// New returns a zero-filled array with the given shape. It panics on a rank
// other than 1 or 2 or on a negative dimension, as gonum constructors do.
func New(shape ...int) *Array {
	if len(shape) != 1 && len(shape) != 2 {
		panic(fmt.Sprintf("tensor: rank %d not supported", len(shape)))
	}
	size := 1
	for _, dim := range shape {
		if dim < 0 {
			panic(fmt.Sprintf("tensor: negative dimension %d", dim))
		}
		size *= dim
	}
	return &Array{
		shape: append([]int(nil), shape...),
		data:  make([]float64, size),
	}
}

// Vector returns a rank-1 array holding a copy of values.
func Vector(values ...float64) *Array {
	a := New(len(values))
	copy(a.data, values)
	return a
}

// Column returns an [n,1] array holding a copy of values.
func Column(values ...float64) *Array {
	a := New(len(values), 1)
	copy(a.data, values)
	return a
}

// Matrix returns a rows x cols array holding a copy of data in row-major
// order. It panics when len(data) != rows*cols.
func Matrix(rows, cols int, data []float64) *Array {
	a := New(rows, cols)
	if len(data) != len(a.data) {
		panic(fmt.Sprintf("tensor: %d values for %dx%d matrix", len(data), rows, cols))
	}
	copy(a.data, data)
	return a
}

// FromRows builds a rank-2 array from equally sized rows.
func FromRows(rows [][]float64) (*Array, error) {
	if len(rows) == 0 {
		return New(0, 0), nil
	}
	cols := len(rows[0])
	a := New(len(rows), cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, errors.Wrapf(ErrShapeMismatch, "row %d has %d values, want %d", i, len(row), cols)
		}
		copy(a.data[i*cols:], row)
	}
	return a, nil
}

func (a *Array) Rank() int { return len(a.shape) }

func (a *Array) Len() int { return len(a.data) }

// Shape returns a copy of the dimensions.
func (a *Array) Shape() []int {
	return append([]int(nil), a.shape...)
}

// Rows is the first dimension. A rank-1 array counts as a column.
func (a *Array) Rows() int {
	return a.shape[0]
}

// Cols is the second dimension, or 1 for a rank-1 array.
func (a *Array) Cols() int {
	if len(a.shape) == 1 {
		return 1
	}
	return a.shape[1]
}

// At returns the element at (i) for rank 1 or (i, j) for rank 2.
func (a *Array) At(idx ...int) float64 {
	return a.data[a.offset(idx)]
}

func (a *Array) Set(value float64, idx ...int) {
	a.data[a.offset(idx)] = value
}

func (a *Array) offset(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("tensor: %d indices for rank %d", len(idx), len(a.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for dimension %d", v, a.shape[i]))
		}
		off = off*a.shape[i] + v
	}
	return off
}

// Data returns a copy of the elements in row-major order.
func (a *Array) Data() []float64 {
	return append([]float64(nil), a.data...)
}

func (a *Array) Clone() *Array {
	return &Array{
		shape: append([]int(nil), a.shape...),
		data:  append([]float64(nil), a.data...),
	}
}

func (a *Array) String() string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v%v", a.shape, a.data)
}

// SameShape reports whether a and b have identical rank and dimensions.
func SameShape(a, b *Array) bool {
	if a == nil || b == nil || len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	return true
}

func checkSame(op string, arrays ...*Array) error {
	for i, a := range arrays {
		if a == nil {
			return errors.Wrapf(ErrInvalidArgument, "%s: operand %d is nil", op, i)
		}
	}
	for _, a := range arrays[1:] {
		if !SameShape(arrays[0], a) {
			return errors.Wrapf(ErrShapeMismatch, "%s: %v vs %v", op, arrays[0].shape, a.shape)
		}
	}
	return nil
}
