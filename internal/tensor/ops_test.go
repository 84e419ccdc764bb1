package tensor

import (
	"errors"
	"math/rand"
	"testing"
)

func TestAddThenSubtractRecoversOperand(t *testing.T) {
	a := Matrix(2, 3, []float64{1, -2, 3.5, 4, 0, -6})
	b := Matrix(2, 3, []float64{0.25, 7, -1, 2, 9, 3})

	sum, err := Add(a, b)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	back, err := Add(sum, ScalarMultiply(-1, b))
	if err != nil {
		t.Fatalf("add negated: %v", err)
	}
	if !EqualApprox(back, a, 1e-12) {
		t.Fatalf("unexpected result: got=%v want=%v", back, a)
	}
}

func TestAddShapeMismatch(t *testing.T) {
	cases := []struct {
		name        string
		left, right *Array
	}{
		{name: "different rank", left: Vector(1, 2), right: Column(1, 2)},
		{name: "different rows", left: New(2, 2), right: New(3, 2)},
		{name: "different length", left: Vector(1), right: Vector(1, 2)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Add(tc.left, tc.right); !errors.Is(err, ErrShapeMismatch) {
				t.Fatalf("expected ErrShapeMismatch, got: %v", err)
			}
		})
	}

	if err := AddTo(New(2), Vector(1, 2), Vector(3, 4)); err != nil {
		t.Fatalf("add to: %v", err)
	}
	if err := AddTo(New(3), Vector(1, 2), Vector(3, 4)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected output mismatch error, got: %v", err)
	}
}

func TestAddToAliasesOperand(t *testing.T) {
	a := Vector(1, 2, 3)
	if err := AddTo(a, a, Vector(1, 1, 1)); err != nil {
		t.Fatalf("add to: %v", err)
	}
	if !Equal(a, Vector(2, 3, 4)) {
		t.Fatalf("unexpected aliased sum: %v", a)
	}
	if err := ScaleTo(a, 0.5, a); err != nil {
		t.Fatalf("scale to: %v", err)
	}
	if !Equal(a, Vector(1, 1.5, 2)) {
		t.Fatalf("unexpected aliased scale: %v", a)
	}
}

func TestMultiplyShapes(t *testing.T) {
	cases := []struct {
		name        string
		left, right *Array
		want        *Array
	}{
		{
			name:  "matrix by column",
			left:  Matrix(1, 2, []float64{3, 2}),
			right: Column(-5, 6),
			want:  Matrix(1, 1, []float64{-3}),
		},
		{
			name:  "matrix by matrix",
			left:  Matrix(2, 2, []float64{1, 2, 3, 4}),
			right: Matrix(2, 3, []float64{1, 0, 1, 0, 1, 2}),
			want:  Matrix(2, 3, []float64{1, 2, 5, 3, 4, 11}),
		},
		{
			name:  "vector by vector",
			left:  Vector(1, 2, 3),
			right: Vector(4, 5, 6),
			want:  Vector(32),
		},
		{
			name:  "row vector by matrix",
			left:  Vector(1, 2),
			right: Matrix(2, 3, []float64{1, 0, 1, 0, 1, 2}),
			want:  Vector(1, 2, 5),
		},
		{
			name:  "matrix by column vector",
			left:  Matrix(2, 2, []float64{1, 2, 3, 4}),
			right: Vector(1, 1),
			want:  Vector(3, 7),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Multiply(tc.left, tc.right)
			if err != nil {
				t.Fatalf("multiply: %v", err)
			}
			if !Equal(got, tc.want) {
				t.Fatalf("unexpected product: got=%v want=%v", got, tc.want)
			}
		})
	}
}

func TestMultiplyDimensionMismatch(t *testing.T) {
	if _, err := Multiply(New(2, 3), New(2, 3)); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got: %v", err)
	}
	if _, err := Multiply(Vector(1, 2), Vector(1, 2, 3)); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch for vectors, got: %v", err)
	}
	if err := MultiplyTo(New(3, 3), New(2, 3), New(3, 2)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch for destination, got: %v", err)
	}
}

func TestMultiplyAssociative(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	random := func(rows, cols int) *Array {
		a := New(rows, cols)
		for i := range a.data {
			a.data[i] = rng.Float64()*2 - 1
		}
		return a
	}
	a, b, c := random(3, 4), random(4, 2), random(2, 5)

	ab, err := Multiply(a, b)
	if err != nil {
		t.Fatalf("a x b: %v", err)
	}
	left, err := Multiply(ab, c)
	if err != nil {
		t.Fatalf("(a x b) x c: %v", err)
	}
	bc, err := Multiply(b, c)
	if err != nil {
		t.Fatalf("b x c: %v", err)
	}
	right, err := Multiply(a, bc)
	if err != nil {
		t.Fatalf("a x (b x c): %v", err)
	}
	if !EqualApprox(left, right, 1e-12) {
		t.Fatalf("product not associative: %v vs %v", left, right)
	}
}

func TestMultiplyZeroInnerDimension(t *testing.T) {
	got, err := Multiply(New(2, 0), New(0, 3))
	if err != nil {
		t.Fatalf("multiply: %v", err)
	}
	if !Equal(got, New(2, 3)) {
		t.Fatalf("expected zero 2x3 product, got: %v", got)
	}
}

func TestTranspose(t *testing.T) {
	a := Matrix(2, 3, []float64{1, 2, 3, 4, 5, 6})
	at, err := Transpose(a)
	if err != nil {
		t.Fatalf("transpose: %v", err)
	}
	if !Equal(at, Matrix(3, 2, []float64{1, 4, 2, 5, 3, 6})) {
		t.Fatalf("unexpected transpose: %v", at)
	}
	back, err := Transpose(at)
	if err != nil {
		t.Fatalf("transpose back: %v", err)
	}
	if !Equal(back, a) {
		t.Fatalf("double transpose changed array: %v", back)
	}
	if _, err := Transpose(Vector(1, 2)); !errors.Is(err, ErrRank) {
		t.Fatalf("expected ErrRank, got: %v", err)
	}
}

func TestSetEqualAndSetAll(t *testing.T) {
	src := Column(1, 2, 3)
	dst := CreateMatchingShape(src)
	if !Equal(dst, Column(0, 0, 0)) {
		t.Fatalf("matching shape not zero-filled: %v", dst)
	}
	if err := SetEqual(src, dst); err != nil {
		t.Fatalf("set equal: %v", err)
	}
	src.Set(9, 0, 0)
	if dst.At(0, 0) != 1 {
		t.Fatalf("destination aliases source: %v", dst)
	}
	SetAll(dst, -4)
	if !Equal(dst, Column(-4, -4, -4)) {
		t.Fatalf("unexpected fill: %v", dst)
	}
	if err := SetEqual(src, Vector(1, 2, 3)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got: %v", err)
	}
}

func TestConcatAndSplitRows(t *testing.T) {
	joined, err := ConcatRows(Column(1, 2), Column(3), Vector(4, 5))
	if err != nil {
		t.Fatalf("concat: %v", err)
	}
	if !Equal(joined, Column(1, 2, 3, 4, 5)) {
		t.Fatalf("unexpected concat: %v", joined)
	}
	parts, err := SplitRows(joined, []int{2, 1, 2})
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !Equal(parts[0], Column(1, 2)) || !Equal(parts[1], Column(3)) || !Equal(parts[2], Column(4, 5)) {
		t.Fatalf("unexpected split: %v", parts)
	}
	if _, err := ConcatRows(Column(1), New(1, 2)); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected column mismatch, got: %v", err)
	}
	if _, err := SplitRows(joined, []int{1, 1}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected row count mismatch, got: %v", err)
	}
}

func TestFromRows(t *testing.T) {
	a, err := FromRows([][]float64{{-0.27}, {-0.41}})
	if err != nil {
		t.Fatalf("from rows: %v", err)
	}
	if a.Rows() != 2 || a.Cols() != 1 || a.At(1, 0) != -0.41 {
		t.Fatalf("unexpected array: %v", a)
	}
	if _, err := FromRows([][]float64{{1, 2}, {3}}); !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got: %v", err)
	}
}
