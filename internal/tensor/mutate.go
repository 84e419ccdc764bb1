package tensor

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
)

// MutateInPlace perturbs every element with Gaussian noise of the given
// standard deviation centred on its current value. Results outside
// [lower, upper] are reflected back off the violated limit.
func MutateInPlace(rng *rand.Rand, a *Array, lower, upper, stdev float64) error {
	if rng == nil {
		return errors.Wrap(ErrInvalidArgument, "mutate: nil random source")
	}
	if a == nil {
		return errors.Wrap(ErrInvalidArgument, "mutate: nil array")
	}
	if !(stdev > 0) || math.IsInf(stdev, 0) {
		return errors.Wrapf(ErrInvalidArgument, "mutate: stdev %g must be > 0", stdev)
	}
	if !(lower < upper) {
		return errors.Wrapf(ErrInvalidArgument, "mutate: lower limit %g must be below upper limit %g", lower, upper)
	}
	for i, v := range a.data {
		v = clamp(v, lower, upper)
		a.data[i] = reflect(rng.NormFloat64()*stdev+v, lower, upper)
	}
	return nil
}

// reflect mirrors v off whichever limit it crossed. A draw that overshoots
// by more than the full range is clamped after the reflection.
func reflect(v, lower, upper float64) float64 {
	switch {
	case v > upper:
		v = upper - (v - upper)
	case v < lower:
		v = lower + (lower - v)
	}
	return clamp(v, lower, upper)
}

func clamp(v, lower, upper float64) float64 {
	if v > upper {
		return upper
	}
	if v < lower {
		return lower
	}
	return v
}
