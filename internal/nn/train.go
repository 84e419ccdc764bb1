package nn

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// TrainingPoint pairs an input with the output the network should produce.
type TrainingPoint struct {
	Input    []float64
	Expected []float64
}

// BatchProgress reports one completed batch pass.
type BatchProgress struct {
	Pass     int
	RSquared []float64
}

// BatchResult describes a converged batch run.
type BatchResult struct {
	Passes   int
	RSquared []float64
}

// SetBatchObserver registers fn to be called after every batch pass. Pass
// nil to stop observing.
func (n *Network) SetBatchObserver(fn func(BatchProgress)) {
	n.observer = fn
}

func checkRate(rate float64) error {
	if math.IsNaN(rate) || rate < -1 || rate > 1 {
		return errors.Wrapf(ErrOutOfRange, "learning rate %g not in [-1, 1]", rate)
	}
	return nil
}

// errorDerivative is d/da (t - a)^2 for every output element.
func errorDerivative(expected, actual []float64) []float64 {
	out := make([]float64, len(actual))
	for i := range actual {
		out[i] = -2 * (expected[i] - actual[i])
	}
	return out
}

func (n *Network) checkPoint(p TrainingPoint) error {
	if len(p.Input) != n.InputSize() {
		return errors.Wrapf(ErrDimensionMismatch, "training input has %d values, network expects %d", len(p.Input), n.InputSize())
	}
	if len(p.Expected) != n.OutputSize() {
		return errors.Wrapf(ErrDimensionMismatch, "training target has %d values, network produces %d", len(p.Expected), n.OutputSize())
	}
	return nil
}

// IncrementalTrain runs one forward pass, one backward pass against the
// squared error of point, and one learning step.
func (n *Network) IncrementalTrain(ctx context.Context, point TrainingPoint, rate float64) error {
	if err := checkRate(rate); err != nil {
		return err
	}
	if err := n.checkPoint(point); err != nil {
		return err
	}
	if err := n.acquire(); err != nil {
		return err
	}
	defer n.release()

	out, err := n.calculate(ctx, point.Input)
	if err != nil {
		return err
	}
	if err := n.updateSensitivities(ctx, errorDerivative(point.Expected, out.Data()), Incremental); err != nil {
		return err
	}
	return n.learn(ctx, rate)
}

// BatchTrain repeats full passes over points, accumulating sensitivities
// and learning once per pass with rate/len(points), until the R² of every
// output dimension reaches minRSquared. R² is measured before the pass's
// learning step. It fails with ErrIterationLimit once MaxPasses passes ran
// without converging; the weights keep whatever training they received.
func (n *Network) BatchTrain(ctx context.Context, points []TrainingPoint, minRSquared, rate float64) (BatchResult, error) {
	if math.IsNaN(minRSquared) || minRSquared <= 0 || minRSquared > 1 {
		return BatchResult{}, errors.Wrapf(ErrOutOfRange, "minimum R² %g not in (0, 1]", minRSquared)
	}
	if err := checkRate(rate); err != nil {
		return BatchResult{}, err
	}
	if len(points) == 0 {
		return BatchResult{}, errors.Wrap(ErrInvalidArgument, "batch train: empty training set")
	}
	for i, p := range points {
		if err := n.checkPoint(p); err != nil {
			return BatchResult{}, errors.Wrapf(err, "point %d", i)
		}
	}
	if err := n.acquire(); err != nil {
		return BatchResult{}, err
	}
	defer n.release()

	n.plan.reset()
	n.phase = phaseIdle

	dims := n.OutputSize()
	expected := make([][]float64, dims)
	actual := make([][]float64, dims)
	for d := range expected {
		expected[d] = make([]float64, len(points))
		actual[d] = make([]float64, len(points))
		for i, p := range points {
			expected[d][i] = p.Expected[d]
		}
	}
	scaled := rate / float64(len(points))
	rSquared := make([]float64, dims)

	for pass := 1; pass <= n.opts.MaxPasses; pass++ {
		for i, p := range points {
			out, err := n.calculate(ctx, p.Input)
			if err != nil {
				return BatchResult{Passes: pass, RSquared: rSquared}, err
			}
			values := out.Data()
			for d, v := range values {
				actual[d][i] = v
			}
			if err := n.updateSensitivities(ctx, errorDerivative(p.Expected, values), Batch); err != nil {
				return BatchResult{Passes: pass, RSquared: rSquared}, err
			}
		}

		converged := true
		for d := range rSquared {
			rSquared[d] = stat.RSquaredFrom(actual[d], expected[d], nil)
			// NaN compares false, so a constant target never converges.
			if !(rSquared[d] >= minRSquared) {
				converged = false
			}
		}
		if n.observer != nil {
			n.observer(BatchProgress{Pass: pass, RSquared: append([]float64(nil), rSquared...)})
		}
		if converged {
			n.plan.reset()
			n.phase = phaseIdle
			return BatchResult{Passes: pass, RSquared: rSquared}, nil
		}
		if err := n.learn(ctx, scaled); err != nil {
			return BatchResult{Passes: pass, RSquared: rSquared}, err
		}
	}
	return BatchResult{Passes: n.opts.MaxPasses, RSquared: rSquared},
		errors.Wrapf(ErrIterationLimit, "no convergence to R² %g after %d passes", minRSquared, n.opts.MaxPasses)
}
