package nn

import "gonum.org/v1/gonum/diff/fd"

const numericDerivativeStep = 1e-3

// Derivative evaluates the derivative of the named transfer at x.
func Derivative(name string, x float64) (float64, error) {
	tf, err := GetTransfer(name)
	if err != nil {
		return 0, err
	}
	return tf.derivative(x), nil
}

func (tf Transfer) derivative(x float64) float64 {
	if tf.Deriv != nil {
		return tf.Deriv(x)
	}
	return fd.Derivative(tf.Func, x, &fd.Settings{
		Formula: fd.Central,
		Step:    numericDerivativeStep,
	})
}
