// Package pilot is the boundary between an evolving network and the ship it
// flies. The game itself lives outside this module; it reports one
// Observation per tick and receives Commands back.
package pilot

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"asteroidnet/internal/nn"
)

const (
	// OutputSize is the number of command bits a pilot network produces.
	OutputSize = 4
	// DefaultEyes matches the stock ship.
	DefaultEyes = 8
)

var (
	ErrObservation = errors.New("invalid observation")
	ErrOutput      = errors.New("invalid pilot output")
)

// Bounds is the playfield rectangle.
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Observation is what the ship senses on one tick.
type Observation struct {
	// Eyes holds, per eye, the distance to the nearest obstacle as a
	// fraction of the eye's range. 1 means nothing in sight.
	Eyes                 []float64
	VelocityX, VelocityY float64
	MaxVelocity          float64
	PositionX, PositionY float64
	Field                Bounds
	MissilesRemaining    int
	MissilesTotal        int
}

// InputSize is the network input length for a ship with numEyes eyes.
func InputSize(numEyes int) int {
	return numEyes + 5
}

// Encode flattens obs into the network input vector: eyes as 1-fraction,
// velocity over max velocity, position scaled to [-1, 1], and the fraction of
// missiles already fired.
func Encode(obs Observation, numEyes int) ([]float64, error) {
	if len(obs.Eyes) != numEyes {
		return nil, fmt.Errorf("%w: %d eyes, want %d", ErrObservation, len(obs.Eyes), numEyes)
	}
	if obs.MaxVelocity <= 0 {
		return nil, fmt.Errorf("%w: max velocity must be > 0", ErrObservation)
	}
	width := obs.Field.MaxX - obs.Field.MinX
	height := obs.Field.MaxY - obs.Field.MinY
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty playfield %+v", ErrObservation, obs.Field)
	}
	if obs.MissilesTotal <= 0 {
		return nil, fmt.Errorf("%w: missile capacity must be > 0", ErrObservation)
	}

	in := make([]float64, 0, InputSize(numEyes))
	for _, fraction := range obs.Eyes {
		in = append(in, 1-fraction)
	}
	in = append(in,
		obs.VelocityX/obs.MaxVelocity,
		obs.VelocityY/obs.MaxVelocity,
		((obs.PositionX-obs.Field.MinX)/width-0.5)*2,
		((obs.PositionY-obs.Field.MinY)/height-0.5)*2,
		1-float64(obs.MissilesRemaining)/float64(obs.MissilesTotal),
	)
	return in, nil
}

// Commands are the discrete controls for one tick.
type Commands struct {
	Thrust bool
	Left   bool
	Right  bool
	Shoot  bool
}

// Decode reads the four output elements as command bits; an element is on
// only when it equals 1. Turning both ways at once cancels both turns.
func Decode(output []float64) (Commands, error) {
	if len(output) != OutputSize {
		return Commands{}, fmt.Errorf("%w: %d values, want %d", ErrOutput, len(output), OutputSize)
	}
	cmd := Commands{
		Thrust: output[0] == 1,
		Left:   output[1] == 1,
		Right:  output[2] == 1,
		Shoot:  output[3] == 1,
	}
	if cmd.Left && cmd.Right {
		cmd.Left, cmd.Right = false, false
	}
	return cmd, nil
}

// Environment is implemented by the game. Reset starts a new flight; Step
// applies one tick of commands and reports whether the flight is over.
type Environment interface {
	Reset(ctx context.Context) (Observation, error)
	Step(ctx context.Context, cmd Commands) (Observation, bool, error)
	Score() float64
}

// NetworkConfig shapes a pilot network.
type NetworkConfig struct {
	NumEyes        int
	Hidden         []int
	HiddenTransfer string
	Bias           bool
	Init           nn.WeightInit
	Options        nn.Options
}

// NewNetwork builds hidden dense layers followed by a hardlim output layer,
// so every output is exactly 0 or 1.
func NewNetwork(cfg NetworkConfig) (*nn.Network, error) {
	if cfg.NumEyes <= 0 {
		return nil, fmt.Errorf("num eyes must be > 0")
	}
	transfer := cfg.HiddenTransfer
	if transfer == "" {
		transfer = "logsig"
	}
	widths := make([]int, 0, len(cfg.Hidden)+2)
	widths = append(widths, InputSize(cfg.NumEyes))
	widths = append(widths, cfg.Hidden...)
	widths = append(widths, OutputSize)
	series, err := nn.MultiLayerPerceptron(widths, cfg.Bias, transfer, "hardlim", cfg.Init)
	if err != nil {
		return nil, fmt.Errorf("pilot network: %w", err)
	}
	return nn.NewNetwork(series, cfg.Options)
}

// Factory adapts cfg to population construction, drawing weights from the
// population's random source.
func Factory(cfg NetworkConfig) func(*rand.Rand) (*nn.Network, error) {
	return func(rng *rand.Rand) (*nn.Network, error) {
		c := cfg
		c.Init.Rand = rng
		return NewNetwork(c)
	}
}
