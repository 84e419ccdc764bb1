package scape

import (
	"context"
	"fmt"

	"asteroidnet/internal/pilot"
)

const defaultMaxTicks = 2000

// PilotScape flies an agent through a game environment. Each tick the
// environment's observation is encoded, run through the agent and decoded
// into commands. Fitness is the environment's score when the flight ends.
type PilotScape struct {
	Env      pilot.Environment
	NumEyes  int
	MaxTicks int
}

func (PilotScape) Name() string {
	return "pilot"
}

func (s PilotScape) Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error) {
	if s.Env == nil {
		return 0, nil, fmt.Errorf("pilot scape requires an environment")
	}
	runner, err := stepAgent(agent)
	if err != nil {
		return 0, nil, err
	}
	if resettable, ok := agent.(ResettableAgent); ok {
		if err := resettable.Reset(); err != nil {
			return 0, nil, err
		}
	}
	eyes := s.NumEyes
	if eyes <= 0 {
		eyes = pilot.DefaultEyes
	}
	maxTicks := s.MaxTicks
	if maxTicks <= 0 {
		maxTicks = defaultMaxTicks
	}

	obs, err := s.Env.Reset(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("reset environment: %w", err)
	}
	ticks, shots := 0, 0
	for done := false; !done && ticks < maxTicks; ticks++ {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		in, err := pilot.Encode(obs, eyes)
		if err != nil {
			return 0, nil, err
		}
		out, err := runner.RunStep(ctx, in)
		if err != nil {
			return 0, nil, err
		}
		cmd, err := pilot.Decode(out)
		if err != nil {
			return 0, nil, err
		}
		if cmd.Shoot {
			shots++
		}
		if obs, done, err = s.Env.Step(ctx, cmd); err != nil {
			return 0, nil, fmt.Errorf("step environment: %w", err)
		}
	}
	return Fitness(s.Env.Score()), Trace{"ticks": ticks, "shots": shots}, nil
}
