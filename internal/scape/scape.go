package scape

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type Fitness float64

type Trace map[string]any

type Agent interface {
	ID() string
}

// StepAgent maps one input vector to one output vector per call.
type StepAgent interface {
	Agent
	RunStep(ctx context.Context, input []float64) ([]float64, error)
}

// ResettableAgent clears per-episode state such as recurrent buffers.
type ResettableAgent interface {
	StepAgent
	Reset() error
}

type Scape interface {
	Name() string
	Evaluate(ctx context.Context, agent Agent) (Fitness, Trace, error)
}

func stepAgent(agent Agent) (StepAgent, error) {
	runner, ok := agent.(StepAgent)
	if !ok {
		return nil, fmt.Errorf("agent %s does not implement step runner", agent.ID())
	}
	return runner, nil
}

var registry = struct {
	mu sync.RWMutex
	m  map[string]func() Scape
}{
	m: map[string]func() Scape{
		"xor":  func() Scape { return XORScape{} },
		"sine": func() Scape { return SineScape{} },
	},
}

// Register adds a named scape constructor.
func Register(name string, ctor func() Scape) error {
	if name == "" || ctor == nil {
		return fmt.Errorf("scape name and constructor are required")
	}
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, exists := registry.m[name]; exists {
		return fmt.Errorf("scape already registered: %s", name)
	}
	registry.m[name] = ctor
	return nil
}

// Lookup returns a new instance of the named scape.
func Lookup(name string) (Scape, error) {
	registry.mu.RLock()
	ctor, ok := registry.m[name]
	registry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown scape: %s", name)
	}
	return ctor(), nil
}

func Names() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	names := make([]string, 0, len(registry.m))
	for name := range registry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
