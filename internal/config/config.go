// Package config loads asteroidnet run settings from INI files.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gopkg.in/ini.v1"

	"asteroidnet/internal/nn"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Population PopulationConfig
	Network    NetworkConfig
	Mutation   MutationConfig
	Training   TrainingConfig
	Storage    StorageConfig
	Pilot      PilotConfig
}

type PopulationConfig struct {
	Size        int   `ini:"size"`
	Generations int   `ini:"generations"`
	Seed        int64 `ini:"seed"`
}

type NetworkConfig struct {
	HiddenLayers    []int   `ini:"hidden_layers" delim:","`
	HiddenTransfer  string  `ini:"hidden_transfer"`
	OutputTransfer  string  `ini:"output_transfer"`
	Bias            bool    `ini:"bias"`
	WeightInitMean  float64 `ini:"weight_init_mean"`
	WeightInitStdev float64 `ini:"weight_init_stdev"`
	Workers         int     `ini:"workers"`
	MaxPasses       int     `ini:"max_passes"`
}

type MutationConfig struct {
	LowerLimit float64 `ini:"lower_limit"`
	UpperLimit float64 `ini:"upper_limit"`
	Stdev      float64 `ini:"stdev"`
}

// TrainingConfig drives gradient fits, which use their own output transfer
// since fitting targets are rarely confined to a sigmoid's range.
type TrainingConfig struct {
	LearningRate   float64 `ini:"learning_rate"`
	MinRSquared    float64 `ini:"min_r_squared"`
	OutputTransfer string  `ini:"output_transfer"`
}

type StorageConfig struct {
	Store  string `ini:"store"`
	DBPath string `ini:"db_path"`
}

type PilotConfig struct {
	NumEyes  int `ini:"num_eyes"`
	MaxTicks int `ini:"max_ticks"`
}

// Default returns a valid configuration for a small XOR-sized run.
func Default() Config {
	return Config{
		Population: PopulationConfig{Size: 20, Generations: 50, Seed: 1},
		Network: NetworkConfig{
			HiddenLayers:    []int{4},
			HiddenTransfer:  "logsig",
			OutputTransfer:  "logsig",
			Bias:            true,
			WeightInitStdev: 1,
			MaxPasses:       nn.DefaultMaxPasses,
		},
		Mutation: MutationConfig{LowerLimit: -10, UpperLimit: 10, Stdev: 0.5},
		Training: TrainingConfig{LearningRate: 0.5, MinRSquared: 0.95, OutputTransfer: "purelin"},
		Storage:  StorageConfig{Store: "memory", DBPath: "asteroidnet.db"},
		Pilot:    PilotConfig{NumEyes: 8, MaxTicks: 2000},
	}
}

// Comments must start a line; # and ; inside values are kept.
var loadOptions = ini.LoadOptions{
	IgnoreInlineComment:         true,
	UnescapeValueCommentSymbols: true,
}

var sections = []string{"Population", "Network", "Mutation", "Training", "Storage", "Pilot"}

// LoadConfig reads an INI file over Default. Keys absent from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	file, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config file '%s': %w", path, err)
	}
	return fromFile(file)
}

// Parse reads INI content from memory; see LoadConfig.
func Parse(data []byte) (Config, error) {
	file, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return fromFile(file)
}

func fromFile(file *ini.File) (Config, error) {
	cfg := Default()
	targets := []any{&cfg.Population, &cfg.Network, &cfg.Mutation, &cfg.Training, &cfg.Storage, &cfg.Pilot}
	for i, name := range sections {
		if !file.HasSection(name) {
			continue
		}
		if err := file.Section(name).StrictMapTo(targets[i]); err != nil {
			return Config{}, fmt.Errorf("failed to map [%s] section: %w", name, err)
		}
	}
	// Empty values leave defaults in place, except db_path: an explicit
	// "db_path =" clears it so Validate can reject it for sqlite.
	if sec, err := file.GetSection("Storage"); err == nil && sec.HasKey("db_path") {
		cfg.Storage.DBPath = strings.TrimSpace(sec.Key("db_path").String())
	}
	cfg.Network.HiddenTransfer = strings.TrimSpace(cfg.Network.HiddenTransfer)
	cfg.Network.OutputTransfer = strings.TrimSpace(cfg.Network.OutputTransfer)
	cfg.Training.OutputTransfer = strings.TrimSpace(cfg.Training.OutputTransfer)
	cfg.Storage.Store = strings.ToLower(strings.TrimSpace(cfg.Storage.Store))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c Config) Validate() error {
	if c.Population.Size <= 0 {
		return invalid("population size must be > 0")
	}
	if c.Population.Generations <= 0 {
		return invalid("generations must be > 0")
	}
	for i, width := range c.Network.HiddenLayers {
		if width <= 0 {
			return invalid("hidden layer %d width must be > 0", i)
		}
	}
	for _, name := range []string{c.Network.HiddenTransfer, c.Network.OutputTransfer, c.Training.OutputTransfer} {
		if _, err := nn.GetTransfer(name); err != nil {
			return invalid("unknown transfer function %q", name)
		}
	}
	if c.Network.WeightInitStdev < 0 {
		return invalid("weight init stdev must be >= 0")
	}
	if c.Network.Workers < 0 || c.Network.MaxPasses < 0 {
		return invalid("workers and max passes must be >= 0")
	}
	if !(c.Mutation.LowerLimit < c.Mutation.UpperLimit) {
		return invalid("mutation lower limit must be below upper limit")
	}
	if !(c.Mutation.Stdev > 0) || math.IsInf(c.Mutation.Stdev, 0) {
		return invalid("mutation stdev must be > 0")
	}
	if c.Training.LearningRate < -1 || c.Training.LearningRate > 1 {
		return invalid("learning rate must be in [-1, 1]")
	}
	if !(c.Training.MinRSquared > 0 && c.Training.MinRSquared <= 1) {
		return invalid("min r squared must be in (0, 1]")
	}
	switch c.Storage.Store {
	case "memory":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return invalid("sqlite store requires db_path")
		}
	default:
		return invalid("unsupported store %q", c.Storage.Store)
	}
	if c.Pilot.NumEyes <= 0 || c.Pilot.MaxTicks <= 0 {
		return invalid("pilot eyes and max ticks must be > 0")
	}
	return nil
}

// Encode renders c as INI text that LoadConfig reads back.
func (c Config) Encode() ([]byte, error) {
	file := ini.Empty()
	sources := []any{&c.Population, &c.Network, &c.Mutation, &c.Training, &c.Storage, &c.Pilot}
	for i, name := range sections {
		if err := file.Section(name).ReflectFrom(sources[i]); err != nil {
			return nil, fmt.Errorf("failed to reflect [%s] section: %w", name, err)
		}
	}
	var b strings.Builder
	if _, err := file.WriteTo(&b); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}
