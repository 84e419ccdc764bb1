package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"asteroidnet/internal/config"
	"asteroidnet/pkg/asteroidnet"
)

// commonFlags are shared by every subcommand. Empty store and db-path defer
// to the config file, then to config.Default.
type commonFlags struct {
	configPath string
	storeKind  string
	dbPath     string
	logLevel   string
	jsonOut    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "INI config file")
	fs.StringVar(&c.storeKind, "store", "", "store backend: memory|sqlite")
	fs.StringVar(&c.dbPath, "db-path", "", "sqlite database path")
	fs.StringVar(&c.logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	fs.BoolVar(&c.jsonOut, "json", false, "emit JSON")
}

func (c *commonFlags) load() (config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		loaded, err := config.LoadConfig(c.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if c.storeKind != "" {
		cfg.Storage.Store = strings.ToLower(c.storeKind)
	}
	if c.dbPath != "" {
		cfg.Storage.DBPath = c.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (c *commonFlags) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.logLevel)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// open loads config and returns an initialized client.
func (c *commonFlags) open() (*asteroidnet.Client, config.Config, error) {
	cfg, err := c.load()
	if err != nil {
		return nil, config.Config{}, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, config.Config{}, err
	}
	client, err := asteroidnet.New(asteroidnet.Options{
		StoreKind: cfg.Storage.Store,
		DBPath:    cfg.Storage.DBPath,
		Logger:    logger,
	})
	if err != nil {
		return nil, config.Config{}, err
	}
	return client, cfg, nil
}

func networkOptions(cfg config.Config) asteroidnet.NetworkOptions {
	return asteroidnet.NetworkOptions{
		Hidden:          cfg.Network.HiddenLayers,
		HiddenTransfer:  cfg.Network.HiddenTransfer,
		OutputTransfer:  cfg.Network.OutputTransfer,
		Bias:            cfg.Network.Bias,
		WeightInitMean:  cfg.Network.WeightInitMean,
		WeightInitStdev: cfg.Network.WeightInitStdev,
		Workers:         cfg.Network.Workers,
		MaxPasses:       cfg.Network.MaxPasses,
	}
}

// setFlags reports which flags were given on the command line.
func setFlags(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// formatTime is relative on a terminal and RFC 3339 otherwise.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	if stdoutIsTerminal() {
		return humanize.Time(t)
	}
	return t.UTC().Format(time.RFC3339)
}

func formatCount(n int) string {
	return humanize.Comma(int64(n))
}
