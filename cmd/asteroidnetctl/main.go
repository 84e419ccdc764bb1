package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"asteroidnet/internal/model"
	"asteroidnet/pkg/asteroidnet"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "evolve":
		return runEvolve(ctx, args[1:])
	case "fit":
		return runFit(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "generations":
		return runGenerations(ctx, args[1:])
	case "fit-history":
		return runFitHistory(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: asteroidnetctl <init|evolve|fit|runs|generations|fit-history> [flags]", msg)
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	writeConfig := fs.String("write-config", "", "write the effective config as INI to this path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, cfg, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}
	if *writeConfig != "" {
		data, err := cfg.Encode()
		if err != nil {
			return err
		}
		if err := os.WriteFile(*writeConfig, data, 0o644); err != nil {
			return err
		}
	}

	fmt.Printf("initialized store=%s\n", cfg.Storage.Store)
	return nil
}

func runEvolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evolve", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	scapeName := fs.String("scape", "xor", "scape name: xor|sine")
	pop := fs.Int("pop", 0, "population size (overrides config)")
	gens := fs.Int("gens", 0, "generations (overrides config)")
	seed := fs.Int64("seed", 0, "random seed (overrides config)")
	workers := fs.Int("workers", 0, "goroutines per graph level (overrides config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, cfg, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	set := setFlags(fs)
	if set["pop"] {
		cfg.Population.Size = *pop
	}
	if set["gens"] {
		cfg.Population.Generations = *gens
	}
	if set["seed"] {
		cfg.Population.Seed = *seed
	}
	if set["workers"] {
		cfg.Network.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	started := time.Now()
	summary, err := client.Evolve(ctx, asteroidnet.EvolveRequest{
		Scape:       *scapeName,
		Population:  cfg.Population.Size,
		Generations: cfg.Population.Generations,
		Seed:        cfg.Population.Seed,
		Network:     networkOptions(cfg),
		Mutation: asteroidnet.Mutation{
			Lower: cfg.Mutation.LowerLimit,
			Upper: cfg.Mutation.UpperLimit,
			Stdev: cfg.Mutation.Stdev,
		},
		NumEyes:  cfg.Pilot.NumEyes,
		MaxTicks: cfg.Pilot.MaxTicks,
	})
	if err != nil {
		return err
	}

	if common.jsonOut {
		return writeJSON(struct {
			RunID            string                         `json:"run_id"`
			FinalBestFitness float64                        `json:"final_best_fitness"`
			Generations      []asteroidnet.GenerationRecord `json:"generations"`
		}{summary.RunID, summary.FinalBestFitness, summary.Generations})
	}
	for _, g := range summary.Generations {
		fmt.Printf("generation=%d best=%.6f mean=%.6f min=%.6f\n", g.Generation, g.BestFitness, g.MeanFitness, g.MinFitness)
	}
	fmt.Printf("run_id=%s scape=%s generations=%d final_best_fitness=%.6f elapsed=%s\n",
		summary.RunID, *scapeName, len(summary.Generations), summary.FinalBestFitness, time.Since(started).Round(time.Millisecond))
	return nil
}

func runFit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fit", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	scapeName := fs.String("scape", "sine", "scape name: sine|xor")
	seed := fs.Int64("seed", 0, "random seed (overrides config)")
	rate := fs.Float64("rate", 0, "learning rate in [-1, 1] (overrides config)")
	minR2 := fs.Float64("min-r2", 0, "target R² in (0, 1] (overrides config)")
	maxPasses := fs.Int("max-passes", 0, "batch pass cap (overrides config)")
	historyLimit := fs.Int("history-limit", asteroidnet.DefaultFitHistoryLimit, "trailing passes kept in fit history")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, cfg, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	set := setFlags(fs)
	if set["seed"] {
		cfg.Population.Seed = *seed
	}
	if set["rate"] {
		cfg.Training.LearningRate = *rate
	}
	if set["min-r2"] {
		cfg.Training.MinRSquared = *minR2
	}
	if set["max-passes"] {
		cfg.Network.MaxPasses = *maxPasses
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	netOpts := networkOptions(cfg)
	netOpts.OutputTransfer = cfg.Training.OutputTransfer
	summary, err := client.Fit(ctx, asteroidnet.FitRequest{
		Scape:        *scapeName,
		Seed:         cfg.Population.Seed,
		Network:      netOpts,
		LearningRate: cfg.Training.LearningRate,
		MinRSquared:  cfg.Training.MinRSquared,
		HistoryLimit: *historyLimit,
	})
	if err != nil {
		return err
	}

	if common.jsonOut {
		return writeJSON(struct {
			RunID     string    `json:"run_id"`
			Passes    int       `json:"passes"`
			Converged bool      `json:"converged"`
			RSquared  []float64 `json:"r_squared"`
		}{summary.RunID, summary.Passes, summary.Converged, summary.RSquared})
	}
	fmt.Printf("run_id=%s scape=%s passes=%s converged=%t r_squared=%v\n",
		summary.RunID, *scapeName, formatCount(summary.Passes), summary.Converged, summary.RSquared)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	kind := fs.String("kind", "", "filter by run kind: evolve|fit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, _, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	runs, err := client.Runs(ctx, asteroidnet.RunsRequest{Limit: *limit, Kind: model.RunKind(*kind)})
	if err != nil {
		return err
	}
	if common.jsonOut {
		return writeJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s kind=%s scape=%s seed=%d started=%s pop=%d gens=%d passes=%s converged=%t best=%.6f\n",
			r.ID,
			r.Kind,
			r.Scape,
			r.Seed,
			formatTime(r.StartedAt),
			r.PopulationSize,
			r.Generations,
			formatCount(r.Passes),
			r.Converged,
			r.BestFitness,
		)
	}
	return nil
}

func historyFlags(fs *flag.FlagSet) (runID *string, latest *bool, limit *int) {
	runID = fs.String("run-id", "", "run id")
	latest = fs.Bool("latest", false, "use the most recent run")
	limit = fs.Int("limit", 0, "max entries, 0 for all")
	return runID, latest, limit
}

func runGenerations(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generations", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	runID, latest, limit := historyFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, _, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	generations, err := client.Generations(ctx, asteroidnet.HistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if common.jsonOut {
		return writeJSON(generations)
	}
	for _, g := range generations {
		fmt.Printf("generation=%d best=%.6f mean=%.6f min=%.6f best_index=%d\n", g.Generation, g.BestFitness, g.MeanFitness, g.MinFitness, g.BestIndex)
	}
	return nil
}

func runFitHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fit-history", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	runID, latest, limit := historyFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, _, err := common.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	passes, err := client.FitHistory(ctx, asteroidnet.HistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if common.jsonOut {
		return writeJSON(passes)
	}
	for _, p := range passes {
		fmt.Printf("pass=%s r_squared=%v\n", formatCount(p.Pass), p.RSquared)
	}
	return nil
}
