// Package asteroidnet evolves and trains computation-graph networks and
// records the history of every run.
package asteroidnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"asteroidnet/internal/evo"
	"asteroidnet/internal/model"
	"asteroidnet/internal/nn"
	"asteroidnet/internal/pilot"
	"asteroidnet/internal/scape"
	"asteroidnet/internal/storage"
)

const defaultDBPath = "asteroidnet.db"

// DefaultFitHistoryLimit is how many trailing batch passes a fit records
// when FitRequest.HistoryLimit is zero.
const DefaultFitHistoryLimit = 1000

type (
	Network     = nn.Network
	Environment = pilot.Environment
	Observation = pilot.Observation
	Commands    = pilot.Commands
	Bounds      = pilot.Bounds
)

type (
	RunRecord        = model.RunRecord
	GenerationRecord = model.GenerationRecord
	FitPass          = model.FitPass
)

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
}

type Client struct {
	store storage.Store
	log   *slog.Logger
	now   func() time.Time
}

// NetworkOptions describes a dense network. Input and output widths come from
// the scape being trained on.
type NetworkOptions struct {
	Hidden          []int
	HiddenTransfer  string
	OutputTransfer  string
	Bias            bool
	WeightInitMean  float64
	WeightInitStdev float64
	Workers         int
	MaxPasses       int
}

func (s NetworkOptions) withDefaults() NetworkOptions {
	if s.HiddenTransfer == "" {
		s.HiddenTransfer = "logsig"
	}
	if s.OutputTransfer == "" {
		s.OutputTransfer = "logsig"
	}
	if s.WeightInitStdev == 0 {
		s.WeightInitStdev = 1
	}
	return s
}

func (s NetworkOptions) options() nn.Options {
	return nn.Options{Workers: s.Workers, MaxPasses: s.MaxPasses}
}

type Mutation struct {
	Lower float64
	Upper float64
	Stdev float64
}

type EvolveRequest struct {
	RunID       string
	Scape       string
	Population  int
	Generations int
	Seed        int64
	Network     NetworkOptions
	Mutation    Mutation
	// Environment, NumEyes and MaxTicks configure the "pilot" scape.
	Environment Environment
	NumEyes     int
	MaxTicks    int
}

type EvolveSummary struct {
	RunID            string
	BestByGeneration []float64
	Generations      []GenerationRecord
	FinalBestFitness float64
	Champion         *Network
}

type FitRequest struct {
	RunID        string
	Scape        string
	Seed         int64
	Network      NetworkOptions
	LearningRate float64
	MinRSquared  float64
	// HistoryLimit caps the stored fit history to the last passes; zero
	// means DefaultFitHistoryLimit.
	HistoryLimit int
}

type FitSummary struct {
	RunID     string
	Passes    int
	RSquared  []float64
	Converged bool
	Network   *Network
}

type RunsRequest struct {
	Limit int
	Kind  model.RunKind
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{store: store, log: logger, now: time.Now}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// trainingSetScape is a scape with a fixed labelled set, which also fixes
// the network widths it needs.
type trainingSetScape interface {
	scape.Scape
	TrainingSet() (inputs, targets [][]float64)
}

func lookupTrainingSet(name string) (trainingSetScape, error) {
	s, err := scape.Lookup(name)
	if err != nil {
		return nil, err
	}
	ts, ok := s.(trainingSetScape)
	if !ok {
		return nil, fmt.Errorf("scape %s has no training set", name)
	}
	return ts, nil
}

func denseFactory(netOpts NetworkOptions, inputs, outputs int) evo.Factory {
	widths := make([]int, 0, len(netOpts.Hidden)+2)
	widths = append(widths, inputs)
	widths = append(widths, netOpts.Hidden...)
	widths = append(widths, outputs)
	return func(rng *rand.Rand) (*nn.Network, error) {
		init := nn.WeightInit{Rand: rng, Mean: netOpts.WeightInitMean, Stdev: netOpts.WeightInitStdev}
		layer, err := nn.MultiLayerPerceptron(widths, netOpts.Bias, netOpts.HiddenTransfer, netOpts.OutputTransfer, init)
		if err != nil {
			return nil, err
		}
		return nn.NewNetwork(layer, netOpts.options())
	}
}

func (c *Client) evolveTarget(req EvolveRequest) (scape.Scape, evo.Factory, error) {
	if req.Scape == "pilot" {
		if req.Environment == nil {
			return nil, nil, errors.New("pilot scape requires an environment")
		}
		eyes := req.NumEyes
		if eyes <= 0 {
			eyes = pilot.DefaultEyes
		}
		factory := pilot.Factory(pilot.NetworkConfig{
			NumEyes:        eyes,
			Hidden:         req.Network.Hidden,
			HiddenTransfer: req.Network.HiddenTransfer,
			Bias:           req.Network.Bias,
			Init:           nn.WeightInit{Mean: req.Network.WeightInitMean, Stdev: req.Network.WeightInitStdev},
			Options:        req.Network.options(),
		})
		return scape.PilotScape{Env: req.Environment, NumEyes: eyes, MaxTicks: req.MaxTicks}, factory, nil
	}
	ts, err := lookupTrainingSet(req.Scape)
	if err != nil {
		return nil, nil, err
	}
	inputs, targets := ts.TrainingSet()
	return ts, denseFactory(req.Network, len(inputs[0]), len(targets[0])), nil
}

// Evolve runs the genetic trainer and records the run and its generation
// history in the store.
func (c *Client) Evolve(ctx context.Context, req EvolveRequest) (EvolveSummary, error) {
	if req.Scape == "" {
		req.Scape = "xor"
	}
	if req.Population <= 0 {
		req.Population = 20
	}
	if req.Generations <= 0 {
		req.Generations = 10
	}
	if req.Mutation == (Mutation{}) {
		req.Mutation = Mutation{Lower: -10, Upper: 10, Stdev: 0.5}
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	req.Network = req.Network.withDefaults()

	target, factory, err := c.evolveTarget(req)
	if err != nil {
		return EvolveSummary{}, err
	}
	pop, err := evo.NewPopulation(evo.PopulationConfig{
		Size:     req.Population,
		Seed:     req.Seed,
		Mutation: evo.MutationConfig(req.Mutation),
	}, factory)
	if err != nil {
		return EvolveSummary{}, err
	}
	trainer, err := evo.NewTrainer(evo.TrainerConfig{
		Scape:       target,
		Generations: req.Generations,
		RunID:       req.RunID,
		Store:       c.store,
		Logger:      c.log.With("run_id", req.RunID),
	})
	if err != nil {
		return EvolveSummary{}, err
	}

	run := storage.Stamp(model.RunRecord{
		ID:             req.RunID,
		Kind:           model.RunKindEvolve,
		Scape:          req.Scape,
		Seed:           req.Seed,
		PopulationSize: req.Population,
		Generations:    req.Generations,
		StartedAt:      c.now().UTC(),
	})
	if err := c.store.SaveRun(ctx, run); err != nil {
		return EvolveSummary{}, err
	}
	c.log.Info("evolve started", "run_id", run.ID, "scape", run.Scape, "population", run.PopulationSize, "generations", run.Generations)

	result, err := trainer.Run(ctx, pop)
	if err != nil {
		return EvolveSummary{}, err
	}

	run.BestFitness = result.ChampionFitness
	run.FinishedAt = c.now().UTC()
	if err := c.store.SaveRun(ctx, run); err != nil {
		return EvolveSummary{}, err
	}
	c.log.Info("evolve finished", "run_id", run.ID, "best", run.BestFitness, "elapsed", run.FinishedAt.Sub(run.StartedAt))

	records := make([]GenerationRecord, len(result.Summaries))
	for i, s := range result.Summaries {
		records[i] = s.Record()
	}
	return EvolveSummary{
		RunID:            run.ID,
		BestByGeneration: result.BestByGeneration,
		Generations:      records,
		FinalBestFitness: result.ChampionFitness,
		Champion:         result.Champion,
	}, nil
}

// Fit batch-trains one network on a scape's training set. The output layer
// defaults to purelin. Hitting the pass cap is reported as an unconverged
// fit rather than an error.
func (c *Client) Fit(ctx context.Context, req FitRequest) (FitSummary, error) {
	if req.Scape == "" {
		req.Scape = "sine"
	}
	if req.LearningRate == 0 {
		req.LearningRate = 0.5
	}
	if req.MinRSquared == 0 {
		req.MinRSquared = 0.95
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.HistoryLimit < 0 {
		return FitSummary{}, errors.New("history limit must be >= 0")
	}
	if req.HistoryLimit == 0 {
		req.HistoryLimit = DefaultFitHistoryLimit
	}
	if req.Network.OutputTransfer == "" {
		req.Network.OutputTransfer = "purelin"
	}
	req.Network = req.Network.withDefaults()

	ts, err := lookupTrainingSet(req.Scape)
	if err != nil {
		return FitSummary{}, err
	}
	inputs, targets := ts.TrainingSet()
	net, err := denseFactory(req.Network, len(inputs[0]), len(targets[0]))(rand.New(rand.NewSource(req.Seed)))
	if err != nil {
		return FitSummary{}, err
	}
	points := make([]nn.TrainingPoint, len(inputs))
	for i := range inputs {
		points[i] = nn.TrainingPoint{Input: inputs[i], Expected: targets[i]}
	}

	history := &passWindow{limit: req.HistoryLimit}
	net.SetBatchObserver(history.record)

	run := storage.Stamp(model.RunRecord{
		ID:        req.RunID,
		Kind:      model.RunKindFit,
		Scape:     req.Scape,
		Seed:      req.Seed,
		StartedAt: c.now().UTC(),
	})
	if err := c.store.SaveRun(ctx, run); err != nil {
		return FitSummary{}, err
	}
	c.log.Info("fit started", "run_id", run.ID, "scape", run.Scape, "rate", req.LearningRate, "min_r_squared", req.MinRSquared)

	result, err := net.BatchTrain(ctx, points, req.MinRSquared, req.LearningRate)
	converged := err == nil
	if err != nil && !errors.Is(err, nn.ErrIterationLimit) {
		return FitSummary{}, err
	}

	run.Passes = result.Passes
	run.Converged = converged
	run.BestFitness = minRSquared(result.RSquared)
	run.FinishedAt = c.now().UTC()
	if err := c.store.SaveRun(ctx, run); err != nil {
		return FitSummary{}, err
	}
	if err := c.store.SaveFitHistory(ctx, run.ID, history.passes); err != nil {
		return FitSummary{}, err
	}
	c.log.Info("fit finished", "run_id", run.ID, "passes", run.Passes, "converged", converged, "r_squared", run.BestFitness)

	return FitSummary{
		RunID:     run.ID,
		Passes:    result.Passes,
		RSquared:  result.RSquared,
		Converged: converged,
		Network:   net,
	}, nil
}

// passWindow keeps the most recent limit batch passes.
type passWindow struct {
	limit  int
	passes []FitPass
}

func (w *passWindow) record(p nn.BatchProgress) {
	w.passes = append(w.passes, FitPass{Pass: p.Pass, RSquared: append([]float64(nil), p.RSquared...)})
	if len(w.passes) > w.limit {
		w.passes = w.passes[len(w.passes)-w.limit:]
	}
}

func minRSquared(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	out := values[0]
	for _, v := range values[1:] {
		if v < out || math.IsNaN(v) {
			out = v
		}
	}
	return out
}

// Runs lists recorded runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if req.Limit == 0 {
		req.Limit = 20
	}
	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, min(len(runs), req.Limit))
	for i := len(runs) - 1; i >= 0 && len(out) < req.Limit; i-- {
		if req.Kind != "" && runs[i].Kind != req.Kind {
			continue
		}
		out = append(out, runs[i])
	}
	return out, nil
}

func (c *Client) resolveRunID(ctx context.Context, req HistoryRequest, kind model.RunKind) (string, error) {
	if req.RunID != "" && req.Latest {
		return "", errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return "", errors.New("limit must be >= 0")
	}
	if req.RunID != "" {
		return req.RunID, nil
	}
	if !req.Latest {
		return "", errors.New("history requires run id or latest")
	}
	runs, err := c.Runs(ctx, RunsRequest{Limit: 1, Kind: kind})
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", fmt.Errorf("no %s runs available", kind)
	}
	return runs[0].ID, nil
}

func (c *Client) Generations(ctx context.Context, req HistoryRequest) ([]GenerationRecord, error) {
	runID, err := c.resolveRunID(ctx, req, model.RunKindEvolve)
	if err != nil {
		return nil, err
	}
	generations, ok, err := c.store.GetGenerations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("generation history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(generations) > req.Limit {
		generations = generations[:req.Limit]
	}
	return generations, nil
}

func (c *Client) FitHistory(ctx context.Context, req HistoryRequest) ([]FitPass, error) {
	runID, err := c.resolveRunID(ctx, req, model.RunKindFit)
	if err != nil {
		return nil, err
	}
	passes, ok, err := c.store.GetFitHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("fit history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(passes) > req.Limit {
		passes = passes[:req.Limit]
	}
	return passes, nil
}
