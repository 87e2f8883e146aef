// Package gridplan is the public client API for running grid investment
// strategy searches.
package gridplan

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gridplan/internal/dataload"
	"gridplan/internal/grid"
	"gridplan/internal/model"
	"gridplan/internal/score"
	"gridplan/internal/search"
	"gridplan/internal/sim"
	"gridplan/internal/siting"
	"gridplan/internal/stats"
	"gridplan/internal/storage"
	"gridplan/internal/weights"
)

// Options configures a Client.
type Options struct {
	Store        storage.Store
	ArtifactsDir string
}

// Client runs searches and persists their outcomes.
type Client struct {
	store        storage.Store
	artifactsDir string
}

// NewClient builds a client. A nil store falls back to the in-memory backend.
func NewClient(opts Options) *Client {
	store := opts.Store
	if store == nil {
		store = storage.NewMemoryStore()
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = "runs"
	}
	return &Client{store: store, artifactsDir: artifactsDir}
}

// RunRequest describes one search. Zero values backfill to defaults.
type RunRequest struct {
	RunID              string
	Iterations         int
	Workers            int
	Seed               int64
	StartYear          int
	EndYear            int
	CheckpointDir      string
	CheckpointInterval int
	Continue           bool
	ForceFullFidelity  bool
	EnableEnergySales  bool
	OptimizationMode   string
	SiteScorer         string
	SeedDataDir        string
	Progress           func(completed int, bestScore float64)
}

// RunResult is the outcome of one search run.
type RunResult struct {
	RunID         string
	Best          model.SimulationResult
	HasBest       bool
	Completed     int
	Failed        int
	CheckpointDir string
	ArtifactsDir  string
}

// Run executes a full search: seed data load, controller run, artifact
// write, and persistence of the run record and best strategy.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if req.Iterations <= 0 {
		req.Iterations = 100
	}
	if req.Workers <= 0 {
		req.Workers = 1
	}
	if req.Seed == 0 {
		req.Seed = 1
	}
	if req.StartYear == 0 {
		req.StartYear = grid.StartYear
	}
	if req.EndYear == 0 {
		req.EndYear = grid.EndYear
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}

	static := dataload.Load(req.SeedDataDir)
	siter, err := siting.NewScorer(req.SiteScorer, static, req.Seed)
	if err != nil {
		return RunResult{}, err
	}

	var scores []float64
	progress := func(completed int, bestScore float64) {
		scores = append(scores, bestScore)
		if req.Progress != nil {
			req.Progress(completed, bestScore)
		}
	}

	controller, err := search.NewController(search.Config{
		Iterations:         req.Iterations,
		Workers:            req.Workers,
		Seed:               req.Seed,
		StartYear:          req.StartYear,
		EndYear:            req.EndYear,
		CheckpointBase:     req.CheckpointDir,
		CheckpointInterval: req.CheckpointInterval,
		Continue:           req.Continue,
		ForceFullFidelity:  req.ForceFullFidelity,
		EnableEnergySales:  req.EnableEnergySales,
		OptimizationMode:   req.OptimizationMode,
		Progress:           progress,
	}, static, siter)
	if err != nil {
		return RunResult{}, err
	}

	outcome, err := controller.Run(ctx)
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{
		RunID:         req.RunID,
		Best:          outcome.Best,
		HasBest:       outcome.HasBest,
		Completed:     outcome.Completed,
		Failed:        outcome.Failed,
		CheckpointDir: outcome.CheckpointDir,
	}

	artifactsDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:              req.RunID,
			StartYear:          req.StartYear,
			EndYear:            req.EndYear,
			Iterations:         req.Iterations,
			Workers:            req.Workers,
			Seed:               req.Seed,
			CheckpointDir:      req.CheckpointDir,
			CheckpointInterval: req.CheckpointInterval,
			Continued:          req.Continue,
			ForceFullFidelity:  req.ForceFullFidelity,
			EnableEnergySales:  req.EnableEnergySales,
			OptimizationMode:   req.OptimizationMode,
			SiteScorer:         req.SiteScorer,
			SeedDataPath:       req.SeedDataDir,
		},
		BestScore:    outcome.Best.Score,
		BestMetrics:  outcome.Best.Metrics,
		Yearly:       outcome.Best.Yearly,
		Actions:      outcome.Best.Actions,
		Deficit:      outcome.Best.DeficitActions,
		ScoreHistory: scores,
		Failed:       outcome.Failed,
	})
	if err != nil {
		return result, fmt.Errorf("write run artifacts: %w", err)
	}
	result.ArtifactsDir = artifactsDir

	createdAt := time.Now().UTC().Format(time.RFC3339)
	record := model.RunRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: model.CurrentSchemaVersion,
			CodecVersion:  model.CurrentCodecVersion,
		},
		ID:           req.RunID,
		Seed:         req.Seed,
		Iterations:   req.Iterations,
		Workers:      req.Workers,
		BestScore:    outcome.Best.Score,
		BestMetrics:  outcome.Best.Metrics,
		CreatedAtUTC: createdAt,
	}
	if err := c.store.SaveRunRecord(ctx, record); err != nil {
		return result, fmt.Errorf("save run record: %w", err)
	}
	if outcome.HasBest {
		if err := c.store.SaveBestStrategy(ctx, req.RunID, outcome.Best); err != nil {
			return result, fmt.Errorf("save best strategy: %w", err)
		}
	}
	if err := c.store.SaveWeightsSnapshot(ctx, req.RunID, controller.Weights().Snapshot()); err != nil {
		return result, fmt.Errorf("save weights snapshot: %w", err)
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:        req.RunID,
		Iterations:   req.Iterations,
		Workers:      req.Workers,
		Seed:         req.Seed,
		Mode:         req.OptimizationMode,
		BestScore:    outcome.Best.Score,
		CreatedAtUTC: createdAt,
	}); err != nil {
		return result, fmt.Errorf("append run index: %w", err)
	}

	return result, nil
}

// Replay re-executes a persisted run's best strategy deterministically at
// full fidelity and returns the fresh result.
func (c *Client) Replay(ctx context.Context, runID, seedDataDir, siteScorer string) (model.SimulationResult, error) {
	snap, ok, err := c.store.GetWeightsSnapshot(ctx, runID)
	if err != nil {
		return model.SimulationResult{}, err
	}
	if !ok {
		return model.SimulationResult{}, fmt.Errorf("no weights snapshot for run %s", runID)
	}

	record, ok, err := c.store.GetRunRecord(ctx, runID)
	if err != nil {
		return model.SimulationResult{}, err
	}
	if !ok {
		return model.SimulationResult{}, fmt.Errorf("no run record for %s", runID)
	}

	static := dataload.Load(seedDataDir)
	siter, err := siting.NewScorer(siteScorer, static, record.Seed)
	if err != nil {
		return model.SimulationResult{}, err
	}

	store := weights.New(weights.Config{
		StartYear:        snap.StartYear,
		EndYear:          snap.EndYear,
		OptimizationMode: snap.OptimizationMode,
		Seed:             record.Seed,
	})
	if err := store.Restore(snap); err != nil {
		return model.SimulationResult{}, err
	}

	cfg := sim.Config{
		StartYear: snap.StartYear,
		EndYear:   snap.EndYear,
		Scorer:    score.New(snap.OptimizationMode),
	}
	return sim.RunBest(cfg, grid.New(static, siter).Clone(), store)
}

// ListRuns returns persisted run records, newest first.
func (c *Client) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	return c.store.ListRunRecords(ctx)
}

// BestStrategy loads a run's persisted best strategy.
func (c *Client) BestStrategy(ctx context.Context, runID string) (model.SimulationResult, bool, error) {
	return c.store.GetBestStrategy(ctx, runID)
}

// Weights loads a run's persisted weight snapshot.
func (c *Client) Weights(ctx context.Context, runID string) (model.WeightsSnapshot, bool, error) {
	return c.store.GetWeightsSnapshot(ctx, runID)
}
