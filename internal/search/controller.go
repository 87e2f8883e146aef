// Package search orchestrates many simulation careers over a shared
// action-weight store: parallel iteration, best-run tracking, periodic
// checkpointing, and forced full-fidelity verification of the best strategy.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gridplan/internal/grid"
	"gridplan/internal/model"
	"gridplan/internal/score"
	"gridplan/internal/sim"
	"gridplan/internal/weights"
)

// Config parameterizes one search. Zero values backfill to defaults.
type Config struct {
	Iterations         int
	Workers            int
	Seed               int64
	StartYear          int
	EndYear            int
	CheckpointBase     string
	CheckpointInterval int
	Continue           bool
	// ForceFullFidelity disables fast mode for every iteration.
	ForceFullFidelity bool
	EnableEnergySales  bool
	OptimizationMode   string
	MaxDeficitAttempts int
	// VerifyFraction is the share of trailing iterations always run at full
	// fidelity. Defaults to 0.1.
	VerifyFraction float64
	// Progress, when set, is called after every absorbed iteration.
	Progress func(completed int, bestScore float64)
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.StartYear == 0 {
		c.StartYear = grid.StartYear
	}
	if c.EndYear == 0 {
		c.EndYear = grid.EndYear
	}
	if c.CheckpointInterval == 0 {
		c.CheckpointInterval = 100
	}
	if c.VerifyFraction == 0 {
		c.VerifyFraction = 0.1
	}
	if c.OptimizationMode == "" {
		c.OptimizationMode = score.ModeDefault
	}
	return c
}

// Result is what one controller run hands back.
type Result struct {
	Best          model.SimulationResult
	HasBest       bool
	Completed     int
	Failed        int
	CheckpointDir string
	ResumedFrom   int
}

// Controller owns the shared weight store and the base world state. World
// copies are cloned per iteration; the store is the one shared mutable
// piece, guarded by mu. Sequential runs with a fixed seed are reproducible;
// under parallelism only the set of outcomes is deterministic, not the
// interleaving of weight updates.
type Controller struct {
	cfg      Config
	baseGrid *grid.Grid

	mu      sync.RWMutex
	shared  *weights.Store
	best    model.SimulationResult
	hasBest bool
}

// NewController validates configuration up front; configuration errors are
// the only fatal startup class.
func NewController(cfg Config, static *grid.StaticData, siter grid.SiteScorer) (*Controller, error) {
	cfg = cfg.withDefaults()
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", cfg.Iterations)
	}
	if cfg.EndYear < cfg.StartYear {
		return nil, fmt.Errorf("end year %d before start year %d", cfg.EndYear, cfg.StartYear)
	}
	if static == nil || len(static.Settlements) == 0 {
		return nil, fmt.Errorf("seed data with at least one settlement is required")
	}

	shared := weights.New(weights.Config{
		StartYear:        cfg.StartYear,
		EndYear:          cfg.EndYear,
		OptimizationMode: cfg.OptimizationMode,
		Seed:             cfg.Seed,
	})
	return &Controller{
		cfg:      cfg,
		baseGrid: grid.New(static, siter),
		shared:   shared,
	}, nil
}

// Weights exposes the shared store for inspection after a run.
func (c *Controller) Weights() *weights.Store {
	return c.shared
}

type iterationOutcome struct {
	index    int
	local    *weights.Store
	result   model.SimulationResult
	err      error
	fast     bool
	replayed bool
}

// Run executes the configured number of iterations and returns the best run
// found. A cancelled context stops launching new iterations; in-flight ones
// finish and are absorbed.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	var res Result

	if c.cfg.Continue && c.cfg.CheckpointBase != "" {
		res.ResumedFrom = c.resume()
	}

	if c.cfg.CheckpointBase != "" {
		dir, err := NewCheckpointDir(c.cfg.CheckpointBase)
		if err != nil {
			return res, err
		}
		res.CheckpointDir = dir
	}

	ckptDir := res.CheckpointDir
	total := c.cfg.Iterations
	fullFrom := total - int(float64(total)*c.cfg.VerifyFraction)

	jobs := make(chan int)
	outcomes := make(chan iterationOutcome)

	workerCount := c.cfg.Workers
	if workerCount > total {
		workerCount = total
	}

	var wg sync.WaitGroup
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			var lastLocal *weights.Store
			for k := range jobs {
				outcome := c.runIteration(k, k >= fullFrom)
				lastLocal = outcome.local
				outcomes <- outcome
			}
			if ckptDir != "" && lastLocal != nil {
				if err := WriteWorker(ckptDir, workerID, lastLocal.Snapshot()); err != nil {
					slog.Warn("worker checkpoint write failed", "worker", workerID, "err", err)
				}
			}
		}(w)
	}

	go func() {
		defer close(jobs)
		for k := 0; k < total; k++ {
			select {
			case <-ctx.Done():
				return
			case jobs <- k:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for outcome := range outcomes {
		res.Completed++
		c.absorb(outcome, &res)

		if c.cfg.Progress != nil {
			c.mu.RLock()
			best := c.shared.BestScore()
			c.mu.RUnlock()
			c.cfg.Progress(res.Completed, best)
		}

		if res.CheckpointDir != "" && res.Completed%c.cfg.CheckpointInterval == 0 {
			c.checkpoint(res.CheckpointDir, res.ResumedFrom+res.Completed)
		}
	}

	if res.CheckpointDir != "" {
		c.checkpoint(res.CheckpointDir, res.ResumedFrom+res.Completed)
	}

	c.mu.RLock()
	res.Best = c.best
	res.HasBest = c.hasBest
	c.mu.RUnlock()
	return res, nil
}

// runIteration executes one isolated career against a cloned world and a
// cloned weight store.
func (c *Controller) runIteration(k int, fullFidelity bool) iterationOutcome {
	c.mu.Lock()
	forceReplay := c.hasBest && c.shared.TakeForceReplay()
	c.mu.Unlock()

	c.mu.RLock()
	local := c.shared.Clone(int64(k) + 1)
	c.mu.RUnlock()

	fast := !fullFidelity && !c.cfg.ForceFullFidelity && !forceReplay
	cfg := sim.Config{
		StartYear:          c.cfg.StartYear,
		EndYear:            c.cfg.EndYear,
		FastMode:           fast,
		EnableEnergySales:  c.cfg.EnableEnergySales,
		MaxDeficitAttempts: c.cfg.MaxDeficitAttempts,
		Scorer:             score.New(c.cfg.OptimizationMode),
	}

	world := c.baseGrid.Clone()

	if forceReplay {
		result, err := sim.RunBest(cfg, world, local)
		return iterationOutcome{index: k, local: local, result: result, err: err, replayed: true}
	}

	driver, err := sim.New(cfg, world, local)
	if err != nil {
		return iterationOutcome{index: k, local: local, err: err}
	}
	result, err := driver.Run()
	return iterationOutcome{index: k, local: local, result: result, err: err, fast: fast}
}

// absorb commits one iteration's outcome into the shared store. All weight
// updates for an iteration land atomically under the write lock, so a
// checkpoint can never observe a half-applied update.
func (c *Controller) absorb(outcome iterationOutcome, res *Result) {
	if outcome.err != nil {
		res.Failed++
		slog.Warn("iteration failed", "iteration", outcome.index, "err", outcome.err)
		c.mu.Lock()
		c.shared.FinishIteration(false)
		c.mu.Unlock()
		return
	}

	if outcome.replayed {
		c.mu.Lock()
		c.shared.ForceBest(outcome.result)
		c.best = outcome.result
		c.hasBest = true
		c.shared.FinishIteration(false)
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.shared.AdoptLearnedTables(outcome.local)
	c.shared.TransferRecordedActions(outcome.local)
	improved := c.shared.UpdateBestStrategy(outcome.result)
	if improved {
		c.best = outcome.result
		c.hasBest = true
	} else {
		c.shared.ApplyContrastLearning(outcome.result.Score)
		c.shared.ApplyDeficitContrastLearning(outcome.result.Score)
	}
	c.shared.RecordExperience(outcome.result.Actions, outcome.result.Score)
	c.shared.FinishIteration(improved)
	c.mu.Unlock()

	// A fast-mode best claim is only trusted after a full-fidelity replay.
	if improved && outcome.fast {
		c.verifyBest(outcome.index)
	}
}

// verifyBest replays the current best strategy at full fidelity and
// installs the verified result, whatever its score.
func (c *Controller) verifyBest(k int) {
	c.mu.RLock()
	local := c.shared.Clone(-int64(k) - 1)
	c.mu.RUnlock()

	cfg := sim.Config{
		StartYear:          c.cfg.StartYear,
		EndYear:            c.cfg.EndYear,
		EnableEnergySales:  c.cfg.EnableEnergySales,
		MaxDeficitAttempts: c.cfg.MaxDeficitAttempts,
		Scorer:             score.New(c.cfg.OptimizationMode),
	}
	verified, err := sim.RunBest(cfg, c.baseGrid.Clone(), local)
	if err != nil {
		slog.Warn("best-strategy verification failed", "err", err)
		return
	}

	c.mu.Lock()
	c.shared.ForceBest(verified)
	c.best = verified
	c.hasBest = true
	c.mu.Unlock()
}

// resume restores the newest checkpoint under the base directory, merging
// per-worker snapshots. A failed load logs and starts fresh.
func (c *Controller) resume() int {
	state, ok, err := LoadLatestCheckpoint(c.cfg.CheckpointBase)
	if err != nil {
		slog.Warn("checkpoint load failed, starting fresh", "dir", c.cfg.CheckpointBase, "err", err)
		return 0
	}
	if !ok {
		return 0
	}
	if err := c.shared.Restore(state.Latest); err != nil {
		slog.Warn("checkpoint restore failed, starting fresh", "dir", state.Dir, "err", err)
		return 0
	}
	for _, snap := range state.Workers {
		c.shared.Merge(snap)
	}
	if metrics, ok := c.shared.BestMetrics(); ok {
		c.best = model.SimulationResult{
			Metrics: metrics,
			Score:   c.shared.BestScore(),
			Actions: c.shared.BestActions(),
		}
		c.hasBest = true
	}
	slog.Info("resumed from checkpoint", "dir", state.Dir, "iteration", state.Iteration)
	return state.Iteration
}

// checkpoint persists the shared snapshot; failures are logged, never fatal.
func (c *Controller) checkpoint(dir string, iteration int) {
	c.mu.RLock()
	snap := c.shared.Snapshot()
	c.mu.RUnlock()

	if err := WriteLatest(dir, snap, iteration); err != nil {
		slog.Warn("checkpoint write failed", "dir", dir, "iteration", iteration, "err", err)
	}
}
