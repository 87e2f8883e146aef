package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gridplan/internal/model"
	"gridplan/internal/score"
	"gridplan/internal/stats"
	"gridplan/internal/storage"
	"gridplan/pkg/gridplan"
)

const artifactsDir = "runs"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
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
	case "run":
		return runSearch(ctx, args[1:])
	case "replay":
		return runReplay(ctx, args[1:])
	case "score":
		return runScore(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: gridplanctl <init|run|replay|score|runs|best|export> [flags]", msg)
}

func openStore(ctx context.Context, kind, dbPath string) (storage.Store, error) {
	store, err := storage.NewStore(kind, dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "gridplan.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(ctx, *storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	runID := fs.String("run-id", "", "explicit run id (optional)")
	iterations := fs.Int("iterations", 1000, "search iteration count")
	workers := fs.Int("workers", 1, "parallel worker count (1 = sequential, reproducible)")
	seed := fs.Int64("seed", 1, "rng seed")
	startYear := fs.Int("start-year", 0, "first simulated year (0 uses default)")
	endYear := fs.Int("end-year", 0, "last simulated year (0 uses default)")
	checkpointDir := fs.String("checkpoint-dir", "checkpoints", "checkpoint base directory (empty disables)")
	checkpointInterval := fs.Int("checkpoint-interval", 100, "iterations between checkpoints")
	continueRun := fs.Bool("continue", false, "resume from the newest checkpoint")
	fullFidelity := fs.Bool("full-fidelity", false, "disable fast mode for every iteration")
	energySales := fs.Bool("energy-sales", false, "credit surplus power sales against yearly cost")
	mode := fs.String("mode", score.ModeDefault, "optimization mode: default|cost_only")
	siteScorer := fs.String("site-scorer", "proximity", "site scorer: proximity|terrain")
	seedData := fs.String("seed-data", "", "directory with settlements.csv and generators.csv (empty uses built-in scenario)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "gridplan.db", "sqlite database path")
	quiet := fs.Bool("quiet", false, "suppress progress output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(ctx, *storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	client := gridplan.NewClient(gridplan.Options{Store: store, ArtifactsDir: artifactsDir})

	var progress func(int, float64)
	if !*quiet {
		progress = func(completed int, bestScore float64) {
			if completed%100 == 0 {
				fmt.Printf("iteration %d best_score=%.6f\n", completed, bestScore)
			}
		}
	}

	result, err := client.Run(ctx, gridplan.RunRequest{
		RunID:              *runID,
		Iterations:         *iterations,
		Workers:            *workers,
		Seed:               *seed,
		StartYear:          *startYear,
		EndYear:            *endYear,
		CheckpointDir:      *checkpointDir,
		CheckpointInterval: *checkpointInterval,
		Continue:           *continueRun,
		ForceFullFidelity:  *fullFidelity,
		EnableEnergySales:  *energySales,
		OptimizationMode:   *mode,
		SiteScorer:         *siteScorer,
		SeedDataDir:        *seedData,
		Progress:           progress,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run %s completed=%d failed=%d best_score=%.6f artifacts=%s\n",
		result.RunID, result.Completed, result.Failed, result.Best.Score, result.ArtifactsDir)
	if result.HasBest {
		m := result.Best.Metrics
		fmt.Printf("best: net_emissions=%.0f t, opinion=%.3f, total_cost=%.3e, reliability=%.2f%%\n",
			m.FinalNetEmissions, m.AveragePublicOpinion, m.TotalCost, m.PowerReliability)
	}
	return nil
}

func runReplay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id to replay")
	siteScorer := fs.String("site-scorer", "proximity", "site scorer: proximity|terrain")
	seedData := fs.String("seed-data", "", "seed data directory")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "gridplan.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("replay requires -run-id")
	}

	store, err := openStore(ctx, *storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	client := gridplan.NewClient(gridplan.Options{Store: store, ArtifactsDir: artifactsDir})
	result, err := client.Replay(ctx, *runID, *seedData, *siteScorer)
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"run_id":  *runID,
		"score":   result.Score,
		"metrics": result.Metrics,
	})
}

func runScore(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	mode := fs.String("mode", score.ModeDefault, "optimization mode: default|cost_only")
	metricsPath := fs.String("metrics", "", "path to a simulation metrics JSON file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *metricsPath == "" {
		return usageError("score requires -metrics")
	}

	data, err := os.ReadFile(*metricsPath)
	if err != nil {
		return err
	}
	var m model.SimulationMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	scorer := score.New(*mode)
	fmt.Printf("score=%.6f mode=%s\n", scorer.ScoreMetrics(m), *mode)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "gridplan.db", "sqlite database path")
	fromIndex := fs.Bool("from-index", false, "list from the artifact run index instead of the store")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *fromIndex {
		entries, err := stats.ListRunIndex(artifactsDir)
		if err != nil {
			return err
		}
		return printJSON(entries)
	}

	store, err := openStore(ctx, *storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	client := gridplan.NewClient(gridplan.Options{Store: store, ArtifactsDir: artifactsDir})
	records, err := client.ListRuns(ctx)
	if err != nil {
		return err
	}
	return printJSON(records)
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "gridplan.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("best requires -run-id")
	}

	store, err := openStore(ctx, *storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	client := gridplan.NewClient(gridplan.Options{Store: store, ArtifactsDir: artifactsDir})
	best, ok, err := client.BestStrategy(ctx, *runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no best strategy persisted for run %s", *runID)
	}
	return printJSON(best)
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id to export")
	outDir := fs.String("out", "exports", "destination directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return usageError("export requires -run-id")
	}

	dst, err := stats.ExportRunArtifacts(artifactsDir, *runID, *outDir)
	if err != nil {
		return err
	}
	fmt.Printf("exported run %s to %s\n", *runID, dst)
	return nil
}

func printJSON(value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
