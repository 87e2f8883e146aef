package weights

import (
	"math"
	"testing"

	"gridplan/internal/model"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := New(testConfig(9))
	key := addWindKey()
	s.Reinforce(2025, key, 0.8)
	s.ReinforceDeficit(2026, key, -0.3)
	s.ReinforceActionCount(2027, 2, 0.5)
	s.UpdateBestStrategy(model.SimulationResult{
		Score:   1.25,
		Metrics: model.SimulationMetrics{PowerReliability: 99, TotalCost: 1e9},
		Actions: map[int][]model.Action{2025: {{Type: model.ActionAddGenerator, Generator: model.GeneratorOnshoreWind, Count: 1}}},
	})
	s.RecordExperience(map[int][]model.Action{2025: {model.NoOp()}}, 0.4)
	for i := 0; i < 3; i++ {
		s.FinishIteration(false)
	}

	snap := s.Snapshot()
	if snap.SchemaVersion != model.CurrentSchemaVersion || snap.CodecVersion != model.CurrentCodecVersion {
		t.Fatalf("snapshot versions = %d/%d", snap.SchemaVersion, snap.CodecVersion)
	}

	restored := New(testConfig(9))
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	for year := 2025; year <= 2030; year++ {
		for k, want := range s.weights[year] {
			got, ok := restored.Weight(year, k)
			if !ok || math.Abs(got-want) > 1e-15 {
				t.Fatalf("year %d key %q: got %v, want %v", year, k, got, want)
			}
		}
		for k, want := range s.deficitWeights[year] {
			got, ok := restored.DeficitWeight(year, k)
			if !ok || math.Abs(got-want) > 1e-15 {
				t.Fatalf("year %d deficit key %q: got %v, want %v", year, k, got, want)
			}
		}
		for n, want := range s.countWeights[year] {
			got, ok := restored.ActionCountWeight(year, n)
			if !ok || math.Abs(got-want) > 1e-15 {
				t.Fatalf("year %d count %d: got %v, want %v", year, n, got, want)
			}
		}
	}
	if restored.IterationCount() != s.IterationCount() {
		t.Errorf("iteration count = %d, want %d", restored.IterationCount(), s.IterationCount())
	}
	if restored.StaleIterations() != s.StaleIterations() {
		t.Errorf("stale = %d, want %d", restored.StaleIterations(), s.StaleIterations())
	}
	if restored.BestScore() != s.BestScore() {
		t.Errorf("best score = %v, want %v", restored.BestScore(), s.BestScore())
	}
	if len(restored.ReplayBuffer()) != 1 {
		t.Errorf("replay buffer length = %d, want 1", len(restored.ReplayBuffer()))
	}
	if len(restored.BestActionsForYear(2025)) != 1 {
		t.Errorf("best actions not restored")
	}
}

func TestRestoreRejectsVersionMismatch(t *testing.T) {
	s := New(testConfig(1))
	snap := s.Snapshot()
	snap.SchemaVersion = model.CurrentSchemaVersion + 1
	if err := New(testConfig(1)).Restore(snap); err == nil {
		t.Fatal("want version mismatch error, got nil")
	}
}

func TestRestoreRejectsEmptyTables(t *testing.T) {
	s := New(testConfig(1))
	snap := s.Snapshot()
	snap.Weights = nil
	if err := New(testConfig(1)).Restore(snap); err == nil {
		t.Fatal("want error for missing weight tables, got nil")
	}
}

func TestRestoreBackfillsMissingDeficitTables(t *testing.T) {
	s := New(testConfig(1))
	snap := s.Snapshot()
	snap.DeficitWeights = nil

	restored := New(testConfig(1))
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	key := model.Action{Type: model.ActionAddGenerator, Generator: model.GeneratorGasPeaker}.Key()
	if _, ok := restored.DeficitWeight(2025, key); !ok {
		t.Error("deficit priors not backfilled")
	}
}

func TestRestoreBackfillsMissingCountTables(t *testing.T) {
	s := New(testConfig(1))
	snap := s.Snapshot()
	snap.ActionCountWeights = nil

	restored := New(testConfig(1))
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	w, ok := restored.ActionCountWeight(2025, 0)
	if !ok || w != 1 {
		t.Errorf("count prior = %v ok=%v, want backfilled 1", w, ok)
	}
}

func TestMergeAveragesWeightsAndAdoptsBetterBest(t *testing.T) {
	a := New(testConfig(1))
	b := New(testConfig(2))
	key := addWindKey()

	for i := 0; i < 5; i++ {
		b.Reinforce(2025, key, 1)
	}
	b.UpdateBestStrategy(model.SimulationResult{
		Score:   3.0,
		Metrics: model.SimulationMetrics{PowerReliability: 100},
		Actions: map[int][]model.Action{2025: {model.NoOp()}},
	})
	a.UpdateBestStrategy(model.SimulationResult{
		Score:   1.0,
		Metrics: model.SimulationMetrics{PowerReliability: 90},
		Actions: map[int][]model.Action{2025: {model.NoOp()}},
	})

	wa, _ := a.Weight(2025, key)
	wb, _ := b.Weight(2025, key)
	a.Merge(b.Snapshot())

	got, _ := a.Weight(2025, key)
	want := (wa + wb) / 2
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("merged weight = %v, want %v", got, want)
	}
	if a.BestScore() != 3.0 {
		t.Errorf("merged best score = %v, want 3.0", a.BestScore())
	}
}

func TestMergeKeepsBetterLocalBest(t *testing.T) {
	a := New(testConfig(1))
	b := New(testConfig(2))
	a.UpdateBestStrategy(model.SimulationResult{
		Score:   5.0,
		Metrics: model.SimulationMetrics{PowerReliability: 100},
		Actions: map[int][]model.Action{2025: {model.NoOp()}},
	})
	b.UpdateBestStrategy(model.SimulationResult{
		Score:   2.0,
		Metrics: model.SimulationMetrics{PowerReliability: 80},
		Actions: map[int][]model.Action{2025: {model.NoOp()}},
	})

	a.Merge(b.Snapshot())
	if a.BestScore() != 5.0 {
		t.Errorf("best score = %v, want 5.0", a.BestScore())
	}
}
