package weights

import (
	"fmt"
	"math"

	"gridplan/internal/model"
)

// Snapshot serializes the full learned state for checkpointing. Weight
// tables round-trip exactly: Restore(Snapshot()) reproduces them.
func (s *Store) Snapshot() model.WeightsSnapshot {
	snap := model.WeightsSnapshot{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: model.CurrentSchemaVersion,
			CodecVersion:  model.CurrentCodecVersion,
		},
		StartYear:                    s.cfg.StartYear,
		EndYear:                      s.cfg.EndYear,
		Weights:                      copyTables(s.weights),
		DeficitWeights:               copyTables(s.deficitWeights),
		ActionCountWeights:           copyCountTables(s.countWeights),
		LearningRate:                 s.cfg.LearningRate,
		ExplorationRate:              s.exploration,
		IterationCount:               s.iterationCount,
		IterationsWithoutImprovement: s.stale,
		BestActions:                  copyActions(s.bestActions),
		BestDeficitActions:           copyActions(s.bestDeficitActions),
		BestWeights:                  copyTables(s.bestWeights),
		ReplayBuffer:                 append([]model.Experience(nil), s.replay...),
		OptimizationMode:             s.cfg.OptimizationMode,
	}
	if math.IsInf(s.bestScore, -1) {
		snap.BestScore = 0
	} else {
		snap.BestScore = s.bestScore
	}
	if s.bestMetrics != nil {
		m := *s.bestMetrics
		snap.BestMetrics = &m
	}
	return snap
}

// Restore overwrites the learned state from a snapshot. Configuration that
// shapes behavior (learning rate, mode, horizon) stays with the live
// config; only learned state is taken from the snapshot.
func (s *Store) Restore(snap model.WeightsSnapshot) error {
	if snap.SchemaVersion != model.CurrentSchemaVersion || snap.CodecVersion != model.CurrentCodecVersion {
		return fmt.Errorf("weights snapshot version mismatch: schema=%d codec=%d", snap.SchemaVersion, snap.CodecVersion)
	}
	if snap.Weights == nil {
		return fmt.Errorf("weights snapshot has no weight tables")
	}
	s.weights = copyTables(snap.Weights)
	s.deficitWeights = copyTables(snap.DeficitWeights)
	if s.deficitWeights == nil {
		s.deficitWeights = make(map[int]map[model.ActionKey]float64)
		for year := s.cfg.StartYear; year <= s.cfg.EndYear; year++ {
			s.deficitWeights[year] = initialDeficitWeights()
		}
	}
	s.countWeights = copyCountTables(snap.ActionCountWeights)
	if s.countWeights == nil {
		s.countWeights = make(map[int][]float64)
		for year := s.cfg.StartYear; year <= s.cfg.EndYear; year++ {
			s.countWeights[year] = initialCountWeights()
		}
	}
	s.iterationCount = snap.IterationCount
	s.stale = snap.IterationsWithoutImprovement
	if snap.ExplorationRate > 0 {
		s.exploration = snap.ExplorationRate
	}
	if snap.BestMetrics != nil {
		m := *snap.BestMetrics
		s.bestMetrics = &m
		s.bestScore = snap.BestScore
	}
	s.bestActions = copyActions(snap.BestActions)
	s.bestDeficitActions = copyActions(snap.BestDeficitActions)
	s.bestWeights = copyTables(snap.BestWeights)
	s.replay = append([]model.Experience(nil), snap.ReplayBuffer...)
	if len(s.replay) > s.cfg.ReplayCapacity {
		s.replay = s.replay[len(s.replay)-s.cfg.ReplayCapacity:]
	}
	return nil
}

// Merge folds another snapshot into the live tables by averaging weights
// key-by-key and adopting the better best strategy. Used on resume to
// combine per-worker checkpoint files.
func (s *Store) Merge(snap model.WeightsSnapshot) {
	mergeTables(s.weights, snap.Weights)
	mergeTables(s.deficitWeights, snap.DeficitWeights)
	mergeCountTables(s.countWeights, snap.ActionCountWeights)
	if snap.BestMetrics != nil && snap.BestScore > s.bestScore {
		m := *snap.BestMetrics
		s.bestMetrics = &m
		s.bestScore = snap.BestScore
		s.bestActions = copyActions(snap.BestActions)
		s.bestDeficitActions = copyActions(snap.BestDeficitActions)
		s.bestWeights = copyTables(snap.BestWeights)
	}
	if snap.IterationCount > s.iterationCount {
		s.iterationCount = snap.IterationCount
	}
}

func mergeCountTables(dst, src map[int][]float64) {
	for year, table := range src {
		d := dst[year]
		if len(d) != len(table) {
			dst[year] = append([]float64(nil), table...)
			continue
		}
		for n, w := range table {
			d[n] = (d[n] + w) / 2
		}
	}
}

func mergeTables(dst, src map[int]map[model.ActionKey]float64) {
	for year, table := range src {
		d := dst[year]
		if d == nil {
			d = make(map[model.ActionKey]float64, len(table))
			dst[year] = d
		}
		for key, w := range table {
			if cur, ok := d[key]; ok {
				d[key] = (cur + w) / 2
			} else {
				d[key] = w
			}
		}
	}
}
