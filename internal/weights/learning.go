package weights

import (
	"math"

	"gridplan/internal/model"
)

const (
	// contrastBoost is the base multiplier applied to best-run actions when
	// contrast learning fires.
	contrastBoost = 0.15
	// contrastPenalty is the base divergence penalty exponent input.
	contrastPenalty = 0.10
	// deficitSuccessBonus rewards recovery actions of a run that resolved
	// its deficits, scaled by the overall score improvement.
	deficitSuccessBonus = 0.1
)

// Reinforce applies the fixed-rate multiplicative update to one action key
// for one year: growth 1+lr*delta on improvement, decay 1/(1+lr*|delta|) on
// deterioration. The result is clamped into [MinWeight, MaxWeight] so a
// weight never vanishes and never saturates.
func (s *Store) Reinforce(year int, key model.ActionKey, delta float64) {
	s.reinforceTable(s.weights, year, key, delta)
}

// ReinforceDeficit applies the same rule to the deficit table.
func (s *Store) ReinforceDeficit(year int, key model.ActionKey, delta float64) {
	s.reinforceTable(s.deficitWeights, year, key, delta)
}

// ReinforceActionCount applies the same rule to the learned count table, so
// the store learns how many actions a year should take, not just which.
func (s *Store) ReinforceActionCount(year, count int, delta float64) {
	table := s.countWeights[year]
	if count < 0 || count >= len(table) {
		return
	}
	w := table[count]
	if delta > 0 {
		w *= 1 + s.cfg.LearningRate*delta
	} else if delta < 0 {
		w *= 1 / (1 + s.cfg.LearningRate*math.Abs(delta))
	}
	table[count] = s.clampWeight(w)
}

func (s *Store) reinforceTable(tables map[int]map[model.ActionKey]float64, year int, key model.ActionKey, delta float64) {
	table := tables[year]
	if table == nil {
		return
	}
	w, ok := table[key]
	if !ok {
		w = DefaultWeight
	}
	if delta > 0 {
		w *= 1 + s.cfg.LearningRate*delta
	} else if delta < 0 {
		w *= 1 / (1 + s.cfg.LearningRate*math.Abs(delta))
	}
	table[key] = s.clampWeight(w)
}

func (s *Store) clampWeight(w float64) float64 {
	if w < s.cfg.MinWeight {
		return s.cfg.MinWeight
	}
	if w > s.cfg.MaxWeight {
		return s.cfg.MaxWeight
	}
	return w
}

// stagnationFactor amplifies contrast corrections the longer the search has
// gone without improvement.
func (s *Store) stagnationFactor() float64 {
	return 1 + 0.2*math.Pow(float64(s.stale)/10.0, 1.8)
}

// ApplyContrastLearning nudges future samples toward the best-known run.
// Actions the best run took are boosted; actions the current run took that
// diverge from the best run at the same year are decayed, with the penalty
// scaled sub-linearly by how far the current score fell short and by the
// stagnation factor. The replay buffer's strongest run, when it also beats
// the current one, gets the same boost with no penalty pass.
func (s *Store) ApplyContrastLearning(currentScore float64) {
	if s.bestActions == nil || math.IsInf(s.bestScore, -1) {
		return
	}
	deterioration := s.bestScore - currentScore
	if deterioration <= 0 {
		return
	}
	penalty := contrastPenalty * math.Pow(deterioration, 0.3) * s.stagnationFactor()
	s.contrastTables(s.weights, s.runActions, s.bestActions, penalty)

	if exp, ok := s.bestExperience(); ok && exp.Score > currentScore {
		s.contrastTables(s.weights, nil, exp.Actions, 0)
	}
}

// ApplyDeficitContrastLearning runs the same correction on the deficit
// tables against the best run's recovery history.
func (s *Store) ApplyDeficitContrastLearning(currentScore float64) {
	if s.bestDeficitActions == nil || math.IsInf(s.bestScore, -1) {
		return
	}
	deterioration := s.bestScore - currentScore
	if deterioration <= 0 {
		return
	}
	penalty := contrastPenalty * math.Pow(deterioration, 0.3) * s.stagnationFactor()
	s.contrastTables(s.deficitWeights, s.runDeficitActions, s.bestDeficitActions, penalty)
}

func (s *Store) contrastTables(tables map[int]map[model.ActionKey]float64, current, best map[int][]model.Action, penalty float64) {
	for year, bestList := range best {
		table := tables[year]
		if table == nil {
			continue
		}
		bestKeys := make(map[model.ActionKey]bool, len(bestList))
		for _, a := range bestList {
			key := a.Key()
			bestKeys[key] = true
			w, ok := table[key]
			if !ok {
				w = DefaultWeight
			}
			table[key] = s.clampWeight(w * (1 + contrastBoost))
		}
		for _, a := range current[year] {
			key := a.Key()
			if bestKeys[key] {
				continue
			}
			w, ok := table[key]
			if !ok {
				continue
			}
			table[key] = s.clampWeight(w * (1 - penalty))
		}
	}
}

// RecordExperience appends a run to the bounded replay buffer, evicting the
// oldest entry on overflow.
func (s *Store) RecordExperience(actions map[int][]model.Action, score float64) {
	exp := model.Experience{Actions: copyActions(actions), Score: score}
	s.replay = append(s.replay, exp)
	if len(s.replay) > s.cfg.ReplayCapacity {
		s.replay = s.replay[len(s.replay)-s.cfg.ReplayCapacity:]
	}
}

// ReplayBuffer exposes the recorded experiences, newest last.
func (s *Store) ReplayBuffer() []model.Experience { return s.replay }

// bestExperience returns the highest-scoring run in the replay buffer.
func (s *Store) bestExperience() (model.Experience, bool) {
	best := -1
	for i, exp := range s.replay {
		if best < 0 || exp.Score > s.replay[best].Score {
			best = i
		}
	}
	if best < 0 {
		return model.Experience{}, false
	}
	return s.replay[best], true
}

// UpdateBestStrategy installs a run as the new best iff its score strictly
// exceeds the stored best. It retains the run's action histories, metrics,
// and a snapshot of the weight tables that produced it.
func (s *Store) UpdateBestStrategy(result model.SimulationResult) bool {
	if result.Score <= s.bestScore {
		return false
	}
	s.bestScore = result.Score
	m := result.Metrics
	s.bestMetrics = &m
	s.bestActions = copyActions(result.Actions)
	s.bestDeficitActions = copyActions(result.DeficitActions)
	s.bestWeights = copyTables(s.weights)
	return true
}

// ForceBest installs a verified replay result as the best strategy even when
// its score is below the stored one. Fast-mode iterations can inflate the
// recorded best; a full-fidelity verification replay corrects it here.
func (s *Store) ForceBest(result model.SimulationResult) {
	s.bestScore = result.Score
	m := result.Metrics
	s.bestMetrics = &m
	s.bestActions = copyActions(result.Actions)
	s.bestDeficitActions = copyActions(result.DeficitActions)
	s.bestWeights = copyTables(s.weights)
}

// FinishIteration advances the iteration bookkeeping after one run has been
// absorbed: exploration decays, stagnation counters update, and prolonged
// stagnation triggers a best-weights restore, then a forced replay plus a
// weight shake-up.
func (s *Store) FinishIteration(improved bool) {
	s.iterationCount++
	if improved {
		s.stale = 0
	} else {
		s.stale++
	}
	s.exploration = s.cfg.ExplorationRate / (1 + explorationDecayRate*float64(s.iterationCount))

	if s.stale > 0 && s.stale%restoreStaleThreshold == 0 {
		s.RestoreBestWeights(restoreBestFraction)
	}
	if s.stale > 0 && s.stale%replayStaleThreshold == 0 {
		s.forceReplay = true
		s.RandomizeWeights(randomizeSpread)
	}
}

// TakeForceReplay consumes a pending forced-replay request.
func (s *Store) TakeForceReplay() bool {
	if !s.forceReplay {
		return false
	}
	s.forceReplay = false
	return true
}

// RestoreBestWeights blends the snapshot taken at the last best run back
// into the live tables: fraction of best, remainder of current.
func (s *Store) RestoreBestWeights(fraction float64) {
	if s.bestWeights == nil {
		return
	}
	for year, bestTable := range s.bestWeights {
		table := s.weights[year]
		if table == nil {
			continue
		}
		for key, bw := range bestTable {
			cw, ok := table[key]
			if !ok {
				cw = DefaultWeight
			}
			table[key] = s.clampWeight(fraction*bw + (1-fraction)*cw)
		}
	}
}

// RandomizeWeights jitters every weight by up to ±spread of its value,
// breaking symmetry after the search has collapsed onto a local optimum.
func (s *Store) RandomizeWeights(spread float64) {
	for _, table := range s.weights {
		for key, w := range table {
			jitter := 1 + spread*(2*s.rng.Float64()-1)
			table[key] = s.clampWeight(w * jitter)
		}
	}
}

// AdoptLearnedTables installs the reinforced weight, deficit, and count
// tables from an iteration-local clone into this shared store. The clone's
// tables started from this store's state, so wholesale adoption commits
// the iteration's reinforcement updates. Called under the controller's
// write lock.
func (s *Store) AdoptLearnedTables(from *Store) {
	s.weights = copyTables(from.weights)
	s.deficitWeights = copyTables(from.deficitWeights)
	s.countWeights = copyCountTables(from.countWeights)
}

// TransferRecordedActions copies the run histories from an iteration-local
// clone into this shared store so contrast learning and best tracking see
// them. Called under the controller's write lock.
func (s *Store) TransferRecordedActions(from *Store) {
	s.runActions = copyActions(from.runActions)
	s.runDeficitActions = copyActions(from.runDeficitActions)
}

// Weight reads one weight, reporting whether the key exists.
func (s *Store) Weight(year int, key model.ActionKey) (float64, bool) {
	table := s.weights[year]
	if table == nil {
		return 0, false
	}
	w, ok := table[key]
	return w, ok
}

// DeficitWeight reads one deficit-table weight.
func (s *Store) DeficitWeight(year int, key model.ActionKey) (float64, bool) {
	table := s.deficitWeights[year]
	if table == nil {
		return 0, false
	}
	w, ok := table[key]
	return w, ok
}
