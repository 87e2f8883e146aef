// Package weights implements the learned per-year action probability tables
// that drive strategy sampling, together with their update rules.
package weights

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"gridplan/internal/model"
)

const (
	DefaultLearningRate    = 0.2
	DefaultExplorationRate = 0.2
	DefaultMinWeight       = 0.0001
	DefaultMaxWeight       = 0.999
	DefaultWeight          = 0.5
	DefaultReplayCapacity  = 32

	// explorationDecayRate shrinks the exploration probability as
	// iterations accumulate: rate/(1+decay*iterations).
	explorationDecayRate = 0.1
	// maxActionsPerYear bounds how many actions one year may sample.
	maxActionsPerYear = 20
	// actionCountDecay shapes the exponential preference for fewer actions.
	actionCountDecay = 0.4
	// restoreStaleThreshold triggers a partial restore of the best-known
	// weights after this many iterations without improvement.
	restoreStaleThreshold = 250
	// replayStaleThreshold forces a guaranteed replay of the best strategy
	// and a weight shake-up after this many stale iterations.
	replayStaleThreshold = 1000
	// restoreBestFraction is the best/current mix used by a restore.
	restoreBestFraction = 0.75
	// randomizeSpread is the relative jitter applied by a shake-up.
	randomizeSpread = 0.10
)

// Config parameterizes a Store. Zero values are backfilled with defaults.
type Config struct {
	StartYear        int
	EndYear          int
	LearningRate     float64
	ExplorationRate  float64
	MinWeight        float64
	MaxWeight        float64
	ReplayCapacity   int
	OptimizationMode string
	Seed             int64
}

func (c Config) withDefaults() Config {
	if c.StartYear == 0 {
		c.StartYear = 2025
	}
	if c.EndYear == 0 {
		c.EndYear = 2050
	}
	if c.LearningRate == 0 {
		c.LearningRate = DefaultLearningRate
	}
	if c.ExplorationRate == 0 {
		c.ExplorationRate = DefaultExplorationRate
	}
	if c.MinWeight == 0 {
		c.MinWeight = DefaultMinWeight
	}
	if c.MaxWeight == 0 {
		c.MaxWeight = DefaultMaxWeight
	}
	if c.ReplayCapacity == 0 {
		c.ReplayCapacity = DefaultReplayCapacity
	}
	if c.OptimizationMode == "" {
		c.OptimizationMode = "default"
	}
	return c
}

// Store holds the per-year action weight tables, the deficit-specific
// tables, the best-known strategy, and a bounded experience replay buffer.
// A Store is not safe for concurrent use; the controller clones per
// iteration and commits updates under its own lock.
type Store struct {
	cfg Config
	rng *rand.Rand

	weights        map[int]map[model.ActionKey]float64
	deficitWeights map[int]map[model.ActionKey]float64
	countWeights   map[int][]float64

	iterationCount int
	stale          int
	exploration    float64

	bestScore          float64
	bestMetrics        *model.SimulationMetrics
	bestActions        map[int][]model.Action
	bestDeficitActions map[int][]model.Action
	bestWeights        map[int]map[model.ActionKey]float64

	replay []model.Experience

	runActions        map[int][]model.Action
	runDeficitActions map[int][]model.Action

	guaranteedBest bool
	forceReplay    bool
}

// New builds a Store with the initial technology priors for every year in
// the horizon.
func New(cfg Config) *Store {
	cfg = cfg.withDefaults()
	s := &Store{
		cfg:               cfg,
		rng:               rand.New(rand.NewSource(cfg.Seed)),
		weights:           make(map[int]map[model.ActionKey]float64),
		deficitWeights:    make(map[int]map[model.ActionKey]float64),
		countWeights:      make(map[int][]float64),
		exploration:       cfg.ExplorationRate,
		bestScore:         math.Inf(-1),
		runActions:        make(map[int][]model.Action),
		runDeficitActions: make(map[int][]model.Action),
	}
	for year := cfg.StartYear; year <= cfg.EndYear; year++ {
		s.weights[year] = initialWeights()
		s.deficitWeights[year] = initialDeficitWeights()
		s.countWeights[year] = initialCountWeights()
	}
	return s
}

// initialCountWeights is the prior over how many actions a year takes:
// exponentially fewer is better until reinforcement says otherwise.
func initialCountWeights() []float64 {
	w := make([]float64, maxActionsPerYear+1)
	for n := range w {
		w[n] = math.Exp(-actionCountDecay * float64(n))
	}
	return w
}

// initialWeights is the prior over the main action vocabulary.
func initialWeights() map[model.ActionKey]float64 {
	w := map[model.ActionKey]float64{}
	gens := map[model.GeneratorType]float64{
		model.GeneratorOnshoreWind:  0.08,
		model.GeneratorOffshoreWind: 0.05,
		model.GeneratorUtilitySolar: 0.08,
		model.GeneratorNuclear:      0.06,
		model.GeneratorGasCombined:  0.05,
		model.GeneratorGasPeaker:    0.04,
		model.GeneratorCoal:         0.01,
		model.GeneratorHydroDam:     0.04,
		model.GeneratorBiomass:      0.04,
		model.GeneratorTidal:        0.03,
		model.GeneratorWave:         0.03,
	}
	for t, v := range gens {
		w[model.Action{Type: model.ActionAddGenerator, Generator: t}.Key()] = v
	}
	w[model.Action{Type: model.ActionAddStorage, Generator: model.GeneratorBatteryStorage}.Key()] = 0.06
	w[model.Action{Type: model.ActionAddStorage, Generator: model.GeneratorPumpedStorage}.Key()] = 0.04
	offs := map[model.OffsetType]float64{
		model.OffsetForest:        0.05,
		model.OffsetWetland:       0.04,
		model.OffsetActiveCapture: 0.04,
		model.OffsetCarbonCredit:  0.03,
	}
	for t, v := range offs {
		w[model.Action{Type: model.ActionAddOffset, Offset: t}.Key()] = v
	}
	w[model.ActionKey(model.ActionUpgradeEfficiency)] = 0.06
	w[model.ActionKey(model.ActionCloseGenerator)] = 0.04
	w[model.ActionKey(model.ActionNoOp)] = 0.10
	return w
}

// initialDeficitWeights is the prior over capacity-adding recovery actions.
// Dispatchable technologies dominate; doing nothing is near-forbidden.
func initialDeficitWeights() map[model.ActionKey]float64 {
	w := map[model.ActionKey]float64{}
	gens := map[model.GeneratorType]float64{
		model.GeneratorGasPeaker:    0.15,
		model.GeneratorGasCombined:  0.12,
		model.GeneratorOnshoreWind:  0.08,
		model.GeneratorUtilitySolar: 0.08,
		model.GeneratorOffshoreWind: 0.06,
		model.GeneratorNuclear:      0.04,
		model.GeneratorHydroDam:     0.05,
		model.GeneratorBiomass:      0.06,
		model.GeneratorCoal:         0.02,
	}
	for t, v := range gens {
		w[model.Action{Type: model.ActionAddGenerator, Generator: t}.Key()] = v
	}
	w[model.Action{Type: model.ActionAddStorage, Generator: model.GeneratorBatteryStorage}.Key()] = 0.12
	w[model.Action{Type: model.ActionAddStorage, Generator: model.GeneratorPumpedStorage}.Key()] = 0.08
	w[model.ActionKey(model.ActionNoOp)] = 0.001
	return w
}

// SetGuaranteedBest toggles deterministic replay of the best-known strategy.
func (s *Store) SetGuaranteedBest(on bool) { s.guaranteedBest = on }

// GuaranteedBest reports whether replay mode is active.
func (s *Store) GuaranteedBest() bool { return s.guaranteedBest }

// OptimizationMode exposes the configured scoring mode.
func (s *Store) OptimizationMode() string { return s.cfg.OptimizationMode }

// IterationCount returns how many iterations have been absorbed.
func (s *Store) IterationCount() int { return s.iterationCount }

// StaleIterations returns the current no-improvement streak.
func (s *Store) StaleIterations() int { return s.stale }

// BestScore returns the best score absorbed so far.
func (s *Store) BestScore() float64 { return s.bestScore }

// BestMetrics returns the metrics of the best run, if any.
func (s *Store) BestMetrics() (model.SimulationMetrics, bool) {
	if s.bestMetrics == nil {
		return model.SimulationMetrics{}, false
	}
	return *s.bestMetrics, true
}

// BestActions returns the recorded best strategy, keyed by year.
func (s *Store) BestActions() map[int][]model.Action { return s.bestActions }

// BestActionsForYear returns the best-known action list for one year.
func (s *Store) BestActionsForYear(year int) []model.Action {
	if s.bestActions == nil {
		return nil
	}
	return s.bestActions[year]
}

// BestDeficitActionsForYear returns the best-known deficit recovery list.
func (s *Store) BestDeficitActionsForYear(year int) []model.Action {
	if s.bestDeficitActions == nil {
		return nil
	}
	return s.bestDeficitActions[year]
}

// StartRun clears the per-run recording tables before a new iteration.
func (s *Store) StartRun() {
	s.runActions = make(map[int][]model.Action)
	s.runDeficitActions = make(map[int][]model.Action)
}

// RecordAction appends an applied action to the run history for a year.
func (s *Store) RecordAction(year int, a model.Action) {
	s.runActions[year] = append(s.runActions[year], a)
}

// RecordDeficitAction appends a forced recovery action. Deficit actions are
// kept apart from organic choices so strategy analysis can tell them apart.
func (s *Store) RecordDeficitAction(year int, a model.Action) {
	s.runDeficitActions[year] = append(s.runDeficitActions[year], a)
}

// RunActions returns the current run's organic action history.
func (s *Store) RunActions() map[int][]model.Action { return s.runActions }

// RunDeficitActions returns the current run's forced recovery history.
func (s *Store) RunDeficitActions() map[int][]model.Action { return s.runDeficitActions }

// SampleAction draws one action for a year. In guaranteed-best mode it
// replays the recorded best strategy position instead of sampling.
func (s *Store) SampleAction(year, position int) model.Action {
	if s.guaranteedBest {
		best := s.BestActionsForYear(year)
		if position < len(best) {
			return best[position]
		}
		return model.NoOp()
	}
	return s.sampleTable(s.weights[year], year)
}

// SampleDeficitAction draws one recovery action from the deficit table.
func (s *Store) SampleDeficitAction(year int) model.Action {
	return s.sampleTable(s.deficitWeights[year], year)
}

// SampleActionCount draws how many actions to take in a year from the
// learned count table, which starts as an exponential preference for fewer
// actions and is reinforced alongside the action tables.
func (s *Store) SampleActionCount(year int) int {
	if s.guaranteedBest {
		return len(s.BestActionsForYear(year))
	}
	table := s.countWeights[year]
	if len(table) == 0 {
		table = initialCountWeights()
		s.countWeights[year] = table
	}
	var total float64
	cum := make([]float64, len(table))
	for n, w := range table {
		if w < 0 {
			w = 0
		}
		total += w
		cum[n] = total
	}
	if total <= 0 {
		return 0
	}
	draw := s.rng.Float64() * total
	for n, c := range cum {
		if draw <= c {
			return n
		}
	}
	return len(table) - 1
}

// ActionCountWeight reads one count weight, reporting whether it exists.
func (s *Store) ActionCountWeight(year, count int) (float64, bool) {
	table := s.countWeights[year]
	if count < 0 || count >= len(table) {
		return 0, false
	}
	return table[count], true
}

// sampleTable draws from one weight table: epsilon-greedy uniform
// exploration, otherwise a categorical draw over the weights, sharpened by a
// stagnation-dependent power. Keys iterate in sorted order so ties and
// cumulative boundaries are stable for a fixed seed.
func (s *Store) sampleTable(table map[model.ActionKey]float64, year int) model.Action {
	if len(table) == 0 {
		slog.Warn("empty weight table, falling back to no-op", "year", year)
		return model.NoOp()
	}

	keys := sortedKeys(table)

	if s.rng.Float64() < s.exploration {
		key := keys[s.rng.Intn(len(keys))]
		return s.actionFor(key, year)
	}

	power := s.selectionPower()
	var total float64
	cum := make([]float64, len(keys))
	for i, k := range keys {
		w := table[k]
		if w < 0 {
			w = 0
		}
		if power != 1 {
			w = math.Pow(w, power)
		}
		total += w
		cum[i] = total
	}
	if total <= 0 {
		slog.Warn("weight table sums to zero, falling back to no-op", "year", year)
		return model.NoOp()
	}

	draw := s.rng.Float64() * total
	for i, c := range cum {
		if draw <= c {
			return s.actionFor(keys[i], year)
		}
	}
	return s.actionFor(keys[len(keys)-1], year)
}

// selectionPower sharpens the categorical distribution as stagnation grows,
// concentrating probability mass on the strongest actions.
func (s *Store) selectionPower() float64 {
	if s.stale < restoreStaleThreshold {
		return 1
	}
	p := 1 + float64(s.stale)/500.0
	if p > 2.5 {
		p = 2.5
	}
	return p
}

// actionFor materializes a sampled key into a concrete action.
func (s *Store) actionFor(key model.ActionKey, year int) model.Action {
	a, err := model.ParseActionKey(key)
	if err != nil {
		slog.Warn("unparseable action key", "key", key, "year", year, "err", err)
		return model.NoOp()
	}
	if a.Count == 0 {
		a.Count = 1
	}
	return a
}

// Clone deep-copies the store for an isolated iteration. The clone's random
// stream is split off deterministically from the parent's.
func (s *Store) Clone(seedOffset int64) *Store {
	c := &Store{
		cfg:                s.cfg,
		rng:                rand.New(rand.NewSource(s.cfg.Seed + seedOffset)),
		weights:            copyTables(s.weights),
		deficitWeights:     copyTables(s.deficitWeights),
		countWeights:       copyCountTables(s.countWeights),
		iterationCount:     s.iterationCount,
		stale:              s.stale,
		exploration:        s.exploration,
		bestScore:          s.bestScore,
		bestActions:        copyActions(s.bestActions),
		bestDeficitActions: copyActions(s.bestDeficitActions),
		bestWeights:        copyTables(s.bestWeights),
		replay:             append([]model.Experience(nil), s.replay...),
		runActions:         make(map[int][]model.Action),
		runDeficitActions:  make(map[int][]model.Action),
		guaranteedBest:     s.guaranteedBest,
	}
	if s.bestMetrics != nil {
		m := *s.bestMetrics
		c.bestMetrics = &m
	}
	return c
}

func sortedKeys(table map[model.ActionKey]float64) []model.ActionKey {
	keys := make([]model.ActionKey, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func copyTables(src map[int]map[model.ActionKey]float64) map[int]map[model.ActionKey]float64 {
	if src == nil {
		return nil
	}
	dst := make(map[int]map[model.ActionKey]float64, len(src))
	for year, table := range src {
		t := make(map[model.ActionKey]float64, len(table))
		for k, v := range table {
			t[k] = v
		}
		dst[year] = t
	}
	return dst
}

func copyCountTables(src map[int][]float64) map[int][]float64 {
	if src == nil {
		return nil
	}
	dst := make(map[int][]float64, len(src))
	for year, table := range src {
		dst[year] = append([]float64(nil), table...)
	}
	return dst
}

func copyActions(src map[int][]model.Action) map[int][]model.Action {
	if src == nil {
		return nil
	}
	dst := make(map[int][]model.Action, len(src))
	for year, actions := range src {
		dst[year] = append([]model.Action(nil), actions...)
	}
	return dst
}
