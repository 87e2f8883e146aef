// Package sim executes one career of the grid: a year-stepped state machine
// that samples actions from the weight store, applies them to the world
// state, corrects power deficits, and accounts yearly metrics.
package sim

import (
	"fmt"
	"log/slog"

	"gridplan/internal/grid"
	"gridplan/internal/model"
	"gridplan/internal/score"
	"gridplan/internal/weights"
)

// Config parameterizes one driver. Zero values backfill to defaults.
type Config struct {
	StartYear int
	EndYear   int
	// FastMode trades fidelity for speed: generator opinion uses the
	// technology baseline without per-site scoring, and the pre/post action
	// snapshots reuse the batch-level aggregates instead of recomputing
	// around every single action.
	FastMode           bool
	EnableEnergySales  bool
	MaxDeficitAttempts int
	Scorer             score.Scorer
}

func (c Config) withDefaults() Config {
	if c.StartYear == 0 {
		c.StartYear = grid.StartYear
	}
	if c.EndYear == 0 {
		c.EndYear = grid.EndYear
	}
	if c.MaxDeficitAttempts == 0 {
		c.MaxDeficitAttempts = 5
	}
	if c.Scorer.MaxAcceptableCost == 0 {
		c.Scorer = score.New(c.Scorer.Mode)
	}
	return c
}

// Driver runs one simulation career over an exclusively-owned grid copy.
type Driver struct {
	cfg   Config
	grid  *grid.Grid
	store *weights.Store

	yearUpgradeCosts float64
	yearClosureCosts float64
	// yearDischarged is the MW-equivalent delivered from storage while
	// correcting this year's deficit; it counts toward delivered supply.
	yearDischarged float64
}

// New validates the configuration and binds a driver to its world copy and
// weight store.
func New(cfg Config, g *grid.Grid, store *weights.Store) (*Driver, error) {
	cfg = cfg.withDefaults()
	if cfg.EndYear < cfg.StartYear {
		return nil, fmt.Errorf("end year %d before start year %d", cfg.EndYear, cfg.StartYear)
	}
	if g == nil {
		return nil, fmt.Errorf("grid is required")
	}
	if store == nil {
		return nil, fmt.Errorf("weight store is required")
	}
	return &Driver{cfg: cfg, grid: g, store: store}, nil
}

// Run executes the career from start year to end year and returns the
// scored result. The year sequence is strictly monotonic; a single
// infeasible action is skipped, never fatal.
func (d *Driver) Run() (model.SimulationResult, error) {
	d.store.StartRun()

	yearly := make([]model.YearlyMetrics, 0, d.cfg.EndYear-d.cfg.StartYear+1)
	var prev *model.YearlyMetrics

	for year := d.cfg.StartYear; year <= d.cfg.EndYear; year++ {
		d.yearUpgradeCosts = 0
		d.yearClosureCosts = 0
		d.yearDischarged = 0

		batchBefore := d.snapshot(year)

		count := d.store.SampleActionCount(year)
		for i := 0; i < count; i++ {
			action := d.store.SampleAction(year, i)
			var before model.ActionResult
			if !d.cfg.FastMode {
				before = d.snapshot(year)
			}
			if err := d.applyAction(action, year); err != nil {
				slog.Debug("skipping infeasible action", "year", year, "action", action.Type, "err", err)
				continue
			}
			d.store.RecordAction(year, action)
			if !d.cfg.FastMode {
				after := d.snapshot(year)
				d.store.Reinforce(year, action.Key(), d.cfg.Scorer.EvaluateActionImpact(before, after))
			}
		}

		batchAfter := d.snapshot(year)
		batchImpact := d.cfg.Scorer.EvaluateActionImpact(batchBefore, batchAfter)
		if d.cfg.FastMode {
			// Fast mode reinforces the whole batch against shared
			// endpoints rather than per-action snapshots.
			for _, action := range d.store.RunActions()[year] {
				d.store.Reinforce(year, action.Key(), batchImpact)
			}
		}
		d.store.ReinforceActionCount(year, count, batchImpact)

		var shortfall float64
		if batchAfter.PowerBalance < 0 {
			shortfall = d.correctDeficit(year, -batchAfter.PowerBalance)
		}

		m := d.yearlyMetrics(year, shortfall, prev)
		yearly = append(yearly, m)
		prev = &yearly[len(yearly)-1]

		if m.PowerBalance > 0 {
			d.grid.Storage.Charge(m.PowerBalance)
		}
	}

	final := yearly[len(yearly)-1]
	metrics := model.SimulationMetrics{
		FinalNetEmissions:    final.NetCO2Emissions,
		AveragePublicOpinion: meanOpinion(yearly),
		TotalCost:            final.TotalCost,
		PowerReliability:     meanReliability(yearly),
	}

	result := model.SimulationResult{
		Metrics:        metrics,
		Score:          d.cfg.Scorer.ScoreMetrics(metrics),
		Yearly:         yearly,
		Actions:        d.store.RunActions(),
		DeficitActions: d.store.RunDeficitActions(),
	}
	return result, nil
}

// RunBest replays the recorded best strategy deterministically at full
// fidelity. Used for verification runs; callers pass a throwaway store,
// so the replay's reinforcement never reaches the shared tables.
func RunBest(cfg Config, g *grid.Grid, store *weights.Store) (model.SimulationResult, error) {
	cfg = cfg.withDefaults()
	cfg.FastMode = false
	store.SetGuaranteedBest(true)
	defer store.SetGuaranteedBest(false)

	driver, err := New(cfg, g, store)
	if err != nil {
		return model.SimulationResult{}, err
	}
	return driver.Run()
}

// snapshot captures the aggregates that drive scoring and the deficit loop.
func (d *Driver) snapshot(year int) model.ActionResult {
	opinion := grid.DefaultOpinion
	if !d.cfg.FastMode {
		opinion = d.grid.AverageOpinion(year)
	}
	return model.ActionResult{
		NetEmissions:  d.grid.NetCO2Emissions(year),
		PublicOpinion: opinion,
		PowerBalance:  d.grid.PowerBalance(year),
		TotalCost:     d.grid.TotalCapitalCost(year),
	}
}

// actionSpec holds one vocabulary entry's feasibility and impact logic, so
// action handling lives in one dispatch table instead of scattered branches.
type actionSpec struct {
	feasible func(d *Driver, a model.Action, year int) bool
	apply    func(d *Driver, a model.Action, year int) error
}

var actionTable = map[model.ActionType]actionSpec{
	model.ActionAddGenerator: {
		feasible: func(d *Driver, a model.Action, year int) bool {
			_, ok := grid.Specs[a.Generator]
			return ok && !a.Generator.IsStorage()
		},
		apply: func(d *Driver, a model.Action, year int) error {
			count := max(a.Count, 1)
			for i := 0; i < count; i++ {
				if _, err := d.grid.AddGenerator(a.Generator, year); err != nil {
					return err
				}
			}
			return nil
		},
	},
	model.ActionAddStorage: {
		feasible: func(d *Driver, a model.Action, year int) bool {
			return a.Generator.IsStorage()
		},
		apply: func(d *Driver, a model.Action, year int) error {
			count := max(a.Count, 1)
			for i := 0; i < count; i++ {
				if _, err := d.grid.AddGenerator(a.Generator, year); err != nil {
					return err
				}
			}
			return nil
		},
	},
	model.ActionAddOffset: {
		feasible: func(d *Driver, a model.Action, year int) bool {
			_, ok := grid.OffsetSpecs[a.Offset]
			return ok
		},
		apply: func(d *Driver, a model.Action, year int) error {
			count := max(a.Count, 1)
			for i := 0; i < count; i++ {
				d.grid.AddOffset(a.Offset, year)
			}
			return nil
		},
	},
	model.ActionUpgradeEfficiency: {
		feasible: func(d *Driver, a model.Action, year int) bool { return true },
		apply: func(d *Driver, a model.Action, year int) error {
			_, cost, ok := d.grid.UpgradeLeastEfficient(year)
			if !ok {
				return fmt.Errorf("no upgradeable generator")
			}
			d.yearUpgradeCosts += cost
			return nil
		},
	},
	model.ActionCloseGenerator: {
		feasible: func(d *Driver, a model.Action, year int) bool { return true },
		apply: func(d *Driver, a model.Action, year int) error {
			_, cost, ok := d.grid.CloseDirtiest(year)
			if !ok {
				return fmt.Errorf("no closable generator")
			}
			d.yearClosureCosts += cost
			return nil
		},
	},
	model.ActionAdjustOperation: {
		feasible: func(d *Driver, a model.Action, year int) bool {
			_, ok := grid.Specs[a.Generator]
			return ok
		},
		apply: func(d *Driver, a model.Action, year int) error {
			percent := a.Operation
			if percent == 0 {
				percent = 100
			}
			if d.grid.AdjustOperation(a.Generator, percent, year) == 0 {
				return fmt.Errorf("no active %s generators", a.Generator)
			}
			return nil
		},
	},
	model.ActionNoOp: {
		feasible: func(d *Driver, a model.Action, year int) bool { return true },
		apply:    func(d *Driver, a model.Action, year int) error { return nil },
	},
}

func (d *Driver) applyAction(a model.Action, year int) error {
	spec, ok := actionTable[a.Type]
	if !ok {
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	if !spec.feasible(d, a, year) {
		return fmt.Errorf("action %s infeasible", a.Type)
	}
	return spec.apply(d, a, year)
}

func meanOpinion(yearly []model.YearlyMetrics) float64 {
	if len(yearly) == 0 {
		return 0
	}
	var total float64
	for _, m := range yearly {
		total += m.AveragePublicOpinion
	}
	return total / float64(len(yearly))
}

func meanReliability(yearly []model.YearlyMetrics) float64 {
	if len(yearly) == 0 {
		return 0
	}
	var total float64
	for _, m := range yearly {
		total += m.PowerReliability
	}
	return total / float64(len(yearly))
}
