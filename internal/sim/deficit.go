package sim

import (
	"log/slog"

	"gridplan/internal/model"
	"gridplan/internal/score"
)

// maxForcedAdditions bounds the fallback loop that runs after the sampled
// retry budget is exhausted.
const maxForcedAdditions = 10

// correctDeficit closes a positive MW shortfall for the current year and
// returns the residual shortfall, zero when fully resolved.
//
// Order of attack: discharge stored energy first, then up to the configured
// retry budget of actions sampled from the deficit weight table, then
// forced additions (battery storage once to unlock curtailed intermittent
// output, dispatchable peakers after). In guaranteed-best mode the recorded
// recovery list is reapplied in order instead, so a replay reproduces the
// original discharge-then-recovery sequence exactly. Every applied recovery
// action lands in the per-year deficit list, separate from the organic run
// history. An unresolved residual is accepted and surfaced in the year's
// metrics rather than failing the run.
func (d *Driver) correctDeficit(year int, shortfall float64) float64 {
	before := d.snapshot(year)

	d.yearDischarged = d.grid.Storage.Discharge(shortfall)
	shortfall -= d.yearDischarged
	if shortfall <= 0 {
		return 0
	}

	if d.store.GuaranteedBest() {
		// Replaying a recorded strategy: reapply its recovery list in
		// order, accept the same residual, and never improvise beyond it.
		for _, action := range d.store.BestDeficitActionsForYear(year) {
			if shortfall <= 0 {
				break
			}
			next, err := d.deficitStep(year, action, shortfall)
			if err != nil {
				slog.Debug("recorded deficit action infeasible", "year", year, "action", action.Type, "err", err)
				continue
			}
			shortfall = next
		}
		return shortfall
	}

	for attempt := 0; attempt < d.cfg.MaxDeficitAttempts && shortfall > 0; attempt++ {
		action := d.store.SampleDeficitAction(year)
		if action.Type == model.ActionNoOp {
			continue
		}
		next, err := d.deficitStep(year, action, shortfall)
		if err != nil {
			slog.Debug("deficit action infeasible", "year", year, "action", action.Type, "err", err)
			continue
		}
		shortfall = next
	}

	for forced := 0; forced < maxForcedAdditions && shortfall > 0; forced++ {
		action := model.Action{Type: model.ActionAddGenerator, Generator: model.GeneratorGasPeaker, Count: 1}
		if forced == 0 {
			action = model.Action{Type: model.ActionAddStorage, Generator: model.GeneratorBatteryStorage, Count: 1}
		}
		next, err := d.deficitStep(year, action, shortfall)
		if err != nil {
			slog.Warn("forced deficit action failed", "year", year, "action", action.Type, "err", err)
			break
		}
		shortfall = next
	}

	if shortfall > 0 {
		after := d.snapshot(year)
		slog.Warn("unresolved power deficit",
			"year", year,
			"residual_mw", shortfall,
			"recovered_mw", (-before.PowerBalance)-(-after.PowerBalance))
	}
	return shortfall
}

// deficitStep applies one recovery action, records it in the per-year
// deficit list, and returns the updated shortfall. Recovery actions stay
// out of the organic run history so a replay re-derives them from the
// deficit list instead of applying them twice.
func (d *Driver) deficitStep(year int, action model.Action, shortfall float64) (float64, error) {
	stepBefore := d.snapshot(year)
	if err := d.applyAction(action, year); err != nil {
		return shortfall, err
	}
	d.store.RecordDeficitAction(year, action)

	stepAfter := d.snapshot(year)
	shortfall = -stepAfter.PowerBalance - d.yearDischarged
	if shortfall < 0 {
		shortfall = 0
	}
	d.reinforceDeficitStep(year, action, stepBefore, stepAfter, shortfall == 0)
	return shortfall, nil
}

// reinforceDeficitStep feeds the recovery action's outcome back into the
// deficit weight table.
func (d *Driver) reinforceDeficitStep(year int, action model.Action, before, after model.ActionResult, resolved bool) {
	var overall float64
	if before.PowerBalance < 0 {
		overall = (after.PowerBalance - before.PowerBalance) / -before.PowerBalance
		if overall > 1 {
			overall = 1
		}
	}
	emissions := (before.NetEmissions - after.NetEmissions) / d.cfg.Scorer.MaxAcceptableEmissions
	cost := (before.TotalCost - after.TotalCost) / d.cfg.Scorer.MaxAcceptableCost
	opinion := after.PublicOpinion - before.PublicOpinion

	delta := score.DeficitImprovement(overall, emissions, cost, opinion, resolved)
	d.store.ReinforceDeficit(year, action.Key(), delta)
}
