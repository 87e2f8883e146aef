// Package score maps run metrics to a scalar fitness.
package score

import (
	"math"

	"gridplan/internal/model"
)

// Optimization modes.
const (
	ModeDefault  = "default"
	ModeCostOnly = "cost_only"
)

// Normalization anchors for the default thresholds.
const (
	DefaultMaxAcceptableEmissions = 1e6  // tonnes/yr
	DefaultMaxAcceptableCost      = 5e10 // dollars over the horizon
)

// Scorer carries the economic thresholds explicitly rather than reading
// ambient globals, so tests and alternate scenarios can swap them.
type Scorer struct {
	MaxAcceptableEmissions float64
	MaxAcceptableCost      float64
	Mode                   string
}

// New builds a scorer for the given mode with default thresholds.
func New(mode string) Scorer {
	if mode == "" {
		mode = ModeDefault
	}
	return Scorer{
		MaxAcceptableEmissions: DefaultMaxAcceptableEmissions,
		MaxAcceptableCost:      DefaultMaxAcceptableCost,
		Mode:                   mode,
	}
}

// ScoreMetrics maps end-of-run metrics to a scalar fitness.
//
// Any residual unreliability is penalized super-linearly as a multiplier, so
// a grid that fails to cover demand cannot buy its way to a high score.
//
// In cost-only mode the result lies in [0, 2]: a log-scaled cost term in
// [1, 2] times the reliability penalty; emissions and opinion are ignored.
//
// In the default mode the score is emissions-first: while net emissions are
// positive the score is at most 1 and falls linearly with emissions; once
// net zero is reached the score starts at 1 and earns bounded cost and
// opinion bonuses. Terms are normalized so no single catastrophic year can
// dominate a multi-decade run.
func (s Scorer) ScoreMetrics(m model.SimulationMetrics) float64 {
	reliability := clamp01(m.PowerReliability / 100)
	relPenalty := math.Pow(reliability, 3)

	if s.Mode == ModeCostOnly {
		ratio := clamp01(m.TotalCost / s.MaxAcceptableCost)
		costScore := 1 - math.Log1p(9*ratio)/math.Log(10)
		return (1 + costScore) * relPenalty
	}

	if m.FinalNetEmissions > 0 {
		emissionScore := 1 - m.FinalNetEmissions/s.MaxAcceptableEmissions
		if emissionScore < -1 {
			emissionScore = -1
		}
		return emissionScore * relPenalty
	}

	costScore := clamp01(1 - m.TotalCost/s.MaxAcceptableCost)
	opinionScore := clamp01(m.AveragePublicOpinion)
	return (1 + 0.7*costScore + 0.3*opinionScore) * relPenalty
}

// EvaluateActionImpact compares world aggregates before and after a batch of
// actions and returns a normalized improvement delta used to reinforce the
// sampled actions. Positive means the batch helped.
func (s Scorer) EvaluateActionImpact(before, after model.ActionResult) float64 {
	emissions := (before.NetEmissions - after.NetEmissions) / s.MaxAcceptableEmissions
	cost := (before.TotalCost - after.TotalCost) / s.MaxAcceptableCost
	opinion := after.PublicOpinion - before.PublicOpinion

	var balance float64
	if before.PowerBalance < 0 {
		balance = (after.PowerBalance - before.PowerBalance) / -before.PowerBalance
		if balance > 1 {
			balance = 1
		}
	}

	if s.Mode == ModeCostOnly {
		return 0.6*cost + 0.4*balance
	}
	return 0.4*emissions + 0.2*cost + 0.2*opinion + 0.2*balance
}

// DeficitImprovement folds the per-objective deltas of a recovery action
// into the single reinforcement signal for the deficit weight table. The
// overall balance recovery dominates; a resolved deficit earns an extra
// success bonus on top.
func DeficitImprovement(overall, emissions, cost, opinion float64, resolved bool) float64 {
	combined := 0.7*overall + 0.15*emissions + 0.1*cost + 0.05*opinion
	if resolved && overall > 0 {
		combined += 0.1 * overall
	}
	return combined
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
