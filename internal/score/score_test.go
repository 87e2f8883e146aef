package score

import (
	"math"
	"testing"

	"gridplan/internal/model"
)

func TestCostOnlyIgnoresEmissionsAndOpinion(t *testing.T) {
	s := New(ModeCostOnly)
	base := model.SimulationMetrics{TotalCost: 1e10, PowerReliability: 100}

	clean := base
	clean.FinalNetEmissions = -5e5
	clean.AveragePublicOpinion = 0.9
	dirty := base
	dirty.FinalNetEmissions = 8e5
	dirty.AveragePublicOpinion = 0.1

	if s.ScoreMetrics(clean) != s.ScoreMetrics(dirty) {
		t.Errorf("cost-only score varies with emissions/opinion: %v vs %v",
			s.ScoreMetrics(clean), s.ScoreMetrics(dirty))
	}
}

func TestCostOnlyScoreRangeAndMonotonicity(t *testing.T) {
	s := New(ModeCostOnly)
	cases := []struct {
		name string
		cost float64
	}{
		{"free", 0},
		{"cheap", 1e9},
		{"mid", 2.5e10},
		{"at limit", 5e10},
		{"over limit", 9e10},
	}

	prev := math.Inf(1)
	for _, tc := range cases {
		got := s.ScoreMetrics(model.SimulationMetrics{TotalCost: tc.cost, PowerReliability: 100})
		if got < 0 || got > 2 {
			t.Errorf("%s: score %v outside [0, 2]", tc.name, got)
		}
		if got > prev {
			t.Errorf("%s: score %v rose as cost rose (prev %v)", tc.name, got, prev)
		}
		prev = got
	}

	free := s.ScoreMetrics(model.SimulationMetrics{TotalCost: 0, PowerReliability: 100})
	if math.Abs(free-2) > 1e-12 {
		t.Errorf("zero-cost score = %v, want 2", free)
	}
	atLimit := s.ScoreMetrics(model.SimulationMetrics{TotalCost: 5e10, PowerReliability: 100})
	if math.Abs(atLimit-1) > 1e-12 {
		t.Errorf("at-limit score = %v, want 1", atLimit)
	}
}

func TestDefaultModeEmissionsFirst(t *testing.T) {
	s := New(ModeDefault)

	// While net-positive, the score is capped at 1 no matter how cheap or
	// popular the plan is.
	positive := s.ScoreMetrics(model.SimulationMetrics{
		FinalNetEmissions:    1,
		TotalCost:            0,
		AveragePublicOpinion: 1,
		PowerReliability:     100,
	})
	if positive > 1 {
		t.Errorf("net-positive score = %v, want <= 1", positive)
	}

	// Catastrophic emissions floor at -1 before the reliability multiplier.
	floor := s.ScoreMetrics(model.SimulationMetrics{
		FinalNetEmissions: 1e9,
		PowerReliability:  100,
	})
	if floor != -1 {
		t.Errorf("emissions floor = %v, want -1", floor)
	}

	// Net zero unlocks cost and opinion bonuses above 1.
	netZero := s.ScoreMetrics(model.SimulationMetrics{
		FinalNetEmissions:    0,
		TotalCost:            0,
		AveragePublicOpinion: 1,
		PowerReliability:     100,
	})
	if math.Abs(netZero-2) > 1e-12 {
		t.Errorf("ideal net-zero score = %v, want 2", netZero)
	}

	worse := s.ScoreMetrics(model.SimulationMetrics{
		FinalNetEmissions:    0,
		TotalCost:            4e10,
		AveragePublicOpinion: 0.5,
		PowerReliability:     100,
	})
	if worse <= 1 || worse >= netZero {
		t.Errorf("net-zero with costs = %v, want in (1, %v)", worse, netZero)
	}
}

func TestReliabilityPenaltyIsSuperLinear(t *testing.T) {
	s := New(ModeDefault)
	m := model.SimulationMetrics{FinalNetEmissions: 0, TotalCost: 0, AveragePublicOpinion: 1}

	m.PowerReliability = 100
	full := s.ScoreMetrics(m)
	m.PowerReliability = 50
	half := s.ScoreMetrics(m)

	if math.Abs(half-full*0.125) > 1e-12 {
		t.Errorf("half reliability score = %v, want %v", half, full*0.125)
	}
}

func TestEvaluateActionImpactSigns(t *testing.T) {
	s := New(ModeDefault)
	before := model.ActionResult{NetEmissions: 1e5, TotalCost: 1e9, PublicOpinion: 0.5, PowerBalance: -100}

	improved := model.ActionResult{NetEmissions: 5e4, TotalCost: 1e9, PublicOpinion: 0.6, PowerBalance: 0}
	if delta := s.EvaluateActionImpact(before, improved); delta <= 0 {
		t.Errorf("improvement delta = %v, want > 0", delta)
	}

	worsened := model.ActionResult{NetEmissions: 2e5, TotalCost: 2e9, PublicOpinion: 0.4, PowerBalance: -200}
	if delta := s.EvaluateActionImpact(before, worsened); delta >= 0 {
		t.Errorf("deterioration delta = %v, want < 0", delta)
	}
}

func TestEvaluateActionImpactCapsBalanceRecovery(t *testing.T) {
	s := New(ModeCostOnly)
	before := model.ActionResult{PowerBalance: -10}
	after := model.ActionResult{PowerBalance: 5000}
	// Balance recovery saturates at 1, so the cost-only delta caps at 0.4.
	if delta := s.EvaluateActionImpact(before, after); math.Abs(delta-0.4) > 1e-12 {
		t.Errorf("delta = %v, want 0.4", delta)
	}
}

func TestDeficitImprovement(t *testing.T) {
	cases := []struct {
		name     string
		overall  float64
		resolved bool
		want     float64
	}{
		{"unresolved", 1.0, false, 0.7},
		{"resolved bonus", 1.0, true, 0.8},
		{"negative no bonus", -1.0, true, -0.7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeficitImprovement(tc.overall, 0, 0, 0, tc.resolved)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
