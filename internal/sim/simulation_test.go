package sim

import (
	"math"
	"testing"

	"gridplan/internal/grid"
	"gridplan/internal/model"
	"gridplan/internal/weights"
)

func surplusStatic() *grid.StaticData {
	return &grid.StaticData{
		Settlements: []*grid.Settlement{
			{Name: "town", Location: grid.Coordinate{X: 50, Y: 50}, BaseDemandMW: 100},
		},
		SeedGenerators: []*grid.Generator{{
			ID: "nuke", Name: "nuke", Type: model.GeneratorNuclear,
			Location: grid.Coordinate{X: 30, Y: 30}, CapacityMW: 2400, Efficiency: 0.9,
			OperationPercent: 100, CommissionYear: 2005, Existing: true,
		}},
		Width: 100, Height: 100,
	}
}

func deficitStatic() *grid.StaticData {
	return &grid.StaticData{
		Settlements: []*grid.Settlement{
			{Name: "city", Location: grid.Coordinate{X: 50, Y: 50}, BaseDemandMW: 6000},
		},
		SeedGenerators: []*grid.Generator{{
			ID: "coal", Name: "coal", Type: model.GeneratorCoal,
			Location: grid.Coordinate{X: 30, Y: 30}, CapacityMW: 1600, Efficiency: 0.8,
			OperationPercent: 100, CommissionYear: 2005, Existing: true,
		}},
		Width: 100, Height: 100,
	}
}

func testDriver(t *testing.T, static *grid.StaticData, seed int64, startYear, endYear int) (*Driver, *weights.Store) {
	t.Helper()
	store := weights.New(weights.Config{StartYear: startYear, EndYear: endYear, Seed: seed})
	driver, err := New(Config{StartYear: startYear, EndYear: endYear}, grid.New(static, nil).Clone(), store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return driver, store
}

func TestRunCoversEveryYearInOrder(t *testing.T) {
	driver, _ := testDriver(t, surplusStatic(), 3, 2025, 2030)
	result, err := driver.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Yearly) != 6 {
		t.Fatalf("yearly records = %d, want 6", len(result.Yearly))
	}
	for i, m := range result.Yearly {
		if m.Year != 2025+i {
			t.Errorf("record %d year = %d, want %d", i, m.Year, 2025+i)
		}
	}
}

func TestRunIsDeterministicForFixedSeed(t *testing.T) {
	a, _ := testDriver(t, surplusStatic(), 11, 2025, 2030)
	b, _ := testDriver(t, surplusStatic(), 11, 2025, 2030)

	ra, err := a.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	rb, err := b.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if ra.Score != rb.Score {
		t.Errorf("scores diverge: %v vs %v", ra.Score, rb.Score)
	}
	if ra.Metrics != rb.Metrics {
		t.Errorf("metrics diverge: %+v vs %+v", ra.Metrics, rb.Metrics)
	}
	for year, actions := range ra.Actions {
		if len(actions) != len(rb.Actions[year]) {
			t.Errorf("year %d action counts diverge: %d vs %d", year, len(actions), len(rb.Actions[year]))
		}
	}
}

func TestDeficitIsCorrectedOrSurfaced(t *testing.T) {
	store := weights.New(weights.Config{StartYear: 2025, EndYear: 2027, Seed: 5})
	store.StartRun()
	driver, err := New(Config{StartYear: 2025, EndYear: 2027}, grid.New(deficitStatic(), nil).Clone(), store)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Charged storage participates in the recovery before any additions.
	driver.grid.Storage.Expand(2000)
	driver.grid.Storage.Charge(600)

	shortfall := -driver.grid.PowerBalance(2025)
	if shortfall <= 0 {
		t.Fatalf("seed fleet covers demand, shortfall = %v", shortfall)
	}
	residual := driver.correctDeficit(2025, shortfall)
	if residual < 0 {
		t.Fatalf("negative residual %v", residual)
	}
	if driver.yearDischarged <= 0 {
		t.Error("charged storage never discharged during recovery")
	}

	if len(store.RunDeficitActions()[2025]) == 0 {
		t.Fatal("no recovery actions recorded")
	}
	// Recovery must have improved coverage over the raw 1280 MW seed fleet.
	generation := driver.grid.TotalPowerGeneration(2025) + driver.yearDischarged
	if generation <= 1280 {
		t.Errorf("post-recovery generation = %v, want above the seed fleet", generation)
	}

	m := driver.yearlyMetrics(2025, residual, nil)
	if m.PowerBalance < -1e-9 {
		if m.ResidualShortfall <= 0 {
			t.Errorf("balance %v negative but no residual shortfall recorded", m.PowerBalance)
		}
		if math.Abs(m.ResidualShortfall-(-m.PowerBalance)) > 1e-6 {
			t.Errorf("residual %v does not match balance %v", m.ResidualShortfall, m.PowerBalance)
		}
	} else if residual > 1e-9 {
		t.Errorf("residual %v reported but balance %v is non-negative", residual, m.PowerBalance)
	}
}

func TestReplayReappliesOnlyRecordedDeficitRecovery(t *testing.T) {
	store := weights.New(weights.Config{StartYear: 2025, EndYear: 2026, Seed: 5})
	peaker := model.Action{Type: model.ActionAddGenerator, Generator: model.GeneratorGasPeaker, Count: 1}
	if !store.UpdateBestStrategy(model.SimulationResult{
		Score:          1.0,
		DeficitActions: map[int][]model.Action{2025: {peaker, peaker}},
	}) {
		t.Fatal("seed strategy not installed as best")
	}

	result, err := RunBest(Config{StartYear: 2025, EndYear: 2026},
		grid.New(deficitStatic(), nil).Clone(), store)
	if err != nil {
		t.Fatalf("RunBest: %v", err)
	}

	// The replay reapplies exactly the recorded recovery list. Two peakers
	// cannot close the gap, and a replay never improvises beyond the
	// record: the remainder surfaces as a residual instead of fresh forced
	// additions.
	replayed := result.DeficitActions[2025]
	if len(replayed) != 2 {
		t.Fatalf("recovery actions = %d, want exactly the recorded pair", len(replayed))
	}
	for i, a := range replayed {
		if a.Type != model.ActionAddGenerator || a.Generator != model.GeneratorGasPeaker {
			t.Errorf("recovery action %d = %+v, want recorded gas peaker", i, a)
		}
	}
	first := result.Yearly[0]
	if first.ResidualShortfall <= 0 {
		t.Error("replay invented recovery beyond the recorded list")
	}
}

func TestRunBestReproducesRecordedRun(t *testing.T) {
	driver, store := testDriver(t, surplusStatic(), 21, 2025, 2030)
	original, err := driver.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !store.UpdateBestStrategy(original) {
		t.Fatal("first run did not become best")
	}

	replayed, err := RunBest(Config{StartYear: 2025, EndYear: 2030},
		grid.New(surplusStatic(), nil).Clone(), store)
	if err != nil {
		t.Fatalf("RunBest: %v", err)
	}

	if math.Abs(replayed.Score-original.Score) > 1e-9 {
		t.Errorf("replayed score %v, want %v", replayed.Score, original.Score)
	}
	if math.Abs(replayed.Metrics.TotalCost-original.Metrics.TotalCost) > 1e-6 {
		t.Errorf("replayed cost %v, want %v", replayed.Metrics.TotalCost, original.Metrics.TotalCost)
	}
	if len(replayed.Yearly) != len(original.Yearly) {
		t.Fatalf("replayed %d years, want %d", len(replayed.Yearly), len(original.Yearly))
	}
	for year, actions := range original.Actions {
		if len(replayed.Actions[year]) != len(actions) {
			t.Errorf("year %d: replayed %d actions, want %d", year, len(replayed.Actions[year]), len(actions))
		}
	}
	if store.GuaranteedBest() {
		t.Error("replay mode left enabled after RunBest")
	}
}

func TestRunBestReproducesDeficitRun(t *testing.T) {
	// The demanding half of replay idempotence: the recorded run discharges
	// storage and takes recovery actions, and the replay must reproduce the
	// same discharge-then-recovery sequence year by year. Demand is set
	// beyond what a full year of organic additions can cover, so the
	// corrector fires every year.
	deepDeficit := func() *grid.StaticData {
		static := deficitStatic()
		static.Settlements[0].BaseDemandMW = 60000
		return static
	}
	driver, store := testDriver(t, deepDeficit(), 7, 2025, 2028)
	original, err := driver.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var sawRecovery bool
	for _, actions := range original.DeficitActions {
		if len(actions) > 0 {
			sawRecovery = true
		}
	}
	if !sawRecovery {
		t.Fatal("run never entered the deficit corrector")
	}
	if !store.UpdateBestStrategy(original) {
		t.Fatal("run did not become best")
	}

	replayed, err := RunBest(Config{StartYear: 2025, EndYear: 2028},
		grid.New(deepDeficit(), nil).Clone(), store)
	if err != nil {
		t.Fatalf("RunBest: %v", err)
	}

	if math.Abs(replayed.Score-original.Score) > 1e-9 {
		t.Errorf("replayed score %v, want %v", replayed.Score, original.Score)
	}
	for i, want := range original.Yearly {
		got := replayed.Yearly[i]
		if math.Abs(got.TotalPowerGeneration-want.TotalPowerGeneration) > 1e-9 {
			t.Errorf("year %d: generation %v, want %v", want.Year, got.TotalPowerGeneration, want.TotalPowerGeneration)
		}
		if math.Abs(got.PowerBalance-want.PowerBalance) > 1e-9 {
			t.Errorf("year %d: balance %v, want %v", want.Year, got.PowerBalance, want.PowerBalance)
		}
		if math.Abs(got.ResidualShortfall-want.ResidualShortfall) > 1e-9 {
			t.Errorf("year %d: residual %v, want %v", want.Year, got.ResidualShortfall, want.ResidualShortfall)
		}
		if math.Abs(got.TotalCost-want.TotalCost) > 1e-6 {
			t.Errorf("year %d: cumulative cost %v, want %v", want.Year, got.TotalCost, want.TotalCost)
		}
	}
	for year, actions := range original.DeficitActions {
		if len(replayed.DeficitActions[year]) != len(actions) {
			t.Errorf("year %d: replayed %d recovery actions, want %d", year, len(replayed.DeficitActions[year]), len(actions))
		}
	}
}

func TestCumulativeCostCarriesForward(t *testing.T) {
	driver, _ := testDriver(t, surplusStatic(), 13, 2025, 2030)
	result, err := driver.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var sum float64
	for _, m := range result.Yearly {
		sum += m.YearlyTotalCost
		if math.Abs(m.TotalCost-sum) > 1e-6 {
			t.Errorf("year %d: cumulative cost %v, want %v", m.Year, m.TotalCost, sum)
		}
	}
	final := result.Yearly[len(result.Yearly)-1]
	if result.Metrics.TotalCost != final.TotalCost {
		t.Errorf("summary cost %v, want final cumulative %v", result.Metrics.TotalCost, final.TotalCost)
	}
	if result.Metrics.FinalNetEmissions != final.NetCO2Emissions {
		t.Errorf("summary emissions %v, want %v", result.Metrics.FinalNetEmissions, final.NetCO2Emissions)
	}
}

func TestConfigValidation(t *testing.T) {
	static := surplusStatic()
	store := weights.New(weights.Config{Seed: 1})

	if _, err := New(Config{StartYear: 2030, EndYear: 2025}, grid.New(static, nil), store); err == nil {
		t.Error("inverted year range accepted")
	}
	if _, err := New(Config{}, nil, store); err == nil {
		t.Error("nil grid accepted")
	}
	if _, err := New(Config{}, grid.New(static, nil), nil); err == nil {
		t.Error("nil store accepted")
	}
}

func TestApplyActionRejectsUnknownAndInfeasible(t *testing.T) {
	driver, _ := testDriver(t, surplusStatic(), 1, 2025, 2026)

	if err := driver.applyAction(model.Action{Type: "terraform"}, 2025); err == nil {
		t.Error("unknown action type accepted")
	}
	// add_generator must refuse storage types; they go through add_storage.
	bad := model.Action{Type: model.ActionAddGenerator, Generator: model.GeneratorBatteryStorage, Count: 1}
	if err := driver.applyAction(bad, 2025); err == nil {
		t.Error("storage type accepted by add_generator")
	}
	good := model.Action{Type: model.ActionAddStorage, Generator: model.GeneratorBatteryStorage, Count: 1}
	if err := driver.applyAction(good, 2025); err != nil {
		t.Errorf("add_storage rejected: %v", err)
	}
	if err := driver.applyAction(model.NoOp(), 2025); err != nil {
		t.Errorf("no-op rejected: %v", err)
	}
}
