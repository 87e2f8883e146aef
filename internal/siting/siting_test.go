package siting

import (
	"testing"

	"gridplan/internal/grid"
	"gridplan/internal/model"
)

func testStatic() *grid.StaticData {
	return &grid.StaticData{
		Settlements: []*grid.Settlement{
			{Name: "town", Location: grid.Coordinate{X: 50, Y: 50}, BasePopulation: 100_000},
		},
		Coastline: []grid.Coordinate{{X: 0, Y: 0}, {X: 0, Y: 50}, {X: 0, Y: 100}},
		Width:     100,
		Height:    100,
	}
}

func TestNewScorerSelection(t *testing.T) {
	static := testStatic()
	for _, kind := range []string{"", "proximity", "terrain"} {
		if _, err := NewScorer(kind, static, 1); err != nil {
			t.Errorf("NewScorer(%q): %v", kind, err)
		}
	}
	if _, err := NewScorer("satellite", static, 1); err == nil {
		t.Error("unsupported scorer accepted")
	}
}

func TestScoresStayInUnitRange(t *testing.T) {
	static := testStatic()
	scorers := map[string]grid.SiteScorer{
		"proximity": NewProximityScorer(static),
		"terrain":   NewTerrainScorer(static, 7),
	}
	types := []model.GeneratorType{
		model.GeneratorOffshoreWind, model.GeneratorHydroDam,
		model.GeneratorOnshoreWind, model.GeneratorNuclear,
	}

	for name, scorer := range scorers {
		for _, typ := range types {
			for x := 0.0; x <= 100; x += 20 {
				for y := 0.0; y <= 100; y += 20 {
					s := scorer.ScoreSite(grid.Coordinate{X: x, Y: y}, typ)
					if s < 0 || s > 1 {
						t.Fatalf("%s: score %v for %s at (%v,%v) outside [0,1]", name, s, typ, x, y)
					}
				}
			}
		}
	}
}

func TestProximityPrefersCoastForMarine(t *testing.T) {
	p := NewProximityScorer(testStatic())
	coastal := p.ScoreSite(grid.Coordinate{X: 2, Y: 50}, model.GeneratorOffshoreWind)
	inland := p.ScoreSite(grid.Coordinate{X: 90, Y: 50}, model.GeneratorOffshoreWind)
	if coastal <= inland {
		t.Errorf("coastal %v <= inland %v for offshore wind", coastal, inland)
	}

	// Hydro is the opposite: inland stands in for relief.
	hydroCoastal := p.ScoreSite(grid.Coordinate{X: 2, Y: 50}, model.GeneratorHydroDam)
	hydroInland := p.ScoreSite(grid.Coordinate{X: 90, Y: 50}, model.GeneratorHydroDam)
	if hydroInland <= hydroCoastal {
		t.Errorf("inland %v <= coastal %v for hydro", hydroInland, hydroCoastal)
	}
}

func TestMarineNeedsCoastline(t *testing.T) {
	static := testStatic()
	static.Coastline = nil
	p := NewProximityScorer(static)
	if s := p.ScoreSite(grid.Coordinate{X: 10, Y: 10}, model.GeneratorTidal); s != 0 {
		t.Errorf("tidal score without coastline = %v, want 0", s)
	}
}

func TestTerrainScorerIsDeterministicPerSeed(t *testing.T) {
	static := testStatic()
	a := NewTerrainScorer(static, 42)
	b := NewTerrainScorer(static, 42)
	c := NewTerrainScorer(static, 43)

	loc := grid.Coordinate{X: 33, Y: 66}
	sa := a.ScoreSite(loc, model.GeneratorOnshoreWind)
	sb := b.ScoreSite(loc, model.GeneratorOnshoreWind)
	if sa != sb {
		t.Errorf("same seed diverges: %v vs %v", sa, sb)
	}

	diverged := false
	for x := 5.0; x < 100; x += 10 {
		p := grid.Coordinate{X: x, Y: 50}
		if a.ScoreSite(p, model.GeneratorOnshoreWind) != c.ScoreSite(p, model.GeneratorOnshoreWind) {
			diverged = true
			break
		}
	}
	if !diverged {
		t.Error("different seeds produced identical terrain")
	}
}
