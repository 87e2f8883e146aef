package grid

import (
	"fmt"

	"gridplan/internal/model"
)

// SiteScorer rates a candidate location for a generator type in [0,1].
// Implementations must be synchronous and pure; the grid never cares whether
// the backing search is accelerated or a plain CPU scan.
type SiteScorer interface {
	ScoreSite(loc Coordinate, t model.GeneratorType) float64
}

// StaticData is the immutable seed of a planning scenario: settlements, the
// pre-existing fleet, and map geometry. It is shared structurally across all
// concurrent run copies and must never be mutated after construction.
type StaticData struct {
	Settlements    []*Settlement
	SeedGenerators []*Generator
	Coastline      []Coordinate
	Width          float64
	Height         float64
}

// Grid is the mutable world state of one run. Cloning shares StaticData and
// deep-copies only the per-run delta: added assets, seed-fleet overrides,
// and storage charge state.
type Grid struct {
	static *StaticData
	scorer SiteScorer

	added   []*Generator
	offsets []*CarbonOffset
	// overrides holds copy-on-write replacements for mutated seed generators,
	// keyed by generator ID.
	overrides map[string]*Generator
	Storage   PowerStorageSystem

	nextID int
}

// New builds a grid over the given seed data. The scorer may be nil, in
// which case every candidate site scores the neutral 0.5.
func New(static *StaticData, scorer SiteScorer) *Grid {
	g := &Grid{
		static:    static,
		scorer:    scorer,
		overrides: make(map[string]*Generator),
	}
	for _, sg := range static.SeedGenerators {
		if sg.Type.IsStorage() && sg.IsActive(StartYear) {
			g.Storage.Expand(sg.CapacityMW * StorageHoursPerUnit)
		}
	}
	return g
}

// Clone returns an independent copy sharing the immutable seed data.
func (g *Grid) Clone() *Grid {
	c := &Grid{
		static:    g.static,
		scorer:    g.scorer,
		added:     make([]*Generator, len(g.added)),
		offsets:   make([]*CarbonOffset, len(g.offsets)),
		overrides: make(map[string]*Generator, len(g.overrides)),
		Storage:   g.Storage,
		nextID:    g.nextID,
	}
	for i, gen := range g.added {
		c.added[i] = gen.clone()
	}
	for i, off := range g.offsets {
		c.offsets[i] = off.clone()
	}
	for id, gen := range g.overrides {
		c.overrides[id] = gen.clone()
	}
	return c
}

// Static exposes the shared seed data.
func (g *Grid) Static() *StaticData { return g.static }

// Generators visits every generator, seed overrides applied, added last.
func (g *Grid) Generators(visit func(*Generator)) {
	for _, sg := range g.static.SeedGenerators {
		if ov, ok := g.overrides[sg.ID]; ok {
			visit(ov)
			continue
		}
		visit(sg)
	}
	for _, gen := range g.added {
		visit(gen)
	}
}

// FindGenerator returns the live record for an ID, from the delta if the
// seed asset has been mutated.
func (g *Grid) FindGenerator(id string) (*Generator, bool) {
	if ov, ok := g.overrides[id]; ok {
		return ov, true
	}
	for _, gen := range g.added {
		if gen.ID == id {
			return gen, true
		}
	}
	for _, sg := range g.static.SeedGenerators {
		if sg.ID == id {
			return sg, true
		}
	}
	return nil, false
}

// mutable returns a writable record for a generator, copying a seed asset
// into the override set on first touch.
func (g *Grid) mutable(id string) (*Generator, bool) {
	if ov, ok := g.overrides[id]; ok {
		return ov, true
	}
	for _, gen := range g.added {
		if gen.ID == id {
			return gen, true
		}
	}
	for _, sg := range g.static.SeedGenerators {
		if sg.ID == id {
			ov := sg.clone()
			g.overrides[id] = ov
			return ov, true
		}
	}
	return nil, false
}

// TotalPopulation sums settlement populations for a year.
func (g *Grid) TotalPopulation(year int) float64 {
	var total float64
	for _, s := range g.static.Settlements {
		total += s.Population(year)
	}
	return total
}

// TotalPowerUsage sums settlement demand in MW for a year.
func (g *Grid) TotalPowerUsage(year int) float64 {
	var total float64
	for _, s := range g.static.Settlements {
		total += s.PowerUsage(year)
	}
	return total
}

// TotalPowerGeneration returns deliverable MW for a year with the
// intermittent-absorption cap applied.
func (g *Grid) TotalPowerGeneration(year int) float64 {
	var firm, intermittent float64
	g.Generators(func(gen *Generator) {
		out := gen.Output(year)
		if gen.Type.IsIntermittent() {
			intermittent += out
			return
		}
		firm += out
	})
	limit := MaxIntermittentCapacity(g.TotalPowerUsage(year), g.Storage.CapacityMWh)
	if intermittent > limit {
		intermittent = limit
	}
	return firm + intermittent
}

// PowerBalance is generation minus usage for a year.
func (g *Grid) PowerBalance(year int) float64 {
	return g.TotalPowerGeneration(year) - g.TotalPowerUsage(year)
}

// PowerReliability returns demand coverage as a percentage capped at 100.
func (g *Grid) PowerReliability(year int) float64 {
	usage := g.TotalPowerUsage(year)
	if usage <= 0 {
		return 100
	}
	ratio := g.TotalPowerGeneration(year) / usage
	if ratio > 1 {
		ratio = 1
	}
	return ratio * 100
}

// TotalCO2Emissions sums tonnes emitted in a year across the fleet.
func (g *Grid) TotalCO2Emissions(year int) float64 {
	var total float64
	g.Generators(func(gen *Generator) {
		total += gen.CO2Emissions(year)
	})
	return total
}

// TotalCarbonOffset sums tonnes captured by offset projects in a year.
func (g *Grid) TotalCarbonOffset(year int) float64 {
	var total float64
	for _, off := range g.offsets {
		total += off.Capture(year)
	}
	return total
}

// NetCO2Emissions is emissions minus offsets; negative means net capture.
func (g *Grid) NetCO2Emissions(year int) float64 {
	return g.TotalCO2Emissions(year) - g.TotalCarbonOffset(year)
}

// TotalCapitalCost sums build costs, priced at commission year, of all
// run-added assets commissioned by the given year. Seed assets are sunk.
func (g *Grid) TotalCapitalCost(year int) float64 {
	var total float64
	for _, gen := range g.added {
		if gen.CommissionYear <= year {
			total += CapitalCost(gen.Type, gen.CommissionYear)
		}
	}
	for _, off := range g.offsets {
		if off.CommissionYear <= year {
			total += OffsetCost(off.Type, off.CommissionYear)
		}
	}
	return total
}

// YearlyOperatingCost sums running costs of the active fleet for a year.
// Seed assets count too: running a plant is never sunk.
func (g *Grid) YearlyOperatingCost(year int) float64 {
	var total float64
	g.Generators(func(gen *Generator) {
		if gen.IsActive(year) {
			total += OperatingCost(gen.Type, year) * float64(gen.OperationPercent) / 100.0
		}
	})
	return total
}

// YearlyCapitalCost sums build costs of assets commissioned exactly in the
// given year.
func (g *Grid) YearlyCapitalCost(year int) float64 {
	var total float64
	for _, gen := range g.added {
		if gen.CommissionYear == year {
			total += CapitalCost(gen.Type, gen.CommissionYear)
		}
	}
	for _, off := range g.offsets {
		if off.CommissionYear == year {
			total += OffsetCost(off.Type, off.CommissionYear)
		}
	}
	return total
}

// GeneratorOpinion rates local acceptance of one generator in a year,
// blending the technology baseline with site suitability.
func (g *Grid) GeneratorOpinion(gen *Generator, year int) float64 {
	base := BaseOpinion(gen.Type, year)
	site := 0.5
	if g.scorer != nil {
		site = g.scorer.ScoreSite(gen.Location, gen.Type)
	}
	return clampOpinion(base * (0.8 + 0.4*site))
}

// AverageOpinion averages per-generator opinion over the active fleet,
// plus offset project goodwill.
func (g *Grid) AverageOpinion(year int) float64 {
	var total float64
	var count int
	g.Generators(func(gen *Generator) {
		if !gen.IsActive(year) {
			return
		}
		total += g.GeneratorOpinion(gen, year)
		count++
	})
	if count == 0 {
		return DefaultOpinion
	}
	avg := total / float64(count)
	for _, off := range g.offsets {
		if off.CommissionYear <= year {
			avg += OffsetSpecs[off.Type].OpinionBonus / float64(count)
		}
	}
	return clampOpinion(avg)
}

// ActiveGeneratorCount counts commissioned, unclosed generators in a year.
func (g *Grid) ActiveGeneratorCount(year int) int {
	var count int
	g.Generators(func(gen *Generator) {
		if gen.IsActive(year) {
			count++
		}
	})
	return count
}

// FindBestLocation scans candidate sites for the best suitability score.
func (g *Grid) FindBestLocation(t model.GeneratorType) (Coordinate, float64) {
	if g.scorer == nil {
		return Coordinate{X: g.static.Width / 2, Y: g.static.Height / 2}, 0.5
	}
	const steps = 12
	best := Coordinate{}
	bestScore := -1.0
	for i := 0; i < steps; i++ {
		for j := 0; j < steps; j++ {
			loc := Coordinate{
				X: g.static.Width * (float64(i) + 0.5) / steps,
				Y: g.static.Height * (float64(j) + 0.5) / steps,
			}
			score := g.scorer.ScoreSite(loc, t)
			if score > bestScore {
				bestScore = score
				best = loc
			}
		}
	}
	return best, bestScore
}

// AddGenerator sites and commissions a new generator, walking the technology
// fallback chain when no acceptable site exists for the requested type. The
// returned generator reports the type actually built.
func (g *Grid) AddGenerator(t model.GeneratorType, year int) (*Generator, error) {
	tried := make(map[model.GeneratorType]bool)
	for !tried[t] {
		tried[t] = true
		loc, score := g.FindBestLocation(t)
		if score >= MinSuitability {
			gen := NewGenerator(g.newID(t), t, loc, year)
			g.added = append(g.added, gen)
			if t.IsStorage() {
				g.Storage.Expand(gen.CapacityMW * StorageHoursPerUnit)
			}
			return gen, nil
		}
		t = FallbackType(t)
	}
	return nil, fmt.Errorf("no suitable site for %s or any fallback", t)
}

// AddOffset commissions a carbon offset project.
func (g *Grid) AddOffset(t model.OffsetType, year int) *CarbonOffset {
	loc := Coordinate{X: g.static.Width / 2, Y: g.static.Height / 2}
	if g.scorer != nil {
		loc, _ = g.FindBestLocation(model.GeneratorBiomass)
	}
	off := &CarbonOffset{
		ID:             fmt.Sprintf("offset_%s_%d", t, len(g.offsets)+1),
		Type:           t,
		Location:       loc,
		CommissionYear: year,
	}
	g.offsets = append(g.offsets, off)
	return off
}

// UpgradeLeastEfficient upgrades the active generator with the most
// efficiency headroom and returns (id, cost). False when nothing can be
// upgraded.
func (g *Grid) UpgradeLeastEfficient(year int) (string, float64, bool) {
	var targetID string
	lowest := 1.0
	g.Generators(func(gen *Generator) {
		if !gen.IsActive(year) || gen.Type.IsStorage() {
			return
		}
		if gen.Efficiency < lowest {
			lowest = gen.Efficiency
			targetID = gen.ID
		}
	})
	if targetID == "" || lowest >= 0.95 {
		return "", 0, false
	}
	gen, _ := g.mutable(targetID)
	cost := gen.Upgrade(year)
	return targetID, cost, true
}

// CloseDirtiest decommissions the active generator with the highest
// emissions, provided the grid keeps a non-negative balance without it.
// Returns (id, cost). False when no closure is feasible.
func (g *Grid) CloseDirtiest(year int) (string, float64, bool) {
	var targetID string
	var worst float64
	g.Generators(func(gen *Generator) {
		e := gen.CO2Emissions(year)
		if e > worst {
			worst = e
			targetID = gen.ID
		}
	})
	if targetID == "" {
		return "", 0, false
	}
	gen, _ := g.mutable(targetID)
	if g.PowerBalance(year)-gen.Output(year) < 0 {
		return "", 0, false
	}
	cost := gen.Close(year)
	return targetID, cost, true
}

// AdjustOperation sets the operating point of every active generator of a
// type. Returns the number of generators touched.
func (g *Grid) AdjustOperation(t model.GeneratorType, percent, year int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	var ids []string
	g.Generators(func(gen *Generator) {
		if gen.Type == t && gen.IsActive(year) {
			ids = append(ids, gen.ID)
		}
	})
	for _, id := range ids {
		gen, _ := g.mutable(id)
		gen.OperationPercent = percent
	}
	return len(ids)
}

func (g *Grid) newID(t model.GeneratorType) string {
	g.nextID++
	return fmt.Sprintf("gen_%s_%d", t, g.nextID)
}
