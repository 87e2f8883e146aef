// Package siting provides interchangeable site-suitability scorers. Both
// implementations are synchronous, pure functions; callers pick one at
// startup and the planning core never distinguishes them.
package siting

import (
	"fmt"
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"gridplan/internal/grid"
	"gridplan/internal/model"
)

// NewScorer selects an implementation by name.
func NewScorer(kind string, static *grid.StaticData, seed int64) (grid.SiteScorer, error) {
	switch kind {
	case "", "proximity":
		return NewProximityScorer(static), nil
	case "terrain":
		return NewTerrainScorer(static, seed), nil
	default:
		return nil, fmt.Errorf("unsupported site scorer: %s", kind)
	}
}

// ProximityScorer rates sites purely on distance to settlements and the
// coastline. It is the deterministic CPU fallback.
type ProximityScorer struct {
	static *grid.StaticData
}

func NewProximityScorer(static *grid.StaticData) *ProximityScorer {
	return &ProximityScorer{static: static}
}

// ScoreSite returns a suitability in [0,1]. Marine technologies need the
// coast; land technologies prefer standing apart from settlements without
// stranding transmission.
func (p *ProximityScorer) ScoreSite(loc grid.Coordinate, t model.GeneratorType) float64 {
	coast := nearestDistance(loc, p.static.Coastline)
	town := nearestSettlementDistance(loc, p.static.Settlements)
	diag := math.Hypot(p.static.Width, p.static.Height)
	if diag == 0 {
		diag = 1
	}

	switch t {
	case model.GeneratorOffshoreWind, model.GeneratorTidal, model.GeneratorWave:
		if len(p.static.Coastline) == 0 {
			return 0
		}
		// Close to the coast is essential; fade out past 15% of the map.
		return clamp01(1 - coast/(0.15*diag))
	case model.GeneratorHydroDam, model.GeneratorPumpedStorage:
		// Elevation data is not modeled; favor inland distance from the
		// coast as a stand-in for terrain relief.
		return clamp01(coast/(0.3*diag)) * 0.8
	default:
		// Peak suitability at a moderate distance from settlements.
		ideal := 0.12 * diag
		return clamp01(1 - math.Abs(town-ideal)/diag*4)
	}
}

// TerrainScorer overlays simplex-noise terrain suitability on the proximity
// score, giving spatial texture to otherwise uniform regions.
type TerrainScorer struct {
	base  *ProximityScorer
	noise opensimplex.Noise
	scale float64
}

func NewTerrainScorer(static *grid.StaticData, seed int64) *TerrainScorer {
	scale := math.Max(static.Width, static.Height)
	if scale == 0 {
		scale = 1
	}
	return &TerrainScorer{
		base:  NewProximityScorer(static),
		noise: opensimplex.NewNormalized(seed),
		scale: scale,
	}
}

func (t *TerrainScorer) ScoreSite(loc grid.Coordinate, g model.GeneratorType) float64 {
	base := t.base.ScoreSite(loc, g)
	terrain := t.noise.Eval2(loc.X/t.scale*4, loc.Y/t.scale*4)
	return clamp01(base*0.7 + terrain*0.3)
}

func nearestDistance(loc grid.Coordinate, points []grid.Coordinate) float64 {
	best := math.Inf(1)
	for _, p := range points {
		d := math.Hypot(loc.X-p.X, loc.Y-p.Y)
		if d < best {
			best = d
		}
	}
	if math.IsInf(best, 1) {
		return 0
	}
	return best
}

func nearestSettlementDistance(loc grid.Coordinate, settlements []*grid.Settlement) float64 {
	best := math.Inf(1)
	for _, s := range settlements {
		d := math.Hypot(loc.X-s.Location.X, loc.Y-s.Location.Y)
		if d < best {
			best = d
		}
	}
	if math.IsInf(best, 1) {
		return 0
	}
	return best
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
