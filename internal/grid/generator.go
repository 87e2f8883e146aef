package grid

import "gridplan/internal/model"

// Coordinate is a position on the planning map, in abstract map units.
type Coordinate struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Generator is one generation asset, either part of the immutable seed fleet
// or added during a run.
type Generator struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Type             model.GeneratorType `json:"type"`
	Location         Coordinate          `json:"location"`
	CapacityMW       float64             `json:"capacity_mw"`
	Efficiency       float64             `json:"efficiency"`
	OperationPercent int                 `json:"operation_percent"`
	CommissionYear   int                 `json:"commission_year"`
	DecommissionYear int                 `json:"decommission_year,omitempty"`
	// Existing marks seed-fleet assets whose build cost is sunk and excluded
	// from capital accounting.
	Existing bool `json:"existing,omitempty"`
}

// NewGenerator builds a generator of the given type from the technology table.
func NewGenerator(id string, t model.GeneratorType, loc Coordinate, year int) *Generator {
	spec := Specs[t]
	return &Generator{
		ID:               id,
		Name:             id,
		Type:             t,
		Location:         loc,
		CapacityMW:       spec.CapacityMW,
		Efficiency:       spec.Efficiency,
		OperationPercent: 100,
		CommissionYear:   year,
	}
}

// IsActive reports whether the generator is commissioned and not yet closed
// in the given year.
func (g *Generator) IsActive(year int) bool {
	if year < g.CommissionYear {
		return false
	}
	return g.DecommissionYear == 0 || year < g.DecommissionYear
}

// Output returns effective MW delivered in the given year. Storage types do
// not produce organic output; they contribute through the storage system.
func (g *Generator) Output(year int) float64 {
	if !g.IsActive(year) || g.Type.IsStorage() {
		return 0
	}
	return g.CapacityMW * g.Efficiency * float64(g.OperationPercent) / 100.0
}

// CO2Emissions returns tonnes emitted per year at the current operating point.
func (g *Generator) CO2Emissions(year int) float64 {
	if !g.IsActive(year) {
		return 0
	}
	spec := Specs[g.Type]
	return spec.CO2PerYear * float64(g.OperationPercent) / 100.0
}

// Upgrade improves efficiency by a quarter of the remaining headroom and
// returns the upgrade cost for the year.
func (g *Generator) Upgrade(year int) float64 {
	g.Efficiency += (1 - g.Efficiency) * 0.25
	if g.Efficiency > 0.99 {
		g.Efficiency = 0.99
	}
	return UpgradeCost(g.Type, year)
}

// Close decommissions the generator in the given year and returns the
// closure cost. Closing an already-closed generator is a no-op.
func (g *Generator) Close(year int) float64 {
	if g.DecommissionYear != 0 {
		return 0
	}
	g.DecommissionYear = year
	return ClosureCost(g.Type, year)
}

// clone returns an independent copy.
func (g *Generator) clone() *Generator {
	c := *g
	return &c
}

// CarbonOffset is one offset project.
type CarbonOffset struct {
	ID             string           `json:"id"`
	Type           model.OffsetType `json:"type"`
	Location       Coordinate       `json:"location"`
	CommissionYear int              `json:"commission_year"`
}

// Capture returns tonnes of CO2 absorbed in the given year. Nature-based
// projects ramp up over their first five years.
func (o *CarbonOffset) Capture(year int) float64 {
	if year < o.CommissionYear {
		return 0
	}
	spec := OffsetSpecs[o.Type]
	age := year - o.CommissionYear
	if o.Type == model.OffsetForest || o.Type == model.OffsetWetland {
		ramp := float64(age+1) / 5.0
		if ramp > 1 {
			ramp = 1
		}
		return spec.CapturePerYear * ramp
	}
	return spec.CapturePerYear
}

func (o *CarbonOffset) clone() *CarbonOffset {
	c := *o
	return &c
}
