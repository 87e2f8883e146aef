package grid

import "math"

// Settlement is an immutable demand center from the seed data.
type Settlement struct {
	Name           string     `json:"name"`
	Location       Coordinate `json:"location"`
	BasePopulation float64    `json:"base_population"`
	// BaseDemandMW, when non-zero, overrides the per-capita usage curve for
	// the start year and grows at the same rate thereafter.
	BaseDemandMW float64 `json:"base_demand_mw,omitempty"`
}

// Population returns the settlement population for a year under compound
// growth from the start year.
func (s *Settlement) Population(year int) float64 {
	if year <= StartYear {
		return s.BasePopulation
	}
	return s.BasePopulation * math.Pow(1+PopulationGrowthRate, float64(year-StartYear))
}

// PowerUsage returns the settlement's demand in MW for a year.
func (s *Settlement) PowerUsage(year int) float64 {
	if s.BaseDemandMW > 0 {
		growth := math.Pow(1+PopulationGrowthRate+UsageGrowthRate, float64(year-StartYear))
		return s.BaseDemandMW * growth
	}
	return s.Population(year) * PerCapitaUsage(year)
}
