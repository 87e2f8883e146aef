package sim

import (
	"gridplan/internal/grid"
	"gridplan/internal/model"
)

// yearlyMetrics accounts one completed year, carrying cumulative fields
// forward from the previous year's record.
func (d *Driver) yearlyMetrics(year int, shortfall float64, prev *model.YearlyMetrics) model.YearlyMetrics {
	usage := d.grid.TotalPowerUsage(year)
	generation := d.grid.TotalPowerGeneration(year) + d.yearDischarged
	balance := generation - usage

	reliability := 100.0
	if usage > 0 {
		reliability = min(100, generation/usage*100)
	}

	netEmissions := d.grid.NetCO2Emissions(year)
	creditRevenue := grid.CarbonCreditRevenue(netEmissions, year)

	var salesRevenue float64
	if d.cfg.EnableEnergySales && balance > 0 {
		salesRevenue = grid.EnergySalesRevenue(balance, year, grid.DefaultEnergySalesRate)
	}

	var yearlyCapital float64
	if year == d.cfg.StartYear {
		yearlyCapital = d.grid.YearlyCapitalCost(year)
	} else {
		yearlyCapital = d.grid.TotalCapitalCost(year) - d.grid.TotalCapitalCost(year-1)
	}

	operating := d.grid.YearlyOperatingCost(year)
	yearlyTotal := yearlyCapital + operating + d.yearUpgradeCosts + d.yearClosureCosts - creditRevenue - salesRevenue

	opinion := grid.DefaultOpinion
	if !d.cfg.FastMode || year == d.cfg.EndYear {
		opinion = d.grid.AverageOpinion(year)
	}

	m := model.YearlyMetrics{
		Year:                      year,
		TotalPopulation:           d.grid.TotalPopulation(year),
		TotalPowerUsage:           usage,
		TotalPowerGeneration:      generation,
		PowerBalance:              balance,
		PowerReliability:          reliability,
		ResidualShortfall:         shortfall,
		AveragePublicOpinion:      opinion,
		YearlyCapitalCost:         yearlyCapital,
		TotalCapitalCost:          d.grid.TotalCapitalCost(year),
		InflationFactor:           grid.InflationFactor(year),
		TotalCO2Emissions:         d.grid.TotalCO2Emissions(year),
		TotalCarbonOffset:         d.grid.TotalCarbonOffset(year),
		NetCO2Emissions:           netEmissions,
		YearlyCarbonCreditRevenue: creditRevenue,
		YearlyEnergySalesRevenue:  salesRevenue,
		YearlyUpgradeCosts:        d.yearUpgradeCosts,
		YearlyClosureCosts:        d.yearClosureCosts,
		YearlyOperatingCost:       operating,
		YearlyTotalCost:           yearlyTotal,
		ActiveGenerators:          d.grid.ActiveGeneratorCount(year),
	}

	if prev != nil {
		m.TotalCost = prev.TotalCost + yearlyTotal
		m.TotalCarbonCreditRevenue = prev.TotalCarbonCreditRevenue + creditRevenue
		m.TotalEnergySalesRevenue = prev.TotalEnergySalesRevenue + salesRevenue
	} else {
		m.TotalCost = yearlyTotal
		m.TotalCarbonCreditRevenue = creditRevenue
		m.TotalEnergySalesRevenue = salesRevenue
	}
	return m
}
