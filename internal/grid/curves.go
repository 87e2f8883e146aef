package grid

import (
	"math"

	"gridplan/internal/model"
)

// Economic and demographic curves, all pure functions of (type, year).

// InflationFactor compounds from the start year.
func InflationFactor(year int) float64 {
	if year <= StartYear {
		return 1.0
	}
	return math.Pow(1+InflationRate, float64(year-StartYear))
}

// PerCapitaUsage returns MW of demand per person for a given year.
// Electrification of heat and transport outpaces efficiency gains.
func PerCapitaUsage(year int) float64 {
	if year <= StartYear {
		return BasePerCapitaUsageMW
	}
	return BasePerCapitaUsageMW * math.Pow(1+UsageGrowthRate, float64(year-StartYear))
}

// CapitalCost returns the year-adjusted build cost for a generator type.
// Renewable technologies ride a learning curve that offsets inflation.
func CapitalCost(g model.GeneratorType, year int) float64 {
	spec, ok := Specs[g]
	if !ok {
		return 0
	}
	cost := spec.BaseCost * InflationFactor(year)
	if g.IsIntermittent() || g == model.GeneratorBatteryStorage {
		cost *= math.Pow(1-RenewableLearningRate, float64(year-StartYear))
	}
	return cost
}

// OperatingCost is the yearly operating spend for a generator type,
// approximated as a fixed share of build cost.
func OperatingCost(g model.GeneratorType, year int) float64 {
	return CapitalCost(g, year) * 0.03
}

// UpgradeCost prices an efficiency upgrade for a generator type.
func UpgradeCost(g model.GeneratorType, year int) float64 {
	return CapitalCost(g, year) * 0.15
}

// ClosureCost prices decommissioning a generator type.
func ClosureCost(g model.GeneratorType, year int) float64 {
	return CapitalCost(g, year) * 0.10
}

// OffsetCost returns the year-adjusted cost of one offset project.
func OffsetCost(o model.OffsetType, year int) float64 {
	spec, ok := OffsetSpecs[o]
	if !ok {
		return 0
	}
	return spec.BaseCost * InflationFactor(year)
}

// BaseOpinion returns the public-opinion baseline for a technology in a
// given year. Sentiment drifts toward renewables over the horizon.
func BaseOpinion(g model.GeneratorType, year int) float64 {
	spec, ok := Specs[g]
	if !ok {
		return DefaultOpinion
	}
	drift := 0.005 * float64(year-StartYear)
	opinion := spec.BaseOpinion
	if spec.CO2PerYear > 0 {
		opinion -= drift
	} else if g.IsIntermittent() {
		opinion += drift * 0.5
	}
	return clampOpinion(opinion)
}

// CarbonPrice is the per-tonne credit price for a given year.
func CarbonPrice(year int) float64 {
	return BaseCarbonPrice * math.Pow(1+CarbonPriceGrowthRate, float64(year-StartYear))
}

// CarbonCreditRevenue returns credit income for a net-negative year, zero
// otherwise.
func CarbonCreditRevenue(netEmissions float64, year int) float64 {
	if netEmissions >= 0 {
		return 0
	}
	return -netEmissions * CarbonPrice(year)
}

// EnergySalesRevenue prices a yearly power surplus at the given $/MWh rate.
func EnergySalesRevenue(surplusMW float64, year int, rate float64) float64 {
	if surplusMW <= 0 {
		return 0
	}
	return surplusMW * HoursPerYear * rate * InflationFactor(year)
}

func clampOpinion(v float64) float64 {
	if v < MinOpinion {
		return MinOpinion
	}
	if v > MaxOpinion {
		return MaxOpinion
	}
	return v
}
