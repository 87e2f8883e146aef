package grid

import "gridplan/internal/model"

// Planning horizon.
const (
	StartYear = 2025
	EndYear   = 2050
)

// Dispatch and storage limits.
const (
	// MaxIntermittentPercentage caps weather-dependent generation as a share
	// of total demand when no storage is available.
	MaxIntermittentPercentage = 0.40
	// StorageCapacityFactor converts MWh of storage into additional
	// allowable intermittent MW.
	StorageCapacityFactor = 0.5
	// StorageRoundTripEfficiency is the default round-trip efficiency of a
	// storage system.
	StorageRoundTripEfficiency = 0.85
	// StorageRateFraction is the charge/discharge rate as a fraction of
	// capacity per hour.
	StorageRateFraction = 0.25
	// StorageHoursPerUnit converts a storage unit's MW rating to MWh.
	StorageHoursPerUnit = 4.0
)

// Demand model.
const (
	PopulationGrowthRate = 0.01
	BasePerCapitaUsageMW = 0.0045
	UsageGrowthRate      = 0.01
)

// Economic model.
const (
	InflationRate          = 0.02
	RenewableLearningRate  = 0.02
	BaseCarbonPrice        = 50.0
	CarbonPriceGrowthRate  = 0.05
	DefaultEnergySalesRate = 30.0
	HoursPerYear           = 8760.0
)

// Opinion defaults.
const (
	DefaultOpinion = 0.5
	MinOpinion     = 0.05
	MaxOpinion     = 0.95
)

// Siting.
const (
	// MinSuitability is the score below which a candidate site is rejected
	// and the technology fallback chain is consulted.
	MinSuitability = 0.2
)

// GeneratorSpec is the fixed technology table entry for one generator type.
type GeneratorSpec struct {
	CapacityMW  float64
	BaseCost    float64
	Efficiency  float64
	BaseOpinion float64
	CO2PerYear  float64
}

// Specs is the closed technology table. CO2 rates are tonnes per year at
// full output.
var Specs = map[model.GeneratorType]GeneratorSpec{
	model.GeneratorCoal:           {CapacityMW: 1600, BaseCost: 3.5e9, Efficiency: 0.85, BaseOpinion: 0.30, CO2PerYear: 6300 * 1600},
	model.GeneratorGasCombined:    {CapacityMW: 850, BaseCost: 1.0e9, Efficiency: 0.87, BaseOpinion: 0.45, CO2PerYear: 3500 * 850},
	model.GeneratorGasPeaker:      {CapacityMW: 600, BaseCost: 0.5e9, Efficiency: 0.90, BaseOpinion: 0.40, CO2PerYear: 4800 * 600},
	model.GeneratorNuclear:        {CapacityMW: 2400, BaseCost: 9.0e9, Efficiency: 0.92, BaseOpinion: 0.50, CO2PerYear: 0},
	model.GeneratorOnshoreWind:    {CapacityMW: 150, BaseCost: 0.3e9, Efficiency: 0.35, BaseOpinion: 0.70, CO2PerYear: 0},
	model.GeneratorOffshoreWind:   {CapacityMW: 400, BaseCost: 1.4e9, Efficiency: 0.45, BaseOpinion: 0.75, CO2PerYear: 0},
	model.GeneratorUtilitySolar:   {CapacityMW: 200, BaseCost: 0.25e9, Efficiency: 0.25, BaseOpinion: 0.85, CO2PerYear: 0},
	model.GeneratorHydroDam:       {CapacityMW: 1000, BaseCost: 3.0e9, Efficiency: 0.50, BaseOpinion: 0.65, CO2PerYear: 0},
	model.GeneratorPumpedStorage:  {CapacityMW: 500, BaseCost: 1.2e9, Efficiency: 0.80, BaseOpinion: 0.70, CO2PerYear: 0},
	model.GeneratorBatteryStorage: {CapacityMW: 400, BaseCost: 0.8e9, Efficiency: 0.90, BaseOpinion: 0.80, CO2PerYear: 0},
	model.GeneratorBiomass:        {CapacityMW: 300, BaseCost: 0.6e9, Efficiency: 0.80, BaseOpinion: 0.55, CO2PerYear: 1500 * 300},
	model.GeneratorTidal:          {CapacityMW: 240, BaseCost: 0.9e9, Efficiency: 0.30, BaseOpinion: 0.72, CO2PerYear: 0},
	model.GeneratorWave:           {CapacityMW: 120, BaseCost: 0.5e9, Efficiency: 0.25, BaseOpinion: 0.70, CO2PerYear: 0},
}

// OffsetSpec is the fixed table entry for one carbon offset project kind.
type OffsetSpec struct {
	CapturePerYear float64
	BaseCost       float64
	OpinionBonus   float64
}

var OffsetSpecs = map[model.OffsetType]OffsetSpec{
	model.OffsetForest:        {CapturePerYear: 50_000, BaseCost: 50e6, OpinionBonus: 0.04},
	model.OffsetWetland:       {CapturePerYear: 30_000, BaseCost: 40e6, OpinionBonus: 0.05},
	model.OffsetActiveCapture: {CapturePerYear: 250_000, BaseCost: 600e6, OpinionBonus: 0.01},
	model.OffsetCarbonCredit:  {CapturePerYear: 100_000, BaseCost: 200e6, OpinionBonus: 0.0},
}

// FallbackType maps a technology to the one tried instead when siting
// rejects every candidate location for it.
func FallbackType(g model.GeneratorType) model.GeneratorType {
	switch g {
	case model.GeneratorNuclear:
		return model.GeneratorGasCombined
	case model.GeneratorHydroDam, model.GeneratorPumpedStorage:
		return model.GeneratorGasPeaker
	case model.GeneratorOffshoreWind:
		return model.GeneratorOnshoreWind
	case model.GeneratorTidal, model.GeneratorWave:
		return model.GeneratorOffshoreWind
	default:
		return model.GeneratorGasPeaker
	}
}
