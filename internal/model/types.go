package model

import (
	"fmt"
	"strings"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// GeneratorType identifies a generation (or storage) technology.
type GeneratorType string

const (
	GeneratorCoal           GeneratorType = "coal"
	GeneratorGasCombined    GeneratorType = "gas_combined_cycle"
	GeneratorGasPeaker      GeneratorType = "gas_peaker"
	GeneratorNuclear        GeneratorType = "nuclear"
	GeneratorOnshoreWind    GeneratorType = "onshore_wind"
	GeneratorOffshoreWind   GeneratorType = "offshore_wind"
	GeneratorUtilitySolar   GeneratorType = "utility_solar"
	GeneratorHydroDam       GeneratorType = "hydro_dam"
	GeneratorPumpedStorage  GeneratorType = "pumped_storage"
	GeneratorBatteryStorage GeneratorType = "battery_storage"
	GeneratorBiomass        GeneratorType = "biomass"
	GeneratorTidal          GeneratorType = "tidal"
	GeneratorWave           GeneratorType = "wave"
)

// IsIntermittent reports whether output depends on weather conditions.
func (g GeneratorType) IsIntermittent() bool {
	switch g {
	case GeneratorOnshoreWind, GeneratorOffshoreWind, GeneratorUtilitySolar, GeneratorTidal, GeneratorWave:
		return true
	}
	return false
}

// IsStorage reports whether the technology stores rather than produces power.
func (g GeneratorType) IsStorage() bool {
	return g == GeneratorBatteryStorage || g == GeneratorPumpedStorage
}

// OffsetType identifies a carbon offset project kind.
type OffsetType string

const (
	OffsetForest        OffsetType = "forest"
	OffsetWetland       OffsetType = "wetland"
	OffsetActiveCapture OffsetType = "active_capture"
	OffsetCarbonCredit  OffsetType = "carbon_credit"
)

// ActionType is the closed decision vocabulary of the planner.
type ActionType string

const (
	ActionAddGenerator      ActionType = "add_generator"
	ActionAddOffset         ActionType = "add_offset"
	ActionAddStorage        ActionType = "add_storage"
	ActionUpgradeEfficiency ActionType = "upgrade_efficiency"
	ActionAdjustOperation   ActionType = "adjust_operation"
	ActionCloseGenerator    ActionType = "close_generator"
	ActionNoOp              ActionType = "no_op"
)

// Action is one grid-modifying decision. Immutable once created; a copy is
// retained in the per-year action history of a run.
type Action struct {
	Type      ActionType    `json:"type"`
	Generator GeneratorType `json:"generator,omitempty"`
	Offset    OffsetType    `json:"offset,omitempty"`
	TargetID  string        `json:"target_id,omitempty"`
	Operation int           `json:"operation,omitempty"`
	Count     int           `json:"count,omitempty"`
}

// NoOp is the always-feasible fallback action.
func NoOp() Action {
	return Action{Type: ActionNoOp}
}

// ActionKey is the stable identity used to index weights. It excludes the
// count and any concrete target id, so all placements of the same technology
// share one learned weight.
type ActionKey string

// Key derives the weight-table identity for an action.
func (a Action) Key() ActionKey {
	switch a.Type {
	case ActionAddGenerator, ActionAddStorage, ActionAdjustOperation:
		return ActionKey(string(a.Type) + ":" + string(a.Generator))
	case ActionAddOffset:
		return ActionKey(string(a.Type) + ":" + string(a.Offset))
	default:
		return ActionKey(a.Type)
	}
}

// ParseActionKey reconstructs a prototype action from a weight-table key.
func ParseActionKey(key ActionKey) (Action, error) {
	parts := strings.SplitN(string(key), ":", 2)
	switch ActionType(parts[0]) {
	case ActionAddGenerator, ActionAddStorage, ActionAdjustOperation:
		if len(parts) != 2 {
			return Action{}, fmt.Errorf("action key %q missing generator type", key)
		}
		return Action{Type: ActionType(parts[0]), Generator: GeneratorType(parts[1]), Count: 1}, nil
	case ActionAddOffset:
		if len(parts) != 2 {
			return Action{}, fmt.Errorf("action key %q missing offset type", key)
		}
		return Action{Type: ActionAddOffset, Offset: OffsetType(parts[1]), Count: 1}, nil
	case ActionUpgradeEfficiency, ActionCloseGenerator, ActionNoOp:
		return Action{Type: ActionType(parts[0])}, nil
	default:
		return Action{}, fmt.Errorf("unknown action key %q", key)
	}
}

// ActionResult is an ephemeral snapshot of world aggregates taken before and
// after applying a batch of actions in a year. Never persisted.
type ActionResult struct {
	NetEmissions  float64
	PublicOpinion float64
	PowerBalance  float64
	TotalCost     float64
}

// YearlyMetrics is one year's accounting for one run. Cumulative fields carry
// forward from the previous year's record.
type YearlyMetrics struct {
	Year                      int     `json:"year"`
	TotalPopulation           float64 `json:"total_population"`
	TotalPowerUsage           float64 `json:"total_power_usage"`
	TotalPowerGeneration      float64 `json:"total_power_generation"`
	PowerBalance              float64 `json:"power_balance"`
	PowerReliability          float64 `json:"power_reliability"`
	ResidualShortfall         float64 `json:"residual_shortfall"`
	AveragePublicOpinion      float64 `json:"average_public_opinion"`
	YearlyCapitalCost         float64 `json:"yearly_capital_cost"`
	TotalCapitalCost          float64 `json:"total_capital_cost"`
	InflationFactor           float64 `json:"inflation_factor"`
	TotalCO2Emissions         float64 `json:"total_co2_emissions"`
	TotalCarbonOffset         float64 `json:"total_carbon_offset"`
	NetCO2Emissions           float64 `json:"net_co2_emissions"`
	YearlyCarbonCreditRevenue float64 `json:"yearly_carbon_credit_revenue"`
	TotalCarbonCreditRevenue  float64 `json:"total_carbon_credit_revenue"`
	YearlyEnergySalesRevenue  float64 `json:"yearly_energy_sales_revenue"`
	TotalEnergySalesRevenue   float64 `json:"total_energy_sales_revenue"`
	YearlyUpgradeCosts        float64 `json:"yearly_upgrade_costs"`
	YearlyClosureCosts        float64 `json:"yearly_closure_costs"`
	YearlyOperatingCost       float64 `json:"yearly_operating_cost"`
	YearlyTotalCost           float64 `json:"yearly_total_cost"`
	TotalCost                 float64 `json:"total_cost"`
	ActiveGenerators          int     `json:"active_generators"`
}

// SimulationMetrics is the end-of-run summary used for best-run comparison.
type SimulationMetrics struct {
	FinalNetEmissions    float64 `json:"final_net_emissions"`
	AveragePublicOpinion float64 `json:"average_public_opinion"`
	TotalCost            float64 `json:"total_cost"`
	PowerReliability     float64 `json:"power_reliability"`
}

// SimulationResult is everything one career run produces.
type SimulationResult struct {
	Metrics        SimulationMetrics `json:"metrics"`
	Score          float64           `json:"score"`
	Yearly         []YearlyMetrics   `json:"yearly"`
	Actions        map[int][]Action  `json:"actions"`
	DeficitActions map[int][]Action  `json:"deficit_actions,omitempty"`
}

// Experience is one replay-buffer entry: a full action history and its score.
type Experience struct {
	Actions map[int][]Action `json:"actions"`
	Score   float64          `json:"score"`
}

// WeightsSnapshot is the serialized form of the action-weight store. It is
// what checkpoints persist and what a resumed search restores.
type WeightsSnapshot struct {
	VersionedRecord
	StartYear                    int                           `json:"start_year"`
	EndYear                      int                           `json:"end_year"`
	Weights                      map[int]map[ActionKey]float64 `json:"weights"`
	DeficitWeights               map[int]map[ActionKey]float64 `json:"deficit_weights"`
	ActionCountWeights           map[int][]float64             `json:"action_count_weights,omitempty"`
	LearningRate                 float64                       `json:"learning_rate"`
	ExplorationRate              float64                       `json:"exploration_rate"`
	IterationCount               int                           `json:"iteration_count"`
	IterationsWithoutImprovement int                           `json:"iterations_without_improvement"`
	BestScore                    float64                       `json:"best_score"`
	BestMetrics                  *SimulationMetrics            `json:"best_metrics,omitempty"`
	BestActions                  map[int][]Action              `json:"best_actions,omitempty"`
	BestDeficitActions           map[int][]Action              `json:"best_deficit_actions,omitempty"`
	BestWeights                  map[int]map[ActionKey]float64 `json:"best_weights,omitempty"`
	ReplayBuffer                 []Experience                  `json:"replay_buffer,omitempty"`
	OptimizationMode             string                        `json:"optimization_mode,omitempty"`
}

// RunRecord summarizes a completed controller run for persistence.
type RunRecord struct {
	VersionedRecord
	ID           string            `json:"id"`
	Seed         int64             `json:"seed"`
	Iterations   int               `json:"iterations"`
	Workers      int               `json:"workers"`
	BestScore    float64           `json:"best_score"`
	BestMetrics  SimulationMetrics `json:"best_metrics"`
	CreatedAtUTC string            `json:"created_at_utc"`
}
