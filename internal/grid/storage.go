package grid

// PowerStorageSystem aggregates all storage units on the grid.
type PowerStorageSystem struct {
	CapacityMWh   float64 `json:"capacity_mwh"`
	CurrentCharge float64 `json:"current_charge"`
	ChargeRate    float64 `json:"charge_rate"`
	DischargeRate float64 `json:"discharge_rate"`
	Efficiency    float64 `json:"efficiency"`
}

// NewPowerStorageSystem sizes a storage system for the given capacity.
func NewPowerStorageSystem(capacityMWh float64) PowerStorageSystem {
	return PowerStorageSystem{
		CapacityMWh:   capacityMWh,
		ChargeRate:    capacityMWh * StorageRateFraction,
		DischargeRate: capacityMWh * StorageRateFraction,
		Efficiency:    StorageRoundTripEfficiency,
	}
}

// Expand adds capacity, scaling the charge and discharge rates with it.
func (p *PowerStorageSystem) Expand(capacityMWh float64) {
	p.CapacityMWh += capacityMWh
	p.ChargeRate = p.CapacityMWh * StorageRateFraction
	p.DischargeRate = p.CapacityMWh * StorageRateFraction
	if p.Efficiency == 0 {
		p.Efficiency = StorageRoundTripEfficiency
	}
}

// Charge stores up to the requested amount and returns what was absorbed.
func (p *PowerStorageSystem) Charge(amount float64) float64 {
	room := p.CapacityMWh - p.CurrentCharge
	if room <= 0 || amount <= 0 {
		return 0
	}
	accepted := amount
	if accepted > room {
		accepted = room
	}
	if accepted > p.ChargeRate {
		accepted = p.ChargeRate
	}
	p.CurrentCharge += accepted
	return accepted
}

// Discharge draws up to the requested amount and returns delivered energy
// after round-trip losses.
func (p *PowerStorageSystem) Discharge(amount float64) float64 {
	if amount <= 0 || p.CurrentCharge <= 0 {
		return 0
	}
	drawn := amount
	if drawn > p.CurrentCharge {
		drawn = p.CurrentCharge
	}
	if drawn > p.DischargeRate {
		drawn = p.DischargeRate
	}
	p.CurrentCharge -= drawn
	return drawn * p.Efficiency
}

// MaxIntermittentCapacity returns the MW of weather-dependent generation the
// grid can absorb for the given total demand. Storage raises the base limit.
func MaxIntermittentCapacity(totalPowerNeeded, storageCapacityMWh float64) float64 {
	return totalPowerNeeded*MaxIntermittentPercentage + storageCapacityMWh*StorageCapacityFactor
}
