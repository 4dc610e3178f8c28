package model

// BatterySpec describes the static physical parameters of the battery
// (spec §3 "Battery state"). Field names and units follow the
// teacher's mpc.SystemConfig shape but percentages are fractions
// 0..100 throughout this repo rather than the teacher's 0..1, matching
// the canonical schedule output's percent fields.
type BatterySpec struct {
	CapacityKWh     float64
	MinSoCPct       float64
	MaxSoCPct       float64
	MaxChargeKW     float64
	MaxDischargeKW  float64
	Efficiency      float64 // one-way efficiency eta; round-trip = eta^2
}

// MinSoCKWh / MaxSoCKWh convert the percentage floor/ceiling to kWh
// for use inside the optimizer's state space.
func (b BatterySpec) MinSoCKWh() float64 { return b.CapacityKWh * b.MinSoCPct / 100 }
func (b BatterySpec) MaxSoCKWh() float64 { return b.CapacityKWh * b.MaxSoCPct / 100 }

// BatteryState is the live reading from the StateProvider (spec §6).
type BatteryState struct {
	SoCNowPct          float64
	SoCNowKWh          float64
	PVNowKW            float64
	LoadNowKW           float64
	WaterHeatedTodayKWh float64
	VacationMode       bool
	AlarmArmed         bool
	ManualOverride     OverrideSource
}

// PolicyVector (theta) is the set of per-run tunable parameters the
// strategy layer passes into Kepler (spec §3 "Policy vector theta").
type PolicyVector struct {
	TargetSoCEndPct     float64
	SIndexFactor        float64
	WearCostPerKWh      float64
	RampingCost         float64
	ExportMinSpread     float64
	ProtectiveSoCKWh    float64
	SoftFloorPenalty    []float64 // per-slot, length == horizon
	TargetSoCPenalty    float64   // monetary units/kWh on terminal slack
	WaterQuotaRelaxed   bool
}
