// Package model defines the shared data types that flow through the
// planning pipeline and the executor: slots, battery state, and the
// policy vector handed from the strategy layer into the optimizer.
package model

import "time"

// Classification labels the dominant action of a slot.
type Classification string

const (
	ClassCharge    Classification = "Charge"
	ClassDischarge Classification = "Discharge"
	ClassHold      Classification = "Hold"
	ClassExport    Classification = "Export"
	ClassPVCharge  Classification = "PV_Charge"
	ClassWater     Classification = "Water"
)

// OverrideSource identifies who forced a manual override on a slot.
type OverrideSource string

const (
	OverrideNone    OverrideSource = "none"
	OverrideUser    OverrideSource = "user_block"
	OverrideAnalyst OverrideSource = "analyst"
)

// SlotDuration is the fixed planning resolution (§3 Horizon).
const SlotDuration = 15 * time.Minute

// HorizonSlots is the number of slots the planner always emits (48h @ 15min).
const HorizonSlots = 192

// Slot is the immutable-key, mutable-plan/observation row described in
// spec §3. SlotStart/SlotEnd never change for a given row; Plan* fields
// are overwritten each planner run unless IsHistorical; Actual* fields
// are appended once by the executor/recorder and then frozen.
type Slot struct {
	SlotStart time.Time
	SlotEnd   time.Time

	// Forecast inputs (post-Preparer/ForecastAdapter inflation).
	LoadKWh       float64
	PVKWh         float64
	LoadP10       float64
	LoadP90       float64
	PVP10         float64
	PVP90         float64
	TemperatureC  float64
	CloudCoverPct float64
	ImportPrice   float64
	ExportPrice   float64

	// Plan.
	ChargeKWh      float64
	DischargeKWh   float64
	GridImportKWh  float64
	GridExportKWh  float64
	WaterHeatOn    bool
	SoCStartPct    float64
	SoCEndPct      float64
	SoCTargetPct   float64
	Classification Classification
	Reason         string

	// Observation.
	ActualLoadKWh    float64
	ActualPVKWh      float64
	ActualChargeKWh  float64
	ActualDischargeKWh float64
	ActualGridImportKWh float64
	ActualGridExportKWh float64
	ActualSoCPct     float64
	HasObservation   bool

	// Flags.
	IsHistorical          bool
	ManualOverrideSource  OverrideSource
}

// CostSEK returns the slot's realized monetary cost for the canonical
// schedule output (import cost minus export revenue), rounded to 4dp
// by the caller per spec §6.
func (s Slot) CostSEK() float64 {
	return s.ImportPrice*s.GridImportKWh - s.ExportPrice*s.GridExportKWh
}

// ChargeKW / DischargeKW / ExportKW convert the
// per-slot energy (kWh) to average power (kW) for the canonical
// output: power = energy * 4 (15-minute slots).
func (s Slot) ChargeKW() float64    { return s.ChargeKWh * 4 }
func (s Slot) DischargeKW() float64 { return s.DischargeKWh * 4 }
func (s Slot) ExportKW() float64    { return s.GridExportKWh * 4 }

// Aligned reports whether t falls on a 15-minute wall-clock boundary.
func Aligned(t time.Time) bool {
	return t.Truncate(SlotDuration).Equal(t)
}

// NextAligned rounds t up to the next 15-minute boundary (or returns t
// unchanged if it is already aligned).
func NextAligned(t time.Time) time.Time {
	truncated := t.Truncate(SlotDuration)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(SlotDuration)
}
