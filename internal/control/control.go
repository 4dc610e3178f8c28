// Package control is the abstract actuation boundary described in
// spec §6 "Control entities": the executor only ever calls these
// named operations, never talks registers directly. The Modbus
// backend generalizes the teacher's Sigenergy-specific register map
// (sigenergy/modbus_client.go) from a single-vendor inverter client
// into a small abstract interface any register-mapped EMS can
// implement by supplying its own register table.
package control

import "context"

// EntityState is the executor's view of a pending write's lifecycle
// (spec §4.9 "idempotent control writes").
type EntityState string

const (
	StateUnknown   EntityState = "Unknown"
	StateSetting   EntityState = "Setting"
	StateConfirmed EntityState = "Confirmed"
	StateDrifted   EntityState = "Drifted"
)

// Entities is the full set of actuation points the executor drives.
// Every method is idempotent: calling it again with the same value
// when the underlying register already holds that value is a no-op
// from the caller's perspective (it may still perform a Modbus
// round-trip, but must not change behavior).
type Entities interface {
	// EnableEMS toggles remote EMS control mode (teacher's EnableRemoteEMS).
	EnableEMS(ctx context.Context, enable bool) error
	// SetMode selects the EMS operating mode (teacher's SetRemoteEMSMode).
	SetMode(ctx context.Context, mode Mode) error
	// SetChargeLimitKW caps battery charge power for the current slot.
	SetChargeLimitKW(ctx context.Context, kw float64) error
	// SetDischargeLimitKW caps battery discharge power for the current slot.
	SetDischargeLimitKW(ctx context.Context, kw float64) error
	// SetExportLimitKW caps grid export power, used for PV-dump override.
	SetExportLimitKW(ctx context.Context, kw float64) error
	// SetWaterHeater turns the water heater contactor on or off.
	SetWaterHeater(ctx context.Context, on bool) error
	// ReadConfirmation reads back the actuator's current settings so
	// the executor can detect drift (spec §4.9 Confirmed -> Drifted).
	ReadConfirmation(ctx context.Context) (Confirmation, error)
	Close() error
}

// Mode mirrors the teacher's SetRemoteEMSMode enum (0-6), generalized
// to the handful of values this system actually drives.
type Mode uint16

const (
	ModeSelfConsumption Mode = 0
	ModeMaximizeExport  Mode = 4
	ModeMaximizeCharge  Mode = 6
)

// Confirmation is the actuator's reported state, compared against the
// executor's last-written values to detect drift.
type Confirmation struct {
	EMSEnabled     bool
	Mode           Mode
	ChargeLimitKW  float64
	DischargeLimitKW float64
	ExportLimitKW  float64
	WaterHeaterOn  bool
	BatterySoCPct  float64
	PVPowerKW      float64
	LoadPowerKW    float64
}
