// Package override implements the executor's priority cascade (spec
// §4.9): low-SoC protection beats manual override beats PV-dump beats
// the planned action, and a stale or missing plan always falls back
// to a safe-idle decision regardless of the other three. This mirrors
// the teacher's dry-run/guard branching in executeMPCDecision
// (scheduler/mpc.go), generalized from a single inverter-safety check
// into an explicit, ordered evaluator so the priority order is a
// named, testable property instead of implicit if/else nesting.
package override

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/kepler-ems/planner/internal/config"
	"github.com/kepler-ems/planner/internal/control"
	"github.com/kepler-ems/planner/internal/model"
)

// Source names which rule produced a Decision, highest priority first.
type Source string

const (
	SourceLowSoC  Source = "low_soc_protection"
	SourceManual  Source = "manual_override"
	SourcePVDump  Source = "pv_dump"
	SourcePlan    Source = "plan"
	SourceSafeIdle Source = "safe_idle"
)

// Decision is what the executor should write to the control entities.
type Decision struct {
	Source           Source
	Mode             control.Mode
	ChargeLimitKW    float64
	DischargeLimitKW float64
	ExportLimitKW    float64
	WaterHeaterOn    bool
}

// Hash is a cheap fingerprint used by the executor to detect whether a
// decision actually changed since the last tick.
func (d Decision) Hash() string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%.3f|%.3f|%.3f|%v", d.Source, d.Mode, d.ChargeLimitKW, d.DischargeLimitKW, d.ExportLimitKW, d.WaterHeaterOn)))
	return hex.EncodeToString(sum[:])
}

// Evaluator applies the fixed priority cascade.
type Evaluator struct{}

func New() *Evaluator { return &Evaluator{} }

// Evaluate returns the decision to apply this tick. confirmation is
// the actuator's last-read live state, slot is the current planned
// slot (zero value if stale is true).
func (e *Evaluator) Evaluate(cfg *config.Config, confirmation control.Confirmation, slot model.Slot, stale bool) Decision {
	if stale {
		return safeIdle()
	}

	if confirmation.BatterySoCPct <= cfg.BatteryMinSoCPct+cfg.LowSoCBufferPct {
		return Decision{
			Source:           SourceLowSoC,
			Mode:             control.ModeSelfConsumption,
			ChargeLimitKW:    cfg.BatteryMaxChargeKW,
			DischargeLimitKW: 0,
			ExportLimitKW:    0,
			WaterHeaterOn:    false,
		}
	}

	if slot.ManualOverrideSource != "" && slot.ManualOverrideSource != model.OverrideNone {
		return Decision{
			Source:           SourceManual,
			Mode:             control.ModeSelfConsumption,
			ChargeLimitKW:    0,
			DischargeLimitKW: 0,
			ExportLimitKW:    0,
			WaterHeaterOn:    false,
		}
	}

	if confirmation.PVPowerKW-confirmation.LoadPowerKW > cfg.PVDumpThresholdKW && confirmation.BatterySoCPct >= cfg.BatteryMaxSoCPct-1 {
		return Decision{
			Source:           SourcePVDump,
			Mode:             control.ModeMaximizeExport,
			ChargeLimitKW:    0,
			DischargeLimitKW: 0,
			ExportLimitKW:    cfg.GridMaxExportKW,
			WaterHeaterOn:    true, // dump surplus PV into the water heater rather than curtail
		}
	}

	mode := control.ModeSelfConsumption
	switch slot.Classification {
	case model.ClassExport:
		mode = control.ModeMaximizeExport
	case model.ClassCharge, model.ClassPVCharge:
		mode = control.ModeMaximizeCharge
	}

	return Decision{
		Source:           SourcePlan,
		Mode:             mode,
		ChargeLimitKW:    slot.ChargeKW(),
		DischargeLimitKW: slot.DischargeKW(),
		ExportLimitKW:    slot.ExportKW(),
		WaterHeaterOn:    slot.WaterHeatOn,
	}
}

// safeIdle is returned when the plan is stale or unavailable: hold
// the battery, stop exporting, stop heating, per spec §4.9 "a stale
// plan falls back to a safe, conservative idle state".
func safeIdle() Decision {
	return Decision{Source: SourceSafeIdle, Mode: control.ModeSelfConsumption}
}
