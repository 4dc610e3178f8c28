// Package assembler turns a solved kepler.Result into the canonical
// per-slot schedule the rest of the system persists and serves (spec
// §4.6): it assigns the dominant Classification per slot (Export >
// PV_Charge > Charge > Water > Discharge > Hold) and a
// human-readable Reason, and hands the result to the SlotStore for
// upsert. The classification-priority shape is grounded on the
// teacher's calculateProfit/ExecuteControl decision labelling in
// mpc/mpc.go, which likewise picks one dominant action per slot from
// several simultaneously-true candidates.
package assembler

import (
	"context"
	"fmt"

	"github.com/kepler-ems/planner/internal/kepler"
	"github.com/kepler-ems/planner/internal/model"
)

// SlotWriter is the subset of the SlotStore contract the assembler
// needs; kept narrow so tests can fake it without a database.
type SlotWriter interface {
	UpsertPlan(ctx context.Context, slots []model.Slot) error
}

// Assembler classifies a solved schedule and persists it.
type Assembler struct {
	store SlotWriter
}

func New(store SlotWriter) *Assembler { return &Assembler{store: store} }

// Assemble classifies every slot in result and upserts the schedule.
// It returns the classified slots so callers (the HTTP status API,
// tests) can inspect the output of a planning run without a round
// trip through the store.
func (a *Assembler) Assemble(ctx context.Context, result *kepler.Result) ([]model.Slot, error) {
	slots := make([]model.Slot, len(result.Slots))
	copy(slots, result.Slots)

	for i := range slots {
		classify(&slots[i])
	}

	if err := a.store.UpsertPlan(ctx, slots); err != nil {
		return nil, model.NewError(model.KindBadInput, "persisting assembled schedule", err)
	}
	return slots, nil
}

// classify assigns Classification/Reason by the fixed priority order:
// Export > PV_Charge > Charge > Water > Discharge > Hold, where
// PV_Charge is a charge covered by PV surplus. A slot can be true for
// several of these ("charging from PV while exporting surplus") but
// only the highest-priority label is recorded; the precise numbers
// remain in ChargeKWh/DischargeKWh/GridExportKWh regardless of label.
func classify(s *model.Slot) {
	switch {
	case s.GridExportKWh > 1e-6:
		s.Classification = model.ClassExport
		s.Reason = fmt.Sprintf("exporting %.2f kWh at price %.3f", s.GridExportKWh, s.ExportPrice)
	case s.ChargeKWh > 1e-6 && s.PVKWh >= s.ChargeKWh-1e-6:
		s.Classification = model.ClassPVCharge
		s.Reason = fmt.Sprintf("charging %.2f kWh from PV surplus", s.ChargeKWh)
	case s.ChargeKWh > 1e-6:
		s.Classification = model.ClassCharge
		s.Reason = fmt.Sprintf("charging %.2f kWh at import price %.3f", s.ChargeKWh, s.ImportPrice)
	case s.WaterHeatOn:
		s.Classification = model.ClassWater
		s.Reason = "water heater scheduled this slot"
	case s.DischargeKWh > 1e-6:
		s.Classification = model.ClassDischarge
		s.Reason = fmt.Sprintf("discharging %.2f kWh to cover load at price %.3f", s.DischargeKWh, s.ImportPrice)
	default:
		s.Classification = model.ClassHold
		s.Reason = "no battery action this slot"
	}
}
