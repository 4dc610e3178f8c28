package kepler

import (
	"context"
	"testing"
	"time"

	"github.com/kepler-ems/planner/internal/config"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSolve_PrechargesDuringCheapOvernightWindow exercises the
// acceptance scenario where a full day's worth of cheap overnight
// import precedes an all-day price spike: the solver should fill the
// battery during the cheap window rather than pay the spike price
// later, leave nothing exported (there's no PV to create a surplus),
// and label every slot it actually charges during that window as a
// charge slot once classified.
func TestSolve_PrechargesDuringCheapOvernightWindow(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatteryCapacityKWh = 10
	cfg.BatteryMinSoCPct = 10
	cfg.BatteryMaxSoCPct = 95
	cfg.BatteryEfficiencyPct = 95
	cfg.WearCostPerKWh = 0.05
	cfg.WaterHeaterPowerKW = 0

	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	slots := make([]model.Slot, 24)
	for i := range slots {
		price := 0.2
		if i >= 8 {
			price = 2.0
		}
		slots[i] = model.Slot{
			SlotStart:   base.Add(time.Duration(i) * model.SlotDuration),
			SlotEnd:     base.Add(time.Duration(i+1) * model.SlotDuration),
			LoadKWh:     0.25,
			ImportPrice: price,
			ExportPrice: price * 0.1,
		}
	}

	result, err := Solve(context.Background(), cfg, slots, make([]bool, 24), 0, 20, 85)
	require.NoError(t, err)

	assert.GreaterOrEqualf(t, result.Slots[7].SoCEndPct, 80.0, "battery should be mostly charged by the end of the cheap window")

	gridImportTotal := 0.0
	chargedAnySlot := false
	for i, s := range result.Slots {
		assert.Zero(t, s.GridExportKWh, "no PV surplus exists anywhere in this scenario")
		gridImportTotal += s.GridImportKWh
		if i <= 7 && s.ChargeKWh > 1e-6 {
			chargedAnySlot = true
		}
	}
	assert.GreaterOrEqual(t, gridImportTotal, 6.0)
	assert.True(t, chargedAnySlot, "the cheap overnight window should be used to charge the battery")
}

// TestSolve_ExportsOnlyDuringTheBestPricedSpreadWindow exercises the
// peak-only-export acceptance scenario: a short, steeply-priced window
// sits between two cheaper bands. Selling then is only worth it where
// the spread against the near-term future import price clears
// export_min_spread, and even then the protective SoC floor must hold
// at the end of the export run.
func TestSolve_ExportsOnlyDuringTheBestPricedSpreadWindow(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatteryCapacityKWh = 10
	cfg.BatteryMinSoCPct = 10
	cfg.BatteryMaxSoCPct = 95
	cfg.ExportMinSpread = 1.0
	cfg.WaterHeaterPowerKW = 0

	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	slots := make([]model.Slot, 24)
	for i := range slots {
		price := 0.5
		switch {
		case i < 4:
			price = 1.5
		case i < 8:
			price = 4.0
		}
		slots[i] = model.Slot{
			SlotStart:   base.Add(time.Duration(i) * model.SlotDuration),
			SlotEnd:     base.Add(time.Duration(i+1) * model.SlotDuration),
			ImportPrice: price,
			ExportPrice: price,
		}
	}

	result, err := Solve(context.Background(), cfg, slots, make([]bool, 24), 0, 90, 50)
	require.NoError(t, err)

	exportedAnywhereInWindow := false
	lastExportIdx := -1
	for i, s := range result.Slots {
		inHighSpreadWindow := i >= 4 && i < 8
		if !inHighSpreadWindow {
			assert.Zerof(t, s.GridExportKWh, "slot %d sits outside the cleared spread window and must not export", i)
			continue
		}
		if s.GridExportKWh > 1e-6 {
			exportedAnywhereInWindow = true
			lastExportIdx = i
		}
	}
	assert.True(t, exportedAnywhereInWindow, "the cleared high-price window should be used for export")
	if lastExportIdx >= 0 {
		assert.GreaterOrEqual(t, result.Slots[lastExportIdx].SoCEndPct, cfg.ProtectiveSoCPct()-0.5)
	}
}
