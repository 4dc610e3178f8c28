package override

import (
	"testing"

	"github.com/kepler-ems/planner/internal/config"
	"github.com/kepler-ems/planner/internal/control"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/stretchr/testify/assert"
)

func baseConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BatteryMinSoCPct = 10
	cfg.LowSoCBufferPct = 5
	cfg.BatteryMaxSoCPct = 95
	cfg.PVDumpThresholdKW = 2
	return cfg
}

func TestEvaluate_PriorityCascade(t *testing.T) {
	cfg := baseConfig()
	e := New()

	plannedSlot := model.Slot{
		Classification: model.ClassCharge,
		ChargeKWh:      1.0,
	}

	tests := []struct {
		name         string
		confirmation control.Confirmation
		slot         model.Slot
		stale        bool
		wantSource   Source
	}{
		{
			name:         "stale plan always wins regardless of other conditions",
			confirmation: control.Confirmation{BatterySoCPct: 80},
			slot:         model.Slot{ManualOverrideSource: model.OverrideUser},
			stale:        true,
			wantSource:   SourceSafeIdle,
		},
		{
			name:         "low SoC beats manual override",
			confirmation: control.Confirmation{BatterySoCPct: 12},
			slot:         model.Slot{ManualOverrideSource: model.OverrideUser},
			wantSource:   SourceLowSoC,
		},
		{
			name:         "manual override beats PV dump",
			confirmation: control.Confirmation{BatterySoCPct: 95, PVPowerKW: 5, LoadPowerKW: 1},
			slot:         model.Slot{ManualOverrideSource: model.OverrideUser},
			wantSource:   SourceManual,
		},
		{
			name:         "PV dump beats the plan",
			confirmation: control.Confirmation{BatterySoCPct: 95, PVPowerKW: 5, LoadPowerKW: 1},
			slot:         plannedSlot,
			wantSource:   SourcePVDump,
		},
		{
			name:         "plan applies when nothing else triggers",
			confirmation: control.Confirmation{BatterySoCPct: 60, PVPowerKW: 1, LoadPowerKW: 1},
			slot:         plannedSlot,
			wantSource:   SourcePlan,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(cfg, tt.confirmation, tt.slot, tt.stale)
			assert.Equal(t, tt.wantSource, got.Source)
		})
	}
}

func TestEvaluate_LowSoCZeroesDischargeAndExportRegardlessOfPlan(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatteryMinSoCPct = 10
	cfg.LowSoCBufferPct = 5

	plannedSlot := model.Slot{
		Classification: model.ClassDischarge,
		DischargeKWh:   1.0,
	}

	got := New().Evaluate(cfg, control.Confirmation{BatterySoCPct: 12}, plannedSlot, false)

	assert.Equal(t, SourceLowSoC, got.Source)
	assert.Zero(t, got.DischargeLimitKW)
	assert.Zero(t, got.ExportLimitKW)
}

func TestDecision_HashStableAndSensitive(t *testing.T) {
	a := Decision{Source: SourcePlan, Mode: control.ModeSelfConsumption, ChargeLimitKW: 1.0}
	b := Decision{Source: SourcePlan, Mode: control.ModeSelfConsumption, ChargeLimitKW: 1.0}
	c := Decision{Source: SourcePlan, Mode: control.ModeSelfConsumption, ChargeLimitKW: 2.0}

	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())
}
