package targetsoc

import (
	"testing"
	"time"

	"github.com/kepler-ems/planner/internal/config"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/kepler-ems/planner/internal/sindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSlots() []model.Slot {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	slots := make([]model.Slot, 96*3)
	for i := range slots {
		slots[i] = model.Slot{
			SlotStart:    base.Add(time.Duration(i) * model.SlotDuration),
			LoadKWh:      0.3,
			PVKWh:        0.2,
			PVP90:        0.4,
			TemperatureC: 5,
		}
	}
	return slots
}

func TestTarget_MonotonicInRiskAppetite(t *testing.T) {
	cfg := config.DefaultConfig()
	slots := testSlots()
	live := model.BatteryState{SoCNowPct: 50}
	s := New()

	targets := make([]float64, 0, 5)
	for risk := 1; risk <= 5; risk++ {
		cfg.RiskAppetite = risk
		factor := sindex.Compute(cfg, slots)
		target := s.Target(cfg, live, factor)
		targets = append(targets, target)
	}

	for i := 1; i < len(targets); i++ {
		assert.GreaterOrEqualf(t, targets[i-1], targets[i],
			"target SoC for risk appetite %d (%.2f) should be >= risk appetite %d (%.2f)",
			i, targets[i-1], i+1, targets[i])
	}
}

func TestTarget_StrictlyDecreasesAsRiskAppetiteRelaxes(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatteryMinSoCPct = 10
	cfg.BatteryMaxSoCPct = 95
	slots := testSlots()
	live := model.BatteryState{SoCNowPct: 50}
	s := New()

	var prior float64
	for risk := 1; risk <= 5; risk++ {
		cfg.RiskAppetite = risk
		factor := sindex.Compute(cfg, slots)
		target := s.Target(cfg, live, factor)
		if risk > 1 {
			require.Lessf(t, target, prior, "risk appetite %d must target strictly less than risk appetite %d, barring a max_soc_pct clamp", risk, risk-1)
		}
		prior = target
	}
}

func TestTarget_VacationModeRaisesFloor(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RiskAppetite = 5
	slots := testSlots()
	s := New()

	factor := sindex.Compute(cfg, slots)
	normal := s.Target(cfg, model.BatteryState{SoCNowPct: 50}, factor)
	vacation := s.Target(cfg, model.BatteryState{SoCNowPct: 50, VacationMode: true}, factor)

	assert.Greater(t, vacation, normal)
}

func TestTarget_NeverExceedsMaxSoC(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RiskAppetite = 1
	cfg.SIndexMaxFactor = 3
	slots := testSlots()
	s := New()

	factor := sindex.Compute(cfg, slots)
	target := s.Target(cfg, model.BatteryState{SoCNowPct: 50, VacationMode: true}, factor)
	require.LessOrEqual(t, target, cfg.BatteryMaxSoCPct)
	assert.GreaterOrEqual(t, float64(factor), 1.0)
}
