package sindex

import (
	"testing"
	"time"

	"github.com/kepler-ems/planner/internal/config"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/stretchr/testify/assert"
)

func slotsWith(pvDeficit bool, coldC float64) []model.Slot {
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	slots := make([]model.Slot, 96)
	for i := range slots {
		pv, pvP90 := 1.0, 1.0
		if pvDeficit {
			pv, pvP90 = 0.2, 1.0
		}
		slots[i] = model.Slot{
			SlotStart:    base.Add(time.Duration(i) * model.SlotDuration),
			PVKWh:        pv,
			PVP90:        pvP90,
			TemperatureC: coldC,
			LoadKWh:      1,
			LoadP10:      0.9,
			LoadP90:      1.1,
			PVP10:        pv * 0.8,
		}
	}
	return slots
}

func TestCompute_AlwaysWithinBounds(t *testing.T) {
	cfg := config.DefaultConfig()
	for _, mode := range []config.SIndexMode{config.SIndexDynamic, config.SIndexProbabilistic} {
		cfg.SIndexMode = mode
		for _, risk := range []int{1, 3, 5} {
			cfg.RiskAppetite = risk
			f := Compute(cfg, slotsWith(true, -20))
			assert.GreaterOrEqualf(t, float64(f), 1.0, "mode=%s risk=%d", mode, risk)
			assert.LessOrEqualf(t, float64(f), cfg.SIndexMaxFactor, "mode=%s risk=%d", mode, risk)
		}
	}
}

func TestCompute_DynamicRisesWithPVDeficitAndCold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SIndexMode = config.SIndexDynamic

	calm := Compute(cfg, slotsWith(false, 15))
	stressed := Compute(cfg, slotsWith(true, -20))

	assert.Greater(t, float64(stressed), float64(calm))
}

func TestCompute_EmptyHorizonReturnsBaseFactor(t *testing.T) {
	cfg := config.DefaultConfig()
	f := Compute(cfg, nil)
	assert.GreaterOrEqual(t, float64(f), 1.0)
}

func TestCompute_ProbabilisticRisesAsRiskAppetiteLowers(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SIndexMode = config.SIndexProbabilistic
	cfg.SIndexMaxFactor = 5 // wide enough that the quantile table isn't clamped away
	slots := slotsWith(true, -20)

	var prior float64
	for risk := 5; risk >= 1; risk-- {
		cfg.RiskAppetite = risk
		f := float64(Compute(cfg, slots))
		if risk < 5 {
			assert.GreaterOrEqualf(t, f, prior, "risk appetite %d should be no less cautious than %d", risk, risk+1)
		}
		prior = f
	}
}
