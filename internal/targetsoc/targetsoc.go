// Package targetsoc derives the end-of-horizon target state of charge
// the Kepler solver is steered toward (spec §4.3). Higher risk
// appetite (more willing to run the battery down for economics) must
// never produce a higher target SoC than a lower risk appetite for
// the same inputs — the monotonicity guarantee spec §4.3 calls out as
// an invariant. The shape of the calculation — the protective floor
// plus a risk-weighted share of the usable range scaled by the S-Index
// factor, then, in vacation mode or with an armed alarm, blended
// halfway toward max SoC — is
// grounded in the teacher's canChargeBattery/calculateNewSOC
// arithmetic in mpc/mpc.go, generalized from a hardcoded charge rule
// into an explicit target.
package targetsoc

import (
	"github.com/kepler-ems/planner/internal/config"
	"github.com/kepler-ems/planner/internal/contextgates"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/kepler-ems/planner/internal/sindex"
)

// Strategist computes the target SoC for the end of the horizon.
type Strategist struct{}

func New() *Strategist { return &Strategist{} }

// Target returns the end-of-horizon target SoC percentage derived from
// the already-computed S-Index factor (callers share one factor across
// the pipeline rather than each stage recomputing it from a
// differently-inflated slot frame). For a fixed horizon and live
// state, Target(cfg) is non-decreasing as cfg.RiskAppetite decreases
// (risk appetite 1 = most conservative = highest target).
func (s *Strategist) Target(cfg *config.Config, live model.BatteryState, factor sindex.Factor) (targetPct float64) {
	spec := cfg.BatterySpec()
	usableRange := cfg.BatteryMaxSoCPct - cfg.BatteryMinSoCPct

	// Risk appetite 1..5, 1 most conservative. Map to a 0..1
	// conservatism weight so risk 1 pins close to max SoC and risk 5
	// relaxes toward the protective floor.
	conservatism := float64(6-cfg.RiskAppetite) / 5.0

	protectiveFloor := cfg.ProtectiveSoCPct()

	base := protectiveFloor + conservatism*usableRange*float64(factor)/cfg.SIndexMaxFactor
	if base > cfg.BatteryMaxSoCPct {
		base = cfg.BatteryMaxSoCPct
	}
	if base < spec.MinSoCPct {
		base = spec.MinSoCPct
	}

	if contextgates.Resolve(live).RequiresElevatedFloor() {
		// Vacation mode or an armed alarm favors a higher floor since no
		// one is present to react to a low-SoC warning; blend halfway to max.
		base = base + 0.5*(cfg.BatteryMaxSoCPct-base)
	}

	return base
}
