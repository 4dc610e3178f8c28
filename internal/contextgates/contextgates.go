// Package contextgates evaluates the household-context inputs that
// gate planning behavior outside of economics: vacation mode, the
// security alarm's armed state, and a standing manual override (spec
// §4.10). These are read from the live StateProvider and folded into
// the config.Config policy layer before a planning run, the same way
// the teacher treats plant/grid safety flags as independent of the
// MPC's profit objective (mpc/mpc.go isFeasible gates a decision
// regardless of calculateProfit's preference for it).
package contextgates

import "github.com/kepler-ems/planner/internal/model"

// Gates is the resolved set of context flags for a planning run.
type Gates struct {
	VacationMode   bool
	AlarmArmed     bool
	ManualOverride bool
}

// Resolve derives Gates from the live battery/household state the
// Preparer assembled for this run.
func Resolve(live model.BatteryState) Gates {
	return Gates{
		VacationMode:   live.VacationMode,
		AlarmArmed:     live.AlarmArmed,
		ManualOverride: live.ManualOverride != model.OverrideNone,
	}
}

// RequiresElevatedFloor reports whether the current gates should push
// the target-SoC strategist toward a higher protective floor: an
// armed alarm implies nobody is home to react to a battery warning,
// same rationale as vacation mode.
func (g Gates) RequiresElevatedFloor() bool {
	return g.VacationMode || g.AlarmArmed
}
