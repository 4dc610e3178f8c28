// Package waterheat handles the one water-heat commitment that must be
// decided before Kepler ever runs: the vacation-mode anti-legionella
// cycle (spec §4.4). In normal mode the water heater is a deferrable
// load and its on-slots are Kepler's own jointly-optimized decision
// variable (spec §4.5 w_t), so this package has nothing to pre-decide
// there. The cheapest-contiguous-window search mirrors the teacher's
// estimateLoadForecast price-gated mode selection (scheduler/mpc.go),
// generalized from "cheapest slots below a price threshold" into a
// cheapest-contiguous-block search restricted to the local
// after-14:00 window the anti-legionella cycle requires.
package waterheat

import (
	"math"
	"time"

	"github.com/kepler-ems/planner/internal/config"
	"github.com/kepler-ems/planner/internal/model"
)

// Plan is the water-heater pre-schedule: the horizon slots Kepler must
// treat as a hard w_t=1 constraint. Empty in normal mode.
type Plan struct {
	On []bool
}

// Schedule returns the vacation-mode anti-legionella commitment. In
// normal mode it returns an all-false plan: Kepler chooses the
// deferrable load's on-slots itself, jointly with battery/grid/PV.
func Schedule(cfg *config.Config, slots []model.Slot, state model.BatteryState) Plan {
	if state.VacationMode && cfg.VacationModeEnabled {
		return scheduleVacation(cfg, slots, state)
	}
	return Plan{On: make([]bool, len(slots))}
}

// scheduleVacation walks the horizon in interval_days-spaced 24h
// cycles and, within each cycle, commits the cheapest contiguous
// duration_hours window that starts at or after 14:00 local time (spec
// §4.4). The nearest cycle is suppressed entirely if the live state
// reports more water heating today than VacationAlreadyHeatedKWh.
func scheduleVacation(cfg *config.Config, slots []model.Slot, state model.BatteryState) Plan {
	n := len(slots)
	on := make([]bool, n)
	durationSlots := int(cfg.VacationDurationHours * 4)
	intervalSlots := cfg.VacationIntervalDays * 96
	if durationSlots <= 0 || intervalSlots <= 0 || n == 0 || cfg.WaterHeaterPowerKW <= 0 {
		return Plan{On: on}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}

	for cycleStart := 0; cycleStart < n; cycleStart += intervalSlots {
		if cycleStart == 0 && state.WaterHeatedTodayKWh > cfg.VacationAlreadyHeatedKWh {
			continue
		}

		windowEnd := cycleStart + 96
		if windowEnd > n {
			windowEnd = n
		}

		firstEligible := -1
		for i := cycleStart; i < windowEnd; i++ {
			if slots[i].SlotStart.In(loc).Hour() >= 14 {
				firstEligible = i
				break
			}
		}
		if firstEligible == -1 || firstEligible+durationSlots > windowEnd {
			continue
		}

		bestStart, bestCost := firstEligible, math.MaxFloat64
		for start := firstEligible; start+durationSlots <= windowEnd; start++ {
			cost := 0.0
			for j := start; j < start+durationSlots; j++ {
				cost += slots[j].ImportPrice
			}
			if cost < bestCost {
				bestCost = cost
				bestStart = start
			}
		}
		for j := bestStart; j < bestStart+durationSlots; j++ {
			on[j] = true
		}
	}

	return Plan{On: on}
}
