// Package timeutil provides small time-alignment helpers shared across
// the planning pipeline, in the spirit of the teacher's utils package.
package timeutil

import (
	"time"

	"github.com/kepler-ems/planner/internal/model"
)

// UTCString formats t in the compact YYYYMMDDHHmm form used by ENTSO-E
// style tariff APIs, mirroring the teacher's utils.GetUTCString.
func UTCString(t time.Time) string {
	return t.UTC().Format("200601021504")
}

// InitialDelay returns how long to wait from now until the next
// boundary of interval, aligned to the top of the hour — the same
// logic as the teacher's MinerScheduler.getInitialDelay.
func InitialDelay(now time.Time, interval time.Duration) time.Duration {
	top := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	delay := now.Sub(top)
	for delay > 0 {
		delay -= interval
	}
	return -delay
}

// Horizon returns the 192 aligned 15-minute slot-start instants
// beginning at the next boundary on/after now (spec §3 "Horizon").
func Horizon(now time.Time) []time.Time {
	start := model.NextAligned(now)
	slots := make([]time.Time, model.HorizonSlots)
	for i := range slots {
		slots[i] = start.Add(time.Duration(i) * model.SlotDuration)
	}
	return slots
}
