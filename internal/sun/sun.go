// Package sun wraps suncalc for the civil-daylight PV clamp (spec
// §4.1) and the solar-angle diagnostics the teacher exposes on its
// status endpoint (scheduler/server.go SunInfo).
package sun

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// Window is the sunrise/sunset instants for a given day and location.
type Window struct {
	Sunrise time.Time
	Sunset  time.Time
}

// DaylightWindow recomputes civil-daylight boundaries for t's
// calendar day at (lat, lon), the way the teacher does per-call in
// estimateSolarPowerFromWeather rather than caching across days (spec
// §9: "Civil-daylight boundaries are recomputed per day").
func DaylightWindow(t time.Time, lat, lon float64) Window {
	times := suncalc.GetTimes(t, lat, lon)
	return Window{
		Sunrise: times["sunrise"].Value,
		Sunset:  times["sunset"].Value,
	}
}

// IsDaylight reports whether t falls within civil daylight at (lat, lon).
func IsDaylight(t time.Time, lat, lon float64) bool {
	w := DaylightWindow(t, lat, lon)
	return !t.Before(w.Sunrise) && !t.After(w.Sunset)
}

// AltitudeDegrees returns the solar altitude angle in degrees, used
// for diagnostics parity with the teacher's SunInfo.SolarAngle.
func AltitudeDegrees(t time.Time, lat, lon float64) float64 {
	pos := suncalc.GetPosition(t, lat, lon)
	return pos.Altitude * 180 / math.Pi
}
