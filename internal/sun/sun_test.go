package sun

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const stockholmLat, stockholmLon = 59.33, 18.06

func TestIsDaylight_TrueAtSummerNoon(t *testing.T) {
	noon := time.Date(2026, 6, 21, 11, 0, 0, 0, time.UTC)
	assert.True(t, IsDaylight(noon, stockholmLat, stockholmLon))
}

func TestIsDaylight_FalseAtWinterMidnight(t *testing.T) {
	midnight := time.Date(2026, 1, 10, 23, 30, 0, 0, time.UTC)
	assert.False(t, IsDaylight(midnight, stockholmLat, stockholmLon))
}

func TestAltitudeDegrees_HigherAtNoonThanAtDusk(t *testing.T) {
	noon := time.Date(2026, 6, 21, 11, 0, 0, 0, time.UTC)
	dusk := time.Date(2026, 6, 21, 21, 0, 0, 0, time.UTC)

	assert.Greater(t, AltitudeDegrees(noon, stockholmLat, stockholmLon), AltitudeDegrees(dusk, stockholmLat, stockholmLon))
}

func TestDaylightWindow_SunriseBeforeSunset(t *testing.T) {
	day := time.Date(2026, 6, 21, 0, 0, 0, 0, time.UTC)
	w := DaylightWindow(day, stockholmLat, stockholmLon)
	assert.True(t, w.Sunrise.Before(w.Sunset))
}
