package forecastadapter

import (
	"context"
	"testing"
	"time"

	"github.com/kepler-ems/planner/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBaseline struct{ points []providers.ForecastPoint }

func (f *fakeBaseline) Forecast(ctx context.Context, slots []time.Time) ([]providers.ForecastPoint, error) {
	return f.points, nil
}

type fakeCorrector struct {
	corrected []providers.ForecastPoint
	err       error
}

func (f *fakeCorrector) Correct(ctx context.Context, baseline []providers.ForecastPoint) ([]providers.ForecastPoint, error) {
	return f.corrected, f.err
}

func TestForecast_OvershootingCorrectionClampsToHalfBaseline(t *testing.T) {
	st := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	baseline := []providers.ForecastPoint{{SlotStart: st, PVKWh: 2.0, LoadKWh: 1.0}}
	// a correction of -2.5 applied to a base of 2.0 kWh would drive the
	// slot to -0.5 kWh; the adapter must clamp to base * 0.5 = 1.0.
	corrected := []providers.ForecastPoint{{SlotStart: st, PVKWh: -0.5, LoadKWh: 1.0}}

	a := New(&fakeBaseline{points: baseline}, &fakeCorrector{corrected: corrected})
	results, err := a.ForecastWithFlags(context.Background(), []time.Time{st})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, FlagClamped, results[0].Flag)
	assert.InDelta(t, 1.0, results[0].Point.PVKWh, 1e-9)
}

func TestForecast_WithinBandPassesThroughUnclamped(t *testing.T) {
	st := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	baseline := []providers.ForecastPoint{{SlotStart: st, PVKWh: 2.0, LoadKWh: 1.0}}
	corrected := []providers.ForecastPoint{{SlotStart: st, PVKWh: 2.4, LoadKWh: 1.1}}

	a := New(&fakeBaseline{points: baseline}, &fakeCorrector{corrected: corrected})
	results, err := a.ForecastWithFlags(context.Background(), []time.Time{st})
	require.NoError(t, err)

	assert.Equal(t, FlagCorrected, results[0].Flag)
	assert.InDelta(t, 2.4, results[0].Point.PVKWh, 1e-9)
}

func TestForecast_LoadNeverDropsBelowPositivityFloor(t *testing.T) {
	st := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	baseline := []providers.ForecastPoint{{SlotStart: st, PVKWh: 0, LoadKWh: 0.01}}
	corrected := []providers.ForecastPoint{{SlotStart: st, PVKWh: 0, LoadKWh: 0}}

	a := New(&fakeBaseline{points: baseline}, &fakeCorrector{corrected: corrected})
	results, err := a.ForecastWithFlags(context.Background(), []time.Time{st})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, results[0].Point.LoadKWh, 0.01)
}

func TestForecast_NoCorrectorReturnsBaselineFlagged(t *testing.T) {
	st := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	baseline := []providers.ForecastPoint{{SlotStart: st, PVKWh: 2.0, LoadKWh: 1.0}}

	a := New(&fakeBaseline{points: baseline}, nil)
	results, err := a.ForecastWithFlags(context.Background(), []time.Time{st})
	require.NoError(t, err)
	assert.Equal(t, FlagBaseline, results[0].Flag)
	assert.Equal(t, 2.0, results[0].Point.PVKWh)
}
