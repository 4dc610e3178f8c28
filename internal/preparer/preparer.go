// Package preparer builds the 192-slot planning frame the rest of the
// pipeline consumes (spec §4.1). It merges the load/PV forecast, the
// grid tariff, and the live battery state into a []model.Slot,
// clamping PV production outside civil daylight to zero and rejecting
// input that can't support a feasible plan. The merge step follows the
// teacher's buildMPCForecast (scheduler/mpc.go), and the daylight
// clamp follows estimateSolarPowerFromWeather's sunrise/sunset gate in
// the same file. The S-Index safety-margin inflation of load/PV is
// applied afterward by planrun, once the S-Index factor has been
// computed from this frame — BuildFrame only produces the raw merged
// slots the factor itself is derived from.
package preparer

import (
	"context"
	"fmt"
	"time"

	"github.com/kepler-ems/planner/internal/config"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/kepler-ems/planner/internal/providers"
	"github.com/kepler-ems/planner/internal/sun"
	"github.com/kepler-ems/planner/internal/timeutil"
	"github.com/rs/zerolog"
)

// Preparer assembles the planning frame from the three provider
// interfaces plus the effective configuration.
type Preparer struct {
	forecast providers.ForecastProvider
	tariff   providers.TariffProvider
	state    providers.StateProvider
	cfg      *config.Store
	log      zerolog.Logger
}

func New(forecast providers.ForecastProvider, tariff providers.TariffProvider, state providers.StateProvider, cfg *config.Store, log zerolog.Logger) *Preparer {
	return &Preparer{forecast: forecast, tariff: tariff, state: state, cfg: cfg, log: log.With().Str("module", "preparer").Logger()}
}

// Frame is the output of a preparation pass: the 192-slot horizon plus
// the live state snapshot it was seeded from.
type Frame struct {
	Slots []model.Slot
	Live  providers.LiveState
}

// BuildFrame returns the 192 aligned slots for the planning horizon
// starting at the next slot boundary on/after now, seeded with
// forecasts, tariffs, and live state.
func (p *Preparer) BuildFrame(ctx context.Context, now time.Time) (*Frame, error) {
	cfg := p.cfg.Snapshot()
	slotTimes := timeutil.Horizon(now)

	live, err := p.state.ReadState(ctx)
	if err != nil {
		return nil, model.NewError(model.KindBadInput, "reading live state", err)
	}

	fc, err := p.forecast.Forecast(ctx, slotTimes)
	if err != nil {
		return nil, model.NewError(model.KindBadInput, "reading forecast", err)
	}
	if len(fc) != len(slotTimes) {
		return nil, model.NewError(model.KindSlotWindowIncomplete, fmt.Sprintf("forecast returned %d/%d slots", len(fc), len(slotTimes)), nil)
	}

	tf, err := p.tariff.Tariffs(ctx, slotTimes)
	if err != nil {
		return nil, model.NewError(model.KindBadInput, "reading tariffs", err)
	}
	if len(tf) != len(slotTimes) {
		return nil, model.NewError(model.KindSlotWindowIncomplete, fmt.Sprintf("tariff provider returned %d/%d slots", len(tf), len(slotTimes)), nil)
	}

	slots := make([]model.Slot, len(slotTimes))
	for i, st := range slotTimes {
		f := fc[i]
		t := tf[i]
		if !f.SlotStart.Equal(st) || !t.SlotStart.Equal(st) {
			return nil, model.NewError(model.KindBadInput, "forecast/tariff slot misalignment", nil)
		}

		pvKWh, pvP10, pvP90 := f.PVKWh, f.PVP10, f.PVP90
		if !sun.IsDaylight(st, cfg.Latitude, cfg.Longitude) {
			pvKWh, pvP10, pvP90 = 0, 0, 0
		}
		if pvKWh < 0 {
			pvKWh = 0
		}
		loadKWh := f.LoadKWh
		if loadKWh < 0 {
			return nil, model.NewError(model.KindBadInput, fmt.Sprintf("negative load forecast at slot %s", st), nil)
		}

		slots[i] = model.Slot{
			SlotStart:     st,
			SlotEnd:       st.Add(model.SlotDuration),
			LoadKWh:       loadKWh,
			LoadP10:       f.LoadP10,
			LoadP90:       f.LoadP90,
			PVKWh:         pvKWh,
			PVP10:         pvP10,
			PVP90:         pvP90,
			TemperatureC:  f.TemperatureC,
			CloudCoverPct: f.CloudCoverPct,
			ImportPrice:   t.ImportPrice,
			ExportPrice:   t.ExportPrice,
		}
	}

	p.log.Debug().Int("slots", len(slots)).Float64("soc_now_pct", live.SoCNowPct).Msg("planning frame assembled")
	return &Frame{Slots: slots, Live: live}, nil
}
