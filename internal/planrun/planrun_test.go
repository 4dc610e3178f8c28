package planrun

import (
	"context"
	"testing"
	"time"

	"github.com/kepler-ems/planner/internal/assembler"
	"github.com/kepler-ems/planner/internal/config"
	"github.com/kepler-ems/planner/internal/diagnostics"
	"github.com/kepler-ems/planner/internal/metrics"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/kepler-ems/planner/internal/preparer"
	"github.com/kepler-ems/planner/internal/providers"
	"github.com/kepler-ems/planner/internal/targetsoc"
	"github.com/kepler-ems/planner/internal/timeutil"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeForecast struct{ points []providers.ForecastPoint }

func (f *fakeForecast) Forecast(ctx context.Context, slots []time.Time) ([]providers.ForecastPoint, error) {
	return f.points, nil
}

type fakeTariff struct{ points []providers.TariffPoint }

func (f *fakeTariff) Tariffs(ctx context.Context, slots []time.Time) ([]providers.TariffPoint, error) {
	return f.points, nil
}

type fakeState struct{ live providers.LiveState }

func (f *fakeState) ReadState(ctx context.Context) (providers.LiveState, error) {
	return f.live, nil
}

type fakeSlotWriter struct{ upserted []model.Slot }

func (f *fakeSlotWriter) UpsertPlan(ctx context.Context, slots []model.Slot) error {
	f.upserted = slots
	return nil
}

func buildHorizonFixtures(now time.Time) ([]providers.ForecastPoint, []providers.TariffPoint) {
	slots := timeutil.Horizon(now)
	fc := make([]providers.ForecastPoint, len(slots))
	tf := make([]providers.TariffPoint, len(slots))
	for i, st := range slots {
		price := 0.30
		if i%4 == 0 {
			price = 0.08
		}
		fc[i] = providers.ForecastPoint{SlotStart: st, LoadKWh: 0.4, PVKWh: 0.6}
		tf[i] = providers.TariffPoint{SlotStart: st, ImportPrice: price, ExportPrice: price * 0.4}
	}
	return fc, tf
}

func TestPipelineRun_ProducesAndPersistsAFullHorizon(t *testing.T) {
	now := time.Date(2026, 6, 21, 10, 0, 0, 0, time.UTC)
	fc, tf := buildHorizonFixtures(now)

	cfgStore := config.NewStore(config.DefaultConfig(), zerolog.Nop())
	prep := preparer.New(&fakeForecast{points: fc}, &fakeTariff{points: tf}, &fakeState{live: providers.LiveState{SoCNowPct: 55}}, cfgStore, zerolog.Nop())
	writer := &fakeSlotWriter{}
	asm := assembler.New(writer)
	diag := diagnostics.NewBus(zerolog.Nop())
	m := metrics.New(prometheus.NewRegistry())

	pipeline := New(prep, targetsoc.New(), asm, cfgStore, diag, m, zerolog.Nop())

	slots, err := pipeline.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, slots, model.HorizonSlots)
	assert.Len(t, writer.upserted, model.HorizonSlots)
}

func TestPipelineRun_PublishesDiagnosticAndFailureMetricOnPreparerError(t *testing.T) {
	now := time.Date(2026, 6, 21, 10, 0, 0, 0, time.UTC)
	cfgStore := config.NewStore(config.DefaultConfig(), zerolog.Nop())
	// no forecast points at all: length mismatch against the horizon.
	prep := preparer.New(&fakeForecast{}, &fakeTariff{}, &fakeState{}, cfgStore, zerolog.Nop())
	asm := assembler.New(&fakeSlotWriter{})
	diag := diagnostics.NewBus(zerolog.Nop())
	m := metrics.New(prometheus.NewRegistry())

	ch, unsubscribe := diag.Subscribe()
	defer unsubscribe()

	pipeline := New(prep, targetsoc.New(), asm, cfgStore, diag, m, zerolog.Nop())

	_, err := pipeline.Run(context.Background(), now)
	require.Error(t, err)

	select {
	case rec := <-ch:
		assert.Equal(t, "planrun", rec.Component)
	case <-time.After(time.Second):
		t.Fatal("expected a diagnostic record on preparer failure")
	}

	var failures dto.Metric
	require.NoError(t, m.PlanFailureTotal.WithLabelValues(string(model.KindSlotWindowIncomplete)).Write(&failures))
	assert.Equal(t, 1.0, failures.GetCounter().GetValue())
}
