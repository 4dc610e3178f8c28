package assembler

import (
	"context"
	"testing"

	"github.com/kepler-ems/planner/internal/kepler"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	upserted []model.Slot
	err      error
}

func (f *fakeStore) UpsertPlan(ctx context.Context, slots []model.Slot) error {
	f.upserted = slots
	return f.err
}

func TestAssemble_ClassificationPriority(t *testing.T) {
	tests := []struct {
		name string
		slot model.Slot
		want model.Classification
	}{
		{"export wins over everything", model.Slot{GridExportKWh: 1, ChargeKWh: 1, WaterHeatOn: true, DischargeKWh: 1}, model.ClassExport},
		{"pv charge when PV covers the charge", model.Slot{ChargeKWh: 1, PVKWh: 1.5}, model.ClassPVCharge},
		{"grid charge when PV doesn't cover it", model.Slot{ChargeKWh: 1, PVKWh: 0.1}, model.ClassCharge},
		{"water heater wins over discharge", model.Slot{WaterHeatOn: true, DischargeKWh: 1}, model.ClassWater},
		{"discharge when nothing else applies", model.Slot{DischargeKWh: 1}, model.ClassDischarge},
		{"hold when idle", model.Slot{}, model.ClassHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			a := New(store)
			result := &kepler.Result{Slots: []model.Slot{tt.slot}}

			out, err := a.Assemble(context.Background(), result)
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, tt.want, out[0].Classification)
			assert.NotEmpty(t, out[0].Reason)
		})
	}
}

func TestAssemble_PersistsToStore(t *testing.T) {
	store := &fakeStore{}
	a := New(store)
	result := &kepler.Result{Slots: []model.Slot{{ChargeKWh: 1, PVKWh: 2}}}

	_, err := a.Assemble(context.Background(), result)
	require.NoError(t, err)
	assert.Len(t, store.upserted, 1)
}
