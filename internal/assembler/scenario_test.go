package assembler

import (
	"context"
	"testing"

	"github.com/kepler-ems/planner/internal/kepler"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAssemble_LabelsEveryChargingSlotDuringTheCheapWindow mirrors the
// cheap-overnight-charge acceptance scenario's labelling requirement:
// any slot Kepler actually charged during the cheap window must come
// out of the assembler tagged as a charge slot, not water or hold.
func TestAssemble_LabelsEveryChargingSlotDuringTheCheapWindow(t *testing.T) {
	slots := make([]model.Slot, 8)
	for i := range slots {
		slots[i] = model.Slot{ImportPrice: 0.2, ChargeKWh: 1.25}
	}

	store := &fakeStore{}
	out, err := New(store).Assemble(context.Background(), &kepler.Result{Slots: slots})
	require.NoError(t, err)

	for i, s := range out {
		assert.Equalf(t, model.ClassCharge, s.Classification, "slot %d should be labelled as a charge slot", i)
	}
}
