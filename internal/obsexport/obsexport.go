// Package obsexport mirrors realized slot observations to a Postgres
// table, one row per slot, for the long-term auto-tuner (out of scope here,
// spec §1 Non-goals) to consume later. It repurposes the teacher's
// Postgres persistence (scheduler/mpc_persistence.go saveMPCDecisions)
// for observations instead of plans, since the plan side of
// persistence moved to the local SQLite slotstore for the
// single-writer durability guarantee spec §4.7 requires.
package obsexport

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kepler-ems/planner/internal/model"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	slot_start TIMESTAMPTZ PRIMARY KEY,
	actual_load_kwh DOUBLE PRECISION NOT NULL,
	actual_pv_kwh DOUBLE PRECISION NOT NULL,
	actual_charge_kwh DOUBLE PRECISION NOT NULL,
	actual_discharge_kwh DOUBLE PRECISION NOT NULL,
	actual_grid_import_kwh DOUBLE PRECISION NOT NULL,
	actual_grid_export_kwh DOUBLE PRECISION NOT NULL,
	actual_soc_pct DOUBLE PRECISION NOT NULL,
	planned_classification TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Mirror is a Postgres-backed sink for realized observations, keyed
// by slot start. A nil Mirror is valid and silently drops writes, so
// deployments without the optional long-term tuner need no
// configuration.
type Mirror struct {
	db *sql.DB
}

// Open connects to dsn and ensures the schema exists. An empty dsn
// disables the mirror (Open returns (nil, nil)).
func Open(dsn string) (*Mirror, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open observation export: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create observation export schema: %w", err)
	}
	return &Mirror{db: db}, nil
}

func (m *Mirror) Close() error {
	if m == nil {
		return nil
	}
	return m.db.Close()
}

// Export upserts one realized observation, following the teacher's
// upsert-by-key shape (mpc_persistence.go) so a re-sent observation
// for the same slot is idempotent rather than duplicated.
func (m *Mirror) Export(ctx context.Context, sl model.Slot) error {
	if m == nil {
		return nil
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO observations (
			slot_start, actual_load_kwh, actual_pv_kwh, actual_charge_kwh,
			actual_discharge_kwh, actual_grid_import_kwh,
			actual_grid_export_kwh, actual_soc_pct, planned_classification
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (slot_start) DO UPDATE SET
			actual_load_kwh=excluded.actual_load_kwh,
			actual_pv_kwh=excluded.actual_pv_kwh,
			actual_charge_kwh=excluded.actual_charge_kwh,
			actual_discharge_kwh=excluded.actual_discharge_kwh,
			actual_grid_import_kwh=excluded.actual_grid_import_kwh,
			actual_grid_export_kwh=excluded.actual_grid_export_kwh,
			actual_soc_pct=excluded.actual_soc_pct
	`,
		sl.SlotStart, sl.ActualLoadKWh, sl.ActualPVKWh, sl.ActualChargeKWh,
		sl.ActualDischargeKWh, sl.ActualGridImportKWh, sl.ActualGridExportKWh,
		sl.ActualSoCPct, string(sl.Classification),
	)
	if err != nil {
		return fmt.Errorf("export observation for %s: %w", sl.SlotStart, err)
	}
	return nil
}
