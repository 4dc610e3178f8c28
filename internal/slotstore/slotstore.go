// Package slotstore is the local, durable, single-writer-per-slot
// persistence layer described in spec §4.7. It is ported from the
// teacher's Postgres-backed mpc_persistence.go
// (saveMPCDecisions/loadLatestMPCDecisions, an upsert-by-timestamp
// transaction) onto modernc.org/sqlite so the scheduler has no
// external database dependency for its own durability, while
// observations are separately mirrored to Postgres for the long-term
// tuner by package obsexport.
package slotstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kepler-ems/planner/internal/model"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS slots (
	slot_start      INTEGER PRIMARY KEY,
	slot_end        INTEGER NOT NULL,
	load_kwh        REAL NOT NULL,
	pv_kwh          REAL NOT NULL,
	load_p10        REAL NOT NULL,
	load_p90        REAL NOT NULL,
	pv_p10          REAL NOT NULL,
	pv_p90          REAL NOT NULL,
	import_price    REAL NOT NULL,
	export_price    REAL NOT NULL,
	charge_kwh      REAL NOT NULL,
	discharge_kwh   REAL NOT NULL,
	grid_import_kwh REAL NOT NULL,
	grid_export_kwh REAL NOT NULL,
	water_heat_on   INTEGER NOT NULL,
	soc_start_pct   REAL NOT NULL,
	soc_end_pct     REAL NOT NULL,
	soc_target_pct  REAL NOT NULL,
	classification  TEXT NOT NULL,
	reason          TEXT NOT NULL,
	actual_load_kwh  REAL NOT NULL DEFAULT 0,
	actual_pv_kwh    REAL NOT NULL DEFAULT 0,
	actual_charge_kwh REAL NOT NULL DEFAULT 0,
	actual_discharge_kwh REAL NOT NULL DEFAULT 0,
	actual_grid_import_kwh REAL NOT NULL DEFAULT 0,
	actual_grid_export_kwh REAL NOT NULL DEFAULT 0,
	actual_soc_pct   REAL NOT NULL DEFAULT 0,
	has_observation  INTEGER NOT NULL DEFAULT 0,
	is_historical    INTEGER NOT NULL DEFAULT 0,
	manual_override_source TEXT NOT NULL DEFAULT 'none'
);
`

// Store is a SQLite-backed implementation of the SlotStore contract.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open slot store: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer: sqlite serializes anyway, this avoids SQLITE_BUSY churn
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create slot store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// UpsertPlan writes a freshly-solved schedule. Slots already marked
// IsHistorical in the store are left untouched — spec §4.7's
// "historical slots are frozen" guarantee — by using INSERT ... ON
// CONFLICT DO UPDATE guarded by a WHERE clause on is_historical,
// mirroring the teacher's "DELETE then prepared INSERT ON CONFLICT"
// shape from saveMPCDecisions but scoped to a single upsert statement
// per row instead of a bulk delete, since slots are keyed by time
// rather than replaced wholesale each run.
func (s *Store) UpsertPlan(ctx context.Context, slots []model.Slot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO slots (
			slot_start, slot_end, load_kwh, pv_kwh, load_p10, load_p90,
			pv_p10, pv_p90, import_price, export_price, charge_kwh,
			discharge_kwh, grid_import_kwh, grid_export_kwh, water_heat_on,
			soc_start_pct, soc_end_pct, soc_target_pct, classification, reason
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(slot_start) DO UPDATE SET
			slot_end=excluded.slot_end, load_kwh=excluded.load_kwh,
			pv_kwh=excluded.pv_kwh, load_p10=excluded.load_p10,
			load_p90=excluded.load_p90, pv_p10=excluded.pv_p10,
			pv_p90=excluded.pv_p90, import_price=excluded.import_price,
			export_price=excluded.export_price, charge_kwh=excluded.charge_kwh,
			discharge_kwh=excluded.discharge_kwh,
			grid_import_kwh=excluded.grid_import_kwh,
			grid_export_kwh=excluded.grid_export_kwh,
			water_heat_on=excluded.water_heat_on,
			soc_start_pct=excluded.soc_start_pct, soc_end_pct=excluded.soc_end_pct,
			soc_target_pct=excluded.soc_target_pct,
			classification=excluded.classification, reason=excluded.reason
		WHERE slots.is_historical = 0
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, sl := range slots {
		waterOn := 0
		if sl.WaterHeatOn {
			waterOn = 1
		}
		if _, err := stmt.ExecContext(ctx,
			sl.SlotStart.Unix(), sl.SlotEnd.Unix(), sl.LoadKWh, sl.PVKWh,
			sl.LoadP10, sl.LoadP90, sl.PVP10, sl.PVP90, sl.ImportPrice,
			sl.ExportPrice, sl.ChargeKWh, sl.DischargeKWh, sl.GridImportKWh,
			sl.GridExportKWh, waterOn, sl.SoCStartPct, sl.SoCEndPct,
			sl.SoCTargetPct, string(sl.Classification), sl.Reason,
		); err != nil {
			return fmt.Errorf("upsert slot %s: %w", sl.SlotStart, err)
		}
	}

	return tx.Commit()
}

// RecordObservation appends a realized observation for the slot
// starting at slotStart and freezes it (is_historical=1), per spec
// §4.7 "observations are appended once, never revised".
func (s *Store) RecordObservation(ctx context.Context, slotStart time.Time, obs model.Slot) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE slots SET
			actual_load_kwh=?, actual_pv_kwh=?, actual_charge_kwh=?,
			actual_discharge_kwh=?, actual_grid_import_kwh=?,
			actual_grid_export_kwh=?, actual_soc_pct=?, has_observation=1,
			is_historical=1
		WHERE slot_start=? AND has_observation=0
	`,
		obs.ActualLoadKWh, obs.ActualPVKWh, obs.ActualChargeKWh,
		obs.ActualDischargeKWh, obs.ActualGridImportKWh, obs.ActualGridExportKWh,
		obs.ActualSoCPct, slotStart.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record observation for %s: %w", slotStart, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record observation rows affected: %w", err)
	}
	if n == 0 {
		return model.NewError(model.KindBadInput, fmt.Sprintf("no unobserved slot at %s to record against", slotStart), nil)
	}
	return nil
}

// GetCurrentSlot returns the slot whose [SlotStart, SlotEnd) window
// contains now.
func (s *Store) GetCurrentSlot(ctx context.Context, now time.Time) (model.Slot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+` FROM slots
		WHERE slot_start <= ? AND slot_end > ?
		ORDER BY slot_start DESC LIMIT 1
	`, now.Unix(), now.Unix())
	return scanSlot(row)
}

// GetSlotWindow returns every slot with SlotStart in [from, to).
func (s *Store) GetSlotWindow(ctx context.Context, from, to time.Time) ([]model.Slot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+` FROM slots
		WHERE slot_start >= ? AND slot_start < ?
		ORDER BY slot_start ASC
	`, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("query slot window: %w", err)
	}
	defer rows.Close()

	var out []model.Slot
	for rows.Next() {
		sl, err := scanSlotRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

const selectColumns = `
	slot_start, slot_end, load_kwh, pv_kwh, load_p10, load_p90, pv_p10,
	pv_p90, import_price, export_price, charge_kwh, discharge_kwh,
	grid_import_kwh, grid_export_kwh, water_heat_on, soc_start_pct,
	soc_end_pct, soc_target_pct, classification, reason,
	actual_load_kwh, actual_pv_kwh, actual_charge_kwh,
	actual_discharge_kwh, actual_grid_import_kwh, actual_grid_export_kwh,
	actual_soc_pct, has_observation, is_historical, manual_override_source
`

type scanner interface {
	Scan(dest ...any) error
}

func scanSlot(row *sql.Row) (model.Slot, error) {
	return scanInto(row)
}

func scanSlotRows(rows *sql.Rows) (model.Slot, error) {
	return scanInto(rows)
}

func scanInto(sc scanner) (model.Slot, error) {
	var sl model.Slot
	var slotStart, slotEnd int64
	var waterOn, hasObs, isHist int
	var classification, overrideSource string

	err := sc.Scan(
		&slotStart, &slotEnd, &sl.LoadKWh, &sl.PVKWh, &sl.LoadP10, &sl.LoadP90,
		&sl.PVP10, &sl.PVP90, &sl.ImportPrice, &sl.ExportPrice, &sl.ChargeKWh,
		&sl.DischargeKWh, &sl.GridImportKWh, &sl.GridExportKWh, &waterOn,
		&sl.SoCStartPct, &sl.SoCEndPct, &sl.SoCTargetPct, &classification, &sl.Reason,
		&sl.ActualLoadKWh, &sl.ActualPVKWh, &sl.ActualChargeKWh,
		&sl.ActualDischargeKWh, &sl.ActualGridImportKWh, &sl.ActualGridExportKWh,
		&sl.ActualSoCPct, &hasObs, &isHist, &overrideSource,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return sl, model.NewError(model.KindSlotWindowIncomplete, "no slot found", err)
		}
		return sl, fmt.Errorf("scan slot row: %w", err)
	}

	sl.SlotStart = time.Unix(slotStart, 0).UTC()
	sl.SlotEnd = time.Unix(slotEnd, 0).UTC()
	sl.WaterHeatOn = waterOn != 0
	sl.HasObservation = hasObs != 0
	sl.IsHistorical = isHist != 0
	sl.Classification = model.Classification(classification)
	sl.ManualOverrideSource = model.OverrideSource(overrideSource)
	return sl, nil
}
