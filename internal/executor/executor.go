// Package executor is the 5-minute control loop described in spec
// §4.9: on each tick it looks up the current slot, lets the override
// evaluator have first say, and otherwise idempotently applies the
// planned action to the control entities, retrying transient write
// failures with backoff. The tick/apply/retry shape is grounded on
// the teacher's runMPCExecution + executeMPCDecision
// (scheduler/mpc.go): find the decision matching now, skip if already
// applied, retry on failure.
package executor

import (
	"context"
	"time"

	"github.com/kepler-ems/planner/internal/config"
	"github.com/kepler-ems/planner/internal/control"
	"github.com/kepler-ems/planner/internal/diagnostics"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/kepler-ems/planner/internal/obsexport"
	"github.com/kepler-ems/planner/internal/override"
	"github.com/rs/zerolog"
)

// SlotReader is the read side of the SlotStore the executor needs.
type SlotReader interface {
	GetCurrentSlot(ctx context.Context, now time.Time) (model.Slot, error)
	RecordObservation(ctx context.Context, slotStart time.Time, obs model.Slot) error
}

// Executor drives the control entities from the current planned slot.
type Executor struct {
	entities control.Entities
	store    SlotReader
	override *override.Evaluator
	cfg      *config.Store
	diag     *diagnostics.Bus
	mirror   *obsexport.Mirror
	log      zerolog.Logger

	lastAppliedSlot time.Time
	lastAppliedHash string
}

// New wires an Executor. mirror may be nil: a nil Mirror silently
// drops the long-term tuner's observation feed, the same way it does
// when obsexport.Open is given an empty DSN.
func New(entities control.Entities, store SlotReader, ov *override.Evaluator, cfg *config.Store, diag *diagnostics.Bus, mirror *obsexport.Mirror, log zerolog.Logger) *Executor {
	return &Executor{entities: entities, store: store, override: ov, cfg: cfg, diag: diag, mirror: mirror, log: log.With().Str("module", "executor").Logger()}
}

// Tick runs one control cycle.
func (e *Executor) Tick(ctx context.Context, now time.Time) error {
	cfg := e.cfg.Snapshot()

	confirmation, err := e.entities.ReadConfirmation(ctx)
	if err != nil {
		e.diag.Publish("executor", model.KindEntityWriteFailed, "reading entity confirmation: "+err.Error())
		return err
	}

	slot, err := e.store.GetCurrentSlot(ctx, now)
	stale := err != nil || now.Sub(slot.SlotStart) > cfg.StaleSlotSeconds
	if err != nil {
		e.diag.Publish("executor", model.KindStaleForecast, "no current slot available: "+err.Error())
	}

	decision := e.override.Evaluate(cfg, confirmation, slot, stale)

	if e.lastAppliedSlot.Equal(slot.SlotStart) && e.lastAppliedHash == decision.Hash() && decision.Source == override.SourcePlan {
		return nil // idempotent no-op: nothing has changed since the last tick.
	}

	if err := e.apply(ctx, cfg, decision); err != nil {
		e.diag.Publish("executor", model.KindEntityWriteFailed, "applying control decision: "+err.Error())
		return err
	}

	e.lastAppliedSlot = slot.SlotStart
	e.lastAppliedHash = decision.Hash()
	e.log.Info().
		Str("source", string(decision.Source)).
		Float64("charge_limit_kw", decision.ChargeLimitKW).
		Float64("discharge_limit_kw", decision.DischargeLimitKW).
		Bool("water_heater_on", decision.WaterHeaterOn).
		Msg("control decision applied")

	if !stale && !slot.HasObservation && now.After(slot.SlotEnd) {
		obs := slot
		obs.ActualSoCPct = confirmation.BatterySoCPct
		obs.ActualPVKWh = confirmation.PVPowerKW * model.SlotDuration.Hours()
		obs.ActualLoadKWh = confirmation.LoadPowerKW * model.SlotDuration.Hours()
		if err := e.store.RecordObservation(ctx, slot.SlotStart, obs); err != nil {
			e.log.Warn().Err(err).Time("slot", slot.SlotStart).Msg("failed to record observation")
		} else if err := e.mirror.Export(ctx, obs); err != nil {
			e.log.Warn().Err(err).Time("slot", slot.SlotStart).Msg("failed to mirror observation to long-term store")
		}
	}

	return nil
}

// apply writes a decision with up to 3 retries, backing off linearly,
// mirroring the teacher's retry loop in runMPCExecution.
func (e *Executor) apply(ctx context.Context, cfg *config.Config, d override.Decision) error {
	const maxAttempts = 1 + 3 // the first write plus up to 3 retries
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		writeCtx, cancel := context.WithTimeout(ctx, cfg.EntityWriteTimeout)
		lastErr = e.applyOnce(writeCtx, cfg, d)
		cancel()
		if lastErr == nil {
			return nil
		}
		e.log.Warn().Err(lastErr).Int("attempt", attempt).Msg("control write failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return lastErr
}

func (e *Executor) applyOnce(ctx context.Context, cfg *config.Config, d override.Decision) error {
	if cfg.DryRun {
		return nil
	}
	if err := e.entities.EnableEMS(ctx, true); err != nil {
		return err
	}
	if err := e.entities.SetMode(ctx, d.Mode); err != nil {
		return err
	}
	if err := e.entities.SetChargeLimitKW(ctx, d.ChargeLimitKW); err != nil {
		return err
	}
	if err := e.entities.SetDischargeLimitKW(ctx, d.DischargeLimitKW); err != nil {
		return err
	}
	if err := e.entities.SetExportLimitKW(ctx, d.ExportLimitKW); err != nil {
		return err
	}
	return e.entities.SetWaterHeater(ctx, d.WaterHeaterOn)
}
