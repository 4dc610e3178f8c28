// Package planrun wires the planning pipeline end to end:
// Preparer -> S-Index -> WaterPreScheduler -> TargetSoC -> Kepler ->
// Assembler. It is the in-process equivalent of the teacher's
// RunMPCOptimize (scheduler/mpc.go), which likewise strings together
// forecast assembly, optimization, and persistence into one callable
// unit invoked by a periodic task.
package planrun

import (
	"context"
	"time"

	"github.com/kepler-ems/planner/internal/assembler"
	"github.com/kepler-ems/planner/internal/config"
	"github.com/kepler-ems/planner/internal/diagnostics"
	"github.com/kepler-ems/planner/internal/kepler"
	"github.com/kepler-ems/planner/internal/metrics"
	"github.com/kepler-ems/planner/internal/model"
	"github.com/kepler-ems/planner/internal/preparer"
	"github.com/kepler-ems/planner/internal/sindex"
	"github.com/kepler-ems/planner/internal/targetsoc"
	"github.com/kepler-ems/planner/internal/waterheat"
	"github.com/rs/zerolog"
)

// Pipeline runs one end-to-end planning cycle.
type Pipeline struct {
	prep      *preparer.Preparer
	strategist *targetsoc.Strategist
	assembler *assembler.Assembler
	cfg       *config.Store
	diag      *diagnostics.Bus
	metrics   *metrics.Registry
	log       zerolog.Logger
}

func New(prep *preparer.Preparer, strategist *targetsoc.Strategist, asm *assembler.Assembler, cfg *config.Store, diag *diagnostics.Bus, m *metrics.Registry, log zerolog.Logger) *Pipeline {
	return &Pipeline{prep: prep, strategist: strategist, assembler: asm, cfg: cfg, diag: diag, metrics: m, log: log.With().Str("module", "planrun").Logger()}
}

// Run executes one full planning cycle for the horizon starting at now.
func (p *Pipeline) Run(ctx context.Context, now time.Time) ([]model.Slot, error) {
	start := time.Now()
	cfg := p.cfg.Snapshot()

	frame, err := p.prep.BuildFrame(ctx, now)
	if err != nil {
		p.fail(err)
		return nil, err
	}

	manualOverride := model.OverrideNone
	if frame.Live.ManualOverride {
		manualOverride = model.OverrideUser
	}
	liveState := model.BatteryState{
		SoCNowPct:           frame.Live.SoCNowPct,
		PVNowKW:             frame.Live.PVNowKW,
		LoadNowKW:           frame.Live.LoadNowKW,
		WaterHeatedTodayKWh: frame.Live.WaterHeatedTodayKWh,
		VacationMode:        frame.Live.VacationMode,
		AlarmArmed:          frame.Live.AlarmArmed,
		ManualOverride:      manualOverride,
	}

	factor := sindex.Compute(cfg, frame.Slots)
	applySafetyMargins(cfg, frame.Slots, factor)

	waterPlan := waterheat.Schedule(cfg, frame.Slots, liveState)
	targetPct := p.strategist.Target(cfg, liveState, factor)

	solveCtx, cancel := context.WithTimeout(ctx, cfg.SolveTimeBudget)
	defer cancel()

	result, err := kepler.Solve(solveCtx, cfg, frame.Slots, waterPlan.On, liveState.WaterHeatedTodayKWh, frame.Live.SoCNowPct, targetPct)
	if err != nil {
		p.fail(err)
		return nil, err
	}

	if result.TimedOut {
		p.diag.Publish("planrun", model.KindPlannerTimeout, "solver exceeded its time budget, using best schedule found")
	}
	if result.WaterRelaxed {
		p.diag.Publish("planrun", model.KindBadInput, "water heater quota/gap constraints relaxed to remain feasible")
	}

	slots, err := p.assembler.Assemble(ctx, result)
	if err != nil {
		p.fail(err)
		return nil, err
	}

	p.metrics.PlanDuration.Observe(time.Since(start).Seconds())
	p.metrics.PlanSuccessTotal.Inc()
	p.metrics.SIndexFactor.Set(float64(factor))
	p.metrics.TargetSoCPct.Set(targetPct)
	p.metrics.CurrentSoCPct.Set(frame.Live.SoCNowPct)

	p.log.Info().
		Int("slots", len(slots)).
		Float64("target_soc_pct", targetPct).
		Float64("s_index_factor", float64(factor)).
		Dur("solve_duration", result.SolveDuration).
		Msg("planning run complete")

	return slots, nil
}

// applySafetyMargins inflates load and derates PV in place per spec
// §4.1, using the already-computed S-Index factor, so the water
// pre-schedule and Kepler see the inflated frame. The factor itself is
// computed from the raw frame before this runs.
func applySafetyMargins(cfg *config.Config, slots []model.Slot, factor sindex.Factor) {
	margin := float64(factor) - 1
	if margin < 0 {
		margin = 0
	}
	if maxMargin := cfg.SIndexMaxFactor - 1; margin > maxMargin {
		margin = maxMargin
	}
	for i := range slots {
		slots[i].LoadKWh *= 1 + margin
		pv := slots[i].PVKWh * cfg.PVConfidence
		if pv < 0 {
			pv = 0
		}
		slots[i].PVKWh = pv
	}
}

func (p *Pipeline) fail(err error) {
	kind := model.ErrorKind("Unknown")
	if pe, ok := err.(*model.PlannerError); ok {
		kind = pe.Kind
	}
	p.metrics.PlanFailureTotal.WithLabelValues(string(kind)).Inc()
	p.diag.Publish("planrun", kind, err.Error())
}
