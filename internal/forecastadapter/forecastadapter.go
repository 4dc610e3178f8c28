// Package forecastadapter wraps a third-party forecast correction
// service ("Aurora", out of scope to implement here per spec, but its
// output envelope is part of this system's contract) and clamps its
// corrections into a safe range before they reach the Preparer (spec
// §4.1 design notes: "±50% clamp, positivity guard, source-flag
// recording"). The clamp-and-flag shape mirrors the teacher's
// operator/delivery fee adjustment in getPriceForecast, which likewise
// takes an externally-sourced number and bounds it before it enters
// the plan.
package forecastadapter

import (
	"context"
	"time"

	"github.com/kepler-ems/planner/internal/providers"
)

// Corrector is the external correction service contract: given the
// adapter's own baseline forecast, it returns a corrected version.
type Corrector interface {
	Correct(ctx context.Context, baseline []providers.ForecastPoint) ([]providers.ForecastPoint, error)
}

// Adapter wraps a baseline ForecastProvider with an optional Corrector.
// If correction is nil or it fails, the baseline value is used and the
// slot is flagged as baseline; a corrected per-slot value outside the
// clamp band is bounded to the nearest edge of the band and flagged as
// clamped.
type Adapter struct {
	baseline  providers.ForecastProvider
	corrector Corrector
}

func New(baseline providers.ForecastProvider, corrector Corrector) *Adapter {
	return &Adapter{baseline: baseline, corrector: corrector}
}

// CorrectionFlag records whether a slot's forecast was corrected,
// fell back to baseline, or was bounded by the clamp.
type CorrectionFlag string

const (
	FlagBaseline  CorrectionFlag = "baseline"
	FlagCorrected CorrectionFlag = "corrected"
	FlagClamped   CorrectionFlag = "clamped"
)

// Result pairs a forecast point with the flag describing its provenance.
type Result struct {
	Point providers.ForecastPoint
	Flag  CorrectionFlag
}

// Forecast satisfies providers.ForecastProvider: it fetches the
// baseline forecast, applies correction with clamping, and returns
// the resulting points. Use ForecastWithFlags when the caller also
// needs to know which slots were corrected, clamped, or left at
// baseline.
func (a *Adapter) Forecast(ctx context.Context, slots []time.Time) ([]providers.ForecastPoint, error) {
	results, err := a.ForecastWithFlags(ctx, slots)
	if err != nil {
		return nil, err
	}
	out := make([]providers.ForecastPoint, len(results))
	for i, r := range results {
		out[i] = r.Point
	}
	return out, nil
}

// ForecastWithFlags is the adapter's full entry point: it fetches the
// baseline forecast, runs it through the corrector if configured, and
// reports per-slot provenance alongside the corrected values.
func (a *Adapter) ForecastWithFlags(ctx context.Context, slots []time.Time) ([]Result, error) {
	baseline, err := a.baseline.Forecast(ctx, slots)
	if err != nil {
		return nil, err
	}
	if a.corrector == nil {
		return flagAll(baseline, FlagBaseline), nil
	}

	corrected, err := a.corrector.Correct(ctx, baseline)
	if err != nil || len(corrected) != len(baseline) {
		return flagAll(baseline, FlagBaseline), nil
	}

	out := make([]Result, len(baseline))
	for i := range baseline {
		out[i] = clamp(baseline[i], corrected[i])
	}
	return out, nil
}

// clamp bounds a corrected forecast point to within ±50% of its
// baseline and enforces the positivity guards of spec §4.1 design
// notes: a correction can move the value but never push it outside
// [base × 0.5, base × 1.5], and load never drops below 0.01 kWh.
func clamp(base, corrected providers.ForecastPoint) Result {
	clampOne := func(baseVal, correctedVal float64) (float64, bool) {
		lo, hi := baseVal*0.5, baseVal*1.5
		if lo > hi {
			lo, hi = hi, lo
		}
		switch {
		case correctedVal < lo:
			return lo, true
		case correctedVal > hi:
			return hi, true
		default:
			return correctedVal, false
		}
	}

	out := corrected
	clamped := false
	if v, c := clampOne(base.LoadKWh, corrected.LoadKWh); c {
		out.LoadKWh = v
		clamped = true
	}
	if out.LoadKWh < 0.01 {
		out.LoadKWh = 0.01
		clamped = true
	}
	if v, c := clampOne(base.PVKWh, corrected.PVKWh); c {
		out.PVKWh = v
		clamped = true
	}
	if out.PVKWh < 0 {
		out.PVKWh = 0
		clamped = true
	}

	flag := FlagCorrected
	if clamped {
		flag = FlagClamped
	}
	return Result{Point: out, Flag: flag}
}

func flagAll(points []providers.ForecastPoint, flag CorrectionFlag) []Result {
	out := make([]Result, len(points))
	for i, p := range points {
		out[i] = Result{Point: p, Flag: flag}
	}
	return out
}
