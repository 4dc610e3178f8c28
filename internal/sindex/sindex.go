// Package sindex computes the safety-margin inflation factor applied
// to the battery's usable floor before the Kepler solver runs (spec
// §4.2). Two interchangeable strategies are offered: a dynamic
// heuristic blending PV deficit and cold temperature, and a
// probabilistic mode built on gonum/stat quantiles of the forecast
// error distribution, grounded on brianmickel-battery-backtest's
// statistics-driven strategy tuning. Only the probabilistic mode is
// scaled by the config's risk_appetite, the way the teacher's price
// forecast is scaled by an operator/delivery fee (scheduler/mpc.go
// getPriceForecast); the dynamic mode does not read it.
package sindex

import (
	"sort"

	"github.com/kepler-ems/planner/internal/config"
	"github.com/kepler-ems/planner/internal/model"
	"gonum.org/v1/gonum/stat"
)

// Factor is the multiplicative safety-margin inflation to apply to the
// nominal protective SoC floor; always >= 1.
type Factor float64

// Compute derives the S-Index factor for the given horizon slots,
// dispatching on cfg.SIndexMode. Horizon is restricted
// internally to cfg.SIndexHorizonDays worth of slots, per spec §4.2.
func Compute(cfg *config.Config, slots []model.Slot) Factor {
	window := cfg.SIndexHorizonDays * 96
	if window > len(slots) {
		window = len(slots)
	}
	horizon := slots[:window]

	var f float64
	switch cfg.SIndexMode {
	case config.SIndexProbabilistic:
		f = probabilistic(cfg, horizon)
	default:
		f = dynamic(cfg, horizon)
	}

	if f < cfg.SIndexBaseFactor {
		f = cfg.SIndexBaseFactor
	}
	if f > cfg.SIndexMaxFactor {
		f = cfg.SIndexMaxFactor
	}
	return Factor(f)
}

// riskQuantile is the literal risk_appetite -> quantile table spec
// §4.2 mandates for probabilistic mode: level 1 ("Safety") draws from
// the p95 of the forecast-error spread, level 5 from the p10.
var riskQuantile = map[int]float64{
	1: 0.95,
	2: 0.80,
	3: 0.50,
	4: 0.25,
	5: 0.10,
}

// dynamic blends PV deficit (forecast PV undershooting its P90 upper
// band, i.e. a cloudy-looking forecast) and cold-temperature derating
// of battery usable capacity into a single heuristic factor.
func dynamic(cfg *config.Config, horizon []model.Slot) float64 {
	if len(horizon) == 0 {
		return cfg.SIndexBaseFactor
	}

	var pvForecast, pvUpperBand float64
	coldestC := horizon[0].TemperatureC
	for _, s := range horizon {
		pvForecast += s.PVKWh
		pvUpperBand += s.PVP90
		if s.TemperatureC < coldestC {
			coldestC = s.TemperatureC
		}
	}

	deficitRatio := 0.0
	if pvUpperBand > 0 {
		deficitRatio = 1 - pvForecast/pvUpperBand
		if deficitRatio < 0 {
			deficitRatio = 0
		}
	}

	coldRatio := 0.0
	span := cfg.SIndexTempBaselineC - cfg.SIndexTempColdC
	if span > 0 && coldestC < cfg.SIndexTempBaselineC {
		coldRatio = (cfg.SIndexTempBaselineC - coldestC) / span
		if coldRatio > 1 {
			coldRatio = 1
		}
	}

	volatility := weatherVolatility(horizon)
	pvWeight := cfg.SIndexPVDeficitWeight + 0.4*volatility
	tempWeight := cfg.SIndexTempWeight + 0.2*volatility

	return cfg.SIndexBaseFactor + pvWeight*deficitRatio + tempWeight*coldRatio
}

// weatherVolatility normalizes the standard deviation of the horizon's
// cloud cover into [0, 1], the signal spec §4.2 uses to scale up
// pv_deficit_weight/temp_weight when the forecast itself looks
// unstable rather than merely deficient.
func weatherVolatility(horizon []model.Slot) float64 {
	if len(horizon) < 2 {
		return 0
	}
	cloud := make([]float64, len(horizon))
	for i, s := range horizon {
		cloud[i] = s.CloudCoverPct / 100
	}
	sd := stat.StdDev(cloud, nil)
	const fullScaleStdDev = 0.25
	v := sd / fullScaleStdDev
	if v > 1 {
		v = 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// probabilistic fits the empirical distribution of (P90-P10) forecast
// spread across the horizon and draws the risk_appetite-selected
// quantile from it: s = 1 + risk_quantile(q), where q comes from
// riskQuantile (level 1 = p95, most cautious). Uses gonum/stat's
// quantile estimator the way a volatility-aware strategy would size
// its buffer off historical spread rather than a fixed heuristic
// weight.
func probabilistic(cfg *config.Config, horizon []model.Slot) float64 {
	if len(horizon) == 0 {
		return cfg.SIndexBaseFactor
	}

	spreads := make([]float64, 0, len(horizon)*2)
	for _, s := range horizon {
		if s.LoadP90 > s.LoadP10 {
			spreads = append(spreads, (s.LoadP90-s.LoadP10)/maxFloat(s.LoadKWh, 0.01))
		}
		if s.PVP90 > s.PVP10 {
			spreads = append(spreads, (s.PVP90-s.PVP10)/maxFloat(s.PVKWh, 0.01))
		}
	}
	if len(spreads) == 0 {
		return cfg.SIndexBaseFactor
	}
	sort.Float64s(spreads)

	q, ok := riskQuantile[cfg.RiskAppetite]
	if !ok {
		q = riskQuantile[3]
	}
	quantile := stat.Quantile(q, stat.Empirical, spreads, nil)
	return 1 + quantile
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
