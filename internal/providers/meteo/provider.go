package meteo

import (
	"context"
	"math"
	"time"

	"github.com/kepler-ems/planner/internal/providers"
	"github.com/kepler-ems/planner/internal/sun"
)

// Provider implements providers.ForecastProvider by combining a MET
// Norway forecast with a solar-position-derived PV estimate and a
// simple baseline-load model. The PV estimate follows the teacher's
// estimateSolarPowerFromWeather: clamp to zero outside daylight, scale
// peak power by sin(altitude), derate for cloud cover, and zero out
// entirely on a snow symbol or when the live panel reading contradicts
// a forecast expecting output.
type Provider struct {
	client            *Client
	lat, lon          float64
	peakPVKW          float64
	baselineLoadKW    float64
	loadTempSensitivity float64 // extra kW per degree below baseline (heating load)
	currentPVKW       func() float64
}

// NewProvider builds a Provider. currentPVKW, if non-nil, is consulted
// for the "panels may be snow covered" check against the live reading,
// the same way the teacher passes plantInfo.PhotovoltaicPower into
// estimateSolarPowerFromWeather.
func NewProvider(client *Client, lat, lon, peakPVKW, baselineLoadKW, loadTempSensitivity float64, currentPVKW func() float64) *Provider {
	return &Provider{
		client: client, lat: lat, lon: lon, peakPVKW: peakPVKW,
		baselineLoadKW: baselineLoadKW, loadTempSensitivity: loadTempSensitivity,
		currentPVKW: currentPVKW,
	}
}

func (p *Provider) Forecast(ctx context.Context, slots []time.Time) ([]providers.ForecastPoint, error) {
	fc, err := p.client.Get(p.lat, p.lon)
	if err != nil {
		return nil, err
	}

	out := make([]providers.ForecastPoint, len(slots))
	for i, st := range slots {
		step, ok := fc.ClosestStep(st)
		tempC, cloudPct := 10.0, 50.0
		if ok {
			if step.TempC != nil {
				tempC = *step.TempC
			}
			if step.CloudPct != nil {
				cloudPct = *step.CloudPct
			}
		}

		pvKWh := p.estimatePV(st, step, ok, cloudPct) * 0.25 // kW -> kWh over a 15-min slot
		loadKWh := p.estimateLoad(tempC) * 0.25

		out[i] = providers.ForecastPoint{
			SlotStart:     st,
			LoadKWh:       loadKWh,
			LoadP10:       loadKWh * 0.85,
			LoadP90:       loadKWh * 1.2,
			PVKWh:         pvKWh,
			PVP10:         pvKWh * 0.6,
			PVP90:         pvKWh * 1.1,
			TemperatureC:  tempC,
			CloudCoverPct: cloudPct,
		}
	}
	return out, nil
}

func (p *Provider) estimatePV(t time.Time, step TimeStep, haveStep bool, cloudPct float64) float64 {
	if !haveStep || !sun.IsDaylight(t, p.lat, p.lon) {
		return 0
	}
	altitudeDeg := sun.AltitudeDegrees(t, p.lat, p.lon)
	angleFactor := math.Sin(altitudeDeg * math.Pi / 180)
	if angleFactor < 0 {
		return 0
	}
	if step.Symbol.HasSnow() {
		return 0
	}

	expected := p.peakPVKW * angleFactor * 0.5
	if p.currentPVKW != nil {
		if cur := p.currentPVKW(); cur < 0.1 && expected > 1.0 && time.Until(t) < time.Hour {
			return 0
		}
	}

	cloudFactor := 1 - (cloudPct/100)*0.90
	return p.peakPVKW * angleFactor * cloudFactor
}

func (p *Provider) estimateLoad(tempC float64) float64 {
	load := p.baselineLoadKW
	if tempC < 15 {
		load += (15 - tempC) * p.loadTempSensitivity
	}
	return load
}
