// Package providers declares the external-data contracts the planner
// pulls from (spec §6): load/PV forecasts, grid tariffs, and live
// battery/inverter state. Concrete adapters live in providers/entsoe
// and providers/meteo, generalized from the teacher's entsoe and
// meteo clients (entsoe/energy_prices_decoder.go, scheduler/data.go).
package providers

import (
	"context"
	"time"
)

// ForecastPoint is one horizon slot's load/PV forecast with the
// uncertainty band the S-Index strategy consumes (spec §4.1, §4.2).
type ForecastPoint struct {
	SlotStart time.Time
	LoadKWh   float64
	LoadP10   float64
	LoadP90   float64
	PVKWh     float64
	PVP10     float64
	PVP90     float64
	// TemperatureC and CloudCoverPct feed the dynamic S-Index heuristic
	// and the solar-derating estimate, mirroring the teacher's
	// WeatherData fields.
	TemperatureC  float64
	CloudCoverPct float64
}

// ForecastProvider supplies load and PV forecasts for a horizon of
// slot-start instants. Implementations may apply their own internal
// caching (the teacher's WeatherForecastCache) but must return one
// point per requested slot or an error — partial results are rejected
// upstream as SlotWindowIncomplete.
type ForecastProvider interface {
	Forecast(ctx context.Context, slots []time.Time) ([]ForecastPoint, error)
}

// TariffPoint is one horizon slot's grid import/export price.
type TariffPoint struct {
	SlotStart   time.Time
	ImportPrice float64
	ExportPrice float64
}

// TariffProvider supplies day-ahead/intraday grid prices, generalized
// from the teacher's entsoe.Decoder + getPriceForecast operator/fee
// adjustment pipeline.
type TariffProvider interface {
	Tariffs(ctx context.Context, slots []time.Time) ([]TariffPoint, error)
}

// LiveState is the instantaneous battery/PV/load reading the teacher
// reads over Modbus via ReadPlantRunningInfo.
type LiveState struct {
	SoCNowPct           float64
	PVNowKW             float64
	LoadNowKW           float64
	WaterHeatedTodayKWh float64
	VacationMode        bool
	AlarmArmed          bool
	ManualOverride      bool
	ObservedAt          time.Time
}

// StateProvider reads the live system state used both to seed the
// Preparer and to drive the Executor's override evaluation.
type StateProvider interface {
	ReadState(ctx context.Context) (LiveState, error)
}
