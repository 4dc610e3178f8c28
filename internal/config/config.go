// Package config loads, validates, and serves the process-wide
// configuration described in spec §6 "Configuration surface". The
// shape — JSON file, a Validate pass — follows the teacher's
// scheduler/config.go; time.Duration fields use encoding/json's
// default integer-nanosecond form. SIGHUP-triggered reload
// and the immutable per-run Snapshot are this repo's additions for
// the "effective config" the strategy layer hands to the planner
// (spec §9 design notes).
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// SIndexMode selects between the dynamic-heuristic and probabilistic
// safety-factor strategies (spec §4.2).
type SIndexMode string

const (
	SIndexDynamic       SIndexMode = "dynamic"
	SIndexProbabilistic SIndexMode = "probabilistic"
)

// ProtectiveSoCStrategy selects how the export-gating floor (spec
// §4.5 constraint 5) is derived.
type ProtectiveSoCStrategy string

const (
	ProtectiveSoCGapBased ProtectiveSoCStrategy = "gap_based"
	ProtectiveSoCFixed    ProtectiveSoCStrategy = "fixed"
)

// Config is the full process configuration (spec §6). Field grouping
// mirrors the teacher's Config struct; battery/economics/water/s_index
// groups are flattened with a prefix the way the teacher flattens its
// battery_* fields, rather than nested structs, to keep JSON loading
// in one place like the teacher.
type Config struct {
	// Battery.
	BatteryCapacityKWh    float64 `json:"battery_capacity_kwh"`
	BatteryMinSoCPct      float64 `json:"battery_min_soc_pct"`
	BatteryMaxSoCPct      float64 `json:"battery_max_soc_pct"`
	BatteryMaxChargeKW    float64 `json:"battery_max_charge_kw"`
	BatteryMaxDischargeKW float64 `json:"battery_max_discharge_kw"`
	BatteryEfficiencyPct  float64 `json:"battery_efficiency_percent"`

	// S-Index.
	SIndexMode           SIndexMode `json:"s_index_mode"`
	SIndexBaseFactor     float64    `json:"s_index_base_factor"`
	SIndexMaxFactor      float64    `json:"s_index_max_factor"`
	SIndexPVDeficitWeight float64   `json:"s_index_pv_deficit_weight"`
	SIndexTempWeight     float64    `json:"s_index_temp_weight"`
	SIndexTempBaselineC  float64    `json:"s_index_temp_baseline_c"`
	SIndexTempColdC      float64    `json:"s_index_temp_cold_c"`
	RiskAppetite         int        `json:"risk_appetite"`
	SIndexHorizonDays    int        `json:"s_index_horizon_days"`

	// Forecast safety (spec §4.1 Preparer safety-margin inflation).
	PVConfidence float64 `json:"pv_confidence"`

	// Battery economics.
	WearCostPerKWh           float64               `json:"wear_cost_per_kwh"`
	RampingCost              float64               `json:"ramping_cost"`
	ExportMinSpread          float64               `json:"export_min_spread"`
	ProtectiveSoCStrategy    ProtectiveSoCStrategy `json:"protective_soc_strategy"`
	FixedProtectiveSoCPct    float64               `json:"fixed_protective_soc_pct"`

	// Water heating.
	WaterHeaterPowerKW        float64       `json:"water_heater_power_kw"`
	WaterMinKWhPerDay         float64       `json:"water_min_kwh_per_day"`
	WaterMaxHoursBetween      float64       `json:"water_max_hours_between_heating"`
	VacationModeEnabled       bool          `json:"vacation_mode_enabled"`
	VacationIntervalDays      int           `json:"vacation_interval_days"`
	VacationDurationHours     float64       `json:"vacation_duration_hours"`
	VacationAlreadyHeatedKWh  float64       `json:"vacation_already_heated_threshold_kwh"`

	// Automation / scheduling.
	EnableScheduler      bool          `json:"enable_scheduler"`
	PlannerEveryMinutes  int           `json:"planner_every_minutes"`
	PlannerJitterMinutes int           `json:"planner_jitter_minutes"`
	SolveTimeBudget      time.Duration `json:"solve_time_budget"`

	// Executor.
	ExecutorEnabled       bool          `json:"executor_enabled"`
	ExecutorInterval      time.Duration `json:"executor_interval_seconds"`
	LowSoCBufferPct       float64       `json:"low_soc_buffer_pct"`
	PVDumpThresholdKW     float64       `json:"pv_dump_threshold_kw"`
	StaleSlotSeconds      time.Duration `json:"stale_slot_seconds"`
	EntityWriteTimeout    time.Duration `json:"entity_write_timeout"`

	// Location, grid, currency.
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Timezone       string  `json:"timezone"`
	GridMaxExportKW float64 `json:"grid_max_export_kw"`

	// Persistence / integration endpoints.
	SlotStorePath         string `json:"slot_store_path"`
	ObservationExportDSN  string `json:"observation_export_dsn"`
	ControlEntityAddress  string `json:"control_entity_address"` // "tcp:HOST:PORT" or "rtu:/dev/ttyUSB0:baud"

	// Process.
	DryRun          bool   `json:"dry_run"`
	HealthCheckPort int    `json:"health_check_port"`
	LogLevel        string `json:"log_level"`
}

// DefaultConfig mirrors the teacher's DefaultConfig: reasonable
// defaults for every field so a minimal config file only needs to
// override the handful of site-specific values.
func DefaultConfig() *Config {
	return &Config{
		BatteryCapacityKWh:    10.0,
		BatteryMinSoCPct:      10,
		BatteryMaxSoCPct:      95,
		BatteryMaxChargeKW:    5,
		BatteryMaxDischargeKW: 5,
		BatteryEfficiencyPct:  95,

		SIndexMode:            SIndexDynamic,
		SIndexBaseFactor:      1.0,
		SIndexMaxFactor:       1.5,
		SIndexPVDeficitWeight: 0.3,
		SIndexTempWeight:      0.15,
		SIndexTempBaselineC:   10,
		SIndexTempColdC:       -10,
		RiskAppetite:          3,
		SIndexHorizonDays:     3,
		PVConfidence:          0.9,

		WearCostPerKWh:        0.05,
		RampingCost:           0.01,
		ExportMinSpread:       0.5,
		ProtectiveSoCStrategy: ProtectiveSoCGapBased,
		FixedProtectiveSoCPct: 30,

		WaterHeaterPowerKW:       3.0,
		WaterMinKWhPerDay:        4.0,
		WaterMaxHoursBetween:     24,
		VacationModeEnabled:      false,
		VacationIntervalDays:     7,
		VacationDurationHours:    3,
		VacationAlreadyHeatedKWh: 2.0,

		EnableScheduler:      true,
		PlannerEveryMinutes:  60,
		PlannerJitterMinutes: 5,
		SolveTimeBudget:      30 * time.Second,

		ExecutorEnabled:    true,
		ExecutorInterval:   5 * time.Minute,
		LowSoCBufferPct:    5,
		PVDumpThresholdKW:  2,
		StaleSlotSeconds:   20 * time.Minute,
		EntityWriteTimeout: 10 * time.Second,

		Latitude:        56.9496,
		Longitude:       24.1052,
		Timezone:        "UTC",
		GridMaxExportKW: 10,

		SlotStorePath: "kepler-slots.db",

		HealthCheckPort: 8080,
		LogLevel:        "info",
	}
}

// Load reads and validates a JSON config file, the way the teacher's
// LoadConfig/LoadConfigFromReader does.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	dec := json.NewDecoder(r)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode config json: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes c as indented JSON, mirroring the teacher's SaveConfig.
func (c *Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// Validate checks that configuration values are internally
// consistent, following the teacher's field-by-field Validate.
func (c *Config) Validate() error {
	if c.BatteryCapacityKWh <= 0 {
		return fmt.Errorf("battery_capacity_kwh must be positive, got %f", c.BatteryCapacityKWh)
	}
	if c.BatteryMinSoCPct < 0 || c.BatteryMinSoCPct > 100 {
		return fmt.Errorf("battery_min_soc_pct must be in [0,100], got %f", c.BatteryMinSoCPct)
	}
	if c.BatteryMaxSoCPct < 0 || c.BatteryMaxSoCPct > 100 {
		return fmt.Errorf("battery_max_soc_pct must be in [0,100], got %f", c.BatteryMaxSoCPct)
	}
	if c.BatteryMinSoCPct > c.BatteryMaxSoCPct {
		return fmt.Errorf("battery_min_soc_pct (%f) cannot exceed battery_max_soc_pct (%f)", c.BatteryMinSoCPct, c.BatteryMaxSoCPct)
	}
	if c.BatteryEfficiencyPct <= 0 || c.BatteryEfficiencyPct > 100 {
		return fmt.Errorf("battery_efficiency_percent must be in (0,100], got %f", c.BatteryEfficiencyPct)
	}
	switch c.SIndexMode {
	case SIndexDynamic, SIndexProbabilistic:
	default:
		return fmt.Errorf("invalid s_index_mode: %s", c.SIndexMode)
	}
	if c.SIndexBaseFactor < 1 {
		return fmt.Errorf("s_index_base_factor must be >= 1, got %f", c.SIndexBaseFactor)
	}
	if c.SIndexMaxFactor < c.SIndexBaseFactor {
		return fmt.Errorf("s_index_max_factor (%f) must be >= s_index_base_factor (%f)", c.SIndexMaxFactor, c.SIndexBaseFactor)
	}
	if c.RiskAppetite < 1 || c.RiskAppetite > 5 {
		return fmt.Errorf("risk_appetite must be in 1..5, got %d", c.RiskAppetite)
	}
	if c.SIndexHorizonDays < 1 || c.SIndexHorizonDays > 7 {
		return fmt.Errorf("s_index_horizon_days must be in 1..7, got %d", c.SIndexHorizonDays)
	}
	if c.PVConfidence <= 0 || c.PVConfidence > 1 {
		return fmt.Errorf("pv_confidence must be in (0,1], got %f", c.PVConfidence)
	}
	switch c.ProtectiveSoCStrategy {
	case ProtectiveSoCGapBased, ProtectiveSoCFixed:
	default:
		return fmt.Errorf("invalid protective_soc_strategy: %s", c.ProtectiveSoCStrategy)
	}
	if c.WaterHeaterPowerKW < 0 {
		return fmt.Errorf("water_heater_power_kw must be non-negative, got %f", c.WaterHeaterPowerKW)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude must be in [-90,90], got %f", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude must be in [-180,180], got %f", c.Longitude)
	}
	if c.SlotStorePath == "" {
		return fmt.Errorf("slot_store_path cannot be empty")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s", c.LogLevel)
	}
	return nil
}

// String renders c as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
