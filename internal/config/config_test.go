package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"non-positive capacity", func(c *Config) { c.BatteryCapacityKWh = 0 }, "battery_capacity_kwh"},
		{"min soc out of range", func(c *Config) { c.BatteryMinSoCPct = -1 }, "battery_min_soc_pct"},
		{"min exceeds max soc", func(c *Config) { c.BatteryMinSoCPct, c.BatteryMaxSoCPct = 80, 50 }, "cannot exceed"},
		{"bad s_index mode", func(c *Config) { c.SIndexMode = "bogus" }, "s_index_mode"},
		{"max factor below base", func(c *Config) { c.SIndexMaxFactor = 0.5 }, "s_index_max_factor"},
		{"risk appetite out of range", func(c *Config) { c.RiskAppetite = 9 }, "risk_appetite"},
		{"bad protective strategy", func(c *Config) { c.ProtectiveSoCStrategy = "bogus" }, "protective_soc_strategy"},
		{"latitude out of range", func(c *Config) { c.Latitude = 200 }, "latitude"},
		{"empty slot store path", func(c *Config) { c.SlotStorePath = "" }, "slot_store_path"},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should mention %q", err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromReader_RejectsInvalidJSON(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader(`{not json`))
	require.Error(t, err)
}

func TestLoadFromReader_AppliesDefaultsThenOverrides(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(`{"risk_appetite": 2, "latitude": 40.5}`))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.RiskAppetite)
	assert.Equal(t, 40.5, cfg.Latitude)
	assert.Equal(t, DefaultConfig().BatteryCapacityKWh, cfg.BatteryCapacityKWh)
}
