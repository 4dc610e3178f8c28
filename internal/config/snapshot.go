package config

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/kepler-ems/planner/internal/model"
	"github.com/rs/zerolog"
)

// Store holds the current effective Config behind an atomic pointer so
// every goroutine reads a consistent snapshot without locking, the way
// the teacher's scheduler guards pricesMarketData/mpcDecisions with a
// mutex for mutable shared state — here the value is immutable once
// published so a plain atomic.Value suffices.
type Store struct {
	v   atomic.Value
	log zerolog.Logger
}

// NewStore creates a Store seeded with initial.
func NewStore(initial *Config, log zerolog.Logger) *Store {
	s := &Store{log: log.With().Str("module", "config").Logger()}
	s.v.Store(initial)
	return s
}

// Snapshot returns the currently effective Config. Callers must treat
// the returned value as read-only.
func (s *Store) Snapshot() *Config {
	return s.v.Load().(*Config)
}

// Replace atomically swaps in a new validated Config.
func (s *Store) Replace(c *Config) {
	s.v.Store(c)
}

// WatchReload reloads the config file from path whenever the process
// receives SIGHUP, replacing the snapshot only if the new file parses
// and validates; a bad reload is logged and the old snapshot is kept,
// so a typo in the file never takes down a running planner. Runs until
// stop is closed.
func (s *Store) WatchReload(path string, stop <-chan struct{}) {
	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	for {
		select {
		case <-stop:
			return
		case <-sighup:
			cfg, err := Load(path)
			if err != nil {
				s.log.Error().Err(err).Str("path", path).Msg("config reload failed, keeping previous configuration")
				continue
			}
			s.Replace(cfg)
			s.log.Info().Str("path", path).Msg("configuration reloaded")
		}
	}
}

// BatterySpec projects the battery fields of c into the model package's
// BatterySpec, the shape the Preparer and Kepler solver consume.
func (c *Config) BatterySpec() model.BatterySpec {
	return model.BatterySpec{
		CapacityKWh:    c.BatteryCapacityKWh,
		MinSoCPct:      c.BatteryMinSoCPct,
		MaxSoCPct:      c.BatteryMaxSoCPct,
		MaxChargeKW:    c.BatteryMaxChargeKW,
		MaxDischargeKW: c.BatteryMaxDischargeKW,
		Efficiency:     c.BatteryEfficiencyPct / 100,
	}
}

// ProtectiveSoCPct returns the export-gating floor of spec §4.5
// constraint 5 (distinct from the hard battery-min floor of constraint
// 8, which is BatteryMinSoCPct directly). gap_based sits 10% of the
// usable SoC range above the hard floor; fixed uses
// FixedProtectiveSoCPct verbatim. Centralized here so Kepler's export
// gate and the TargetSoC strategist's base floor agree on the same
// value.
func (c *Config) ProtectiveSoCPct() float64 {
	if c.ProtectiveSoCStrategy == ProtectiveSoCFixed {
		return c.FixedProtectiveSoCPct
	}
	usableRange := c.BatteryMaxSoCPct - c.BatteryMinSoCPct
	return c.BatteryMinSoCPct + 0.1*usableRange
}
