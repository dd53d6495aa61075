package monitor

import (
	"errors"
	"testing"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestValidateNamesOffendingField(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative tolerance", func(c *Config) { c.LateralTolerancePct = -0.1 }, "lateral_tolerance_pct"},
		{"zero lateral cycles", func(c *Config) { c.LateralCyclesMin = 0 }, "lateral_cycles_min"},
		{"zero trigger", func(c *Config) { c.RiseTriggerPct = 0 }, "rise_trigger_pct"},
		{"trigger below tolerance", func(c *Config) { c.RiseTriggerPct = 0.2 }, "rise_trigger_pct"},
		{"zero adverse bound", func(c *Config) { c.MaxFallPct = 0 }, "max_fall_pct"},
		{"zero max time", func(c *Config) { c.MaxMonitoringTimeMin = 0 }, "max_monitoring_time_min"},
		{"negative cooldown", func(c *Config) { c.CooldownAfterExecutionMin = -1 }, "cooldown_after_execution_min"},
		{"zero interval", func(c *Config) { c.CheckIntervalSec = 0 }, "check_interval_sec"},
		{"sell zero cycles", func(c *Config) { c.SellLateralCyclesMin = 0 }, "sell_lateral_cycles_min"},
		{"sell zero adverse", func(c *Config) { c.SellMaxRisePct = 0 }, "sell_max_rise_pct"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}
}

func TestThresholdsForSelectsMirroredSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RiseTriggerPct = 1.5
	cfg.SellFallTriggerPct = 2.5

	buy := cfg.ThresholdsFor(SideBuy)
	if buy.TriggerPct.String() != "1.5" {
		t.Fatalf("BUY thresholds should use the buy set, got %s", buy.TriggerPct)
	}
	sell := cfg.ThresholdsFor(SideSell)
	if sell.TriggerPct.String() != "2.5" {
		t.Fatalf("SELL thresholds should use the sell set, got %s", sell.TriggerPct)
	}
}
