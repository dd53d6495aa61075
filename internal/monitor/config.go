package monitor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ScopeGlobal is the config scope holding the global defaults; any other
// scope value is an owner id overriding them.
const ScopeGlobal = "global"

// Config is a threshold set governing the detector, with mirrored BUY
// and SELL variants. Stored globally and optionally overridden per
// owner.
type Config struct {
	Scope            string
	Enabled          bool
	CheckIntervalSec int

	// BUY: consolidation low, then confirmed rise.
	LateralTolerancePct       float64
	LateralCyclesMin          int
	RiseTriggerPct            float64
	RiseCyclesMin             int
	MaxFallPct                float64
	MaxMonitoringTimeMin      int
	CooldownAfterExecutionMin int

	// SELL: mirrored set, consolidation high then confirmed fall.
	SellLateralTolerancePct       float64
	SellLateralCyclesMin          int
	SellFallTriggerPct            float64
	SellFallCyclesMin             int
	SellMaxRisePct                float64
	SellMaxMonitoringTimeMin      int
	SellCooldownAfterExecutionMin int

	UpdatedAt time.Time
}

// Thresholds is the side-resolved tuple the detector runs against. The
// direction sign lives in Side; everything else is symmetric.
type Thresholds struct {
	Side              Side
	TolerancePct      decimal.Decimal
	LateralCyclesMin  int
	TriggerPct        decimal.Decimal
	TriggerCyclesMin  int
	MaxAdversePct     decimal.Decimal
	MaxMonitoringTime time.Duration
	Cooldown          time.Duration
}

// ThresholdsFor selects the BUY or SELL variant as a detector tuple.
func (c *Config) ThresholdsFor(side Side) Thresholds {
	if side == SideSell {
		return Thresholds{
			Side:              SideSell,
			TolerancePct:      decimal.NewFromFloat(c.SellLateralTolerancePct),
			LateralCyclesMin:  c.SellLateralCyclesMin,
			TriggerPct:        decimal.NewFromFloat(c.SellFallTriggerPct),
			TriggerCyclesMin:  c.SellFallCyclesMin,
			MaxAdversePct:     decimal.NewFromFloat(c.SellMaxRisePct),
			MaxMonitoringTime: time.Duration(c.SellMaxMonitoringTimeMin) * time.Minute,
			Cooldown:          time.Duration(c.SellCooldownAfterExecutionMin) * time.Minute,
		}
	}
	return Thresholds{
		Side:              SideBuy,
		TolerancePct:      decimal.NewFromFloat(c.LateralTolerancePct),
		LateralCyclesMin:  c.LateralCyclesMin,
		TriggerPct:        decimal.NewFromFloat(c.RiseTriggerPct),
		TriggerCyclesMin:  c.RiseCyclesMin,
		MaxAdversePct:     decimal.NewFromFloat(c.MaxFallPct),
		MaxMonitoringTime: time.Duration(c.MaxMonitoringTimeMin) * time.Minute,
		Cooldown:          time.Duration(c.CooldownAfterExecutionMin) * time.Minute,
	}
}

// CheckInterval returns the sampling cadence as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSec) * time.Second
}

// DefaultConfig returns the compiled-in global defaults, used when no
// global row has been written yet.
func DefaultConfig() Config {
	return Config{
		Scope:            ScopeGlobal,
		Enabled:          true,
		CheckIntervalSec: 60,

		LateralTolerancePct:       0.3,
		LateralCyclesMin:          4,
		RiseTriggerPct:            0.75,
		RiseCyclesMin:             2,
		MaxFallPct:                6.0,
		MaxMonitoringTimeMin:      60,
		CooldownAfterExecutionMin: 30,

		SellLateralTolerancePct:       0.3,
		SellLateralCyclesMin:          4,
		SellFallTriggerPct:            0.75,
		SellFallCyclesMin:             2,
		SellMaxRisePct:                6.0,
		SellMaxMonitoringTimeMin:      60,
		SellCooldownAfterExecutionMin: 30,
	}
}

// ValidationError names the config field rejected at write time.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

// Validate rejects invalid threshold values synchronously. Values are
// never clamped at read time.
func (c *Config) Validate() error {
	if c.CheckIntervalSec <= 0 {
		return &ValidationError{Field: "check_interval_sec", Reason: "must be greater than zero"}
	}

	type sideSet struct {
		prefix       string
		tolerance    float64
		lateralMin   int
		trigger      float64
		triggerMin   int
		maxAdverse   float64
		maxTime      int
		cooldown     int
		adverseField string
	}
	sets := []sideSet{
		{"", c.LateralTolerancePct, c.LateralCyclesMin, c.RiseTriggerPct, c.RiseCyclesMin, c.MaxFallPct, c.MaxMonitoringTimeMin, c.CooldownAfterExecutionMin, "max_fall_pct"},
		{"sell_", c.SellLateralTolerancePct, c.SellLateralCyclesMin, c.SellFallTriggerPct, c.SellFallCyclesMin, c.SellMaxRisePct, c.SellMaxMonitoringTimeMin, c.SellCooldownAfterExecutionMin, "sell_max_rise_pct"},
	}
	for _, s := range sets {
		trigger := "rise_trigger_pct"
		triggerCycles := "rise_cycles_min"
		if s.prefix != "" {
			trigger = "sell_fall_trigger_pct"
			triggerCycles = "sell_fall_cycles_min"
		}
		if s.tolerance < 0 {
			return &ValidationError{Field: s.prefix + "lateral_tolerance_pct", Reason: "cannot be negative"}
		}
		if s.lateralMin <= 0 {
			return &ValidationError{Field: s.prefix + "lateral_cycles_min", Reason: "must be greater than zero"}
		}
		if s.trigger <= 0 {
			return &ValidationError{Field: trigger, Reason: "must be greater than zero"}
		}
		if s.trigger <= s.tolerance {
			return &ValidationError{Field: trigger, Reason: "must exceed the lateral tolerance"}
		}
		if s.triggerMin <= 0 {
			return &ValidationError{Field: triggerCycles, Reason: "must be greater than zero"}
		}
		if s.maxAdverse <= 0 {
			return &ValidationError{Field: s.adverseField, Reason: "must be greater than zero"}
		}
		if s.maxTime <= 0 {
			return &ValidationError{Field: s.prefix + "max_monitoring_time_min", Reason: "must be greater than zero"}
		}
		if s.cooldown < 0 {
			return &ValidationError{Field: s.prefix + "cooldown_after_execution_min", Reason: "cannot be negative"}
		}
	}
	return nil
}
