package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"entry-confirm-alerts/internal/monitor"
	"entry-confirm-alerts/internal/storage"
)

// ConfigGet prints the effective threshold set for a scope.
func (a *App) ConfigGet(ctx context.Context, scope string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if scope == "" {
		scope = monitor.ScopeGlobal
	}

	cfg, err := store.GetConfig(ctx, scope)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		if scope != monitor.ScopeGlobal {
			fmt.Fprintf(os.Stdout, "no override for scope %q; global defaults apply\n", scope)
			return nil
		}
		defaults := monitor.DefaultConfig()
		cfg = &defaults
		fmt.Fprintln(os.Stdout, "no stored global config; showing compiled-in defaults")
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "scope\t%s\n", cfg.Scope)
	fmt.Fprintf(writer, "enabled\t%t\n", cfg.Enabled)
	fmt.Fprintf(writer, "check_interval_sec\t%d\n", cfg.CheckIntervalSec)
	for _, row := range configRows(cfg) {
		fmt.Fprintf(writer, "%s\t%v\n", row.key, row.value)
	}
	writer.Flush()
	return nil
}

// ConfigSet applies key=value assignments to a scope's threshold set.
// The written set must validate as a whole; nothing is clamped.
func (a *App) ConfigSet(ctx context.Context, scope string, assignments []string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if scope == "" {
		scope = monitor.ScopeGlobal
	}

	cfg, err := store.GetConfig(ctx, scope)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		defaults := monitor.DefaultConfig()
		defaults.Scope = scope
		cfg = &defaults
	}

	for _, assignment := range assignments {
		key, value, ok := strings.Cut(assignment, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", assignment)
		}
		if err := applyConfigField(cfg, strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return err
		}
	}

	resolver := a.newResolver(store)
	if err := resolver.Put(ctx, *cfg); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "config for scope %q updated\n", scope)
	return nil
}

type configRow struct {
	key   string
	value any
}

func configRows(cfg *monitor.Config) []configRow {
	return []configRow{
		{"lateral_tolerance_pct", cfg.LateralTolerancePct},
		{"lateral_cycles_min", cfg.LateralCyclesMin},
		{"rise_trigger_pct", cfg.RiseTriggerPct},
		{"rise_cycles_min", cfg.RiseCyclesMin},
		{"max_fall_pct", cfg.MaxFallPct},
		{"max_monitoring_time_min", cfg.MaxMonitoringTimeMin},
		{"cooldown_after_execution_min", cfg.CooldownAfterExecutionMin},
		{"sell_lateral_tolerance_pct", cfg.SellLateralTolerancePct},
		{"sell_lateral_cycles_min", cfg.SellLateralCyclesMin},
		{"sell_fall_trigger_pct", cfg.SellFallTriggerPct},
		{"sell_fall_cycles_min", cfg.SellFallCyclesMin},
		{"sell_max_rise_pct", cfg.SellMaxRisePct},
		{"sell_max_monitoring_time_min", cfg.SellMaxMonitoringTimeMin},
		{"sell_cooldown_after_execution_min", cfg.SellCooldownAfterExecutionMin},
	}
}

func applyConfigField(cfg *monitor.Config, key, value string) error {
	setFloat := func(dst *float64) error {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = parsed
		return nil
	}
	setInt := func(dst *int) error {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = parsed
		return nil
	}

	switch key {
	case "enabled":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		cfg.Enabled = parsed
		return nil
	case "check_interval_sec":
		return setInt(&cfg.CheckIntervalSec)
	case "lateral_tolerance_pct":
		return setFloat(&cfg.LateralTolerancePct)
	case "lateral_cycles_min":
		return setInt(&cfg.LateralCyclesMin)
	case "rise_trigger_pct":
		return setFloat(&cfg.RiseTriggerPct)
	case "rise_cycles_min":
		return setInt(&cfg.RiseCyclesMin)
	case "max_fall_pct":
		return setFloat(&cfg.MaxFallPct)
	case "max_monitoring_time_min":
		return setInt(&cfg.MaxMonitoringTimeMin)
	case "cooldown_after_execution_min":
		return setInt(&cfg.CooldownAfterExecutionMin)
	case "sell_lateral_tolerance_pct":
		return setFloat(&cfg.SellLateralTolerancePct)
	case "sell_lateral_cycles_min":
		return setInt(&cfg.SellLateralCyclesMin)
	case "sell_fall_trigger_pct":
		return setFloat(&cfg.SellFallTriggerPct)
	case "sell_fall_cycles_min":
		return setInt(&cfg.SellFallCyclesMin)
	case "sell_max_rise_pct":
		return setFloat(&cfg.SellMaxRisePct)
	case "sell_max_monitoring_time_min":
		return setInt(&cfg.SellMaxMonitoringTimeMin)
	case "sell_cooldown_after_execution_min":
		return setInt(&cfg.SellCooldownAfterExecutionMin)
	default:
		return fmt.Errorf("unknown config field %q", key)
	}
}
