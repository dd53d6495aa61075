package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"entry-confirm-alerts/internal/monitor"
)

const (
	getConfigSQL = `SELECT
        scope,
        enabled,
        check_interval_sec,
        lateral_tolerance_pct,
        lateral_cycles_min,
        rise_trigger_pct,
        rise_cycles_min,
        max_fall_pct,
        max_monitoring_time_min,
        cooldown_after_execution_min,
        sell_lateral_tolerance_pct,
        sell_lateral_cycles_min,
        sell_fall_trigger_pct,
        sell_fall_cycles_min,
        sell_max_rise_pct,
        sell_max_monitoring_time_min,
        sell_cooldown_after_execution_min,
        updated_at
    FROM monitor_configs
    WHERE scope = $1;`

	upsertConfigSQL = `INSERT INTO monitor_configs (
        scope, enabled, check_interval_sec,
        lateral_tolerance_pct, lateral_cycles_min,
        rise_trigger_pct, rise_cycles_min,
        max_fall_pct, max_monitoring_time_min, cooldown_after_execution_min,
        sell_lateral_tolerance_pct, sell_lateral_cycles_min,
        sell_fall_trigger_pct, sell_fall_cycles_min,
        sell_max_rise_pct, sell_max_monitoring_time_min, sell_cooldown_after_execution_min,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now()
    )
    ON CONFLICT (scope) DO UPDATE
    SET enabled                           = EXCLUDED.enabled,
        check_interval_sec                = EXCLUDED.check_interval_sec,
        lateral_tolerance_pct             = EXCLUDED.lateral_tolerance_pct,
        lateral_cycles_min                = EXCLUDED.lateral_cycles_min,
        rise_trigger_pct                  = EXCLUDED.rise_trigger_pct,
        rise_cycles_min                   = EXCLUDED.rise_cycles_min,
        max_fall_pct                      = EXCLUDED.max_fall_pct,
        max_monitoring_time_min           = EXCLUDED.max_monitoring_time_min,
        cooldown_after_execution_min      = EXCLUDED.cooldown_after_execution_min,
        sell_lateral_tolerance_pct        = EXCLUDED.sell_lateral_tolerance_pct,
        sell_lateral_cycles_min           = EXCLUDED.sell_lateral_cycles_min,
        sell_fall_trigger_pct             = EXCLUDED.sell_fall_trigger_pct,
        sell_fall_cycles_min              = EXCLUDED.sell_fall_cycles_min,
        sell_max_rise_pct                 = EXCLUDED.sell_max_rise_pct,
        sell_max_monitoring_time_min      = EXCLUDED.sell_max_monitoring_time_min,
        sell_cooldown_after_execution_min = EXCLUDED.sell_cooldown_after_execution_min,
        updated_at                        = now();`
)

// GetConfig fetches the threshold set for a scope (global or owner id).
func (s *Store) GetConfig(ctx context.Context, scope string) (*monitor.Config, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var cfg monitor.Config
	scanErr := pool.QueryRow(ctx, getConfigSQL, scope).Scan(
		&cfg.Scope,
		&cfg.Enabled,
		&cfg.CheckIntervalSec,
		&cfg.LateralTolerancePct,
		&cfg.LateralCyclesMin,
		&cfg.RiseTriggerPct,
		&cfg.RiseCyclesMin,
		&cfg.MaxFallPct,
		&cfg.MaxMonitoringTimeMin,
		&cfg.CooldownAfterExecutionMin,
		&cfg.SellLateralTolerancePct,
		&cfg.SellLateralCyclesMin,
		&cfg.SellFallTriggerPct,
		&cfg.SellFallCyclesMin,
		&cfg.SellMaxRisePct,
		&cfg.SellMaxMonitoringTimeMin,
		&cfg.SellCooldownAfterExecutionMin,
		&cfg.UpdatedAt,
	)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get config: %w", scanErr)
	}
	return &cfg, nil
}

// UpsertConfig writes a threshold set. Callers validate before writing.
func (s *Store) UpsertConfig(ctx context.Context, cfg *monitor.Config) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertConfigSQL,
		cfg.Scope,
		cfg.Enabled,
		cfg.CheckIntervalSec,
		cfg.LateralTolerancePct,
		cfg.LateralCyclesMin,
		cfg.RiseTriggerPct,
		cfg.RiseCyclesMin,
		cfg.MaxFallPct,
		cfg.MaxMonitoringTimeMin,
		cfg.CooldownAfterExecutionMin,
		cfg.SellLateralTolerancePct,
		cfg.SellLateralCyclesMin,
		cfg.SellFallTriggerPct,
		cfg.SellFallCyclesMin,
		cfg.SellMaxRisePct,
		cfg.SellMaxMonitoringTimeMin,
		cfg.SellCooldownAfterExecutionMin,
	)
	if execErr != nil {
		return fmt.Errorf("upsert config: %w", execErr)
	}
	return nil
}
