package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"entry-confirm-alerts/internal/config"
	"entry-confirm-alerts/internal/monitor"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrVersionConflict indicates a concurrent writer won the update
	// race; the caller's snapshot is stale.
	ErrVersionConflict = errors.New("storage: version conflict")
)

// AlertStore defines persistence operations for monitored alerts.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert *monitor.Alert) error
	GetAlert(ctx context.Context, id string) (*monitor.Alert, error)
	ListOpenAlerts(ctx context.Context, mode monitor.TradeMode) ([]monitor.Alert, error)
	UpdateAlert(ctx context.Context, alert *monitor.Alert) error
	CancelAlert(ctx context.Context, id, details string, now time.Time) (bool, error)
	AppendExecutedJob(ctx context.Context, alertID, jobID string) error
	RecentExecutionExists(ctx context.Context, symbol string, side monitor.Side, mode monitor.TradeMode, accountIDs []string, since time.Time) (bool, error)
	ListUnderDispatchedAlerts(ctx context.Context, mode monitor.TradeMode) ([]monitor.Alert, error)
	ListHistory(ctx context.Context, filter HistoryFilter) ([]monitor.Alert, error)
	ListExecutedAlerts(ctx context.Context) ([]monitor.Alert, error)
	SetSavings(ctx context.Context, id string, savingsPct string) error
}

// ConfigStore defines persistence for threshold sets.
type ConfigStore interface {
	GetConfig(ctx context.Context, scope string) (*monitor.Config, error)
	UpsertConfig(ctx context.Context, cfg *monitor.Config) error
}

// JobStore defines the idempotent execution-job claim table.
type JobStore interface {
	ClaimJob(ctx context.Context, job ExecutionJob) (bool, error)
	MarkJobSubmitted(ctx context.Context, jobKey, jobID string, at time.Time) error
	ListPendingJobs(ctx context.Context, mode monitor.TradeMode) ([]ExecutionJob, error)
}

// Store aggregates access to alerts, configs, and execution jobs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

var (
	_ AlertStore  = (*Store)(nil)
	_ ConfigStore = (*Store)(nil)
	_ JobStore    = (*Store)(nil)
)
