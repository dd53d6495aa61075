package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"entry-confirm-alerts/internal/monitor"
)

const alertColumns = `
        id,
        source_id,
        owner_id,
        account_ids,
        symbol,
        venue,
        side,
        trade_mode,
        state,
        sub_status,
        anchor_price,
        price_minimum,
        price_maximum,
        current_price,
        trigger_price,
        execution_price,
        lateral_cycles,
        confirm_cycles,
        exit_reason,
        exit_details,
        executed_job_ids,
        started_at,
        updated_at,
        ended_at,
        version`

const (
	insertAlertSQL = `INSERT INTO monitor_alerts (
        id, source_id, owner_id, account_ids, symbol, venue, side, trade_mode,
        state, sub_status,
        anchor_price, price_minimum, price_maximum, current_price,
        lateral_cycles, confirm_cycles,
        executed_job_ids, started_at, updated_at, version
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20
    );`

	getAlertSQL = `SELECT` + alertColumns + `
    FROM monitor_alerts
    WHERE id = $1;`

	listOpenAlertsSQL = `SELECT` + alertColumns + `
    FROM monitor_alerts
    WHERE state = 'MONITORING'
      AND trade_mode = $1
    ORDER BY started_at;`

	updateAlertSQL = `UPDATE monitor_alerts
    SET state           = $3,
        sub_status      = $4,
        anchor_price    = $5,
        price_minimum   = $6,
        price_maximum   = $7,
        current_price   = $8,
        trigger_price   = $9,
        execution_price = $10,
        lateral_cycles  = $11,
        confirm_cycles  = $12,
        exit_reason     = $13,
        exit_details    = $14,
        updated_at      = $15,
        ended_at        = $16,
        version         = version + 1
    WHERE id = $1
      AND version = $2;`

	cancelAlertSQL = `UPDATE monitor_alerts
    SET state        = 'CANCELLED',
        exit_reason  = 'MANUAL',
        exit_details = $2,
        updated_at   = $3,
        ended_at     = $3,
        version      = version + 1
    WHERE id = $1
      AND state = 'MONITORING';`

	appendExecutedJobSQL = `UPDATE monitor_alerts
    SET executed_job_ids = array_append(executed_job_ids, $2),
        updated_at       = now()
    WHERE id = $1
      AND NOT (executed_job_ids @> ARRAY[$2]::text[]);`

	recentExecutionSQL = `SELECT EXISTS (
        SELECT 1 FROM monitor_alerts
        WHERE symbol = $1
          AND side = $2
          AND trade_mode = $3
          AND state = 'EXECUTED'
          AND ended_at >= $4
          AND account_ids && $5::text[]
    );`

	listExecutedAlertsSQL = `SELECT` + alertColumns + `
    FROM monitor_alerts
    WHERE state = 'EXECUTED'
    ORDER BY ended_at;`

	listUnderDispatchedSQL = `SELECT` + alertColumns + `
    FROM monitor_alerts a
    WHERE a.state = 'EXECUTED'
      AND a.trade_mode = $1
      AND cardinality(a.account_ids) > (
          SELECT count(*) FROM execution_jobs j WHERE j.alert_id = a.id
      )
    ORDER BY a.ended_at;`

	setSavingsSQL = `UPDATE monitor_alerts
    SET savings_pct = $2
    WHERE id = $1;`
)

// HistoryFilter narrows the terminal-history query. Limit is clamped to
// [1, 1000]; zero means the default page size.
type HistoryFilter struct {
	Symbol  string
	OwnerID string
	States  []monitor.State
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

func (f HistoryFilter) clampedLimit() int {
	switch {
	case f.Limit <= 0:
		return defaultHistoryLimit
	case f.Limit > maxHistoryLimit:
		return maxHistoryLimit
	default:
		return f.Limit
	}
}

// InsertAlert persists a freshly created alert.
func (s *Store) InsertAlert(ctx context.Context, a *monitor.Alert) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertAlertSQL,
		a.ID,
		a.SourceID,
		a.OwnerID,
		textArray(a.AccountIDs),
		a.Symbol,
		a.Venue,
		string(a.Side),
		string(a.TradeMode),
		string(a.State),
		string(a.SubStatus),
		a.AnchorPrice.String(),
		a.PriceMinimum.String(),
		a.PriceMaximum.String(),
		a.CurrentPrice.String(),
		a.LateralCycles,
		a.ConfirmCycles,
		textArray(a.ExecutedJobIDs),
		a.StartedAt,
		a.UpdatedAt,
		a.Version,
	)
	if execErr != nil {
		return fmt.Errorf("insert alert: %w", execErr)
	}
	return nil
}

// GetAlert fetches a single alert by id.
func (s *Store) GetAlert(ctx context.Context, id string) (*monitor.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	alert, scanErr := scanAlert(pool.QueryRow(ctx, getAlertSQL, id))
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get alert: %w", scanErr)
	}
	return alert, nil
}

// ListOpenAlerts snapshots all alerts still being monitored for a mode.
func (s *Store) ListOpenAlerts(ctx context.Context, mode monitor.TradeMode) ([]monitor.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listOpenAlertsSQL, string(mode))
	if queryErr != nil {
		return nil, fmt.Errorf("list open alerts: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// UpdateAlert persists the alert's mutable fields under its version
// check. On success the in-memory version is advanced; a stale version
// returns ErrVersionConflict.
func (s *Store) UpdateAlert(ctx context.Context, a *monitor.Alert) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, updateAlertSQL,
		a.ID,
		a.Version,
		string(a.State),
		string(a.SubStatus),
		a.AnchorPrice.String(),
		a.PriceMinimum.String(),
		a.PriceMaximum.String(),
		a.CurrentPrice.String(),
		nullDecimal(a.TriggerPrice),
		nullDecimal(a.ExecutionPrice),
		a.LateralCycles,
		a.ConfirmCycles,
		nullString(string(a.ExitReason)),
		nullString(a.ExitDetails),
		a.UpdatedAt,
		a.EndedAt,
	)
	if execErr != nil {
		return fmt.Errorf("update alert: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	a.Version++
	return nil
}

// CancelAlert marks an alert CANCELLED/MANUAL, but only while it is
// still open; the state re-check and the write are one statement, so a
// concurrent tick that already fired wins the race. Returns false when
// no open alert was cancelled.
func (s *Store) CancelAlert(ctx context.Context, id, details string, now time.Time) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	cmdTag, execErr := pool.Exec(ctx, cancelAlertSQL, id, details, now)
	if execErr != nil {
		return false, fmt.Errorf("cancel alert: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// AppendExecutedJob records a dispatched job id; appending the same id
// twice is a no-op.
func (s *Store) AppendExecutedJob(ctx context.Context, alertID, jobID string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, appendExecutedJobSQL, alertID, jobID); execErr != nil {
		return fmt.Errorf("append executed job: %w", execErr)
	}
	return nil
}

// RecentExecutionExists reports whether any bound account executed the
// same symbol/side/mode since the given instant. Backs the
// post-execution cooldown on alert creation.
func (s *Store) RecentExecutionExists(ctx context.Context, symbol string, side monitor.Side, mode monitor.TradeMode, accountIDs []string, since time.Time) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	var exists bool
	if scanErr := pool.QueryRow(ctx, recentExecutionSQL,
		symbol, string(side), string(mode), since, accountIDs,
	).Scan(&exists); scanErr != nil {
		return false, fmt.Errorf("recent execution exists: %w", scanErr)
	}
	return exists, nil
}

// ListHistory queries terminal alerts with optional filters and
// pagination.
func (s *Store) ListHistory(ctx context.Context, filter HistoryFilter) ([]monitor.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query := `SELECT` + alertColumns + `
    FROM monitor_alerts
    WHERE state <> 'MONITORING'`
	args := make([]interface{}, 0, 8)

	if filter.Symbol != "" {
		args = append(args, filter.Symbol)
		query += fmt.Sprintf(" AND symbol = $%d", len(args))
	}
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		query += fmt.Sprintf(" AND owner_id = $%d", len(args))
	}
	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, st := range filter.States {
			states = append(states, string(st))
		}
		args = append(args, states)
		query += fmt.Sprintf(" AND state = ANY($%d)", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND started_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND started_at < $%d", len(args))
	}

	args = append(args, filter.clampedLimit())
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list history: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// ListUnderDispatchedAlerts returns EXECUTED alerts holding fewer job
// claims than bound accounts. These are the dispatch gaps left when a
// claim write failed or the process died right after the EXECUTED
// transition; terminal alerts are never ticked again, so the sweep is
// the only path that closes them.
func (s *Store) ListUnderDispatchedAlerts(ctx context.Context, mode monitor.TradeMode) ([]monitor.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listUnderDispatchedSQL, string(mode))
	if queryErr != nil {
		return nil, fmt.Errorf("list under-dispatched alerts: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// ListExecutedAlerts returns every executed alert, oldest first.
func (s *Store) ListExecutedAlerts(ctx context.Context) ([]monitor.Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listExecutedAlertsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list executed alerts: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// SetSavings backfills the denormalised savings column for an alert.
func (s *Store) SetSavings(ctx context.Context, id string, savingsPct string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, setSavingsSQL, id, savingsPct); execErr != nil {
		return fmt.Errorf("set savings: %w", execErr)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectAlerts(rows pgx.Rows) ([]monitor.Alert, error) {
	alerts := make([]monitor.Alert, 0)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, *alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func scanAlert(row rowScanner) (*monitor.Alert, error) {
	var (
		a            monitor.Alert
		side         string
		mode         string
		state        string
		subStatus    string
		anchorStr    string
		minStr       string
		maxStr       string
		currentStr   string
		triggerStr   sql.NullString
		executionStr sql.NullString
		exitReason   sql.NullString
		exitDetails  sql.NullString
		endedAt      sql.NullTime
	)

	if err := row.Scan(
		&a.ID,
		&a.SourceID,
		&a.OwnerID,
		&a.AccountIDs,
		&a.Symbol,
		&a.Venue,
		&side,
		&mode,
		&state,
		&subStatus,
		&anchorStr,
		&minStr,
		&maxStr,
		&currentStr,
		&triggerStr,
		&executionStr,
		&a.LateralCycles,
		&a.ConfirmCycles,
		&exitReason,
		&exitDetails,
		&a.ExecutedJobIDs,
		&a.StartedAt,
		&a.UpdatedAt,
		&endedAt,
		&a.Version,
	); err != nil {
		return nil, err
	}

	a.Side = monitor.Side(side)
	a.TradeMode = monitor.TradeMode(mode)
	a.State = monitor.State(state)
	a.SubStatus = monitor.SubStatus(subStatus)

	var err error
	if a.AnchorPrice, err = decimal.NewFromString(anchorStr); err != nil {
		return nil, fmt.Errorf("parse anchor price: %w", err)
	}
	if a.PriceMinimum, err = decimal.NewFromString(minStr); err != nil {
		return nil, fmt.Errorf("parse price minimum: %w", err)
	}
	if a.PriceMaximum, err = decimal.NewFromString(maxStr); err != nil {
		return nil, fmt.Errorf("parse price maximum: %w", err)
	}
	if a.CurrentPrice, err = decimal.NewFromString(currentStr); err != nil {
		return nil, fmt.Errorf("parse current price: %w", err)
	}
	if triggerStr.Valid {
		if a.TriggerPrice, err = decimal.NewFromString(triggerStr.String); err != nil {
			return nil, fmt.Errorf("parse trigger price: %w", err)
		}
	}
	if executionStr.Valid {
		if a.ExecutionPrice, err = decimal.NewFromString(executionStr.String); err != nil {
			return nil, fmt.Errorf("parse execution price: %w", err)
		}
	}
	if exitReason.Valid {
		a.ExitReason = monitor.ExitReason(exitReason.String)
	}
	if exitDetails.Valid {
		a.ExitDetails = exitDetails.String
	}
	if endedAt.Valid {
		ended := endedAt.Time
		a.EndedAt = &ended
	}

	return &a, nil
}

// textArray keeps array binds non-nil: pgx encodes a nil slice as SQL
// NULL, and an explicit NULL bypasses the column DEFAULT on NOT NULL
// array columns.
func textArray(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func nullDecimal(d decimal.Decimal) interface{} {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

func nullString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
