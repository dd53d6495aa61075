package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entry-confirm-alerts/internal/monitor"
)

// Job lifecycle: a row is claimed atomically (unique job key) before
// anything touches the queue, then marked submitted once the queue
// accepted it. Claimed-but-unsubmitted rows are the retry backlog after
// queue outages.
const (
	JobStatusClaimed   = "claimed"
	JobStatusSubmitted = "submitted"
)

// ExecutionJob is one idempotent dispatch claim for an (alert, account)
// pair.
type ExecutionJob struct {
	JobKey      string
	AlertID     string
	AccountID   string
	TradeMode   monitor.TradeMode
	Status      string
	JobID       string
	CreatedAt   time.Time
	SubmittedAt *time.Time
}

const (
	claimJobSQL = `INSERT INTO execution_jobs (
        job_key, alert_id, account_id, trade_mode, status, created_at
    ) VALUES (
        $1,$2,$3,$4,'claimed',$5
    )
    ON CONFLICT (job_key) DO NOTHING;`

	markJobSubmittedSQL = `UPDATE execution_jobs
    SET status = 'submitted', job_id = $2, submitted_at = $3
    WHERE job_key = $1;`

	listPendingJobsSQL = `SELECT
        job_key, alert_id, account_id, trade_mode, status, job_id, created_at, submitted_at
    FROM execution_jobs
    WHERE status = 'claimed'
      AND trade_mode = $1
    ORDER BY created_at;`
)

// ClaimJob atomically claims a job key. Returns false when the key was
// already claimed by an earlier dispatch attempt.
func (s *Store) ClaimJob(ctx context.Context, job ExecutionJob) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	cmdTag, execErr := pool.Exec(ctx, claimJobSQL,
		job.JobKey,
		job.AlertID,
		job.AccountID,
		string(job.TradeMode),
		job.CreatedAt,
	)
	if execErr != nil {
		return false, fmt.Errorf("claim job: %w", execErr)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// MarkJobSubmitted records the queue-assigned job id for a claim.
func (s *Store) MarkJobSubmitted(ctx context.Context, jobKey, jobID string, at time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, markJobSubmittedSQL, jobKey, jobID, at); execErr != nil {
		return fmt.Errorf("mark job submitted: %w", execErr)
	}
	return nil
}

// ListPendingJobs returns claims whose queue submission has not
// succeeded yet.
func (s *Store) ListPendingJobs(ctx context.Context, mode monitor.TradeMode) ([]ExecutionJob, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPendingJobsSQL, string(mode))
	if queryErr != nil {
		return nil, fmt.Errorf("list pending jobs: %w", queryErr)
	}
	defer rows.Close()

	jobs := make([]ExecutionJob, 0)
	for rows.Next() {
		var (
			job         ExecutionJob
			mode        string
			jobID       sql.NullString
			submittedAt sql.NullTime
		)
		if err := rows.Scan(
			&job.JobKey,
			&job.AlertID,
			&job.AccountID,
			&mode,
			&job.Status,
			&jobID,
			&job.CreatedAt,
			&submittedAt,
		); err != nil {
			return nil, err
		}
		job.TradeMode = monitor.TradeMode(mode)
		if jobID.Valid {
			job.JobID = jobID.String
		}
		if submittedAt.Valid {
			at := submittedAt.Time
			job.SubmittedAt = &at
		}
		jobs = append(jobs, job)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return jobs, nil
}
