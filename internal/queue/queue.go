package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"entry-confirm-alerts/internal/config"
	"entry-confirm-alerts/internal/monitor"
)

// JobPayload is what the execution backend dequeues.
type JobPayload struct {
	JobID          string          `json:"job_id"`
	JobKey         string          `json:"job_key"`
	AlertID        string          `json:"alert_id"`
	AccountID      string          `json:"account_id"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	TradeMode      string          `json:"trade_mode"`
	ExecutionPrice string          `json:"execution_price"`
	CreatedAt      time.Time       `json:"created_at"`
	Extra          json.RawMessage `json:"extra,omitempty"`
}

// Queue submits execution jobs to the mode-partitioned backend with
// at-most-once submission per job key.
type Queue interface {
	Submit(ctx context.Context, mode monitor.TradeMode, payload JobPayload) (string, error)
}

// QueueName returns the list a trade mode's jobs land on.
func QueueName(mode monitor.TradeMode) string {
	if mode == monitor.ModeReal {
		return "exec:real"
	}
	return "exec:sim"
}

func markerKey(jobKey string) string {
	return "execjob:" + jobKey
}

// RedisQueue is a Redis-list-backed job queue: one list per trade mode,
// plus a per-job-key marker holding the assigned job id. The marker is
// written with SETNX so the existence check and the claim are a single
// atomic step.
type RedisQueue struct {
	client    *redis.Client
	retention time.Duration
	logger    zerolog.Logger
}

// NewRedisQueue connects a queue client.
func NewRedisQueue(cfg config.RedisConfig, logger zerolog.Logger) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	retention := cfg.JobRetention
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}

	return &RedisQueue{
		client:    client,
		retention: retention,
		logger:    logger.With().Str("component", "job_queue").Logger(),
	}, nil
}

// Close releases the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Submit pushes a job onto the mode's list unless its key was already
// submitted. Returns the job id recorded for the key either way; the
// caller cannot distinguish a dedupe from a fresh submission by error,
// only by the returned id matching an earlier one.
func (q *RedisQueue) Submit(ctx context.Context, mode monitor.TradeMode, payload JobPayload) (string, error) {
	if payload.JobID == "" {
		payload.JobID = uuid.NewString()
	}
	marker := markerKey(payload.JobKey)

	claimed, err := q.client.SetNX(ctx, marker, payload.JobID, q.retention).Result()
	if err != nil {
		return "", fmt.Errorf("claim job key: %w", err)
	}
	if !claimed {
		existing, err := q.client.Get(ctx, marker).Result()
		if err != nil {
			return "", fmt.Errorf("read existing job id: %w", err)
		}
		q.logger.Debug().Str("job_key", payload.JobKey).Str("job_id", existing).Msg("job key already submitted")
		return existing, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		q.client.Del(ctx, marker)
		return "", fmt.Errorf("marshal job payload: %w", err)
	}

	if err := q.client.LPush(ctx, QueueName(mode), body).Err(); err != nil {
		// Push failed after the marker claim; release it so a retry
		// is not deduped against a job that never made the list.
		q.client.Del(ctx, marker)
		return "", fmt.Errorf("push job: %w", err)
	}

	q.logger.Info().
		Str("queue", QueueName(mode)).
		Str("job_key", payload.JobKey).
		Str("job_id", payload.JobID).
		Msg("job submitted")
	return payload.JobID, nil
}

var _ Queue = (*RedisQueue)(nil)
