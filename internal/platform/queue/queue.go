package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/iftar/pkg/tool"
)

const (
	KeyJobs = "iftar:jobs"
	KeyDLQ  = "iftar:dlq"
	// MaxRetries is the number of attempts before a job is parked in the DLQ.
	MaxRetries   = 3
	RetryBackoff = 10 * time.Second
)

type JobType string

const JobTypeNotification JobType = "notification"

// Job is the envelope stored in Redis.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue is a Redis list backed job queue with retry and dead letter.
type Queue struct {
	client *redis.Client
	log    *zap.SugaredLogger
}

// New returns nil when client is nil.
func New(client *redis.Client, log *zap.SugaredLogger) *Queue {
	if client == nil {
		return nil
	}
	return &Queue{client: client, log: log}
}

func NewJob(jobType JobType, payload any) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{ID: tool.GenerateUUIDV7(), Type: jobType, Payload: body, CreatedAt: time.Now()}, nil
}

func (q *Queue) Enqueue(ctx context.Context, jobType JobType, payload any) error {
	job, err := NewJob(jobType, payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, KeyJobs, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.log.Debugw("job_enqueued", "job_id", job.ID, "type", job.Type)
	return nil
}

// Dequeue blocks up to timeout. It returns a nil job when nothing arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, KeyJobs).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.log.Warnw("invalid job payload", "raw", result[1], "err", err)
		return nil, nil
	}
	return &job, nil
}

// RetryKey picks the list a failed job goes back to.
func RetryKey(attempt int) string {
	if attempt >= MaxRetries {
		return KeyDLQ
	}
	return KeyJobs
}

// Retry re-enqueues a job with attempt incremented, or moves it to the DLQ once retries are exhausted.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	key := RetryKey(job.Attempt)
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	if key == KeyDLQ {
		q.log.Warnw("job_moved_to_dlq", "job_id", job.ID, "attempt", job.Attempt)
	} else {
		q.log.Infow("job_retried", "job_id", job.ID, "attempt", job.Attempt)
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(NewRedis, New),
)
