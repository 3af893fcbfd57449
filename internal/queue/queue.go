package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Job is the durable message bridging asset creation to the worker.
type Job struct {
	AssetID string `json:"assetId"`
}

// ErrEmpty is returned by Dequeue when no job arrived within the block window.
var ErrEmpty = errors.New("queue empty")

// Queue is a Redis-list-backed job queue with at-least-once delivery.
// Dequeue moves the message into an in-flight list; it is removed only on
// Ack, so a worker crash leaves the job recoverable.
type Queue struct {
	client *redis.Client
	name   string
	logger zerolog.Logger
}

// New creates a queue over an existing Redis client.
func New(client *redis.Client, name string, logger zerolog.Logger) *Queue {
	return &Queue{client: client, name: name, logger: logger}
}

func (q *Queue) inflight() string {
	return q.name + ":inflight"
}

// Enqueue publishes a job to the pending list.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.name, payload).Err(); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}
	q.logger.Debug().Str("asset_id", job.AssetID).Msg("job enqueued")
	return nil
}

// Dispatch enqueues a transcode job for the given asset. It satisfies the
// catalog dispatcher port.
func (q *Queue) Dispatch(ctx context.Context, assetID string) error {
	return q.Enqueue(ctx, Job{AssetID: assetID})
}

// Dequeue blocks up to the given duration for the next job. The returned
// receipt must be passed to Ack once the job has been handled.
func (q *Queue) Dequeue(ctx context.Context, block time.Duration) (Job, string, error) {
	payload, err := q.client.BLMove(ctx, q.name, q.inflight(), "RIGHT", "LEFT", block).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, "", ErrEmpty
	}
	if err != nil {
		return Job{}, "", fmt.Errorf("dequeue job: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		// Drop the poison message so it cannot wedge the worker.
		_ = q.client.LRem(ctx, q.inflight(), 1, payload).Err()
		return Job{}, "", fmt.Errorf("decode job payload: %w", err)
	}
	return job, payload, nil
}

// Ack removes a handled job from the in-flight list.
func (q *Queue) Ack(ctx context.Context, receipt string) error {
	if err := q.client.LRem(ctx, q.inflight(), 1, receipt).Err(); err != nil {
		return fmt.Errorf("ack job: %w", err)
	}
	return nil
}

// Recover requeues jobs a crashed worker left in flight. Called once at
// worker startup; redelivery is safe because pipeline steps are idempotent.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	moved := 0
	for {
		_, err := q.client.LMove(ctx, q.inflight(), q.name, "RIGHT", "RIGHT").Result()
		if errors.Is(err, redis.Nil) {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("recover jobs: %w", err)
		}
		moved++
	}
}

// Len reports the number of pending jobs.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}
