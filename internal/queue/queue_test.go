package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func setupQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, "test:transcode", zerolog.Nop())
}

func TestQueue_EnqueueDequeueAck(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, Job{AssetID: "a1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, receipt, err := q.Dequeue(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job.AssetID != "a1" {
		t.Fatalf("unexpected job: %+v", job)
	}

	if err := q.Ack(ctx, receipt); err != nil {
		t.Fatalf("ack: %v", err)
	}

	recovered, err := q.Recover(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != 0 {
		t.Fatalf("acked job should not be recoverable, got %d", recovered)
	}
}

func TestQueue_FIFO(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	for _, id := range []string{"first", "second", "third"} {
		if err := q.Enqueue(ctx, Job{AssetID: id}); err != nil {
			t.Fatalf("enqueue %s: %v", id, err)
		}
	}

	for _, want := range []string{"first", "second", "third"} {
		job, receipt, err := q.Dequeue(ctx, 100*time.Millisecond)
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if job.AssetID != want {
			t.Fatalf("expected %s, got %s", want, job.AssetID)
		}
		if err := q.Ack(ctx, receipt); err != nil {
			t.Fatalf("ack: %v", err)
		}
	}
}

func TestQueue_UnackedJobIsRecovered(t *testing.T) {
	q := setupQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, Job{AssetID: "crashy"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, _, err := q.Dequeue(ctx, 100*time.Millisecond); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	// Worker "crashed" here: no Ack. A restarting worker recovers the job.
	recovered, err := q.Recover(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if recovered != 1 {
		t.Fatalf("expected 1 recovered job, got %d", recovered)
	}

	job, _, err := q.Dequeue(ctx, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("redelivery dequeue: %v", err)
	}
	if job.AssetID != "crashy" {
		t.Fatalf("unexpected redelivered job: %+v", job)
	}
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q := setupQueue(t)
	_, _, err := q.Dequeue(context.Background(), 10*time.Millisecond)
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestQueue_PoisonMessageIsDropped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := New(client, "test:transcode", zerolog.Nop())
	ctx := context.Background()

	if err := client.LPush(ctx, "test:transcode", "not json").Err(); err != nil {
		t.Fatalf("push: %v", err)
	}

	if _, _, err := q.Dequeue(ctx, 100*time.Millisecond); err == nil {
		t.Fatal("expected decode error")
	}
	if n, _ := client.LLen(ctx, "test:transcode:inflight").Result(); n != 0 {
		t.Fatalf("poison message should be dropped, %d left in flight", n)
	}
}
