package queue

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T, mutate func(*Config)) (*RedisQueue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cfg := Config{
		Client:     client,
		Prefix:     "test:reconcile",
		Group:      "test-group",
		Consumer:   "worker",
		Block:      50 * time.Millisecond,
		RetryDelay: time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	q, err := New(cfg)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q, client
}

func waitForStatus(t *testing.T, q *RedisQueue, id string, want Status) Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		job, ok, err := q.Job(context.Background(), id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if ok && job.Status == want {
			return job
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s never reached %s: %+v", id, want, job)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEnqueueCoalescesWaitingJobs(t *testing.T) {
	q, client := newTestQueue(t, nil)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, "user-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	second, err := q.Enqueue(ctx, "user-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected coalesced job, got %s and %s", first.ID, second.ID)
	}
	other, err := q.Enqueue(ctx, "user-2")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("different users must not share a job")
	}
	if n, err := client.XLen(ctx, q.streamKey()).Result(); err != nil || n != 2 {
		t.Fatalf("expected 2 stream entries, got %d %v", n, err)
	}
}

func TestEnqueueReplacesStaleMarker(t *testing.T) {
	q, client := newTestQueue(t, nil)
	ctx := context.Background()
	if err := client.Set(ctx, q.pendingKey("user-1"), "gone", time.Hour).Err(); err != nil {
		t.Fatalf("seed marker: %v", err)
	}
	job, err := q.Enqueue(ctx, "user-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.ID == "gone" {
		t.Fatalf("stale marker reused")
	}
	if got, _ := client.Get(ctx, q.pendingKey("user-1")).Result(); got != job.ID {
		t.Fatalf("marker not updated: %q", got)
	}
}

func TestStartRetriesThenSucceeds(t *testing.T) {
	q, _ := newTestQueue(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	q.Start(ctx, 1, func(_ context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("transient")
		}
		return nil
	})
	job, err := q.Enqueue(ctx, "user-9")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	done := waitForStatus(t, q, job.ID, StatusDone)
	if done.Attempts != 2 || done.Error != "" {
		t.Fatalf("unexpected finished job %+v", done)
	}

	// Once started, a new write schedules a fresh job.
	next, err := q.Enqueue(ctx, "user-9")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if next.ID == job.ID {
		t.Fatalf("expected a new job after the first one started")
	}
	waitForStatus(t, q, next.ID, StatusDone)
}

func TestStartMarksFailedAfterMaxAttempts(t *testing.T) {
	q, _ := newTestQueue(t, func(c *Config) { c.MaxAttempts = 2 })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Start(ctx, 2, func(context.Context, Job) error { return errors.New("store down") })
	job, err := q.Enqueue(ctx, "user-3")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	failed := waitForStatus(t, q, job.ID, StatusFailed)
	if failed.Attempts != 2 || failed.Error != "store down" {
		t.Fatalf("unexpected failed job %+v", failed)
	}
}

func TestRequeueFailureKeepsPendingMessage(t *testing.T) {
	q, client := newTestQueue(t, nil)
	ctx := context.Background()
	q.ensureGroup(ctx)
	job, err := q.Enqueue(ctx, "user-1")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	streams, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: "c1",
		Streams:  []string{q.streamKey(), ">"},
		Count:    1,
	}).Result()
	if err != nil || len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("readgroup: %+v %v", streams, err)
	}
	msgID := streams[0].Messages[0].ID

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := q.requeue(canceled, msgID, job); err == nil {
		t.Fatalf("expected requeue to fail on canceled context")
	}
	pending, err := client.XPending(ctx, q.streamKey(), q.group).Result()
	if err != nil || pending.Count != 1 {
		t.Fatalf("expected message to stay pending, got %+v %v", pending, err)
	}

	if err := q.requeue(ctx, msgID, job); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	pending, err = client.XPending(ctx, q.streamKey(), q.group).Result()
	if err != nil || pending.Count != 0 {
		t.Fatalf("expected nothing pending, got %+v %v", pending, err)
	}
	if n, _ := client.XLen(ctx, q.streamKey()).Result(); n != 1 {
		t.Fatalf("expected requeued entry, stream len %d", n)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	if _, err := New(Config{Prefix: "p"}); err == nil {
		t.Fatal("expected error without client")
	}
	q, _ := newTestQueue(t, nil)
	if _, err := q.Enqueue(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty user id")
	}
}

func TestProcessLogsLostStatusWrites(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	q, client := newTestQueue(t, nil)
	ctx := context.Background()
	job, err := q.Enqueue(ctx, "user-7")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	msgs, err := client.XRange(ctx, q.streamKey(), "-", "+").Result()
	if err != nil || len(msgs) != 1 {
		t.Fatalf("stream messages: %v %v", msgs, err)
	}

	// Redis goes away while the job runs, so the done record and the ack are lost.
	q.process(ctx, msgs[0], func(context.Context, Job) error {
		return client.Close()
	})

	logs := buf.String()
	for _, want := range []string{`"msg":"queue save job failed"`, `"status":"done"`, `"job_id":"` + job.ID + `"`, `"msg":"queue ack failed"`} {
		if !strings.Contains(logs, want) {
			t.Fatalf("logs missing %s:\n%s", want, logs)
		}
	}
}
