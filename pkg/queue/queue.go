// Package queue runs per-user background jobs on a Redis stream consumer
// group. Jobs for the same user coalesce while one is still waiting, so a
// burst of writes produces a single run.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is the recorded state of one unit of work for a user.
type Job struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Handler processes one job. A returned error schedules a retry until
// MaxAttempts is reached.
type Handler func(context.Context, Job) error

type Config struct {
	Client      redis.UniversalClient
	Prefix      string
	Group       string
	Consumer    string
	MaxAttempts int
	Block       time.Duration
	ClaimIdle   time.Duration
	RetryDelay  time.Duration
	JobTTL      time.Duration
	MaxLen      int64
}

// RedisQueue stores jobs as JSON records next to a stream of job IDs.
type RedisQueue struct {
	client      redis.UniversalClient
	prefix      string
	group       string
	consumer    string
	maxAttempts int
	block       time.Duration
	claimIdle   time.Duration
	retryDelay  time.Duration
	jobTTL      time.Duration
	maxLen      int64
	groupOnce   sync.Once
}

// releasePending drops the user's waiting marker only if it still names
// the job being started.
var releasePending = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func New(cfg Config) (*RedisQueue, error) {
	if cfg.Client == nil {
		return nil, errors.New("queue: redis client required")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		return nil, errors.New("queue: prefix required")
	}
	q := &RedisQueue{
		client:      cfg.Client,
		prefix:      prefix,
		group:       orDefault(strings.TrimSpace(cfg.Group), "workers"),
		consumer:    orDefault(strings.TrimSpace(cfg.Consumer), uuid.NewString()[:8]),
		maxAttempts: cfg.MaxAttempts,
		block:       cfg.Block,
		claimIdle:   cfg.ClaimIdle,
		retryDelay:  cfg.RetryDelay,
		jobTTL:      cfg.JobTTL,
		maxLen:      cfg.MaxLen,
	}
	if q.maxAttempts <= 0 {
		q.maxAttempts = 3
	}
	if q.block <= 0 {
		q.block = 5 * time.Second
	}
	if q.claimIdle <= 0 {
		q.claimIdle = 30 * time.Second
	}
	if q.retryDelay <= 0 {
		q.retryDelay = 2 * time.Second
	}
	if q.jobTTL <= 0 {
		q.jobTTL = 24 * time.Hour
	}
	if q.maxLen <= 0 {
		q.maxLen = 10000
	}
	return q, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (q *RedisQueue) streamKey() string            { return q.prefix + ":stream" }
func (q *RedisQueue) jobKey(id string) string       { return q.prefix + ":job:" + id }
func (q *RedisQueue) pendingKey(user string) string { return q.prefix + ":pending:" + user }

// Enqueue schedules a job for userID. If a job for the user is still
// waiting to start, that job is returned instead of adding another.
func (q *RedisQueue) Enqueue(ctx context.Context, userID string) (Job, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Job{}, errors.New("queue: user id required")
	}
	now := time.Now().UTC()
	job := Job{ID: uuid.NewString(), UserID: userID, Status: StatusQueued, CreatedAt: now, UpdatedAt: now}

	claimed, err := q.client.SetNX(ctx, q.pendingKey(userID), job.ID, q.jobTTL).Result()
	if err != nil {
		return Job{}, fmt.Errorf("queue: mark pending: %w", err)
	}
	if !claimed {
		existingID, err := q.client.Get(ctx, q.pendingKey(userID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return Job{}, fmt.Errorf("queue: read pending: %w", err)
		}
		if existing, ok, err := q.Job(ctx, existingID); err == nil && ok && existing.Status == StatusQueued {
			return existing, nil
		}
		// The marker outlived its job record; take it over.
		if err := q.client.Set(ctx, q.pendingKey(userID), job.ID, q.jobTTL).Err(); err != nil {
			return Job{}, fmt.Errorf("queue: mark pending: %w", err)
		}
	}

	raw, err := json.Marshal(job)
	if err != nil {
		return Job{}, err
	}
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.jobKey(job.ID), raw, q.jobTTL)
	pipe.XAdd(ctx, q.addArgs(job))
	if _, err := pipe.Exec(ctx); err != nil {
		return Job{}, fmt.Errorf("queue: enqueue: %w", err)
	}
	return job, nil
}

// Job returns the recorded state of a job.
func (q *RedisQueue) Job(ctx context.Context, id string) (Job, bool, error) {
	if strings.TrimSpace(id) == "" {
		return Job{}, false, nil
	}
	raw, err := q.client.Get(ctx, q.jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return Job{}, false, fmt.Errorf("queue: decode job %s: %w", id, err)
	}
	return job, true, nil
}

// Start launches concurrency consumers that run until ctx is done.
func (q *RedisQueue) Start(ctx context.Context, concurrency int, handler Handler) {
	q.ensureGroup(ctx)
	for i := range max(concurrency, 1) {
		go q.consume(ctx, fmt.Sprintf("%s-%d", q.consumer, i), handler)
	}
}

func (q *RedisQueue) ensureGroup(ctx context.Context) {
	q.groupOnce.Do(func() {
		err := q.client.XGroupCreateMkStream(ctx, q.streamKey(), q.group, "$").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			slog.Warn("queue group create failed", "stream", q.streamKey(), "group", q.group, "err", err)
		}
	})
}

func (q *RedisQueue) consume(ctx context.Context, consumer string, handler Handler) {
	for ctx.Err() == nil {
		// Messages left by a crashed consumer are picked up first.
		stale, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.streamKey(),
			Group:    q.group,
			Consumer: consumer,
			MinIdle:  q.claimIdle,
			Start:    "0-0",
			Count:    10,
		}).Result()
		if err == nil {
			for _, msg := range stale {
				q.process(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.streamKey(), ">"},
			Count:    10,
			Block:    q.block,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				slog.Warn("queue read failed", "stream", q.streamKey(), "consumer", consumer, "err", err)
				q.sleep(ctx, q.retryDelay)
			}
			continue
		}
		for _, s := range streams {
			for _, msg := range s.Messages {
				q.process(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisQueue) process(ctx context.Context, msg redis.XMessage, handler Handler) {
	jobID, _ := msg.Values["job_id"].(string)
	job, ok, err := q.Job(ctx, jobID)
	if err != nil || !ok {
		// Expired or unreadable records cannot be run.
		q.ack(ctx, msg.ID)
		return
	}
	if err := releasePending.Run(ctx, q.client, []string{q.pendingKey(job.UserID)}, job.ID).Err(); err != nil {
		slog.Warn("queue release pending failed", "job_id", job.ID, "err", err)
	}
	job.Attempts++
	job.Status = StatusRunning
	job.Error = ""
	q.record(ctx, &job)

	runErr := handler(ctx, job)
	switch {
	case runErr == nil:
		job.Status = StatusDone
		q.record(ctx, &job)
		q.ack(ctx, msg.ID)
	case job.Attempts >= q.maxAttempts:
		slog.Warn("queue job failed", "job_id", job.ID, "user_id", job.UserID, "attempts", job.Attempts, "err", runErr)
		job.Status = StatusFailed
		job.Error = runErr.Error()
		q.record(ctx, &job)
		q.ack(ctx, msg.ID)
	default:
		slog.Info("queue job retrying", "job_id", job.ID, "attempt", job.Attempts, "err", runErr)
		job.Status = StatusQueued
		job.Error = runErr.Error()
		q.record(ctx, &job)
		if !q.sleep(ctx, q.retryDelay) {
			// Left pending; another consumer claims it after ClaimIdle.
			return
		}
		if err := q.requeue(ctx, msg.ID, job); err != nil {
			slog.Warn("queue requeue failed", "job_id", job.ID, "err", err)
		}
	}
}

// record saves a status transition; a failed write is logged because the
// job record would otherwise be left showing its previous status.
func (q *RedisQueue) record(ctx context.Context, job *Job) {
	if err := q.save(ctx, job); err != nil {
		slog.Warn("queue save job failed", "job_id", job.ID, "status", job.Status, "err", err)
	}
}

func (q *RedisQueue) save(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.Set(ctx, q.jobKey(job.ID), raw, q.jobTTL).Err()
}

func (q *RedisQueue) addArgs(job Job) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: q.streamKey(),
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{"job_id": job.ID, "user_id": job.UserID},
	}
}

func (q *RedisQueue) ack(ctx context.Context, msgID string) {
	pipe := q.client.Pipeline()
	pipe.XAck(ctx, q.streamKey(), q.group, msgID)
	pipe.XDel(ctx, q.streamKey(), msgID)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("queue ack failed", "stream", q.streamKey(), "msg_id", msgID, "err", err)
	}
}

// requeue moves a job to the stream tail and acknowledges msgID in one
// transaction, so a failure leaves the original message pending.
func (q *RedisQueue) requeue(ctx context.Context, msgID string, job Job) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, q.addArgs(job))
	pipe.XAck(ctx, q.streamKey(), q.group, msgID)
	pipe.XDel(ctx, q.streamKey(), msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisQueue) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
