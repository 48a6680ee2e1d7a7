package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/Susanoo/utils"
	"github.com/redis/go-redis/v9"
)

// ErrJobNotFound is returned when a job id has no backing hash
var ErrJobNotFound = errors.New("job not found")

// finishedJobTTL bounds how long terminal jobs stay queryable
const finishedJobTTL = 24 * time.Hour

// QueueStats is a point-in-time snapshot of one queue's depth and outcome
// counters.
type QueueStats struct {
	Queued     int64 `json:"queued"`
	Processing int64 `json:"processing"`
	Succeeded  int64 `json:"succeeded"`
	Retried    int64 `json:"retried"`
	Exhausted  int64 `json:"exhausted"`
}

// Store is the durable job store. Jobs are enqueued with a run-at timestamp
// (immediate or delayed), claimed exactly once by a worker, and either
// completed terminally or pushed back with a new run-at for retry.
type Store interface {
	// Enqueue persists the job and makes it runnable at runAt
	Enqueue(ctx context.Context, job *Job, runAt time.Time) error
	// Claim pops at most limit due jobs off the queue and moves them to the
	// processing set. Each returned job is owned exclusively by the caller.
	Claim(ctx context.Context, queue QueueName, limit int) ([]*Job, error)
	// Retry releases a claimed job back onto the queue to run at runAt
	Retry(ctx context.Context, job *Job, runAt time.Time) error
	// Complete marks a claimed job terminal (succeeded or exhausted)
	Complete(ctx context.Context, job *Job, state JobState) error
	// JobByID loads a job hash, including terminal jobs still within TTL
	JobByID(ctx context.Context, id string) (*Job, error)
	// Stats snapshots queue depth and outcome counters
	Stats(ctx context.Context, queue QueueName) (*QueueStats, error)
	// ReleaseStuck returns jobs claimed before deadline back to the queue
	// and reports how many were released. Covers workers that died mid-job.
	ReleaseStuck(ctx context.Context, queue QueueName, deadline time.Time) (int, error)
}

// RedisStore implements Store on top of Redis primitives: one hash per job,
// a sorted set per queue scored by run-at, and a sorted set of in-flight
// jobs scored by claim time.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a job store with the given key prefix
// (e.g. "susanoo").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "susanoo"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) jobKey(id string) string {
	return fmt.Sprintf("%s:job:%s", s.prefix, id)
}

func (s *RedisStore) queueKey(queue QueueName) string {
	return fmt.Sprintf("%s:queue:%s", s.prefix, queue)
}

func (s *RedisStore) processingKey(queue QueueName) string {
	return fmt.Sprintf("%s:processing:%s", s.prefix, queue)
}

func (s *RedisStore) statsKey(queue QueueName) string {
	return fmt.Sprintf("%s:stats:%s", s.prefix, queue)
}

// Enqueue persists the job hash and schedules it on the queue's sorted set
func (s *RedisStore) Enqueue(ctx context.Context, job *Job, runAt time.Time) error {
	job.State = JobStateQueued

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.jobKey(job.ID), job.toMap())
	pipe.Persist(ctx, s.jobKey(job.ID))
	pipe.ZAdd(ctx, s.queueKey(job.Queue), redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: job.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}

	return nil
}

// Claim pops due jobs. Ownership is decided by ZRem: under concurrent
// workers only the one whose ZRem removed the member proceeds with the job.
func (s *RedisStore) Claim(ctx context.Context, queue QueueName, limit int) ([]*Job, error) {
	now := utils.UTCNow()

	ids, err := s.client.ZRangeByScore(ctx, s.queueKey(queue), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue %s: %w", queue, err)
	}

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		removed, err := s.client.ZRem(ctx, s.queueKey(queue), id).Result()
		if err != nil {
			return jobs, fmt.Errorf("failed to claim job %s: %w", id, err)
		}
		if removed == 0 {
			// lost the race to another worker
			continue
		}

		fields, err := s.client.HGetAll(ctx, s.jobKey(id)).Result()
		if err != nil {
			return jobs, fmt.Errorf("failed to load job %s: %w", id, err)
		}
		job, err := jobFromMap(fields)
		if err != nil {
			// orphaned queue member, drop it
			continue
		}

		job.State = JobStateDispatching
		pipe := s.client.TxPipeline()
		pipe.HSet(ctx, s.jobKey(id), "state", string(JobStateDispatching))
		pipe.ZAdd(ctx, s.processingKey(queue), redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: id,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return jobs, fmt.Errorf("failed to mark job %s dispatching: %w", id, err)
		}

		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Retry pushes the claimed job back with its incremented attempt count
func (s *RedisStore) Retry(ctx context.Context, job *Job, runAt time.Time) error {
	job.State = JobStateRetrying

	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, s.processingKey(job.Queue), job.ID)
	pipe.HSet(ctx, s.jobKey(job.ID), map[string]any{
		"state":       string(JobStateRetrying),
		"attempts":    job.Attempts,
		"method_hint": string(job.MethodHint),
	})
	pipe.ZAdd(ctx, s.queueKey(job.Queue), redis.Z{
		Score:  float64(runAt.UnixMilli()),
		Member: job.ID,
	})
	pipe.HIncrBy(ctx, s.statsKey(job.Queue), "retried", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to retry job %s: %w", job.ID, err)
	}

	return nil
}

// Complete marks the job terminal and lets its hash expire
func (s *RedisStore) Complete(ctx context.Context, job *Job, state JobState) error {
	job.State = state

	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, s.processingKey(job.Queue), job.ID)
	pipe.HSet(ctx, s.jobKey(job.ID), map[string]any{
		"state":    string(state),
		"attempts": job.Attempts,
	})
	pipe.Expire(ctx, s.jobKey(job.ID), finishedJobTTL)
	pipe.HIncrBy(ctx, s.statsKey(job.Queue), string(state), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}

	return nil
}

// JobByID loads a job hash by id
func (s *RedisStore) JobByID(ctx context.Context, id string) (*Job, error) {
	fields, err := s.client.HGetAll(ctx, s.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}
	return jobFromMap(fields)
}

// Stats snapshots the queue
func (s *RedisStore) Stats(ctx context.Context, queue QueueName) (*QueueStats, error) {
	pipe := s.client.TxPipeline()
	queuedCmd := pipe.ZCard(ctx, s.queueKey(queue))
	processingCmd := pipe.ZCard(ctx, s.processingKey(queue))
	countersCmd := pipe.HGetAll(ctx, s.statsKey(queue))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read stats for queue %s: %w", queue, err)
	}

	counters := countersCmd.Val()
	return &QueueStats{
		Queued:     queuedCmd.Val(),
		Processing: processingCmd.Val(),
		Succeeded:  parseCounter(counters[string(JobStateSucceeded)]),
		Retried:    parseCounter(counters["retried"]),
		Exhausted:  parseCounter(counters[string(JobStateExhausted)]),
	}, nil
}

// ReleaseStuck rescues jobs whose worker died mid-dispatch. Anything still
// in the processing set past deadline is pushed back to run immediately.
func (s *RedisStore) ReleaseStuck(ctx context.Context, queue QueueName, deadline time.Time) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.processingKey(queue), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", deadline.UnixMilli()),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan processing set for queue %s: %w", queue, err)
	}

	released := 0
	now := utils.UTCNow()
	for _, id := range ids {
		removed, err := s.client.ZRem(ctx, s.processingKey(queue), id).Result()
		if err != nil {
			return released, fmt.Errorf("failed to release job %s: %w", id, err)
		}
		if removed == 0 {
			continue
		}

		pipe := s.client.TxPipeline()
		pipe.HSet(ctx, s.jobKey(id), "state", string(JobStateQueued))
		pipe.ZAdd(ctx, s.queueKey(queue), redis.Z{
			Score:  float64(now.UnixMilli()),
			Member: id,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			return released, fmt.Errorf("failed to requeue stuck job %s: %w", id, err)
		}
		released++
	}

	return released, nil
}

func parseCounter(raw string) int64 {
	var n int64
	_, _ = fmt.Sscanf(raw, "%d", &n)
	return n
}
