package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/edutalk/api/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	activeJobsKey   = "jobs:active"
	finishedJobsKey = "jobs:finished" // sorted by completion time, unix millis
	maxTxAttempts   = 10
)

// RedisStore keeps jobs in Redis so several processes can share the table.
// Finished jobs expire after the retention period.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewRedisStore creates a Redis-backed job table.
func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

func (s *RedisStore) Create(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	created, err := s.client.SetNX(ctx, jobKey(job.ID), data, s.ttl(job)).Result()
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.index(ctx, pipe, job)
		return nil
	})
	if err != nil {
		// An unindexed record would linger without ever being counted or pruned.
		if delErr := s.client.Del(context.WithoutCancel(ctx), jobKey(job.ID)).Err(); delErr != nil {
			log.Error().Err(delErr).Str("job_id", job.ID).Msg("failed to remove unindexed job")
		}
		return fmt.Errorf("failed to index job: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.client.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(job *model.Job) error) (*model.Job, error) {
	key := jobKey(id)
	var updated *model.Job

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return notFound(id)
		}
		if err != nil {
			return fmt.Errorf("failed to get job: %w", err)
		}

		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}
		if err := fn(&job); err != nil {
			return err
		}

		out, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.ttl(&job))
			s.index(ctx, pipe, &job)
			return nil
		})
		if err == nil {
			updated = &job
		}
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("job %s: too many concurrent updates", id)
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, jobKey(id))
		pipe.SRem(ctx, activeJobsKey, id)
		pipe.ZRem(ctx, finishedJobsKey, id)
		return nil
	})
	return err
}

func (s *RedisStore) Stats(ctx context.Context) (model.JobStats, error) {
	cutoff := time.Now().Add(-s.retention).UnixMilli()

	pipe := s.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, finishedJobsKey, "-inf", strconv.FormatInt(cutoff, 10))
	active := pipe.SCard(ctx, activeJobsKey)
	finished := pipe.ZCard(ctx, finishedJobsKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.JobStats{}, fmt.Errorf("failed to read job stats: %w", err)
	}

	return model.JobStats{
		Active: int(active.Val()),
		Total:  int(active.Val() + finished.Val()),
	}, nil
}

// ttl keeps running jobs until they finish.
func (s *RedisStore) ttl(job *model.Job) time.Duration {
	if job.Status.IsTerminal() {
		return s.retention
	}
	return 0
}

func (s *RedisStore) index(ctx context.Context, pipe redis.Pipeliner, job *model.Job) {
	if !job.Status.IsTerminal() {
		pipe.SAdd(ctx, activeJobsKey, job.ID)
		return
	}
	finishedAt := time.Now()
	if job.CompletedAt != nil {
		finishedAt = *job.CompletedAt
	}
	pipe.SRem(ctx, activeJobsKey, job.ID)
	pipe.ZAdd(ctx, finishedJobsKey, redis.Z{Score: float64(finishedAt.UnixMilli()), Member: job.ID})
}
