package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
)

const updateRetryAttempts = 5

// RedisStore keeps one JSON record per job and per (job, language) task.
// Tasks are row-per-language so concurrent runners never write the same
// key; only UpdateJob needs optimistic locking.
type RedisStore struct {
	rdb       *redis.Client
	log       *zap.Logger
	retention time.Duration
}

// NewRedisStore creates a store whose records expire after the retention
// window. Retention cleanup itself is left to Redis; nothing in the
// orchestrator deletes records.
func NewRedisStore(rdb *redis.Client, log *zap.Logger, retention time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, log: log, retention: retention}
}

func jobKey(jobID string) string            { return "dubjob:" + jobID }
func taskKey(jobID, language string) string { return "dubtask:" + jobID + ":" + language }

const incompleteKey = "dubjobs:incomplete"

func (s *RedisStore) SaveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, jobKey(job.ID), data, s.retention).Err()
}

func (s *RedisStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.rdb.Get(ctx, jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *RedisStore) UpdateJob(ctx context.Context, jobID string, fn func(*model.Job) error) (*model.Job, error) {
	var updated *model.Job

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, jobKey(jobID)).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return err
		}
		if err := fn(&job); err != nil {
			return err
		}
		out, err := json.Marshal(&job)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, jobKey(jobID), out, s.retention)
			return nil
		})
		if err == nil {
			updated = &job
		}
		return err
	}

	for i := 0; i < updateRetryAttempts; i++ {
		err := s.rdb.Watch(ctx, txn, jobKey(jobID))
		if err == nil {
			return updated, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("job update contention on %s", jobID)
}

func (s *RedisStore) SaveTask(ctx context.Context, task *model.LanguageTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, taskKey(task.JobID, task.Language), data, s.retention).Err()
}

func (s *RedisStore) GetTask(ctx context.Context, jobID, language string) (*model.LanguageTask, error) {
	data, err := s.rdb.Get(ctx, taskKey(jobID, language)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var task model.LanguageTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *RedisStore) GetTasks(ctx context.Context, jobID string, languages []string) ([]*model.LanguageTask, error) {
	tasks := make([]*model.LanguageTask, 0, len(languages))
	for _, lang := range languages {
		task, err := s.GetTask(ctx, jobID, lang)
		if err != nil {
			return nil, fmt.Errorf("load task %s/%s: %w", jobID, lang, err)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *RedisStore) ListIncomplete(ctx context.Context) ([]string, error) {
	return s.rdb.SMembers(ctx, incompleteKey).Result()
}

func (s *RedisStore) MarkIncomplete(ctx context.Context, jobID string) error {
	return s.rdb.SAdd(ctx, incompleteKey, jobID).Err()
}

func (s *RedisStore) ClearIncomplete(ctx context.Context, jobID string) error {
	return s.rdb.SRem(ctx, incompleteKey, jobID).Err()
}
