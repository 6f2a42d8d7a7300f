// Package testsupport provides in-memory implementations of the store,
// ledger and provider interfaces for tests that should not require a
// running Redis or live provider credentials.
package testsupport

import (
	"context"
	"sync"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/store"
)

// MemoryStore is a map-backed store.Store with the same copy semantics
// as the Redis implementation: callers never share memory with stored
// records.
type MemoryStore struct {
	mu         sync.Mutex
	jobs       map[string]*model.Job
	tasks      map[string]*model.LanguageTask
	incomplete map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:       make(map[string]*model.Job),
		tasks:      make(map[string]*model.LanguageTask),
		incomplete: make(map[string]bool),
	}
}

func taskKey(jobID, language string) string {
	return jobID + ":" + language
}

func cloneJob(j *model.Job) *model.Job {
	c := *j
	c.Languages = append([]string(nil), j.Languages...)
	return &c
}

func cloneTask(t *model.LanguageTask) *model.LanguageTask {
	c := *t
	if t.Attempts != nil {
		c.Attempts = make(map[model.Stage]int, len(t.Attempts))
		for k, v := range t.Attempts {
			c.Attempts[k] = v
		}
	}
	return &c
}

func (s *MemoryStore) SaveJob(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneJob(job), nil
}

func (s *MemoryStore) UpdateJob(ctx context.Context, jobID string, fn func(*model.Job) error) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, store.ErrNotFound
	}
	updated := cloneJob(job)
	if err := fn(updated); err != nil {
		return nil, err
	}
	s.jobs[jobID] = cloneJob(updated)
	return updated, nil
}

func (s *MemoryStore) SaveTask(ctx context.Context, task *model.LanguageTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[taskKey(task.JobID, task.Language)] = cloneTask(task)
	return nil
}

func (s *MemoryStore) GetTask(ctx context.Context, jobID, language string) (*model.LanguageTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskKey(jobID, language)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneTask(task), nil
}

func (s *MemoryStore) GetTasks(ctx context.Context, jobID string, languages []string) ([]*model.LanguageTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]*model.LanguageTask, 0, len(languages))
	for _, lang := range languages {
		task, ok := s.tasks[taskKey(jobID, lang)]
		if !ok {
			return nil, store.ErrNotFound
		}
		tasks = append(tasks, cloneTask(task))
	}
	return tasks, nil
}

func (s *MemoryStore) ListIncomplete(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.incomplete))
	for id := range s.incomplete {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemoryStore) MarkIncomplete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incomplete[jobID] = true
	return nil
}

func (s *MemoryStore) ClearIncomplete(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.incomplete, jobID)
	return nil
}
