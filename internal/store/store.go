package store

import (
	"context"
	"errors"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
)

// ErrNotFound is returned when a job or task key does not exist.
var ErrNotFound = errors.New("not found")

// Store is the durable source of truth for job and task state. Every
// transition is saved before it is considered to have happened; the
// incomplete index drives crash recovery.
type Store interface {
	SaveJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)

	// UpdateJob applies fn to the stored job atomically with respect to
	// concurrent UpdateJob calls for the same job.
	UpdateJob(ctx context.Context, jobID string, fn func(*model.Job) error) (*model.Job, error)

	SaveTask(ctx context.Context, task *model.LanguageTask) error
	GetTask(ctx context.Context, jobID, language string) (*model.LanguageTask, error)
	GetTasks(ctx context.Context, jobID string, languages []string) ([]*model.LanguageTask, error)

	// ListIncomplete returns the ids of jobs with any non-terminal task.
	ListIncomplete(ctx context.Context) ([]string, error)
	MarkIncomplete(ctx context.Context, jobID string) error
	ClearIncomplete(ctx context.Context, jobID string) error
}
