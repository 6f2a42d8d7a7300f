package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/ledger"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/store"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/worker"
)

const dubQueue = "dub"

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrInvalidRequest = errors.New("invalid request")
)

// Enqueuer is the slice of asynq.Client the scheduler needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// JobService is the job scheduler: it validates submissions, reserves
// credits before creating any task, fans a job out into one queued task
// per language, and answers status and cancellation requests. The asynq
// server's bounded concurrency is the worker pool.
type JobService struct {
	store           store.Store
	ledger          ledger.Ledger
	enqueuer        Enqueuer
	log             *zap.Logger
	perLanguageCost int64
}

func NewJobService(st store.Store, lg ledger.Ledger, enq Enqueuer, log *zap.Logger, perLanguageCost int64) *JobService {
	return &JobService{
		store:           st,
		ledger:          lg,
		enqueuer:        enq,
		log:             log,
		perLanguageCost: perLanguageCost,
	}
}

// SubmitJob accepts a dubbing request. Submission is idempotent on the
// job id: resubmitting returns the existing job instead of creating a
// second one. Credits are held before any task row exists; on
// insufficient credits nothing is written.
func (s *JobService) SubmitJob(ctx context.Context, accountID string, req *model.SubmitJobRequest) (*model.SubmitJobResponse, error) {
	languages := dedupeLanguages(req.Languages)
	if len(languages) == 0 {
		return nil, fmt.Errorf("%w: no target languages", ErrInvalidRequest)
	}
	for _, lang := range languages {
		if !model.IsSupportedLanguage(lang) {
			return nil, fmt.Errorf("%w: unsupported language %q", ErrInvalidRequest, lang)
		}
	}
	if req.VoiceTrackRef == "" {
		return nil, fmt.Errorf("%w: voice track is required", ErrInvalidRequest)
	}

	// Idempotent resubmit. A non-terminal job is re-driven through the
	// recovery path so a submission that died half-written gets its
	// missing task rows recreated and requeued.
	existing, err := s.store.GetJob(ctx, req.JobID)
	if err == nil {
		if existing.AccountID != accountID {
			return nil, fmt.Errorf("%w: job id already in use", ErrInvalidRequest)
		}
		if !existing.State.IsTerminal() {
			if err := s.recoverJob(ctx, existing.ID); err != nil {
				return nil, err
			}
		}
		return &model.SubmitJobResponse{
			JobID:     existing.ID,
			State:     existing.State,
			CreatedAt: existing.CreatedAt,
		}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	holdID, err := s.ledger.Hold(ctx, accountID, req.JobID, s.perLanguageCost, languages)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job := &model.Job{
		ID:                 req.JobID,
		AccountID:          accountID,
		VoiceTrackRef:      req.VoiceTrackRef,
		BackgroundTrackRef: req.BackgroundTrackRef,
		Languages:          languages,
		State:              model.JobStatePending,
		HoldID:             holdID,
		PerLanguageCost:    s.perLanguageCost,
		CreatedAt:          now,
	}
	if err := s.store.SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	if err := s.store.MarkIncomplete(ctx, job.ID); err != nil {
		return nil, err
	}

	for _, lang := range languages {
		task := &model.LanguageTask{
			JobID:     job.ID,
			Language:  lang,
			State:     model.TaskStateQueued,
			CreatedAt: now,
		}
		if err := s.store.SaveTask(ctx, task); err != nil {
			return nil, fmt.Errorf("save task %s: %w", lang, err)
		}
		if err := s.enqueueLanguage(ctx, job.ID, lang); err != nil {
			return nil, err
		}
	}

	s.log.Info("job accepted",
		zap.String("jobId", job.ID),
		zap.String("accountId", accountID),
		zap.Strings("languages", languages),
		zap.String("holdId", holdID))

	return &model.SubmitJobResponse{
		JobID:     job.ID,
		State:     job.State,
		CreatedAt: job.CreatedAt,
	}, nil
}

// CancelJob requests cancellation of a job. Still-queued tasks are
// finalized immediately with their credits released; running tasks
// observe the cancel flag between stages and discard in-flight results.
// Canceling an already terminal job is a no-op.
func (s *JobService) CancelJob(ctx context.Context, accountID, jobID string) (*model.CancelJobResponse, error) {
	job, err := s.loadOwnedJob(ctx, accountID, jobID)
	if err != nil {
		return nil, err
	}

	if job.State.IsTerminal() {
		return &model.CancelJobResponse{JobID: job.ID, State: job.State}, nil
	}

	if _, err := s.store.UpdateJob(ctx, jobID, func(j *model.Job) error {
		j.CancelRequested = true
		return nil
	}); err != nil {
		return nil, err
	}

	tasks, err := s.store.GetTasks(ctx, jobID, job.Languages)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, task := range tasks {
		if task.State != model.TaskStateQueued {
			continue
		}
		if err := s.ledger.Release(ctx, job.HoldID, task.Language); err != nil && !errors.Is(err, ledger.ErrAlreadyFinalized) {
			return nil, fmt.Errorf("release %s: %w", task.Language, err)
		}
		task.State = model.TaskStateFailed
		task.FailureReason = model.FailureReasonCanceled
		task.CompletedAt = &now
		if err := s.store.SaveTask(ctx, task); err != nil {
			return nil, err
		}
	}

	tasks, err = s.store.GetTasks(ctx, jobID, job.Languages)
	if err != nil {
		return nil, err
	}
	derived := model.DeriveJobState(tasks)
	updated, err := s.store.UpdateJob(ctx, jobID, func(j *model.Job) error {
		if j.State.IsTerminal() {
			return nil
		}
		j.State = derived
		if derived.IsTerminal() && j.CompletedAt == nil {
			j.CompletedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated.State.IsTerminal() {
		if err := s.store.ClearIncomplete(ctx, jobID); err != nil {
			return nil, err
		}
	}

	s.log.Info("job cancellation requested",
		zap.String("jobId", jobID), zap.String("state", string(updated.State)))

	return &model.CancelJobResponse{JobID: jobID, State: updated.State}, nil
}

// JobStatus is the polling client's projection of the store; it carries
// no business logic.
func (s *JobService) JobStatus(ctx context.Context, accountID, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.loadOwnedJob(ctx, accountID, jobID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.GetTasks(ctx, jobID, job.Languages)
	if err != nil {
		return nil, err
	}

	views := make([]model.LanguageTaskView, 0, len(tasks))
	completed := 0
	for _, task := range tasks {
		if task.State == model.TaskStateSucceeded {
			completed++
		}
		views = append(views, model.LanguageTaskView{
			Language:      task.Language,
			LanguageName:  model.SupportedLanguages[task.Language],
			State:         task.State,
			ResultRef:     task.ResultRef,
			FailureReason: task.FailureReason,
		})
	}

	return &model.JobStatusResponse{
		JobID:       job.ID,
		State:       job.State,
		Languages:   views,
		Total:       len(tasks),
		Completed:   completed,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}, nil
}

// RecoverIncompleteJobs re-enqueues every non-terminal task after a
// restart. Stable task ids make duplicate enqueues no-ops, and each
// runner resumes at its last-saved stage. Failures are per job: one
// broken record never blocks recovery of the others.
func (s *JobService) RecoverIncompleteJobs(ctx context.Context) error {
	jobIDs, err := s.store.ListIncomplete(ctx)
	if err != nil {
		return err
	}

	for _, jobID := range jobIDs {
		if err := s.recoverJob(ctx, jobID); err != nil {
			s.log.Error("failed to recover job",
				zap.String("jobId", jobID), zap.Error(err))
		}
	}
	return nil
}

// recoverJob brings one job back to a runnable state. A language whose
// task row is missing (the submission died between the job write and the
// task write) is recreated as queued; its credits are covered by the
// job's hold.
func (s *JobService) recoverJob(ctx context.Context, jobID string) error {
	job, err := s.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		// Job record expired; drop the index entry.
		return s.store.ClearIncomplete(ctx, jobID)
	}
	if err != nil {
		return err
	}

	requeued := 0
	for _, lang := range job.Languages {
		task, err := s.store.GetTask(ctx, jobID, lang)
		if errors.Is(err, store.ErrNotFound) {
			task = &model.LanguageTask{
				JobID:     jobID,
				Language:  lang,
				State:     model.TaskStateQueued,
				CreatedAt: time.Now(),
			}
			if err := s.store.SaveTask(ctx, task); err != nil {
				return fmt.Errorf("recreate task %s: %w", lang, err)
			}
		} else if err != nil {
			return err
		}
		if task.State.IsTerminal() {
			continue
		}
		if err := s.enqueueLanguage(ctx, jobID, lang); err != nil {
			return err
		}
		requeued++
	}
	if requeued > 0 {
		s.log.Info("recovered incomplete job",
			zap.String("jobId", jobID), zap.Int("tasks", requeued))
	}
	return nil
}

func (s *JobService) enqueueLanguage(ctx context.Context, jobID, language string) error {
	task, err := worker.NewLanguageTask(jobID, language)
	if err != nil {
		return err
	}
	_, err = s.enqueuer.EnqueueContext(ctx, task,
		asynq.Queue(dubQueue),
		asynq.TaskID(worker.LanguageTaskID(jobID, language)),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue %s/%s: %w", jobID, language, err)
	}
	return nil
}

func (s *JobService) loadOwnedJob(ctx context.Context, accountID, jobID string) (*model.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	if job.AccountID != accountID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// dedupeLanguages preserves the caller's order while dropping repeats.
func dedupeLanguages(languages []string) []string {
	seen := make(map[string]bool, len(languages))
	out := make([]string, 0, len(languages))
	for _, lang := range languages {
		if lang == "" || seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	return out
}
