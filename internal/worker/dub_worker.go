package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/client"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/ledger"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/store"
)

// TaskTypeDubLanguage is the asynq task type for one language's pipeline.
const TaskTypeDubLanguage = "dub:language"

// LanguageTaskPayload is the asynq payload for a language task.
type LanguageTaskPayload struct {
	JobID    string `json:"jobId"`
	Language string `json:"language"`
}

// NewLanguageTask builds the asynq task for one (job, language) pair.
func NewLanguageTask(jobID, language string) (*asynq.Task, error) {
	data, err := json.Marshal(LanguageTaskPayload{JobID: jobID, Language: language})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeDubLanguage, data), nil
}

// LanguageTaskID is the stable asynq task id, so re-enqueueing the same
// (job, language) pair during recovery is a no-op.
func LanguageTaskID(jobID, language string) string {
	return jobID + ":" + language
}

// Notifier pushes task and job transitions to connected clients. Push
// delivery is best-effort; the store remains the source of truth.
type Notifier interface {
	NotifyTaskState(jobID, language string, state model.TaskState, resultRef string)
	NotifyTaskError(jobID, language string, reason model.FailureReason, message string)
	NotifyJobState(jobID string, state model.JobState)
}

// DubWorker drives one language task through its stage sequence:
// transcribing, translating, synthesizing, mixing. Stages run strictly
// in order; a stage is retried in place on transient provider errors up
// to the retry budget, with exponential backoff between attempts.
type DubWorker struct {
	store       store.Store
	ledger      ledger.Ledger
	transcriber client.Transcriber
	translator  client.Translator
	synthesizer client.Synthesizer
	mixer       client.Mixer
	notifier    Notifier
	log         *zap.Logger
	retryBudget int
	backoffBase time.Duration
}

// NewDubWorker creates a new language task worker.
func NewDubWorker(
	st store.Store,
	lg ledger.Ledger,
	transcriber client.Transcriber,
	translator client.Translator,
	synthesizer client.Synthesizer,
	mixer client.Mixer,
	notifier Notifier,
	log *zap.Logger,
	retryBudget int,
	backoffBase time.Duration,
) *DubWorker {
	return &DubWorker{
		store:       st,
		ledger:      lg,
		transcriber: transcriber,
		translator:  translator,
		synthesizer: synthesizer,
		mixer:       mixer,
		notifier:    notifier,
		log:         log,
		retryBudget: retryBudget,
		backoffBase: backoffBase,
	}
}

// ProcessTask handles one dub:language task. Errors returned to asynq
// are infrastructure failures (store or ledger unavailable) and cause
// redelivery; pipeline outcomes, including failures, are persisted and
// return nil.
func (w *DubWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload LanguageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	job, err := w.store.GetJob(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", payload.JobID, err)
	}
	task, err := w.store.GetTask(ctx, payload.JobID, payload.Language)
	if err != nil {
		return fmt.Errorf("load task %s/%s: %w", payload.JobID, payload.Language, err)
	}

	// Redelivery after the task already finished is a no-op.
	if task.State.IsTerminal() {
		return nil
	}

	log := w.log.With(zap.String("jobId", job.ID), zap.String("language", task.Language))
	log.Info("language task started", zap.String("state", string(task.State)))

	return w.run(ctx, job, task, log)
}

// run resumes the task at its last-saved stage and drives it to a
// terminal state.
func (w *DubWorker) run(ctx context.Context, job *model.Job, task *model.LanguageTask, log *zap.Logger) error {
	stage := resumeStage(task)

	if task.StartedAt == nil {
		now := time.Now()
		task.StartedAt = &now
	}

	for stage != "" {
		canceled, err := w.jobCanceled(ctx, job.ID)
		if err != nil {
			return err
		}
		if canceled {
			return w.finalizeFailed(ctx, job, task, model.FailureReasonCanceled, "job canceled", log)
		}

		// Persist the stage we are entering before calling the provider,
		// so a crash mid-call resumes by retrying this same stage.
		task.State = model.TaskState(stage)
		if err := w.store.SaveTask(ctx, task); err != nil {
			return fmt.Errorf("save task at stage %s: %w", stage, err)
		}
		w.notifier.NotifyTaskState(job.ID, task.Language, task.State, "")
		if stage == model.StageTranscribe {
			if err := w.updateJobAggregate(ctx, job.ID, job.Languages); err != nil {
				return err
			}
		}

		outcome, err := w.runStage(ctx, job, task, stage, log)
		if err != nil {
			return err
		}
		if outcome != "" {
			return w.finalizeFailed(ctx, job, task, outcome, fmt.Sprintf("stage %s failed", stage), log)
		}

		stage = nextStageFor(job, stage)
	}

	return w.finalizeSucceeded(ctx, job, task, log)
}

// runStage executes one stage with bounded retries. It returns a
// non-empty failure reason for a terminal pipeline failure, or an error
// for infrastructure problems that should redeliver the task.
func (w *DubWorker) runStage(ctx context.Context, job *model.Job, task *model.LanguageTask, stage model.Stage, log *zap.Logger) (model.FailureReason, error) {
	for {
		err := w.invoke(ctx, job, task, stage)
		if err == nil {
			return "", nil
		}

		if client.IsPermanent(err) {
			log.Warn("permanent provider failure",
				zap.String("stage", string(stage)), zap.Error(err))
			return model.FailureReasonPermanent, nil
		}

		// Transient (or unclassified, treated as transient): spend one
		// attempt from the stage budget.
		failures := task.RecordAttempt(stage)
		if err := w.store.SaveTask(ctx, task); err != nil {
			return "", fmt.Errorf("save attempt count: %w", err)
		}
		if failures > w.retryBudget {
			log.Warn("retry budget exhausted",
				zap.String("stage", string(stage)), zap.Int("attempts", failures), zap.Error(err))
			return model.FailureReasonRetriesExhausted, nil
		}

		backoff := w.backoffBase * (1 << (failures - 1))
		log.Info("transient provider failure, retrying",
			zap.String("stage", string(stage)), zap.Int("attempt", failures),
			zap.Duration("backoff", backoff), zap.Error(err))

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}

		canceled, cerr := w.jobCanceled(ctx, job.ID)
		if cerr != nil {
			return "", cerr
		}
		if canceled {
			return model.FailureReasonCanceled, nil
		}
	}
}

// invoke performs the provider call for one stage and applies its output
// to the task.
func (w *DubWorker) invoke(ctx context.Context, job *model.Job, task *model.LanguageTask, stage model.Stage) error {
	switch stage {
	case model.StageTranscribe:
		text, err := w.transcriber.Transcribe(ctx, job.VoiceTrackRef)
		if err != nil {
			return err
		}
		task.TranscriptText = text
	case model.StageTranslate:
		text, err := w.translator.Translate(ctx, task.TranscriptText, task.Language)
		if err != nil {
			return err
		}
		task.TranslatedText = text
	case model.StageSynthesize:
		ref, err := w.synthesizer.Synthesize(ctx, task.TranslatedText, task.Language, "")
		if err != nil {
			return err
		}
		task.SynthRef = ref
	case model.StageMix:
		ref, err := w.mixer.Mix(ctx, task.SynthRef, job.BackgroundTrackRef)
		if err != nil {
			return err
		}
		task.ResultRef = ref
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
	return nil
}

// finalizeSucceeded settles the ledger and writes the terminal state.
// The ledger is finalized first: if the process dies before the task
// write, recovery replays the stage and the debit replay is a benign
// no-op.
func (w *DubWorker) finalizeSucceeded(ctx context.Context, job *model.Job, task *model.LanguageTask, log *zap.Logger) error {
	if task.ResultRef == "" {
		// No background track: the synthesized speech is the final output.
		task.ResultRef = task.SynthRef
	}

	if err := w.ledger.Debit(ctx, job.HoldID, task.Language); err != nil && !errors.Is(err, ledger.ErrAlreadyFinalized) {
		return fmt.Errorf("debit hold %s for %s: %w", job.HoldID, task.Language, err)
	}

	task.State = model.TaskStateSucceeded
	now := time.Now()
	task.CompletedAt = &now
	if err := w.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("save succeeded task: %w", err)
	}

	w.notifier.NotifyTaskState(job.ID, task.Language, task.State, task.ResultRef)
	log.Info("language task succeeded", zap.String("resultRef", task.ResultRef))

	return w.updateJobAggregate(ctx, job.ID, job.Languages)
}

// finalizeFailed releases the held credits and writes the terminal
// state. Ledger first, for the same crash-replay reason as success.
func (w *DubWorker) finalizeFailed(ctx context.Context, job *model.Job, task *model.LanguageTask, reason model.FailureReason, message string, log *zap.Logger) error {
	if err := w.ledger.Release(ctx, job.HoldID, task.Language); err != nil && !errors.Is(err, ledger.ErrAlreadyFinalized) {
		return fmt.Errorf("release hold %s for %s: %w", job.HoldID, task.Language, err)
	}

	task.State = model.TaskStateFailed
	task.FailureReason = reason
	now := time.Now()
	task.CompletedAt = &now
	if err := w.store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("save failed task: %w", err)
	}

	w.notifier.NotifyTaskError(job.ID, task.Language, reason, message)
	log.Warn("language task failed", zap.String("reason", string(reason)))

	return w.updateJobAggregate(ctx, job.ID, job.Languages)
}

// updateJobAggregate recomputes the aggregate job state from the current
// task states and persists it. When the job goes terminal it leaves the
// recovery index.
func (w *DubWorker) updateJobAggregate(ctx context.Context, jobID string, languages []string) error {
	tasks, err := w.store.GetTasks(ctx, jobID, languages)
	if err != nil {
		return err
	}
	derived := model.DeriveJobState(tasks)

	var previous model.JobState
	updated, err := w.store.UpdateJob(ctx, jobID, func(j *model.Job) error {
		previous = j.State
		if j.State.IsTerminal() {
			return nil
		}
		j.State = derived
		now := time.Now()
		if derived == model.JobStateRunning && j.StartedAt == nil {
			j.StartedAt = &now
		}
		if derived.IsTerminal() && j.CompletedAt == nil {
			j.CompletedAt = &now
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update job aggregate: %w", err)
	}

	if updated.State.IsTerminal() {
		if err := w.store.ClearIncomplete(ctx, jobID); err != nil {
			return err
		}
	}
	if updated.State != previous {
		w.notifier.NotifyJobState(jobID, updated.State)
	}
	return nil
}

func (w *DubWorker) jobCanceled(ctx context.Context, jobID string) (bool, error) {
	job, err := w.store.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.CancelRequested, nil
}

// resumeStage maps a saved task state to the stage to (re-)enter. A
// queued task starts at transcription; a task saved mid-stage retries
// that same stage.
func resumeStage(task *model.LanguageTask) model.Stage {
	switch task.State {
	case model.TaskStateTranscribing:
		return model.StageTranscribe
	case model.TaskStateTranslating:
		return model.StageTranslate
	case model.TaskStateSynthesizing:
		return model.StageSynthesize
	case model.TaskStateMixing:
		return model.StageMix
	default:
		return model.StageTranscribe
	}
}

// nextStageFor returns the stage after current, skipping mixing when the
// job has no background track.
func nextStageFor(job *model.Job, current model.Stage) model.Stage {
	next := model.NextStage(current)
	if next == model.StageMix && !job.HasBackground() {
		return ""
	}
	return next
}
