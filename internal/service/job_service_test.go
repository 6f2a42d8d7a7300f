package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/ledger"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/store"
	"github.com/iudofia2026/youtubedubber.com-sub004/internal/testsupport"
)

type serviceFixture struct {
	store    *testsupport.MemoryStore
	ledger   *testsupport.MemoryLedger
	enqueuer *testsupport.FakeEnqueuer
	service  *JobService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		store:    testsupport.NewMemoryStore(),
		ledger:   testsupport.NewMemoryLedger(),
		enqueuer: &testsupport.FakeEnqueuer{},
	}
	f.service = NewJobService(f.store, f.ledger, f.enqueuer, zap.NewNop(), 10)
	f.ledger.SetBalance("acct-1", 100)
	return f
}

func submitRequest(jobID string, languages ...string) *model.SubmitJobRequest {
	return &model.SubmitJobRequest{
		JobID:         jobID,
		VoiceTrackRef: "https://cdn.example.com/voice.mp3",
		Languages:     languages,
	}
}

func TestSubmitJobCreatesTasksAndHold(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	resp, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-submit-1", "es", "fr"))
	if err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}
	if resp.State != model.JobStatePending {
		t.Errorf("state = %s, want pending", resp.State)
	}

	job, err := f.store.GetJob(ctx, "job-submit-1")
	if err != nil {
		t.Fatalf("job not saved: %v", err)
	}
	if job.HoldID == "" {
		t.Error("expected a hold id on the job")
	}

	tasks, err := f.store.GetTasks(ctx, "job-submit-1", []string{"es", "fr"})
	if err != nil {
		t.Fatalf("tasks not saved: %v", err)
	}
	for _, task := range tasks {
		if task.State != model.TaskStateQueued {
			t.Errorf("task %s state = %s, want queued", task.Language, task.State)
		}
	}

	if len(f.enqueuer.Tasks) != 2 {
		t.Errorf("enqueued = %d, want 2", len(f.enqueuer.Tasks))
	}

	// Both languages held up front.
	balance, _ := f.ledger.Balance(ctx, "acct-1")
	if balance != 80 {
		t.Errorf("balance = %d, want 80", balance)
	}

	incomplete, _ := f.store.ListIncomplete(ctx)
	if len(incomplete) != 1 || incomplete[0] != "job-submit-1" {
		t.Errorf("incomplete index = %v, want [job-submit-1]", incomplete)
	}
}

func TestSubmitJobValidation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-empty-1")); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("no languages: err = %v, want ErrInvalidRequest", err)
	}

	if _, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-bad-1", "xx")); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("unsupported language: err = %v, want ErrInvalidRequest", err)
	}

	req := submitRequest("job-novoice-1", "es")
	req.VoiceTrackRef = ""
	if _, err := f.service.SubmitJob(ctx, "acct-1", req); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("missing voice track: err = %v, want ErrInvalidRequest", err)
	}

	// Nothing written for any rejected submission.
	if _, err := f.store.GetJob(ctx, "job-bad-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("rejected submission left a job record: %v", err)
	}
}

func TestSubmitJobDedupesLanguages(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-dupe-1", "es", "es", "fr")); err != nil {
		t.Fatalf("SubmitJob failed: %v", err)
	}

	job, _ := f.store.GetJob(ctx, "job-dupe-1")
	if len(job.Languages) != 2 {
		t.Errorf("languages = %v, want [es fr]", job.Languages)
	}
	balance, _ := f.ledger.Balance(ctx, "acct-1")
	if balance != 80 {
		t.Errorf("balance = %d, want 80 (duplicate language must not be charged)", balance)
	}
}

func TestSubmitJobInsufficientCredits(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.ledger.SetBalance("acct-1", 15)

	_, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-poor-1", "es", "fr"))
	if !errors.Is(err, ledger.ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	// No job, no tasks, no enqueues, balance untouched.
	if _, err := f.store.GetJob(ctx, "job-poor-1"); !errors.Is(err, store.ErrNotFound) {
		t.Error("job record written despite failed hold")
	}
	if len(f.enqueuer.Tasks) != 0 {
		t.Errorf("enqueued = %d, want 0", len(f.enqueuer.Tasks))
	}
	balance, _ := f.ledger.Balance(ctx, "acct-1")
	if balance != 15 {
		t.Errorf("balance = %d, want 15", balance)
	}
}

func TestSubmitJobIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-idem-1", "es"))
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	second, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-idem-1", "es"))
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if second.JobID != first.JobID {
		t.Errorf("resubmit job id = %s, want %s", second.JobID, first.JobID)
	}

	// Exactly one hold, one set of tasks.
	entries, _ := f.ledger.Entries(ctx, "acct-1")
	holds := 0
	for _, e := range entries {
		if e.Kind == ledger.EntryHold {
			holds++
		}
	}
	if holds != 1 {
		t.Errorf("holds = %d, want 1", holds)
	}
	if len(f.enqueuer.Tasks) != 1 {
		t.Errorf("enqueued = %d, want 1", len(f.enqueuer.Tasks))
	}
}

func TestSubmitJobIDOwnedByOtherAccount(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	f.ledger.SetBalance("acct-2", 100)

	if _, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-shared-1", "es")); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if _, err := f.service.SubmitJob(ctx, "acct-2", submitRequest("job-shared-1", "es")); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("cross-account reuse: err = %v, want ErrInvalidRequest", err)
	}
}

func TestCancelPendingJobReleasesEverything(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-cancel-2", "es", "fr")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	resp, err := f.service.CancelJob(ctx, "acct-1", "job-cancel-2")
	if err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
	if resp.State != model.JobStateCanceled {
		t.Errorf("state = %s, want canceled", resp.State)
	}

	tasks, _ := f.store.GetTasks(ctx, "job-cancel-2", []string{"es", "fr"})
	for _, task := range tasks {
		if task.State != model.TaskStateFailed || task.FailureReason != model.FailureReasonCanceled {
			t.Errorf("task %s = %s/%s, want failed/canceled", task.Language, task.State, task.FailureReason)
		}
	}

	balance, _ := f.ledger.Balance(ctx, "acct-1")
	if balance != 100 {
		t.Errorf("balance = %d, want full refund of 100", balance)
	}

	incomplete, _ := f.store.ListIncomplete(ctx)
	if len(incomplete) != 0 {
		t.Errorf("incomplete index = %v, want empty", incomplete)
	}

	// Canceling again is a no-op.
	again, err := f.service.CancelJob(ctx, "acct-1", "job-cancel-2")
	if err != nil {
		t.Fatalf("second cancel failed: %v", err)
	}
	if again.State != model.JobStateCanceled {
		t.Errorf("second cancel state = %s, want canceled", again.State)
	}
}

func TestJobStatusOwnership(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-status-1", "es")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	status, err := f.service.JobStatus(ctx, "acct-1", "job-status-1")
	if err != nil {
		t.Fatalf("JobStatus failed: %v", err)
	}
	if status.Total != 1 || status.Completed != 0 {
		t.Errorf("counts = %d/%d, want 1/0", status.Completed, status.Total)
	}
	if len(status.Languages) != 1 || status.Languages[0].Language != "es" {
		t.Errorf("unexpected language views: %+v", status.Languages)
	}

	// Another account sees not-found, never forbidden.
	if _, err := f.service.JobStatus(ctx, "acct-2", "job-status-1"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("foreign status: err = %v, want ErrJobNotFound", err)
	}
	if _, err := f.service.JobStatus(ctx, "acct-1", "job-missing-1"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("missing job: err = %v, want ErrJobNotFound", err)
	}
}

func TestRecoverIncompleteJobs(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-recover-1", "es", "fr")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// One language finished before the crash.
	task, _ := f.store.GetTask(ctx, "job-recover-1", "es")
	task.State = model.TaskStateSucceeded
	now := time.Now()
	task.CompletedAt = &now
	if err := f.store.SaveTask(ctx, task); err != nil {
		t.Fatalf("save task: %v", err)
	}

	// A fresh enqueuer stands in for the restarted process.
	f.enqueuer = &testsupport.FakeEnqueuer{}
	f.service.enqueuer = f.enqueuer

	if err := f.service.RecoverIncompleteJobs(ctx); err != nil {
		t.Fatalf("RecoverIncompleteJobs failed: %v", err)
	}

	if len(f.enqueuer.Tasks) != 1 {
		t.Fatalf("re-enqueued = %d, want 1 (only the unfinished language)", len(f.enqueuer.Tasks))
	}
}

func TestRecoverHealsJobWithMissingTaskRows(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// Healthy incomplete job.
	if _, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-healthy-1", "es")); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// Job whose submission died after the job write but before any task
	// row was written.
	holdID, err := f.ledger.Hold(ctx, "acct-1", "job-torn-1", 10, []string{"de", "ja"})
	if err != nil {
		t.Fatalf("hold failed: %v", err)
	}
	torn := &model.Job{
		ID:              "job-torn-1",
		AccountID:       "acct-1",
		VoiceTrackRef:   "https://cdn.example.com/voice.mp3",
		Languages:       []string{"de", "ja"},
		State:           model.JobStatePending,
		HoldID:          holdID,
		PerLanguageCost: 10,
		CreatedAt:       time.Now(),
	}
	if err := f.store.SaveJob(ctx, torn); err != nil {
		t.Fatalf("save job: %v", err)
	}
	if err := f.store.MarkIncomplete(ctx, "job-torn-1"); err != nil {
		t.Fatalf("mark incomplete: %v", err)
	}

	f.enqueuer = &testsupport.FakeEnqueuer{}
	f.service.enqueuer = f.enqueuer

	if err := f.service.RecoverIncompleteJobs(ctx); err != nil {
		t.Fatalf("RecoverIncompleteJobs failed: %v", err)
	}

	// The torn job got its task rows recreated as queued.
	tasks, err := f.store.GetTasks(ctx, "job-torn-1", []string{"de", "ja"})
	if err != nil {
		t.Fatalf("task rows not recreated: %v", err)
	}
	for _, task := range tasks {
		if task.State != model.TaskStateQueued {
			t.Errorf("task %s state = %s, want queued", task.Language, task.State)
		}
	}

	// All three unfinished languages were re-enqueued; the torn job did
	// not block the healthy one.
	if len(f.enqueuer.Tasks) != 3 {
		t.Errorf("re-enqueued = %d, want 3", len(f.enqueuer.Tasks))
	}
}

func TestResubmitHealsHalfWrittenJob(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// A submission that died after writing the job and the first task
	// row but before the second.
	holdID, err := f.ledger.Hold(ctx, "acct-1", "job-resub-1", 10, []string{"es", "fr"})
	if err != nil {
		t.Fatalf("hold failed: %v", err)
	}
	job := &model.Job{
		ID:              "job-resub-1",
		AccountID:       "acct-1",
		VoiceTrackRef:   "https://cdn.example.com/voice.mp3",
		Languages:       []string{"es", "fr"},
		State:           model.JobStatePending,
		HoldID:          holdID,
		PerLanguageCost: 10,
		CreatedAt:       time.Now(),
	}
	if err := f.store.SaveJob(ctx, job); err != nil {
		t.Fatalf("save job: %v", err)
	}
	if err := f.store.MarkIncomplete(ctx, "job-resub-1"); err != nil {
		t.Fatalf("mark incomplete: %v", err)
	}
	if err := f.store.SaveTask(ctx, &model.LanguageTask{
		JobID:     "job-resub-1",
		Language:  "es",
		State:     model.TaskStateQueued,
		CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("save task: %v", err)
	}

	resp, err := f.service.SubmitJob(ctx, "acct-1", submitRequest("job-resub-1", "es", "fr"))
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if resp.JobID != "job-resub-1" {
		t.Errorf("resubmit job id = %s, want job-resub-1", resp.JobID)
	}

	// The missing row is back and queued, and both languages enqueued.
	task, err := f.store.GetTask(ctx, "job-resub-1", "fr")
	if err != nil {
		t.Fatalf("task row not recreated: %v", err)
	}
	if task.State != model.TaskStateQueued {
		t.Errorf("task state = %s, want queued", task.State)
	}
	if len(f.enqueuer.Tasks) != 2 {
		t.Errorf("enqueued = %d, want 2", len(f.enqueuer.Tasks))
	}
}

func TestRecoverDropsExpiredJobs(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// Index entry whose job record has expired.
	if err := f.store.MarkIncomplete(ctx, "job-gone-1"); err != nil {
		t.Fatalf("mark incomplete: %v", err)
	}

	if err := f.service.RecoverIncompleteJobs(ctx); err != nil {
		t.Fatalf("RecoverIncompleteJobs failed: %v", err)
	}

	incomplete, _ := f.store.ListIncomplete(ctx)
	if len(incomplete) != 0 {
		t.Errorf("incomplete index = %v, want empty", incomplete)
	}
}
