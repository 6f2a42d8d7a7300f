package testsupport

import (
	"context"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/iudofia2026/youtubedubber.com-sub004/internal/model"
)

// FakeTranscriber returns a fixed transcript, or delegates to Func when
// set so a test can script per-call behavior.
type FakeTranscriber struct {
	mu         sync.Mutex
	Transcript string
	Func       func(call int, audioRef string) (string, error)
	Calls      int
}

func (f *FakeTranscriber) Transcribe(ctx context.Context, audioRef string) (string, error) {
	f.mu.Lock()
	f.Calls++
	call := f.Calls
	f.mu.Unlock()
	if f.Func != nil {
		return f.Func(call, audioRef)
	}
	return f.Transcript, nil
}

func (f *FakeTranscriber) IsConfigured() bool { return true }

type FakeTranslator struct {
	mu    sync.Mutex
	Text  string
	Func  func(call int, text, targetLanguage string) (string, error)
	Calls int
}

func (f *FakeTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	f.mu.Lock()
	f.Calls++
	call := f.Calls
	f.mu.Unlock()
	if f.Func != nil {
		return f.Func(call, text, targetLanguage)
	}
	return f.Text, nil
}

func (f *FakeTranslator) IsConfigured() bool { return true }

type FakeSynthesizer struct {
	mu    sync.Mutex
	Ref   string
	Func  func(call int, text, targetLanguage string) (string, error)
	Calls int
}

func (f *FakeSynthesizer) Synthesize(ctx context.Context, text, targetLanguage, voiceProfile string) (string, error) {
	f.mu.Lock()
	f.Calls++
	call := f.Calls
	f.mu.Unlock()
	if f.Func != nil {
		return f.Func(call, text, targetLanguage)
	}
	return f.Ref, nil
}

func (f *FakeSynthesizer) IsConfigured() bool { return true }

type FakeMixer struct {
	mu    sync.Mutex
	Ref   string
	Func  func(call int, voiceRef, backgroundRef string) (string, error)
	Calls int
}

func (f *FakeMixer) Mix(ctx context.Context, voiceRef, backgroundRef string) (string, error) {
	f.mu.Lock()
	f.Calls++
	call := f.Calls
	f.mu.Unlock()
	if f.Func != nil {
		return f.Func(call, voiceRef, backgroundRef)
	}
	return f.Ref, nil
}

func (f *FakeMixer) IsConfigured() bool { return true }

// NoopNotifier satisfies the worker's notifier contract without a hub.
type NoopNotifier struct{}

func (NoopNotifier) NotifyTaskState(jobID, language string, state model.TaskState, resultRef string) {
}
func (NoopNotifier) NotifyTaskError(jobID, language string, reason model.FailureReason, message string) {
}
func (NoopNotifier) NotifyJobState(jobID string, state model.JobState) {}

// FakeEnqueuer records enqueued tasks and rejects duplicate payloads the
// way asynq rejects duplicate task ids.
type FakeEnqueuer struct {
	mu    sync.Mutex
	Tasks []*asynq.Task
	seen  map[string]bool
}

func (f *FakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	key := task.Type() + "|" + string(task.Payload())
	if f.seen[key] {
		return nil, asynq.ErrTaskIDConflict
	}
	f.seen[key] = true
	f.Tasks = append(f.Tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Payload: task.Payload()}, nil
}
