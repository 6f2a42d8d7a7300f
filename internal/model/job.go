package model

import "time"

// Job represents one user-submitted dubbing request. A job owns one
// LanguageTask per requested target language.
type Job struct {
	ID                 string     `json:"id"`
	AccountID          string     `json:"accountId"`
	VoiceTrackRef      string     `json:"voiceTrackRef"`
	BackgroundTrackRef string     `json:"backgroundTrackRef,omitempty"`
	Languages          []string   `json:"languages"`
	State              JobState   `json:"state"`
	HoldID             string     `json:"holdId"`
	PerLanguageCost    int64      `json:"perLanguageCost"`
	CancelRequested    bool       `json:"cancelRequested"`
	CreatedAt          time.Time  `json:"createdAt"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

// HasBackground reports whether a background track was supplied, which
// decides whether the mixing stage runs.
func (j *Job) HasBackground() bool {
	return j.BackgroundTrackRef != ""
}

// LanguageTask is the per-(job, language) pipeline unit. Intermediate
// outputs are persisted so a resumed task re-enters its saved stage with
// earlier stage results intact.
type LanguageTask struct {
	JobID          string         `json:"jobId"`
	Language       string         `json:"language"`
	State          TaskState      `json:"state"`
	Attempts       map[Stage]int  `json:"attempts"`
	TranscriptText string         `json:"transcriptText,omitempty"`
	TranslatedText string         `json:"translatedText,omitempty"`
	SynthRef       string         `json:"synthRef,omitempty"`
	ResultRef      string         `json:"resultRef,omitempty"`
	FailureReason  FailureReason  `json:"failureReason,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	StartedAt      *time.Time     `json:"startedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
}

// Attempt returns the recorded attempt count for a stage.
func (t *LanguageTask) Attempt(stage Stage) int {
	if t.Attempts == nil {
		return 0
	}
	return t.Attempts[stage]
}

// RecordAttempt increments and returns the attempt count for a stage.
func (t *LanguageTask) RecordAttempt(stage Stage) int {
	if t.Attempts == nil {
		t.Attempts = make(map[Stage]int)
	}
	t.Attempts[stage]++
	return t.Attempts[stage]
}

// DeriveJobState computes the aggregate job state from its task states.
// It is a pure function: the job is never marked terminal while any task
// is still in flight, and task arrival order never matters.
func DeriveJobState(tasks []*LanguageTask) JobState {
	if len(tasks) == 0 {
		return JobStatePending
	}

	var queued, succeeded, failed, canceled int
	for _, t := range tasks {
		switch {
		case t.State == TaskStateQueued:
			queued++
		case t.State == TaskStateSucceeded:
			succeeded++
		case t.State == TaskStateFailed && t.FailureReason == FailureReasonCanceled:
			failed++
			canceled++
		case t.State == TaskStateFailed:
			failed++
		}
	}

	switch {
	case queued == len(tasks):
		return JobStatePending
	case succeeded+failed < len(tasks):
		return JobStateRunning
	case succeeded == len(tasks):
		return JobStateCompleted
	case succeeded > 0:
		return JobStatePartiallyCompleted
	case canceled == len(tasks):
		return JobStateCanceled
	default:
		return JobStateFailed
	}
}
