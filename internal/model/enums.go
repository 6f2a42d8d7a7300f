package model

// JobState is the aggregate state of a dubbing job.
type JobState string

const (
	JobStatePending            JobState = "pending"
	JobStateRunning            JobState = "running"
	JobStatePartiallyCompleted JobState = "partially_completed"
	JobStateCompleted          JobState = "completed"
	JobStateFailed             JobState = "failed"
	JobStateCanceled           JobState = "canceled"
)

// IsTerminal reports whether no further transitions are possible for the job.
func (s JobState) IsTerminal() bool {
	switch s {
	case JobStatePartiallyCompleted, JobStateCompleted, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}

// TaskState is the state of a single per-language task.
type TaskState string

const (
	TaskStateQueued       TaskState = "queued"
	TaskStateTranscribing TaskState = "transcribing"
	TaskStateTranslating  TaskState = "translating"
	TaskStateSynthesizing TaskState = "synthesizing"
	TaskStateMixing       TaskState = "mixing"
	TaskStateSucceeded    TaskState = "succeeded"
	TaskStateFailed       TaskState = "failed"
)

// IsTerminal reports whether the task has finished, successfully or not.
func (s TaskState) IsTerminal() bool {
	return s == TaskStateSucceeded || s == TaskStateFailed
}

// Stage identifies one pipeline stage of a language task. The task state
// while a stage runs is the stage name itself, so Stage and TaskState
// share values for the four processing stages.
type Stage string

const (
	StageTranscribe Stage = "transcribing"
	StageTranslate  Stage = "translating"
	StageSynthesize Stage = "synthesizing"
	StageMix        Stage = "mixing"
)

// NextStage returns the stage after s, or "" when s is the last stage.
func NextStage(s Stage) Stage {
	switch s {
	case StageTranscribe:
		return StageTranslate
	case StageTranslate:
		return StageSynthesize
	case StageSynthesize:
		return StageMix
	}
	return ""
}

// FailureReason is the stable error kind recorded on a failed task.
type FailureReason string

const (
	FailureReasonPermanent        FailureReason = "permanent"
	FailureReasonRetriesExhausted FailureReason = "retries_exhausted"
	FailureReasonCanceled         FailureReason = "canceled"
)

// SupportedLanguages are the target language codes the pipeline accepts.
var SupportedLanguages = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"ja": "Japanese",
	"zh": "Chinese",
	"ko": "Korean",
	"ar": "Arabic",
	"hi": "Hindi",
}

// IsSupportedLanguage reports whether code is a known target language.
func IsSupportedLanguage(code string) bool {
	_, ok := SupportedLanguages[code]
	return ok
}
