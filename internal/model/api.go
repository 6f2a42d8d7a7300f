package model

import "time"

// SubmitJobRequest is the payload for POST /api/jobs. The job id is
// caller-supplied so resubmitting after a lost response is idempotent.
type SubmitJobRequest struct {
	JobID              string   `json:"jobId" validate:"required,min=8,max=64"`
	VoiceTrackRef      string   `json:"voiceTrackRef" validate:"required"`
	BackgroundTrackRef string   `json:"backgroundTrackRef,omitempty"`
	Languages          []string `json:"languages" validate:"required,min=1,dive,min=2,max=8"`
}

// SubmitJobResponse acknowledges an accepted job.
type SubmitJobResponse struct {
	JobID     string    `json:"jobId"`
	State     JobState  `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
}

// LanguageTaskView is the per-language slice of a job status response.
type LanguageTaskView struct {
	Language      string        `json:"language"`
	LanguageName  string        `json:"languageName"`
	State         TaskState     `json:"state"`
	ResultRef     string        `json:"resultRef,omitempty"`
	FailureReason FailureReason `json:"failureReason,omitempty"`
}

// JobStatusResponse is the polling client's view of a job.
type JobStatusResponse struct {
	JobID       string             `json:"jobId"`
	State       JobState           `json:"state"`
	Languages   []LanguageTaskView `json:"languages"`
	Total       int                `json:"totalLanguages"`
	Completed   int                `json:"completedLanguages"`
	CreatedAt   time.Time          `json:"createdAt"`
	StartedAt   *time.Time         `json:"startedAt,omitempty"`
	CompletedAt *time.Time         `json:"completedAt,omitempty"`
}

// CancelJobResponse acknowledges a cancellation request.
type CancelJobResponse struct {
	JobID string   `json:"jobId"`
	State JobState `json:"state"`
}

// UploadTargetRequest asks for presigned upload URLs for the tracks of a
// job about to be submitted.
type UploadTargetRequest struct {
	VoiceTrackName      string `json:"voiceTrackName" validate:"required"`
	BackgroundTrackName string `json:"backgroundTrackName,omitempty"`
	ContentType         string `json:"contentType" validate:"required"`
}

// UploadTarget pairs an opaque object ref with the URL to PUT it to.
type UploadTarget struct {
	Ref       string `json:"ref"`
	UploadURL string `json:"uploadUrl"`
}

// UploadTargetResponse carries the upload targets for one job.
type UploadTargetResponse struct {
	JobID           string        `json:"jobId"`
	VoiceTrack      UploadTarget  `json:"voiceTrack"`
	BackgroundTrack *UploadTarget `json:"backgroundTrack,omitempty"`
}

// BalanceResponse reports an account's credit balance.
type BalanceResponse struct {
	AccountID string `json:"accountId"`
	Balance   int64  `json:"balance"`
}

// ConfirmPurchaseRequest credits an account for a completed purchase.
// Payment capture happens upstream; this only records the grant.
type ConfirmPurchaseRequest struct {
	PaymentID string `json:"paymentId" validate:"required"`
	Plan      string `json:"plan" validate:"required,oneof=creator professional enterprise"`
}

// ConfirmPurchaseResponse reports the grant and the new balance.
type ConfirmPurchaseResponse struct {
	CreditsAdded int64 `json:"creditsAdded"`
	Balance      int64 `json:"balance"`
}
