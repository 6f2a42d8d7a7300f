package model

// WebSocket message types
const (
	WSMessageTypeStage    = "stage"
	WSMessageTypeJobState = "jobState"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSStageMessage announces a language task entering a new stage or a
// terminal state.
type WSStageMessage struct {
	Type      string    `json:"type"`
	JobID     string    `json:"jobId"`
	Language  string    `json:"language"`
	State     TaskState `json:"state"`
	ResultRef string    `json:"resultRef,omitempty"`
}

// WSJobStateMessage announces a change of the aggregate job state.
type WSJobStateMessage struct {
	Type  string   `json:"type"`
	JobID string   `json:"jobId"`
	State JobState `json:"state"`
}

// WSErrorMessage announces a per-language failure.
type WSErrorMessage struct {
	Type     string        `json:"type"`
	JobID    string        `json:"jobId"`
	Language string        `json:"language"`
	Reason   FailureReason `json:"reason"`
	Message  string        `json:"message"`
}
