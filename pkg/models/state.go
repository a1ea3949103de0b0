package models

import "time"

// Status is the lifecycle position of the orchestrator.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status ends a request.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// RequestState is what the presentation layer reads. Result is set only when
// Status is succeeded, Error only when it is failed.
type RequestState struct {
	Status    Status          `json:"status"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Backend   string          `json:"backend"`
	HasImage  bool            `json:"hasImage"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// ErrorResponse is the JSON body of every failed HTTP call.
type ErrorResponse struct {
	Error   string `json:"error"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
}
