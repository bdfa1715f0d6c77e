package model

import "fmt"

// Error codes carried in ErrorEnvelope.Code. Transport maps each to an HTTP
// status.
const (
	ErrBadRequest         = "BAD_REQUEST"
	ErrNotFound           = "NOT_FOUND"
	ErrConflict           = "CONFLICT"
	ErrValidationError    = "VALIDATION_ERROR"
	ErrSessionExpired     = "SESSION_EXPIRED"
	ErrInternalError      = "INTERNAL_ERROR"
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"
	ErrBackendTimeout     = "BACKEND_TIMEOUT"
)

// ErrorEnvelope is the JSON error body returned by every endpoint, and the
// error type passed between packages so that a failure keeps its code on the
// way out.
type ErrorEnvelope struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
	TraceID string       `json:"trace_id,omitempty"`
}

func (e *ErrorEnvelope) Error() string {
	return e.Code + ": " + e.Message
}

// WithTraceID returns a copy of e stamped with traceID. e itself is left
// alone so shared envelopes stay clean.
func (e *ErrorEnvelope) WithTraceID(traceID string) *ErrorEnvelope {
	out := *e
	out.TraceID = traceID
	return &out
}

// FieldError is one entry of a VALIDATION_ERROR's details.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func envelope(code, msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: code, Message: msg}
}

func NewBadRequestError(msg string) *ErrorEnvelope { return envelope(ErrBadRequest, msg) }

func NewNotFoundError(msg string) *ErrorEnvelope { return envelope(ErrNotFound, msg) }

func NewConflictError(msg string) *ErrorEnvelope { return envelope(ErrConflict, msg) }

// NewValidationError reports invalid input field by field.
func NewValidationError(details []FieldError) *ErrorEnvelope {
	e := envelope(ErrValidationError, "One or more fields are invalid")
	e.Details = details
	return e
}

// NewSessionExpiredError is returned for any session id the store does not
// hold, whether it expired, was closed or never existed.
func NewSessionExpiredError(sessionID string) *ErrorEnvelope {
	return envelope(ErrSessionExpired, fmt.Sprintf("filter session %q has expired or does not exist", sessionID))
}

// NewInternalError hides the cause from the caller.
func NewInternalError() *ErrorEnvelope {
	return envelope(ErrInternalError, "An unexpected error occurred")
}

func NewBackendUnavailableError() *ErrorEnvelope {
	return envelope(ErrBackendUnavailable, "The backend service is temporarily unavailable")
}

func NewBackendTimeoutError() *ErrorEnvelope {
	return envelope(ErrBackendTimeout, "The backend service did not respond in time")
}
