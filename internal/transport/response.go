// Package transport contains the HTTP router, middleware chain and request
// handlers of the list view API.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/pitabwire/backoffice/internal/observability"
	"github.com/pitabwire/backoffice/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:         http.StatusBadRequest,
	model.ErrNotFound:           http.StatusNotFound,
	model.ErrConflict:           http.StatusConflict,
	model.ErrValidationError:    http.StatusUnprocessableEntity,
	model.ErrSessionExpired:     http.StatusGone,
	model.ErrInternalError:      http.StatusInternalServerError,
	model.ErrBackendUnavailable: http.StatusBadGateway,
	model.ErrBackendTimeout:     http.StatusGatewayTimeout,
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes err as an ErrorEnvelope with the matching HTTP status.
// Errors that do not wrap an *ErrorEnvelope become a generic 500 and are
// logged, since their text is not shown to the caller. The envelope carries
// the request's trace ID when one is known.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var env *model.ErrorEnvelope
	if !errors.As(err, &env) {
		observability.RequestLogger(r.Context(), zap.NewNop()).Error("unhandled error", zap.Error(err))
		env = model.NewInternalError()
	}

	if rctx := model.RequestContextFrom(r.Context()); rctx != nil && rctx.TraceID != "" && env.TraceID == "" {
		env = env.WithTraceID(rctx.TraceID)
	}

	status, ok := statusForCode[env.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, errorResponse{Error: env})
}

type errorResponse struct {
	Error *model.ErrorEnvelope `json:"error"`
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, r *http.Request, msg string) {
	WriteError(w, r, model.NewNotFoundError(msg))
}

// WriteBadRequest writes a 400 error response.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	WriteError(w, r, model.NewBadRequestError(msg))
}
