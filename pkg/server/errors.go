package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"mercator-hq/reportkeeper/pkg/report"
	"mercator-hq/reportkeeper/pkg/telemetry/logging"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// badRequestError marks client input errors.
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

// notFoundError is a 404 for something other than a report.
type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string { return e.msg }

func errorBody(r *http.Request, typ, msg string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{
		Type:      typ,
		Message:   msg,
		RequestID: logging.GetRequestID(r.Context()),
	}}
}

// statusFor maps the lifecycle error taxonomy to HTTP.
func statusFor(err error) (int, string, string) {
	var bad *badRequestError
	var notFound *notFoundError
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, "invalid_request", bad.msg
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found", notFound.msg
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "invalid_request", "request body too large"
	case errors.Is(err, report.ErrNotFound):
		return http.StatusNotFound, "not_found", "report not found"
	case errors.Is(err, report.ErrForbidden):
		return http.StatusForbidden, "forbidden", "not allowed"
	case errors.Is(err, report.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition", err.Error()
	case errors.Is(err, report.ErrRecoveryWindowExpired):
		return http.StatusGone, "recovery_window_expired", "no longer recoverable"
	case errors.Is(err, report.ErrNotDeleted):
		return http.StatusConflict, "not_deleted", "report is not deleted"
	case errors.Is(err, report.ErrAlreadyExists):
		return http.StatusConflict, "already_exists", "report already exists"
	case errors.Is(err, report.ErrConditionFailed):
		return http.StatusConflict, "conflict", "report was modified concurrently; retry"
	case errors.Is(err, report.ErrRunInProgress):
		return http.StatusConflict, "run_in_progress", "a reclamation run is already in progress"
	default:
		return http.StatusInternalServerError, "internal_error", "An internal error occurred. Please try again later."
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, typ, msg := statusFor(err)
	if code >= 500 {
		s.logger.ErrorContext(r.Context(), "request failed", "error", err)
	}
	writeJSON(w, code, errorBody(r, typ, msg))
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
