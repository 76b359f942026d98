package domain

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific error condition.
type ErrorCode string

const (
	ErrInvalidTTLCode ErrorCode = "InvalidTTL"          // Caller error: non-positive cache lifetime
	ErrTransport      ErrorCode = "TransportFailure"    // Network failure or timeout after all retries
	ErrUpstream       ErrorCode = "UpstreamError"       // Upstream returned a non-2xx status
	ErrBadRequest     ErrorCode = "BadRequest"          // HTTP 400, e.g. missing filter parameters
	ErrNotFound       ErrorCode = "NotFound"            // HTTP 404, unknown ticket or reference kind
	ErrInternal       ErrorCode = "InternalServerError" // HTTP 500
)

// ErrorResponse is the standard error format returned to portal clients as JSON.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// NewErrorResponse creates a new ErrorResponse struct.
func NewErrorResponse(code ErrorCode, message string, details string) ErrorResponse {
	return ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// WriteJSON sends an ErrorResponse as JSON with the given HTTP status code.
func (er ErrorResponse) WriteJSON(w http.ResponseWriter, httpStatusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	json.NewEncoder(w).Encode(er) // Best effort, error from Encode is not typically handled here.
}

// UpstreamStatusError reports a successfully received upstream response whose
// status the caller treated as a failure. It is never produced by the request
// gateway itself; services construct it when a mutation or fetch comes back
// with a non-2xx status.
type UpstreamStatusError struct {
	StatusCode int
	Body       []byte
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}
