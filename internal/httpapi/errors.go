package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/weldcfg/configurator/internal/httpapi/middleware"
)

// ErrorCode enumerates the transport layer's structured error kinds,
// mirrored from the teacher's internal/api/errors envelope.
type ErrorCode string

const (
	ErrCodeValidation  ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound    ErrorCode = "NOT_FOUND"
	ErrCodeRateLimited ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeUpstream    ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
)

func (c ErrorCode) statusCode() int {
	switch c {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeUpstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// APIError is the envelope every non-2xx response body carries.
type APIError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// ErrorResponse wraps an APIError under an "error" key, the shape the
// teacher's handlers emit.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// WriteError writes a structured error response, tagging it with the
// request ID the RequestID middleware attached to ctx.
func WriteError(w http.ResponseWriter, r *http.Request, code ErrorCode, message string) {
	apiErr := APIError{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetRequestID(r.Context()),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code.statusCode())
	json.NewEncoder(w).Encode(ErrorResponse{Error: apiErr})
}
