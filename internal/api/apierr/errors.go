package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/presencechat/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeInvalidLimit        = "INVALID_LIMIT"
	CodeNameTaken           = "NAME_TAKEN"
	CodeParticipantNotFound = "PARTICIPANT_NOT_FOUND"
	CodeUnknownSender       = "UNKNOWN_SENDER"
	CodeStoreUnavailable    = "STORE_UNAVAILABLE"
	CodeInternalError       = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status err maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var details []string
	var vErr *model.ValidationError
	if errors.As(err, &vErr) {
		details = vErr.Details
	}

	// Map model errors; InvalidLimit before the ErrInvalid it also matches
	switch {
	case errors.Is(err, model.ErrInvalidLimit):
		return &httpError{http.StatusUnprocessableEntity, APIError{CodeInvalidLimit, "Limit must be a positive integer", details}}
	case errors.Is(err, model.ErrInvalid):
		return &httpError{http.StatusUnprocessableEntity, APIError{CodeValidationFailed, "Validation failed", details}}
	case errors.Is(err, model.ErrParticipantExists):
		return &httpError{http.StatusConflict, APIError{CodeNameTaken, "Name already in use", nil}}
	case errors.Is(err, model.ErrParticipantNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeParticipantNotFound, "Participant not found", nil}}
	case errors.Is(err, model.ErrUnknownSender):
		return &httpError{http.StatusUnprocessableEntity, APIError{CodeUnknownSender, "Sender is not a registered participant", nil}}
	case errors.Is(err, model.ErrStoreUnavailable):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeStoreUnavailable, "Store unavailable", nil}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error", nil}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message, nil}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error", nil}}
}
