// Package errors defines the structured API error taxonomy the HTTP
// layer renders. Engine sentinel errors are mapped onto stable app
// codes here; nothing below this package throws uncatchable faults.
package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response.
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details.
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// App codes for the licensing engine. These are the contract the host
// UI switches on; renaming one is a breaking change.
const (
	CodeInvalidFormat       = "INVALID_FORMAT"
	CodeNotFound            = "CODE_NOT_FOUND"
	CodeAlreadyRedeemed     = "ALREADY_REDEEMED"
	CodeLockedOut           = "LOCKED_OUT"
	CodeAuthFailed          = "AUTH_FAILED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeGenerationExhausted = "GENERATION_EXHAUSTED"
	CodeIntegrityViolation  = "INTEGRITY_VIOLATION"
	CodeStorageUnavailable  = "STORAGE_UNAVAILABLE"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInternal            = "INTERNAL_SERVER_ERROR"
)

// Predefined error responses for common scenarios.
var (
	ErrInvalidRequest = New(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")

	ErrInvalidCodeFormat = New(http.StatusBadRequest, CodeInvalidFormat,
		"That code doesn't look right. Check it and try again")

	ErrCodeNotFound = New(http.StatusNotFound, CodeNotFound,
		"We couldn't find that code")

	ErrAlreadyRedeemed = New(http.StatusConflict, CodeAlreadyRedeemed,
		"This code has already been used on this device")

	ErrUnauthorized = New(http.StatusUnauthorized, CodeUnauthorized,
		"Admin session required")

	ErrAuthFailed = New(http.StatusUnauthorized, CodeAuthFailed,
		"Incorrect PIN")

	ErrGenerationExhausted = New(http.StatusInternalServerError, CodeGenerationExhausted,
		"Code generation failed, please retry")

	ErrStorageUnavailable = New(http.StatusServiceUnavailable, CodeStorageUnavailable,
		"Storage is temporarily unavailable, please try again")

	ErrInternalServer = New(http.StatusInternalServerError, CodeInternal,
		"Internal server error")
)

// LockedOut builds the countdown error for a throttled namespace.
func LockedOut(remainingSeconds int) *APIError {
	return NewWithDetails(http.StatusTooManyRequests, CodeLockedOut,
		fmt.Sprintf("Too many attempts. Try again in %d seconds", remainingSeconds),
		map[string]int{"remaining_seconds": remainingSeconds},
	)
}

// InvalidRequestWithError creates an invalid request error with details.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ErrorResponse represents a standard error envelope.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse wraps an APIError in the standard envelope.
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Success: false, Error: err}
}

// Render implements the render.Renderer interface.
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}
