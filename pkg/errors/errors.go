package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Code is the machine readable reason returned to clients
type Code string

const (
	CodeCredentialInvalid    Code = "CredentialInvalid"
	CodeCredentialNotFound   Code = "CredentialNotFound"
	CodeSignatureInvalid     Code = "SignatureInvalid"
	CodeOperatorUnauthorized Code = "OperatorUnauthorized"
	CodeMissingFields        Code = "MissingFields"
	CodeInvalidRequest       Code = "InvalidRequest"
	CodePromotionNotFound    Code = "PromotionNotFound"
	CodePromotionNotActive   Code = "PromotionNotActive"
	CodePromotionNotStarted  Code = "PromotionNotStarted"
	CodePromotionEnded       Code = "PromotionEnded"
	CodeEntryCapReached      Code = "EntryCapReached"
	CodeOriginCapReached     Code = "OriginCapReached"
	CodeRateLimited          Code = "RateLimited"
	CodeStorageError         Code = "StorageError"
	CodeDuplicateEntry       Code = "DuplicateEntry"
	CodeNoEligibleEntries    Code = "NoEligibleEntries"
	CodeWinnerAlreadyDrawn   Code = "WinnerAlreadyDrawn"
	CodeDrawInProgress       Code = "DrawInProgress"
	CodeNotFound             Code = "NotFound"
	CodePayloadTooLarge      Code = "PayloadTooLarge"
	CodeInternal             Code = "InternalError"
)

var statusByCode = map[Code]int{
	CodeCredentialInvalid:    http.StatusUnauthorized,
	CodeSignatureInvalid:     http.StatusUnauthorized,
	CodeOperatorUnauthorized: http.StatusUnauthorized,
	CodeCredentialNotFound:   http.StatusNotFound,
	CodeMissingFields:        http.StatusBadRequest,
	CodeInvalidRequest:       http.StatusBadRequest,
	CodePromotionNotFound:    http.StatusNotFound,
	CodePromotionNotActive:   http.StatusBadRequest,
	CodePromotionNotStarted:  http.StatusBadRequest,
	CodePromotionEnded:       http.StatusBadRequest,
	CodeEntryCapReached:      http.StatusBadRequest,
	CodeOriginCapReached:     http.StatusBadRequest,
	CodeRateLimited:          http.StatusTooManyRequests,
	CodeStorageError:         http.StatusServiceUnavailable,
	CodeDuplicateEntry:       http.StatusConflict,
	CodeNoEligibleEntries:    http.StatusUnprocessableEntity,
	CodeWinnerAlreadyDrawn:   http.StatusConflict,
	CodeDrawInProgress:       http.StatusConflict,
	CodeNotFound:             http.StatusNotFound,
	CodePayloadTooLarge:      http.StatusRequestEntityTooLarge,
	CodeInternal:             http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for a code
func StatusFor(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AppError represents a structured application error
type AppError struct {
	Code       Code                   `json:"error"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"-"`
	Internal   error                  `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Internal.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// New creates an AppError with the status implied by code
func New(code Code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: StatusFor(code),
	}
}

// Wrap creates an AppError that keeps the underlying cause for logging
func Wrap(code Code, message string, internal error) *AppError {
	e := New(code, message)
	e.Internal = internal
	return e
}

// WithDetails attaches details to the error body
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details map[string]interface{}) *AppError {
	return New(CodeInvalidRequest, message).WithDetails(details)
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, internal error) *AppError {
	return Wrap(CodeInternal, message, internal)
}

// NewRateLimitError creates a new rate limit error
func NewRateLimitError(message string) *AppError {
	return New(CodeRateLimited, message)
}

// ErrorResponse represents the JSON error response
type ErrorResponse struct {
	Error   Code                   `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Write renders e as the JSON error body
func Write(w http.ResponseWriter, e *AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
