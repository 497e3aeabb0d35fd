package dto

import (
	"net/http"

	"github.com/freightdesk/backend/internal/domain/shared"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>

// General error codes
const (
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Domain error codes, one per shared.ErrorKind
const (
	// ErrCodeSequencing is used when an OTIF stage is requested out of order
	ErrCodeSequencing = "ERR_SEQUENCING"
	// ErrCodeValidation is used for rejected input and balance violations
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeConflict is used when a concurrent change won
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeUnauthorized is used when the caller identity is missing
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeRequestTooLarge is used when the body exceeds the limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeSequencing:   http.StatusUnprocessableEntity,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeInvalidState: http.StatusUnprocessableEntity,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeUnauthorized:    http.StatusUnauthorized,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
}

// kindCodes maps each domain error kind to its response code. Consistency
// errors are deliberately reported as internal.
var kindCodes = map[shared.ErrorKind]string{
	shared.KindSequencing:   ErrCodeSequencing,
	shared.KindValidation:   ErrCodeValidation,
	shared.KindConflict:     ErrCodeConflict,
	shared.KindConsistency:  ErrCodeInternal,
	shared.KindNotFound:     ErrCodeNotFound,
	shared.KindInvalidState: ErrCodeInvalidState,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// CodeForKind returns the response code for a domain error kind
func CodeForKind(kind shared.ErrorKind) string {
	if code, ok := kindCodes[kind]; ok {
		return code
	}
	return ErrCodeInternal
}
