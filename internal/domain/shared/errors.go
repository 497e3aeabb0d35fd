package shared

import "errors"

// ErrorKind classifies a DomainError so callers can react without
// matching on individual codes.
type ErrorKind string

const (
	// KindSequencing is returned when a requested OTIF stage is not reachable
	// from the current stage.
	KindSequencing ErrorKind = "SEQUENCING"
	// KindValidation covers bad input, exceeded balances and currency mismatches.
	KindValidation ErrorKind = "VALIDATION"
	// KindConflict is returned when a concurrent change won the race.
	KindConflict ErrorKind = "CONFLICT"
	// KindConsistency signals a broken ledger invariant and is never retried.
	KindConsistency ErrorKind = "CONSISTENCY"
	// KindNotFound is returned for unknown shipments, invoices and attempts.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindInvalidState is returned when the aggregate status forbids the operation.
	KindInvalidState ErrorKind = "INVALID_STATE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches another DomainError carrying the same code, so sentinel values
// keep working with errors.Is after being copied or re-created.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new validation-kind domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    KindValidation,
	}
}

// NewSequencingError creates an error for an out-of-order stage request
func NewSequencingError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindSequencing}
}

// NewValidationError creates an error for rejected input
func NewValidationError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindValidation}
}

// NewConflictError creates an error for a lost concurrent update
func NewConflictError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindConflict}
}

// NewConsistencyError creates an error for a violated ledger invariant
func NewConsistencyError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindConsistency}
}

// NewInvalidStateError creates an error for an operation the aggregate's
// current status does not allow
func NewInvalidStateError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Kind: KindInvalidState}
}

// KindOf returns the kind of the first DomainError in err's chain, or an
// empty kind when err carries none.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsSequencing reports whether err is a sequencing error
func IsSequencing(err error) bool { return KindOf(err) == KindSequencing }

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsConflict reports whether err is a conflict error
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsConsistency reports whether err is a consistency error
func IsConsistency(err error) bool { return KindOf(err) == KindConsistency }

// Common domain errors
var (
	ErrNotFound            = &DomainError{Code: "NOT_FOUND", Message: "Resource not found", Kind: KindNotFound}
	ErrAlreadyExists       = NewConflictError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewConflictError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewInvalidStateError("INVALID_STATE", "Operation not allowed in current state")
	ErrLockNotObtained     = NewConflictError("LOCK_NOT_OBTAINED", "Resource is being modified by another request")
)
