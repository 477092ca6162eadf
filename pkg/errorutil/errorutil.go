package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the service. Workflow codes are part of the
// engine's contract and are matched by callers via the Is* helpers.
const (
	CodeIllegalTransition      = "ILLEGAL_TRANSITION"
	CodeMissingJustification   = "MISSING_JUSTIFICATION"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeImmutableRecord        = "IMMUTABLE_RECORD"
	CodeIntegrationFailed      = "INTEGRATION_FAILED"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeForbidden              = "FORBIDDEN"
	CodeConflict               = "CONFLICT"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewIllegalTransition reports a transition absent from the status catalog.
func NewIllegalTransition(from, to string) error {
	return NewDomainError(CodeIllegalTransition,
		fmt.Sprintf("transition from %s to %s is not permitted", from, to),
		http.StatusUnprocessableEntity,
		map[string]any{"from": from, "to": to})
}

// NewMissingJustification reports a cancellation without a reason.
func NewMissingJustification() error {
	return NewDomainError(CodeMissingJustification,
		"justification is required to cancel a ticket",
		http.StatusUnprocessableEntity, nil)
}

// NewConcurrentModification reports a lost optimistic-lock race.
func NewConcurrentModification(ticketID string) error {
	return NewDomainError(CodeConcurrentModification,
		"ticket was modified concurrently",
		http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

// NewImmutableRecordViolation reports an attempt to mutate an
// append-only record. This is a programmer error and always fatal to
// the call.
func NewImmutableRecordViolation(entity string) error {
	return NewDomainError(CodeImmutableRecord,
		fmt.Sprintf("%s records cannot be updated or deleted", entity),
		http.StatusInternalServerError,
		map[string]any{"entity": entity})
}

// NewIntegrationFailed wraps a single delivery attempt failure.
func NewIntegrationFailed(err error) error {
	return &DomainError{
		Code:       CodeIntegrationFailed,
		Message:    "delivery to external authority failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

func IsIllegalTransition(err error) bool      { return HasCode(err, CodeIllegalTransition) }
func IsMissingJustification(err error) bool   { return HasCode(err, CodeMissingJustification) }
func IsConcurrentModification(err error) bool { return HasCode(err, CodeConcurrentModification) }
func IsImmutableRecord(err error) bool        { return HasCode(err, CodeImmutableRecord) }
func IsNotFound(err error) bool               { return HasCode(err, CodeNotFound) }

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	return ToDomainError(err)
}
