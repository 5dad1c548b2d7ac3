// Package ccerrors defines the Command Center's error taxonomy and the
// retry/backoff helpers used by background loops that must never let a
// single failure take down the whole process.
package ccerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ValidationError indicates malformed input, an unknown event_type, or a
// missing required field. Surfaced to callers as HTTP 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation: %s", e.Message)
}

// NewValidation builds a ValidationError.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UnknownType reports that event_type is absent from the schema registry.
func UnknownType(eventType string) *ValidationError {
	return &ValidationError{Field: "event_type", Message: fmt.Sprintf("unknown event_type %q", eventType)}
}

// MissingField reports that a schema-required field is absent from the payload.
func MissingField(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "required field missing"}
}

// NotFoundError indicates a rule, delivery, or event could not be located.
// Surfaced as HTTP 404.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// NewNotFound builds a NotFoundError.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ForbiddenError indicates the caller's role does not permit the operation.
// Surfaced as HTTP 403.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return "forbidden: " + e.Reason
}

// NewForbidden builds a ForbiddenError.
func NewForbidden(reason string) *ForbiddenError {
	return &ForbiddenError{Reason: reason}
}

// StorageError wraps a backing-store failure. Surfaced as HTTP 500 and
// always logged; ingestion never swallows it silently.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError, or returns nil if err is nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// TransientDeliveryError represents a webhook non-2xx response, timeout, or
// transport-level failure. Internal only — it drives dispatcher backoff and
// is never returned across the HTTP boundary.
type TransientDeliveryError struct {
	StatusCode int // 0 for timeouts/transport errors
	Message    string
}

func (e *TransientDeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("delivery failed: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("delivery failed: %s", e.Message)
}

// NewTransientDelivery builds a TransientDeliveryError.
func NewTransientDelivery(statusCode int, message string) *TransientDeliveryError {
	return &TransientDeliveryError{StatusCode: statusCode, Message: message}
}

// FatalStartupError indicates the database is inaccessible or migrations
// failed. The process must exit non-zero.
type FatalStartupError struct {
	Err error
}

func (e *FatalStartupError) Error() string {
	return fmt.Sprintf("fatal startup error: %v", e.Err)
}

func (e *FatalStartupError) Unwrap() error { return e.Err }

// Fatal wraps err as a FatalStartupError, or returns nil if err is nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalStartupError{Err: err}
}

// HTTPStatus maps a taxonomy error to the status code the API should
// respond with. Errors outside the taxonomy map to 500.
func HTTPStatus(err error) int {
	var (
		valErr  *ValidationError
		nfErr   *NotFoundError
		fbdnErr *ForbiddenError
	)
	switch {
	case errors.As(err, &valErr):
		return http.StatusBadRequest
	case errors.As(err, &nfErr):
		return http.StatusNotFound
	case errors.As(err, &fbdnErr):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
