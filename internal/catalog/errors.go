package catalog

import (
	"errors"
	"fmt"
)

// ErrNotFound is matched by every NotFoundError through errors.Is.
var ErrNotFound = errors.New("not found")

// ValidationError reports a malformed or out-of-enum provider record.
// It is scoped to a single record: callers log it and move on.
type ValidationError struct {
	SetCode string
	CardID  string
	Field   string
	Value   string
	Reason  string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.CardID != "" || e.SetCode != "" {
		msg += fmt.Sprintf(" (set %s, card %s)", e.SetCode, e.CardID)
	}
	return msg
}

// NotFoundError reports that a requested set or card does not exist.
type NotFoundError struct {
	Kind string
	Key  string
}

// Error implements the error interface for NotFoundError.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Key)
}

// Is lets errors.Is(err, ErrNotFound) match any NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// SourceUnavailableError reports that the upstream catalog source could not
// produce a stream. It aborts the current ingestion run.
type SourceUnavailableError struct {
	Op  string
	Err error
}

// Error implements the error interface for SourceUnavailableError.
func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("catalog source unavailable during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsSourceUnavailable reports whether err is (or wraps) a SourceUnavailableError.
func IsSourceUnavailable(err error) bool {
	var se *SourceUnavailableError
	return errors.As(err, &se)
}
