package repository

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates the requested post, comment or user doesn't exist
	ErrNotFound = errors.New("record not found")

	// ErrForbidden indicates an owner-gated write whose ownership condition failed.
	// The record may or may not exist; callers must not try to tell the two apart.
	ErrForbidden = errors.New("not owner or record missing")

	// ErrConflict indicates a record with the same key already exists
	ErrConflict = errors.New("record already exists")

	// ErrStorageUnavailable wraps transport failures and unacknowledged writes
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError is returned when input breaks a length, pattern or category rule.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// IsValidation reports whether err carries field-level validation detail.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRejected reports whether err is an expected not-found or not-owner outcome.
func IsRejected(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}
