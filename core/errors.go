package core

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned (wrapped) by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned by services when the acting identity may not perform an operation.
	ErrForbidden = errors.New("permission denied")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

func (err ValidationError) Unwrap() error { return err.Err }

// ConflictError reports a unique constraint violation on Field.
type ConflictError struct {
	Field string
	Err   error
}

func NewConflictError(field string, err error) error {
	return &ConflictError{Field: field, Err: err}
}

func (err ConflictError) Error() string {
	if err.Err == nil {
		return err.Field + " already exists"
	}
	return err.Err.Error()
}

func (err ConflictError) Unwrap() error { return err.Err }

// IsConflict reports whether err wraps a *ConflictError.
func IsConflict(err error) bool {
	var cErr *ConflictError
	return errors.As(err, &cErr)
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	var sErr *shutdown
	return errors.As(err, &sErr)
}
