package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrNoActiveRun        = errors.New("no active run")
	ErrActiveRunExists    = errors.New("an active run already exists")
	ErrSyncDisabled       = errors.New("remote sync disabled")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// FieldError reports invalid input before any I/O happens.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsFieldError reports whether err wraps a *FieldError.
func IsFieldError(err error) bool {
	var fe *FieldError
	return errors.As(err, &fe)
}
