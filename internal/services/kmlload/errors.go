package kmlload

import (
	"fmt"

	"field-route-service/internal/domain"
)

// NotFoundError means no KML file is provisioned for the key yet.
type NotFoundError struct {
	Key domain.ZoneKey
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("kml file %s not found", e.Key.FileName())
}

func (e *NotFoundError) Unwrap() error { return domain.ErrNotFound }

// ReadError means the file exists but could not be read or is empty.
type ReadError struct {
	Key domain.ZoneKey
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read kml file %s: %v", e.Key.FileName(), e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
