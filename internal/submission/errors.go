package submission

import (
	"errors"
	"fmt"
)

// ErrEmptyArtifact rejects uploads without data.
var ErrEmptyArtifact = errors.New("artifact is empty")

// NotFoundError reports an unknown submission ID.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("submission %s not found", e.ID)
}

// ErrorKind classifies the error.
func (e *NotFoundError) ErrorKind() string { return "not_found" }

// InvalidStatusError reports an unknown review status.
type InvalidStatusError struct {
	Value string
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid status %q (want pending or reviewed)", e.Value)
}

// ErrorKind classifies the error.
func (e *InvalidStatusError) ErrorKind() string { return "validation" }
