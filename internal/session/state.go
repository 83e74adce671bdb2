package session

import (
	"context"
	"errors"
	"fmt"
)

// State is the controller state.
type State int

const (
	StateIdle State = iota
	StateSelecting
	StatePreviewing
	StateRecording
	StateFinalizing
	// StateLoading covers probing a replacement recording in RerecordEntirely.
	StateLoading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StatePreviewing:
		return "previewing"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	case StateLoading:
		return "loading"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrUnexpectedFailure is reported when an operation panics; the
	// controller is returned to Idle.
	ErrUnexpectedFailure = errors.New("unexpected failure; the editor was returned to idle")
	// ErrNoSelection is returned by range operations without an active range.
	ErrNoSelection = errors.New("no range selected")
	// ErrCanceled is returned by an operation interrupted by Cancel or Reset.
	ErrCanceled = errors.New("operation canceled")
)

// UnavailableError reports an operation triggered in a state that does not
// accept it.
type UnavailableError struct {
	Op    string
	State State
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s is unavailable while %s", e.Op, e.State)
}

// Is lets callers match with errors.Is(err, ErrOperationUnavailable).
func (e *UnavailableError) Is(target error) bool {
	return target == ErrOperationUnavailable
}

// ErrorKind classifies the error.
func (*UnavailableError) ErrorKind() string { return "unavailable" }

// ErrOperationUnavailable matches every UnavailableError.
var ErrOperationUnavailable = errors.New("operation unavailable in the current state")

// FinalizeError wraps a failed finalize. ResetOffered is set for hard
// failures, where the caller should offer a reset to the original recording.
type FinalizeError struct {
	Err          error
	ResetOffered bool
}

func (e *FinalizeError) Error() string {
	if e == nil || e.Err == nil {
		return "finalize failed"
	}
	return "finalize failed: " + e.Err.Error()
}

func (e *FinalizeError) Unwrap() error { return e.Err }

// ErrorKind returns the kind of the underlying error.
func (e *FinalizeError) ErrorKind() string { return ErrorKind(e.Err) }

// ErrorKind classifies err using the first ErrorKind() method in its chain.
// Cancellation reports "canceled" and anything unclassified "internal".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var classified interface{ ErrorKind() string }
	if errors.As(err, &classified) {
		if kind := classified.ErrorKind(); kind != "" {
			return kind
		}
	}
	if errors.Is(err, ErrNoSelection) {
		return "validation"
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return "timeout"
	}
	return "internal"
}

// Recoverable reports whether the user can retry or adjust and continue
// editing after err.
func Recoverable(err error) bool {
	switch ErrorKind(err) {
	case "capture", "validation", "unavailable", "canceled":
		return true
	}
	return false
}
