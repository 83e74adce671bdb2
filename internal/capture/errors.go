package capture

import (
	"fmt"
	"time"
)

// PermissionDeniedError reports that the user or OS refused device access.
type PermissionDeniedError struct {
	Device string
	Err    error
}

func (e *PermissionDeniedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("permission denied for %s", e.Device)
	}
	return fmt.Sprintf("permission denied for %s: %v", e.Device, e.Err)
}

func (e *PermissionDeniedError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for callers that map failures to user actions.
func (*PermissionDeniedError) ErrorKind() string { return "capture" }

// DeviceUnavailableError reports a missing, busy, or failing device.
type DeviceUnavailableError struct {
	Device string
	Reason string
	Err    error
}

func (e *DeviceUnavailableError) Error() string {
	msg := fmt.Sprintf("capture device %s unavailable", e.Device)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *DeviceUnavailableError) Unwrap() error { return e.Err }

// ErrorKind classifies the error for callers that map failures to user actions.
func (*DeviceUnavailableError) ErrorKind() string { return "capture" }

// StopTimeoutError reports a capture that did not finish within its stop
// deadline. The capture process has been killed.
type StopTimeoutError struct {
	Kind  Kind
	After time.Duration
}

func (e *StopTimeoutError) Error() string {
	return fmt.Sprintf("%s capture did not stop within %s", e.Kind, e.After)
}

// ErrorKind classifies the error for callers that map failures to user actions.
func (*StopTimeoutError) ErrorKind() string { return "capture" }

// Timeout marks the error as a timeout for net.Error style checks.
func (*StopTimeoutError) Timeout() bool { return true }
