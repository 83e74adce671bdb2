package timeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoSegments is returned when a timeline is built without any video segment.
var ErrNoSegments = errors.New("timeline has no segments")

// InvalidRangeError reports a selection that is empty or falls outside the
// timeline.
type InvalidRangeError struct {
	Range    Range
	Duration time.Duration
	Reason   string
}

func (e *InvalidRangeError) Error() string {
	if e == nil {
		return "invalid range"
	}
	return fmt.Sprintf("invalid range [%s, %s) for duration %s: %s",
		FormatSeconds(e.Range.Start), FormatSeconds(e.Range.End), FormatSeconds(e.Duration), e.Reason)
}

// ErrorKind classifies the error for callers that map failures to user actions.
func (e *InvalidRangeError) ErrorKind() string { return "validation" }

// InvariantError reports a mutation whose result would break timeline
// contiguity or ordering. The timeline that produced it is unchanged.
type InvariantError struct {
	Op     string
	Reason string
}

func (e *InvariantError) Error() string {
	if e == nil {
		return "timeline invariant violated"
	}
	if e.Op == "" {
		return "timeline invariant violated: " + e.Reason
	}
	return fmt.Sprintf("timeline %s: invariant violated: %s", e.Op, e.Reason)
}

// ErrorKind classifies the error for callers that map failures to user actions.
func (e *InvariantError) ErrorKind() string { return "validation" }

func invalidRange(r Range, duration time.Duration, reason string) error {
	return &InvalidRangeError{Range: r, Duration: duration, Reason: reason}
}
