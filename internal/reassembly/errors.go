package reassembly

import (
	"errors"
	"fmt"
	"time"

	"retake/internal/timeline"
)

// ErrFlattenInProgress is returned when another flatten of the same timeline
// lineage is already running.
var ErrFlattenInProgress = errors.New("flatten already in progress for this timeline")

// EmptyTimelineError is returned before any engine work when there is nothing
// to flatten.
type EmptyTimelineError struct{}

func (*EmptyTimelineError) Error() string { return "no segments to flatten" }

// ErrorKind classifies the error for callers that map failures to user actions.
func (*EmptyTimelineError) ErrorKind() string { return "validation" }

// AppendFailedError reports the chunk the engine rejected.
type AppendFailedError struct {
	Index     int
	SegmentID string
	Err       error
}

func (e *AppendFailedError) Error() string {
	if e == nil {
		return "append failed"
	}
	if e.Err == nil {
		return fmt.Sprintf("append chunk %d failed", e.Index)
	}
	return fmt.Sprintf("append chunk %d failed: %v", e.Index, e.Err)
}

func (e *AppendFailedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorKind classifies the error for callers that map failures to user actions.
func (*AppendFailedError) ErrorKind() string { return "decode" }

// DecoderStallWarning is recorded, not returned, when end-of-input was not
// acknowledged in time and the buffer was force-finalized.
type DecoderStallWarning struct {
	Waited time.Duration
}

func (w *DecoderStallWarning) Error() string {
	return fmt.Sprintf("decoder did not acknowledge end of input within %s; forced", timeline.FormatSeconds(w.Waited))
}

// SkippedChunkWarning is recorded when a segment has no payload to append.
type SkippedChunkWarning struct {
	Index     int
	SegmentID string
}

func (w *SkippedChunkWarning) Error() string {
	return fmt.Sprintf("chunk %d (segment %s) is empty; skipped", w.Index, w.SegmentID)
}

// EmptyArtifactError reports a capture that produced zero bytes.
type EmptyArtifactError struct {
	Chunks int
}

func (e *EmptyArtifactError) Error() string {
	return fmt.Sprintf("capture produced no data after %d chunks", e.Chunks)
}

// ErrorKind classifies the error for callers that map failures to user actions.
func (*EmptyArtifactError) ErrorKind() string { return "decode" }

// CaptureTimeoutError reports that the global watchdog fired. Phase is the
// step that was running at the time.
type CaptureTimeoutError struct {
	Phase Phase
	After time.Duration
}

func (e *CaptureTimeoutError) Error() string {
	if e == nil {
		return "flatten timed out"
	}
	return fmt.Sprintf("flatten timed out after %s during %s", timeline.FormatSeconds(e.After), e.Phase)
}

// ErrorKind classifies the error for callers that map failures to user actions.
func (*CaptureTimeoutError) ErrorKind() string { return "timeout" }

// Timeout marks the error as a timeout for net.Error style checks.
func (*CaptureTimeoutError) Timeout() bool { return true }
