// Package capture defines the capture adapter contract and its local
// implementations.
//
// An Adapter starts a capture of a given Kind and returns a Handle; Stop ends
// the capture and returns the recorded payload, Abort discards it. Failures are
// reported as PermissionDeniedError, DeviceUnavailableError, or
// StopTimeoutError, all classified "capture" so callers can offer a retry
// without touching the timeline.
//
// FileAdapter replays prepared recordings, one per Start, and backs scripted
// sessions and tests. FFmpegAdapter records from local devices through an
// ffmpeg command built with ffmpeg-go; stopping sends "q" on stdin so the
// container is finalized.
package capture
