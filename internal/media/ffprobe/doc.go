// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Prober: measures in-memory payloads by spooling them to a temp file
//
// Recorder output often carries no container duration; Result.Duration falls
// back to the longest stream duration.
package ffprobe
