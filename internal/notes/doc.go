// Package notes stores timestamped text annotations for a session.
//
// Notes have their own lifecycle: they are appended at any playback position,
// never mutated, and never re-anchored when the timeline is edited. A note
// taken at 40s stays at 40s even after an earlier range is deleted, so notes
// can drift away from the content they described. Callers that need anchored
// notes must account for the drift themselves.
package notes
