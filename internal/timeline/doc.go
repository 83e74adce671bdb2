// Package timeline models the edited recording as an ordered list of immutable
// media segments plus optional audio overlays.
//
// A Timeline is a value: Delete, Replace, and OverlayAudio never touch the
// receiver and return a fresh Timeline only after the result passes Validate.
// Video segments are always contiguous from zero to Duration; overlays are
// ascending, non-overlapping ranges inside that span. Segment payloads are
// opaque to this package; the decode engine interprets MediaOffset as the
// point inside the payload where a (possibly truncated) segment begins.
//
// Times are time.Duration so boundary arithmetic stays exact across long edit
// sequences.
package timeline
