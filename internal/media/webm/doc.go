// Package webm implements the reassembly engine for WebM payloads.
//
// Each appended chunk is demuxed with ebml-go, filtered to its append window,
// re-stamped to its timeline position, and held as decoded frames. Audio
// overlay chunks replace the audio frames under their placement. The player
// remuxes the buffered frames through a SimpleBlock writer, optionally paced
// against the wall clock, and the recorder hands the bytes out in fixed-size
// chunks.
//
// Video frames before the first keyframe inside a window cannot be decoded on
// their own and are dropped, so a cut that lands mid-GOP shows a short gap
// until the next keyframe.
package webm
