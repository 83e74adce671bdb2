package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Timeline is the ordered, contiguous segment list of the current edit.
// The zero value is an empty timeline with no lineage ID.
type Timeline struct {
	id       string
	segments []Segment
	overlays []Segment
}

// New builds the initial timeline: one video segment spanning the original
// capture.
func New(media []byte, duration time.Duration) (Timeline, error) {
	if duration <= 0 {
		return Timeline{}, &InvariantError{Op: "new", Reason: "capture duration must be positive"}
	}
	seg := NewSegment(media, duration, TrackVideo)
	t := Timeline{id: uuid.NewString(), segments: []Segment{seg}}
	if err := t.Validate(); err != nil {
		return Timeline{}, err
	}
	return t, nil
}

// FromSegments assembles a timeline from existing segments, validating every
// invariant. An empty id assigns a fresh lineage.
func FromSegments(id string, segments, overlays []Segment) (Timeline, error) {
	if len(segments) == 0 {
		return Timeline{}, ErrNoSegments
	}
	if id == "" {
		id = uuid.NewString()
	}
	t := Timeline{id: id, segments: cloneSegments(segments), overlays: cloneSegments(overlays)}
	if err := t.Validate(); err != nil {
		return Timeline{}, err
	}
	return t, nil
}

// ID identifies the edit lineage. Edits keep it; a wholesale re-record gets a
// new one.
func (t Timeline) ID() string {
	return t.id
}

// Duration is the end of the last video segment.
func (t Timeline) Duration() time.Duration {
	var end time.Duration
	for _, seg := range t.segments {
		if seg.End > end {
			end = seg.End
		}
	}
	return end
}

// Len returns the number of video segments.
func (t Timeline) Len() int {
	return len(t.segments)
}

// IsEmpty reports whether no video segment remains.
func (t Timeline) IsEmpty() bool {
	return len(t.segments) == 0
}

// Segments returns a copy of the video segments in timeline order.
func (t Timeline) Segments() []Segment {
	return cloneSegments(t.segments)
}

// Overlays returns a copy of the audio overlays in timeline order.
func (t Timeline) Overlays() []Segment {
	return cloneSegments(t.overlays)
}

// Validate checks ordering, contiguity, and overlay bounds.
func (t Timeline) Validate() error {
	var cursor time.Duration
	for i, seg := range t.segments {
		if seg.Track != TrackVideo {
			return &InvariantError{Reason: fmt.Sprintf("segment %d is on the %s track", i, seg.Track)}
		}
		if seg.End <= seg.Start {
			return &InvariantError{Reason: fmt.Sprintf("segment %d has non-positive duration", i)}
		}
		if seg.MediaOffset < 0 {
			return &InvariantError{Reason: fmt.Sprintf("segment %d has negative media offset", i)}
		}
		if seg.Start != cursor {
			return &InvariantError{Reason: fmt.Sprintf("segment %d starts at %s, expected %s", i, FormatSeconds(seg.Start), FormatSeconds(cursor))}
		}
		cursor = seg.End
	}

	duration := cursor
	var last time.Duration
	for i, ov := range t.overlays {
		if ov.Track != TrackAudio {
			return &InvariantError{Reason: fmt.Sprintf("overlay %d is on the %s track", i, ov.Track)}
		}
		if ov.End <= ov.Start {
			return &InvariantError{Reason: fmt.Sprintf("overlay %d has non-positive duration", i)}
		}
		if ov.MediaOffset < 0 {
			return &InvariantError{Reason: fmt.Sprintf("overlay %d has negative media offset", i)}
		}
		if ov.Start < last {
			return &InvariantError{Reason: fmt.Sprintf("overlay %d overlaps its predecessor", i)}
		}
		if ov.End > duration {
			return &InvariantError{Reason: fmt.Sprintf("overlay %d ends past the timeline", i)}
		}
		last = ov.End
	}
	return nil
}

// Delete removes the video time covered by r. Straddling segments are
// truncated at the boundary and everything after r shifts left by r.Len().
func (t Timeline) Delete(r Range) (Timeline, error) {
	if err := r.Validate(t.Duration()); err != nil {
		return t, err
	}
	next := Timeline{
		id:       t.id,
		segments: cut(t.segments, r, true),
		overlays: cut(t.overlays, r, true),
	}
	if err := next.Validate(); err != nil {
		return t, withOp(err, "delete")
	}
	return next, nil
}

// Replace removes r and inserts seg at r.Start. The inserted segment keeps its
// own duration, so trailing segments shift by seg.Duration() - r.Len().
func (t Timeline) Replace(r Range, seg Segment) (Timeline, error) {
	if err := r.Validate(t.Duration()); err != nil {
		return t, err
	}
	length := seg.Duration()
	if length <= 0 {
		return t, &InvariantError{Op: "replace", Reason: "replacement segment has non-positive duration"}
	}
	if seg.ID == "" {
		seg.ID = uuid.NewString()
	}
	seg.Track = TrackVideo
	seg.Start = r.Start
	seg.End = r.Start + length

	segments := insertAt(cut(t.segments, r, true), r.Start, length)
	segments = append(segments, seg)
	sortByStart(segments)

	next := Timeline{
		id:       t.id,
		segments: segments,
		overlays: insertAt(cut(t.overlays, r, true), r.Start, length),
	}
	if err := next.Validate(); err != nil {
		return t, withOp(err, "replace")
	}
	return next, nil
}

// OverlayAudio places audio over exactly r. Existing overlays inside r are
// trimmed away; video segments are untouched.
func (t Timeline) OverlayAudio(r Range, audio Segment) (Timeline, error) {
	if err := r.Validate(t.Duration()); err != nil {
		return t, err
	}
	if audio.ID == "" {
		audio.ID = uuid.NewString()
	}
	audio.Track = TrackAudio
	audio.Start = r.Start
	audio.End = r.End

	overlays := append(cut(t.overlays, r, false), audio)
	sortByStart(overlays)

	next := Timeline{
		id:       t.id,
		segments: cloneSegments(t.segments),
		overlays: overlays,
	}
	if err := next.Validate(); err != nil {
		return t, withOp(err, "overlay")
	}
	return next, nil
}

// cut removes r from segs. With shift, segments after r move left by r.Len().
// The right-hand piece of a split segment advances its MediaOffset so it still
// points at the same content.
func cut(segs []Segment, r Range, shift bool) []Segment {
	delta := time.Duration(0)
	if shift {
		delta = r.Len()
	}
	out := make([]Segment, 0, len(segs)+1)
	for _, seg := range segs {
		switch {
		case seg.End <= r.Start:
			out = append(out, seg)
		case seg.Start >= r.End:
			out = append(out, seg.shifted(-delta))
		default:
			if seg.Start < r.Start {
				left := seg
				left.End = r.Start
				out = append(out, left)
			}
			if seg.End > r.End {
				right := seg
				right.MediaOffset += r.End - seg.Start
				right.Start = r.End - delta
				right.End = seg.End - delta
				if seg.Start < r.Start {
					right.ID = uuid.NewString()
				}
				out = append(out, right)
			}
		}
	}
	return out
}

// insertAt opens a gap of length at position at.
func insertAt(segs []Segment, at, length time.Duration) []Segment {
	for i := range segs {
		if segs[i].Start >= at {
			segs[i] = segs[i].shifted(length)
		}
	}
	return segs
}

func sortByStart(segs []Segment) {
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })
}

func cloneSegments(segs []Segment) []Segment {
	if len(segs) == 0 {
		return nil
	}
	out := make([]Segment, len(segs))
	copy(out, segs)
	return out
}

func withOp(err error, op string) error {
	if inv, ok := err.(*InvariantError); ok && inv.Op == "" {
		return &InvariantError{Op: op, Reason: inv.Reason}
	}
	return err
}
