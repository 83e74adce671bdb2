package timeline

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Track identifies which output track a segment feeds.
type Track int

const (
	// TrackVideo segments carry the primary video (and its original audio).
	TrackVideo Track = iota
	// TrackAudio segments substitute audio over a range of the video track.
	TrackAudio
)

func (t Track) String() string {
	switch t {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	default:
		return fmt.Sprintf("track(%d)", int(t))
	}
}

// Range is a half-open time span [Start, End).
type Range struct {
	Start time.Duration
	End   time.Duration
}

// Len returns the span length.
func (r Range) Len() time.Duration {
	return r.End - r.Start
}

// Validate checks 0 <= Start < End <= duration.
func (r Range) Validate(duration time.Duration) error {
	switch {
	case r.Start < 0:
		return invalidRange(r, duration, "start is negative")
	case r.End <= r.Start:
		return invalidRange(r, duration, "range is empty")
	case r.End > duration:
		return invalidRange(r, duration, "range exceeds duration")
	}
	return nil
}

func (r Range) String() string {
	return fmt.Sprintf("[%s, %s)", FormatSeconds(r.Start), FormatSeconds(r.End))
}

// Segment is one immutable media chunk placed on the timeline. Media is shared
// between copies and must not be modified after construction.
type Segment struct {
	ID          string
	Media       []byte
	MediaOffset time.Duration
	Start       time.Duration
	End         time.Duration
	Track       Track
}

// NewSegment wraps a freshly captured payload of the given duration, placed at
// zero. Replace and OverlayAudio re-stamp it.
func NewSegment(media []byte, duration time.Duration, track Track) Segment {
	return Segment{
		ID:    uuid.NewString(),
		Media: media,
		Start: 0,
		End:   duration,
		Track: track,
	}
}

// Duration returns End - Start.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// Range returns the segment placement.
func (s Segment) Range() Range {
	return Range{Start: s.Start, End: s.End}
}

// Size returns the payload length in bytes.
func (s Segment) Size() int {
	return len(s.Media)
}

func (s Segment) shifted(delta time.Duration) Segment {
	s.Start += delta
	s.End += delta
	return s
}

// Seconds converts fractional seconds to a Duration, rounded to the
// nearest microsecond so CLI input like 20.1 lands on a stable value.
func Seconds(value float64) time.Duration {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	micros := math.Round(value * 1e6)
	return time.Duration(micros) * time.Microsecond
}

// FormatSeconds renders a duration as seconds with up to three decimals.
func FormatSeconds(d time.Duration) string {
	return strconv.FormatFloat(math.Round(d.Seconds()*1000)/1000, 'f', -1, 64) + "s"
}
