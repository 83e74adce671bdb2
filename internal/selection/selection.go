package selection

import (
	"sync"
	"time"

	"retake/internal/timeline"
)

// DefaultWindow is the selection length opened by Select when no other window
// is configured.
const DefaultWindow = 10 * time.Second

// Selector holds at most one active range.
type Selector struct {
	mu     sync.Mutex
	window time.Duration
	active *timeline.Range
}

// New returns a selector that opens windows of the given length; a
// non-positive window falls back to DefaultWindow.
func New(window time.Duration) *Selector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Selector{window: window}
}

// Window returns the default selection length.
func (s *Selector) Window() time.Duration {
	return s.window
}

// Select opens a window starting at at, clamped to the remaining duration,
// and makes it the active range.
func (s *Selector) Select(at, duration time.Duration) (timeline.Range, error) {
	end := at + s.window
	if end > duration {
		end = duration
	}
	r := timeline.Range{Start: at, End: end}
	if err := r.Validate(duration); err != nil {
		return timeline.Range{}, err
	}
	s.mu.Lock()
	s.active = &r
	s.mu.Unlock()
	return r, nil
}

// Adjust validates r against duration and replaces the active range. An
// invalid range leaves the current selection in place.
func (s *Selector) Adjust(r timeline.Range, duration time.Duration) error {
	if err := r.Validate(duration); err != nil {
		return err
	}
	s.mu.Lock()
	s.active = &r
	s.mu.Unlock()
	return nil
}

// Clear drops the active range.
func (s *Selector) Clear() {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
}

// Active returns the current range, if any.
func (s *Selector) Active() (timeline.Range, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return timeline.Range{}, false
	}
	return *s.active, true
}
