package notes

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyNote is returned when a note has no text after trimming.
var ErrEmptyNote = errors.New("note text is empty")

// DisplayWindow is how close playback must be to a note for it to show.
const DisplayWindow = 500 * time.Millisecond

// Note is one immutable annotation.
type Note struct {
	ID        string
	Timestamp time.Duration
	Text      string
}

// String renders the note as "mm:ss — text".
func (n Note) String() string {
	return FormatClock(n.Timestamp) + " — " + n.Text
}

// Store keeps notes in insertion order.
type Store struct {
	mu    sync.RWMutex
	notes []Note
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Add appends a note at the given playback position.
func (s *Store) Add(at time.Duration, text string) (Note, error) {
	text = norm.NFC.String(strings.TrimSpace(text))
	if text == "" {
		return Note{}, ErrEmptyNote
	}
	if at < 0 {
		at = 0
	}
	note := Note{ID: uuid.NewString(), Timestamp: at, Text: text}
	s.mu.Lock()
	s.notes = append(s.notes, note)
	s.mu.Unlock()
	return note, nil
}

// List returns the notes in the order they were taken.
func (s *Store) List() []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Ordered returns the notes sorted by timestamp; ties keep insertion order.
func (s *Store) Ordered() []Note {
	out := s.List()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// At returns the notes that should be on screen at playback position t.
func (s *Store) At(t time.Duration) []Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Note
	for _, note := range s.notes {
		delta := note.Timestamp - t
		if delta < 0 {
			delta = -delta
		}
		if delta < DisplayWindow {
			out = append(out, note)
		}
	}
	return out
}

// Len returns the number of notes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.notes)
}

// Reset drops every note.
func (s *Store) Reset() {
	s.mu.Lock()
	s.notes = nil
	s.mu.Unlock()
}

// Render formats notes as "mm:ss — text" lines, in the given order.
func Render(list []Note) []string {
	out := make([]string, 0, len(list))
	for _, note := range list {
		out = append(out, note.String())
	}
	return out
}

// FormatClock renders whole seconds as mm:ss. Minutes keep counting past 59.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
