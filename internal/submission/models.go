package submission

import (
	"fmt"
	"strings"
	"time"
)

// Status is the review state of a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusReviewed Status = "reviewed"
)

// ParseStatus converts user input into a Status.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusPending:
		return StatusPending, nil
	case StatusReviewed:
		return StatusReviewed, nil
	}
	return "", &InvalidStatusError{Value: value}
}

// Upload is a flattened artifact handed over for persistence.
type Upload struct {
	TimelineID string
	// SourceName names the original recording; the stored file becomes
	// <SourceName>_edited.webm.
	SourceName string
	Data       []byte
	Duration   time.Duration
}

// Note is a stored annotation.
type Note struct {
	ID        string
	Timestamp time.Duration
	Text      string
	Rendered  string
}

// Submission is one persisted artifact with its notes and review state.
type Submission struct {
	ID             string
	TimelineID     string
	SourceName     string
	ArtifactPath   string
	ArtifactBytes  int64
	ArtifactSHA256 string
	Duration       time.Duration
	Status         Status
	Feedback       string
	NoteCount      int
	Notes          []Note
	CreatedAt      time.Time
	ReviewedAt     *time.Time
}

// ArtifactName returns the stored artifact's file name for a source.
func ArtifactName(source string) string {
	base := strings.TrimSpace(source)
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, base)
	if base == "" {
		base = "recording"
	}
	return fmt.Sprintf("%s_edited.webm", base)
}
