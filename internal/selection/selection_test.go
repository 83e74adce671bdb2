package selection

import (
	"errors"
	"testing"
	"time"

	"retake/internal/timeline"
)

func TestSelectOpensDefaultWindow(t *testing.T) {
	s := New(0)
	r, err := s.Select(5*time.Second, 60*time.Second)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if r.Start != 5*time.Second || r.End != 15*time.Second {
		t.Fatalf("unexpected range %s", r)
	}
	active, ok := s.Active()
	if !ok || active != r {
		t.Fatalf("expected active range %s, got %s (%v)", r, active, ok)
	}
}

func TestSelectClampsToRemainingDuration(t *testing.T) {
	s := New(10 * time.Second)
	r, err := s.Select(55*time.Second, 60*time.Second)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if r.End != 60*time.Second {
		t.Fatalf("expected clamp to 60s, got %s", r)
	}
}

func TestSelectAtEndIsInvalid(t *testing.T) {
	s := New(0)
	_, err := s.Select(60*time.Second, 60*time.Second)
	var rangeErr *timeline.InvalidRangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected InvalidRangeError, got %v", err)
	}
	if _, ok := s.Active(); ok {
		t.Fatal("expected no active range after failed select")
	}
}

func TestAdjustKeepsPreviousRangeOnError(t *testing.T) {
	s := New(0)
	original, _ := s.Select(0, 30*time.Second)
	if err := s.Adjust(timeline.Range{Start: 20 * time.Second, End: 40 * time.Second}, 30*time.Second); err == nil {
		t.Fatal("expected adjust past duration to fail")
	}
	active, _ := s.Active()
	if active != original {
		t.Fatalf("expected %s to remain active, got %s", original, active)
	}

	next := timeline.Range{Start: 12 * time.Second, End: 18 * time.Second}
	if err := s.Adjust(next, 30*time.Second); err != nil {
		t.Fatalf("Adjust: %v", err)
	}
	if active, _ := s.Active(); active != next {
		t.Fatalf("expected %s, got %s", next, active)
	}

	s.Clear()
	if _, ok := s.Active(); ok {
		t.Fatal("expected Clear to drop the range")
	}
}
