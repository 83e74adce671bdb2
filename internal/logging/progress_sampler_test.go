package logging

import "testing"

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(25)
	steps := []struct {
		percent float64
		phase   string
		want    bool
	}{
		{0, "append", true},
		{10, "append", false},
		{26, "append", true},
		{49, "append", false},
		{50, " append ", true},
		{-1, "capture", true},
		{-1, "capture", false},
		{100, "capture", true},
		{100, "capture", false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, step.phase); got != step.want {
			t.Fatalf("step %d (%v, %q): got %v want %v", i, step.percent, step.phase, got, step.want)
		}
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(0)
	if s.bucketSize != 10 {
		t.Fatalf("expected default bucket 10, got %v", s.bucketSize)
	}
	s.ShouldLog(55, "append")
	s.Reset()
	if s.lastPhase != "" || s.lastBucket != -1 {
		t.Fatalf("expected cleared state, got %+v", s)
	}
	if !s.ShouldLog(5, "") {
		t.Fatal("expected first bucket to log after reset")
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(1, "append") {
		t.Fatal("nil sampler should always log")
	}
	s.Reset()
}
