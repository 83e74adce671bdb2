package logging

import "strings"

// ProgressSampler suppresses repetitive flatten progress logs while keeping
// one line per phase change or percentage bucket.
type ProgressSampler struct {
	bucketSize float64
	lastPhase  string
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 10%) or when the phase changes.
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 10
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a progress event should be logged. Percent can be
// negative to indicate "unknown".
func (s *ProgressSampler) ShouldLog(percent float64, phase string) bool {
	if s == nil {
		return true
	}
	phase = strings.TrimSpace(phase)
	emit := false
	if phase != "" && phase != s.lastPhase {
		s.lastPhase = phase
		emit = true
		s.lastBucket = -1
	}
	if percent >= 0 {
		bucket := int(percent / s.bucketSize)
		if percent >= 100 {
			bucket = int(100 / s.bucketSize)
		}
		if bucket > s.lastBucket {
			s.lastBucket = bucket
			emit = true
		}
	}
	return emit
}

// Reset clears the sampler state before a new flatten.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastPhase = ""
	s.lastBucket = -1
}
