package reassembly

import "time"

// Phase names one pipeline step.
type Phase string

const (
	PhaseOpen        Phase = "open"
	PhaseAppend      Phase = "append"
	PhaseEndOfStream Phase = "end_of_stream"
	PhaseCapture     Phase = "capture"
	PhaseDone        Phase = "done"
)

// Default watchdog values.
const (
	DefaultOverallTimeout     = 60 * time.Second
	DefaultCaptureTimeout     = 30 * time.Second
	DefaultEndOfStreamTimeout = 5 * time.Second
	DefaultFlushTimeout       = 2 * time.Second
)

// Budget bounds one flatten. Zero fields take the defaults; a zero Capture
// leaves capture bounded only by Overall.
type Budget struct {
	Name        string
	Overall     time.Duration
	EndOfStream time.Duration
	Capture     time.Duration
	Flush       time.Duration
}

// PreviewBudget is used for in-editor playback of the current timeline.
func PreviewBudget() Budget {
	return Budget{
		Name:        "preview",
		Overall:     DefaultOverallTimeout,
		EndOfStream: DefaultEndOfStreamTimeout,
	}
}

// ExportBudget is used when producing the submitted artifact.
func ExportBudget() Budget {
	return Budget{
		Name:        "export",
		Overall:     DefaultOverallTimeout,
		EndOfStream: DefaultEndOfStreamTimeout,
		Capture:     DefaultCaptureTimeout,
	}
}

func (b Budget) normalized() Budget {
	if b.Name == "" {
		b.Name = "flatten"
	}
	if b.Overall <= 0 {
		b.Overall = DefaultOverallTimeout
	}
	if b.EndOfStream <= 0 {
		b.EndOfStream = DefaultEndOfStreamTimeout
	}
	if b.Flush <= 0 {
		b.Flush = DefaultFlushTimeout
	}
	return b
}
