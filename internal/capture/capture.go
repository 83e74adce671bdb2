package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind selects what a capture records.
type Kind int

const (
	// KindVideoAudio records screen video with microphone audio.
	KindVideoAudio Kind = iota
	// KindAudioOnly records the microphone only.
	KindAudioOnly
)

func (k Kind) String() string {
	switch k {
	case KindVideoAudio:
		return "video_audio"
	case KindAudioOnly:
		return "audio_only"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrHandleClosed is returned when a handle is used after Stop or Abort.
var ErrHandleClosed = errors.New("capture handle already closed")

// Adapter starts captures.
type Adapter interface {
	Start(ctx context.Context, kind Kind, opts ...StartOption) (Handle, error)
}

// Handle is one running capture.
type Handle interface {
	Kind() Kind
	// Stop ends the capture and returns the recorded payload.
	Stop(ctx context.Context) ([]byte, error)
	// Abort ends the capture and discards its output.
	Abort() error
}

// StartOptions holds per-capture settings.
type StartOptions struct {
	// MaxDuration stops the recording on its own once reached; zero means
	// unbounded.
	MaxDuration time.Duration
}

// StartOption configures a capture.
type StartOption func(*StartOptions)

// WithMaxDuration bounds the recording length.
func WithMaxDuration(d time.Duration) StartOption {
	return func(o *StartOptions) {
		if d > 0 {
			o.MaxDuration = d
		}
	}
}

func resolveOptions(opts []StartOption) StartOptions {
	var out StartOptions
	for _, opt := range opts {
		opt(&out)
	}
	return out
}
