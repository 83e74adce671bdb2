package reassembly

import (
	"context"
	"time"

	"retake/internal/timeline"
)

// ChunkKind distinguishes video-track segments from audio substitutions.
type ChunkKind int

const (
	// ChunkSegment carries a video-track segment (with its original audio).
	ChunkSegment ChunkKind = iota
	// ChunkAudioOverlay replaces the audio under its placement.
	ChunkAudioOverlay
)

func (k ChunkKind) String() string {
	if k == ChunkAudioOverlay {
		return "audio_overlay"
	}
	return "segment"
}

// Chunk is one unit handed to the decode buffer. Window selects the part of
// the payload to decode; Offset is the timeline position Window.Start maps to.
type Chunk struct {
	Index     int
	SegmentID string
	Kind      ChunkKind
	Payload   []byte
	Window    timeline.Range
	Offset    time.Duration
}

// Engine is the streaming append-and-decode primitive.
type Engine interface {
	// Open creates a fresh decode buffer bound to a hidden player.
	Open(ctx context.Context) (Buffer, error)
}

// Buffer accepts chunks one at a time. Implementations are not reentrant: a
// second Append before the previous acknowledgement is an error.
type Buffer interface {
	// Append starts decoding chunk; completion arrives on Updates.
	Append(chunk Chunk) error
	// Updates delivers one value per accepted Append.
	Updates() <-chan error
	// EndOfStream signals that no more input follows; Ended closes once the
	// buffer acknowledges it.
	EndOfStream() error
	Ended() <-chan struct{}
	// ForceEnd finalizes the buffer without waiting for acknowledgement.
	ForceEnd() error
	// Player returns the hidden player rendering this buffer.
	Player() Player
	// Close releases the buffer and its player.
	Close() error
}

// Player renders decoded media. Output is only observable through a Recorder
// attached with Capture.
type Player interface {
	Seek(pos time.Duration) error
	Play(ctx context.Context) error
	// Ended closes at end of media.
	Ended() <-chan struct{}
	Capture() (Recorder, error)
}

// Recorder captures rendered output as a chunk stream.
type Recorder interface {
	// Data is closed after Stop once buffered output is flushed. A recorder
	// that does not close it within the flush budget fails the capture.
	Data() <-chan []byte
	Stop() error
}
