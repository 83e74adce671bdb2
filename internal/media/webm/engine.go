package webm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/webm"

	"retake/internal/logging"
	"retake/internal/reassembly"
	"retake/internal/timeline"
)

// DefaultChunkBytes is the recorder chunk size.
const DefaultChunkBytes = 64 << 10

var (
	// ErrBufferUpdating is returned when Append is called before the previous
	// append was acknowledged.
	ErrBufferUpdating = errors.New("decode buffer is still updating")
	// ErrBufferClosed is returned for operations on a closed or ended buffer.
	ErrBufferClosed = errors.New("decode buffer is closed")
)

// CodecMismatchError reports a chunk whose codec differs from the buffer's.
type CodecMismatchError struct {
	Kind Kind
	Want string
	Got  string
}

func (e *CodecMismatchError) Error() string {
	return fmt.Sprintf("%s codec mismatch: buffer has %s, chunk has %s", e.Kind, e.Want, e.Got)
}

// Engine opens decode buffers for WebM chunks.
type Engine struct {
	realtime   bool
	chunkBytes int
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRealtime paces playback against the wall clock.
func WithRealtime(enabled bool) Option {
	return func(e *Engine) {
		e.realtime = enabled
	}
}

// WithChunkBytes sets the recorder chunk size.
func WithChunkBytes(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkBytes = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine constructs a WebM engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{chunkBytes: DefaultChunkBytes}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "webm")
	return e
}

// Open creates a fresh buffer and its player.
func (e *Engine) Open(ctx context.Context) (reassembly.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := &buffer{
		engine:  e,
		updates: make(chan error, 1),
		ended:   make(chan struct{}),
	}
	b.player = &player{buffer: b, ended: make(chan struct{})}
	return b, nil
}

type buffer struct {
	engine  *Engine
	updates chan error
	ended   chan struct{}
	endOnce sync.Once
	player  *player

	mu       sync.Mutex
	tracks   Tracks
	frames   []Frame
	updating bool
	finished bool
	closed   bool
}

func (b *buffer) Append(chunk reassembly.Chunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.closed || b.finished:
		return ErrBufferClosed
	case b.updating:
		return ErrBufferUpdating
	}
	b.updating = true
	go func() {
		err := b.decode(chunk)
		b.mu.Lock()
		b.updating = false
		b.mu.Unlock()
		b.updates <- err
	}()
	return nil
}

func (b *buffer) Updates() <-chan error { return b.updates }

func (b *buffer) decode(chunk reassembly.Chunk) error {
	stream, err := Decode(chunk.Payload)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBufferClosed
	}

	switch chunk.Kind {
	case reassembly.ChunkAudioOverlay:
		if stream.Tracks.Audio == nil {
			return errors.New("audio overlay has no audio track")
		}
		if err := b.adopt(Tracks{Audio: stream.Tracks.Audio}); err != nil {
			return err
		}
		placement := timeline.Range{Start: chunk.Offset, End: chunk.Offset + chunk.Window.Len()}
		kept := b.frames[:0]
		for _, f := range b.frames {
			if f.Kind == KindAudio && f.Timestamp >= placement.Start && f.Timestamp < placement.End {
				continue
			}
			kept = append(kept, f)
		}
		b.frames = append(kept, windowFrames(stream.Frames, KindAudio, chunk.Window, chunk.Offset)...)
	default:
		if err := b.adopt(stream.Tracks); err != nil {
			return err
		}
		video := windowFrames(stream.Frames, KindVideo, chunk.Window, chunk.Offset)
		audio := windowFrames(stream.Frames, KindAudio, chunk.Window, chunk.Offset)
		b.frames = append(b.frames, video...)
		b.frames = append(b.frames, audio...)
	}
	b.engine.logger.Debug("chunk decoded",
		logging.Int("chunk", chunk.Index),
		logging.String("kind", chunk.Kind.String()),
		logging.Int("buffered_frames", len(b.frames)),
	)
	return nil
}

// adopt records the codecs of the first chunk carrying each track and rejects
// later chunks that differ.
func (b *buffer) adopt(tracks Tracks) error {
	check := func(kind Kind, have **webm.TrackEntry, got *webm.TrackEntry) error {
		if got == nil {
			return nil
		}
		if *have == nil {
			entry := *got
			*have = &entry
			return nil
		}
		if (*have).CodecID != got.CodecID {
			return &CodecMismatchError{Kind: kind, Want: (*have).CodecID, Got: got.CodecID}
		}
		return nil
	}
	if err := check(KindVideo, &b.tracks.Video, tracks.Video); err != nil {
		return err
	}
	return check(KindAudio, &b.tracks.Audio, tracks.Audio)
}

// windowFrames keeps frames of kind inside w and re-stamps them so w.Start
// lands on offset. Video waits for a keyframe.
func windowFrames(frames []Frame, kind Kind, w timeline.Range, offset time.Duration) []Frame {
	var out []Frame
	waiting := kind == KindVideo
	for _, f := range frames {
		if f.Kind != kind || f.Timestamp < w.Start || f.Timestamp >= w.End {
			continue
		}
		if waiting {
			if !f.Keyframe {
				continue
			}
			waiting = false
		}
		f.Timestamp = f.Timestamp - w.Start + offset
		out = append(out, f)
	}
	return out
}

func (b *buffer) EndOfStream() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.closed:
		return ErrBufferClosed
	case b.updating:
		return ErrBufferUpdating
	}
	b.finishLocked()
	return nil
}

func (b *buffer) Ended() <-chan struct{} { return b.ended }

func (b *buffer) ForceEnd() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBufferClosed
	}
	b.finishLocked()
	return nil
}

func (b *buffer) finishLocked() {
	b.finished = true
	sortFrames(b.frames)
	b.endOnce.Do(func() { close(b.ended) })
}

// snapshot returns the buffered tracks and the frames at or after from.
func (b *buffer) snapshot(from time.Duration) (Tracks, []Frame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.closed:
		return Tracks{}, nil, ErrBufferClosed
	case !b.finished:
		return Tracks{}, nil, errors.New("decode buffer is still open for input")
	}
	var frames []Frame
	for _, f := range b.frames {
		if f.Timestamp >= from {
			frames = append(frames, f)
		}
	}
	return b.tracks, frames, nil
}

func (b *buffer) Player() reassembly.Player { return b.player }

func (b *buffer) Close() error {
	b.player.release()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.frames = nil
	return nil
}
