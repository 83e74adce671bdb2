package webm

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"retake/internal/logging"
	"retake/internal/reassembly"
)

// player remuxes a finished buffer from the current position.
type player struct {
	buffer *buffer
	ended  chan struct{}

	mu       sync.Mutex
	position time.Duration
	recorder *recorder
	playing  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

func (p *player) Seek(pos time.Duration) error {
	if pos < 0 {
		return errors.New("seek position is negative")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return errors.New("cannot seek while playing")
	}
	p.position = pos
	return nil
}

func (p *player) Ended() <-chan struct{} { return p.ended }

func (p *player) Capture() (reassembly.Recorder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.recorder != nil {
		return nil, errors.New("recorder already attached")
	}
	if p.playing {
		return nil, errors.New("cannot attach recorder during playback")
	}
	p.recorder = newRecorder(p.buffer.engine.chunkBytes, p.halt)
	return p.recorder, nil
}

func (p *player) Play(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return errors.New("already playing")
	}
	tracks, frames, err := p.buffer.snapshot(p.position)
	if err != nil {
		return err
	}
	var out io.Writer = io.Discard
	if p.recorder != nil {
		out = p.recorder
	}
	m, err := newMuxer(out, tracks)
	if err != nil {
		return err
	}

	playCtx, cancel := context.WithCancel(ctx)
	p.playing = true
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(playCtx, m, frames, p.position, p.done)
	return nil
}

func (p *player) run(ctx context.Context, m *muxer, frames []Frame, from time.Duration, done chan struct{}) {
	defer close(done)
	logger := p.buffer.engine.logger
	realtime := p.buffer.engine.realtime
	start := time.Now()
	complete := true

	for _, f := range frames {
		rel := f.Timestamp - from
		if realtime {
			if wait := time.Until(start.Add(rel)); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
				}
			}
		}
		if ctx.Err() != nil {
			complete = false
			break
		}
		f.Timestamp = rel
		if err := m.write(f); err != nil {
			logger.Warn("playback write failed", logging.Error(err))
			complete = false
			break
		}
	}
	if err := m.close(); err != nil {
		logger.Debug("close playback muxer", logging.Error(err))
	}
	if complete {
		close(p.ended)
	}
}

// halt cancels playback and waits for the mux goroutine to exit.
func (p *player) halt() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// release stops playback and any attached recorder.
func (p *player) release() {
	p.mu.Lock()
	rec := p.recorder
	p.mu.Unlock()
	if rec != nil {
		_ = rec.Stop()
		return
	}
	p.halt()
}

// recorder buffers rendered bytes and emits them in fixed-size chunks.
type recorder struct {
	size int
	data chan []byte
	halt func()

	mu      sync.Mutex
	pending []byte
	closed  bool

	sendMu   sync.Mutex
	stopOnce sync.Once
}

func newRecorder(size int, halt func()) *recorder {
	if size <= 0 {
		size = DefaultChunkBytes
	}
	return &recorder{size: size, data: make(chan []byte, 16), halt: halt}
}

func (r *recorder) Data() <-chan []byte { return r.data }

func (r *recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	r.pending = append(r.pending, p...)
	var ready [][]byte
	for len(r.pending) >= r.size {
		chunk := make([]byte, r.size)
		copy(chunk, r.pending[:r.size])
		ready = append(ready, chunk)
		r.pending = r.pending[r.size:]
	}
	r.mu.Unlock()

	r.sendMu.Lock()
	defer r.sendMu.Unlock()
	for _, chunk := range ready {
		r.data <- chunk
	}
	return len(p), nil
}

// Stop halts playback, flushes the partial chunk, and closes Data.
func (r *recorder) Stop() error {
	r.stopOnce.Do(func() {
		if r.halt != nil {
			r.halt()
		}
		r.mu.Lock()
		r.closed = true
		rest := r.pending
		r.pending = nil
		r.mu.Unlock()

		r.sendMu.Lock()
		defer r.sendMu.Unlock()
		if len(rest) > 0 {
			r.data <- rest
		}
		close(r.data)
	})
	return nil
}
