package webm

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/at-wat/ebml-go/mkvcore"
	"github.com/at-wat/ebml-go/webm"
)

const muxCloseTimeout = 5 * time.Second

// writerCloser adapts a plain writer for the block writer, which closes its
// output once the last track closes and every pending block is flushed.
type writerCloser struct {
	io.Writer
	once sync.Once
	done chan struct{}
}

func (w *writerCloser) Close() error {
	w.once.Do(func() { close(w.done) })
	return nil
}

// muxer writes frames into a SimpleBlock stream.
type muxer struct {
	writers map[Kind]webm.BlockWriteCloser
	out     *writerCloser

	mu    sync.Mutex
	fatal error
}

func newMuxer(w io.Writer, tracks Tracks) (*muxer, error) {
	entries := tracks.Entries()
	if len(entries) == 0 {
		return nil, ErrNoTracks
	}
	m := &muxer{
		writers: make(map[Kind]webm.BlockWriteCloser, len(entries)),
		out:     &writerCloser{Writer: w, done: make(chan struct{})},
	}
	writers, err := webm.NewSimpleBlockWriter(m.out, entries,
		mkvcore.WithOnFatalHandler(func(err error) {
			m.mu.Lock()
			m.fatal = err
			m.mu.Unlock()
		}),
	)
	if err != nil {
		return nil, err
	}
	i := 0
	if tracks.Video != nil {
		m.writers[KindVideo] = writers[i]
		i++
	}
	if tracks.Audio != nil {
		m.writers[KindAudio] = writers[i]
	}
	return m, nil
}

func (m *muxer) write(f Frame) error {
	m.mu.Lock()
	fatal := m.fatal
	m.mu.Unlock()
	if fatal != nil {
		return fatal
	}
	w, ok := m.writers[f.Kind]
	if !ok {
		return nil
	}
	_, err := w.Write(f.Keyframe, int64(f.Timestamp/time.Millisecond), f.Data)
	return err
}

func (m *muxer) close() error {
	var first error
	for _, kind := range []Kind{KindVideo, KindAudio} {
		w, ok := m.writers[kind]
		if !ok {
			continue
		}
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return first
	}
	select {
	case <-m.out.done:
	case <-time.After(muxCloseTimeout):
		return errors.New("webm writer did not finish")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fatal
}

// Encode muxes frames into a complete WebM document.
func Encode(tracks Tracks, frames []Frame) ([]byte, error) {
	var buf bytes.Buffer
	m, err := newMuxer(&buf, tracks)
	if err != nil {
		return nil, err
	}
	ordered := append([]Frame(nil), frames...)
	sortFrames(ordered)
	for _, f := range ordered {
		if err := m.write(f); err != nil {
			return nil, err
		}
	}
	if err := m.close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
