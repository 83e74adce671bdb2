package reassembly_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"retake/internal/reassembly"
	"retake/internal/timeline"
)

type fakeEngine struct {
	mu      sync.Mutex
	buffers []*fakeBuffer

	failAppend   int
	rejectAppend bool
	noEndAck     bool
	silent       bool
	neverEnds    bool
	unflushed    bool
	block        chan struct{}
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{failAppend: -1}
}

func (e *fakeEngine) Open(context.Context) (reassembly.Buffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := &fakeBuffer{
		engine:  e,
		updates: make(chan error, 1),
		ended:   make(chan struct{}),
	}
	b.player = &fakePlayer{buffer: b, ended: make(chan struct{})}
	e.buffers = append(e.buffers, b)
	return b, nil
}

func (e *fakeEngine) last() *fakeBuffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.buffers) == 0 {
		return nil
	}
	return e.buffers[len(e.buffers)-1]
}

type fakeBuffer struct {
	engine  *fakeEngine
	updates chan error
	ended   chan struct{}
	player  *fakePlayer

	mu       sync.Mutex
	updating bool
	appended []reassembly.Chunk
	forced   bool
	endOnce  sync.Once
	closed   bool
	overlap  bool
}

func (b *fakeBuffer) Append(chunk reassembly.Chunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.updating {
		b.overlap = true
		return errors.New("buffer is updating")
	}
	if b.engine.rejectAppend && chunk.Index == b.engine.failAppend {
		return errors.New("quota exceeded")
	}
	b.updating = true
	b.appended = append(b.appended, chunk)
	go func() {
		if b.engine.block != nil {
			<-b.engine.block
		}
		var err error
		if !b.engine.rejectAppend && chunk.Index == b.engine.failAppend {
			err = errors.New("decode error")
		}
		b.mu.Lock()
		b.updating = false
		b.mu.Unlock()
		b.updates <- err
	}()
	return nil
}

func (b *fakeBuffer) Updates() <-chan error { return b.updates }

func (b *fakeBuffer) EndOfStream() error {
	if !b.engine.noEndAck {
		b.endOnce.Do(func() { close(b.ended) })
	}
	return nil
}

func (b *fakeBuffer) Ended() <-chan struct{} { return b.ended }

func (b *fakeBuffer) ForceEnd() error {
	b.mu.Lock()
	b.forced = true
	b.mu.Unlock()
	b.endOnce.Do(func() { close(b.ended) })
	return nil
}

func (b *fakeBuffer) Player() reassembly.Player { return b.player }

func (b *fakeBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBuffer) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type fakePlayer struct {
	buffer   *fakeBuffer
	ended    chan struct{}
	recorder *fakeRecorder
}

func (p *fakePlayer) Seek(time.Duration) error { return nil }

func (p *fakePlayer) Play(context.Context) error {
	if p.recorder != nil && !p.buffer.engine.silent {
		for _, chunk := range p.buffer.appended {
			p.recorder.data <- append([]byte(nil), chunk.Payload...)
		}
	}
	if !p.buffer.engine.neverEnds {
		close(p.ended)
	}
	return nil
}

func (p *fakePlayer) Ended() <-chan struct{} { return p.ended }

func (p *fakePlayer) Capture() (reassembly.Recorder, error) {
	p.recorder = &fakeRecorder{data: make(chan []byte, 64), unflushed: p.buffer.engine.unflushed}
	return p.recorder, nil
}

type fakeRecorder struct {
	data      chan []byte
	unflushed bool
	mu        sync.Mutex
	stopped   bool
}

func (r *fakeRecorder) Data() <-chan []byte { return r.data }

func (r *fakeRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.stopped {
		r.stopped = true
		if !r.unflushed {
			close(r.data)
		}
	}
	return nil
}

func (r *fakeRecorder) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func buildTimeline(t *testing.T) timeline.Timeline {
	t.Helper()
	tl, err := timeline.New([]byte("original"), 60*time.Second)
	if err != nil {
		t.Fatalf("new timeline: %v", err)
	}
	tl, err = tl.Replace(timeline.Range{Start: 20 * time.Second, End: 30 * time.Second},
		timeline.NewSegment([]byte("retake"), 12*time.Second, timeline.TrackVideo))
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	tl, err = tl.OverlayAudio(timeline.Range{Start: 5 * time.Second, End: 8 * time.Second},
		timeline.NewSegment([]byte("voice"), 3*time.Second, timeline.TrackAudio))
	if err != nil {
		t.Fatalf("overlay: %v", err)
	}
	return tl
}

func fastBudget() reassembly.Budget {
	return reassembly.Budget{
		Name:        "test",
		Overall:     2 * time.Second,
		EndOfStream: 50 * time.Millisecond,
		Flush:       time.Second,
	}
}

func TestFlattenAppendsSequentiallyAndReleases(t *testing.T) {
	engine := newFakeEngine()
	p := reassembly.New(engine)
	tl := buildTimeline(t)

	var phases []reassembly.Phase
	artifact, err := p.Flatten(context.Background(), tl, fastBudget(), func(pr reassembly.Progress) {
		phases = append(phases, pr.Phase)
	})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if artifact.Chunks != 4 {
		t.Fatalf("expected 4 chunks, got %d", artifact.Chunks)
	}
	if string(artifact.Data) != "originalretakeoriginalvoice" {
		t.Fatalf("unexpected artifact data %q", artifact.Data)
	}
	if len(artifact.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", artifact.Warnings)
	}

	buf := engine.last()
	if buf.overlap {
		t.Fatal("append issued while previous append was pending")
	}
	if !buf.isClosed() {
		t.Fatal("buffer not released")
	}
	if !buf.player.recorder.isStopped() {
		t.Fatal("recorder not stopped")
	}
	if buf.appended[3].Kind != reassembly.ChunkAudioOverlay {
		t.Fatalf("expected overlay last, got %s", buf.appended[3].Kind)
	}
	if phases[0] != reassembly.PhaseOpen || phases[len(phases)-1] != reassembly.PhaseDone {
		t.Fatalf("unexpected phase sequence %v", phases)
	}
}

func TestChunksCarryAppendWindow(t *testing.T) {
	tl := buildTimeline(t)
	chunks := reassembly.Chunks(tl)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks, got %d", len(chunks))
	}
	right := chunks[2]
	if right.Offset != 32*time.Second {
		t.Fatalf("expected right piece at 32s, got %s", right.Offset)
	}
	wantWindow := timeline.Range{Start: 30 * time.Second, End: 60 * time.Second}
	if right.Window != wantWindow {
		t.Fatalf("expected window %s, got %s", wantWindow, right.Window)
	}
	if chunks[3].Window.Len() != 3*time.Second || chunks[3].Offset != 5*time.Second {
		t.Fatalf("unexpected overlay chunk %+v", chunks[3])
	}
}

func TestFlattenEmptyTimeline(t *testing.T) {
	engine := newFakeEngine()
	p := reassembly.New(engine)
	_, err := p.Flatten(context.Background(), timeline.Timeline{}, fastBudget(), nil)
	var empty *reassembly.EmptyTimelineError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyTimelineError, got %v", err)
	}
	if engine.last() != nil {
		t.Fatal("engine opened for empty timeline")
	}
}

func TestFlattenAppendFailure(t *testing.T) {
	for _, reject := range []bool{false, true} {
		engine := newFakeEngine()
		engine.failAppend = 1
		engine.rejectAppend = reject
		p := reassembly.New(engine)

		_, err := p.Flatten(context.Background(), buildTimeline(t), fastBudget(), nil)
		var appendErr *reassembly.AppendFailedError
		if !errors.As(err, &appendErr) {
			t.Fatalf("reject=%v: expected AppendFailedError, got %v", reject, err)
		}
		if appendErr.Index != 1 {
			t.Fatalf("reject=%v: expected index 1, got %d", reject, appendErr.Index)
		}
		if !engine.last().isClosed() {
			t.Fatalf("reject=%v: buffer not released", reject)
		}
	}
}

func TestFlattenDecoderStallIsWarning(t *testing.T) {
	engine := newFakeEngine()
	engine.noEndAck = true
	p := reassembly.New(engine)

	artifact, err := p.Flatten(context.Background(), buildTimeline(t), fastBudget(), nil)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if len(artifact.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", artifact.Warnings)
	}
	var stall *reassembly.DecoderStallWarning
	if !errors.As(artifact.Warnings[0], &stall) {
		t.Fatalf("expected DecoderStallWarning, got %v", artifact.Warnings[0])
	}
	if !engine.last().forced {
		t.Fatal("buffer was not force-finalized")
	}
}

func TestFlattenEmptyArtifact(t *testing.T) {
	engine := newFakeEngine()
	engine.silent = true
	p := reassembly.New(engine)

	_, err := p.Flatten(context.Background(), buildTimeline(t), fastBudget(), nil)
	var empty *reassembly.EmptyArtifactError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyArtifactError, got %v", err)
	}
	if empty.Chunks != 4 {
		t.Fatalf("expected 4 chunks, got %d", empty.Chunks)
	}
}

func TestFlattenWatchdogDuringCapture(t *testing.T) {
	engine := newFakeEngine()
	engine.neverEnds = true
	p := reassembly.New(engine)
	budget := fastBudget()
	budget.Overall = 100 * time.Millisecond

	_, err := p.Flatten(context.Background(), buildTimeline(t), budget, nil)
	var timeout *reassembly.CaptureTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected CaptureTimeoutError, got %v", err)
	}
	if timeout.Phase != reassembly.PhaseCapture {
		t.Fatalf("expected capture phase, got %s", timeout.Phase)
	}
	buf := engine.last()
	if !buf.isClosed() || !buf.player.recorder.isStopped() {
		t.Fatal("resources not released after timeout")
	}
}

func TestFlattenUnflushedRecorderReleasesCollector(t *testing.T) {
	engine := newFakeEngine()
	engine.unflushed = true
	p := reassembly.New(engine)
	budget := fastBudget()
	budget.Flush = 50 * time.Millisecond

	if _, err := p.Flatten(context.Background(), buildTimeline(t), budget, nil); err == nil {
		t.Fatal("expected flush failure")
	}
	rec := engine.last().player.recorder
	time.Sleep(50 * time.Millisecond)
	rec.data <- []byte("late")
	time.Sleep(50 * time.Millisecond)
	if len(rec.data) != 1 {
		t.Fatal("collector still reading recorder output after flatten returned")
	}
}

func TestFlattenCaptureLimitTruncates(t *testing.T) {
	engine := newFakeEngine()
	engine.neverEnds = true
	p := reassembly.New(engine)
	budget := fastBudget()
	budget.Capture = 50 * time.Millisecond

	artifact, err := p.Flatten(context.Background(), buildTimeline(t), budget, nil)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if artifact.Size() == 0 {
		t.Fatal("expected captured data before the limit")
	}
}

func TestFlattenCancel(t *testing.T) {
	engine := newFakeEngine()
	engine.block = make(chan struct{})
	defer close(engine.block)
	p := reassembly.New(engine)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Flatten(ctx, buildTimeline(t), fastBudget(), nil)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("flatten did not return after cancel")
	}
}

func TestFlattenSingleFlight(t *testing.T) {
	engine := newFakeEngine()
	engine.block = make(chan struct{})
	p := reassembly.New(engine)
	tl := buildTimeline(t)

	done := make(chan error, 1)
	go func() {
		_, err := p.Flatten(context.Background(), tl, fastBudget(), nil)
		done <- err
	}()
	deadline := time.Now().Add(time.Second)
	for engine.last() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := p.Flatten(context.Background(), tl, fastBudget(), nil); !errors.Is(err, reassembly.ErrFlattenInProgress) {
		t.Fatalf("expected ErrFlattenInProgress, got %v", err)
	}
	close(engine.block)
	if err := <-done; err != nil {
		t.Fatalf("first flatten: %v", err)
	}
	if _, err := p.Flatten(context.Background(), tl, fastBudget(), nil); err != nil {
		t.Fatalf("flatten after release: %v", err)
	}
}

func TestFlattenCrossProcessLock(t *testing.T) {
	dir := t.TempDir()
	tl := buildTimeline(t)

	held := flock.New(filepath.Join(dir, tl.ID()+".flatten.lock"))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("hold lock: ok=%v err=%v", ok, err)
	}
	p := reassembly.New(newFakeEngine(), reassembly.WithLockDir(dir))
	if _, err := p.Flatten(context.Background(), tl, fastBudget(), nil); !errors.Is(err, reassembly.ErrFlattenInProgress) {
		t.Fatalf("expected ErrFlattenInProgress, got %v", err)
	}
	if err := held.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	if _, err := p.Flatten(context.Background(), tl, fastBudget(), nil); err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, tl.ID()+".flatten.lock")); !os.IsNotExist(err) {
		t.Fatalf("expected lock file removed, stat err=%v", err)
	}
}

func TestFlattenSkipsEmptySegment(t *testing.T) {
	segs := []timeline.Segment{
		{ID: "a", Media: []byte("a"), Start: 0, End: time.Second},
		{ID: "b", Start: time.Second, End: 2 * time.Second},
	}
	tl, err := timeline.FromSegments("", segs, nil)
	if err != nil {
		t.Fatalf("from segments: %v", err)
	}
	artifact, err := reassembly.New(newFakeEngine()).Flatten(context.Background(), tl, fastBudget(), nil)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	var skipped *reassembly.SkippedChunkWarning
	if len(artifact.Warnings) != 1 || !errors.As(artifact.Warnings[0], &skipped) {
		t.Fatalf("expected SkippedChunkWarning, got %v", artifact.Warnings)
	}
	if skipped.SegmentID != "b" {
		t.Fatalf("expected segment b skipped, got %s", skipped.SegmentID)
	}
}
