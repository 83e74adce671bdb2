package reassembly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"retake/internal/logging"
	"retake/internal/timeline"
)

var errWatchdog = errors.New("flatten watchdog expired")

// Artifact is the flattened output.
type Artifact struct {
	Data     []byte
	Chunks   int
	Elapsed  time.Duration
	Warnings []error
}

// Size returns the artifact length in bytes.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// Pipeline flattens timelines through an Engine.
type Pipeline struct {
	engine  Engine
	logger  *slog.Logger
	lockDir string

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLockDir enables a cross-process lock file per timeline lineage under dir.
func WithLockDir(dir string) Option {
	return func(p *Pipeline) {
		p.lockDir = dir
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New constructs a pipeline driving engine.
func New(engine Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:   engine,
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "reassembly")
	return p
}

// Chunks lays a timeline out as the ordered append sequence: video segments
// first, then audio overlays.
func Chunks(tl timeline.Timeline) []Chunk {
	segments := tl.Segments()
	overlays := tl.Overlays()
	chunks := make([]Chunk, 0, len(segments)+len(overlays))
	for _, seg := range segments {
		chunks = append(chunks, chunkFor(len(chunks), seg, ChunkSegment))
	}
	for _, ov := range overlays {
		chunks = append(chunks, chunkFor(len(chunks), ov, ChunkAudioOverlay))
	}
	return chunks
}

func chunkFor(index int, seg timeline.Segment, kind ChunkKind) Chunk {
	return Chunk{
		Index:     index,
		SegmentID: seg.ID,
		Kind:      kind,
		Payload:   seg.Media,
		Window:    timeline.Range{Start: seg.MediaOffset, End: seg.MediaOffset + seg.Duration()},
		Offset:    seg.Start,
	}
}

// Flatten renders tl into a single artifact. It never mutates tl.
func (p *Pipeline) Flatten(ctx context.Context, tl timeline.Timeline, budget Budget, progress ProgressFunc) (*Artifact, error) {
	if tl.IsEmpty() {
		return nil, &EmptyTimelineError{}
	}
	if p.engine == nil {
		return nil, errors.New("reassembly pipeline has no engine")
	}
	budget = budget.normalized()

	key := tl.ID()
	if key == "" {
		key = "default"
	}
	release, err := p.acquire(key)
	if err != nil {
		return nil, err
	}
	defer release()

	logger := p.logger.With(
		logging.String(logging.FieldTimelineID, key),
		logging.String("budget", budget.Name),
	)

	ctx, cancel := context.WithTimeoutCause(ctx, budget.Overall, errWatchdog)
	defer cancel()

	run := &flattenRun{
		budget:   budget,
		logger:   logger,
		progress: progress,
		started:  time.Now(),
		phase:    PhaseOpen,
	}
	artifact, err := run.execute(ctx, p.engine, Chunks(tl))
	if err != nil {
		if timeoutErr := run.timeout(ctx); timeoutErr != nil {
			err = timeoutErr
		}
		logging.WarnWithContext(logger, "flatten failed", "flatten_failed",
			logging.String(logging.FieldPhase, string(run.phase)),
			logging.Duration("elapsed", time.Since(run.started)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "timeline was not flattened; the edit is unchanged"),
		)
		return nil, err
	}
	logger.Info("flatten complete",
		logging.Int("chunks", artifact.Chunks),
		logging.Int("artifact_bytes", artifact.Size()),
		logging.Int("warnings", len(artifact.Warnings)),
		logging.Duration("elapsed", artifact.Elapsed),
	)
	return artifact, nil
}

// acquire enforces single-flight per lineage key.
func (p *Pipeline) acquire(key string) (func(), error) {
	p.mu.Lock()
	if _, busy := p.inflight[key]; busy {
		p.mu.Unlock()
		return nil, ErrFlattenInProgress
	}
	p.inflight[key] = struct{}{}
	p.mu.Unlock()

	releaseLocal := func() {
		p.mu.Lock()
		delete(p.inflight, key)
		p.mu.Unlock()
	}
	if p.lockDir == "" {
		return releaseLocal, nil
	}

	if err := os.MkdirAll(p.lockDir, 0o755); err != nil {
		releaseLocal()
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	lock := flock.New(filepath.Join(p.lockDir, key+".flatten.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		releaseLocal()
		return nil, fmt.Errorf("acquire flatten lock: %w", err)
	}
	if !ok {
		releaseLocal()
		return nil, ErrFlattenInProgress
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("release flatten lock failed", logging.Error(err))
		}
		_ = os.Remove(lock.Path())
		releaseLocal()
	}, nil
}

// flattenRun holds the state of one Flatten call.
type flattenRun struct {
	budget   Budget
	logger   *slog.Logger
	progress ProgressFunc
	started  time.Time
	phase    Phase
	warnings []error
}

func (r *flattenRun) enter(phase Phase, percent float64, message string) {
	r.phase = phase
	r.logger.Debug("flatten phase", logging.String(logging.FieldPhase, string(phase)), logging.String("message", message))
	r.progress.emit(phase, percent, message)
}

func (r *flattenRun) warn(w error, eventType, impact string) {
	r.warnings = append(r.warnings, w)
	logging.WarnWithContext(r.logger, "flatten warning", eventType,
		logging.String(logging.FieldPhase, string(r.phase)),
		logging.String("warning", w.Error()),
		logging.String(logging.FieldImpact, impact),
	)
}

// timeout converts a watchdog expiry into CaptureTimeoutError.
func (r *flattenRun) timeout(ctx context.Context) error {
	if ctx.Err() != nil && errors.Is(context.Cause(ctx), errWatchdog) {
		return &CaptureTimeoutError{Phase: r.phase, After: r.budget.Overall}
	}
	return nil
}

func (r *flattenRun) execute(ctx context.Context, engine Engine, chunks []Chunk) (*Artifact, error) {
	r.enter(PhaseOpen, 0, "Preparing video segments...")
	buf, err := engine.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open decode buffer: %w", err)
	}
	defer func() {
		if cerr := buf.Close(); cerr != nil {
			r.logger.Debug("close decode buffer", logging.Error(cerr))
		}
	}()

	appended := 0
	for i, chunk := range chunks {
		r.enter(PhaseAppend, 50*float64(i)/float64(len(chunks)),
			fmt.Sprintf("Processing segment %d of %d", i+1, len(chunks)))
		if len(chunk.Payload) == 0 {
			r.warn(&SkippedChunkWarning{Index: chunk.Index, SegmentID: chunk.SegmentID},
				"segment_skipped", "the segment is missing from the flattened output")
			continue
		}
		if err := buf.Append(chunk); err != nil {
			return nil, &AppendFailedError{Index: chunk.Index, SegmentID: chunk.SegmentID, Err: err}
		}
		select {
		case err := <-buf.Updates():
			if err != nil {
				return nil, &AppendFailedError{Index: chunk.Index, SegmentID: chunk.SegmentID, Err: err}
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		appended++
	}
	if appended == 0 {
		return nil, &EmptyTimelineError{}
	}

	r.enter(PhaseEndOfStream, 50, "Finalizing video...")
	if err := r.endOfStream(ctx, buf); err != nil {
		return nil, err
	}

	r.enter(PhaseCapture, 50, "Recording processed video...")
	data, err := r.capture(ctx, buf.Player())
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &EmptyArtifactError{Chunks: appended}
	}
	r.enter(PhaseDone, 100, "Video ready")
	return &Artifact{
		Data:     data,
		Chunks:   appended,
		Elapsed:  time.Since(r.started),
		Warnings: r.warnings,
	}, nil
}

// endOfStream signals end of input and force-finalizes on a stall.
func (r *flattenRun) endOfStream(ctx context.Context, buf Buffer) error {
	if err := buf.EndOfStream(); err != nil {
		r.logger.Debug("end of stream rejected; forcing", logging.Error(err))
		r.forceEnd(buf)
		return nil
	}
	timer := time.NewTimer(r.budget.EndOfStream)
	defer timer.Stop()
	select {
	case <-buf.Ended():
		return nil
	case <-timer.C:
		r.warn(&DecoderStallWarning{Waited: r.budget.EndOfStream},
			"decoder_stall", "output may end abruptly")
		r.forceEnd(buf)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *flattenRun) forceEnd(buf Buffer) {
	if err := buf.ForceEnd(); err != nil {
		r.logger.Debug("force end of stream", logging.Error(err))
	}
}

// capture plays the buffer from zero and records until end of media, the
// capture budget, or the watchdog.
func (r *flattenRun) capture(ctx context.Context, player Player) ([]byte, error) {
	if player == nil {
		return nil, errors.New("decode buffer has no player")
	}
	rec, err := player.Capture()
	if err != nil {
		return nil, fmt.Errorf("attach recorder: %w", err)
	}

	var (
		out       bytes.Buffer
		collected = make(chan struct{})
		quit      = make(chan struct{})
	)
	defer close(quit)
	go func() {
		defer close(collected)
		data := rec.Data()
		for {
			select {
			case chunk, ok := <-data:
				if !ok {
					return
				}
				out.Write(chunk)
			case <-quit:
				return
			}
		}
	}()

	stopped := false
	stop := func() {
		if stopped {
			return
		}
		stopped = true
		if err := rec.Stop(); err != nil {
			r.logger.Debug("stop recorder", logging.Error(err))
		}
	}
	defer stop()

	if err := player.Seek(0); err != nil {
		return nil, fmt.Errorf("seek to start: %w", err)
	}
	if err := player.Play(ctx); err != nil {
		return nil, fmt.Errorf("start playback: %w", err)
	}

	var limit <-chan time.Time
	if r.budget.Capture > 0 {
		timer := time.NewTimer(r.budget.Capture)
		defer timer.Stop()
		limit = timer.C
	}
	select {
	case <-player.Ended():
	case <-limit:
		logging.WarnWithContext(r.logger, "capture limit reached; stopping recorder", "capture_limit",
			logging.Duration("limit", r.budget.Capture),
			logging.String(logging.FieldImpact, "the artifact is truncated at the capture limit"),
		)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	stop()

	flush := time.NewTimer(r.budget.Flush)
	defer flush.Stop()
	select {
	case <-collected:
	case <-flush.C:
		return nil, errors.New("recorder did not flush after stop")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return out.Bytes(), nil
}
