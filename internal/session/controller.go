package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"retake/internal/capture"
	"retake/internal/logging"
	"retake/internal/notes"
	"retake/internal/reassembly"
	"retake/internal/selection"
	"retake/internal/submission"
	"retake/internal/timeline"
)

// Flattener renders a timeline into one artifact.
type Flattener interface {
	Flatten(ctx context.Context, tl timeline.Timeline, budget reassembly.Budget, progress reassembly.ProgressFunc) (*reassembly.Artifact, error)
}

// Prober measures the duration of a captured payload.
type Prober interface {
	Probe(ctx context.Context, payload []byte) (time.Duration, error)
}

// Saver persists a finalized artifact with its notes.
type Saver interface {
	Save(ctx context.Context, upload submission.Upload, list []notes.Note) (string, error)
}

// Options wires a Controller to its collaborators.
type Options struct {
	Pipeline Flattener
	Capture  capture.Adapter
	Prober   Prober
	Saver    Saver
	Logger   *slog.Logger
	// SourceName names the original recording for the stored artifact.
	SourceName string
	// Window is the default selection length.
	Window  time.Duration
	Preview reassembly.Budget
	Export  reassembly.Budget
}

// Progress is reported during Finalize. Percent is negative when unknown.
type Progress struct {
	Message string
	Percent float64
}

// ProgressFunc receives finalize progress.
type ProgressFunc func(Progress)

// pendingCapture is the capture started by DeleteSelection or
// OverlayAudioOnSelection and consumed by StopRecording.
type pendingCapture struct {
	kind   capture.Kind
	handle capture.Handle
	rng    timeline.Range
	// base is the timeline before the delete; the replacement is applied to it.
	base timeline.Timeline
}

// Controller is the edit session state machine.
type Controller struct {
	opts   Options
	logger *slog.Logger

	selector *selection.Selector
	notes    *notes.Store

	mu       sync.Mutex
	state    State
	original timeline.Timeline
	current  timeline.Timeline
	position time.Duration
	pending  *pendingCapture
	cancel   context.CancelFunc
	// gen advances on Cancel, Reset, and RerecordEntirely so long operations
	// can tell that the state they started from is gone.
	gen uint64
}

// New builds a controller editing original.
func New(original timeline.Timeline, opts Options) (*Controller, error) {
	if err := original.Validate(); err != nil {
		return nil, err
	}
	if opts.Pipeline == nil {
		return nil, errors.New("session requires a flatten pipeline")
	}
	if opts.Capture == nil {
		return nil, errors.New("session requires a capture adapter")
	}
	if opts.Prober == nil {
		return nil, errors.New("session requires a prober")
	}
	if opts.Preview.Name == "" {
		opts.Preview = reassembly.PreviewBudget()
	}
	if opts.Export.Name == "" {
		opts.Export = reassembly.ExportBudget()
	}
	return &Controller{
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "session"),
		selector: selection.New(opts.Window),
		notes:    notes.NewStore(),
		original: original,
		current:  original,
	}, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Timeline returns the live timeline.
func (c *Controller) Timeline() timeline.Timeline {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Duration returns the live timeline duration.
func (c *Controller) Duration() time.Duration {
	return c.Timeline().Duration()
}

// Segments returns a copy of the live video segments.
func (c *Controller) Segments() []timeline.Segment {
	return c.Timeline().Segments()
}

// Overlays returns a copy of the live audio overlays.
func (c *Controller) Overlays() []timeline.Segment {
	return c.Timeline().Overlays()
}

// Selection returns the active range.
func (c *Controller) Selection() (timeline.Range, bool) {
	return c.selector.Active()
}

// Window returns the default selection length.
func (c *Controller) Window() time.Duration {
	return c.selector.Window()
}

// SelectRange opens the default window at at.
func (c *Controller) SelectRange(at time.Duration) (timeline.Range, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle && c.state != StateSelecting {
		return timeline.Range{}, &UnavailableError{Op: "select", State: c.state}
	}
	r, err := c.selector.Select(at, c.current.Duration())
	if err != nil {
		return timeline.Range{}, err
	}
	c.state = StateSelecting
	c.logger.Debug("range selected", logging.String("range", r.String()))
	return r, nil
}

// AdjustRange replaces the active range with r.
func (c *Controller) AdjustRange(r timeline.Range) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle && c.state != StateSelecting {
		return &UnavailableError{Op: "adjust", State: c.state}
	}
	if err := c.selector.Adjust(r, c.current.Duration()); err != nil {
		return err
	}
	c.state = StateSelecting
	return nil
}

// ClearRange drops the active range.
func (c *Controller) ClearRange() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle && c.state != StateSelecting {
		return &UnavailableError{Op: "clear", State: c.state}
	}
	c.selector.Clear()
	c.state = StateIdle
	return nil
}

// Seek moves the playback position notes are taken at.
func (c *Controller) Seek(at time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	duration := c.current.Duration()
	if at < 0 || at > duration {
		return &timeline.InvalidRangeError{
			Range:    timeline.Range{Start: at, End: at},
			Duration: duration,
			Reason:   "position outside the timeline",
		}
	}
	c.position = at
	return nil
}

// Position returns the playback position.
func (c *Controller) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// AddNote records text at the current position. Notes keep their timestamp
// through later edits.
func (c *Controller) AddNote(text string) (notes.Note, error) {
	note, err := c.notes.Add(c.Position(), text)
	if err != nil {
		return notes.Note{}, err
	}
	c.logger.Debug("note added", logging.String("at", notes.FormatClock(note.Timestamp)))
	return note, nil
}

// ListNotes returns the notes ordered by timestamp.
func (c *Controller) ListNotes() []notes.Note {
	return c.notes.Ordered()
}

// NotesAt returns the notes displayed at playback position at.
func (c *Controller) NotesAt(at time.Duration) []notes.Note {
	return c.notes.At(at)
}

// begin installs a cancelable context for a long operation. Callers hold mu.
func (c *Controller) begin(ctx context.Context) (context.Context, uint64) {
	opCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return opCtx, c.gen
}

// end clears the operation context if gen is still current. Callers hold mu.
func (c *Controller) end(gen uint64) {
	if gen != c.gen {
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Cancel returns to Idle from any state. It discards the active range, aborts
// an in-flight flatten, and stops any running capture. A delete already
// applied stays applied.
func (c *Controller) Cancel() {
	c.mu.Lock()
	handle := c.abandonLocked()
	c.mu.Unlock()
	c.abort(handle)
}

// abandonLocked tears down the current operation and returns a capture handle
// to abort once mu is released.
func (c *Controller) abandonLocked() capture.Handle {
	prev := c.state
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	var handle capture.Handle
	if c.pending != nil {
		handle = c.pending.handle
		c.pending = nil
	}
	c.selector.Clear()
	c.state = StateIdle
	if prev != StateIdle {
		c.logger.Info("operation canceled", logging.String("from", prev.String()))
	}
	return handle
}

func (c *Controller) abort(handle capture.Handle) {
	if handle == nil {
		return
	}
	if err := handle.Abort(); err != nil {
		c.logger.Warn("abort capture failed", logging.Error(err))
	}
}

// Reset cancels any operation and restores the original recording. Notes and
// the playback position are cleared.
func (c *Controller) Reset() {
	c.mu.Lock()
	handle := c.abandonLocked()
	c.current = c.original
	c.position = 0
	c.notes.Reset()
	c.mu.Unlock()
	c.abort(handle)
	c.logger.Info("editor reset to the original recording",
		logging.Duration("duration", c.original.Duration()),
	)
}

// RerecordEntirely replaces the recording wholesale. The new timeline starts
// a new lineage and becomes the reset target. Other operations are
// unavailable while the recording is probed; on failure the previous state is
// restored.
func (c *Controller) RerecordEntirely(ctx context.Context, media []byte) (err error) {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateSelecting {
		state := c.state
		c.mu.Unlock()
		return &UnavailableError{Op: "re-record", State: state}
	}
	prev := c.state
	c.state = StateLoading
	opCtx, gen := c.begin(ctx)
	c.mu.Unlock()
	defer c.guard(&err, gen)

	tl, err := c.probeTimeline(opCtx, media)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return ErrCanceled
	}
	c.end(gen)
	if err != nil {
		c.state = prev
		c.mu.Unlock()
		return err
	}
	var handle capture.Handle
	if c.pending != nil {
		handle = c.pending.handle
		c.pending = nil
	}
	c.selector.Clear()
	c.state = StateIdle
	c.original = tl
	c.current = tl
	c.position = 0
	c.notes.Reset()
	c.mu.Unlock()
	c.abort(handle)

	c.logger.Info("recording replaced",
		logging.String(logging.FieldTimelineID, tl.ID()),
		logging.Duration("duration", tl.Duration()),
	)
	return nil
}

func (c *Controller) probeTimeline(ctx context.Context, media []byte) (timeline.Timeline, error) {
	if len(media) == 0 {
		return timeline.Timeline{}, &capture.DeviceUnavailableError{Device: "recording", Reason: "recording is empty"}
	}
	duration, err := c.opts.Prober.Probe(ctx, media)
	if err != nil {
		return timeline.Timeline{}, err
	}
	return timeline.New(media, duration)
}

// guard converts a panic in a long operation into ErrUnexpectedFailure and
// returns the controller to Idle.
func (c *Controller) guard(errp *error, gen uint64) {
	r := recover()
	if r == nil {
		return
	}
	c.mu.Lock()
	var handle capture.Handle
	if gen == c.gen {
		handle = c.abandonLocked()
	}
	c.mu.Unlock()
	c.abort(handle)
	c.logger.Error("operation panicked",
		logging.Any("panic", r),
		logging.String(logging.FieldEventType, "session_panic"),
		logging.String(logging.FieldImpact, "the editor returned to idle"),
	)
	*errp = ErrUnexpectedFailure
}
