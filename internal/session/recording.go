package session

import (
	"context"
	"time"

	"retake/internal/capture"
	"retake/internal/logging"
	"retake/internal/reassembly"
	"retake/internal/timeline"
)

// PreviewReport is the best-effort preview rendered after a delete. Err is set
// when the preview failed; editing continues either way.
type PreviewReport struct {
	Artifact *reassembly.Artifact
	Err      error
}

// DeleteSelection removes the selected range, renders a preview of the shorter
// timeline, and starts the replacement video capture. If the capture cannot
// start, the delete is rolled back and the range stays selected for a retry.
func (c *Controller) DeleteSelection(ctx context.Context) (report PreviewReport, err error) {
	c.mu.Lock()
	if c.state != StateSelecting {
		state := c.state
		c.mu.Unlock()
		return PreviewReport{}, &UnavailableError{Op: "delete", State: state}
	}
	r, ok := c.selector.Active()
	if !ok {
		c.mu.Unlock()
		return PreviewReport{}, ErrNoSelection
	}
	base := c.current
	deleted, err := base.Delete(r)
	if err != nil {
		c.mu.Unlock()
		return PreviewReport{}, err
	}
	c.current = deleted
	c.state = StatePreviewing
	opCtx, gen := c.begin(ctx)
	c.mu.Unlock()
	defer c.guard(&err, gen)

	c.logger.Info("range deleted",
		logging.String("range", r.String()),
		logging.Duration("duration", deleted.Duration()),
	)
	report = c.preview(opCtx, deleted)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return report, ErrCanceled
	}
	c.state = StateRecording
	c.mu.Unlock()

	handle, err := c.opts.Capture.Start(opCtx, capture.KindVideoAudio)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.abort(handle)
		return report, ErrCanceled
	}
	defer c.mu.Unlock()
	if err != nil {
		c.end(gen)
		c.current = base
		c.state = StateSelecting
		c.logCaptureFailure("replacement capture failed to start", err)
		return report, err
	}
	c.pending = &pendingCapture{kind: capture.KindVideoAudio, handle: handle, rng: r, base: base}
	return report, nil
}

// preview flattens tl with the preview budget. Failures are logged and
// reported but never returned as errors.
func (c *Controller) preview(ctx context.Context, tl timeline.Timeline) PreviewReport {
	if tl.IsEmpty() {
		return PreviewReport{Err: &reassembly.EmptyTimelineError{}}
	}
	artifact, err := c.opts.Pipeline.Flatten(ctx, tl, c.opts.Preview, nil)
	if err != nil {
		logging.WarnWithContext(c.logger, "preview failed", "preview_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "editing continues without a preview"),
		)
		return PreviewReport{Err: err}
	}
	return PreviewReport{Artifact: artifact}
}

// Preview renders the live timeline with the preview budget.
func (c *Controller) Preview(ctx context.Context) (artifact *reassembly.Artifact, err error) {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateSelecting {
		state := c.state
		c.mu.Unlock()
		return nil, &UnavailableError{Op: "preview", State: state}
	}
	prev := c.state
	tl := c.current
	c.state = StatePreviewing
	opCtx, gen := c.begin(ctx)
	c.mu.Unlock()
	defer c.guard(&err, gen)

	artifact, err = c.opts.Pipeline.Flatten(opCtx, tl, c.opts.Preview, nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil, ErrCanceled
	}
	c.end(gen)
	c.state = prev
	return artifact, err
}

// OverlayAudioOnSelection starts an audio-only capture for the selected
// range. The capture stops on its own at the range length.
func (c *Controller) OverlayAudioOnSelection(ctx context.Context) (err error) {
	c.mu.Lock()
	if c.state != StateSelecting {
		state := c.state
		c.mu.Unlock()
		return &UnavailableError{Op: "overlay audio", State: state}
	}
	r, ok := c.selector.Active()
	if !ok {
		c.mu.Unlock()
		return ErrNoSelection
	}
	c.state = StateRecording
	opCtx, gen := c.begin(ctx)
	c.mu.Unlock()
	defer c.guard(&err, gen)

	handle, err := c.opts.Capture.Start(opCtx, capture.KindAudioOnly, capture.WithMaxDuration(r.Len()))

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.abort(handle)
		return ErrCanceled
	}
	defer c.mu.Unlock()
	if err != nil {
		c.end(gen)
		c.state = StateSelecting
		c.logCaptureFailure("audio capture failed to start", err)
		return err
	}
	c.pending = &pendingCapture{kind: capture.KindAudioOnly, handle: handle, rng: r, base: c.current}
	c.logger.Info("audio capture started", logging.String("range", r.String()))
	return nil
}

// StopRecording stops the running capture and applies it: a video capture
// replaces the deleted range, an audio capture overlays the selected range.
// On failure the timeline is left as it was before the capture's operation
// began and the range stays selected.
func (c *Controller) StopRecording(ctx context.Context) (seg timeline.Segment, err error) {
	c.mu.Lock()
	if c.state != StateRecording || c.pending == nil {
		state := c.state
		c.mu.Unlock()
		return timeline.Segment{}, &UnavailableError{Op: "stop recording", State: state}
	}
	pending := c.pending
	if c.cancel != nil {
		c.cancel()
	}
	opCtx, gen := c.begin(ctx)
	c.mu.Unlock()
	defer c.guard(&err, gen)

	data, err := pending.handle.Stop(opCtx)
	var duration time.Duration
	if err == nil && len(data) == 0 {
		err = &capture.DeviceUnavailableError{Device: pending.kind.String(), Reason: "recording is empty"}
	}
	if err == nil {
		duration, err = c.opts.Prober.Probe(opCtx, data)
	}
	var next timeline.Timeline
	if err == nil {
		switch pending.kind {
		case capture.KindAudioOnly:
			seg = timeline.NewSegment(data, duration, timeline.TrackAudio)
			next, err = pending.base.OverlayAudio(pending.rng, seg)
		default:
			seg = timeline.NewSegment(data, duration, timeline.TrackVideo)
			next, err = pending.base.Replace(pending.rng, seg)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return timeline.Segment{}, ErrCanceled
	}
	c.end(gen)
	c.pending = nil
	if err != nil {
		c.current = pending.base
		c.state = StateSelecting
		c.logCaptureFailure("capture could not be applied", err)
		return timeline.Segment{}, err
	}
	c.current = next
	c.selector.Clear()
	c.state = StateIdle
	c.logger.Info("capture applied",
		logging.String("kind", pending.kind.String()),
		logging.String("range", pending.rng.String()),
		logging.Duration("capture_duration", duration),
		logging.Duration("duration", next.Duration()),
	)
	if pending.kind == capture.KindAudioOnly {
		seg = placed(next.Overlays(), seg.ID, seg)
	} else {
		seg = placed(next.Segments(), seg.ID, seg)
	}
	return seg, nil
}

// placed returns the stamped copy of seg from segs.
func placed(segs []timeline.Segment, id string, fallback timeline.Segment) timeline.Segment {
	for _, s := range segs {
		if s.ID == id {
			return s
		}
	}
	return fallback
}

// ReplaceSelectionWithCapture deletes the selection, records for recordFor
// (the selection length when zero), and applies the capture.
func (c *Controller) ReplaceSelectionWithCapture(ctx context.Context, recordFor time.Duration) (timeline.Segment, PreviewReport, error) {
	r, ok := c.selector.Active()
	if !ok {
		return timeline.Segment{}, PreviewReport{}, ErrNoSelection
	}
	if recordFor <= 0 {
		recordFor = r.Len()
	}
	report, err := c.DeleteSelection(ctx)
	if err != nil {
		return timeline.Segment{}, report, err
	}
	timer := time.NewTimer(recordFor)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		c.Cancel()
		return timeline.Segment{}, report, ctx.Err()
	}
	seg, err := c.StopRecording(ctx)
	return seg, report, err
}

func (c *Controller) logCaptureFailure(msg string, err error) {
	logging.WarnWithContext(c.logger, msg, "capture_failed",
		logging.Error(err),
		logging.String("error_kind", ErrorKind(err)),
		logging.String(logging.FieldImpact, "the timeline is unchanged; retry the capture"),
		logging.String(logging.FieldErrorHint, "check capture device permissions and configuration"),
	)
}
