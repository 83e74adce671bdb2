package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"retake/internal/logging"
	"retake/internal/reassembly"
	"retake/internal/submission"
)

// Result describes a finalized submission.
type Result struct {
	SubmissionID  string
	ArtifactBytes int
	Duration      time.Duration
	Notes         int
	Elapsed       time.Duration
	Warnings      []error
}

// Finalize flattens the live timeline with the export budget and saves the
// artifact with the notes. Failures leave the timeline unchanged and return a
// *FinalizeError; ResetOffered is set unless the failure was a cancellation.
func (c *Controller) Finalize(ctx context.Context, progress ProgressFunc) (result Result, err error) {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return Result{}, &UnavailableError{Op: "finalize", State: state}
	}
	if c.opts.Saver == nil {
		c.mu.Unlock()
		return Result{}, errors.New("session has no submission store")
	}
	tl := c.current
	c.state = StateFinalizing
	opCtx, gen := c.begin(ctx)
	c.mu.Unlock()
	defer c.guard(&err, gen)

	logger := c.logger.With(logging.String(logging.FieldTimelineID, tl.ID()))
	sampler := logging.NewProgressSampler(25)
	report := func(p reassembly.Progress) {
		if sampler.ShouldLog(p.Percent, string(p.Phase)) {
			logger.Debug("finalize progress",
				logging.String(logging.FieldProgressPhase, string(p.Phase)),
				logging.Float64(logging.FieldProgressPercent, p.Percent),
				logging.String(logging.FieldProgressMessage, p.Message),
			)
		}
		if progress != nil {
			progress(Progress{Message: p.Message, Percent: p.Percent})
		}
	}

	started := time.Now()
	artifact, err := c.opts.Pipeline.Flatten(opCtx, tl, c.opts.Export, report)
	var id string
	list := c.notes.Ordered()
	if err == nil {
		if progress != nil {
			progress(Progress{Message: "saving submission", Percent: -1})
		}
		id, err = c.opts.Saver.Save(opCtx, submission.Upload{
			TimelineID: tl.ID(),
			SourceName: c.opts.SourceName,
			Data:       artifact.Data,
			Duration:   tl.Duration(),
		}, list)
		if err != nil {
			err = fmt.Errorf("save submission: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return Result{}, &FinalizeError{Err: ErrCanceled}
	}
	c.end(gen)
	c.state = StateIdle
	if err != nil {
		canceled := errors.Is(err, context.Canceled)
		logging.ErrorWithContext(logger, "finalize failed", "finalize_failed",
			logging.Error(err),
			logging.String("error_kind", ErrorKind(err)),
			logging.String(logging.FieldImpact, "nothing was submitted; the edit is unchanged"),
			logging.String(logging.FieldErrorHint, "retry, or reset the editor to the original recording"),
		)
		return Result{}, &FinalizeError{Err: err, ResetOffered: !canceled}
	}

	result = Result{
		SubmissionID:  id,
		ArtifactBytes: artifact.Size(),
		Duration:      tl.Duration(),
		Notes:         len(list),
		Elapsed:       time.Since(started),
		Warnings:      artifact.Warnings,
	}
	logger.Info("submission saved",
		logging.String(logging.FieldSubmissionID, id),
		logging.Int("artifact_bytes", result.ArtifactBytes),
		logging.Int("notes", result.Notes),
		logging.Duration("elapsed", result.Elapsed),
	)
	if progress != nil {
		progress(Progress{Message: "submitted", Percent: 100})
	}
	return result, nil
}
