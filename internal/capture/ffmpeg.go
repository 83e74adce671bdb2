package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"retake/internal/logging"
)

const (
	defaultStopTimeout = 10 * time.Second
	defaultStartGrace  = 500 * time.Millisecond
	stderrTail         = 2048
)

// FFmpegConfig describes the capture devices and encoders.
type FFmpegConfig struct {
	Binary      string
	VideoFormat string
	VideoInput  string
	AudioFormat string
	AudioInput  string
	VideoCodec  string
	AudioCodec  string
	// TempDir receives in-progress recordings; empty uses os.TempDir.
	TempDir     string
	StopTimeout time.Duration
	// StartGrace is how long Start waits for ffmpeg to fail on device open.
	StartGrace  time.Duration
}

// FFmpegAdapter records from local devices with ffmpeg.
type FFmpegAdapter struct {
	cfg    FFmpegConfig
	logger *slog.Logger
}

// NewFFmpegAdapter constructs an adapter, filling defaults.
func NewFFmpegAdapter(cfg FFmpegConfig, logger *slog.Logger) *FFmpegAdapter {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.VideoCodec == "" {
		cfg.VideoCodec = "libvpx"
	}
	if cfg.AudioCodec == "" {
		cfg.AudioCodec = "libopus"
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	if cfg.StartGrace <= 0 {
		cfg.StartGrace = defaultStartGrace
	}
	return &FFmpegAdapter{cfg: cfg, logger: logging.NewComponentLogger(logger, "capture")}
}

// Args returns the ffmpeg arguments for a capture into output.
func (a *FFmpegAdapter) Args(kind Kind, output string, withAudio bool, opts StartOptions) []string {
	var inputs []*ffmpeg.Stream
	if kind == KindVideoAudio {
		inputs = append(inputs, ffmpeg.Input(a.cfg.VideoInput, formatArgs(a.cfg.VideoFormat)))
	}
	if withAudio {
		inputs = append(inputs, ffmpeg.Input(a.cfg.AudioInput, formatArgs(a.cfg.AudioFormat)))
	}

	out := ffmpeg.KwArgs{"f": "webm"}
	if kind == KindVideoAudio {
		out["c:v"] = a.cfg.VideoCodec
	}
	if withAudio {
		out["c:a"] = a.cfg.AudioCodec
	}
	if opts.MaxDuration > 0 {
		out["t"] = strconv.FormatFloat(opts.MaxDuration.Seconds(), 'f', 3, 64)
	}
	return ffmpeg.Output(inputs, output, out).OverWriteOutput().GetArgs()
}

func formatArgs(format string) ffmpeg.KwArgs {
	if strings.TrimSpace(format) == "" {
		return ffmpeg.KwArgs{}
	}
	return ffmpeg.KwArgs{"f": format}
}

// Start launches ffmpeg. A video capture whose microphone fails to open is
// retried once without audio.
func (a *FFmpegAdapter) Start(ctx context.Context, kind Kind, opts ...StartOption) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	options := resolveOptions(opts)
	withAudio := strings.TrimSpace(a.cfg.AudioInput) != ""

	switch kind {
	case KindVideoAudio:
		if strings.TrimSpace(a.cfg.VideoInput) == "" {
			return nil, &DeviceUnavailableError{Device: "video", Reason: "no video input configured"}
		}
		if !withAudio {
			a.warnVideoOnly("no audio input configured")
		}
	case KindAudioOnly:
		if !withAudio {
			return nil, &DeviceUnavailableError{Device: "audio", Reason: "no audio input configured"}
		}
	default:
		return nil, fmt.Errorf("unsupported capture kind %s", kind)
	}

	h, err := a.launch(kind, withAudio, options)
	if err != nil && kind == KindVideoAudio && withAudio && a.audioFailed(err) {
		a.warnVideoOnly(err.Error())
		h, err = a.launch(kind, false, options)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (a *FFmpegAdapter) warnVideoOnly(reason string) {
	logging.WarnWithContext(a.logger, "microphone unavailable; recording video only", "capture_audio_unavailable",
		logging.String("reason", reason),
		logging.String(logging.FieldImpact, "the replacement has no audio"),
		logging.String(logging.FieldErrorHint, "check capture.audio_input and microphone permissions"),
	)
}

func (a *FFmpegAdapter) audioFailed(err error) bool {
	var device interface{ device() string }
	if !errors.As(err, &device) {
		return false
	}
	return device.device() == a.cfg.AudioInput
}

func (a *FFmpegAdapter) launch(kind Kind, withAudio bool, opts StartOptions) (*ffmpegHandle, error) {
	f, err := os.CreateTemp(a.cfg.TempDir, "retake-capture-*.webm")
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	output := f.Name()
	_ = f.Close()

	args := a.Args(kind, output, withAudio, opts)
	cmd := exec.Command(a.cfg.Binary, args...)
	cmd.WaitDelay = time.Second
	stdin, err := cmd.StdinPipe()
	if err != nil {
		_ = os.Remove(output)
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	h := &ffmpegHandle{
		adapter: a,
		kind:    kind,
		output:  output,
		cmd:     cmd,
		stdin:   stdin,
		exited:  make(chan struct{}),
	}
	cmd.Stderr = &h.stderr

	if err := cmd.Start(); err != nil {
		_ = os.Remove(output)
		switch {
		case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
			return nil, &DeviceUnavailableError{Device: "ffmpeg", Reason: "ffmpeg binary not found", Err: err}
		case errors.Is(err, fs.ErrPermission):
			return nil, &PermissionDeniedError{Device: "ffmpeg", Err: err}
		}
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.exited)
	}()

	select {
	case <-h.exited:
		_ = os.Remove(output)
		return nil, a.classify(kind, h.stderrText(), h.waitErr)
	case <-time.After(a.cfg.StartGrace):
	}
	a.logger.Info("capture started",
		logging.String("kind", kind.String()),
		logging.Bool("audio", withAudio),
		logging.String("output", output),
	)
	return h, nil
}

// deviceError tags classified errors with the input that failed.
type deviceError struct {
	error
	input string
}

func (e *deviceError) Unwrap() error  { return e.error }
func (e *deviceError) device() string { return e.input }

// classify maps ffmpeg stderr to capture errors.
func (a *FFmpegAdapter) classify(kind Kind, stderr string, waitErr error) error {
	input := a.cfg.VideoInput
	if kind == KindAudioOnly || (a.cfg.AudioInput != "" && strings.Contains(stderr, a.cfg.AudioInput)) {
		input = a.cfg.AudioInput
	}
	lower := strings.ToLower(stderr)
	var err error
	switch {
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "operation not permitted"):
		err = &PermissionDeniedError{Device: input, Err: errors.New(lastLine(stderr))}
	default:
		reason := lastLine(stderr)
		if reason == "" && waitErr != nil {
			reason = waitErr.Error()
		}
		err = &DeviceUnavailableError{Device: input, Reason: reason, Err: waitErr}
	}
	return &deviceError{error: err, input: input}
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

type ffmpegHandle struct {
	adapter *FFmpegAdapter
	kind    Kind
	output  string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  lockedBuffer
	exited  chan struct{}
	waitErr error

	mu     sync.Mutex
	closed bool
}

func (h *ffmpegHandle) Kind() Kind { return h.kind }

func (h *ffmpegHandle) claim() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.closed = true
	return true
}

func (h *ffmpegHandle) stderrText() string {
	text := h.stderr.String()
	if len(text) > stderrTail {
		text = text[len(text)-stderrTail:]
	}
	return text
}

// Stop asks ffmpeg to finish with "q" and waits up to the stop timeout.
func (h *ffmpegHandle) Stop(ctx context.Context) ([]byte, error) {
	if !h.claim() {
		return nil, ErrHandleClosed
	}
	defer os.Remove(h.output)

	_, _ = io.WriteString(h.stdin, "q\n")
	_ = h.stdin.Close()

	timeout := h.adapter.cfg.StopTimeout
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.exited:
	case <-timer.C:
		h.kill()
		return nil, &StopTimeoutError{Kind: h.kind, After: timeout}
	case <-ctx.Done():
		h.kill()
		return nil, ctx.Err()
	}

	data, err := os.ReadFile(h.output)
	if err != nil {
		return nil, fmt.Errorf("read capture: %w", err)
	}
	if len(data) == 0 {
		return nil, h.adapter.classify(h.kind, h.stderrText(), h.waitErr)
	}
	if h.waitErr != nil {
		h.adapter.logger.Debug("ffmpeg exited with error after stop", logging.Error(h.waitErr))
	}
	h.adapter.logger.Info("capture stopped", logging.String("kind", h.kind.String()), logging.Int("bytes", len(data)))
	return data, nil
}

// Abort kills ffmpeg and removes the partial recording.
func (h *ffmpegHandle) Abort() error {
	if !h.claim() {
		return nil
	}
	_ = h.stdin.Close()
	h.kill()
	h.adapter.logger.Debug("capture aborted", logging.String("kind", h.kind.String()))
	if err := os.Remove(h.output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (h *ffmpegHandle) kill() {
	if h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
	}
	<-h.exited
}

// lockedBuffer is written by the exec copy goroutine and read on failure.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
