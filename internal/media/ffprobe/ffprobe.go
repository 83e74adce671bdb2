package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNoDuration is returned when neither the container nor any stream reports
// a duration.
var ErrNoDuration = errors.New("ffprobe reported no duration")

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
	raw     []byte
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Duration   string `json:"duration"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	result.raw = append([]byte(nil), output...)
	return result, nil
}

// RawJSON returns the raw ffprobe JSON payload.
func (r Result) RawJSON() []byte {
	return append([]byte(nil), r.raw...)
}

// HasVideo reports whether any video stream was found.
func (r Result) HasVideo() bool {
	return r.streamCount("video") > 0
}

// HasAudio reports whether any audio stream was found.
func (r Result) HasAudio() bool {
	return r.streamCount("audio") > 0
}

func (r Result) streamCount(codecType string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, codecType) {
			count++
		}
	}
	return count
}

// Duration returns the container duration, falling back to the longest
// stream duration.
func (r Result) Duration() (time.Duration, error) {
	seconds := parseFloat(r.Format.Duration)
	if !(seconds > 0) {
		seconds = 0
		for _, stream := range r.Streams {
			if v := parseFloat(stream.Duration); v > seconds {
				seconds = v
			}
		}
	}
	if seconds <= 0 {
		return 0, ErrNoDuration
	}
	return time.Duration(math.Round(seconds * float64(time.Second))), nil
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || strings.EqualFold(cleaned, "N/A") {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

// Prober measures payload durations with an external ffprobe binary.
type Prober struct {
	Binary string
	// TempDir holds the spooled payloads; empty uses os.TempDir.
	TempDir string
}

// Probe writes payload to a temp file, inspects it, and removes the file.
func (p Prober) Probe(ctx context.Context, payload []byte) (time.Duration, error) {
	if len(payload) == 0 {
		return 0, errors.New("ffprobe probe: empty payload")
	}
	f, err := os.CreateTemp(p.TempDir, "retake-probe-*.webm")
	if err != nil {
		return 0, fmt.Errorf("ffprobe probe: spool payload: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := f.Write(payload); err != nil {
		f.Close()
		return 0, fmt.Errorf("ffprobe probe: spool payload: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("ffprobe probe: spool payload: %w", err)
	}

	result, err := Inspect(ctx, p.Binary, path)
	if err != nil {
		return 0, err
	}
	return result.Duration()
}
