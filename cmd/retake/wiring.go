package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"retake/internal/capture"
	"retake/internal/config"
	"retake/internal/media/ffprobe"
	"retake/internal/media/webm"
	"retake/internal/reassembly"
	"retake/internal/session"
	"retake/internal/timeline"
)

func newProber(cfg *config.Config) session.Prober {
	if cfg.Capture.Prober == "ffprobe" {
		return ffprobe.Prober{Binary: cfg.Capture.FFprobeBinary, TempDir: cfg.Paths.StagingDir}
	}
	return webm.Prober{}
}

func newPipeline(cfg *config.Config, logger *slog.Logger) *reassembly.Pipeline {
	engine := webm.NewEngine(
		webm.WithRealtime(cfg.Pipeline.Realtime),
		webm.WithChunkBytes(cfg.Pipeline.ChunkBytes),
		webm.WithLogger(logger),
	)
	return reassembly.New(engine,
		reassembly.WithLockDir(cfg.Paths.StagingDir),
		reassembly.WithLogger(logger),
	)
}

func previewBudget(cfg *config.Config) reassembly.Budget {
	b := reassembly.PreviewBudget()
	b.Overall = cfg.Pipeline.PreviewTimeout()
	b.EndOfStream = cfg.Pipeline.EndOfStreamTimeout()
	return b
}

func exportBudget(cfg *config.Config) reassembly.Budget {
	b := reassembly.ExportBudget()
	b.Overall = cfg.Pipeline.ExportTimeout()
	b.EndOfStream = cfg.Pipeline.EndOfStreamTimeout()
	b.Capture = cfg.Pipeline.CaptureTimeout()
	return b
}

// newAdapter returns the configured capture adapter. The file adapter is
// returned separately so the editor can queue prepared recordings on it.
func newAdapter(cfg *config.Config, logger *slog.Logger) (capture.Adapter, *capture.FileAdapter) {
	if cfg.Capture.Adapter == "ffmpeg" {
		return capture.NewFFmpegAdapter(capture.FFmpegConfig{
			Binary:      cfg.Capture.FFmpegBinary,
			VideoFormat: cfg.Capture.VideoFormat,
			VideoInput:  cfg.Capture.VideoInput,
			AudioFormat: cfg.Capture.AudioFormat,
			AudioInput:  cfg.Capture.AudioInput,
			VideoCodec:  cfg.Capture.VideoCodec,
			AudioCodec:  cfg.Capture.AudioCodec,
			TempDir:     cfg.Paths.StagingDir,
			StopTimeout: cfg.Capture.StopTimeout(),
		}, logger), nil
	}
	files := capture.NewFileAdapter(logger)
	return files, files
}

// loadRecording reads path and builds a single-segment timeline from it.
func loadRecording(ctx context.Context, prober session.Prober, path string) (timeline.Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return timeline.Timeline{}, fmt.Errorf("read recording: %w", err)
	}
	duration, err := prober.Probe(ctx, data)
	if err != nil {
		return timeline.Timeline{}, fmt.Errorf("probe %s: %w", path, err)
	}
	return timeline.New(data, duration)
}
