package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSelection(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	if c.Paths.SubmissionsDir == "" {
		return errors.New("paths.submissions_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateSelection() error {
	if c.Selection.DefaultWindowSeconds <= 0 {
		return errors.New("selection.default_window_seconds must be positive")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := ensurePositiveMap(map[string]int{
		"pipeline.preview_timeout_seconds":       c.Pipeline.PreviewTimeoutSeconds,
		"pipeline.export_timeout_seconds":        c.Pipeline.ExportTimeoutSeconds,
		"pipeline.capture_timeout_seconds":       c.Pipeline.CaptureTimeoutSeconds,
		"pipeline.end_of_stream_timeout_seconds": c.Pipeline.EndOfStreamTimeoutSeconds,
		"pipeline.chunk_bytes":                   c.Pipeline.ChunkBytes,
	}); err != nil {
		return err
	}
	if c.Pipeline.CaptureTimeoutSeconds > c.Pipeline.ExportTimeoutSeconds {
		return errors.New("pipeline.capture_timeout_seconds must not exceed pipeline.export_timeout_seconds")
	}
	return nil
}

func (c *Config) validateCapture() error {
	switch c.Capture.Adapter {
	case "file", "ffmpeg":
	default:
		return fmt.Errorf("capture.adapter: unsupported value %q (want file or ffmpeg)", c.Capture.Adapter)
	}
	switch c.Capture.Prober {
	case "webm", "ffprobe":
	default:
		return fmt.Errorf("capture.prober: unsupported value %q (want webm or ffprobe)", c.Capture.Prober)
	}
	if c.Capture.Adapter == "ffmpeg" && c.Capture.VideoInput == "" {
		return errors.New("capture.video_input must be set when capture.adapter is ffmpeg")
	}
	return ensurePositiveMap(map[string]int{
		"capture.stop_timeout_seconds": c.Capture.StopTimeoutSeconds,
	})
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
