package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSelection()
	c.normalizePipeline()
	c.normalizeCapture()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.SubmissionsDir, err = expandPath(c.Paths.SubmissionsDir); err != nil {
		return fmt.Errorf("paths.submissions_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSelection() {
	if c.Selection.DefaultWindowSeconds == 0 {
		c.Selection.DefaultWindowSeconds = defaultWindowSeconds
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.ChunkBytes == 0 {
		c.Pipeline.ChunkBytes = defaultChunkBytes
	}
	if value, ok := os.LookupEnv("RETAKE_REALTIME"); ok {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes":
			c.Pipeline.Realtime = true
		case "0", "false", "no":
			c.Pipeline.Realtime = false
		}
	}
}

func (c *Config) normalizeCapture() {
	c.Capture.Adapter = strings.ToLower(strings.TrimSpace(c.Capture.Adapter))
	if c.Capture.Adapter == "" {
		c.Capture.Adapter = defaultCaptureAdapter
	}
	if value, ok := os.LookupEnv("RETAKE_CAPTURE_ADAPTER"); ok && strings.TrimSpace(value) != "" {
		c.Capture.Adapter = strings.ToLower(strings.TrimSpace(value))
	}
	c.Capture.FFmpegBinary = strings.TrimSpace(c.Capture.FFmpegBinary)
	if c.Capture.FFmpegBinary == "" {
		c.Capture.FFmpegBinary = defaultFFmpegBinary
	}
	c.Capture.FFprobeBinary = strings.TrimSpace(c.Capture.FFprobeBinary)
	if c.Capture.FFprobeBinary == "" {
		c.Capture.FFprobeBinary = defaultFFprobeBinary
	}
	c.Capture.VideoInput = strings.TrimSpace(c.Capture.VideoInput)
	c.Capture.AudioInput = strings.TrimSpace(c.Capture.AudioInput)
	if c.Capture.VideoCodec = strings.TrimSpace(c.Capture.VideoCodec); c.Capture.VideoCodec == "" {
		c.Capture.VideoCodec = defaultVideoCodec
	}
	if c.Capture.AudioCodec = strings.TrimSpace(c.Capture.AudioCodec); c.Capture.AudioCodec == "" {
		c.Capture.AudioCodec = defaultAudioCodec
	}
	c.Capture.Prober = strings.ToLower(strings.TrimSpace(c.Capture.Prober))
	if c.Capture.Prober == "" {
		c.Capture.Prober = defaultProber
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if value, ok := os.LookupEnv("RETAKE_LOG_LEVEL"); ok && strings.TrimSpace(value) != "" {
		c.Logging.Level = strings.ToLower(strings.TrimSpace(value))
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
