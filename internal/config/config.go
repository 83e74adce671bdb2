package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains working directory configuration.
type Paths struct {
	StagingDir     string `toml:"staging_dir"`
	SubmissionsDir string `toml:"submissions_dir"`
	LogDir         string `toml:"log_dir"`
}

// Selection contains range selector settings.
type Selection struct {
	DefaultWindowSeconds float64 `toml:"default_window_seconds"`
}

// Pipeline contains reassembly watchdog budgets and engine settings.
type Pipeline struct {
	PreviewTimeoutSeconds     int  `toml:"preview_timeout_seconds"`
	ExportTimeoutSeconds      int  `toml:"export_timeout_seconds"`
	CaptureTimeoutSeconds     int  `toml:"capture_timeout_seconds"`
	EndOfStreamTimeoutSeconds int  `toml:"end_of_stream_timeout_seconds"`
	Realtime                  bool `toml:"realtime"`
	ChunkBytes                int  `toml:"chunk_bytes"`
}

// Capture contains capture adapter and device configuration.
type Capture struct {
	// Adapter is "file" (prepared recordings) or "ffmpeg" (local devices).
	Adapter            string `toml:"adapter"`
	FFmpegBinary       string `toml:"ffmpeg_binary"`
	FFprobeBinary      string `toml:"ffprobe_binary"`
	VideoFormat        string `toml:"video_format"`
	VideoInput         string `toml:"video_input"`
	AudioFormat        string `toml:"audio_format"`
	AudioInput         string `toml:"audio_input"`
	VideoCodec         string `toml:"video_codec"`
	AudioCodec         string `toml:"audio_codec"`
	StopTimeoutSeconds int    `toml:"stop_timeout_seconds"`
	// Prober is "webm" (in-process demux) or "ffprobe".
	Prober string `toml:"prober"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for retake.
//
// Configuration sections by subsystem:
//   - Paths: staging (lock files, spooled captures), submissions, logs
//   - Selection: default selection window
//   - Pipeline: preview/export watchdogs and decode engine behaviour
//   - Capture: adapter choice, ffmpeg devices and encoders, duration prober
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Selection Selection `toml:"selection"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Capture   Capture   `toml:"capture"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/retake/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("retake.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.SubmissionsDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SubmissionsDBPath returns the submission database location.
func (c *Config) SubmissionsDBPath() string {
	return filepath.Join(c.Paths.SubmissionsDir, "submissions.db")
}

// DefaultWindow returns the selection window as a duration.
func (s Selection) DefaultWindow() time.Duration {
	return time.Duration(s.DefaultWindowSeconds * float64(time.Second))
}

// PreviewTimeout bounds an in-editor preview flatten.
func (p Pipeline) PreviewTimeout() time.Duration {
	return seconds(p.PreviewTimeoutSeconds)
}

// ExportTimeout bounds the final flatten.
func (p Pipeline) ExportTimeout() time.Duration {
	return seconds(p.ExportTimeoutSeconds)
}

// CaptureTimeout bounds the capture step of the final flatten.
func (p Pipeline) CaptureTimeout() time.Duration {
	return seconds(p.CaptureTimeoutSeconds)
}

// EndOfStreamTimeout bounds the wait for end-of-input acknowledgement.
func (p Pipeline) EndOfStreamTimeout() time.Duration {
	return seconds(p.EndOfStreamTimeoutSeconds)
}

// StopTimeout bounds stopping a device capture.
func (c Capture) StopTimeout() time.Duration {
	return seconds(c.StopTimeoutSeconds)
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
