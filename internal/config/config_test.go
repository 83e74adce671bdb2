package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"retake/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	chdir(t, t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStaging := filepath.Join(tempHome, ".local", "share", "retake", "staging")
	if cfg.Paths.StagingDir != wantStaging {
		t.Fatalf("unexpected staging dir: got %q want %q", cfg.Paths.StagingDir, wantStaging)
	}
	if cfg.SubmissionsDBPath() != filepath.Join(tempHome, ".local", "share", "retake", "submissions", "submissions.db") {
		t.Fatalf("unexpected submissions db path: %q", cfg.SubmissionsDBPath())
	}
	if cfg.Selection.DefaultWindow() != 10*time.Second {
		t.Fatalf("unexpected default window: %s", cfg.Selection.DefaultWindow())
	}
	if cfg.Pipeline.PreviewTimeout() != time.Minute || cfg.Pipeline.CaptureTimeout() != 30*time.Second {
		t.Fatalf("unexpected pipeline timeouts: %+v", cfg.Pipeline)
	}
	if cfg.Capture.Adapter != "file" || cfg.Capture.Prober != "webm" {
		t.Fatalf("unexpected capture defaults: %+v", cfg.Capture)
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "retake.toml")
	content := `
[paths]
staging_dir = "~/staging"
submissions_dir = "/tmp/retake-submissions"

[selection]
default_window_seconds = 4.5

[capture]
adapter = "FFMPEG"
audio_input = ""

[logging]
format = "JSON"
level = "Debug"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected %q to be loaded, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Paths.StagingDir != filepath.Join(tempHome, "staging") {
		t.Fatalf("unexpected staging dir: %q", cfg.Paths.StagingDir)
	}
	if cfg.Paths.SubmissionsDir != "/tmp/retake-submissions" {
		t.Fatalf("unexpected submissions dir: %q", cfg.Paths.SubmissionsDir)
	}
	if cfg.Selection.DefaultWindow() != 4500*time.Millisecond {
		t.Fatalf("unexpected window: %s", cfg.Selection.DefaultWindow())
	}
	if cfg.Capture.Adapter != "ffmpeg" {
		t.Fatalf("expected adapter to be lowercased, got %q", cfg.Capture.Adapter)
	}
	if cfg.Capture.AudioInput != "" {
		t.Fatalf("expected audio input cleared, got %q", cfg.Capture.AudioInput)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "retake.toml")
	if err := os.WriteFile(configPath, []byte("[paths]\nlibrary_dir = \"/x\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestEnvOverridesCaptureAdapter(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("RETAKE_CAPTURE_ADAPTER", "ffmpeg")
	t.Setenv("RETAKE_LOG_LEVEL", "warn")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Capture.Adapter != "ffmpeg" {
		t.Fatalf("expected env adapter, got %q", cfg.Capture.Adapter)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected env log level, got %q", cfg.Logging.Level)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.SubmissionsDir = filepath.Join(base, "submissions")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.SubmissionsDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.StagingDir, "retake") {
		t.Fatalf("expected staging dir to contain retake, got %q", cfg.Paths.StagingDir)
	}
	if cfg.Pipeline.CaptureTimeoutSeconds != 30 {
		t.Fatalf("unexpected sample capture timeout: %d", cfg.Pipeline.CaptureTimeoutSeconds)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero window", func(c *config.Config) { c.Selection.DefaultWindowSeconds = 0 }},
		{"zero preview timeout", func(c *config.Config) { c.Pipeline.PreviewTimeoutSeconds = 0 }},
		{"capture exceeds export", func(c *config.Config) { c.Pipeline.CaptureTimeoutSeconds = c.Pipeline.ExportTimeoutSeconds + 1 }},
		{"unknown adapter", func(c *config.Config) { c.Capture.Adapter = "webcam" }},
		{"unknown prober", func(c *config.Config) { c.Capture.Prober = "mediainfo" }},
		{"ffmpeg without video", func(c *config.Config) {
			c.Capture.Adapter = "ffmpeg"
			c.Capture.VideoInput = ""
		}},
		{"zero stop timeout", func(c *config.Config) { c.Capture.StopTimeoutSeconds = 0 }},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }},
		{"missing staging", func(c *config.Config) { c.Paths.StagingDir = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PWD", dir)
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
