package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"retake/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Watchdog budgets are shortened so failing tests finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StagingDir = filepath.Join(base, "staging")
	cfgVal.Paths.SubmissionsDir = filepath.Join(base, "submissions")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Pipeline.PreviewTimeoutSeconds = 5
	cfgVal.Pipeline.ExportTimeoutSeconds = 5
	cfgVal.Pipeline.CaptureTimeoutSeconds = 5
	cfgVal.Pipeline.EndOfStreamTimeoutSeconds = 1
	cfgVal.Capture.StopTimeoutSeconds = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCaptureAdapter selects the capture adapter on the test config.
func WithCaptureAdapter(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.Adapter = name
	}
}

// WithWindow overrides the default selection window in seconds.
func WithWindow(seconds float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Selection.DefaultWindowSeconds = seconds
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StagingDir)
}
