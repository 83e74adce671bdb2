package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	ebmlwebm "github.com/at-wat/ebml-go/webm"

	"retake/internal/media/webm"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	stagingDir string
	logDir     string
}

func setupCLITestEnv(t *testing.T, extra string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("RETAKE_CAPTURE_ADAPTER", "")
	t.Setenv("RETAKE_LOG_LEVEL", "")
	t.Setenv("RETAKE_REALTIME", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "retake.toml"),
		stagingDir: filepath.Join(base, "staging"),
		logDir:     filepath.Join(base, "logs"),
	}
	content := fmt.Sprintf(`[paths]
staging_dir = %q
submissions_dir = %q
log_dir = %q

[selection]
default_window_seconds = 1

[pipeline]
preview_timeout_seconds = 10
export_timeout_seconds = 10
capture_timeout_seconds = 10
end_of_stream_timeout_seconds = 1
chunk_bytes = 512

[capture]
ffmpeg_binary = "retake-test-missing-ffmpeg"
ffprobe_binary = "retake-test-missing-ffprobe"
%s
[logging]
format = "json"
level = "error"
`, env.stagingDir, filepath.Join(base, "submissions"), env.logDir, extra)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}

// writeRecording encodes n frames per track 100ms apart to dir/name.
func writeRecording(t *testing.T, dir, name string, tag byte, n int) string {
	t.Helper()
	tracks := webm.Tracks{
		Video: &ebmlwebm.TrackEntry{
			Name: "Video", TrackNumber: 1, TrackUID: 1, CodecID: "V_VP8", TrackType: 1,
			Video: &ebmlwebm.Video{PixelWidth: 320, PixelHeight: 240},
		},
		Audio: &ebmlwebm.TrackEntry{
			Name: "Audio", TrackNumber: 2, TrackUID: 2, CodecID: "A_OPUS", TrackType: 2,
			Audio: &ebmlwebm.Audio{SamplingFrequency: 48000, Channels: 2},
		},
	}
	var frames []webm.Frame
	for i := 0; i < n; i++ {
		ts := time.Duration(i) * 100 * time.Millisecond
		frames = append(frames,
			webm.Frame{Kind: webm.KindVideo, Timestamp: ts, Keyframe: i%10 == 0, Data: []byte{'v', tag, byte(i)}},
			webm.Frame{Kind: webm.KindAudio, Timestamp: ts, Keyframe: true, Data: []byte{'a', tag, byte(i)}},
		)
	}
	data, err := webm.Encode(tracks, frames)
	if err != nil {
		t.Fatalf("encode recording: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write recording: %v", err)
	}
	return path
}
