package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"retake/internal/config"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, "")

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.configPath)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, target); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	env := setupCLITestEnv(t, "")
	out, _, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[capture]")

	var cfg config.Config
	if err := toml.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("config show output is not TOML: %v", err)
	}
	if cfg.Selection.DefaultWindowSeconds != 1 || cfg.Capture.Adapter != "file" {
		t.Fatalf("unexpected effective config %+v", cfg)
	}
}

func TestConfigValidateRejectsUnknownKeys(t *testing.T) {
	env := setupCLITestEnv(t, "frobnicate = true\n")
	if _, _, err := runCLI(t, []string{"config", "validate"}, env.configPath); err == nil {
		t.Fatal("expected unknown key to fail validation")
	}
}

func TestDoctorFailsWhenFFmpegRequired(t *testing.T) {
	env := setupCLITestEnv(t, "adapter = \"ffmpeg\"\n")
	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err == nil {
		t.Fatal("expected doctor to fail with a missing ffmpeg")
	}
	requireContains(t, out, "Staging directory")
	requireContains(t, out, "FFmpeg")
	requireContains(t, out, "retake-test-missing-ffmpeg")
}

func TestProbeCommand(t *testing.T) {
	env := setupCLITestEnv(t, "")
	path := writeRecording(t, env.baseDir, "demo.webm", 'o', 30)

	out, _, err := runCLI(t, []string{"probe", "--json", path}, env.configPath)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	var result probeOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode probe output: %v\n%s", err, out)
	}
	if result.DurationSeconds != 3 || result.VideoCodec != "V_VP8" || result.AudioCodec != "A_OPUS" {
		t.Fatalf("unexpected probe result %+v", result)
	}

	out, _, err = runCLI(t, []string{"probe", path}, env.configPath)
	if err != nil {
		t.Fatalf("probe table: %v", err)
	}
	requireContains(t, out, "V_VP8")
}

func TestFlattenCommandJoinsRecordings(t *testing.T) {
	env := setupCLITestEnv(t, "")
	first := writeRecording(t, env.baseDir, "a.webm", 'a', 30)
	second := writeRecording(t, env.baseDir, "b.webm", 'b', 20)
	output := filepath.Join(env.baseDir, "joined.webm")

	out, _, err := runCLI(t, []string{"flatten", first, second, "-o", output}, env.configPath)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	requireContains(t, out, "Wrote "+output)

	out, _, err = runCLI(t, []string{"probe", "--json", output}, env.configPath)
	if err != nil {
		t.Fatalf("probe output: %v", err)
	}
	var result probeOutput
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode probe output: %v", err)
	}
	if result.DurationSeconds < 4 || result.DurationSeconds > 6 {
		t.Fatalf("expected ~5s joined recording, got %v", result.DurationSeconds)
	}
}

func TestEditScriptEndToEnd(t *testing.T) {
	env := setupCLITestEnv(t, "")
	recording := writeRecording(t, env.baseDir, "lesson.webm", 'o', 60)
	take := writeRecording(t, env.baseDir, "take2.webm", 'n', 20)
	script := filepath.Join(env.baseDir, "edit.txt")
	lines := []string{
		"# replace two seconds in with a fresh take",
		"queue video " + take,
		"select 2",
		"delete",
		"stop",
		"seek 4",
		"note check pacing",
		"status",
		"segments",
		"finalize",
	}
	if err := os.WriteFile(script, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	out, _, err := runCLI(t, []string{"edit", "--script", script, recording}, env.configPath)
	if err != nil {
		t.Fatalf("edit: %v\n%s", err, out)
	}
	requireContains(t, out, "Selected [2s, 3s)")
	requireContains(t, out, "timeline is now 7s")
	requireContains(t, out, "Submitted ")

	matches, err := filepath.Glob(filepath.Join(env.logDir, "session-*.log"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one session log, got %v (%v)", matches, err)
	}

	out, _, err = runCLI(t, []string{"submissions", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var items []submissionOutput
	if err := json.Unmarshal([]byte(out), &items); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(items) != 1 {
		t.Fatalf("expected one submission, got %d", len(items))
	}
	item := items[0]
	if item.Status != "pending" || item.DurationSeconds != 7 || item.NoteCount != 1 || item.Source != "lesson.webm" {
		t.Fatalf("unexpected submission %+v", item)
	}
	if filepath.Base(item.ArtifactPath) != "lesson_edited.webm" {
		t.Fatalf("unexpected artifact path %s", item.ArtifactPath)
	}

	if _, _, err := runCLI(t, []string{"submissions", "review", item.ID, "--feedback", "tighten the intro"}, env.configPath); err != nil {
		t.Fatalf("review: %v", err)
	}
	out, _, err = runCLI(t, []string{"submissions", "pending"}, env.configPath)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	requireContains(t, out, "No submissions")

	out, _, err = runCLI(t, []string{"submissions", "show", item.ID}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "tighten the intro")
	requireContains(t, out, "00:04 — check pacing")

	exported := filepath.Join(env.baseDir, "export.webm")
	if _, _, err := runCLI(t, []string{"submissions", "export", item.ID, exported}, env.configPath); err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(exported); err != nil {
		t.Fatalf("expected exported artifact: %v", err)
	}
}

func TestEditScriptStopsAtFirstFailure(t *testing.T) {
	env := setupCLITestEnv(t, "")
	recording := writeRecording(t, env.baseDir, "lesson.webm", 'o', 30)
	script := filepath.Join(env.baseDir, "edit.txt")
	if err := os.WriteFile(script, []byte("select 2\nselect 99\nfinalize\n"), 0o644); err != nil {
		t.Fatalf("write script: %v", err)
	}

	_, _, err := runCLI(t, []string{"edit", "--script", script, recording}, env.configPath)
	if err == nil {
		t.Fatal("expected script failure")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected failing line in error, got %v", err)
	}
}

func TestEditorReportsRecoverableErrorsInteractively(t *testing.T) {
	env := setupCLITestEnv(t, "")
	recording := writeRecording(t, env.baseDir, "lesson.webm", 'o', 30)

	cmd := newRootCommand()
	var stdout strings.Builder
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetIn(strings.NewReader("select 2\ndelete\nstatus\nquit\nselect 1\n"))
	cmd.SetArgs([]string{"--config", env.configPath, "edit", recording})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("edit: %v", err)
	}
	out := stdout.String()
	requireContains(t, out, "error (capture)")
	requireContains(t, out, "selecting")
	if strings.Contains(out, "Selected [1s") {
		t.Fatal("commands after quit were executed")
	}
}
