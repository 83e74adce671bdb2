package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"retake/internal/logging"
)

func touch(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if age > 0 {
		when := time.Now().Add(-age)
		if err := os.Chtimes(path, when, when); err != nil {
			t.Fatalf("chtimes %s: %v", name, err)
		}
	}
	return path
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanStaleRemovesOldLeftovers(t *testing.T) {
	dir := t.TempDir()
	oldCapture := touch(t, dir, "retake-capture-123.webm", 2*time.Hour)
	oldLock := touch(t, dir, "abc.flatten.lock", 2*time.Hour)
	recent := touch(t, dir, "retake-probe-9.webm", 0)
	unrelated := touch(t, dir, "notes.txt", 2*time.Hour)

	result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
	if len(result.Removed) != 2 {
		t.Fatalf("expected 2 removed, got %v", result.Removed)
	}
	for _, gone := range []string{oldCapture, oldLock} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Errorf("%s should have been removed", gone)
		}
	}
	for _, kept := range []string{recent, unrelated} {
		if _, err := os.Stat(kept); err != nil {
			t.Errorf("%s should still exist", kept)
		}
	}
}

func TestCleanStaleIgnoresDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "retake-capture-dir.webm")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(sub, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("expected directories to be skipped, got %v", result.Removed)
	}
}

func TestListLeftovers(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/path/12345"} {
		files, err := ListLeftovers(path)
		if err != nil || files != nil {
			t.Fatalf("expected nil for %q, got %v, %v", path, files, err)
		}
	}

	dir := t.TempDir()
	touch(t, dir, "retake-capture-1.webm", 0)
	touch(t, dir, "other.webm", 0)
	files, err := ListLeftovers(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 1 || files[0].Name != "retake-capture-1.webm" || files[0].Size != 1 {
		t.Fatalf("unexpected leftovers %+v", files)
	}
}
