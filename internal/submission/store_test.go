package submission_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"retake/internal/notes"
	"retake/internal/submission"
	"retake/internal/testsupport"
)

func TestSaveStoresArtifactAndNotes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	list := []notes.Note{
		{ID: "n1", Timestamp: 5 * time.Second, Text: "intro"},
		{ID: "n2", Timestamp: 75 * time.Second, Text: "wrap up"},
	}
	id, err := store.Save(ctx, submission.Upload{
		TimelineID: "tl-1",
		SourceName: "demo.webm",
		Data:       []byte("artifact-bytes"),
		Duration:   90 * time.Second,
	}, list)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	sub, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sub.Status != submission.StatusPending {
		t.Fatalf("expected pending status, got %q", sub.Status)
	}
	if filepath.Base(sub.ArtifactPath) != "demo_edited.webm" {
		t.Fatalf("unexpected artifact name %q", sub.ArtifactPath)
	}
	data, err := os.ReadFile(sub.ArtifactPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "artifact-bytes" || sub.ArtifactBytes != int64(len(data)) {
		t.Fatalf("artifact mismatch: %q (%d bytes recorded)", data, sub.ArtifactBytes)
	}
	if sub.Duration != 90*time.Second {
		t.Fatalf("unexpected duration %s", sub.Duration)
	}
	if sub.NoteCount != 2 || len(sub.Notes) != 2 {
		t.Fatalf("expected 2 notes, got count=%d loaded=%d", sub.NoteCount, len(sub.Notes))
	}
	if sub.Notes[1].Rendered != "01:15 — wrap up" {
		t.Fatalf("unexpected rendered note %q", sub.Notes[1].Rendered)
	}
	if sub.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp")
	}
}

func TestSaveRejectsEmptyArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.Save(context.Background(), submission.Upload{TimelineID: "tl"}, nil)
	if !errors.Is(err, submission.ErrEmptyArtifact) {
		t.Fatalf("expected ErrEmptyArtifact, got %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(cfg.Paths.SubmissionsDir, "artifacts"))
	if len(entries) != 0 {
		t.Fatalf("expected no artifacts written, found %d", len(entries))
	}
}

func TestGetUnknownReturnsNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.Get(context.Background(), "missing")
	var notFound *submission.NotFoundError
	if !errors.As(err, &notFound) || notFound.ErrorKind() != "not_found" {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestReviewMovesOutOfPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.MustSave(t, store, "a.webm", []byte("a"))
	second := testsupport.MustSave(t, store, "b.webm", []byte("b"))

	if err := store.Review(ctx, first, "nice pacing"); err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second {
		t.Fatalf("expected only %s pending, got %+v", second, pending)
	}

	reviewed, err := store.Get(ctx, first)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if reviewed.Status != submission.StatusReviewed || reviewed.Feedback != "nice pacing" || reviewed.ReviewedAt == nil {
		t.Fatalf("unexpected reviewed submission %+v", reviewed)
	}

	if err := store.SetStatus(ctx, first, submission.StatusPending, ""); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	reopened, err := store.Get(ctx, first)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if reopened.ReviewedAt != nil || reopened.Feedback != "nice pacing" {
		t.Fatalf("expected feedback kept and review cleared, got %+v", reopened)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(all))
	}
}

func TestSetStatusErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var notFound *submission.NotFoundError
	if err := store.Review(ctx, "missing", ""); !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	id := testsupport.MustSave(t, store, "a.webm", []byte("a"))
	var invalid *submission.InvalidStatusError
	if err := store.SetStatus(ctx, id, "archived", ""); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidStatusError, got %v", err)
	}
}

func TestExportAndRemove(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	id := testsupport.MustSave(t, store, "talk.webm", []byte("payload"), notes.Note{Timestamp: time.Second, Text: "hi"})
	dst := filepath.Join(t.TempDir(), "out.webm")
	if err := store.Export(ctx, id, dst); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if data, err := os.ReadFile(dst); err != nil || string(data) != "payload" {
		t.Fatalf("unexpected export %q (%v)", data, err)
	}

	sub, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := store.Remove(ctx, id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(sub.ArtifactPath); !os.IsNotExist(err) {
		t.Fatal("expected artifact removed")
	}
	if _, err := store.Get(ctx, id); err == nil {
		t.Fatal("expected submission to be gone")
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := submission.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	id := testsupport.MustSave(t, store, "a.webm", []byte("a"))
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, cfg)
	if _, err := reopened.Get(context.Background(), id); err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
}

func TestArtifactName(t *testing.T) {
	cases := map[string]string{
		"demo.webm":    "demo_edited.webm",
		"":             "recording_edited.webm",
		"dir/clip.mkv": "dir_clip_edited.webm",
		"no-extension": "no-extension_edited.webm",
		".hidden":      ".hidden_edited.webm",
	}
	for in, want := range cases {
		if got := submission.ArtifactName(in); got != want {
			t.Fatalf("ArtifactName(%q) = %q, want %q", in, got, want)
		}
	}
}
