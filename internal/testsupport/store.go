package testsupport

import (
	"context"
	"testing"

	"retake/internal/config"
	"retake/internal/notes"
	"retake/internal/submission"
)

// MustOpenStore opens a submission.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *submission.Store {
	t.Helper()

	store, err := submission.Open(cfg)
	if err != nil {
		t.Fatalf("submission.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustSave stores data as a submission and returns its ID.
func MustSave(t testing.TB, store *submission.Store, source string, data []byte, list ...notes.Note) string {
	t.Helper()

	id, err := store.Save(context.Background(), submission.Upload{
		TimelineID: "timeline-" + source,
		SourceName: source,
		Data:       data,
	}, list)
	if err != nil {
		t.Fatalf("store.Save: %v", err)
	}
	return id
}
