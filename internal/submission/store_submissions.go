package submission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"retake/internal/fileutil"
	"retake/internal/notes"
)

// Save stores the artifact file and inserts the submission with its notes.
// The artifact is removed again if the database write fails.
func (s *Store) Save(ctx context.Context, upload Upload, list []notes.Note) (string, error) {
	ctx = ensureContext(ctx)
	if len(upload.Data) == 0 {
		return "", ErrEmptyArtifact
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	dir := filepath.Join(s.artifactDir, "artifacts", id)
	path := filepath.Join(dir, ArtifactName(upload.SourceName))
	digest, err := fileutil.WriteFileAtomic(path, upload.Data, 0o644)
	if err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	created := time.Now().UTC().Format(timeLayout)
	err = retryOnBusy(ctx, func() error {
		return s.insert(ctx, id, upload, path, digest, created, list)
	})
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("insert submission: %w", err)
	}
	return id, nil
}

func (s *Store) insert(ctx context.Context, id string, upload Upload, path, digest, created string, list []notes.Note) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO submissions (
            id, timeline_id, source_name, artifact_path, artifact_bytes,
            artifact_sha256, duration_ms, status, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		upload.TimelineID,
		nullableString(upload.SourceName),
		path,
		len(upload.Data),
		digest,
		upload.Duration.Milliseconds(),
		StatusPending,
		created,
	); err != nil {
		return err
	}

	for i, note := range list {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO submission_notes (
                submission_id, position, note_id, timestamp_ms, text, rendered
            ) VALUES (?, ?, ?, ?, ?, ?)`,
			id,
			i,
			nullableString(note.ID),
			note.Timestamp.Milliseconds(),
			note.Text,
			note.String(),
		); err != nil {
			return fmt.Errorf("insert note %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Get fetches a submission and its notes.
func (s *Store) Get(ctx context.Context, id string) (*Submission, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	if sub.Notes, err = s.notes(ctx, id); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Store) notes(ctx context.Context, id string) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT note_id, timestamp_ms, text, rendered FROM submission_notes
         WHERE submission_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var (
			noteID sql.NullString
			ms     int64
			note   Note
		)
		if err := rows.Scan(&noteID, &ms, &note.Text, &note.Rendered); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		note.ID = noteID.String
		note.Timestamp = time.Duration(ms) * time.Millisecond
		out = append(out, note)
	}
	return out, rows.Err()
}

// List returns submissions newest first, optionally filtered by status.
// Notes are not loaded; NoteCount is populated.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Submission, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + submissionColumns + ` FROM submissions`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []*Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Pending lists submissions awaiting review.
func (s *Store) Pending(ctx context.Context) ([]*Submission, error) {
	return s.List(ctx, StatusPending)
}

// SetStatus moves a submission between pending and reviewed. A non-empty
// feedback replaces the stored one.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, feedback string) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	var reviewed *time.Time
	if status == StatusReviewed {
		now := time.Now().UTC()
		reviewed = &now
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE submissions SET status = ?, reviewed_at = ?, feedback = COALESCE(?, feedback) WHERE id = ?`,
		status,
		nullableTime(reviewed),
		nullableString(feedback),
		id,
	)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

// Review marks a submission reviewed.
func (s *Store) Review(ctx context.Context, id, feedback string) error {
	return s.SetStatus(ctx, id, StatusReviewed, feedback)
}

// Export copies the stored artifact to dst, verifying the recorded digest.
func (s *Store) Export(ctx context.Context, id, dst string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := fileutil.CopyFileVerified(sub.ArtifactPath, dst, sub.ArtifactSHA256); err != nil {
		return fmt.Errorf("export artifact: %w", err)
	}
	return nil
}

// Remove deletes a submission, its notes, and its artifact.
func (s *Store) Remove(ctx context.Context, id string) error {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.execWithRetry(ctx, `DELETE FROM submissions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	if err := os.RemoveAll(filepath.Dir(sub.ArtifactPath)); err != nil {
		return fmt.Errorf("remove artifact: %w", err)
	}
	return nil
}
