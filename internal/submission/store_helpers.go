package submission

import (
	"database/sql"
	"errors"
	"time"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const submissionColumns = "id, timeline_id, source_name, artifact_path, artifact_bytes, artifact_sha256, duration_ms, status, feedback, created_at, reviewed_at, (SELECT COUNT(1) FROM submission_notes n WHERE n.submission_id = submissions.id)"

func scanSubmission(scanner interface{ Scan(dest ...any) error }) (*Submission, error) {
	var (
		id          string
		timelineID  string
		sourceName  sql.NullString
		path        string
		size        int64
		digest      string
		durationMS  int64
		statusStr   string
		feedback    sql.NullString
		createdRaw  string
		reviewedRaw sql.NullString
		noteCount   int
	)
	if err := scanner.Scan(
		&id,
		&timelineID,
		&sourceName,
		&path,
		&size,
		&digest,
		&durationMS,
		&statusStr,
		&feedback,
		&createdRaw,
		&reviewedRaw,
		&noteCount,
	); err != nil {
		return nil, err
	}

	sub := &Submission{
		ID:             id,
		TimelineID:     timelineID,
		SourceName:     sourceName.String,
		ArtifactPath:   path,
		ArtifactBytes:  size,
		ArtifactSHA256: digest,
		Duration:       time.Duration(durationMS) * time.Millisecond,
		Status:         Status(statusStr),
		Feedback:       feedback.String,
		NoteCount:      noteCount,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		sub.CreatedAt = created
	}
	if reviewedRaw.Valid {
		if reviewed, err := parseTimeString(reviewedRaw.String); err == nil {
			sub.ReviewedAt = &reviewed
		}
	}
	return sub, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
