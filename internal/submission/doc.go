// Package submission persists finalized edits.
//
// A submission is one flattened artifact plus the annotation notes captured
// alongside it. Artifacts are written atomically under the submissions
// directory and their size and SHA256 recorded in a SQLite database (WAL
// journal, foreign keys on, busy retries with backoff); notes live in a
// child table rendered as "mm:ss — text".
//
// Each record carries a review status (pending or reviewed) and optional
// feedback so a reviewer can work through the pending list from the CLI.
package submission
