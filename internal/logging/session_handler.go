package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FieldSessionID is the standardized structured logging key for edit session identifiers.
const FieldSessionID = "session_id"

// sessionIDHandler wraps another handler to inject a session_id attribute into all records.
type sessionIDHandler struct {
	base      slog.Handler
	sessionID string
}

func newSessionIDHandler(base slog.Handler, sessionID string) slog.Handler {
	if base == nil {
		return NoopHandler{}
	}
	return &sessionIDHandler{
		base:      base,
		sessionID: sessionID,
	}
}

func (h *sessionIDHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *sessionIDHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(slog.String(FieldSessionID, h.sessionID))
	return h.base.Handle(ctx, record)
}

func (h *sessionIDHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sessionIDHandler{
		base:      h.base.WithAttrs(attrs),
		sessionID: h.sessionID,
	}
}

func (h *sessionIDHandler) WithGroup(name string) slog.Handler {
	return &sessionIDHandler{
		base:      h.base.WithGroup(name),
		sessionID: h.sessionID,
	}
}

// SessionLogPattern matches per-session log files for retention pruning.
const SessionLogPattern = "session-*.log"

// OpenSessionLog tees base into a debug-level JSON file named
// session-<id>.log under dir. Records written to the file carry session_id.
// The returned close function releases the file.
func OpenSessionLog(base *slog.Logger, dir, sessionID string) (*slog.Logger, string, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", nil, fmt.Errorf("ensure log directory: %w", err)
	}
	path := filepath.Join(dir, "session-"+sessionID+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, "", nil, fmt.Errorf("open session log: %w", err)
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	jsonHandler, err := newJSONHandler(file, levelVar, false)
	if err != nil {
		_ = file.Close()
		return nil, "", nil, err
	}
	return TeeLogger(base, newSessionIDHandler(jsonHandler, sessionID)), path, file.Close, nil
}
