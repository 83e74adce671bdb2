package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// PruneSessionLogs removes session logs in dir older than retentionDays and
// returns the removed paths. Paths in keep are never removed; a retentionDays
// of 0 disables pruning.
func PruneSessionLogs(logger *slog.Logger, dir string, retentionDays int, keep ...string) []string {
	if retentionDays <= 0 || dir == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, SessionLogPattern))
	if err != nil {
		return nil
	}
	keepAbs := make([]string, 0, len(keep))
	for _, path := range keep {
		if abs, err := filepath.Abs(path); err == nil {
			keepAbs = append(keepAbs, abs)
		}
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	var removed []string
	for _, path := range matches {
		if abs, err := filepath.Abs(path); err == nil && slices.Contains(keepAbs, abs) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "session log not pruned", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check permissions on paths.log_dir"),
				String(FieldImpact, "the old session log stays on disk"),
			)
			continue
		}
		removed = append(removed, path)
	}
	if len(removed) > 0 && logger != nil {
		logger.Debug("session logs pruned",
			Int("count", len(removed)),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}
