package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"retake/internal/logging"
)

// Leftover patterns written into the staging directory by capture, probing,
// and flatten locking. A crashed session leaves these behind.
var leftoverPatterns = []string{
	"retake-capture-*.webm",
	"retake-probe-*.webm",
	"*.flatten.lock",
}

// CleanStaleResult contains the outcome of a stale file sweep.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a file path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanStale removes leftover staging files older than maxAge.
func CleanStale(ctx context.Context, stagingDir string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if entry.IsDir() || !isLeftover(entry.Name()) {
			continue
		}
		path := filepath.Join(stagingDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove stale staging file",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "staging_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check paths.staging_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed stale staging file",
				logging.String("path", path),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}
	return result
}

func isLeftover(name string) bool {
	for _, pattern := range leftoverPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// FileInfo describes one leftover file in the staging directory.
type FileInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListLeftovers returns leftover staging files regardless of age.
func ListLeftovers(stagingDir string) ([]FileInfo, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !isLeftover(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(stagingDir, entry.Name()),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return files, nil
}
