package capture

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"retake/internal/logging"
)

// FileAdapter serves prepared recordings in FIFO order per kind.
type FileAdapter struct {
	logger *slog.Logger

	mu     sync.Mutex
	queues map[Kind][]string
	open   int
}

// NewFileAdapter constructs an adapter with empty queues.
func NewFileAdapter(logger *slog.Logger) *FileAdapter {
	return &FileAdapter{
		logger: logging.NewComponentLogger(logger, "capture"),
		queues: make(map[Kind][]string),
	}
}

// Queue appends recordings to be returned by later captures of kind.
func (a *FileAdapter) Queue(kind Kind, paths ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queues[kind] = append(a.queues[kind], paths...)
}

// Pending returns the number of queued recordings for kind.
func (a *FileAdapter) Pending(kind Kind) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.queues[kind])
}

// Open returns the number of handles not yet stopped or aborted.
func (a *FileAdapter) Open() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.open
}

// Start claims the next queued recording and checks it is readable.
func (a *FileAdapter) Start(ctx context.Context, kind Kind, _ ...StartOption) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	queue := a.queues[kind]
	if len(queue) == 0 {
		a.mu.Unlock()
		return nil, &DeviceUnavailableError{Device: kind.String(), Reason: "no prepared recording queued"}
	}
	path := queue[0]
	a.queues[kind] = queue[1:]
	a.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, classifyFileError(path, err)
	}
	_ = f.Close()

	a.mu.Lock()
	a.open++
	a.mu.Unlock()
	a.logger.Debug("capture started", logging.String("kind", kind.String()), logging.String("source", path))
	return &fileHandle{adapter: a, kind: kind, path: path}, nil
}

func (a *FileAdapter) release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.open > 0 {
		a.open--
	}
}

func classifyFileError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return &PermissionDeniedError{Device: path, Err: err}
	case errors.Is(err, fs.ErrNotExist):
		return &DeviceUnavailableError{Device: path, Reason: "recording not found", Err: err}
	default:
		return &DeviceUnavailableError{Device: path, Err: err}
	}
}

type fileHandle struct {
	adapter *FileAdapter
	kind    Kind
	path    string

	mu     sync.Mutex
	closed bool
}

func (h *fileHandle) Kind() Kind { return h.kind }

func (h *fileHandle) finish() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.closed = true
	h.adapter.release()
	return true
}

func (h *fileHandle) Stop(ctx context.Context) ([]byte, error) {
	if !h.finish() {
		return nil, ErrHandleClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(h.path)
	if err != nil {
		return nil, classifyFileError(h.path, err)
	}
	if len(data) == 0 {
		return nil, &DeviceUnavailableError{Device: h.path, Reason: "recording is empty"}
	}
	h.adapter.logger.Debug("capture stopped", logging.String("kind", h.kind.String()), logging.Int("bytes", len(data)))
	return data, nil
}

func (h *fileHandle) Abort() error {
	if !h.finish() {
		return nil
	}
	h.adapter.logger.Debug("capture aborted", logging.String("kind", h.kind.String()))
	return nil
}

func (h *fileHandle) String() string {
	return fmt.Sprintf("file capture %s (%s)", h.path, h.kind)
}
