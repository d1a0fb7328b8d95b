package trash

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrLogClosed is returned when appending to a closed AppendLog.
var ErrLogClosed = errors.New("append log is closed")

// AppendLog is an append-only, line-oriented log safe for concurrent use.
type AppendLog struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	path   string
	closed bool
}

// OpenAppendLog opens path for appending, creating it and its parent
// directory when needed.
func OpenAppendLog(path string) (*AppendLog, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // Log path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open append log %s: %w", path, err)
	}

	return &AppendLog{w: f, closer: f, path: path}, nil
}

// NewAppendLog wraps an arbitrary writer. Close does not close w.
func NewAppendLog(w io.Writer) *AppendLog {
	return &AppendLog{w: w}
}

// Append writes one line. A trailing newline is added when missing and
// embedded newlines are replaced by spaces so a record is always one line.
func (l *AppendLog) Append(line string) error {
	line = strings.TrimRight(line, "\r\n")
	line = strings.NewReplacer("\r", " ", "\n", " ").Replace(line)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrLogClosed
	}
	if _, err := io.WriteString(l.w, line+"\n"); err != nil {
		return fmt.Errorf("failed to append to log: %w", err)
	}
	return nil
}

// Appendf formats according to a format specifier and appends the result.
func (l *AppendLog) Appendf(format string, args ...any) error {
	return l.Append(fmt.Sprintf(format, args...))
}

// Path returns the file path of the log, or "" for writer-backed logs.
func (l *AppendLog) Path() string {
	return l.path
}

// Close closes the underlying file. It is safe to call more than once.
func (l *AppendLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
