package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// NewLogger creates a masking text logger writing to w. The level is Info,
// or Debug when verbose is set.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	return slog.New(NewSecureHandler(newTextHandler(w, verbose)))
}

// New creates the application logger: text to stderr and, when logFile is
// not empty, the same records appended to logFile. The returned closer
// closes the log file and is never nil.
func New(verbose bool, logFile string) (*slog.Logger, io.Closer, error) {
	if logFile == "" {
		return NewLogger(os.Stderr, verbose), nopCloser{}, nil
	}

	if dir := filepath.Dir(logFile); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600) //nolint:gosec // path comes from the --log-file flag
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	fanout := NewFanoutHandler(newTextHandler(os.Stderr, verbose), newTextHandler(f, verbose))
	return slog.New(NewSecureHandler(fanout)), f, nil
}

func newTextHandler(w io.Writer, verbose bool) slog.Handler {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
