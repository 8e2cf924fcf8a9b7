// package shared holds the pieces every ytpub package leans on: configuration, the SQLite
// connection and its migrations, sentinel errors, text helpers and logging.
package shared

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger returns a [log.Logger] writing to w with timestamps and caller reporting.
// A nil w logs to [os.Stderr].
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		ReportCaller:    true,
		Prefix:          "ytpub",
	})
}

// NewFileLogger appends logfmt entries to the file at path at the given level.
// Callers close the returned file when done with the logger.
func NewFileLogger(path string, level log.Level) (*log.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := NewLogger(f)
	logger.SetFormatter(log.LogfmtFormatter)
	logger.SetLevel(level)
	return logger, f, nil
}

// WithLogger returns a child of l that adds kv to every entry.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the level of l.
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID returns a random v4 UUID, used as the primary key of every stored row.
func GenerateID() string {
	return uuid.NewString()
}
