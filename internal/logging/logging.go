// Package logging builds the slog logger shared by every component.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// LogFileName is the run log written next to the report artifacts.
const LogFileName = "retrace.log"

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Output receives log records, stderr when nil.
	Output io.Writer
	// Dir, when set, additionally receives a JSON run log in LogFileName.
	Dir string
}

// Logger wraps the slog logger with the run log file it may own.
type Logger struct {
	*slog.Logger
	mu   sync.Mutex
	file *os.File
}

// New constructs a logger. Console output on a terminal uses short
// timestamps; everything else gets full RFC3339 times.
func New(opts Options) (*Logger, error) {
	level := ParseLevel(opts.Level)
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handler, err := newHandler(out, opts.Format, level)
	if err != nil {
		return nil, err
	}

	l := &Logger{}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		f, err := os.Create(filepath.Join(opts.Dir, LogFileName))
		if err != nil {
			return nil, fmt.Errorf("open run log: %w", err)
		}
		l.file = f
		fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
		handler = fanout{handler, fileHandler}
	}
	l.Logger = slog.New(handler)
	return l, nil
}

// Close flushes and closes the run log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func newHandler(out io.Writer, format string, level slog.Level) (slog.Handler, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "console":
		opts := &slog.HandlerOptions{Level: level}
		if IsTerminal(out) {
			opts.ReplaceAttr = shortTime
		}
		return slog.NewTextHandler(out, opts), nil
	case "json":
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", format)
	}
}

func shortTime(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.TimeKey {
		return slog.String(slog.TimeKey, a.Value.Time().Format("15:04:05"))
	}
	return a
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
