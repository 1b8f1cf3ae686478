// Package logging provides the launcher's diagnostic output.
//
// The launcher is meant to be invisible: the only output a user normally
// sees comes from venv, pip and the blogger module. Diagnostics therefore
// go to two optional sinks:
//   - stderr, prefixed with "[verbose]", when verbose mode is on
//   - a size-rotated log file (gopkg.in/natefinch/lumberjack.v2), when a
//     log file is configured
//
// Every record carries a per-invocation run ID so interleaved runs can be
// told apart in a shared log file.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Verbose enables console output.
	Verbose bool

	// Console receives console output. Defaults to os.Stderr.
	Console io.Writer

	// File is the log file path. Empty disables file logging.
	File string

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger is the launcher's logger.
type Logger struct {
	*slog.Logger

	runID  string
	closer io.Closer
}

// New builds a Logger from opts. With neither Verbose nor File set, the
// returned Logger discards everything.
func New(opts Options) (*Logger, error) {
	l := &Logger{runID: uuid.NewString()}

	var handlers []slog.Handler

	if opts.Verbose {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		handlers = append(handlers, &consoleHandler{
			mu:         &sync.Mutex{},
			writer:     console,
			timestamps: !isTerminal(console),
		})
	}

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0750); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		l.closer = rotator
		handlers = append(handlers, slog.NewTextHandler(rotator, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = discardHandler{}
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	l.Logger = slog.New(handler).With("run", l.runID)
	return l, nil
}

// Discard returns a Logger that drops every record.
func Discard() *Logger {
	return &Logger{Logger: slog.New(discardHandler{})}
}

// RunID returns the identifier attached to every record of this run.
func (l *Logger) RunID() string {
	return l.runID
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// consoleHandler writes "[verbose] msg key=value ..." lines. When the
// destination is not a terminal (CI logs, redirected stderr) each line is
// prefixed with a timestamp.
type consoleHandler struct {
	mu         *sync.Mutex
	writer     io.Writer
	timestamps bool
	attrs      []slog.Attr
}

func (h *consoleHandler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	line := "[verbose] " + record.Message
	if record.Level >= slog.LevelWarn {
		line = "[" + record.Level.String() + "] " + record.Message
	}
	if h.timestamps {
		line = record.Time.Format(time.TimeOnly) + " " + line
	}

	appendAttr := func(a slog.Attr) bool {
		// The run ID is noise on an interactive console.
		if a.Key != "run" {
			line += " " + a.String()
		}
		return true
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	record.Attrs(appendAttr)

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.writer, line)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &consoleHandler{mu: h.mu, writer: h.writer, timestamps: h.timestamps, attrs: merged}
}

func (h *consoleHandler) WithGroup(_ string) slog.Handler {
	return h
}

// multiHandler fans out log records to multiple handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
