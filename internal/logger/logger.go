package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

// Options controls where log lines go.
type Options struct {
	Verbose bool
	LogFile string    // JSON log file, empty disables it
	Console io.Writer // defaults to os.Stdout
}

var (
	mu   sync.RWMutex
	base = slog.New(newConsoleHandler(os.Stdout, slog.LevelInfo))
)

// Setup replaces the package logger. Console output keeps the plain operator-facing format;
// when a log file is configured every record is also written there as JSON.
// The returned function closes the log file.
func Setup(opts Options) func() error {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	consoleHandler := newConsoleHandler(console, level)

	cleanup := func() error { return nil }
	var handler slog.Handler = consoleHandler

	if opts.LogFile != "" {
		file, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(console, "⚠️  Could not open log file %s: %v\n", opts.LogFile, err)
		} else {
			fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
			handler = slogmulti.Fanout(consoleHandler, fileHandler)
			cleanup = file.Close
		}
	}

	mu.Lock()
	base = slog.New(handler)
	mu.Unlock()
	return cleanup
}

// SetupWithWriters builds the same fanout over arbitrary writers (for testing).
func SetupWithWriters(console, file io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slogmulti.Fanout(
		newConsoleHandler(console, level),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	mu.Lock()
	base = slog.New(handler)
	mu.Unlock()
}

// Slog returns the underlying structured logger.
func Slog() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug prints only if verbose mode is enabled
func Debug(format string, args ...interface{}) {
	Slog().Debug(fmt.Sprintf(format, args...))
}

// Info always prints
func Info(format string, args ...interface{}) {
	Slog().Info(fmt.Sprintf(format, args...))
}

// Warn always prints with a warning icon
func Warn(format string, args ...interface{}) {
	Slog().Warn(fmt.Sprintf(format, args...))
}

// Error always prints
func Error(format string, args ...interface{}) {
	Slog().Error(fmt.Sprintf(format, args...))
}

// consoleHandler renders records the way an operator reads them: one line, icon prefix, no
// timestamps or attributes. Attributes only reach the JSON file.
type consoleHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Level
}

func newConsoleHandler(w io.Writer, level slog.Level) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	prefix := ""
	switch {
	case r.Level < slog.LevelInfo:
		prefix = "[DEBUG] "
	case r.Level >= slog.LevelError:
		prefix = "❌ "
	case r.Level >= slog.LevelWarn:
		prefix = "⚠️  "
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.w, prefix+r.Message)
	return err
}

func (h *consoleHandler) WithAttrs(_ []slog.Attr) slog.Handler { return h }

func (h *consoleHandler) WithGroup(_ string) slog.Handler { return h }
