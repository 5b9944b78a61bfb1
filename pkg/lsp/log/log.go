// Package log provides centralized logging for the language server.
//
// Logging is off until SetOutput is called: stdout carries the protocol, so
// nothing may be written there.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

var (
	logger *slog.Logger
	level  = new(slog.LevelVar)
	mu     sync.RWMutex
)

func init() {
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SetOutput sets the log destination. Pass nil to disable logging.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SetLevel sets the minimum level written. Accepts debug, info, warn, error.
func SetLevel(name string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("log level %q: %w", name, err)
	}
	level.Set(l)
	return nil
}

// Logger returns the current structured logger.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func write(component string, l slog.Level, format string, args ...any) {
	lg := Logger()
	if !lg.Enabled(context.Background(), l) {
		return
	}
	lg.Log(context.Background(), l, fmt.Sprintf(format, args...), slog.String("component", component))
}

// Debug writes a debug log message.
func Debug(format string, args ...any) {
	write("lsp", slog.LevelDebug, format, args...)
}

// Server writes a server-scoped log message.
func Server(format string, args ...any) {
	write("server", slog.LevelInfo, format, args...)
}

// Foreign writes a message about a foreign language server.
func Foreign(format string, args ...any) {
	write("foreign", slog.LevelDebug, format, args...)
}

// Mapping writes a mapping-scoped debug message.
func Mapping(format string, args ...any) {
	write("mapping", slog.LevelDebug, format, args...)
}

// Error writes an error-level message for the given component.
func Error(component, format string, args ...any) {
	write(component, slog.LevelError, format, args...)
}

// Delegate returns a logger for one delegated request.
func Delegate(method, requestID string) *slog.Logger {
	return Logger().With(
		slog.String("component", "delegate"),
		slog.String("method", method),
		slog.String("request_id", requestID),
	)
}
