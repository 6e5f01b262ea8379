// Package logger defines the logging interface the adapter writes to.
//
// The default implementation is backed by log/slog. Subpackages adapt zerolog and zap.
package logger

import (
	"io"
	"log/slog"

	slogger "github.com/docmapper/mongoadapter/pkg/logger/slog"
)

// Logger is a leveled, structured logger. Args are alternating keys and values.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
}

// New returns a Logger writing through the given slog handler.
func New(h slog.Handler) Logger {
	return slogger.New(h)
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return slogger.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
