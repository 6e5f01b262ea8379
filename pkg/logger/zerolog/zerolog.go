// Package zerolog provides a Logger backed by github.com/rs/zerolog.
package zerolog

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

const permission = 0o664

// Builder configures where a Logger writes.
type Builder struct {
	writer io.Writer
	path   string
	level  zerolog.Level
}

func New() *Builder {
	return &Builder{level: zerolog.InfoLevel}
}

// FromPath appends log lines to the file at path.
func (b *Builder) FromPath(path string) *Builder {
	b.path = path
	return b
}

// FromWriter writes log lines to w.
func (b *Builder) FromWriter(w io.Writer) *Builder {
	b.writer = w
	return b
}

func (b *Builder) Level(level zerolog.Level) *Builder {
	b.level = level
	return b
}

// Make builds the Logger. A Logger built from a path owns the file; call Close to release it.
func (b *Builder) Make() (*Logger, error) {
	l := &Logger{}
	w := b.writer
	if w == nil {
		w = os.Stderr
	}
	if b.path != "" {
		f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, permission)
		if err != nil {
			return nil, err
		}
		l.file = f
		w = zerolog.SyncWriter(f)
	}
	l.logger = zerolog.New(w).Level(b.level).With().Timestamp().Logger()
	return l, nil
}

// Logger implements the adapter's Logger interface.
type Logger struct {
	logger zerolog.Logger
	file   *os.File
}

// Wrap adapts an existing zerolog.Logger.
func Wrap(l zerolog.Logger) *Logger {
	return &Logger{logger: l}
}

func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error().Fields(fields(args)).Msg(msg)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.logger.Warn().Fields(fields(args)).Msg(msg)
}

func (l *Logger) Info(msg string, args ...any) {
	l.logger.Info().Fields(fields(args)).Msg(msg)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.logger.Debug().Fields(fields(args)).Msg(msg)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// fields pairs up slog-style args. A dangling value is logged under "!BADKEY",
// as log/slog does.
func fields(args []any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args)/2+1)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || i+1 == len(args) {
			out["!BADKEY"] = args[i]
			i--
			continue
		}
		v := args[i+1]
		if err, isErr := v.(error); isErr {
			v = err.Error()
		} else if s, isStringer := v.(fmt.Stringer); isStringer {
			v = s.String()
		}
		out[key] = v
	}
	return out
}
