package auth

import (
	"context"
	"fmt"
	"log/slog"
)

// NewSlogLogger adapts a structured logger to Logger. Messages are formatted
// printf style and emitted with the component attribute.
func NewSlogLogger(l *slog.Logger, component string) Logger {
	if l == nil {
		l = slog.Default()
	}
	if component != "" {
		l = l.With(slog.String("component", component))
	}
	return slogLogger{l: l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Debug(format string, args ...any) { s.log(slog.LevelDebug, format, args...) }
func (s slogLogger) Info(format string, args ...any)  { s.log(slog.LevelInfo, format, args...) }
func (s slogLogger) Warn(format string, args ...any)  { s.log(slog.LevelWarn, format, args...) }
func (s slogLogger) Error(format string, args ...any) { s.log(slog.LevelError, format, args...) }

func (s slogLogger) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	s.l.Log(ctx, level, msg)
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
