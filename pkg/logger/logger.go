package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RequestIDKey is the context key the HTTP middleware stores request ids under
const RequestIDKey = "request_id"

// Logger wraps slog for structured logging
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New writes JSON logs to stdout and, when file is set, to a rotated log file
func New(level, file string) *Logger {
	var w io.Writer = os.Stdout
	var closer io.Closer

	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     30, // days
		}
		w = io.MultiWriter(os.Stdout, rotator)
		closer = rotator
	}

	l := NewWithWriter(level, w)
	l.closer = closer
	return l
}

// NewWithWriter builds a JSON logger on an arbitrary writer
func NewWithWriter(level string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	return &Logger{Logger: slog.New(slog.NewJSONHandler(w, opts))}
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// WithContext adds the request id from ctx, if any
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return &Logger{Logger: l.With("request_id", requestID), closer: l.closer}
	}
	return l
}

// WithFields adds additional fields to the logger
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{Logger: l.With(args...), closer: l.closer}
}

// Close flushes the log file, if one is open
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
