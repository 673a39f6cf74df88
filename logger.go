package multitable

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with multitable-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithRowID adds a row id field to the logger.
func (l *Logger) WithRowID(id int) *Logger {
	return &Logger{
		Logger: l.Logger.With("row_id", id),
	}
}

// WithSize adds a table size field to the logger.
func (l *Logger) WithSize(size int) *Logger {
	return &Logger{
		Logger: l.Logger.With("size", size),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(id int, err error) {
	if err != nil {
		l.Debug("insert refused",
			"error", err,
		)
	} else {
		l.Debug("insert completed",
			"row_id", id,
		)
	}
}

// LogErase logs an erase operation.
func (l *Logger) LogErase(id, moved int) {
	l.Debug("erase completed",
		"row_id", id,
		"moved_from", moved,
	)
}

// LogClear logs a clear operation.
func (l *Logger) LogClear(size int) {
	l.Debug("table cleared",
		"rows_dropped", size,
	)
}

// LogMove logs a whole-table move.
func (l *Logger) LogMove(size int) {
	l.Debug("table moved",
		"rows", size,
	)
}
