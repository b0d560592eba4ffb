package memarena

import (
	"log/slog"
	"os"
	"strconv"
)

// Logger wraps slog.Logger with memarena-specific context.
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

// WithAddr adds a mapping base address field to the logger.
func (l *Logger) WithAddr(addr uintptr) *Logger {
	return &Logger{
		Logger: l.Logger.With("addr", fmtAddr(addr)),
	}
}

// WithRange adds offset/length fields to the logger.
func (l *Logger) WithRange(offset, length uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("offset", offset, "length", length),
	}
}

// LogCreateView logs a view-creation attempt.
func (l *Logger) LogCreateView(offset, length uint64, prot Protection, addr uintptr, err error) {
	if err != nil {
		l.Error("create view failed",
			"offset", offset,
			"length", length,
			"prot", prot.String(),
			"error", err,
		)
	} else {
		l.Debug("view mapped",
			"offset", offset,
			"length", length,
			"prot", prot.String(),
			"addr", fmtAddr(addr),
		)
	}
}

// LogRelease logs a view release.
func (l *Logger) LogRelease(addr uintptr, length uint64, err error) {
	if err != nil {
		l.Error("release view failed",
			"addr", fmtAddr(addr),
			"length", length,
			"error", err,
		)
	} else {
		l.Debug("view released",
			"addr", fmtAddr(addr),
			"length", length,
		)
	}
}

// LogProtect logs a page-protection change.
func (l *Logger) LogProtect(addr uintptr, length uint64, prot Protection, err error) {
	if err != nil {
		l.Error("set page protection failed",
			"addr", fmtAddr(addr),
			"length", length,
			"prot", prot.String(),
			"error", err,
		)
	} else {
		l.Debug("page protection changed",
			"addr", fmtAddr(addr),
			"length", length,
			"prot", prot.String(),
		)
	}
}

func fmtAddr(addr uintptr) string {
	return "0x" + strconv.FormatUint(uint64(addr), 16)
}
