package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultLogger returns a new LogrusAdapter with standard configuration.
func DefaultLogger() Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return NewLogrusAdapter(logger)
}

// NewLogger creates a new text Logger with the specified level.
func NewLogger(level LogLevel) Logger {
	logger := DefaultLogger()
	logger.SetLevel(level)
	return logger
}

// JSONLogger returns a new LogrusAdapter with JSON formatting.
func JSONLogger(level LogLevel) Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})

	l := NewLogrusAdapter(logger)
	l.SetLevel(level)
	return l
}

// DiscardLogger returns a Logger that drops everything. Used by tests.
func DiscardLogger() Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewLogrusAdapter(logger)
}

// ParseLevel converts a level name into a LogLevel. The boolean is false for
// unknown names, in which case InfoLevel is returned.
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel, true
	case "info":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	case "fatal":
		return FatalLevel, true
	default:
		return InfoLevel, false
	}
}

// New builds a Logger from a level name and a format ("text" or "json").
func New(level, format string) Logger {
	lvl, _ := ParseLevel(level)
	if strings.EqualFold(format, "json") {
		return JSONLogger(lvl)
	}
	return NewLogger(lvl)
}
