// Package logging provides the structured logging facade used across the
// authentication and authorization components. The Logger interface keeps
// the rest of the code independent of the concrete backend, which is logrus.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the severity of a log entry.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the lower-case name of the level.
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case FatalLevel:
		return "fatal"
	default:
		return "unknown"
	}
}

// Field is a single structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F is shorthand for constructing a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger is the logging interface used by every component.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// With returns a Logger that adds fields to every entry.
	With(fields ...Field) Logger

	SetLevel(level LogLevel)
	GetLevel() LogLevel
}

// OutputConfigurable is implemented by loggers whose destination can be changed.
type OutputConfigurable interface {
	SetOutput(w io.Writer)
}

// LogrusAdapter implements Logger on top of a logrus.Logger.
type LogrusAdapter struct {
	logger *logrus.Logger
	fields logrus.Fields
}

// NewLogrusAdapter wraps an existing logrus logger.
func NewLogrusAdapter(logger *logrus.Logger) *LogrusAdapter {
	return &LogrusAdapter{logger: logger}
}

func (l *LogrusAdapter) entry(fields []Field) *logrus.Entry {
	e := logrus.NewEntry(l.logger)
	if len(l.fields) > 0 {
		e = e.WithFields(l.fields)
	}
	if len(fields) > 0 {
		lf := make(logrus.Fields, len(fields))
		for _, f := range fields {
			lf[f.Key] = f.Value
		}
		e = e.WithFields(lf)
	}
	return e
}

func (l *LogrusAdapter) Debug(msg string, fields ...Field) { l.entry(fields).Debug(msg) }
func (l *LogrusAdapter) Info(msg string, fields ...Field)  { l.entry(fields).Info(msg) }
func (l *LogrusAdapter) Warn(msg string, fields ...Field)  { l.entry(fields).Warn(msg) }
func (l *LogrusAdapter) Error(msg string, fields ...Field) { l.entry(fields).Error(msg) }
func (l *LogrusAdapter) Fatal(msg string, fields ...Field) { l.entry(fields).Fatal(msg) }

// With returns a child adapter sharing the same logrus logger.
func (l *LogrusAdapter) With(fields ...Field) Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	return &LogrusAdapter{logger: l.logger, fields: merged}
}

// SetLevel sets the minimum level that will be emitted.
func (l *LogrusAdapter) SetLevel(level LogLevel) {
	switch level {
	case DebugLevel:
		l.logger.SetLevel(logrus.DebugLevel)
	case WarnLevel:
		l.logger.SetLevel(logrus.WarnLevel)
	case ErrorLevel:
		l.logger.SetLevel(logrus.ErrorLevel)
	case FatalLevel:
		l.logger.SetLevel(logrus.FatalLevel)
	default:
		l.logger.SetLevel(logrus.InfoLevel)
	}
}

// GetLevel returns the current minimum level.
func (l *LogrusAdapter) GetLevel() LogLevel {
	switch l.logger.GetLevel() {
	case logrus.DebugLevel, logrus.TraceLevel:
		return DebugLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	case logrus.FatalLevel, logrus.PanicLevel:
		return FatalLevel
	default:
		return InfoLevel
	}
}

// SetOutput redirects log output.
func (l *LogrusAdapter) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}
