package observability

import (
	"os"

	"github.com/rs/zerolog"
)

// ZerologLogger is the Logger implementation used throughout the engine. It
// writes structured JSON to stderr, matching the transport-agnostic posture
// of a replica that may be embedded in a CLI, a daemon, or a test harness.
type ZerologLogger struct {
	logger zerolog.Logger
	prefix string
}

// NewLogger creates a new logger with the given component prefix. This is the
// primary logger factory function used throughout the engine.
func NewLogger(prefix string) Logger {
	if prefix == "" {
		prefix = "crdt"
	}
	base := zerolog.New(os.Stderr).With().Timestamp().Str("component", prefix).Logger()
	return &ZerologLogger{logger: base, prefix: prefix}
}

func (l *ZerologLogger) event(level zerolog.Level, msg string, fields map[string]interface{}) {
	evt := l.logger.WithLevel(level)
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg(msg)
}

// Debug logs a debug message.
func (l *ZerologLogger) Debug(msg string, fields map[string]interface{}) {
	l.event(zerolog.DebugLevel, msg, fields)
}

// Info logs an info message.
func (l *ZerologLogger) Info(msg string, fields map[string]interface{}) {
	l.event(zerolog.InfoLevel, msg, fields)
}

// Warn logs a warning message.
func (l *ZerologLogger) Warn(msg string, fields map[string]interface{}) {
	l.event(zerolog.WarnLevel, msg, fields)
}

// Error logs an error message.
func (l *ZerologLogger) Error(msg string, fields map[string]interface{}) {
	l.event(zerolog.ErrorLevel, msg, fields)
}

// Fatal logs a fatal message and exits.
func (l *ZerologLogger) Fatal(msg string, fields map[string]interface{}) {
	l.event(zerolog.FatalLevel, msg, fields)
	os.Exit(1)
}

// Debugf logs a formatted debug message.
func (l *ZerologLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// Infof logs a formatted info message.
func (l *ZerologLogger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// Warnf logs a formatted warning message.
func (l *ZerologLogger) Warnf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

// Errorf logs a formatted error message.
func (l *ZerologLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

// WithPrefix returns a new logger scoped to the given component prefix.
func (l *ZerologLogger) WithPrefix(prefix string) Logger {
	return &ZerologLogger{
		logger: l.logger.With().Str("component", prefix).Logger(),
		prefix: prefix,
	}
}

// With returns a new logger with the given fields attached to every entry.
func (l *ZerologLogger) With(fields map[string]interface{}) Logger {
	ctx := l.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &ZerologLogger{logger: ctx.Logger(), prefix: l.prefix}
}

// NoopLogger is a logger that discards everything; used in tests and by
// callers that don't want engine-internal log noise.
type NoopLogger struct{}

// NewNoopLogger creates a logger that discards all output.
func NewNoopLogger() Logger { return &NoopLogger{} }

func (l *NoopLogger) Debug(msg string, fields map[string]interface{}) {}
func (l *NoopLogger) Info(msg string, fields map[string]interface{})  {}
func (l *NoopLogger) Warn(msg string, fields map[string]interface{})  {}
func (l *NoopLogger) Error(msg string, fields map[string]interface{}) {}
func (l *NoopLogger) Fatal(msg string, fields map[string]interface{}) {}
func (l *NoopLogger) Debugf(format string, args ...interface{})       {}
func (l *NoopLogger) Infof(format string, args ...interface{})        {}
func (l *NoopLogger) Warnf(format string, args ...interface{})        {}
func (l *NoopLogger) Errorf(format string, args ...interface{})       {}
func (l *NoopLogger) WithPrefix(prefix string) Logger                 { return l }
func (l *NoopLogger) With(fields map[string]interface{}) Logger       { return l }
