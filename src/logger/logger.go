package logger

import (
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// -----------------------------------------------------------------------------

// settings is satisfied by *models.MConfig and by config.Config through embedding.
type settings interface {
	LoggingLevel() string
	LoggingFormat() string
}

// Logger is a named component logger on top of zerolog.
type Logger struct {
	logger zerolog.Logger
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance writing to stdout.
// config may be nil, in which case INFO level JSON output is used.
func NewLogger(config interface{}, name string) *Logger {
	level, format := "INFO", "json"
	if s, ok := config.(settings); ok && !isNilPointer(s) {
		if s.LoggingLevel() != "" {
			level = s.LoggingLevel()
		}
		if s.LoggingFormat() != "" {
			format = s.LoggingFormat()
		}
	}

	var out io.Writer = os.Stdout
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return NewLoggerWithWriter(out, level, name)
}

// isNilPointer catches typed nils such as (*models.MConfig)(nil).
func isNilPointer(v interface{}) bool {
	rv := reflect.ValueOf(v)
	return !rv.IsValid() || (rv.Kind() == reflect.Ptr && rv.IsNil())
}

// -----------------------------------------------------------------------------

// NewLoggerWithWriter creates a Logger writing JSON lines to w.
func NewLoggerWithWriter(w io.Writer, level string, name string) *Logger {
	zl := zerolog.New(w).With().Timestamp().Str("component", name).Logger().Level(ParseLevel(level))
	return &Logger{logger: zl}
}

// -----------------------------------------------------------------------------

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// -----------------------------------------------------------------------------

// Named returns a logger for another component sharing the same output and level.
func (l *Logger) Named(name string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", name).Logger()}
}

// -----------------------------------------------------------------------------

// ParseLevel maps DEBUG/INFO/WARNING/ERROR/CRITICAL (any case) to zerolog levels.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARNING", "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "CRITICAL", "FATAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.logger.WithLevel(zerolog.FatalLevel).Msgf(format, args...)
	os.Exit(1)
}
