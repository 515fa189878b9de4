package batch

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// LogLevel represents the severity of a log message.
type LogLevel int

const (
	// LogLevelDebug is for per-batch and per-record detail.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for pipeline construction and lifecycle events.
	LogLevelInfo
	// LogLevelWarn is for dropped records and full error buffers.
	LogLevelWarn
	// LogLevelError is for source and processor failures.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a level name such as "info" or "DEBUG".
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LogLevelDebug, nil
	case "INFO", "":
		return LogLevelInfo, nil
	case "WARN", "WARNING":
		return LogLevelWarn, nil
	case "ERROR":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger defines the interface for logging within the input pipeline.
// The Logger is optional - if not provided, no logging occurs.
type Logger interface {
	// Log writes a log message at the specified level.
	// The message is formatted using fmt.Sprintf if args are provided.
	Log(level LogLevel, format string, args ...interface{})

	// Debug logs a debug-level message.
	Debug(format string, args ...interface{})

	// Info logs an info-level message.
	Info(format string, args ...interface{})

	// Warn logs a warning-level message.
	Warn(format string, args ...interface{})

	// Error logs an error-level message.
	Error(format string, args ...interface{})
}

// NoOpLogger is a logger that discards all log messages.
// This is the default logger when none is specified.
type NoOpLogger struct{}

// Log implements the Logger interface.
func (n *NoOpLogger) Log(level LogLevel, format string, args ...interface{}) {}

// Debug implements the Logger interface.
func (n *NoOpLogger) Debug(format string, args ...interface{}) {}

// Info implements the Logger interface.
func (n *NoOpLogger) Info(format string, args ...interface{}) {}

// Warn implements the Logger interface.
func (n *NoOpLogger) Warn(format string, args ...interface{}) {}

// Error implements the Logger interface.
func (n *NoOpLogger) Error(format string, args ...interface{}) {}

// SimpleLogger writes Debug and Info messages to one log.Logger and Warn
// and Error messages to another, each line prefixed with its level.
type SimpleLogger struct {
	// MinLevel is the minimum log level to output. Messages below this level are discarded.
	MinLevel LogLevel

	// StdoutLogger handles Debug and Info level messages
	StdoutLogger *log.Logger

	// StderrLogger handles Warn and Error level messages
	StderrLogger *log.Logger
}

// NewSimpleLogger creates a SimpleLogger writing to stdout and stderr.
func NewSimpleLogger(minLevel LogLevel) *SimpleLogger {
	return NewWriterLogger(minLevel, os.Stdout, os.Stderr)
}

// NewWriterLogger creates a SimpleLogger writing to the given writers.
func NewWriterLogger(minLevel LogLevel, out, errOut io.Writer) *SimpleLogger {
	return &SimpleLogger{
		MinLevel:     minLevel,
		StdoutLogger: log.New(out, "", log.LstdFlags),
		StderrLogger: log.New(errOut, "", log.LstdFlags),
	}
}

// Log implements the Logger interface.
func (s *SimpleLogger) Log(level LogLevel, format string, args ...interface{}) {
	if level < s.MinLevel {
		return
	}

	msg := fmt.Sprintf(format, args...)
	switch level {
	case LogLevelDebug, LogLevelInfo:
		s.StdoutLogger.Printf("[%s] %s", level, msg)
	default:
		s.StderrLogger.Printf("[%s] %s", level, msg)
	}
}

// Debug implements the Logger interface.
func (s *SimpleLogger) Debug(format string, args ...interface{}) {
	s.Log(LogLevelDebug, format, args...)
}

// Info implements the Logger interface.
func (s *SimpleLogger) Info(format string, args ...interface{}) {
	s.Log(LogLevelInfo, format, args...)
}

// Warn implements the Logger interface.
func (s *SimpleLogger) Warn(format string, args ...interface{}) {
	s.Log(LogLevelWarn, format, args...)
}

// Error implements the Logger interface.
func (s *SimpleLogger) Error(format string, args ...interface{}) {
	s.Log(LogLevelError, format, args...)
}

// PrefixLogger prepends a fixed prefix to every message of the wrapped
// Logger. It is used to tag log lines with a pipeline run ID.
type PrefixLogger struct {
	Logger Logger
	Prefix string
}

// WithPrefix wraps logger so that every message starts with prefix. A nil
// logger yields a NoOpLogger.
func WithPrefix(logger Logger, prefix string) Logger {
	if logger == nil {
		return &NoOpLogger{}
	}
	return &PrefixLogger{Logger: logger, Prefix: prefix}
}

// Log implements the Logger interface.
func (p *PrefixLogger) Log(level LogLevel, format string, args ...interface{}) {
	p.Logger.Log(level, p.Prefix+format, args...)
}

// Debug implements the Logger interface.
func (p *PrefixLogger) Debug(format string, args ...interface{}) {
	p.Log(LogLevelDebug, format, args...)
}

// Info implements the Logger interface.
func (p *PrefixLogger) Info(format string, args ...interface{}) {
	p.Log(LogLevelInfo, format, args...)
}

// Warn implements the Logger interface.
func (p *PrefixLogger) Warn(format string, args ...interface{}) {
	p.Log(LogLevelWarn, format, args...)
}

// Error implements the Logger interface.
func (p *PrefixLogger) Error(format string, args ...interface{}) {
	p.Log(LogLevelError, format, args...)
}
