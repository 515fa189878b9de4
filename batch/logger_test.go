package batch_test

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MasterOfBinary/inputbatch/batch"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    batch.LogLevel
		expected string
	}{
		{batch.LogLevelDebug, "DEBUG"},
		{batch.LogLevelInfo, "INFO"},
		{batch.LogLevelWarn, "WARN"},
		{batch.LogLevelError, "ERROR"},
		{batch.LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]batch.LogLevel{
		"debug":   batch.LogLevelDebug,
		"INFO":    batch.LogLevelInfo,
		"":        batch.LogLevelInfo,
		"warning": batch.LogLevelWarn,
		" error ": batch.LogLevelError,
	} {
		got, err := batch.ParseLogLevel(in)
		assert.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := batch.ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestSimpleLogger(t *testing.T) {
	tests := []struct {
		name        string
		minLevel    batch.LogLevel
		logFunc     func(logger batch.Logger)
		contains    []string
		notContains []string
	}{
		{
			name:     "info level filters debug",
			minLevel: batch.LogLevelInfo,
			logFunc: func(logger batch.Logger) {
				logger.Debug("debug message")
				logger.Info("info message")
			},
			contains:    []string{"[INFO] info message"},
			notContains: []string{"[DEBUG]"},
		},
		{
			name:     "error level only shows errors",
			minLevel: batch.LogLevelError,
			logFunc: func(logger batch.Logger) {
				logger.Info("info")
				logger.Warn("warn")
				logger.Error("error message")
			},
			contains:    []string{"[ERROR] error message"},
			notContains: []string{"[INFO]", "[WARN]"},
		},
		{
			name:     "formatting works",
			minLevel: batch.LogLevelInfo,
			logFunc: func(logger batch.Logger) {
				logger.Info("bucket %d: %s", 3, "full")
			},
			contains: []string{"[INFO] bucket 3: full"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			logger := &batch.SimpleLogger{
				MinLevel:     tt.minLevel,
				StdoutLogger: log.New(&stdout, "", 0),
				StderrLogger: log.New(&stderr, "", 0),
			}

			tt.logFunc(logger)

			output := stdout.String() + stderr.String()
			for _, want := range tt.contains {
				assert.Contains(t, output, want)
			}
			for _, notWant := range tt.notContains {
				assert.NotContains(t, output, notWant)
			}
		})
	}
}

func TestSimpleLogger_OutputDestination(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := batch.NewWriterLogger(batch.LogLevelDebug, &stdout, &stderr)

	logger.Debug("debug to stdout")
	logger.Info("info to stdout")
	logger.Warn("warn to stderr")
	logger.Error("error to stderr")

	assert.Contains(t, stdout.String(), "debug to stdout")
	assert.Contains(t, stdout.String(), "info to stdout")
	assert.Contains(t, stderr.String(), "warn to stderr")
	assert.Contains(t, stderr.String(), "error to stderr")
	assert.False(t, strings.Contains(stdout.String(), "stderr"))
	assert.False(t, strings.Contains(stderr.String(), "stdout"))
}

func TestWithPrefix(t *testing.T) {
	var stdout bytes.Buffer
	base := batch.NewWriterLogger(batch.LogLevelDebug, &stdout, &stdout)

	logger := batch.WithPrefix(base, "run 42: ")
	logger.Info("batch from bucket %d", 1)
	assert.Contains(t, stdout.String(), "[INFO] run 42: batch from bucket 1")

	assert.IsType(t, &batch.NoOpLogger{}, batch.WithPrefix(nil, "x"))
}
