package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Next and Yield after Close has been called.
	ErrClosed = errors.New("batch: closed")

	// ErrSkipRecord may be returned by Processor.Process to drop a record
	// silently.
	ErrSkipRecord = errors.New("batch: skip record")
)

// ProcessorError is returned when a processor fails.
type ProcessorError struct {
	Err error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("processor error: %v", e.Err)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// SourceError is returned when a source fails.
type SourceError struct {
	// Index is the position of the failing source, or -1 when the error
	// came from the logical stream as a whole.
	Index int
	Err   error
}

func (e *SourceError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("source error: %v", e.Err)
	}
	return fmt.Sprintf("source %d error: %v", e.Index, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// ConfigError is returned when a pipeline is constructed with an invalid
// configuration. It is always fatal: nothing is pulled from any source once
// a ConfigError has been returned.
type ConfigError struct {
	// Field is the option that failed validation.
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// ArityError is returned when a batch does not have the number of output
// slots the caller expects. It means the processor and the caller disagree
// on the output schema, so the call must not be retried.
type ArityError struct {
	Got  int
	Want int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("unexpected batch: got %d outputs, want %d", e.Got, e.Want)
}

// NewConfigError returns a *ConfigError for field with a formatted reason.
func NewConfigError(field, format string, args ...interface{}) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
