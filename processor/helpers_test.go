package processor_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/MasterOfBinary/inputbatch/batch"
	"github.com/MasterOfBinary/inputbatch/processor"
)

type captureLogger struct {
	mu       sync.Mutex
	messages []string
}

func (c *captureLogger) Log(level batch.LogLevel, format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	c.messages = append(c.messages, level.String()+" "+msg)
}
func (c *captureLogger) Debug(format string, args ...interface{}) {
	c.Log(batch.LogLevelDebug, format, args...)
}
func (c *captureLogger) Info(format string, args ...interface{}) {
	c.Log(batch.LogLevelInfo, format, args...)
}
func (c *captureLogger) Warn(format string, args ...interface{}) {
	c.Log(batch.LogLevelWarn, format, args...)
}
func (c *captureLogger) Error(format string, args ...interface{}) {
	c.Log(batch.LogLevelError, format, args...)
}

func (c *captureLogger) getMessages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]string, len(c.messages))
	copy(result, c.messages)
	return result
}

// echo returns a processor whose key is the record length and whose
// single-slot sample is the record as a string.
func echo() *processor.Func {
	return &processor.Func{
		ProcessFn: func(_ context.Context, rec batch.Record) (int64, batch.Sample, error) {
			return int64(len(rec.Value)), batch.Sample{string(rec.Value)}, nil
		},
		Outputs: 1,
	}
}

func rec(v string) batch.Record {
	return batch.Record{Value: []byte(v), Source: "test"}
}
