package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// LoggingProcessor wraps another processor and logs failed records and
// merged batches.
type LoggingProcessor struct {
	// Processor is the wrapped processor that does the actual work.
	Processor batch.Processor

	// Logger is used to log processing events.
	// If nil, no logging occurs.
	Logger batch.Logger

	// Name is an optional name for this processor used in log messages.
	// If empty, the type of Processor is used.
	Name string
}

func (p *LoggingProcessor) name() string {
	if p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("%T", p.Processor)
}

// Process implements the batch.Processor interface.
func (p *LoggingProcessor) Process(ctx context.Context, rec batch.Record) (int64, batch.Sample, error) {
	key, sample, err := p.Processor.Process(ctx, rec)
	if p.Logger == nil {
		return key, sample, err
	}

	switch {
	case err == nil:
	case errors.Is(err, batch.ErrSkipRecord):
		p.Logger.Debug("Processor '%s' skipped record from %s", p.name(), rec.Source)
	default:
		p.Logger.Warn("Processor '%s' failed on record from %s: %v", p.name(), rec.Source, err)
	}
	return key, sample, err
}

// Merge implements the batch.Processor interface.
func (p *LoggingProcessor) Merge(bucketID int64, samples []batch.Sample) ([]interface{}, error) {
	if p.Logger == nil {
		return p.Processor.Merge(bucketID, samples)
	}

	startTime := time.Now()
	outputs, err := p.Processor.Merge(bucketID, samples)
	duration := time.Since(startTime)
	if err != nil {
		p.Logger.Error("Processor '%s' failed to merge %d samples of bucket %d after %v: %v",
			p.name(), len(samples), bucketID, duration, err)
	} else {
		p.Logger.Debug("Processor '%s' merged %d samples of bucket %d in %v",
			p.name(), len(samples), bucketID, duration)
	}
	return outputs, err
}

// NumOutputs implements the batch.Processor interface.
func (p *LoggingProcessor) NumOutputs() int {
	return p.Processor.NumOutputs()
}

// WrapWithLogging wraps a processor with logging capabilities.
// This is a convenience function for creating a LoggingProcessor.
//
// Example:
//
//	logger := batch.NewSimpleLogger(batch.LogLevelDebug)
//	wrapped := processor.WrapWithLogging(&processor.Text{}, logger, "text")
func WrapWithLogging(proc batch.Processor, logger batch.Logger, name string) *LoggingProcessor {
	return &LoggingProcessor{
		Processor: proc,
		Logger:    logger,
		Name:      name,
	}
}
