package processor

import (
	"context"
	"errors"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// StatsProcessor wraps another processor and collects statistics about the
// records it sees. It counts every record passed to Process as pulled,
// ErrSkipRecord results as skipped and other failures as processor
// errors. Merged batches are not counted; the batcher records those.
//
// Give it its own collector: sharing the batcher's collector counts every
// record twice.
type StatsProcessor struct {
	// Processor is the wrapped processor that does the actual work.
	Processor batch.Processor

	// Stats is used to collect processing metrics.
	// If nil, no statistics are collected.
	Stats batch.StatsCollector
}

// Process implements the batch.Processor interface.
func (p *StatsProcessor) Process(ctx context.Context, rec batch.Record) (int64, batch.Sample, error) {
	key, sample, err := p.Processor.Process(ctx, rec)
	if p.Stats == nil {
		return key, sample, err
	}

	p.Stats.RecordPulled()
	switch {
	case err == nil:
	case errors.Is(err, batch.ErrSkipRecord):
		p.Stats.RecordSkipped()
	default:
		p.Stats.RecordProcessorError()
	}
	return key, sample, err
}

// Merge implements the batch.Processor interface.
func (p *StatsProcessor) Merge(bucketID int64, samples []batch.Sample) ([]interface{}, error) {
	outputs, err := p.Processor.Merge(bucketID, samples)
	if err != nil && p.Stats != nil {
		p.Stats.RecordProcessorError()
	}
	return outputs, err
}

// NumOutputs implements the batch.Processor interface.
func (p *StatsProcessor) NumOutputs() int {
	return p.Processor.NumOutputs()
}

// WrapWithStats wraps a processor with statistics collection.
// This is a convenience function for creating a StatsProcessor.
//
// Example:
//
//	stats := batch.NewBasicStatsCollector()
//	wrapped := processor.WrapWithStats(&processor.Text{}, stats)
//
//	// Later, get statistics
//	currentStats := stats.GetStats()
func WrapWithStats(proc batch.Processor, stats batch.StatsCollector) *StatsProcessor {
	return &StatsProcessor{
		Processor: proc,
		Stats:     stats,
	}
}
