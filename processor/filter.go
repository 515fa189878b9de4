package processor

import (
	"context"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// FilterFunc decides whether a record should be kept.
// Return true to keep the record, false to drop it.
type FilterFunc func(rec batch.Record) bool

// Filter wraps a processor and drops records that fail a predicate before
// they reach it. Dropped records are reported as batch.ErrSkipRecord, so
// the batcher counts them as skipped rather than failed.
type Filter struct {
	// Processor handles the records that are kept.
	Processor batch.Processor

	// Predicate returns true for records that should be kept.
	// If nil, every record is kept.
	Predicate FilterFunc

	// InvertMatch inverts the predicate logic: if true, records matching
	// the predicate are dropped instead of kept.
	InvertMatch bool
}

// Process implements the batch.Processor interface.
func (p *Filter) Process(ctx context.Context, rec batch.Record) (int64, batch.Sample, error) {
	if p.Predicate != nil {
		keep := p.Predicate(rec)
		if p.InvertMatch {
			keep = !keep
		}
		if !keep {
			return 0, nil, batch.ErrSkipRecord
		}
	}
	return p.Processor.Process(ctx, rec)
}

// Merge implements the batch.Processor interface.
func (p *Filter) Merge(bucketID int64, samples []batch.Sample) ([]interface{}, error) {
	return p.Processor.Merge(bucketID, samples)
}

// NumOutputs implements the batch.Processor interface.
func (p *Filter) NumOutputs() int {
	return p.Processor.NumOutputs()
}
