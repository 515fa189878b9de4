package processor

import (
	"context"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// TransformFunc rewrites the bytes of a record.
type TransformFunc func(value []byte) ([]byte, error)

// Transform wraps a processor and rewrites every record's value before
// passing it on. It can be used to decompress, normalise or decode records.
type Transform struct {
	// Processor handles the transformed records.
	Processor batch.Processor

	// Func is applied to each record's Value. If nil, records pass through
	// unchanged.
	Func TransformFunc

	// ContinueOnError drops records whose transformation fails instead of
	// returning the error, which the batcher would report as a processor
	// error.
	ContinueOnError bool
}

// Process implements the batch.Processor interface.
func (p *Transform) Process(ctx context.Context, rec batch.Record) (int64, batch.Sample, error) {
	if p.Func != nil {
		value, err := p.Func(rec.Value)
		if err != nil {
			if p.ContinueOnError {
				return 0, nil, batch.ErrSkipRecord
			}
			return 0, nil, err
		}
		rec.Value = value
	}
	return p.Processor.Process(ctx, rec)
}

// Merge implements the batch.Processor interface.
func (p *Transform) Merge(bucketID int64, samples []batch.Sample) ([]interface{}, error) {
	return p.Processor.Merge(bucketID, samples)
}

// NumOutputs implements the batch.Processor interface.
func (p *Transform) NumOutputs() int {
	return p.Processor.NumOutputs()
}
