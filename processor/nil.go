package processor

import (
	"context"
	"time"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// Nil is a processor that puts every record in the smallest bucket and
// produces batches with no outputs. It optionally waits Duration per
// record. It can be used as a mock Processor.
type Nil struct {
	Duration time.Duration
}

// Process implements the batch.Processor interface.
func (p *Nil) Process(ctx context.Context, _ batch.Record) (int64, batch.Sample, error) {
	if p.Duration > 0 {
		t := time.NewTimer(p.Duration)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		case <-t.C:
		}
	}
	return 0, batch.Sample{}, nil
}

// Merge implements the batch.Processor interface.
func (p *Nil) Merge(int64, []batch.Sample) ([]interface{}, error) {
	return []interface{}{}, nil
}

// NumOutputs implements the batch.Processor interface.
func (p *Nil) NumOutputs() int {
	return 0
}
