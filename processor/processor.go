package processor

import (
	"context"
	"fmt"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// ProcessFunc parses a record into its size key and sample.
type ProcessFunc func(ctx context.Context, rec batch.Record) (int64, batch.Sample, error)

// MergeFunc merges the samples of one bucket into output slots.
type MergeFunc func(bucketID int64, samples []batch.Sample) ([]interface{}, error)

// Func adapts plain functions to the batch.Processor interface.
type Func struct {
	// ProcessFn is called for every record. It is required.
	ProcessFn ProcessFunc

	// MergeFn merges a bucket's samples. If nil, TransposeMerge is used
	// with Outputs slots.
	MergeFn MergeFunc

	// Outputs is the number of output slots produced by Merge.
	Outputs int
}

// Process implements the batch.Processor interface.
func (p *Func) Process(ctx context.Context, rec batch.Record) (int64, batch.Sample, error) {
	if p.ProcessFn == nil {
		return 0, nil, fmt.Errorf("processor: nil ProcessFn")
	}
	return p.ProcessFn(ctx, rec)
}

// Merge implements the batch.Processor interface.
func (p *Func) Merge(bucketID int64, samples []batch.Sample) ([]interface{}, error) {
	if p.MergeFn != nil {
		return p.MergeFn(bucketID, samples)
	}
	return TransposeMerge(p.Outputs, samples)
}

// NumOutputs implements the batch.Processor interface.
func (p *Func) NumOutputs() int {
	return p.Outputs
}

// TransposeMerge turns a list of samples of width n into n output slots.
// Slot j is a []interface{} holding sample[j] of every sample, in order.
// Every sample must have exactly n values.
func TransposeMerge(n int, samples []batch.Sample) ([]interface{}, error) {
	slots := make([][]interface{}, n)
	for j := range slots {
		slots[j] = make([]interface{}, 0, len(samples))
	}

	for i, s := range samples {
		if len(s) != n {
			return nil, fmt.Errorf("sample %d has %d values, want %d", i, len(s), n)
		}
		for j, v := range s {
			slots[j] = append(slots[j], v)
		}
	}

	outputs := make([]interface{}, n)
	for j, slot := range slots {
		outputs[j] = slot
	}
	return outputs, nil
}
