package batch

import (
	"context"
)

// Record is a single serialized training example read from a source.
type Record struct {
	// Value holds the raw record bytes. Processors must not retain it past
	// Process unless they copy it.
	Value []byte

	// Source identifies where the record came from, typically the file it
	// was read from. It is informational only.
	Source string
}

// Sample is the processed form of a record: one value per output slot.
// All samples produced by one Processor should have the same width.
type Sample []interface{}

// Batch is a completed group of samples from one bucket.
type Batch struct {
	// BucketID is the index of the bucket in BucketConfig.UpperBounds.
	BucketID int64

	// Size is the number of samples merged into Outputs.
	Size int

	// Outputs holds one merged value per output slot, as returned by
	// Processor.Merge.
	Outputs []interface{}

	// Partial is true when the batch was emitted below its bucket's batch
	// limit by a periodic or end-of-stream flush.
	Partial bool
}

// Yielder produces records from one or more underlying sources.
//
// Yield must be safe for concurrent callers. It blocks until a record is
// available, the context is done (returning ctx.Err()), the yielder is
// closed (returning ErrClosed), or the stream is exhausted (returning
// io.EOF). Yielders that cycle their input forever never return io.EOF.
//
// Example:
//
//	func (y *MyYielder) Yield(ctx context.Context) (batch.Record, error) {
//		select {
//		case <-ctx.Done():
//			return batch.Record{}, ctx.Err()
//		case rec, ok := <-y.records:
//			if !ok {
//				return batch.Record{}, io.EOF
//			}
//			return rec, nil
//		}
//	}
type Yielder interface {
	Yield(ctx context.Context) (Record, error)

	// Close releases the yielder's resources and stops any background
	// readers. Close must be idempotent.
	Close() error
}

// Processor converts records into samples and samples into batches.
type Processor interface {
	// Process parses a record and returns its bucketing size key and its
	// sample. Returning ErrSkipRecord drops the record without reporting an
	// error.
	Process(ctx context.Context, rec Record) (key int64, sample Sample, err error)

	// Merge combines the samples of one bucket into output slots. The
	// number of slots must equal NumOutputs.
	Merge(bucketID int64, samples []Sample) ([]interface{}, error)

	// NumOutputs returns the number of output slots Merge produces.
	NumOutputs() int
}
