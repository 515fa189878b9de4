package processor

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// ErrInjected is the error returned by an Error processor with no Err set.
var ErrInjected = errors.New("processor error")

// Error wraps a processor and fails a fraction of the records with Err.
// It is useful for testing how a pipeline reacts to bad records.
type Error struct {
	// Processor handles the records that do not fail. If nil, every record
	// fails.
	Processor batch.Processor

	// Err is returned for failing records. Default: ErrInjected
	Err error

	// FailFraction is the probability, from 0.0 to 1.0, that a record
	// fails.
	FailFraction float64

	mu  sync.Mutex
	rng *rand.Rand
}

func (p *Error) fail() bool {
	if p.Processor == nil || p.FailFraction >= 1 {
		return true
	}
	if p.FailFraction <= 0 {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rng == nil {
		p.rng = rand.New(rand.NewSource(1))
	}
	return p.rng.Float64() < p.FailFraction
}

// Process implements the batch.Processor interface.
func (p *Error) Process(ctx context.Context, rec batch.Record) (int64, batch.Sample, error) {
	if p.fail() {
		err := p.Err
		if err == nil {
			err = ErrInjected
		}
		return 0, nil, err
	}
	return p.Processor.Process(ctx, rec)
}

// Merge implements the batch.Processor interface.
func (p *Error) Merge(bucketID int64, samples []batch.Sample) ([]interface{}, error) {
	if p.Processor == nil {
		return []interface{}{}, nil
	}
	return p.Processor.Merge(bucketID, samples)
}

// NumOutputs implements the batch.Processor interface.
func (p *Error) NumOutputs() int {
	if p.Processor == nil {
		return 0
	}
	return p.Processor.NumOutputs()
}
