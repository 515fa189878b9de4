package source_test

import (
	"context"
	"io"
	"sync"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// countingYielder yields Value forever, or Limit times if Limit > 0, and
// counts how often it was closed.
type countingYielder struct {
	Value string
	Limit int

	mu     sync.Mutex
	n      int
	closed int
}

func (y *countingYielder) Yield(ctx context.Context) (batch.Record, error) {
	if err := ctx.Err(); err != nil {
		return batch.Record{}, err
	}
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.closed > 0 {
		return batch.Record{}, batch.ErrClosed
	}
	if y.Limit > 0 && y.n >= y.Limit {
		return batch.Record{}, io.EOF
	}
	y.n++
	return batch.Record{Value: []byte(y.Value), Source: y.Value}, nil
}

func (y *countingYielder) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.closed++
	return nil
}

func (y *countingYielder) closeCount() int {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.closed
}

// drain yields from y until it returns an error and returns the values
// seen and that error.
func drain(ctx context.Context, y batch.Yielder) ([]string, error) {
	var values []string
	for {
		rec, err := y.Yield(ctx)
		if err != nil {
			return values, err
		}
		values = append(values, string(rec.Value))
	}
}
