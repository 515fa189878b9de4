package source

import (
	"context"
	"io"
	"sync"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// Channel is a Yielder that reads records from a channel. It returns io.EOF
// once Input is closed and drained. Channel does not close Input.
type Channel struct {
	// Input is the channel from which this yielder reads records.
	Input <-chan batch.Record

	closeOnce sync.Once
	done      chan struct{}
	initOnce  sync.Once
}

// NewChannel creates a Channel yielder reading from input.
func NewChannel(input <-chan batch.Record) (*Channel, error) {
	if input == nil {
		return nil, batch.NewConfigError("input", "input channel cannot be nil")
	}
	return &Channel{Input: input}, nil
}

func (s *Channel) init() {
	s.initOnce.Do(func() {
		s.done = make(chan struct{})
	})
}

// Yield implements the batch.Yielder interface.
func (s *Channel) Yield(ctx context.Context) (batch.Record, error) {
	s.init()

	select {
	case <-s.done:
		return batch.Record{}, batch.ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return batch.Record{}, ctx.Err()
	case <-s.done:
		return batch.Record{}, batch.ErrClosed
	case rec, ok := <-s.Input:
		if !ok {
			return batch.Record{}, io.EOF
		}
		return rec, nil
	}
}

// Close implements the batch.Yielder interface. Pending and later Yield
// calls return batch.ErrClosed.
func (s *Channel) Close() error {
	s.init()
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}
