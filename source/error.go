package source

import (
	"context"
	"io"
	"sync"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// Error is a Yielder that only returns errors read from a channel and
// provides no records. It returns io.EOF once Errs is closed. It is useful
// for testing how a pipeline handles failing sources.
type Error struct {
	// Errs is the channel from which this yielder reads errors.
	// The Error yielder will not close this channel.
	Errs <-chan error

	mu     sync.Mutex
	closed bool
}

// NewError creates an Error yielder reading from errs.
func NewError(errs <-chan error) (*Error, error) {
	if errs == nil {
		return nil, batch.NewConfigError("errs", "error channel cannot be nil")
	}
	return &Error{Errs: errs}, nil
}

// Yield implements the batch.Yielder interface. Nil errors on Errs are
// skipped.
func (s *Error) Yield(ctx context.Context) (batch.Record, error) {
	for {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return batch.Record{}, batch.ErrClosed
		}

		select {
		case <-ctx.Done():
			return batch.Record{}, ctx.Err()
		case err, ok := <-s.Errs:
			if !ok {
				return batch.Record{}, io.EOF
			}
			if err != nil {
				return batch.Record{}, err
			}
		}
	}
}

// Close implements the batch.Yielder interface.
func (s *Error) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
