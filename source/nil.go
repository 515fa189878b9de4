package source

import (
	"context"
	"sync"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// Nil is a Yielder that never yields a record. Yield blocks until the
// context is done or the yielder is closed, like a source whose files are
// still being written. It can be used as a mock Yielder.
type Nil struct {
	once sync.Once
	done chan struct{}
	stop sync.Once
}

// NewNil creates a new Nil yielder.
func NewNil() *Nil {
	return &Nil{}
}

func (s *Nil) init() {
	s.once.Do(func() {
		s.done = make(chan struct{})
	})
}

// Yield implements the batch.Yielder interface.
func (s *Nil) Yield(ctx context.Context) (batch.Record, error) {
	s.init()
	select {
	case <-ctx.Done():
		return batch.Record{}, ctx.Err()
	case <-s.done:
		return batch.Record{}, batch.ErrClosed
	}
}

// Close implements the batch.Yielder interface.
func (s *Nil) Close() error {
	s.init()
	s.stop.Do(func() {
		close(s.done)
	})
	return nil
}
