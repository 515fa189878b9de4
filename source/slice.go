package source

import (
	"context"
	"io"
	"sync"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// Slice is a Yielder over a fixed list of records. It yields them in order,
// Repeat times (0 means once), then returns io.EOF.
type Slice struct {
	Records []batch.Record
	Repeat  int

	mu     sync.Mutex
	pos    int
	pass   int
	closed bool
}

// NewSlice returns a Slice yielding one record per value.
func NewSlice(values ...string) *Slice {
	recs := make([]batch.Record, len(values))
	for i, v := range values {
		recs[i] = batch.Record{Value: []byte(v), Source: "slice"}
	}
	return &Slice{Records: recs}
}

// Yield implements the batch.Yielder interface.
func (s *Slice) Yield(ctx context.Context) (batch.Record, error) {
	if err := ctx.Err(); err != nil {
		return batch.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return batch.Record{}, batch.ErrClosed
	}
	passes := s.Repeat
	if passes <= 0 {
		passes = 1
	}
	if s.pos >= len(s.Records) {
		s.pass++
		s.pos = 0
	}
	if s.pass >= passes || len(s.Records) == 0 {
		return batch.Record{}, io.EOF
	}

	rec := s.Records[s.pos]
	s.pos++
	return rec, nil
}

// Close implements the batch.Yielder interface.
func (s *Slice) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
