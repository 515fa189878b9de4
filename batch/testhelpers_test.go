package batch_test

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// testYielder yields predefined records, then io.EOF. If Forever is set it
// blocks after the last record until the context is done instead.
type testYielder struct {
	Records []batch.Record
	Delay   time.Duration
	Forever bool
	Errs    []error

	mu     sync.Mutex
	pos    int
	closed int
}

func (y *testYielder) Yield(ctx context.Context) (batch.Record, error) {
	if y.Delay > 0 {
		select {
		case <-ctx.Done():
			return batch.Record{}, ctx.Err()
		case <-time.After(y.Delay):
		}
	}

	y.mu.Lock()
	if y.closed > 0 {
		y.mu.Unlock()
		return batch.Record{}, batch.ErrClosed
	}
	if len(y.Errs) > 0 {
		err := y.Errs[0]
		y.Errs = y.Errs[1:]
		y.mu.Unlock()
		return batch.Record{}, err
	}
	if y.pos < len(y.Records) {
		rec := y.Records[y.pos]
		y.pos++
		y.mu.Unlock()
		return rec, nil
	}
	y.mu.Unlock()

	if !y.Forever {
		return batch.Record{}, io.EOF
	}
	<-ctx.Done()
	return batch.Record{}, ctx.Err()
}

func (y *testYielder) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.closed++
	return nil
}

func (y *testYielder) closeCount() int {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.closed
}

// recordsOfLen returns one record per length, each made of that many 'x'.
func recordsOfLen(lengths ...int) []batch.Record {
	recs := make([]batch.Record, len(lengths))
	for i, n := range lengths {
		v := make([]byte, n)
		for j := range v {
			v[j] = 'x'
		}
		recs[i] = batch.Record{Value: v, Source: "test-" + strconv.Itoa(i)}
	}
	return recs
}

var errBadRecord = errors.New("bad record")

// lenProcessor keys records by byte length and emits two output slots: the
// record strings and their lengths. Records equal to "skip" are skipped and
// records equal to "bad" fail.
type lenProcessor struct {
	mu     sync.Mutex
	merged int
}

func (p *lenProcessor) Process(_ context.Context, rec batch.Record) (int64, batch.Sample, error) {
	switch string(rec.Value) {
	case "skip":
		return 0, nil, batch.ErrSkipRecord
	case "bad":
		return 0, nil, errBadRecord
	}
	return int64(len(rec.Value)), batch.Sample{string(rec.Value), len(rec.Value)}, nil
}

func (p *lenProcessor) Merge(_ int64, samples []batch.Sample) ([]interface{}, error) {
	p.mu.Lock()
	p.merged++
	p.mu.Unlock()

	values := make([]string, len(samples))
	lengths := make([]int, len(samples))
	for i, s := range samples {
		values[i] = s[0].(string)
		lengths[i] = s[1].(int)
	}
	return []interface{}{values, lengths}, nil
}

func (p *lenProcessor) NumOutputs() int {
	return 2
}

// nextN reads n batches from b, failing fast if one does not arrive.
func nextN(ctx context.Context, b *batch.Batcher, n int) ([]*batch.Batch, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var out []*batch.Batch
	for i := 0; i < n; i++ {
		bt, err := b.Next(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, bt)
	}
	return out, nil
}

// stuckYielder ignores context cancellation: Yield only returns once Close
// has been called.
type stuckYielder struct {
	once    sync.Once
	stop    chan struct{}
	mu      sync.Mutex
	closed  int
	waiting int32
}

func newStuckYielder() *stuckYielder {
	return &stuckYielder{stop: make(chan struct{})}
}

func (y *stuckYielder) Yield(context.Context) (batch.Record, error) {
	atomic.AddInt32(&y.waiting, 1)
	defer atomic.AddInt32(&y.waiting, -1)
	<-y.stop
	return batch.Record{}, batch.ErrClosed
}

func (y *stuckYielder) Close() error {
	y.mu.Lock()
	y.closed++
	y.mu.Unlock()
	y.once.Do(func() { close(y.stop) })
	return nil
}

func (y *stuckYielder) closeCount() int {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.closed
}

// eofOnCancelYielder blocks until its context is done and then reports
// io.EOF, like a reader whose background goroutine shut down.
type eofOnCancelYielder struct{}

func (eofOnCancelYielder) Yield(ctx context.Context) (batch.Record, error) {
	<-ctx.Done()
	return batch.Record{}, io.EOF
}

func (eofOnCancelYielder) Close() error { return nil }
