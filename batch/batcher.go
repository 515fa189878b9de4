package batch

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// closeGrace is how long Close waits for workers to leave Yield after their
// context is canceled before it closes the stream underneath them.
var closeGrace = 2 * time.Second

// bucket is one size-keyed accumulation buffer.
type bucket struct {
	mu      sync.Mutex
	limit   int
	samples []Sample
}

// detach returns the buffered samples and leaves the bucket empty. The
// caller must hold b.mu.
func (b *bucket) detach() []Sample {
	samples := b.samples
	b.samples = make([]Sample, 0, b.limit)
	return samples
}

// Batcher groups records from a Yielder into size-keyed buckets and emits a
// Batch whenever a bucket reaches its limit. See the package documentation
// for the flush rules.
//
// To create a Batcher, call NewBatcher, then Start it:
//
//	b, err := batch.NewBatcher(config, stream, proc)
//	if err != nil {
//		return err
//	}
//	b.WithLogger(logger)
//	if err := b.Start(ctx); err != nil {
//		return err
//	}
//	defer b.Close()
//
//	for {
//		bt, err := b.Next(ctx)
//		if err != nil {
//			return err
//		}
//		// use bt.Outputs
//	}
//
// The Batcher owns the stream: Close closes it.
type Batcher struct {
	config  BucketConfig
	stream  Yielder
	proc    Processor
	logger  Logger
	stats   StatsCollector
	buckets []*bucket
	tracker *resourceTracker
	pulled  int64
	ready   chan *Batch
	errs    chan error
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error

	// mu protects the following variables
	mu      sync.Mutex
	running bool
	closing bool
	cancel  context.CancelFunc
	endErr  error
}

// NewBatcher validates config and creates a Batcher reading from stream.
// An invalid config is reported as a *ConfigError and nothing is read from
// stream.
func NewBatcher(config BucketConfig, stream Yielder, proc Processor) (*Batcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if stream == nil {
		return nil, NewConfigError("stream", "stream cannot be nil")
	}
	if proc == nil {
		return nil, NewConfigError("processor", "processor cannot be nil")
	}

	config = config.withDefaults()
	buckets := make([]*bucket, len(config.UpperBounds))
	for i := range buckets {
		limit := int(config.BatchLimits[i])
		buckets[i] = &bucket{
			limit:   limit,
			samples: make([]Sample, 0, limit),
		}
	}

	return &Batcher{
		config:  config,
		stream:  stream,
		proc:    proc,
		logger:  &NoOpLogger{},
		stats:   &NoOpStatsCollector{},
		buckets: buckets,
		tracker: newResourceTracker(ResourceLimits{}),
		ready:   make(chan *Batch, config.QueueSize),
		errs:    make(chan error, DefaultErrorBufferSize),
		done:    make(chan struct{}),
	}, nil
}

// WithLogger sets a custom logger for the Batcher.
// Panics if called after Start.
func (b *Batcher) WithLogger(logger Logger) *Batcher {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		panic("batch: WithLogger cannot be called after Start")
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	b.logger = logger
	return b
}

// WithStats sets a custom stats collector for the Batcher.
// Panics if called after Start.
func (b *Batcher) WithStats(stats StatsCollector) *Batcher {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		panic("batch: WithStats cannot be called after Start")
	}
	if stats == nil {
		stats = &NoOpStatsCollector{}
	}
	b.stats = stats
	return b
}

// WithResourceLimits sets limits on what the Batcher may buffer. The limits
// are validated by Start.
// Panics if called after Start.
func (b *Batcher) WithResourceLimits(limits ResourceLimits) *Batcher {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		panic("batch: WithResourceLimits cannot be called after Start")
	}
	b.tracker = newResourceTracker(limits)
	return b
}

// Config returns the effective configuration, with defaults applied.
func (b *Batcher) Config() BucketConfig {
	return b.config
}

// Start launches NumThreads workers pulling from the stream. Canceling ctx
// stops the workers; Next then returns ctx's error once the queue is drained.
func (b *Batcher) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closing {
		return ErrClosed
	}
	if b.running {
		return errors.New("batch: Start called twice")
	}
	if err := b.tracker.limits.Validate(); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.running = true

	b.logger.Info("Starting batcher: %d worker(s), upper bounds %v, batch limits %v, flush every %d",
		b.config.NumThreads, b.config.UpperBounds, b.config.BatchLimits, b.config.FlushEveryN)

	// Workers pull under pullCtx, which is also canceled when any worker
	// sees io.EOF. Emission uses runCtx so that batches assembled from
	// records already pulled are not lost at end of stream.
	g, pullCtx := errgroup.WithContext(runCtx)
	for i := 0; i < b.config.NumThreads; i++ {
		worker := i
		g.Go(func() error {
			return b.work(pullCtx, runCtx, worker)
		})
	}
	go b.wait(runCtx, g)

	return nil
}

// wait runs after Start and finishes the Batcher once every worker exits.
func (b *Batcher) wait(runCtx context.Context, g *errgroup.Group) {
	err := g.Wait()

	b.mu.Lock()
	closing := b.closing
	b.mu.Unlock()

	var endErr error
	switch {
	case closing:
		endErr = ErrClosed
	case runCtx.Err() != nil:
		// A yielder may report io.EOF because its own context was
		// canceled; cancellation wins.
		endErr = runCtx.Err()
	case errors.Is(err, io.EOF):
		b.logger.Info("Stream exhausted after %d record(s), flushing remaining buckets",
			atomic.LoadInt64(&b.pulled))
		b.flush(runCtx, "end of stream")
		endErr = io.EOF
	default:
		endErr = io.EOF
	}

	b.mu.Lock()
	b.endErr = endErr
	b.mu.Unlock()

	close(b.ready)
	close(b.errs)
	close(b.done)
}

// work is the loop run by each worker.
func (b *Batcher) work(pullCtx, emitCtx context.Context, worker int) error {
	b.logger.Debug("Worker %d started", worker)
	defer b.logger.Debug("Worker %d stopped", worker)

	for {
		rec, err := b.stream.Yield(pullCtx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return io.EOF
			case pullCtx.Err() != nil, errors.Is(err, ErrClosed):
				return nil
			default:
				b.stats.RecordSourceError()
				var srcErr *SourceError
				if !errors.As(err, &srcErr) {
					err = &SourceError{Index: -1, Err: err}
				}
				b.report(err)
				continue
			}
		}

		b.stats.RecordPulled()
		n := atomic.AddInt64(&b.pulled, 1)

		b.add(emitCtx, rec)

		if b.config.FlushEveryN > 0 && n%b.config.FlushEveryN == 0 {
			b.flush(emitCtx, "periodic")
		}
	}
}

// add processes one record and appends its sample to the matching bucket,
// emitting the bucket if it is full.
func (b *Batcher) add(ctx context.Context, rec Record) {
	key, sample, err := b.proc.Process(ctx, rec)
	if err != nil {
		if errors.Is(err, ErrSkipRecord) {
			b.stats.RecordSkipped()
			return
		}
		b.stats.RecordProcessorError()
		b.report(&ProcessorError{Err: err})
		return
	}

	id := b.config.bucketFor(key)
	if id < 0 {
		b.stats.RecordDropped()
		b.logger.Debug("Dropping record with key %d above largest bound %d",
			key, b.config.UpperBounds[len(b.config.UpperBounds)-1])
		return
	}

	bk := b.buckets[id]
	bk.mu.Lock()
	bk.samples = append(bk.samples, sample)
	b.tracker.hold(1)
	var full []Sample
	if len(bk.samples) >= bk.limit {
		full = bk.detach()
		b.tracker.hold(-len(full))
	}
	bk.mu.Unlock()

	if full != nil {
		b.emit(ctx, int64(id), full, false)
		return
	}
	if b.tracker.exceeded() {
		b.relieve(ctx)
	}
}

// relieve emits the bucket holding the most samples as a partial batch.
func (b *Batcher) relieve(ctx context.Context) {
	id, most := -1, 0
	for i, bk := range b.buckets {
		bk.mu.Lock()
		n := len(bk.samples)
		bk.mu.Unlock()
		if n > most {
			id, most = i, n
		}
	}
	if id < 0 {
		return
	}

	bk := b.buckets[id]
	bk.mu.Lock()
	var samples []Sample
	if len(bk.samples) > 0 {
		samples = bk.detach()
		b.tracker.hold(-len(samples))
	}
	bk.mu.Unlock()

	if samples != nil {
		b.logger.Debug("Buffered samples reached %d, emitting bucket %d with %d/%d sample(s)",
			b.tracker.limits.MaxBufferedSamples, id, len(samples), bk.limit)
		b.emit(ctx, int64(id), samples, true)
	}
}

// flush emits every non-empty bucket as a partial batch.
func (b *Batcher) flush(ctx context.Context, reason string) {
	b.stats.RecordFlush()
	for id, bk := range b.buckets {
		bk.mu.Lock()
		var samples []Sample
		if len(bk.samples) > 0 {
			samples = bk.detach()
			b.tracker.hold(-len(samples))
		}
		bk.mu.Unlock()

		if samples != nil {
			b.logger.Debug("Flushing bucket %d with %d/%d sample(s) (%s)",
				id, len(samples), bk.limit, reason)
			b.emit(ctx, int64(id), samples, true)
		}
	}
}

// emit merges samples and queues the batch for Next. It gives up if ctx is
// done before the batch is accepted.
func (b *Batcher) emit(ctx context.Context, bucketID int64, samples []Sample, partial bool) {
	outputs, err := b.proc.Merge(bucketID, samples)
	if err != nil {
		b.stats.RecordProcessorError()
		b.report(&ProcessorError{Err: err})
		return
	}

	bt := &Batch{
		BucketID: bucketID,
		Size:     len(samples),
		Outputs:  outputs,
		Partial:  partial,
	}

	select {
	case b.ready <- bt:
		b.stats.RecordBatch(bucketID, bt.Size, partial)
	case <-ctx.Done():
		b.logger.Debug("Discarding batch from bucket %d: %v", bucketID, ctx.Err())
	}
}

// report forwards err on the error channel without blocking.
func (b *Batcher) report(err error) {
	b.logger.Error("%v", err)
	select {
	case b.errs <- err:
	default:
		b.logger.Warn("Error buffer full, dropping: %v", err)
	}
}

// Next blocks until a batch is ready and returns it.
//
// Next returns ErrClosed after Close, io.EOF once a finite stream has been
// exhausted and every batch has been returned, or ctx.Err() if ctx is done
// first.
func (b *Batcher) Next(ctx context.Context) (*Batch, error) {
	if b.isClosing() {
		return nil, ErrClosed
	}

	select {
	case bt, ok := <-b.ready:
		if !ok {
			return nil, b.end()
		}
		if b.isClosing() {
			return nil, ErrClosed
		}
		return bt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Errors returns a channel of non-fatal source and processor errors. Errors
// are dropped if nobody reads the channel and its buffer fills up. The
// channel is closed when the workers have stopped.
func (b *Batcher) Errors() <-chan error {
	return b.errs
}

// Done returns a channel that is closed when every worker has stopped.
func (b *Batcher) Done() <-chan struct{} {
	return b.done
}

// Buffered returns the total number of samples currently held in buckets.
func (b *Batcher) Buffered() int64 {
	return b.tracker.usage()
}

// Pending returns the number of samples currently buffered in each bucket.
func (b *Batcher) Pending() []int {
	pending := make([]int, len(b.buckets))
	for i, bk := range b.buckets {
		bk.mu.Lock()
		pending[i] = len(bk.samples)
		bk.mu.Unlock()
	}
	return pending
}

// Close stops the workers, discards partially filled buckets and closes the
// stream, in that order. It may be called more than once; later calls
// wait for the first to finish and return its result.
func (b *Batcher) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.shutdown()
	})
	return b.closeErr
}

func (b *Batcher) shutdown() error {
	b.mu.Lock()
	b.closing = true
	running := b.running
	cancel := b.cancel
	b.mu.Unlock()

	b.logger.Info("Closing batcher")

	if !running {
		close(b.ready)
		close(b.errs)
		close(b.done)
		return b.stream.Close()
	}

	cancel()

	var closeErr error
	streamClosed := false
	select {
	case <-b.done:
	case <-time.After(closeGrace):
		// A yielder that ignores cancellation is unblocked by closing it.
		b.logger.Warn("Workers still blocked after %v, closing stream", closeGrace)
		closeErr = b.stream.Close()
		streamClosed = true
		<-b.done
	}

	var discarded int
	for _, bk := range b.buckets {
		bk.mu.Lock()
		discarded += len(bk.samples)
		b.tracker.hold(-len(bk.samples))
		bk.samples = nil
		bk.mu.Unlock()
	}
	if discarded > 0 {
		b.logger.Debug("Discarded %d buffered sample(s)", discarded)
	}

	if !streamClosed {
		closeErr = b.stream.Close()
	}
	return closeErr
}

func (b *Batcher) isClosing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closing
}

func (b *Batcher) end() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closing {
		return ErrClosed
	}
	if b.endErr == nil {
		return io.EOF
	}
	return b.endErr
}
