package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/MasterOfBinary/inputbatch/batch"
	"github.com/MasterOfBinary/inputbatch/source"
)

// Option customizes an Input.
type Option func(*settings)

type settings struct {
	logger     batch.Logger
	stats      batch.StatsCollector
	newYielder source.NewFunc
}

// WithLogger sets the logger used by the Input, its sources and its
// batcher. Every line is prefixed with the Input's ID.
func WithLogger(logger batch.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithStats sets the collector that receives batching statistics.
func WithStats(stats batch.StatsCollector) Option {
	return func(s *settings) {
		s.stats = stats
	}
}

// WithYielderFunc replaces the constructor used for every source. By default
// each source is a source.FileYielder.
func WithYielderFunc(fn source.NewFunc) Option {
	return func(s *settings) {
		s.newYielder = fn
	}
}

// Input is the front of an input pipeline. It reads records from one or
// more weighted file sources, parses them with a processor and hands out
// batches of records with similar sizes.
//
// Example usage:
//
//	opts, err := pipeline.LoadOptions("input.yaml")
//	if err != nil {
//		return err
//	}
//	in, err := pipeline.New(ctx, opts, &processor.Text{})
//	if err != nil {
//		return err
//	}
//	defer in.Close()
//
//	for {
//		bucket, outputs, err := in.Next(ctx, pipeline.ProcessorOutputs)
//		if err != nil {
//			return err
//		}
//		train(bucket, outputs)
//	}
type Input struct {
	id      string
	opts    Options
	sources source.SourceSet
	proc    batch.Processor
	logger  batch.Logger
	stats   batch.StatsCollector
	batcher *batch.Batcher
}

// New validates opts, opens every source and starts batching. ctx bounds
// the lifetime of the background readers and workers.
//
// The bucket configuration is checked before any source is opened, so an
// invalid configuration never reads a record. Configuration problems are
// returned as *batch.ConfigError; a source that cannot be opened is
// returned as *batch.SourceError.
func New(ctx context.Context, opts Options, proc batch.Processor, options ...Option) (*Input, error) {
	s := settings{}
	for _, o := range options {
		o(&s)
	}
	if s.logger == nil {
		s.logger = &batch.NoOpLogger{}
	}
	if s.stats == nil {
		s.stats = batch.NewBasicStatsCollector()
	}

	id := uuid.NewString()
	logger := batch.WithPrefix(s.logger, fmt.Sprintf("input %s: ", id))

	if proc == nil {
		return nil, batch.NewConfigError("processor", "processor cannot be nil")
	}
	config, err := opts.BucketConfig()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	limits := opts.ResourceLimits()
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	set, err := source.ParseSources(opts.FilePattern, opts.InputSourceWeights)
	if err != nil {
		return nil, err
	}
	if set.Legacy {
		logger.Info("Input source weights are empty, falling back to legacy single-source mode for %q", opts.FilePattern)
	} else {
		logger.Info("Mixing %d sources with weights %v", len(set.Specs), set.Weights())
	}

	factory := opts.factoryOptions(logger)
	factory.New = s.newYielder
	yielders, err := source.NewYielders(ctx, set.Specs, factory)
	if err != nil {
		return nil, err
	}

	stream, err := source.Mix(yielders, set.Weights(), opts.FileRandomSeed)
	if err != nil {
		for _, y := range yielders {
			_ = y.Close()
		}
		return nil, err
	}

	batcher, err := batch.NewBatcher(config, stream, proc)
	if err != nil {
		_ = stream.Close()
		return nil, err
	}
	batcher.WithLogger(logger).WithStats(s.stats).WithResourceLimits(limits)

	if err := batcher.Start(ctx); err != nil {
		_ = batcher.Close()
		return nil, err
	}

	return &Input{
		id:      id,
		opts:    opts,
		sources: set,
		proc:    proc,
		logger:  logger,
		stats:   s.stats,
		batcher: batcher,
	}, nil
}

// ID returns the unique ID of this Input, used in its log messages.
func (in *Input) ID() string {
	return in.id
}

// Options returns the options the Input was created with.
func (in *Input) Options() Options {
	return in.opts
}

// Sources returns the parsed sources.
func (in *Input) Sources() source.SourceSet {
	return in.sources
}

// ProcessorOutputs can be passed to Input.Next to expect exactly as many
// output slots as the processor's NumOutputs.
const ProcessorOutputs = 0

// Next blocks until a batch is ready and returns its bucket ID and output
// slots.
//
// numOutputs is the number of slots the caller expects, or ProcessorOutputs.
// A negative numOutputs is a *batch.ConfigError. A batch with a different
// number of slots is returned as a *batch.ArityError and should not be
// retried.
//
// Next returns io.EOF once every source is exhausted and the remaining
// batches have been returned, and batch.ErrClosed after Close.
func (in *Input) Next(ctx context.Context, numOutputs int) (int64, []interface{}, error) {
	if numOutputs < 0 {
		return 0, nil, batch.NewConfigError("num_outputs", "cannot be negative, got %d", numOutputs)
	}

	bt, err := in.NextBatch(ctx)
	if err != nil {
		return 0, nil, err
	}

	want := numOutputs
	if want == ProcessorOutputs {
		want = in.proc.NumOutputs()
	}
	if len(bt.Outputs) != want {
		return 0, nil, &batch.ArityError{Got: len(bt.Outputs), Want: want}
	}

	return bt.BucketID, bt.Outputs, nil
}

// NextBatch is like Next but returns the whole batch, including its size
// and whether it was flushed before reaching its bucket's limit.
func (in *Input) NextBatch(ctx context.Context) (*batch.Batch, error) {
	bt, err := in.batcher.Next(ctx)
	if err != nil {
		return nil, err
	}
	in.logger.Debug("Produced batch from bucket %d: %d sample(s), partial=%t", bt.BucketID, bt.Size, bt.Partial)
	return bt, nil
}

// Errors returns non-fatal source and processor errors. See
// batch.Batcher.Errors.
func (in *Input) Errors() <-chan error {
	return in.batcher.Errors()
}

// Stats returns the batching statistics collected so far.
func (in *Input) Stats() batch.Stats {
	return in.stats.GetStats()
}

// Close stops reading, discards buffered records and closes every source.
// It may be called more than once.
func (in *Input) Close() error {
	in.logger.Info("Closing")
	return in.batcher.Close()
}
