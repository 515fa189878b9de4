package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// YielderOptions configures a single yielder.
type YielderOptions struct {
	// FilePattern selects the files to read, optionally prefixed with a
	// format: "text:/data/*.txt" or "tfrecord:/data/train-*".
	FilePattern string

	// Seed drives file and record shuffling. Zero picks a random seed.
	Seed int64

	// BufferSize is the number of records held in the shuffle buffer.
	// Default: DefaultBufferSize
	BufferSize int64

	// Parallelism is the number of files read concurrently.
	// Default: DefaultParallelism
	Parallelism int64

	// Epochs is the number of passes over the files before the yielder
	// returns io.EOF. Zero repeats forever.
	Epochs int64

	// Logger receives the yielder's log messages. May be nil.
	Logger batch.Logger
}

// Validate checks if the YielderOptions are valid.
func (o YielderOptions) Validate() error {
	if o.FilePattern == "" {
		return batch.NewConfigError("file_pattern", "must not be empty")
	}
	if o.BufferSize < 0 {
		return batch.NewConfigError("file_buffer_size", "must not be negative, got %d", o.BufferSize)
	}
	if o.Parallelism < 0 {
		return batch.NewConfigError("file_parallelism", "must not be negative, got %d", o.Parallelism)
	}
	if o.Epochs < 0 {
		return batch.NewConfigError("file_epochs", "must not be negative, got %d", o.Epochs)
	}
	return nil
}

// NewFunc constructs a yielder from its options.
type NewFunc func(ctx context.Context, opts YielderOptions) (batch.Yielder, error)

// FactoryOptions holds the settings shared by every source built by
// NewYielders.
type FactoryOptions struct {
	// Seed is the base seed passed through DeriveSeed for each source.
	Seed int64

	BufferSize  int64
	Parallelism int64
	Epochs      int64
	Logger      batch.Logger

	// New builds each yielder. If nil, NewFileYielder is used.
	New NewFunc
}

// NewYielders builds one yielder per spec, in order, seeding the yielder at
// index i with DeriveSeed(opts.Seed, i). If any yielder fails to build, the
// ones already built are closed and the error is returned as a
// *batch.SourceError carrying the failing index.
func NewYielders(ctx context.Context, specs []Spec, opts FactoryOptions) ([]batch.Yielder, error) {
	if len(specs) == 0 {
		return nil, batch.NewConfigError("file_pattern", "no sources")
	}

	newFn := opts.New
	if newFn == nil {
		newFn = func(ctx context.Context, o YielderOptions) (batch.Yielder, error) {
			return NewFileYielder(ctx, o)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = &batch.NoOpLogger{}
	}

	yielders := make([]batch.Yielder, 0, len(specs))
	for i, spec := range specs {
		yopts := YielderOptions{
			FilePattern: spec.FilePattern,
			Seed:        DeriveSeed(opts.Seed, i),
			BufferSize:  opts.BufferSize,
			Parallelism: opts.Parallelism,
			Epochs:      opts.Epochs,
			Logger:      batch.WithPrefix(logger, fmt.Sprintf("source %d: ", i)),
		}

		logger.Debug("Creating yielder %d for %q with seed %d", i, spec.FilePattern, yopts.Seed)
		y, err := newFn(ctx, yopts)
		if err == nil && y == nil {
			err = errors.New("constructor returned a nil yielder")
		}
		if err != nil {
			for _, built := range yielders {
				_ = built.Close()
			}
			return nil, &batch.SourceError{Index: i, Err: fmt.Errorf("creating yielder for %q: %w", spec.FilePattern, err)}
		}
		yielders = append(yielders, y)
	}

	return yielders, nil
}
