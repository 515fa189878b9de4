package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MasterOfBinary/inputbatch/batch"
	"github.com/MasterOfBinary/inputbatch/source"
)

// Options is the full configuration of an Input. Field names follow the
// YAML keys accepted by ParseOptions.
type Options struct {
	// FilePattern is a glob, or with InputSourceWeights a comma-separated
	// list of globs, optionally prefixed with a format ("tfrecord:").
	FilePattern string `yaml:"file_pattern"`

	// InputSourceWeights gives the mixing weight of each comma-separated
	// pattern. If empty, FilePattern is read as a single source.
	InputSourceWeights []float64 `yaml:"input_source_weights,omitempty"`

	// FileRandomSeed seeds file shuffling and source mixing. Zero picks a
	// random seed.
	FileRandomSeed int64 `yaml:"file_random_seed"`

	// FileBufferSize is the number of records in each source's shuffle
	// buffer. Default: source.DefaultBufferSize
	FileBufferSize int64 `yaml:"file_buffer_size"`

	// FileParallelism is the number of files each source reads at once.
	// Default: source.DefaultParallelism
	FileParallelism int64 `yaml:"file_parallelism"`

	// FileEpochs is the number of passes over each source before it is
	// exhausted. Zero repeats forever.
	FileEpochs int64 `yaml:"file_epochs,omitempty"`

	BucketUpperBound []int64 `yaml:"bucket_upper_bound"`
	BucketBatchLimit []int64 `yaml:"bucket_batch_limit"`

	// FlushEveryN flushes all buckets every N records. Zero disables
	// periodic flushing.
	FlushEveryN int64 `yaml:"flush_every_n,omitempty"`

	// NumThreads is the number of batching workers.
	// Default: batch.DefaultNumThreads
	NumThreads int `yaml:"num_threads"`

	// BucketOverflow is "drop" or "last_bucket". Default: "drop"
	BucketOverflow string `yaml:"bucket_overflow,omitempty"`

	// BatchQueueSize is the number of ready batches buffered ahead of Next.
	// Default: batch.DefaultBatchQueueSize
	BatchQueueSize int `yaml:"batch_queue_size,omitempty"`

	// MaxBufferedSamples caps the samples held across all buckets. Zero
	// means no cap.
	MaxBufferedSamples int64 `yaml:"max_buffered_samples,omitempty"`
}

// DefaultOptions returns Options with every default filled in and no
// sources or buckets.
func DefaultOptions() Options {
	return Options{
		FileBufferSize:  source.DefaultBufferSize,
		FileParallelism: source.DefaultParallelism,
		NumThreads:      batch.DefaultNumThreads,
		BucketOverflow:  batch.OverflowDrop.String(),
		BatchQueueSize:  batch.DefaultBatchQueueSize,
	}
}

// LoadOptions reads and parses a YAML options file.
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("failed to read options file %s: %w", path, err)
	}
	return ParseOptions(data)
}

// ParseOptions parses YAML data into Options, starting from
// DefaultOptions. Unknown keys are an error.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("failed to parse options YAML: %w", err)
	}

	return opts, nil
}

// MarshalOptions serializes Options to YAML.
func MarshalOptions(opts Options) ([]byte, error) {
	return yaml.Marshal(opts)
}

// BucketConfig returns the batching part of the options.
func (o Options) BucketConfig() (batch.BucketConfig, error) {
	overflow, err := batch.ParseOverflowPolicy(o.BucketOverflow)
	if err != nil {
		return batch.BucketConfig{}, err
	}

	return batch.BucketConfig{
		UpperBounds: o.BucketUpperBound,
		BatchLimits: o.BucketBatchLimit,
		FlushEveryN: o.FlushEveryN,
		NumThreads:  o.NumThreads,
		Overflow:    overflow,
		QueueSize:   o.BatchQueueSize,
	}, nil
}

// ResourceLimits returns the limits applied to the batcher.
func (o Options) ResourceLimits() batch.ResourceLimits {
	return batch.ResourceLimits{MaxBufferedSamples: o.MaxBufferedSamples}
}

// factoryOptions returns the settings shared by every source.
func (o Options) factoryOptions(logger batch.Logger) source.FactoryOptions {
	return source.FactoryOptions{
		Seed:        o.FileRandomSeed,
		BufferSize:  o.FileBufferSize,
		Parallelism: o.FileParallelism,
		Epochs:      o.FileEpochs,
		Logger:      logger,
	}
}
