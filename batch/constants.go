package batch

// Defaults applied by NewBatcher when the corresponding BucketConfig field
// is zero.
const (
	// DefaultNumThreads is the default number of workers pulling records.
	DefaultNumThreads = 1

	// DefaultBatchQueueSize is the default number of completed batches that
	// can wait for Next.
	DefaultBatchQueueSize = 16

	// DefaultErrorBufferSize is the default buffer size for the error channel.
	// Errors are dropped (and logged) when the buffer is full.
	DefaultErrorBufferSize = 100
)
