package batch

import (
	"fmt"
	"sort"
	"strings"
)

// OverflowPolicy decides what happens to a record whose size key is larger
// than every bucket upper bound.
type OverflowPolicy int

const (
	// OverflowDrop discards the record and counts it as dropped.
	OverflowDrop OverflowPolicy = iota

	// OverflowLastBucket appends the record to the last (largest) bucket.
	OverflowLastBucket
)

// String returns the name used for the policy in configuration files.
func (p OverflowPolicy) String() string {
	switch p {
	case OverflowDrop:
		return "drop"
	case OverflowLastBucket:
		return "last_bucket"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy parses the configuration name of a policy. An empty
// string selects OverflowDrop.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return OverflowDrop, nil
	case "last_bucket", "last":
		return OverflowLastBucket, nil
	default:
		return OverflowDrop, NewConfigError("bucket_overflow", "unknown policy %q", s)
	}
}

// BucketConfig configures a Batcher. It is validated once by NewBatcher and
// must not be changed afterwards.
type BucketConfig struct {
	// UpperBounds are the inclusive size-key thresholds of the buckets.
	// They must be sorted in non-decreasing order.
	UpperBounds []int64 `json:"bucketUpperBound"`

	// BatchLimits is the number of samples that completes a batch in the
	// bucket with the same index.
	BatchLimits []int64 `json:"bucketBatchLimit"`

	// FlushEveryN forces every non-empty bucket to be emitted as a partial
	// batch each time the total number of pulled records reaches a multiple
	// of FlushEveryN. Zero disables periodic flushing.
	FlushEveryN int64 `json:"flushEveryN"`

	// NumThreads is the number of workers pulling from the stream.
	// Default: DefaultNumThreads
	NumThreads int `json:"numThreads"`

	// Overflow selects how records above the largest bound are handled.
	Overflow OverflowPolicy `json:"overflow"`

	// QueueSize is the number of completed batches that may wait for Next
	// before workers block.
	// Default: DefaultBatchQueueSize
	QueueSize int `json:"queueSize"`
}

// Validate checks the bucket layout. It reports the first violated
// invariant as a *ConfigError.
func (c BucketConfig) Validate() error {
	if len(c.UpperBounds) == 0 {
		return NewConfigError("bucket_upper_bound", "at least one bucket is required")
	}
	if !sort.SliceIsSorted(c.UpperBounds, func(i, j int) bool {
		return c.UpperBounds[i] < c.UpperBounds[j]
	}) {
		return NewConfigError("bucket_upper_bound", "bounds %v are not sorted", c.UpperBounds)
	}
	if len(c.BatchLimits) != len(c.UpperBounds) {
		return NewConfigError("bucket_batch_limit",
			"got %d limits for %d upper bounds", len(c.BatchLimits), len(c.UpperBounds))
	}
	for i, limit := range c.BatchLimits {
		if limit <= 0 {
			return NewConfigError("bucket_batch_limit", "limit %d of bucket %d must be positive", limit, i)
		}
	}
	if c.FlushEveryN < 0 {
		return NewConfigError("flush_every_n", "must not be negative, got %d", c.FlushEveryN)
	}
	if c.NumThreads < 0 {
		return NewConfigError("num_threads", "must not be negative, got %d", c.NumThreads)
	}
	if c.QueueSize < 0 {
		return NewConfigError("batch_queue_size", "must not be negative, got %d", c.QueueSize)
	}
	if c.Overflow != OverflowDrop && c.Overflow != OverflowLastBucket {
		return NewConfigError("bucket_overflow", "unknown policy %v", c.Overflow)
	}
	return nil
}

// withDefaults fills in zero values. It does not validate.
func (c BucketConfig) withDefaults() BucketConfig {
	if c.NumThreads == 0 {
		c.NumThreads = DefaultNumThreads
	}
	if c.QueueSize == 0 {
		c.QueueSize = DefaultBatchQueueSize
	}
	c.UpperBounds = append([]int64(nil), c.UpperBounds...)
	c.BatchLimits = append([]int64(nil), c.BatchLimits...)
	return c
}

// bucketFor returns the index of the smallest bucket whose upper bound is at
// least key, or -1 if the record must be dropped.
func (c BucketConfig) bucketFor(key int64) int {
	i := sort.Search(len(c.UpperBounds), func(i int) bool {
		return c.UpperBounds[i] >= key
	})
	if i < len(c.UpperBounds) {
		return i
	}
	if c.Overflow == OverflowLastBucket {
		return len(c.UpperBounds) - 1
	}
	return -1
}
