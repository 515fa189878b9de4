// Package batch contains the core of the input pipeline: the Yielder and
// Processor interfaces, and the Batcher, which groups records into
// size-keyed buckets and emits a Batch when a bucket fills up.
//
// A Batcher pulls records from a single logical stream (a Yielder, usually
// a weighted mix of several sources built by the source package), asks a
// Processor for each record's size key and sample, and appends the sample
// to the smallest bucket whose upper bound is at least the key:
//
//	UpperBounds: [10, 50, 100]
//	BatchLimits: [ 8,  4,   2]
//
//	key 7   -> bucket 0
//	key 10  -> bucket 0 (upper bounds are inclusive)
//	key 11  -> bucket 1
//	key 250 -> dropped, or bucket 2 with OverflowLastBucket
//
// When a bucket holds BatchLimits[i] samples it is detached, merged by the
// Processor into output slots, and queued for Next.
//
// Partial batches are produced in exactly three situations:
//
//   - FlushEveryN > 0 and the process-wide count of pulled records reaches a
//     multiple of FlushEveryN. Every non-empty bucket is emitted at its
//     current size with Batch.Partial set.
//   - The stream returns io.EOF. Every non-empty bucket is emitted the same
//     way, after which Next returns io.EOF once the queue is drained.
//   - ResourceLimits.MaxBufferedSamples is set and the samples held across
//     all buckets reach it. Only the bucket holding the most is emitted.
//
// Records are pulled by NumThreads workers. Within a bucket, samples keep
// the order in which workers appended them; across buckets no order is
// guaranteed.
//
// Close stops the workers, discards partially filled buckets and then
// closes the stream. It is safe to call Close more than once.
package batch
