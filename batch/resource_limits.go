package batch

import "sync/atomic"

// ResourceLimits bounds the memory a Batcher holds between Start and Close.
// The zero value means no limits.
type ResourceLimits struct {
	// MaxBufferedSamples caps the total number of samples waiting in all
	// buckets together. When the total reaches the cap, the fullest bucket
	// is emitted as a partial batch. Workers racing on the same record may
	// overshoot the cap by up to NumThreads-1 samples.
	// A value of 0 means no limit.
	MaxBufferedSamples int64 `json:"maxBufferedSamples"`
}

// Validate checks that the limits are usable.
func (r ResourceLimits) Validate() error {
	if r.MaxBufferedSamples < 0 {
		return NewConfigError("max_buffered_samples", "cannot be negative, got %d", r.MaxBufferedSamples)
	}
	return nil
}

// resourceTracker counts the samples held in buckets.
type resourceTracker struct {
	buffered int64
	limits   ResourceLimits
}

func newResourceTracker(limits ResourceLimits) *resourceTracker {
	return &resourceTracker{limits: limits}
}

// hold records n samples entering or, if negative, leaving the buckets.
func (rt *resourceTracker) hold(n int) int64 {
	return atomic.AddInt64(&rt.buffered, int64(n))
}

// exceeded reports whether the buffered total has reached the cap.
func (rt *resourceTracker) exceeded() bool {
	limit := rt.limits.MaxBufferedSamples
	return limit > 0 && atomic.LoadInt64(&rt.buffered) >= limit
}

// usage returns the number of samples currently buffered.
func (rt *resourceTracker) usage() int64 {
	return atomic.LoadInt64(&rt.buffered)
}
