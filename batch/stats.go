package batch

import (
	"sync"
	"sync/atomic"
	"time"
)

// StatsCollector defines the interface for collecting metrics from a
// Batcher. The StatsCollector is optional - if not provided, no statistics
// are collected.
type StatsCollector interface {
	// RecordPulled is called for every record taken from the stream.
	RecordPulled()

	// RecordSkipped is called when the processor returns ErrSkipRecord.
	RecordSkipped()

	// RecordDropped is called when a record's key is above every bucket
	// bound and the overflow policy drops it.
	RecordDropped()

	// RecordSourceError is called when the stream returns an error.
	RecordSourceError()

	// RecordProcessorError is called when Process or Merge fails.
	RecordProcessorError()

	// RecordBatch is called when a batch is queued for Next.
	RecordBatch(bucketID int64, size int, partial bool)

	// RecordFlush is called when a periodic or end-of-stream flush runs.
	RecordFlush()

	// GetStats returns a snapshot of the current statistics.
	GetStats() Stats
}

// Stats holds aggregated statistics about a Batcher.
type Stats struct {
	// RecordsPulled is the number of records read from the stream.
	RecordsPulled uint64

	// RecordsSkipped is the number of records the processor skipped.
	RecordsSkipped uint64

	// RecordsDropped is the number of records above the largest bound.
	RecordsDropped uint64

	// SourceErrors is the total number of errors from the stream.
	SourceErrors uint64

	// ProcessorErrors is the total number of errors from the processor.
	ProcessorErrors uint64

	// BatchesEmitted is the number of batches queued, full or partial.
	BatchesEmitted uint64

	// PartialBatches is the number of batches emitted by a flush.
	PartialBatches uint64

	// Flushes is the number of periodic and end-of-stream flushes.
	Flushes uint64

	// SamplesEmitted is the total number of samples in emitted batches.
	SamplesEmitted uint64

	// BatchesPerBucket counts emitted batches by bucket ID.
	BatchesPerBucket map[int64]uint64

	// StartTime is when statistics collection began.
	StartTime time.Time

	// LastUpdateTime is when a batch was last recorded.
	LastUpdateTime time.Time
}

// AverageBatchSize returns the average number of samples per emitted batch.
// Returns 0 if no batches have been emitted.
func (s *Stats) AverageBatchSize() float64 {
	if s.BatchesEmitted == 0 {
		return 0
	}
	return float64(s.SamplesEmitted) / float64(s.BatchesEmitted)
}

// DropRate returns the percentage of pulled records that were dropped or
// skipped. Returns 0 if no records have been pulled.
func (s *Stats) DropRate() float64 {
	if s.RecordsPulled == 0 {
		return 0
	}
	return float64(s.RecordsDropped+s.RecordsSkipped) / float64(s.RecordsPulled) * 100
}

// NoOpStatsCollector is a stats collector that discards all metrics.
// This is the default stats collector when none is specified.
type NoOpStatsCollector struct{}

// RecordPulled implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordPulled() {}

// RecordSkipped implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordSkipped() {}

// RecordDropped implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordDropped() {}

// RecordSourceError implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordSourceError() {}

// RecordProcessorError implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordProcessorError() {}

// RecordBatch implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordBatch(bucketID int64, size int, partial bool) {}

// RecordFlush implements the StatsCollector interface.
func (n *NoOpStatsCollector) RecordFlush() {}

// GetStats implements the StatsCollector interface.
func (n *NoOpStatsCollector) GetStats() Stats {
	return Stats{}
}

// BasicStatsCollector is a simple in-memory implementation of StatsCollector.
// All operations are thread-safe.
type BasicStatsCollector struct {
	// Atomic counters for lock-free updates on the per-record path
	recordsPulled   uint64
	recordsSkipped  uint64
	recordsDropped  uint64
	sourceErrors    uint64
	processorErrors uint64
	flushes         uint64

	// mu protects the following variables
	mu             sync.RWMutex
	batchesEmitted uint64
	partials       uint64
	samples        uint64
	perBucket      map[int64]uint64
	startTime      time.Time
	lastUpdate     time.Time
}

// NewBasicStatsCollector creates a new BasicStatsCollector.
func NewBasicStatsCollector() *BasicStatsCollector {
	now := time.Now()
	return &BasicStatsCollector{
		perBucket:  make(map[int64]uint64),
		startTime:  now,
		lastUpdate: now,
	}
}

// RecordPulled implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordPulled() {
	atomic.AddUint64(&b.recordsPulled, 1)
}

// RecordSkipped implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordSkipped() {
	atomic.AddUint64(&b.recordsSkipped, 1)
}

// RecordDropped implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordDropped() {
	atomic.AddUint64(&b.recordsDropped, 1)
}

// RecordSourceError implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordSourceError() {
	atomic.AddUint64(&b.sourceErrors, 1)
}

// RecordProcessorError implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordProcessorError() {
	atomic.AddUint64(&b.processorErrors, 1)
}

// RecordFlush implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordFlush() {
	atomic.AddUint64(&b.flushes, 1)
}

// RecordBatch implements the StatsCollector interface.
func (b *BasicStatsCollector) RecordBatch(bucketID int64, size int, partial bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.batchesEmitted++
	if partial {
		b.partials++
	}
	b.samples += uint64(size)
	if b.perBucket == nil {
		b.perBucket = make(map[int64]uint64)
	}
	b.perBucket[bucketID]++
	b.lastUpdate = time.Now()
}

// GetStats implements the StatsCollector interface.
// It returns a snapshot of the current statistics.
func (b *BasicStatsCollector) GetStats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	perBucket := make(map[int64]uint64, len(b.perBucket))
	for id, n := range b.perBucket {
		perBucket[id] = n
	}

	return Stats{
		RecordsPulled:    atomic.LoadUint64(&b.recordsPulled),
		RecordsSkipped:   atomic.LoadUint64(&b.recordsSkipped),
		RecordsDropped:   atomic.LoadUint64(&b.recordsDropped),
		SourceErrors:     atomic.LoadUint64(&b.sourceErrors),
		ProcessorErrors:  atomic.LoadUint64(&b.processorErrors),
		Flushes:          atomic.LoadUint64(&b.flushes),
		BatchesEmitted:   b.batchesEmitted,
		PartialBatches:   b.partials,
		SamplesEmitted:   b.samples,
		BatchesPerBucket: perBucket,
		StartTime:        b.startTime,
		LastUpdateTime:   b.lastUpdate,
	}
}
