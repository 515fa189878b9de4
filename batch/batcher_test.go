package batch_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterOfBinary/inputbatch/batch"
)

func newStarted(t *testing.T, cfg batch.BucketConfig, y batch.Yielder) (*batch.Batcher, *batch.BasicStatsCollector) {
	t.Helper()

	stats := batch.NewBasicStatsCollector()
	b, err := batch.NewBatcher(cfg, y, &lenProcessor{})
	require.NoError(t, err)
	b.WithStats(stats)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Close() })
	return b, stats
}

func TestBatcher_FullBucketEmitsExactLimit(t *testing.T) {
	y := &testYielder{Records: recordsOfLen(3, 5, 60, 7, 2), Forever: true}
	b, _ := newStarted(t, batch.BucketConfig{
		UpperBounds: []int64{10, 50, 100},
		BatchLimits: []int64{4, 4, 4},
	}, y)

	batches, err := nextN(context.Background(), b, 1)
	require.NoError(t, err)

	bt := batches[0]
	assert.Equal(t, int64(0), bt.BucketID)
	assert.Equal(t, 4, bt.Size)
	assert.False(t, bt.Partial)
	require.Len(t, bt.Outputs, 2)
	assert.Equal(t, []int{3, 5, 7, 2}, bt.Outputs[1])

	// The bucket is emptied when the batch is detached; bucket 2 still
	// holds the 60-byte record.
	assert.Equal(t, []int{0, 0, 1}, b.Pending())
}

func TestBatcher_InclusiveUpperBound(t *testing.T) {
	y := &testYielder{Records: recordsOfLen(10, 11), Forever: true}
	b, _ := newStarted(t, batch.BucketConfig{
		UpperBounds: []int64{10, 50},
		BatchLimits: []int64{1, 1},
	}, y)

	batches, err := nextN(context.Background(), b, 2)
	require.NoError(t, err)

	got := map[int64][]int{}
	for _, bt := range batches {
		got[bt.BucketID] = bt.Outputs[1].([]int)
	}
	assert.Equal(t, map[int64][]int{0: {10}, 1: {11}}, got, spew.Sdump(batches))
}

func TestBatcher_OverflowPolicies(t *testing.T) {
	t.Run("drop", func(t *testing.T) {
		y := &testYielder{Records: recordsOfLen(200, 1)}
		b, stats := newStarted(t, batch.BucketConfig{
			UpperBounds: []int64{100},
			BatchLimits: []int64{1},
		}, y)

		batches, err := nextN(context.Background(), b, 1)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, batches[0].Outputs[1])

		_, err = b.Next(context.Background())
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, uint64(1), stats.GetStats().RecordsDropped)
	})

	t.Run("last bucket", func(t *testing.T) {
		y := &testYielder{Records: recordsOfLen(200, 1), Forever: true}
		b, stats := newStarted(t, batch.BucketConfig{
			UpperBounds: []int64{10, 100},
			BatchLimits: []int64{1, 1},
			Overflow:    batch.OverflowLastBucket,
		}, y)

		batches, err := nextN(context.Background(), b, 2)
		require.NoError(t, err)
		ids := []int64{batches[0].BucketID, batches[1].BucketID}
		assert.ElementsMatch(t, []int64{1, 0}, ids)
		assert.Zero(t, stats.GetStats().RecordsDropped)
	})
}

func TestBatcher_PeriodicFlush(t *testing.T) {
	// Bucket limits are never reached; every third record pulled flushes
	// all non-empty buckets at their current size.
	y := &testYielder{Records: recordsOfLen(1, 20, 2, 3, 30, 4), Forever: true}
	b, stats := newStarted(t, batch.BucketConfig{
		UpperBounds: []int64{10, 50},
		BatchLimits: []int64{100, 100},
		FlushEveryN: 3,
	}, y)

	batches, err := nextN(context.Background(), b, 4)
	require.NoError(t, err, spew.Sdump(batches))

	var sizes []int
	for _, bt := range batches {
		assert.True(t, bt.Partial)
		sizes = append(sizes, bt.Size)
	}
	sort.Ints(sizes)
	assert.Equal(t, []int{1, 1, 2, 2}, sizes)

	assert.Eventually(t, func() bool {
		s := stats.GetStats()
		return s.Flushes == 2 && s.PartialBatches == 4
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{0, 0}, b.Pending())
}

func TestBatcher_NoPartialBatchesWithoutFlush(t *testing.T) {
	y := &testYielder{Records: recordsOfLen(1, 2, 3), Forever: true}
	b, _ := newStarted(t, batch.BucketConfig{
		UpperBounds: []int64{10},
		BatchLimits: []int64{4},
	}, y)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := b.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []int{3}, b.Pending())
}

func TestBatcher_EndOfStreamFlush(t *testing.T) {
	y := &testYielder{Records: recordsOfLen(1, 2, 3, 4, 5)}
	b, _ := newStarted(t, batch.BucketConfig{
		UpperBounds: []int64{10},
		BatchLimits: []int64{2},
	}, y)

	batches, err := nextN(context.Background(), b, 3)
	require.NoError(t, err)

	var partial int
	total := 0
	for _, bt := range batches {
		total += bt.Size
		if bt.Partial {
			partial++
			assert.Equal(t, 1, bt.Size)
		}
	}
	assert.Equal(t, 5, total)
	assert.Equal(t, 1, partial)

	_, err = b.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not closed after end of stream")
	}
}

func TestBatcher_SkipsAndReportsErrors(t *testing.T) {
	streamErr := errors.New("read failed")
	y := &testYielder{
		Records: []batch.Record{{Value: []byte("skip")}, {Value: []byte("bad")}, {Value: []byte("ok")}},
		Errs:    []error{streamErr},
	}
	b, stats := newStarted(t, batch.BucketConfig{
		UpperBounds: []int64{10},
		BatchLimits: []int64{1},
	}, y)

	batches, err := nextN(context.Background(), b, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, batches[0].Outputs[0])

	var sourceErrs, procErrs int
	for err := range b.Errors() {
		var se *batch.SourceError
		var pe *batch.ProcessorError
		switch {
		case errors.As(err, &se):
			sourceErrs++
			assert.ErrorIs(t, err, streamErr)
		case errors.As(err, &pe):
			procErrs++
			assert.ErrorIs(t, err, errBadRecord)
		default:
			t.Errorf("unexpected error type: %v", err)
		}
	}
	assert.Equal(t, 1, sourceErrs)
	assert.Equal(t, 1, procErrs)

	s := stats.GetStats()
	assert.Equal(t, uint64(1), s.RecordsSkipped)
	assert.Equal(t, uint64(1), s.ProcessorErrors)
	assert.Equal(t, uint64(1), s.SourceErrors)
	assert.Equal(t, uint64(3), s.RecordsPulled)
}

func TestBatcher_ConcurrentWorkers(t *testing.T) {
	lengths := make([]int, 1000)
	for i := range lengths {
		lengths[i] = i % 100
	}
	y := &testYielder{Records: recordsOfLen(lengths...)}
	b, stats := newStarted(t, batch.BucketConfig{
		UpperBounds: []int64{25, 50, 75, 100},
		BatchLimits: []int64{10, 10, 10, 10},
		NumThreads:  8,
	}, y)

	total := 0
	for {
		bt, err := b.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		assert.LessOrEqual(t, bt.Size, 10)
		for _, n := range bt.Outputs[1].([]int) {
			bound := []int{25, 50, 75, 100}[bt.BucketID]
			assert.LessOrEqual(t, n, bound)
		}
		total += bt.Size
	}
	assert.Equal(t, 1000, total)
	assert.Equal(t, uint64(1000), stats.GetStats().SamplesEmitted)
}

func TestBatcher_Close(t *testing.T) {
	t.Run("stops workers and closes stream once", func(t *testing.T) {
		y := &testYielder{Records: recordsOfLen(1, 2), Forever: true}
		b, err := batch.NewBatcher(batch.BucketConfig{
			UpperBounds: []int64{10},
			BatchLimits: []int64{5},
			NumThreads:  4,
		}, y, &lenProcessor{})
		require.NoError(t, err)
		require.NoError(t, b.Start(context.Background()))

		require.Eventually(t, func() bool {
			return b.Pending()[0] == 2
		}, time.Second, 5*time.Millisecond)

		require.NoError(t, b.Close())
		require.NoError(t, b.Close())

		select {
		case <-b.Done():
		case <-time.After(time.Second):
			t.Fatal("workers still running after Close")
		}
		assert.Equal(t, 1, y.closeCount())
		assert.Equal(t, []int{0}, b.Pending())

		_, err = b.Next(context.Background())
		assert.ErrorIs(t, err, batch.ErrClosed)
		assert.ErrorIs(t, b.Start(context.Background()), batch.ErrClosed)
	})

	t.Run("before start", func(t *testing.T) {
		y := &testYielder{}
		b, err := batch.NewBatcher(batch.BucketConfig{
			UpperBounds: []int64{10},
			BatchLimits: []int64{5},
		}, y, &lenProcessor{})
		require.NoError(t, err)

		require.NoError(t, b.Close())
		<-b.Done()
		assert.Equal(t, 1, y.closeCount())
	})

	t.Run("unblocks Next", func(t *testing.T) {
		y := &testYielder{Forever: true}
		b, _ := newStarted(t, batch.BucketConfig{
			UpperBounds: []int64{10},
			BatchLimits: []int64{5},
		}, y)

		errCh := make(chan error, 1)
		go func() {
			_, err := b.Next(context.Background())
			errCh <- err
		}()

		time.Sleep(20 * time.Millisecond)
		require.NoError(t, b.Close())

		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, batch.ErrClosed)
		case <-time.After(time.Second):
			t.Fatal("Next still blocked after Close")
		}
	})
}

func TestBatcher_StartTwice(t *testing.T) {
	b, _ := newStarted(t, batch.BucketConfig{
		UpperBounds: []int64{10},
		BatchLimits: []int64{5},
	}, &testYielder{Forever: true})

	assert.Error(t, b.Start(context.Background()))
	assert.Panics(t, func() { b.WithLogger(&batch.NoOpLogger{}) })
}

func TestBatcher_ContextCancel(t *testing.T) {
	y := &testYielder{Forever: true}
	b, err := batch.NewBatcher(batch.BucketConfig{
		UpperBounds: []int64{10},
		BatchLimits: []int64{5},
	}, y, &lenProcessor{})
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, b.Start(ctx))
	cancel()

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("workers still running after cancel")
	}

	_, err = b.Next(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBatcher_ContextCancelWinsOverEOF(t *testing.T) {
	b, err := batch.NewBatcher(batch.BucketConfig{
		UpperBounds: []int64{10},
		BatchLimits: []int64{5},
		NumThreads:  2,
	}, eofOnCancelYielder{}, &lenProcessor{})
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, b.Start(ctx))
	cancel()

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("workers still running after cancel")
	}

	_, err = b.Next(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestBatcher_CloseUnblocksStuckYielder(t *testing.T) {
	defer batch.SetCloseGrace(20 * time.Millisecond)()

	y := newStuckYielder()
	b, err := batch.NewBatcher(batch.BucketConfig{
		UpperBounds: []int64{10},
		BatchLimits: []int64{5},
		NumThreads:  3,
	}, y, &lenProcessor{})
	require.NoError(t, err)
	require.NoError(t, b.Start(context.Background()))

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&y.waiting) == 3
	}, time.Second, 5*time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- b.Close() }()

	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on a yielder that ignores cancellation")
	}

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("workers still running after Close")
	}
	assert.Equal(t, 1, y.closeCount())
	assert.Equal(t, int32(0), atomic.LoadInt32(&y.waiting))

	_, err = b.Next(context.Background())
	assert.ErrorIs(t, err, batch.ErrClosed)
}
