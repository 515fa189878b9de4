package source

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// Mix combines yielders into a single stream.
//
// A single yielder is returned as is. Several yielders are wrapped in a
// WeightedMix that picks a source with probability weights[i]/sum(weights)
// on every Yield. Weights do not need to sum to 1. Mixing zero yielders is
// a configuration error.
func Mix(yielders []batch.Yielder, weights []float64, seed int64) (batch.Yielder, error) {
	switch len(yielders) {
	case 0:
		return nil, batch.NewConfigError("input_source_weights", "cannot mix zero sources")
	case 1:
		return yielders[0], nil
	}
	return NewWeightedMix(yielders, weights, seed)
}

// WeightedMix yields records from several yielders, choosing one at random
// for every record according to its weight.
//
// For a non-zero seed the sequence of chosen sources is a deterministic
// function of the seed and the number of Yield calls made so far. Which
// record a chosen source returns depends on that source, so a whole stream
// is only reproducible when every source is.
//
// A source that returns io.EOF is removed and the remaining weights are
// renormalised. Once every source is exhausted, Yield returns io.EOF.
type WeightedMix struct {
	yielders []batch.Yielder
	weights  []float64
	seed     int64

	closeOnce sync.Once
	closeErr  error

	// mu protects the following variables
	mu     sync.Mutex
	rng    *rand.Rand
	active []int
	cum    []float64
	counts []uint64
	closed bool
}

// NewWeightedMix creates a WeightedMix over yielders. Sources with weight 0
// are never chosen. A seed of 0 picks a random seed.
func NewWeightedMix(yielders []batch.Yielder, weights []float64, seed int64) (*WeightedMix, error) {
	if len(yielders) == 0 {
		return nil, batch.NewConfigError("input_source_weights", "cannot mix zero sources")
	}
	if len(weights) != len(yielders) {
		return nil, batch.NewConfigError("input_source_weights",
			"got %d weights for %d sources", len(weights), len(yielders))
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, batch.NewConfigError("input_source_weights",
				"weight %d must be a finite non-negative number, got %v", i, w)
		}
		if yielders[i] == nil {
			return nil, batch.NewConfigError("file_pattern", "source %d is nil", i)
		}
	}
	if lo.Sum(weights) <= 0 {
		return nil, batch.NewConfigError("input_source_weights", "at least one weight must be positive")
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	m := &WeightedMix{
		yielders: yielders,
		weights:  append([]float64(nil), weights...),
		seed:     seed,
		rng:      rand.New(rand.NewSource(seed)),
		counts:   make([]uint64, len(yielders)),
	}
	for i, w := range weights {
		if w > 0 {
			m.active = append(m.active, i)
		}
	}
	m.rebuild()
	return m, nil
}

// rebuild recomputes the cumulative weights of the active sources. The
// caller must hold m.mu.
func (m *WeightedMix) rebuild() {
	m.cum = m.cum[:0]
	var total float64
	for _, i := range m.active {
		total += m.weights[i]
		m.cum = append(m.cum, total)
	}
}

// pick chooses the next source index. The caller must hold m.mu and
// m.active must not be empty.
func (m *WeightedMix) pick() int {
	r := m.rng.Float64() * m.cum[len(m.cum)-1]
	j := sort.Search(len(m.cum), func(j int) bool {
		return m.cum[j] > r
	})
	if j == len(m.cum) {
		j = len(m.cum) - 1
	}
	return m.active[j]
}

// remove drops source i from selection. The caller must hold m.mu.
func (m *WeightedMix) remove(i int) {
	for j, a := range m.active {
		if a == i {
			m.active = append(m.active[:j], m.active[j+1:]...)
			m.rebuild()
			return
		}
	}
}

// Yield implements the batch.Yielder interface.
func (m *WeightedMix) Yield(ctx context.Context) (batch.Record, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return batch.Record{}, batch.ErrClosed
		}
		if len(m.active) == 0 {
			m.mu.Unlock()
			return batch.Record{}, io.EOF
		}
		i := m.pick()
		m.mu.Unlock()

		rec, err := m.yielders[i].Yield(ctx)
		switch {
		case err == nil:
			m.mu.Lock()
			m.counts[i]++
			m.mu.Unlock()
			return rec, nil
		case errors.Is(err, io.EOF):
			m.mu.Lock()
			m.remove(i)
			m.mu.Unlock()
		case ctx.Err() != nil, errors.Is(err, batch.ErrClosed):
			return batch.Record{}, err
		default:
			return batch.Record{}, &batch.SourceError{Index: i, Err: err}
		}
	}
}

// Seed returns the seed driving source selection.
func (m *WeightedMix) Seed() int64 {
	return m.seed
}

// Counts returns how many records each source has contributed.
func (m *WeightedMix) Counts() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.counts...)
}

// Close closes every underlying yielder. It may be called more than once.
func (m *WeightedMix) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()

		var errs []error
		for i, y := range m.yielders {
			if err := y.Close(); err != nil {
				errs = append(errs, &batch.SourceError{Index: i, Err: err})
			}
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}
