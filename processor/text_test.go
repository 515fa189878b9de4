package processor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MasterOfBinary/inputbatch/batch"
	"github.com/MasterOfBinary/inputbatch/processor"
)

func TestText_Process(t *testing.T) {
	ctx := context.Background()
	p := &processor.Text{
		Vocab:     map[string]int64{"the": 1, "cat": 2, "sat": 3},
		UnknownID: 99,
	}
	assert.Equal(t, 3, p.NumOutputs())

	key, sample, err := p.Process(ctx, rec("the  cat\tsat on"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), key)
	assert.Equal(t, []int64{1, 2, 3, 99}, sample[processor.TextIDs])
	assert.Equal(t, int64(4), sample[processor.TextLengths])
	assert.Equal(t, "the  cat\tsat on", sample[processor.TextRaw])

	t.Run("empty record", func(t *testing.T) {
		key, sample, err := p.Process(ctx, rec("   "))
		require.NoError(t, err)
		assert.Equal(t, int64(0), key)
		assert.Empty(t, sample[processor.TextIDs])
	})

	t.Run("skip empty", func(t *testing.T) {
		skipping := &processor.Text{SkipEmpty: true}
		_, _, err := skipping.Process(ctx, rec(""))
		assert.ErrorIs(t, err, batch.ErrSkipRecord)
	})

	t.Run("max tokens", func(t *testing.T) {
		short := &processor.Text{MaxTokens: 2}
		key, sample, err := short.Process(ctx, rec("a b c d"))
		require.NoError(t, err)
		assert.Equal(t, int64(2), key)
		assert.Len(t, sample[processor.TextIDs], 2)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, _, err := p.Process(ctx, batch.Record{Value: []byte{0xff, 0xfe}})
		assert.Error(t, err)
		assert.False(t, errors.Is(err, batch.ErrSkipRecord))
	})
}

func TestText_Merge(t *testing.T) {
	ctx := context.Background()
	p := &processor.Text{
		Vocab: map[string]int64{"a": 1, "b": 2, "c": 3},
		PadID: -1,
	}

	var samples []batch.Sample
	for _, s := range []string{"a b c", "c", "b a"} {
		_, sample, err := p.Process(ctx, rec(s))
		require.NoError(t, err)
		samples = append(samples, sample)
	}

	out, err := p.Merge(2, samples)
	require.NoError(t, err)
	require.Len(t, out, p.NumOutputs())

	assert.Equal(t, [][]int64{
		{1, 2, 3},
		{3, -1, -1},
		{2, 1, -1},
	}, out[processor.TextIDs])
	assert.Equal(t, []int64{3, 1, 2}, out[processor.TextLengths])
	assert.Equal(t, []string{"a b c", "c", "b a"}, out[processor.TextRaw])

	t.Run("foreign sample", func(t *testing.T) {
		_, err := p.Merge(0, []batch.Sample{{"x"}})
		assert.Error(t, err)
	})

	t.Run("wrong types", func(t *testing.T) {
		_, err := p.Merge(0, []batch.Sample{{"ids", int64(1), "raw"}})
		assert.Error(t, err)
	})
}
