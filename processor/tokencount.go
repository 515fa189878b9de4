package processor

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// DefaultEncoding is the BPE encoding used by NewTokenCount when none is
// given.
const DefaultEncoding = "cl100k_base"

// TokenCount is a processor that buckets text records by their BPE token
// count. Each sample holds the token ids and the original text; Merge
// transposes them into two slots:
//
//	0  [][]int  token ids
//	1  []string original records
type TokenCount struct {
	enc *tiktoken.Tiktoken

	// MaxTokens skips records longer than this. Zero means no limit.
	MaxTokens int
}

// NewTokenCount loads the named tiktoken encoding. Loading may fetch the
// encoding's rank file the first time it is used on a machine.
func NewTokenCount(encoding string) (*TokenCount, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading encoding %q: %w", encoding, err)
	}
	return &TokenCount{enc: enc}, nil
}

// Process implements the batch.Processor interface.
func (p *TokenCount) Process(_ context.Context, rec batch.Record) (int64, batch.Sample, error) {
	text := string(rec.Value)
	ids := p.enc.Encode(text, nil, nil)
	if p.MaxTokens > 0 && len(ids) > p.MaxTokens {
		return 0, nil, batch.ErrSkipRecord
	}
	return int64(len(ids)), batch.Sample{ids, text}, nil
}

// Merge implements the batch.Processor interface.
func (p *TokenCount) Merge(_ int64, samples []batch.Sample) ([]interface{}, error) {
	ids := make([][]int, len(samples))
	texts := make([]string, len(samples))
	for i, s := range samples {
		if len(s) != 2 {
			return nil, fmt.Errorf("sample %d has %d values, want 2", i, len(s))
		}
		row, ok := s[0].([]int)
		if !ok {
			return nil, fmt.Errorf("sample %d: ids are %T, want []int", i, s[0])
		}
		text, ok := s[1].(string)
		if !ok {
			return nil, fmt.Errorf("sample %d: text is %T, want string", i, s[1])
		}
		ids[i] = row
		texts[i] = text
	}
	return []interface{}{ids, texts}, nil
}

// NumOutputs implements the batch.Processor interface.
func (p *TokenCount) NumOutputs() int {
	return 2
}
