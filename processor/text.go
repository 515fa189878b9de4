package processor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// Output slots produced by Text.
const (
	TextIDs = iota
	TextLengths
	TextRaw

	textOutputs
)

// Text is a processor for whitespace-tokenized text records. The size key
// of a record is its number of tokens, so records of similar length end up
// in the same bucket.
//
// Merge produces three slots:
//
//	TextIDs     [][]int64  token ids, each row padded with PadID to the
//	                       longest row in the batch
//	TextLengths []int64    unpadded token counts
//	TextRaw     []string   the original records
type Text struct {
	// Vocab maps tokens to ids. Tokens missing from Vocab get UnknownID.
	// If Vocab is nil every token gets UnknownID.
	Vocab map[string]int64

	UnknownID int64
	PadID     int64

	// MaxTokens truncates longer records. Zero means no limit.
	MaxTokens int

	// SkipEmpty drops records with no tokens instead of producing an
	// empty sample.
	SkipEmpty bool
}

// Process implements the batch.Processor interface.
func (p *Text) Process(_ context.Context, rec batch.Record) (int64, batch.Sample, error) {
	if !utf8.Valid(rec.Value) {
		return 0, nil, fmt.Errorf("record from %s is not valid UTF-8", rec.Source)
	}

	raw := string(rec.Value)
	tokens := strings.Fields(raw)
	if len(tokens) == 0 && p.SkipEmpty {
		return 0, nil, batch.ErrSkipRecord
	}
	if p.MaxTokens > 0 && len(tokens) > p.MaxTokens {
		tokens = tokens[:p.MaxTokens]
	}

	ids := make([]int64, len(tokens))
	for i, tok := range tokens {
		id, ok := p.Vocab[tok]
		if !ok {
			id = p.UnknownID
		}
		ids[i] = id
	}

	return int64(len(ids)), batch.Sample{ids, int64(len(ids)), raw}, nil
}

// Merge implements the batch.Processor interface.
func (p *Text) Merge(_ int64, samples []batch.Sample) ([]interface{}, error) {
	lengths := make([]int64, len(samples))
	raws := make([]string, len(samples))
	var longest int64

	for i, s := range samples {
		if len(s) != textOutputs {
			return nil, fmt.Errorf("sample %d has %d values, want %d", i, len(s), textOutputs)
		}
		n, ok := s[TextLengths].(int64)
		if !ok {
			return nil, fmt.Errorf("sample %d: length is %T, want int64", i, s[TextLengths])
		}
		raw, ok := s[TextRaw].(string)
		if !ok {
			return nil, fmt.Errorf("sample %d: raw is %T, want string", i, s[TextRaw])
		}
		lengths[i] = n
		raws[i] = raw
		if n > longest {
			longest = n
		}
	}

	ids := make([][]int64, len(samples))
	for i, s := range samples {
		row, ok := s[TextIDs].([]int64)
		if !ok {
			return nil, fmt.Errorf("sample %d: ids are %T, want []int64", i, s[TextIDs])
		}
		padded := make([]int64, longest)
		n := copy(padded, row)
		for j := n; j < len(padded); j++ {
			padded[j] = p.PadID
		}
		ids[i] = padded
	}

	return []interface{}{ids, lengths, raws}, nil
}

// NumOutputs implements the batch.Processor interface.
func (p *Text) NumOutputs() int {
	return textOutputs
}
