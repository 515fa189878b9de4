// Package processor contains several implementations of the batch.Processor
// interface for common processing scenarios, including:
//
// - Text: For whitespace-tokenized text, bucketed by token count
// - TokenCount: For text bucketed by its BPE token count
// - Func: For building a processor out of plain functions
// - Filter: For dropping records based on custom predicates
// - Transform: For rewriting record bytes before processing
// - Error: For simulating errors with configurable failure rates
// - Nil: For testing timing behavior without producing outputs
//
// LoggingProcessor and StatsProcessor wrap any processor to add logging and
// statistics. TransposeMerge is the generic Merge used by Func.
//
// Basic usage of the Text processor:
//
//	p := &processor.Text{Vocab: map[string]int64{"hello": 1, "world": 2}}
//
//	_, a, _ := p.Process(ctx, batch.Record{Value: []byte("hello world")})
//	_, b, _ := p.Process(ctx, batch.Record{Value: []byte("hello")})
//	out, _ := p.Merge(0, []batch.Sample{a, b})
//	fmt.Println(out[processor.TextIDs])
//
// Output:
//
//	[[1 2] [1 0]]
package processor
