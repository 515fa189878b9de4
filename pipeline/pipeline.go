// Package pipeline assembles sources, a processor and a batcher into an
// Input: a single component with a simple, blocking API that hides the
// concurrent reading, mixing and bucketing happening behind it.
//
// Construction happens in a fixed order:
//
//  1. The bucket configuration is validated. Nothing is read if it is
//     invalid.
//  2. The file pattern and source weights are parsed into sources.
//  3. One yielder is opened per source, each with its own derived seed.
//  4. The yielders are mixed into one weighted stream.
//  5. A batcher starts pulling from the stream.
//
// Options can be built in code or loaded from YAML:
//
//	file_pattern: "tfrecord:/data/en/*.rec,tfrecord:/data/de/*.rec"
//	input_source_weights: [0.7, 0.3]
//	file_random_seed: 301
//	file_buffer_size: 10000
//	file_parallelism: 4
//	bucket_upper_bound: [16, 32, 64, 128]
//	bucket_batch_limit: [256, 128, 64, 32]
//	flush_every_n: 100000
//	num_threads: 4
package pipeline
