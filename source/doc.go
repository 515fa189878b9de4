// Package source builds the logical record stream consumed by a
// batch.Batcher:
//
//   - ParseSources turns a comma-separated file pattern and its mixing
//     weights into a list of Specs.
//   - DeriveSeed gives every source its own reproducible seed.
//   - NewYielders constructs one batch.Yielder per Spec.
//   - Mix collapses several yielders into one weighted stream.
//
// It also contains the Yielder implementations used by the pipeline:
// FileYielder for text and TFRecord files, and Channel, Slice, Error and
// Nil for in-memory use and tests.
//
// Typical construction:
//
//	set, err := source.ParseSources("a/*.txt,b/*.txt", []float64{0.7, 0.3})
//	if err != nil {
//		return err
//	}
//	ys, err := source.NewYielders(ctx, set.Specs, source.FactoryOptions{
//		Seed:        1234,
//		BufferSize:  1000,
//		Parallelism: 4,
//	})
//	if err != nil {
//		return err
//	}
//	stream, err := source.Mix(ys, set.Weights(), 1234)
package source
