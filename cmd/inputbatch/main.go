// Command inputbatch reads records with the options in a YAML file and
// prints a summary of every batch it produces.
//
// Usage:
//
//	inputbatch -config input.yaml -steps 100 -processor text -skip-prefix "#" -lowercase
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/samber/lo"

	"github.com/MasterOfBinary/inputbatch/batch"
	"github.com/MasterOfBinary/inputbatch/pipeline"
	"github.com/MasterOfBinary/inputbatch/processor"
)

func main() {
	configPath := flag.String("config", "input.yaml", "path to the input options file")
	steps := flag.Int("steps", 10, "number of batches to read, 0 reads until the sources are exhausted")
	procName := flag.String("processor", "text", "record processor: text or tokens")
	encoding := flag.String("encoding", processor.DefaultEncoding, "BPE encoding used by the tokens processor")
	skipPrefix := flag.String("skip-prefix", "", "skip records starting with this prefix, such as a comment marker")
	lowercase := flag.Bool("lowercase", false, "lowercase records before processing")
	logLevel := flag.String("log-level", "info", "minimum log level: debug, info, warn or error")
	dump := flag.Bool("dump", false, "dump the outputs of every batch")
	dryRun := flag.Bool("dry-run", false, "validate the options, print them and exit")
	flag.Parse()

	level, err := batch.ParseLogLevel(*logLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logger := batch.NewSimpleLogger(level)

	opts, err := pipeline.LoadOptions(*configPath)
	if err != nil {
		log.Fatalf("Failed to load options: %v", err)
	}

	if *dryRun {
		if _, err := opts.BucketConfig(); err != nil {
			log.Fatalf("Invalid options: %v", err)
		}
		out, err := pipeline.MarshalOptions(opts)
		if err != nil {
			log.Fatalf("Failed to print options: %v", err)
		}
		fmt.Print(string(out))
		return
	}

	procStats := batch.NewBasicStatsCollector()
	proc, err := newProcessor(processorFlags{
		Name:       *procName,
		Encoding:   *encoding,
		SkipPrefix: *skipPrefix,
		Lowercase:  *lowercase,
	}, logger, procStats)
	if err != nil {
		log.Fatalf("Failed to create processor: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	in, err := pipeline.New(ctx, opts, proc, pipeline.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to start input: %v", err)
	}

	go func() {
		for err := range in.Errors() {
			log.Printf("Input error: %v", err)
		}
	}()

	runErr := run(ctx, in, *steps, *dump)
	if err := in.Close(); err != nil {
		log.Printf("Failed to close input: %v", err)
	}
	printStats(in.Stats(), procStats.GetStats())

	if runErr != nil {
		log.Fatalf("Input failed: %v", runErr)
	}
}

// processorFlags selects and configures the record processor.
type processorFlags struct {
	Name       string
	Encoding   string
	SkipPrefix string
	Lowercase  bool
}

// newProcessor builds the processor chain: an optional prefix filter, an
// optional lowercase transform and the named processor, counted into stats
// and logged.
func newProcessor(flags processorFlags, logger batch.Logger, stats batch.StatsCollector) (batch.Processor, error) {
	var proc batch.Processor
	switch flags.Name {
	case "text":
		proc = &processor.Text{SkipEmpty: true}
	case "tokens":
		tc, err := processor.NewTokenCount(flags.Encoding)
		if err != nil {
			return nil, err
		}
		proc = tc
	default:
		return nil, fmt.Errorf("unknown processor %q", flags.Name)
	}

	if flags.Lowercase {
		t, err := processor.NewTransform(processor.TransformConfig{
			Processor: proc,
			Func: func(v []byte) ([]byte, error) {
				return bytes.ToLower(v), nil
			},
		})
		if err != nil {
			return nil, err
		}
		proc = t
	}

	if flags.SkipPrefix != "" {
		prefix := []byte(flags.SkipPrefix)
		f, err := processor.NewFilter(processor.FilterConfig{
			Processor: proc,
			Predicate: func(rec batch.Record) bool {
				return bytes.HasPrefix(rec.Value, prefix)
			},
			InvertMatch: true,
		})
		if err != nil {
			return nil, err
		}
		proc = f
	}

	return processor.WrapWithLogging(processor.WrapWithStats(proc, stats), logger, flags.Name), nil
}

func run(ctx context.Context, in *pipeline.Input, steps int, dump bool) error {
	for step := 1; steps == 0 || step <= steps; step++ {
		bt, err := in.NextBatch(ctx)
		switch {
		case errors.Is(err, io.EOF):
			fmt.Println("end of input")
			return nil
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			return err
		}

		fmt.Printf("step %d: bucket %d, %d sample(s), partial=%t\n", step, bt.BucketID, bt.Size, bt.Partial)
		if dump {
			spew.Dump(bt.Outputs)
		}
	}
	return nil
}

func printStats(s, proc batch.Stats) {
	fmt.Println("=== Input statistics ===")
	fmt.Printf("records pulled:   %d\n", s.RecordsPulled)
	fmt.Printf("records skipped:  %d\n", s.RecordsSkipped)
	fmt.Printf("processed:        %d (%d skipped, %d failed)\n",
		proc.RecordsPulled, proc.RecordsSkipped, proc.ProcessorErrors)
	fmt.Printf("records dropped:  %d (%.2f%%)\n", s.RecordsDropped, s.DropRate()*100)
	fmt.Printf("source errors:    %d\n", s.SourceErrors)
	fmt.Printf("processor errors: %d\n", s.ProcessorErrors)
	fmt.Printf("batches:          %d (%d partial, avg size %.1f)\n",
		s.BatchesEmitted, s.PartialBatches, s.AverageBatchSize())
	ids := lo.Keys(s.BatchesPerBucket)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Printf("  bucket %d: %d\n", id, s.BatchesPerBucket[id])
	}
}
