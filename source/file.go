package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MasterOfBinary/inputbatch/batch"
)

// Defaults for YielderOptions fields left at zero.
const (
	DefaultBufferSize  = 100
	DefaultParallelism = 1

	// maxLineLen is the longest line a text file may contain.
	maxLineLen = 16 << 20
)

// ErrNoRecords is reported when a whole epoch reads no record.
var ErrNoRecords = errors.New("source: no records")

// Supported file formats, selected with a "format:" pattern prefix.
const (
	FormatText     = "text"
	FormatTFRecord = "tfrecord"
)

// splitPattern separates an optional format prefix from the glob.
func splitPattern(pattern string) (format, glob string, err error) {
	prefix, rest, found := strings.Cut(pattern, ":")
	if !found {
		return FormatText, pattern, nil
	}
	switch prefix {
	case FormatText, FormatTFRecord:
		return prefix, rest, nil
	}
	if len(prefix) == 1 {
		// A drive letter, not a format.
		return FormatText, pattern, nil
	}
	return "", "", batch.NewConfigError("file_pattern", "unknown format %q in %q", prefix, pattern)
}

// item is a record or a read error travelling from a reader to the
// shuffle buffer.
type item struct {
	rec batch.Record
	err error
}

// FileYielder reads records from the files matching a pattern.
//
// Every epoch the file list is shuffled and read by Parallelism concurrent
// readers. Records pass through a shuffle buffer of BufferSize records: once
// the buffer is full, each new record evicts a uniformly chosen buffered
// record to the output. With Epochs == 0 the files are read forever.
//
// Read errors are returned by Yield and do not stop the yielder; the rest
// of the failing file is skipped. An epoch that reads no record at all, for
// example because every file is empty or unreadable, is reported once as a
// *batch.SourceError and ends the stream.
type FileYielder struct {
	opts   YielderOptions
	format string
	files  []string
	seed   int64
	logger batch.Logger

	out    chan item
	closed chan struct{}
	done   chan struct{}
	runCtx context.Context
	cancel context.CancelFunc
	epoch  int64

	closeOnce sync.Once
}

// NewFileYielder globs opts.FilePattern and starts reading in the
// background. ctx bounds the lifetime of the background readers. It is an
// error for the pattern to match no files.
func NewFileYielder(ctx context.Context, opts YielderOptions) (*FileYielder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Parallelism == 0 {
		opts.Parallelism = DefaultParallelism
	}
	logger := opts.Logger
	if logger == nil {
		logger = &batch.NoOpLogger{}
	}

	format, glob, err := splitPattern(opts.FilePattern)
	if err != nil {
		return nil, err
	}
	files, err := filepath.Glob(glob)
	if err != nil {
		return nil, batch.NewConfigError("file_pattern", "bad glob %q: %v", glob, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files match %q", glob)
	}
	sort.Strings(files)

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		logger.Info("Using random seed %d", seed)
	}

	runCtx, cancel := context.WithCancel(ctx)
	y := &FileYielder{
		opts:   opts,
		format: format,
		files:  files,
		seed:   seed,
		logger: logger,
		out:    make(chan item),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
		runCtx: runCtx,
		cancel: cancel,
	}

	logger.Info("Reading %d %s file(s) matching %q with %d reader(s), buffer %d",
		len(files), format, glob, opts.Parallelism, opts.BufferSize)

	go y.run(runCtx)
	return y, nil
}

// Files returns the files matched by the pattern.
func (y *FileYielder) Files() []string {
	return append([]string(nil), y.files...)
}

// Epoch returns the number of the epoch currently being read, starting at 1.
func (y *FileYielder) Epoch() int64 {
	return atomic.LoadInt64(&y.epoch)
}

// Yield implements the batch.Yielder interface.
func (y *FileYielder) Yield(ctx context.Context) (batch.Record, error) {
	select {
	case <-y.closed:
		return batch.Record{}, batch.ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return batch.Record{}, ctx.Err()
	case <-y.closed:
		return batch.Record{}, batch.ErrClosed
	case it, ok := <-y.out:
		if !ok {
			select {
			case <-y.closed:
				return batch.Record{}, batch.ErrClosed
			default:
			}
			if err := y.runCtx.Err(); err != nil {
				return batch.Record{}, err
			}
			return batch.Record{}, io.EOF
		}
		return it.rec, it.err
	}
}

// Close stops the background readers and waits for them to exit.
func (y *FileYielder) Close() error {
	y.closeOnce.Do(func() {
		close(y.closed)
		y.cancel()
		<-y.done
	})
	return nil
}

// run feeds the shuffle buffer from the readers and the output from the
// shuffle buffer.
func (y *FileYielder) run(ctx context.Context) {
	defer close(y.done)
	defer close(y.out)

	records := make(chan item, y.opts.Parallelism)
	go y.readEpochs(ctx, records)

	rng := rand.New(rand.NewSource(y.seed))
	buf := make([]item, 0, y.opts.BufferSize)

	emit := func() bool {
		i := rng.Intn(len(buf))
		it := buf[i]
		last := len(buf) - 1
		buf[i] = buf[last]
		buf = buf[:last]

		select {
		case y.out <- it:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for it := range records {
		if it.err != nil {
			select {
			case y.out <- it:
			case <-ctx.Done():
				return
			}
			continue
		}

		buf = append(buf, it)
		if int64(len(buf)) >= y.opts.BufferSize && !emit() {
			return
		}
	}

	for len(buf) > 0 {
		if !emit() {
			return
		}
	}
}

// readEpochs reads every file once per epoch and sends the records to out,
// closing it when the last epoch is done or ctx is canceled.
func (y *FileYielder) readEpochs(ctx context.Context, out chan<- item) {
	defer close(out)

	// File order uses its own generator so that it does not depend on
	// how many records the shuffle buffer has consumed.
	fileRng := rand.New(rand.NewSource(y.seed ^ 0x5deece66d))

	for epoch := int64(1); y.opts.Epochs == 0 || epoch <= y.opts.Epochs; epoch++ {
		atomic.StoreInt64(&y.epoch, epoch)

		order := append([]string(nil), y.files...)
		fileRng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})

		var count int64
		g, gctx := errgroup.WithContext(ctx)
		paths := make(chan string)
		g.Go(func() error {
			defer close(paths)
			for _, path := range order {
				select {
				case paths <- path:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
		for i := int64(0); i < y.opts.Parallelism; i++ {
			g.Go(func() error {
				for path := range paths {
					n, err := y.readFile(gctx, path, out)
					atomic.AddInt64(&count, n)
					if err != nil {
						if gctx.Err() != nil {
							return gctx.Err()
						}
						y.logger.Error("Reading %s: %v", path, err)
						select {
						case out <- item{err: &batch.SourceError{Index: -1, Err: fmt.Errorf("%s: %w", path, err)}}:
						case <-gctx.Done():
							return gctx.Err()
						}
					}
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		n := atomic.LoadInt64(&count)
		if n == 0 {
			y.logger.Error("Epoch %d read no records from %d file(s), stopping", epoch, len(order))
			select {
			case out <- item{err: &batch.SourceError{Index: -1, Err: fmt.Errorf("%w: epoch %d of %d file(s)", ErrNoRecords, epoch, len(order))}}:
			case <-ctx.Done():
			}
			return
		}
		y.logger.Debug("Epoch %d done: %d record(s)", epoch, n)
	}
}

// readFile sends every record of path to out and returns how many it sent.
func (y *FileYielder) readFile(ctx context.Context, path string, out chan<- item) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var n int64
	send := func(data []byte) error {
		select {
		case out <- item{rec: batch.Record{Value: data, Source: path}}:
			n++
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	switch y.format {
	case FormatTFRecord:
		err := ReadTFRecords(f, send)
		return n, err
	default:
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), maxLineLen)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			if err := send(line); err != nil {
				return n, err
			}
		}
		err := scanner.Err()
		return n, err
	}
}
