// Package dispatch validates lines on a worker pool and hands the results
// back in input order, one chunk at a time.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/linesource"
)

// DefaultChunkSize is the number of lines per chunk when none is configured.
const DefaultChunkSize = 4096

// inFlightPerWorker sizes the default submission window.
const inFlightPerWorker = 2

// Source yields lines in ascending ordinal order and io.EOF at the end.
type Source interface {
	Next() (linesource.Line, error)
}

// Predicate decides whether a line is kept. It must be safe for concurrent use.
type Predicate func(text string) bool

// Config sizes the worker pool.
type Config struct {
	// Workers is the number of validating goroutines (default runtime.NumCPU()).
	Workers int
	// ChunkSize is the number of lines per unit of work.
	ChunkSize int
	// MaxInFlight bounds chunks submitted but not yet committed (default 2 x Workers).
	MaxInFlight int
}

// DefaultConfig returns the default pool sizing.
func DefaultConfig() Config {
	workers := runtime.NumCPU()

	return Config{
		Workers:     workers,
		ChunkSize:   DefaultChunkSize,
		MaxInFlight: inFlightPerWorker * workers,
	}
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}

	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}

	if c.MaxInFlight <= 0 {
		c.MaxInFlight = inFlightPerWorker * c.Workers
	}

	return c
}

// Result is a line and its verdict.
type Result struct {
	linesource.Line

	Valid bool
}

// Chunk is a contiguous run of results.
type Chunk struct {
	Seq     int64
	Results []Result
	// Elapsed is the time a worker spent validating the chunk.
	Elapsed time.Duration
}

// LastOrdinal returns the ordinal of the final line in the chunk.
func (c *Chunk) LastOrdinal() int64 {
	if len(c.Results) == 0 {
		return 0
	}

	return c.Results[len(c.Results)-1].Ordinal
}

// EndOffset returns the input offset just past the final line in the chunk.
func (c *Chunk) EndOffset() int64 {
	if len(c.Results) == 0 {
		return 0
	}

	return c.Results[len(c.Results)-1].Offset
}

// ValidCount returns how many results in the chunk are valid.
func (c *Chunk) ValidCount() int64 {
	var n int64

	for i := range c.Results {
		if c.Results[i].Valid {
			n++
		}
	}

	return n
}

// CommitFunc receives chunks in submission order on the calling goroutine.
type CommitFunc func(*Chunk) error

// Outcome summarizes a Run.
type Outcome struct {
	Chunks int64
	Lines  int64
	// Discarded counts chunks submitted before cancellation and dropped
	// without commit.
	Discarded int64
	// Interrupted is set when the context stopped the run before every line
	// of the source was committed.
	Interrupted bool
}

// Dispatcher runs a predicate over a line source.
type Dispatcher struct {
	pred Predicate
	cfg  Config
}

// New creates a dispatcher. Zero config fields take their defaults.
func New(pred Predicate, cfg Config) *Dispatcher {
	return &Dispatcher{pred: pred, cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

type job struct {
	chunk   *Chunk
	done    chan struct{}
	skipped bool
}

// Run reads src in chunks, validates them concurrently and calls commit for
// each chunk in order. Once ctx is cancelled no further chunk is committed:
// chunks still in flight are dropped and their lines are left for the next
// run, so the committed position is the last chunk boundary reached before
// cancellation. A source error stops submission, commits what was submitted
// and is then returned. A commit error is returned at once.
func (d *Dispatcher) Run(ctx context.Context, src Source, commit CommitFunc) (Outcome, error) {
	jobs := make(chan *job, d.cfg.MaxInFlight)

	var workers errgroup.Group

	for range d.cfg.Workers {
		workers.Go(func() error {
			for j := range jobs {
				if ctx.Err() != nil {
					j.skipped = true
					close(j.done)

					continue
				}

				d.validate(j)
			}

			return nil
		})
	}

	defer func() {
		close(jobs)

		_ = workers.Wait()
	}()

	var (
		out       Outcome
		pending   []*job
		seq       int64
		exhausted bool
		readErr   error
	)

	for ctx.Err() == nil {
		for !exhausted && readErr == nil && len(pending) < d.cfg.MaxInFlight && ctx.Err() == nil {
			chunk, err := d.readChunk(src, seq)

			switch {
			case errors.Is(err, io.EOF):
				exhausted = true
			case err != nil:
				readErr = err

				continue
			}

			if len(chunk.Results) == 0 {
				continue
			}

			j := &job{chunk: chunk, done: make(chan struct{})}
			pending = append(pending, j)
			jobs <- j
			seq++
		}

		if len(pending) == 0 {
			break
		}

		head := pending[0]

		select {
		case <-head.done:
		case <-ctx.Done():
		}

		if ctx.Err() != nil || head.skipped {
			break
		}

		pending = pending[1:]

		err := commit(head.chunk)
		if err != nil {
			return out, fmt.Errorf("commit chunk %d: %w", head.chunk.Seq, err)
		}

		out.Chunks++
		out.Lines += int64(len(head.chunk.Results))
	}

	out.Discarded = int64(len(pending))

	if readErr != nil {
		return out, readErr
	}

	if ctx.Err() == nil {
		return out, nil
	}

	if out.Discarded == 0 && !exhausted {
		exhausted = sourceDrained(src)
	}

	out.Interrupted = out.Discarded > 0 || !exhausted

	return out, nil
}

// sourceDrained reports whether src has no lines left. It consumes at most
// one line, which is only done after the run has stopped committing.
func sourceDrained(src Source) bool {
	_, err := src.Next()

	return errors.Is(err, io.EOF)
}

// readChunk reads up to ChunkSize lines. On io.EOF the lines read so far are
// returned together with io.EOF.
func (d *Dispatcher) readChunk(src Source, seq int64) (*Chunk, error) {
	chunk := &Chunk{Seq: seq, Results: make([]Result, 0, d.cfg.ChunkSize)}

	for len(chunk.Results) < d.cfg.ChunkSize {
		line, err := src.Next()
		if err != nil {
			return chunk, err
		}

		chunk.Results = append(chunk.Results, Result{Line: line})
	}

	return chunk, nil
}

func (d *Dispatcher) validate(j *job) {
	start := time.Now()

	for i := range j.chunk.Results {
		j.chunk.Results[i].Valid = d.pred(j.chunk.Results[i].Text)
	}

	j.chunk.Elapsed = time.Since(start)

	close(j.done)
}
