// Package scan runs a resumable validation pass over one input file.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/checkpoint"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/dispatch"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/linesource"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/mnemonic"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/observability"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/progress"
	"github.com/Sumatoshi-tech/mnemoscan/pkg/sink"
)

const tracerName = "mnemoscan/scan"

// ErrInputMismatch is returned when the stored checkpoint was written for a
// different input file or language.
var ErrInputMismatch = errors.New("checkpoint belongs to a different input")

// Status is how a scan ended.
type Status string

// Scan statuses.
const (
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
)

// Options configures a scan.
type Options struct {
	InputPath  string
	OutputPath string
	Language   mnemonic.Language
	// Predicate decides validity; it defaults to a checker for Language.
	Predicate dispatch.Predicate
	Store     *checkpoint.Store
	Dispatch  dispatch.Config

	// CheckpointEvery saves after this many committed lines; 0 disables it.
	CheckpointEvery int64
	// CheckpointInterval saves after this much time; 0 disables it.
	CheckpointInterval time.Duration
	// ClearCheckpoint discards any stored checkpoint and starts over.
	ClearCheckpoint bool

	// CountTotal pre-counts input lines so progress can show percent and ETA.
	CountTotal  bool
	ReadBuffer  int
	WriteBuffer int

	// Progress receives the status line; nil disables it.
	Progress         io.Writer
	ProgressInterval time.Duration

	Logger  *slog.Logger
	Metrics *observability.ScanMetrics
	Tracer  trace.Tracer

	now         func() time.Time
	afterCommit func(*dispatch.Chunk)
}

// Summary describes a finished scan.
type Summary struct {
	Status Status
	Input  string
	Output string

	// Total is the physical line count, or 0 when not counted.
	Total     int64
	Committed int64
	Processed int64
	Valid     int64

	// RunProcessed and RunValid cover this invocation only.
	RunProcessed int64
	RunValid     int64

	Resumed     bool
	ResumedFrom int64
	SeekMode    linesource.SeekMode
	Checkpoints int
	Elapsed     time.Duration
}

// Speed returns the average lines per second of this invocation.
func (s Summary) Speed() float64 {
	if s.Elapsed <= 0 {
		return 0
	}

	return float64(s.Committed-s.ResumedFrom) / s.Elapsed.Seconds()
}

// runner holds the state of one Run.
type runner struct {
	opts   Options
	logger *slog.Logger
	stats  *Stats
	snk    *sink.Sink
	ident  checkpoint.InputIdentity
	output string

	lastSavedOrdinal int64
	lastSavedAt      time.Time
	saves            int

	// baselinePending is set on a fresh start until the output size before
	// the first append has been recorded.
	baselinePending bool
}

// Run scans opts.InputPath, appending valid lines to opts.OutputPath. It stops
// between chunks when ctx is cancelled, saves a final checkpoint and reports
// StatusInterrupted. On completion the checkpoint is removed.
func Run(ctx context.Context, opts Options) (Summary, error) {
	opts = withDefaults(opts)

	ctx, span := opts.Tracer.Start(ctx, "scan.run",
		trace.WithAttributes(attribute.String("input", opts.InputPath)))
	defer span.End()

	summary, err := run(ctx, opts)
	if err != nil {
		summary.Status = StatusFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.String("status", string(summary.Status)),
		attribute.Int64("processed", summary.RunProcessed),
		attribute.Int64("valid", summary.RunValid),
	)
	opts.Metrics.RecordRun(ctx, string(summary.Status))

	return summary, err
}

func withDefaults(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	if opts.Language == "" {
		opts.Language = mnemonic.DefaultLanguage
	}

	if opts.Store == nil {
		opts.Store = checkpoint.NewStore(checkpoint.DefaultPath(), opts.Logger)
	}

	if opts.now == nil {
		opts.now = time.Now
	}

	return opts
}

//nolint:funlen // linear setup, dispatch and teardown of one scan.
func run(ctx context.Context, opts Options) (Summary, error) {
	start := opts.now()
	summary := Summary{Input: opts.InputPath, Output: opts.OutputPath}

	if opts.Predicate == nil {
		checker, err := mnemonic.NewChecker(opts.Language)
		if err != nil {
			return summary, err
		}

		opts.Predicate = checker.Valid
	}

	r := &runner{opts: opts, logger: opts.Logger}

	rec, err := r.prepareCheckpoint(ctx)
	if err != nil {
		return summary, err
	}

	r.stats = newStats(rec)
	r.lastSavedOrdinal = r.stats.Committed()
	r.lastSavedAt = start
	r.baselinePending = rec == nil

	if rec != nil {
		summary.Resumed = true
		summary.ResumedFrom = rec.Committed
	}

	r.snk, err = sink.Open(opts.OutputPath, opts.WriteBuffer)
	if err != nil {
		return summary, err
	}

	err = r.rollbackOutput(ctx, rec)
	if err != nil {
		return summary, errors.Join(err, r.snk.Close())
	}

	if opts.CountTotal {
		summary.Total, err = linesource.CountLines(opts.InputPath)
		if err != nil {
			return summary, errors.Join(err, r.snk.Close())
		}
	}

	reader, err := linesource.Open(opts.InputPath, opts.ReadBuffer)
	if err != nil {
		return summary, errors.Join(err, r.snk.Close())
	}
	defer reader.Close()

	if reader.LooksBinary() {
		r.logger.WarnContext(ctx, "scan: input looks binary, expect few valid lines", "path", opts.InputPath)
	}

	summary.SeekMode, err = reader.Seek(linesource.Position{Ordinal: r.stats.Committed(), Offset: r.stats.Offset()})
	if err != nil {
		return summary, errors.Join(fmt.Errorf("resume input: %w", err), r.snk.Close())
	}

	if rec != nil {
		r.logger.InfoContext(ctx, "checkpoint: resuming",
			"ordinal", rec.Committed, "processed", rec.Processed, "valid", rec.Valid, "seek", summary.SeekMode)
	}

	reporter := r.startReporter(summary.Total, start)

	outcome, runErr := dispatch.New(opts.Predicate, opts.Dispatch).Run(ctx, reader, r.commit(ctx))

	if reporter != nil {
		reporter.Stop()
	}

	summary.Committed = r.stats.Committed()
	summary.Processed = r.stats.Processed()
	summary.Valid = r.stats.Valid()
	summary.RunProcessed = outcome.Lines
	summary.RunValid = summary.Valid - r.initialValid(rec)
	summary.Elapsed = opts.now().Sub(start)

	if runErr != nil {
		r.logger.ErrorContext(ctx, "scan: aborted", "stats", r.stats, "error", runErr)

		summary.Checkpoints = r.saves

		return summary, errors.Join(runErr, r.snk.Close())
	}

	if outcome.Interrupted {
		summary.Status = StatusInterrupted

		if outcome.Discarded > 0 {
			r.logger.InfoContext(ctx, "scan: dropped in-flight chunks, they are redone on resume",
				"chunks", outcome.Discarded)
		}

		err = r.finishInterrupted(ctx, rec)
		summary.Checkpoints = r.saves

		return summary, err
	}

	summary.Status = StatusCompleted

	err = r.snk.Close()
	if err != nil {
		return summary, err
	}

	clearErr := opts.Store.Clear()
	if clearErr != nil {
		r.logger.WarnContext(ctx, "checkpoint: clear failed", "path", opts.Store.Path(), "error", clearErr)
	}

	summary.Checkpoints = r.saves

	r.logger.InfoContext(ctx, "scan: completed", "stats", r.stats, "elapsed", summary.Elapsed)

	return summary, nil
}

// prepareCheckpoint fingerprints the input and returns the record to resume
// from, or nil for a fresh start.
func (r *runner) prepareCheckpoint(ctx context.Context) (*checkpoint.Record, error) {
	ident, err := checkpoint.Fingerprint(r.opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("fingerprint input: %w", err)
	}

	r.ident = ident

	r.output, err = filepath.Abs(r.opts.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	rec, err := r.opts.Store.Load(ctx)
	if err != nil {
		return nil, err
	}

	if rec == nil {
		return nil, nil //nolint:nilnil // fresh start.
	}

	if r.opts.ClearCheckpoint {
		r.logger.WarnContext(ctx, "checkpoint: discarding stored progress",
			"path", r.opts.Store.Path(), "ordinal", rec.Committed)

		return nil, r.opts.Store.Clear()
	}

	if !rec.Input.Matches(ident) {
		return nil, fmt.Errorf("%w: checkpoint %s is for %s (%d bytes), input is %s (%d bytes); "+
			"rerun with --clear-checkpoint to start over",
			ErrInputMismatch, r.opts.Store.Path(), rec.Input.Path, rec.Input.Size, ident.Path, ident.Size)
	}

	if rec.Language != "" && rec.Language != string(r.opts.Language) {
		return nil, fmt.Errorf("%w: checkpoint was written for language %s, scan uses %s; "+
			"rerun with --clear-checkpoint to start over",
			ErrInputMismatch, rec.Language, r.opts.Language)
	}

	return rec, nil
}

// rollbackOutput trims output written after the resumed checkpoint; those
// lines lie beyond the committed ordinal and are produced again.
func (r *runner) rollbackOutput(ctx context.Context, rec *checkpoint.Record) error {
	if rec == nil {
		if r.snk.Size() > 0 {
			r.logger.InfoContext(ctx, "scan: appending to existing output",
				"path", r.opts.OutputPath, "bytes", r.snk.Size())
		}

		return nil
	}

	if rec.OutputPath != r.output {
		r.logger.WarnContext(ctx, "scan: output path changed since checkpoint",
			"was", rec.OutputPath, "now", r.output)

		return nil
	}

	dropped, err := r.snk.Rollback(rec.OutputSize)
	if errors.Is(err, sink.ErrShortOutput) {
		r.logger.WarnContext(ctx, "scan: output is shorter than checkpoint, earlier results are missing",
			"path", r.opts.OutputPath, "error", err)

		return nil
	}

	if err != nil {
		return err
	}

	if dropped > 0 {
		r.logger.InfoContext(ctx, "scan: dropped uncommitted output", "bytes", dropped)
	}

	return nil
}

func (r *runner) startReporter(total int64, start time.Time) *progress.Reporter {
	if r.opts.Progress == nil {
		return nil
	}

	est := progress.NewEstimator(total, r.stats.Sample(), start)
	reporter := progress.NewReporter(r.opts.Progress, r.opts.ProgressInterval, est, r.stats.Sample)
	reporter.Start()

	return reporter
}

// commit appends a chunk's valid lines, advances the counters and saves a
// checkpoint when one is due.
func (r *runner) commit(ctx context.Context) dispatch.CommitFunc {
	return func(chunk *dispatch.Chunk) error {
		if r.baselinePending && chunk.ValidCount() > 0 {
			err := r.saveBaseline(ctx)
			if err != nil {
				return err
			}
		}

		for i := range chunk.Results {
			if !chunk.Results[i].Valid {
				continue
			}

			err := r.snk.Append(chunk.Results[i].Text)
			if err != nil {
				return err
			}
		}

		r.stats.commit(chunk)
		r.opts.Metrics.RecordChunk(ctx, int64(len(chunk.Results)), chunk.ValidCount(), chunk.Elapsed)

		if r.checkpointDue() {
			err := r.save(ctx)
			if err != nil {
				return err
			}
		}

		if r.opts.afterCommit != nil {
			r.opts.afterCommit(chunk)
		}

		return nil
	}
}

// saveBaseline records the current position and output size before a fresh
// run first writes to the output, so output flushed ahead of the first
// checkpoint is rolled back on resume.
func (r *runner) saveBaseline(ctx context.Context) error {
	err := r.opts.Store.Save(ctx, r.record())
	if err != nil {
		return fmt.Errorf("save baseline checkpoint: %w", err)
	}

	r.baselinePending = false

	return nil
}

func (r *runner) checkpointDue() bool {
	if r.opts.CheckpointEvery > 0 && r.stats.Committed()-r.lastSavedOrdinal >= r.opts.CheckpointEvery {
		return true
	}

	return r.opts.CheckpointInterval > 0 && r.opts.now().Sub(r.lastSavedAt) >= r.opts.CheckpointInterval
}

// save makes the output durable, then records the committed position.
func (r *runner) save(ctx context.Context) error {
	started := time.Now()

	err := r.snk.Sync()
	if err == nil {
		err = r.opts.Store.Save(ctx, r.record())
	}

	r.opts.Metrics.RecordCheckpoint(ctx, time.Since(started), err)

	if err != nil {
		return err
	}

	r.saves++
	r.baselinePending = false
	r.lastSavedOrdinal = r.stats.Committed()
	r.lastSavedAt = r.opts.now()

	return nil
}

func (r *runner) record() checkpoint.Record {
	return checkpoint.Record{
		Input:      r.ident,
		Language:   string(r.opts.Language),
		Committed:  r.stats.Committed(),
		Offset:     r.stats.Offset(),
		Processed:  r.stats.Processed(),
		Valid:      r.stats.Valid(),
		OutputPath: r.output,
		OutputSize: r.snk.Size(),
		UpdatedAt:  r.opts.now().UTC(),
	}
}

// finishInterrupted saves the final checkpoint and closes the output.
// Nothing is saved when no line was ever committed.
func (r *runner) finishInterrupted(ctx context.Context, rec *checkpoint.Record) error {
	if rec != nil || r.stats.Committed() > 0 {
		err := r.save(ctx)
		if err != nil {
			return errors.Join(err, r.snk.Close())
		}
	}

	err := r.snk.Close()
	if err != nil {
		return err
	}

	r.logger.WarnContext(ctx, "scan: interrupted, progress saved",
		"stats", r.stats, "checkpoint", r.opts.Store.Path())

	return nil
}

func (r *runner) initialValid(rec *checkpoint.Record) int64 {
	if rec == nil {
		return 0
	}

	return rec.Valid
}
