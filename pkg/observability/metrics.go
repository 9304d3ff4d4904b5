package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricLinesTotal         = "mnemoscan.lines.total"
	metricChunksTotal        = "mnemoscan.chunks.total"
	metricChunkDuration      = "mnemoscan.chunk.duration.seconds"
	metricCheckpointsTotal   = "mnemoscan.checkpoint.saves.total"
	metricCheckpointDuration = "mnemoscan.checkpoint.save.duration.seconds"
	metricRunsTotal          = "mnemoscan.runs.total"

	attrResult = "result"
	attrStatus = "status"

	resultValid   = "valid"
	resultInvalid = "invalid"
	statusOK      = "ok"
	statusError   = "error"
)

// chunkBucketBoundaries covers 1ms to 60s per chunk.
var chunkBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// checkpointBucketBoundaries covers fsync latency from 100us to 5s.
var checkpointBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// ScanMetrics holds OTel instruments for scan throughput and durability.
type ScanMetrics struct {
	linesTotal         metric.Int64Counter
	chunksTotal        metric.Int64Counter
	chunkDuration      metric.Float64Histogram
	checkpointsTotal   metric.Int64Counter
	checkpointDuration metric.Float64Histogram
	runsTotal          metric.Int64Counter
}

// instruments creates instruments from one meter and collects every
// creation error.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (in *instruments) counter(name, desc, unit string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		in.errs = append(in.errs, fmt.Errorf("create %s: %w", name, err))
	}

	return c
}

func (in *instruments) seconds(name, desc string, bounds []float64) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(bounds...),
	)
	if err != nil {
		in.errs = append(in.errs, fmt.Errorf("create %s: %w", name, err))
	}

	return h
}

// NewScanMetrics creates scan metric instruments from the given meter.
func NewScanMetrics(mt metric.Meter) (*ScanMetrics, error) {
	in := &instruments{meter: mt}

	sm := &ScanMetrics{
		linesTotal:         in.counter(metricLinesTotal, "Candidate lines validated", "{line}"),
		chunksTotal:        in.counter(metricChunksTotal, "Chunks committed", "{chunk}"),
		chunkDuration:      in.seconds(metricChunkDuration, "Worker time per chunk", chunkBucketBoundaries),
		checkpointsTotal:   in.counter(metricCheckpointsTotal, "Checkpoint saves by status", "{save}"),
		checkpointDuration: in.seconds(metricCheckpointDuration, "Checkpoint save duration", checkpointBucketBoundaries),
		runsTotal:          in.counter(metricRunsTotal, "Scan runs by final status", "{run}"),
	}

	err := errors.Join(in.errs...)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordChunk records one committed chunk. Safe to call on a nil receiver (no-op).
func (sm *ScanMetrics) RecordChunk(ctx context.Context, lines, valid int64, elapsed time.Duration) {
	if sm == nil {
		return
	}

	sm.linesTotal.Add(ctx, valid, metric.WithAttributes(attribute.String(attrResult, resultValid)))
	sm.linesTotal.Add(ctx, lines-valid, metric.WithAttributes(attribute.String(attrResult, resultInvalid)))
	sm.chunksTotal.Add(ctx, 1)
	sm.chunkDuration.Record(ctx, elapsed.Seconds())
}

// RecordCheckpoint records one checkpoint save attempt. Safe on a nil receiver.
func (sm *ScanMetrics) RecordCheckpoint(ctx context.Context, elapsed time.Duration, err error) {
	if sm == nil {
		return
	}

	status := statusOK
	if err != nil {
		status = statusError
	}

	sm.checkpointsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
	sm.checkpointDuration.Record(ctx, elapsed.Seconds())
}

// RecordRun records how a scan ended. Safe on a nil receiver.
func (sm *ScanMetrics) RecordRun(ctx context.Context, status string) {
	if sm == nil {
		return
	}

	sm.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStatus, status)))
}
