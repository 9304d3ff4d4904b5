package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}

	return out
}

func sumValue(t *testing.T, m metricdata.Metrics, attrKey, attrValue string) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, m.Name)

	var total int64

	for _, dp := range sum.DataPoints {
		if attrKey == "" {
			total += dp.Value

			continue
		}

		v, found := dp.Attributes.Value(attribute.Key(attrKey))
		if found && v.AsString() == attrValue {
			total += dp.Value
		}
	}

	return total
}

func TestScanMetrics_Records(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	sm, err := NewScanMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	sm.RecordChunk(ctx, 100, 7, 50*time.Millisecond)
	sm.RecordChunk(ctx, 20, 1, 10*time.Millisecond)
	sm.RecordCheckpoint(ctx, time.Millisecond, nil)
	sm.RecordCheckpoint(ctx, time.Millisecond, errors.New("disk full"))
	sm.RecordRun(ctx, "interrupted")

	got := collect(t, reader)

	assert.Equal(t, int64(8), sumValue(t, got[metricLinesTotal], attrResult, resultValid))
	assert.Equal(t, int64(112), sumValue(t, got[metricLinesTotal], attrResult, resultInvalid))
	assert.Equal(t, int64(2), sumValue(t, got[metricChunksTotal], "", ""))
	assert.Equal(t, int64(1), sumValue(t, got[metricCheckpointsTotal], attrStatus, statusError))
	assert.Equal(t, int64(1), sumValue(t, got[metricRunsTotal], attrStatus, "interrupted"))

	hist, ok := got[metricChunkDuration].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestScanMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var sm *ScanMetrics

	assert.NotPanics(t, func() {
		sm.RecordChunk(context.Background(), 1, 1, time.Millisecond)
		sm.RecordCheckpoint(context.Background(), time.Millisecond, nil)
		sm.RecordRun(context.Background(), "completed")
	})
}
