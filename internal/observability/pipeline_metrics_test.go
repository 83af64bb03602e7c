package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/lazygrain/internal/observability"
)

func setupPipelineMeter(t *testing.T) (*observability.PipelineMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := mp.Meter("test")

	pm, err := observability.NewPipelineMetrics(meter)
	require.NoError(t, err)

	return pm, reader
}

func TestNewPipelineMetrics(t *testing.T) {
	t.Parallel()

	pm, _ := setupPipelineMeter(t)
	assert.NotNil(t, pm)
}

func TestPipelineMetrics_RecordRun(t *testing.T) {
	t.Parallel()

	pm, reader := setupPipelineMeter(t)
	ctx := context.Background()

	pm.RecordRun(ctx, observability.PipelineStats{
		Elements:       100,
		Batches:        5,
		BatchDurations: []time.Duration{time.Second, 2 * time.Second, 3 * time.Second},
		BinsFilled:     50,
		BinsSpilled:    10,
	})

	rm := collectMetrics(t, reader)

	elements := findMetric(rm, "lazygrain.pipeline.elements.total")
	require.NotNil(t, elements, "elements counter should exist")

	batches := findMetric(rm, "lazygrain.pipeline.batches.total")
	require.NotNil(t, batches, "batches counter should exist")

	batchDur := findMetric(rm, "lazygrain.pipeline.batch.duration.seconds")
	require.NotNil(t, batchDur, "batch duration histogram should exist")

	hist, ok := batchDur.Data.(metricdata.Histogram[float64])
	require.True(t, ok, "expected Histogram data type")
	require.NotEmpty(t, hist.DataPoints)
	assert.Equal(t, uint64(3), hist.DataPoints[0].Count, "should have 3 duration recordings")

	binFill := findMetric(rm, "lazygrain.pipeline.packing.bins.filled.total")
	require.NotNil(t, binFill, "bin fill counter should exist")

	binSpill := findMetric(rm, "lazygrain.pipeline.packing.bins.spilled.total")
	require.NotNil(t, binSpill, "bin spill counter should exist")
}

func TestPipelineMetrics_RecordRun_NilReceiver(t *testing.T) {
	t.Parallel()

	var pm *observability.PipelineMetrics

	pm.RecordRun(context.Background(), observability.PipelineStats{
		Elements: 10,
		Batches:  1,
	})
}
