package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricElementsTotal   = "lazygrain.pipeline.elements.total"
	metricBatchesTotal    = "lazygrain.pipeline.batches.total"
	metricBatchDuration   = "lazygrain.pipeline.batch.duration.seconds"
	metricBinFillTotal    = "lazygrain.pipeline.packing.bins.filled.total"
	metricBinSpillTotal   = "lazygrain.pipeline.packing.bins.spilled.total"

	attrBin = "bin"
)

// PipelineMetrics holds OTel instruments for dataset-pipeline-specific metrics:
// element throughput, per-batch prefetch latency, and packing bin utilization.
type PipelineMetrics struct {
	elementsTotal metric.Int64Counter
	batchesTotal  metric.Int64Counter
	batchDuration metric.Float64Histogram
	binFill       metric.Int64Counter
	binSpill      metric.Int64Counter
}

// PipelineStats holds the statistics for a single prefetch or packing run,
// decoupled from the dataset/prefetch package types.
type PipelineStats struct {
	Elements       int64
	Batches        int
	BatchDurations []time.Duration
	BinsFilled     int64
	BinsSpilled    int64
}

// NewPipelineMetrics creates pipeline metric instruments from the given meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		elementsTotal: b.counter(metricElementsTotal, "Total elements yielded by the pipeline", "{element}"),
		batchesTotal:  b.counter(metricBatchesTotal, "Total prefetch batches produced", "{batch}"),
		batchDuration: b.histogram(metricBatchDuration, "Per-batch prefetch fetch duration in seconds", "s", durationBucketBoundaries...),
		binFill:       b.counter(metricBinFillTotal, "Packing bins emitted full", "{bin}"),
		binSpill:      b.counter(metricBinSpillTotal, "Packing bins evicted to make room for a new element", "{bin}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordRun records pipeline statistics for a completed prefetch or packing run.
// Safe to call on a nil receiver (no-op).
func (pm *PipelineMetrics) RecordRun(ctx context.Context, stats PipelineStats) {
	if pm == nil {
		return
	}

	pm.elementsTotal.Add(ctx, stats.Elements)
	pm.batchesTotal.Add(ctx, int64(stats.Batches))

	for _, d := range stats.BatchDurations {
		pm.batchDuration.Record(ctx, d.Seconds())
	}

	pm.binFill.Add(ctx, stats.BinsFilled, metric.WithAttributes(attribute.String(attrBin, "full")))
	pm.binSpill.Add(ctx, stats.BinsSpilled, metric.WithAttributes(attribute.String(attrBin, "spilled")))
}
