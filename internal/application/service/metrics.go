package service

import (
	"context"
	"time"

	"textchunking/internal/application/common/slogger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// lifecycleMetrics holds the OTEL instruments for the batch lifecycle
// service.
type lifecycleMetrics struct {
	admittedCounter    metric.Int64Counter
	rejectedCounter    metric.Int64Counter
	chunkResultCounter metric.Int64Counter
	timeoutCounter     metric.Int64Counter
	evictedCounter     metric.Int64Counter
	durationHist       metric.Float64Histogram
	activeGauge        metric.Int64Gauge
}

func newLifecycleMetrics(ctx context.Context) *lifecycleMetrics {
	meter := otel.Meter("textchunking/batch_lifecycle")

	admittedCounter, err := meter.Int64Counter(
		"batch_admitted_total",
		metric.WithDescription("Total number of batches admitted"),
	)
	if err != nil {
		slogger.Warn(ctx, "Failed to create admitted counter", slogger.Fields{"error": err.Error()})
	}

	rejectedCounter, err := meter.Int64Counter(
		"batch_rejected_total",
		metric.WithDescription("Total number of admissions rejected at the concurrency cap"),
	)
	if err != nil {
		slogger.Warn(ctx, "Failed to create rejected counter", slogger.Fields{"error": err.Error()})
	}

	chunkResultCounter, err := meter.Int64Counter(
		"batch_chunk_results_total",
		metric.WithDescription("Total number of chunk results recorded"),
	)
	if err != nil {
		slogger.Warn(ctx, "Failed to create chunk result counter", slogger.Fields{"error": err.Error()})
	}

	timeoutCounter, err := meter.Int64Counter(
		"batch_timeouts_total",
		metric.WithDescription("Total number of batches failed by timeout"),
	)
	if err != nil {
		slogger.Warn(ctx, "Failed to create timeout counter", slogger.Fields{"error": err.Error()})
	}

	evictedCounter, err := meter.Int64Counter(
		"batch_evicted_total",
		metric.WithDescription("Total number of terminal batches evicted by cleanup"),
	)
	if err != nil {
		slogger.Warn(ctx, "Failed to create evicted counter", slogger.Fields{"error": err.Error()})
	}

	durationHist, err := meter.Float64Histogram(
		"batch_duration_seconds",
		metric.WithDescription("Batch duration from start to terminal state in seconds"),
	)
	if err != nil {
		slogger.Warn(ctx, "Failed to create duration histogram", slogger.Fields{"error": err.Error()})
	}

	activeGauge, err := meter.Int64Gauge(
		"batch_active",
		metric.WithDescription("Number of batches currently pending or processing"),
	)
	if err != nil {
		slogger.Warn(ctx, "Failed to create active gauge", slogger.Fields{"error": err.Error()})
	}

	return &lifecycleMetrics{
		admittedCounter:    admittedCounter,
		rejectedCounter:    rejectedCounter,
		chunkResultCounter: chunkResultCounter,
		timeoutCounter:     timeoutCounter,
		evictedCounter:     evictedCounter,
		durationHist:       durationHist,
		activeGauge:        activeGauge,
	}
}

func (m *lifecycleMetrics) recordAdmitted(ctx context.Context, chunkCount int) {
	m.admittedCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("chunk_count", chunkCount),
	))
}

func (m *lifecycleMetrics) recordRejected(ctx context.Context) {
	m.rejectedCounter.Add(ctx, 1)
}

func (m *lifecycleMetrics) recordChunkResult(ctx context.Context, failed bool) {
	m.chunkResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("failed", failed),
	))
}

func (m *lifecycleMetrics) recordTimeout(ctx context.Context) {
	m.timeoutCounter.Add(ctx, 1)
}

func (m *lifecycleMetrics) recordEvicted(ctx context.Context, count int) {
	m.evictedCounter.Add(ctx, int64(count))
}

func (m *lifecycleMetrics) recordTerminal(ctx context.Context, status string, started *time.Time) {
	if started == nil {
		return
	}
	m.durationHist.Record(ctx, time.Since(*started).Seconds(), metric.WithAttributes(
		attribute.String("status", status),
	))
}

func (m *lifecycleMetrics) recordActive(ctx context.Context, active int) {
	m.activeGauge.Record(ctx, int64(active))
}
