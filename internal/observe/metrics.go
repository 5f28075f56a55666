// Package observe provides the metrics and logging primitives shared by the
// Mudra daemon.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter bridge so they can be scraped from /metrics.
// Tests should build their own [Metrics] with [NewMetrics] and a
// ManualReader-backed provider to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Mudra metrics.
const meterName = "github.com/ayusman/mudra"

// Metrics holds the OpenTelemetry instruments for the translation pipeline.
// All fields are safe for concurrent use.
type Metrics struct {
	// Samples counts classification samples fed into the pipeline.
	Samples metric.Int64Counter

	// StableDetections counts samples that produced a stable detection.
	StableDetections metric.Int64Counter

	// Commits counts letters committed to a sentence. Attribute: mode=auto|manual.
	Commits metric.Int64Counter

	// Advisories counts user-facing advisories. Attribute: kind.
	Advisories metric.Int64Counter

	// Captures counts frame captures by outcome. Attribute: status.
	Captures metric.Int64Counter

	// Flushes counts history flushes by outcome. Attribute: status.
	Flushes metric.Int64Counter

	// FlushDuration tracks history sink latency.
	FlushDuration metric.Float64Histogram

	// Subscribers tracks the number of live snapshot subscribers.
	Subscribers metric.Int64UpDownCounter

	// SyncRuns counts sync plugin invocations. Attributes: plugin, status.
	SyncRuns metric.Int64Counter
}

var flushBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a [Metrics] using the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Samples, err = m.Int64Counter("mudra.samples",
		metric.WithDescription("Classification samples observed by the pipeline."),
	); err != nil {
		return nil, err
	}
	if met.StableDetections, err = m.Int64Counter("mudra.stable_detections",
		metric.WithDescription("Samples that produced a stable detection."),
	); err != nil {
		return nil, err
	}
	if met.Commits, err = m.Int64Counter("mudra.commits",
		metric.WithDescription("Letters committed to the sentence by mode."),
	); err != nil {
		return nil, err
	}
	if met.Advisories, err = m.Int64Counter("mudra.advisories",
		metric.WithDescription("Advisories surfaced to the user by kind."),
	); err != nil {
		return nil, err
	}
	if met.Captures, err = m.Int64Counter("mudra.captures",
		metric.WithDescription("Frame captures by status."),
	); err != nil {
		return nil, err
	}
	if met.Flushes, err = m.Int64Counter("mudra.history.flushes",
		metric.WithDescription("History flushes by status."),
	); err != nil {
		return nil, err
	}
	if met.FlushDuration, err = m.Float64Histogram("mudra.history.flush.duration",
		metric.WithDescription("Latency of persisting a translation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(flushBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Subscribers, err = m.Int64UpDownCounter("mudra.subscribers",
		metric.WithDescription("Live snapshot subscribers."),
	); err != nil {
		return nil, err
	}
	if met.SyncRuns, err = m.Int64Counter("mudra.sync.runs",
		metric.WithDescription("Sync plugin invocations by plugin and status."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] built from
// [otel.GetMeterProvider]. It panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSample counts one classification sample and, when stable is true,
// one stable detection.
func (m *Metrics) RecordSample(ctx context.Context, stable bool) {
	m.Samples.Add(ctx, 1)
	if stable {
		m.StableDetections.Add(ctx, 1)
	}
}

// RecordCommit counts a committed letter. mode is "auto" or "manual".
func (m *Metrics) RecordCommit(ctx context.Context, mode string) {
	m.Commits.Add(ctx, 1, metric.WithAttributes(Attr("mode", mode)))
}

// RecordAdvisory counts an advisory of the given kind.
func (m *Metrics) RecordAdvisory(ctx context.Context, kind string) {
	m.Advisories.Add(ctx, 1, metric.WithAttributes(Attr("kind", kind)))
}

// RecordCapture counts a frame capture outcome.
func (m *Metrics) RecordCapture(ctx context.Context, status string) {
	m.Captures.Add(ctx, 1, metric.WithAttributes(Attr("status", status)))
}

// RecordFlush counts a history flush and observes its latency.
func (m *Metrics) RecordFlush(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(Attr("status", status))
	m.Flushes.Add(ctx, 1, attrs)
	m.FlushDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordSync counts one sync plugin invocation.
func (m *Metrics) RecordSync(ctx context.Context, plugin, status string) {
	m.SyncRuns.Add(ctx, 1, metric.WithAttributes(Attr("plugin", plugin), Attr("status", status)))
}
