// Package observe carries voxkey's telemetry: OpenTelemetry metrics exported
// to Prometheus, tracing helpers, a trace-aware logger and the HTTP
// middleware that ties them together.
//
// [InitProvider] installs the global providers. Code records through a
// [Metrics] value; [DefaultMetrics] binds one to the global meter provider,
// tests build their own with [NewMetrics] and a manual reader.
package observe

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/voxkey"

// Metrics holds the instruments of one meter. All fields are safe for
// concurrent use.
type Metrics struct {
	// ModelLoadDuration times decoder engine construction. Attributes:
	// backend, status.
	ModelLoadDuration metric.Float64Histogram
	// ModelUnloads counts released engines. Attribute: backend.
	ModelUnloads metric.Int64Counter

	// DecodeDuration times one bounded decode loop. Attribute: phase
	// ("stream" or "final").
	DecodeDuration metric.Float64Histogram
	// FinalizeDuration times stop to final transcript.
	FinalizeDuration metric.Float64Histogram
	// PolishDuration times a polishing round trip. Attribute: outcome.
	PolishDuration metric.Float64Histogram

	Partials metric.Int64Counter
	Finals   metric.Int64Counter
	// Errors counts session errors. Attribute: kind.
	Errors metric.Int64Counter

	PrebufferDroppedBytes metric.Int64Counter
	FramesRejected        metric.Int64Counter

	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration times requests by method and mux route. For the
	// dictation socket it spans the whole connection.
	HTTPRequestDuration metric.Float64Histogram
}

// Bucket boundaries in seconds. Model loads from slow disks take tens of
// seconds.
var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// instruments creates instruments on one meter and remembers the first
// failure, so NewMetrics reads as a list.
type instruments struct {
	m   metric.Meter
	err error
}

func (b *instruments) latency(name, desc string) metric.Float64Histogram {
	h, err := b.m.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	b.err = errors.Join(b.err, err)
	return h
}

func (b *instruments) counter(name, desc string, opts ...metric.Int64CounterOption) metric.Int64Counter {
	c, err := b.m.Int64Counter(name, append([]metric.Int64CounterOption{metric.WithDescription(desc)}, opts...)...)
	b.err = errors.Join(b.err, err)
	return c
}

// NewMetrics creates the instruments on a meter of mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	b := &instruments{m: mp.Meter(meterName)}
	met := &Metrics{
		ModelLoadDuration: b.latency("voxkey.model.load.duration", "Latency of decoder engine construction."),
		ModelUnloads:      b.counter("voxkey.model.unloads", "Total decoder engines released."),
		DecodeDuration:    b.latency("voxkey.decode.duration", "Latency of one bounded decode loop."),
		FinalizeDuration:  b.latency("voxkey.session.finalize.duration", "Latency from stop to final transcript."),
		PolishDuration:    b.latency("voxkey.polish.duration", "Latency of transcript polishing by outcome."),
		Partials:          b.counter("voxkey.partials", "Total partial transcripts emitted."),
		Finals:            b.counter("voxkey.finals", "Total final transcripts emitted."),
		Errors:            b.counter("voxkey.errors", "Total session errors by kind."),
		PrebufferDroppedBytes: b.counter("voxkey.prebuffer.dropped_bytes",
			"Audio bytes evicted from full prebuffers.", metric.WithUnit("By")),
		FramesRejected: b.counter("voxkey.frames.rejected", "Audio frames rejected for an unsupported format."),
	}

	var err error
	met.ActiveSessions, err = b.m.Int64UpDownCounter("voxkey.sessions.active",
		metric.WithDescription("Number of live recognition sessions."))
	b.err = errors.Join(b.err, err)
	met.HTTPRequestDuration, err = b.m.Float64Histogram("voxkey.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"))
	b.err = errors.Join(b.err, err)

	if b.err != nil {
		return nil, b.err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide [Metrics] bound to
// otel.GetMeterProvider. It panics if the instruments cannot be created.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		if defaultMetrics, err = NewMetrics(otel.GetMeterProvider()); err != nil {
			panic("observe: default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is shorthand for attribute.String.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordModelLoad records a load attempt for backend.
func (m *Metrics) RecordModelLoad(ctx context.Context, backend string, took time.Duration, err error) {
	m.ModelLoadDuration.Record(ctx, took.Seconds(),
		metric.WithAttributes(Attr("backend", backend), Attr("status", status(err))))
}

// RecordModelUnload records an engine release for backend.
func (m *Metrics) RecordModelUnload(ctx context.Context, backend string) {
	m.ModelUnloads.Add(ctx, 1, metric.WithAttributes(Attr("backend", backend)))
}

// RecordDecode records one decode loop in phase ("stream" or "final").
func (m *Metrics) RecordDecode(ctx context.Context, phase string, took time.Duration) {
	m.DecodeDuration.Record(ctx, took.Seconds(), metric.WithAttributes(Attr("phase", phase)))
}

// RecordPolish records one polishing attempt. outcome is "ok" or the reason
// the reply was discarded.
func (m *Metrics) RecordPolish(ctx context.Context, outcome string, took time.Duration) {
	m.PolishDuration.Record(ctx, took.Seconds(), metric.WithAttributes(Attr("outcome", outcome)))
}

// RecordError increments the error counter for kind.
func (m *Metrics) RecordError(ctx context.Context, kind string) {
	m.Errors.Add(ctx, 1, metric.WithAttributes(Attr("kind", kind)))
}
