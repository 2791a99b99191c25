// Package observe holds Voxnote's observability wiring: OpenTelemetry metric
// instruments, tracing helpers, and the HTTP middleware that ties request
// logs, spans, and the duration histogram together.
//
// Metrics flow through the OTel API and reach Prometheus via the exporter
// bridge installed by [InitProvider]. Application code shares the lazy
// [DefaultMetrics] instance; tests build their own with [NewMetrics] and a
// manual reader so nothing leaks between test cases.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/voxnote/voxnote"

// latencyBuckets spans the spread of pipeline latencies: local text
// transforms finish in well under a millisecond while an LLM round trip can
// run into tens of seconds.
var latencyBuckets = []float64{
	0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// Metrics bundles every instrument the application records. All instruments
// are concurrency-safe.
type Metrics struct {
	// Per-stage latency histograms, in seconds.
	CleanupDuration metric.Float64Histogram
	FormatDuration  metric.Float64Histogram
	// EnhanceDuration covers the whole enhancement stage; LLMDuration is
	// just the inference round trip inside it.
	EnhanceDuration metric.Float64Histogram
	LLMDuration     metric.Float64Histogram

	// Transcripts counts processed transcripts by folder and STT service.
	Transcripts metric.Int64Counter

	// Enhancements counts attempts by status ("ok" or "fallback") and
	// fallback reason.
	Enhancements metric.Int64Counter

	// PresetMutations counts preset create/update/delete/select operations.
	PresetMutations metric.Int64Counter

	// ProviderErrors counts LLM backend failures by provider and kind.
	ProviderErrors metric.Int64Counter

	// EnhancementsInFlight is bounded at 1 by the enhancement service's busy
	// flag; a sustained 1 means callers are being rejected.
	EnhancementsInFlight metric.Int64UpDownCounter

	// HTTPRequestDuration tracks request latency by method and path.
	HTTPRequestDuration metric.Float64Histogram
}

// instruments latches the first creation error so NewMetrics can declare the
// whole set without an error check per instrument.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) latency(name, desc string) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil && in.err == nil {
		in.err = err
	}
	return h
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil && in.err == nil {
		in.err = err
	}
	return c
}

func (in *instruments) upDown(name, desc string) metric.Int64UpDownCounter {
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc))
	if err != nil && in.err == nil {
		in.err = err
	}
	return c
}

// NewMetrics creates the full instrument set on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	in := &instruments{meter: mp.Meter(meterName)}
	m := &Metrics{
		CleanupDuration:      in.latency("voxnote.cleanup.duration", "Latency of transcript cleanup."),
		FormatDuration:       in.latency("voxnote.format.duration", "Latency of paragraph formatting."),
		EnhanceDuration:      in.latency("voxnote.enhance.duration", "End-to-end enhancement latency including the LLM call."),
		LLMDuration:          in.latency("voxnote.llm.duration", "Latency of LLM inference."),
		Transcripts:          in.counter("voxnote.transcripts", "Total transcripts processed by folder and STT service."),
		Enhancements:         in.counter("voxnote.enhancements", "Total enhancement attempts by status and fallback reason."),
		PresetMutations:      in.counter("voxnote.preset.mutations", "Total preset mutations by operation."),
		ProviderErrors:       in.counter("voxnote.provider.errors", "Total LLM backend failures by provider and kind."),
		EnhancementsInFlight: in.upDown("voxnote.enhancements_in_flight", "Number of enhancement requests currently being processed."),
	}
	var err error
	m.HTTPRequestDuration, err = in.meter.Float64Histogram("voxnote.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	)
	if err != nil && in.err == nil {
		in.err = err
	}
	if in.err != nil {
		return nil, in.err
	}
	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the shared package-level instance, built lazily on
// the global meter provider. Panics if instrument creation fails, which the
// global provider never does.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordTranscript counts one processed transcript.
func (m *Metrics) RecordTranscript(ctx context.Context, folder, service string) {
	m.Transcripts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("folder", folder),
		attribute.String("service", service),
	))
}

// RecordEnhancement counts one enhancement attempt; reason is empty on
// success.
func (m *Metrics) RecordEnhancement(ctx context.Context, success bool, reason string) {
	status := "ok"
	if !success {
		status = "fallback"
	}
	m.Enhancements.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		attribute.String("reason", reason),
	))
}

// RecordPresetMutation counts one preset mutation.
func (m *Metrics) RecordPresetMutation(ctx context.Context, op string) {
	m.PresetMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordProviderError counts one LLM backend failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("kind", kind),
	))
}
