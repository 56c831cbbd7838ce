// Package observe provides observability primitives for the vaani call
// bridge: OpenTelemetry metric instruments, a Prometheus exporter bridge,
// and HTTP middleware tying request handling into both.
//
// Metrics are recorded through the OTel Metrics API and scraped via the
// standard /metrics endpoint once [InitProvider] has installed the
// Prometheus bridge. Tests should use [NewMetrics] with a private
// MeterProvider to avoid cross-test pollution.
package observe

import (
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all vaani metrics.
const meterName = "github.com/vaani-ai/vaani"

// Metrics holds the metric instruments for the call bridge. The underlying
// OTel types handle their own synchronisation, so a single Metrics value is
// shared across all handlers.
type Metrics struct {
	// --- Vendor stage latency histograms ---

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks chat completion latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// --- Call counters ---

	// CallsStarted counts inbound/outbound calls. Use with attribute:
	//   attribute.String("direction", "inbound"|"outbound")
	CallsStarted metric.Int64Counter

	// CallsEnded counts finished calls. Use with attributes:
	//   attribute.String("language", ...), attribute.String("outcome", ...)
	CallsEnded metric.Int64Counter

	// STTFailures counts failed transcription attempts by language.
	STTFailures metric.Int64Counter

	// KnowledgeSearches counts retrieval lookups. Use with attribute:
	//   attribute.Bool("hit", ...): whether any entry cleared the threshold.
	KnowledgeSearches metric.Int64Counter

	// --- Gauges ---

	// ActiveCalls tracks the number of live call sessions.
	ActiveCalls metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// interactive voice latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] using the given
// MeterProvider. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.STTDuration, err = m.Float64Histogram("vaani.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("vaani.llm.duration",
		metric.WithDescription("Latency of chat completion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("vaani.tts.duration",
		metric.WithDescription("Latency of speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.CallsStarted, err = m.Int64Counter("vaani.calls.started",
		metric.WithDescription("Total calls answered or placed, by direction."),
	); err != nil {
		return nil, err
	}
	if met.CallsEnded, err = m.Int64Counter("vaani.calls.ended",
		metric.WithDescription("Total calls finished, by language and outcome."),
	); err != nil {
		return nil, err
	}
	if met.STTFailures, err = m.Int64Counter("vaani.stt.failures",
		metric.WithDescription("Total failed transcription attempts."),
	); err != nil {
		return nil, err
	}
	if met.KnowledgeSearches, err = m.Int64Counter("vaani.knowledge.searches",
		metric.WithDescription("Total knowledge base lookups, by hit/miss."),
	); err != nil {
		return nil, err
	}

	if met.ActiveCalls, err = m.Int64UpDownCounter("vaani.active_calls",
		metric.WithDescription("Number of live call sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("vaani.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], creating it on first
// call from the global MeterProvider. Instrument creation against the
// global provider cannot realistically fail; if it somehow does, a no-op
// Metrics is returned and the failure logged.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			slog.Error("observe: create default metrics", "err", err)
			defaultMetrics = &Metrics{}
		}
	})
	return defaultMetrics
}
