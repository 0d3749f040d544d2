// Package observe provides application-wide observability primitives for
// Lumina: OpenTelemetry metrics, tracing helpers, and the Prometheus
// exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance is deliberately absent; tests use [NewMetrics] with a
// custom [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Lumina metrics.
const meterName = "github.com/lumina-live/lumina"

// Metrics holds all OpenTelemetry metric instruments for the session
// pipeline. All fields are safe for concurrent use — the underlying OTel
// types handle their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// InferenceDuration tracks inference call latency. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("op", ...)
	InferenceDuration metric.Float64Histogram

	// SweepDuration tracks recheck sweep latency.
	SweepDuration metric.Float64Histogram

	// --- Counters ---

	// InferenceRequests counts inference calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("op", ...), attribute.String("status", ...)
	InferenceRequests metric.Int64Counter

	// CredentialRotations counts credential cursor advances caused by
	// quota-class failures.
	CredentialRotations metric.Int64Counter

	// QuestionsSubmitted counts accepted question submissions.
	QuestionsSubmitted metric.Int64Counter

	// QuestionTransitions counts lifecycle transitions. Use with attribute:
	//   attribute.String("to", ...)
	QuestionTransitions metric.Int64Counter

	// TranscriptChunks counts appended transcript fragments. Use with
	// attribute: attribute.String("stream", ...)
	TranscriptChunks metric.Int64Counter

	// SweepResolutions counts questions resolved by the recheck sweeper.
	SweepResolutions metric.Int64Counter

	// EventsDropped counts events dropped on full subscriber buffers. Use
	// with attribute: attribute.String("type", ...)
	EventsDropped metric.Int64Counter

	// --- Gauges ---

	// Subscribers tracks the number of active event subscribers.
	Subscribers metric.Int64UpDownCounter

	// InflightQuestions tracks questions currently in classify/extract.
	InflightQuestions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// remote-inference latencies.
var latencyBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.InferenceDuration, err = m.Float64Histogram("lumina.inference.duration",
		metric.WithDescription("Latency of inference service calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SweepDuration, err = m.Float64Histogram("lumina.sweep.duration",
		metric.WithDescription("Latency of recheck sweeper passes."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.InferenceRequests, err = m.Int64Counter("lumina.inference.requests",
		metric.WithDescription("Number of inference service calls."),
	); err != nil {
		return nil, err
	}
	if met.CredentialRotations, err = m.Int64Counter("lumina.inference.credential_rotations",
		metric.WithDescription("Number of credential cursor advances after quota failures."),
	); err != nil {
		return nil, err
	}
	if met.QuestionsSubmitted, err = m.Int64Counter("lumina.questions.submitted",
		metric.WithDescription("Number of accepted question submissions."),
	); err != nil {
		return nil, err
	}
	if met.QuestionTransitions, err = m.Int64Counter("lumina.questions.transitions",
		metric.WithDescription("Number of question lifecycle transitions."),
	); err != nil {
		return nil, err
	}
	if met.TranscriptChunks, err = m.Int64Counter("lumina.transcript.chunks",
		metric.WithDescription("Number of appended transcript fragments."),
	); err != nil {
		return nil, err
	}
	if met.SweepResolutions, err = m.Int64Counter("lumina.sweep.resolutions",
		metric.WithDescription("Number of questions resolved by recheck sweeps."),
	); err != nil {
		return nil, err
	}
	if met.EventsDropped, err = m.Int64Counter("lumina.events.dropped",
		metric.WithDescription("Number of events dropped on full subscriber buffers."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.Subscribers, err = m.Int64UpDownCounter("lumina.events.subscribers",
		metric.WithDescription("Number of active event subscribers."),
	); err != nil {
		return nil, err
	}
	if met.InflightQuestions, err = m.Int64UpDownCounter("lumina.questions.inflight",
		metric.WithDescription("Questions currently in classification or extraction."),
	); err != nil {
		return nil, err
	}

	return met, nil
}
