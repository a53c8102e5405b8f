// Package observe provides observability primitives for spiel:
// OpenTelemetry metrics, tracing helpers, structured logging, and HTTP
// middleware for the metrics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider]. Tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all spiel metrics.
const meterName = "github.com/MrWong99/spiel"

// Metrics holds the OpenTelemetry instruments used by utterances and voices.
// All methods are nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	// UtteranceChanges counts change notifications. Attribute: property.
	UtteranceChanges metric.Int64Counter

	// UtteranceRejections counts mutator calls refused with an invalid
	// argument. Attributes: property, reason.
	UtteranceRejections metric.Int64Counter

	// UtteranceClamps counts prosody values clamped into their domain.
	// Attribute: property.
	UtteranceClamps metric.Int64Counter

	// LiveUtterances tracks constructed and not yet closed utterances.
	LiveUtterances metric.Int64UpDownCounter

	// VoiceRetains counts strong voice references taken by utterances.
	VoiceRetains metric.Int64Counter

	// VoiceReleases counts voice references released by utterances.
	VoiceReleases metric.Int64Counter

	// HTTPRequestDuration tracks admin endpoint request time. Attributes:
	// route, status.
	HTTPRequestDuration metric.Float64Histogram
}

var httpBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.UtteranceChanges, err = m.Int64Counter("spiel.utterance.changes",
		metric.WithDescription("Utterance change notifications by property."),
	); err != nil {
		return nil, err
	}
	if met.UtteranceRejections, err = m.Int64Counter("spiel.utterance.rejections",
		metric.WithDescription("Utterance mutations rejected as invalid, by property and reason."),
	); err != nil {
		return nil, err
	}
	if met.UtteranceClamps, err = m.Int64Counter("spiel.utterance.clamps",
		metric.WithDescription("Prosody values clamped into their domain, by property."),
	); err != nil {
		return nil, err
	}
	if met.LiveUtterances, err = m.Int64UpDownCounter("spiel.utterance.live",
		metric.WithDescription("Number of utterances constructed and not yet closed."),
	); err != nil {
		return nil, err
	}
	if met.VoiceRetains, err = m.Int64Counter("spiel.voice.retains",
		metric.WithDescription("Voice references retained by utterances."),
	); err != nil {
		return nil, err
	}
	if met.VoiceReleases, err = m.Int64Counter("spiel.voice.releases",
		metric.WithDescription("Voice references released by utterances."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("spiel.http.request.duration",
		metric.WithDescription("Latency of requests to the metrics and health endpoints."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(httpBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns a lazily initialised [Metrics] backed by the
// global OTel MeterProvider. Panics if instrument creation fails, which only
// happens on programmer error.
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordChange counts one change notification for property.
func (m *Metrics) RecordChange(ctx context.Context, property string) {
	if m == nil {
		return
	}
	m.UtteranceChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("property", property)))
}

// RecordRejection counts one rejected mutation.
func (m *Metrics) RecordRejection(ctx context.Context, property, reason string) {
	if m == nil {
		return
	}
	m.UtteranceRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("property", property),
		attribute.String("reason", reason),
	))
}

// RecordClamp counts one clamped prosody value.
func (m *Metrics) RecordClamp(ctx context.Context, property string) {
	if m == nil {
		return
	}
	m.UtteranceClamps.Add(ctx, 1, metric.WithAttributes(attribute.String("property", property)))
}

// UtteranceOpened increments the live utterance gauge.
func (m *Metrics) UtteranceOpened(ctx context.Context) {
	if m == nil {
		return
	}
	m.LiveUtterances.Add(ctx, 1)
}

// UtteranceClosed decrements the live utterance gauge.
func (m *Metrics) UtteranceClosed(ctx context.Context) {
	if m == nil {
		return
	}
	m.LiveUtterances.Add(ctx, -1)
}

// RecordVoiceRetain counts one voice reference taken.
func (m *Metrics) RecordVoiceRetain(ctx context.Context) {
	if m == nil {
		return
	}
	m.VoiceRetains.Add(ctx, 1)
}

// RecordVoiceRelease counts one voice reference released.
func (m *Metrics) RecordVoiceRelease(ctx context.Context) {
	if m == nil {
		return
	}
	m.VoiceReleases.Add(ctx, 1)
}
