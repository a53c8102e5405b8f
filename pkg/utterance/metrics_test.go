package utterance_test

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/spiel/internal/observe"
	"github.com/MrWong99/spiel/pkg/utterance"
	"github.com/MrWong99/spiel/pkg/utterance/mock"
)

func newMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// sums totals every int64 sum by metric name and counts its data points.
func sums(t *testing.T, reader *sdkmetric.ManualReader) (totals, points map[string]int64) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	totals, points = map[string]int64{}, map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[met.Name] += dp.Value
				points[met.Name]++
			}
		}
	}
	return totals, points
}

func TestWithMetrics(t *testing.T) {
	m, reader := newMetrics(t)

	v1, v2 := &mock.Voice{}, &mock.Voice{}
	u, err := utterance.New("x", utterance.WithMetrics(m), utterance.WithPolicy(utterance.PolicyReject))
	if err != nil {
		t.Fatal(err)
	}
	_ = u.SetPitch(0.5)
	_ = u.SetPitch(0.5) // no-op
	_ = u.SetRate(50)   // rejected
	_ = u.SetVoice(v1)
	_ = u.SetVoice(v2)
	_ = u.Close()

	got, _ := sums(t, reader)

	want := map[string]int64{
		"spiel.utterance.changes":    4, // text, pitch, voice, voice
		"spiel.utterance.rejections": 1,
		"spiel.utterance.live":       0,
		"spiel.voice.retains":        2,
		"spiel.voice.releases":       2,
	}
	for name, w := range want {
		if got[name] != w {
			t.Errorf("%s = %d, want %d", name, got[name], w)
		}
	}
}

func TestWithMetrics_FailedFromSpecRecordsOnlyRejection(t *testing.T) {
	m, reader := newMetrics(t)

	u, err := utterance.FromSpec(
		utterance.Spec{Text: ptr("hi"), Rate: ptr(50.0)},
		nil,
		utterance.WithMetrics(m),
		utterance.WithPolicy(utterance.PolicyReject),
	)
	if err == nil {
		u.Close()
		t.Fatal("FromSpec succeeded, want rejection")
	}

	totals, points := sums(t, reader)
	if totals["spiel.utterance.rejections"] != 1 {
		t.Errorf("rejections = %d, want 1", totals["spiel.utterance.rejections"])
	}
	for _, name := range []string{"spiel.utterance.changes", "spiel.utterance.live"} {
		if points[name] != 0 {
			t.Errorf("%s has %d data points, want none", name, points[name])
		}
	}
}
