package observe

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumFor returns the value of the int64 sum data point whose attribute key
// equals value, or -1 when absent.
func sumFor(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if key == "" {
			return dp.Value
		}
		for _, kv := range dp.Attributes.ToSlice() {
			if string(kv.Key) == key && kv.Value.AsString() == value {
				return dp.Value
			}
		}
	}
	return -1
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestRecordChange(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordChange(ctx, "pitch")
	m.RecordChange(ctx, "pitch")
	m.RecordChange(ctx, "voice")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "spiel.utterance.changes", "property", "pitch"); got != 2 {
		t.Errorf("pitch changes = %d, want 2", got)
	}
	if got := sumFor(t, rm, "spiel.utterance.changes", "property", "voice"); got != 1 {
		t.Errorf("voice changes = %d, want 1", got)
	}
}

func TestRecordRejectionAndClamp(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRejection(ctx, "rate", "out of range")
	m.RecordClamp(ctx, "volume")
	m.RecordClamp(ctx, "volume")

	rm := collect(t, reader)
	if got := sumFor(t, rm, "spiel.utterance.rejections", "reason", "out of range"); got != 1 {
		t.Errorf("rejections = %d, want 1", got)
	}
	if got := sumFor(t, rm, "spiel.utterance.clamps", "property", "volume"); got != 2 {
		t.Errorf("clamps = %d, want 2", got)
	}
}

func TestLiveUtterancesAndVoiceRefs(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.UtteranceOpened(ctx)
	m.UtteranceOpened(ctx)
	m.UtteranceClosed(ctx)
	m.RecordVoiceRetain(ctx)
	m.RecordVoiceRetain(ctx)
	m.RecordVoiceRelease(ctx)

	rm := collect(t, reader)

	tests := []struct {
		name string
		want int64
	}{
		{"spiel.utterance.live", 1},
		{"spiel.voice.retains", 2},
		{"spiel.voice.releases", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := sumFor(t, rm, tc.name, "", ""); got != tc.want {
				t.Errorf("value = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordChange(ctx, "text")
	m.RecordRejection(ctx, "text", "invalid utf-8")
	m.RecordClamp(ctx, "pitch")
	m.UtteranceOpened(ctx)
	m.UtteranceClosed(ctx)
	m.RecordVoiceRetain(ctx)
	m.RecordVoiceRelease(ctx)
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
