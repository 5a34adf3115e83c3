package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// meter is a Metrics value whose data can be read back with snapshot.
type meter struct {
	*Metrics
	reader *sdkmetric.ManualReader
}

func newMeter(t *testing.T) meter {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return meter{Metrics: m, reader: reader}
}

func (m meter) snapshot(t *testing.T) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			out[met.Name] = met.Data
		}
	}
	return out
}

// histogramCounts maps the value of attribute key to the sample count of
// its data point. Points without key are stored under "".
func histogramCounts(t *testing.T, data metricdata.Aggregation, key string) map[string]uint64 {
	t.Helper()
	h, ok := data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("data is %T, not a histogram", data)
	}
	out := make(map[string]uint64)
	for _, dp := range h.DataPoints {
		v, _ := dp.Attributes.Value(Attr(key, "").Key)
		out[v.AsString()] += dp.Count
	}
	return out
}

func sumValues(t *testing.T, data metricdata.Aggregation, key string) map[string]int64 {
	t.Helper()
	s, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data is %T, not a sum", data)
	}
	out := make(map[string]int64)
	for _, dp := range s.DataPoints {
		v, _ := dp.Attributes.Value(Attr(key, "").Key)
		out[v.AsString()] += dp.Value
	}
	return out
}

func TestMetrics_SessionLifecycle(t *testing.T) {
	m := newMeter(t)
	ctx := context.Background()

	m.ActiveSessions.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, 1)
	m.Partials.Add(ctx, 4)
	m.RecordDecode(ctx, "stream", 20*time.Millisecond)
	m.RecordDecode(ctx, "stream", 30*time.Millisecond)
	m.RecordDecode(ctx, "final", 120*time.Millisecond)
	m.FinalizeDuration.Record(ctx, 0.3)
	m.Finals.Add(ctx, 1)
	m.ActiveSessions.Add(ctx, -1)
	m.RecordError(ctx, "audio_device")
	m.ActiveSessions.Add(ctx, -1)
	m.PrebufferDroppedBytes.Add(ctx, 118784)
	m.FramesRejected.Add(ctx, 2)

	got := m.snapshot(t)
	if c := histogramCounts(t, got["voxkey.decode.duration"], "phase"); c["stream"] != 2 || c["final"] != 1 {
		t.Errorf("decode counts = %v", c)
	}
	if c := histogramCounts(t, got["voxkey.session.finalize.duration"], ""); c[""] != 1 {
		t.Errorf("finalize counts = %v", c)
	}
	counters := []struct {
		name string
		want int64
	}{
		{"voxkey.sessions.active", 0},
		{"voxkey.partials", 4},
		{"voxkey.finals", 1},
		{"voxkey.prebuffer.dropped_bytes", 118784},
		{"voxkey.frames.rejected", 2},
	}
	for _, c := range counters {
		if v := sumValues(t, got[c.name], "")[""]; v != c.want {
			t.Errorf("%s = %d, want %d", c.name, v, c.want)
		}
	}
	if v := sumValues(t, got["voxkey.errors"], "kind"); v["audio_device"] != 1 {
		t.Errorf("errors = %v", v)
	}
}

func TestMetrics_ModelLoadAndUnload(t *testing.T) {
	m := newMeter(t)
	ctx := context.Background()

	m.RecordModelLoad(ctx, "sensevoice", 2*time.Second, nil)
	m.RecordModelLoad(ctx, "sensevoice", time.Second, errors.New("missing tokens.txt"))
	m.RecordModelLoad(ctx, "whisper", 4*time.Second, nil)
	m.RecordModelUnload(ctx, "sensevoice")

	got := m.snapshot(t)
	if c := histogramCounts(t, got["voxkey.model.load.duration"], "status"); c["ok"] != 2 || c["error"] != 1 {
		t.Errorf("load counts by status = %v", c)
	}
	if c := histogramCounts(t, got["voxkey.model.load.duration"], "backend"); c["whisper"] != 1 {
		t.Errorf("load counts by backend = %v", c)
	}
	if v := sumValues(t, got["voxkey.model.unloads"], "backend"); v["sensevoice"] != 1 {
		t.Errorf("unloads = %v", v)
	}
}

func TestMetrics_Polish(t *testing.T) {
	m := newMeter(t)
	ctx := context.Background()

	for _, o := range []string{"ok", "ok", "drift", "timeout"} {
		m.RecordPolish(ctx, o, 400*time.Millisecond)
	}
	c := histogramCounts(t, m.snapshot(t)["voxkey.polish.duration"], "outcome")
	if c["ok"] != 2 || c["drift"] != 1 || c["timeout"] != 1 {
		t.Errorf("polish counts = %v", c)
	}
}

func TestDefaultMetrics_Singleton(t *testing.T) {
	if DefaultMetrics() != DefaultMetrics() {
		t.Error("DefaultMetrics returned different instances")
	}
}
