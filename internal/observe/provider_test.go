package observe

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

func TestInitProvider_ExportsToRegistry(t *testing.T) {
	origMP, origTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(origMP)
		otel.SetTracerProvider(origTP)
	})

	reg := prometheus.NewRegistry()
	shutdown, err := InitProvider(context.Background(), ProviderConfig{
		ServiceName:    "voxkey-test",
		ServiceVersion: "v0.0.0",
		Registerer:     reg,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordDecode(context.Background(), "final", 30*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "voxkey_decode_duration") {
			found = true
		}
	}
	if !found {
		t.Errorf("decode histogram not exported; families: %d", len(families))
	}

	_, span := StartSpan(context.Background(), "sampled")
	defer span.End()
	if !span.SpanContext().IsSampled() {
		t.Error("span from the installed provider is not sampled")
	}
}

func TestInitProvider_RejectsBadRatio(t *testing.T) {
	if _, err := InitProvider(context.Background(), ProviderConfig{SampleRatio: 1.5}); err == nil {
		t.Error("InitProvider accepted sample ratio 1.5")
	}
}
