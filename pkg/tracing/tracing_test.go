package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// enabledConfig uses a non-routable endpoint so the exporter never connects;
// batched export is async, so the SDK still initializes.
func enabledConfig(rate float64) Config {
	return Config{
		ServiceName:    "checkout",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "127.0.0.1:0",
		SampleRate:     rate,
		Enabled:        true,
	}
}

func TestInitTracer_Disabled(t *testing.T) {
	cfg := DefaultConfig("checkout")
	cfg.Enabled = false

	shutdown, err := InitTracer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("InitTracer(disabled) returned error: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown function should not be nil even when disabled")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown(disabled) returned error: %v", err)
	}
}

func TestInitTracer_Enabled_SetsGlobalProvider(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), enabledConfig(1.0))
	if err != nil {
		t.Fatalf("InitTracer(enabled) returned error: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown function should not be nil")
	}

	tp := otel.GetTracerProvider()
	if _, ok := tp.(*sdktrace.TracerProvider); !ok {
		t.Errorf("expected *sdktrace.TracerProvider, got %T", tp)
	}

	if err := shutdown(context.Background()); err != nil {
		t.Logf("shutdown returned (expected with unreachable endpoint): %v", err)
	}
}

func TestInitTracer_SampleRates(t *testing.T) {
	for _, rate := range []float64{0.0, 0.5, 1.0} {
		shutdown, err := InitTracer(context.Background(), enabledConfig(rate))
		if err != nil {
			t.Fatalf("InitTracer(sample=%v) returned error: %v", rate, err)
		}
		_ = shutdown(context.Background())
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("checkout")

	if cfg.ServiceName != "checkout" {
		t.Errorf("ServiceName = %q, want %q", cfg.ServiceName, "checkout")
	}
	if cfg.Enabled {
		t.Error("default config should have Enabled = false")
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("SampleRate = %f, want 1.0", cfg.SampleRate)
	}
	if cfg.OTLPEndpoint != "localhost:4318" {
		t.Errorf("OTLPEndpoint = %q, want %q", cfg.OTLPEndpoint, "localhost:4318")
	}
}

func TestTracer(t *testing.T) {
	tracer := Tracer("checkout")
	if tracer == nil {
		t.Fatal("Tracer should not return nil")
	}

	_, span := tracer.Start(context.Background(), "test-op")
	defer span.End()

	if !span.SpanContext().IsValid() || !span.IsRecording() {
		// Without an SDK provider the span is a no-op; starting it must not
		// panic either way.
		t.Log("span is no-op (no SDK provider set)")
	}
}
