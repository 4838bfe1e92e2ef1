package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	return out
}

func spanContext(t *testing.T, traceHex, spanHex string) trace.SpanContext {
	t.Helper()
	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		t.Fatalf("trace id: %v", err)
	}
	spanID, err := trace.SpanIDFromHex(spanHex)
	if err != nil {
		t.Fatalf("span id: %v", err)
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
}

func TestNewWithWriter_ServiceFieldAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("checkout", "warn", &buf)

	l.Info("filtered out")
	if buf.Len() != 0 {
		t.Fatalf("info line should be filtered at warn level, got %q", buf.String())
	}

	l.Warn("kept")
	out := logLine(t, &buf)
	if got := out["service"]; got != "checkout" {
		t.Errorf("service = %v, want %q", got, "checkout")
	}
}

func TestNewWithWriter_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("checkout", "verbose", &buf)

	l.Info("visible")
	if buf.Len() == 0 {
		t.Error("info line should be emitted when level string is unknown")
	}
}

func TestWithContext_CorrelationID(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("test", "info", &buf)

	ctx := WithCorrelationID(context.Background(), "req-123")
	WithContext(ctx, l).Info("hello")

	out := logLine(t, &buf)
	if got := out["correlation_id"]; got != "req-123" {
		t.Errorf("correlation_id = %v, want %q", got, "req-123")
	}
}

func TestWithContext_OwnerID(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("test", "info", &buf)

	ctx := WithOwnerID(context.Background(), "device-789")
	WithContext(ctx, l).Info("with owner")

	out := logLine(t, &buf)
	if got := out["owner_id"]; got != "device-789" {
		t.Errorf("owner_id = %v, want %q", got, "device-789")
	}
}

func TestWithContext_EmptyContextOmitsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("test", "info", &buf)

	WithContext(context.Background(), l).Info("bare")

	out := logLine(t, &buf)
	for _, field := range []string{"correlation_id", "owner_id", "trace_id", "span_id"} {
		if _, ok := out[field]; ok {
			t.Errorf("%s should not be present on an empty context", field)
		}
	}
}

func TestWithContext_TraceFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("test", "info", &buf)

	sc := spanContext(t, "4bf92f3577b34da6a3ce929d0e0e4736", "00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	WithContext(ctx, l).Info("with span")

	out := logLine(t, &buf)
	if got := out["trace_id"]; got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("trace_id = %v, want %q", got, "4bf92f3577b34da6a3ce929d0e0e4736")
	}
	if got := out["span_id"]; got != "00f067aa0ba902b7" {
		t.Errorf("span_id = %v, want %q", got, "00f067aa0ba902b7")
	}
}

func TestWithContext_AllFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("test", "info", &buf)

	sc := spanContext(t, "abcdef1234567890abcdef1234567890", "1234567890abcdef")
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithCorrelationID(ctx, "corr-all")
	ctx = WithOwnerID(ctx, "user-all")

	WithContext(ctx, l).Info("all fields")

	out := logLine(t, &buf)
	want := map[string]string{
		"correlation_id": "corr-all",
		"owner_id":       "user-all",
		"trace_id":       "abcdef1234567890abcdef1234567890",
		"span_id":        "1234567890abcdef",
	}
	for field, v := range want {
		if got := out[field]; got != v {
			t.Errorf("%s = %v, want %q", field, got, v)
		}
	}
}

func TestFromContext_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("test", "info", &buf)

	ctx := NewContext(context.Background(), l)
	if got := FromContext(ctx); got != l {
		t.Error("FromContext should return the logger stored via NewContext")
	}
}

func TestFromContext_WithoutLogger(t *testing.T) {
	if got := FromContext(context.Background()); got == nil {
		t.Error("FromContext should return a non-nil fallback logger")
	}
}
