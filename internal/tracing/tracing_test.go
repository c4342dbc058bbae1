package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(rec))

	prev := globalTracer
	globalTracer = &Tracer{tracer: tp.Tracer(ServiceName), provider: tp}
	t.Cleanup(func() { globalTracer = prev })
	return rec
}

func TestEndSpan(t *testing.T) {
	rec := useRecorder(t)

	_, ok := StartSpan(context.Background(), "service.Search", attribute.String("search.trip_type", "oneway"))
	EndSpan(ok, nil)

	_, failed := StartSpan(context.Background(), "service.priceLeg")
	EndSpan(failed, errors.New("provider down"))

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("Expected 2 ended spans, got %d", len(spans))
	}

	if spans[0].Name() != "service.Search" || spans[0].Status().Code == codes.Error {
		t.Errorf("Unexpected first span: %s %v", spans[0].Name(), spans[0].Status())
	}
	if len(spans[0].Attributes()) != 1 {
		t.Errorf("Expected start attributes on span, got %v", spans[0].Attributes())
	}

	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "provider down" {
		t.Errorf("Expected error status, got %v", spans[1].Status())
	}
	if len(spans[1].Events()) == 0 {
		t.Error("Expected the error to be recorded as an event")
	}
}

func TestInitTracing_Disabled(t *testing.T) {
	tracer, err := InitTracing(Config{Enabled: false})
	if err != nil {
		t.Fatalf("InitTracing failed: %v", err)
	}
	if GetTracer() != tracer {
		t.Error("Expected disabled tracer to become the global tracer")
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown of a no-op tracer failed: %v", err)
	}
}
