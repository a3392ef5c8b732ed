package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// The frontend sends a traceparent header with every chat request so one
// trace covers the browser round trip and the server-side AI call.
func TestChatRouteTracePropagation(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	r := mux.NewRouter()
	r.Use(otelmux.Middleware("companion-api"))
	r.HandleFunc("/api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("POST")

	const upstreamTraceID = "4bf92f3577b34da6a3ce929d0e0e4736"

	tests := []struct {
		name        string
		traceParent string
		wantTraceID string
	}{
		{
			name: "no upstream trace starts a fresh one",
		},
		{
			name:        "upstream trace is continued",
			traceParent: "00-" + upstreamTraceID + "-00f067aa0ba902b7-01",
			wantTraceID: upstreamTraceID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exporter.Reset()

			req := httptest.NewRequest("POST", "/api/v1/chat", strings.NewReader(`{}`))
			if tt.traceParent != "" {
				req.Header.Set("traceparent", tt.traceParent)
			}

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status OK, got %d", rr.Code)
			}
			if err := tp.ForceFlush(context.Background()); err != nil {
				t.Fatalf("failed to flush tracer provider: %v", err)
			}

			spans := exporter.GetSpans()
			if len(spans) == 0 {
				t.Fatal("expected at least one span")
			}
			span := spans[0]
			if !span.SpanContext.TraceID().IsValid() {
				t.Error("expected valid trace ID in span")
			}
			if tt.wantTraceID != "" && span.SpanContext.TraceID().String() != tt.wantTraceID {
				t.Errorf("expected trace ID %s, got %s", tt.wantTraceID, span.SpanContext.TraceID().String())
			}
		})
	}
}
