package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestWithHTTPRoute(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	r := chi.NewRouter()
	r.Use(WithHTTPRoute)
	r.Get("/api/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx, span := tp.Tracer("test").Start(context.Background(), "GET")
	req := httptest.NewRequest(http.MethodGet, "/api/orders/42", nil).WithContext(ctx)
	r.ServeHTTP(httptest.NewRecorder(), req)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes(), semconv.HTTPRoute("/api/orders/{id}"))
}

func TestInitTracerProvider_NoEndpoint(t *testing.T) {
	shutdown, err := InitTracerProvider(context.Background(), "orderflow-test", "test", "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
