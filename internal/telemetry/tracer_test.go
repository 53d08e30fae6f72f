package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitTracer_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	shutdown, err := InitTracer("deployhook-test", &buf, logger)
	if err != nil {
		t.Fatalf("InitTracer() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "deploy.pipeline")
	span.End()

	// Shutdown flushes the batcher.
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "deploy.pipeline") {
		t.Errorf("expected span name in exporter output, got: %s", out)
	}
	if !strings.Contains(out, "deployhook-test") {
		t.Errorf("expected service name in exporter output, got: %s", out)
	}
}
