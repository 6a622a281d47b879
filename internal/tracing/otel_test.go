package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInit_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init("selfheal-test", &buf)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "ingest")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}
	if !strings.Contains(buf.String(), `"Name":"ingest"`) {
		t.Errorf("exported output missing span name: %s", buf.String())
	}
}
