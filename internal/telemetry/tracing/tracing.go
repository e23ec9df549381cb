package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// GlobalTracer is a no-op unless an SDK/exporter is configured by the
// environment (e.g. via OTEL_* env vars and an agent).
var GlobalTracer trace.Tracer = otel.Tracer("planfit-backend")
