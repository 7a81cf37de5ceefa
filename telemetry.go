package zenstore

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/event"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
)

type Telemetry struct {
	ProjectName string
	Endpoint    string
	APIKey      string
	tracer      trace.Tracer
}

type Span struct {
	span trace.Span
}

func NewTelemetry(projectName string, endpoint string, apiKey string) *Telemetry {
	return &Telemetry{ProjectName: projectName, Endpoint: endpoint, APIKey: apiKey}
}

// Setup installs the global tracer provider with an OTLP/HTTP exporter. A
// telemetry value without an API key is inert.
func (t *Telemetry) Setup(ctx context.Context) error {
	if t.APIKey == "" {
		return nil
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(t.Endpoint),
		otlptracehttp.WithHeaders(map[string]string{"api-key": t.APIKey}),
	)
	if err != nil {
		return err
	}

	resources, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(t.ProjectName),
		),
	)
	if err != nil {
		return err
	}

	otel.SetTracerProvider(
		sdktrace.NewTracerProvider(
			sdktrace.WithResource(resources),
			sdktrace.WithBatcher(exporter),
		),
	)

	t.tracer = otel.GetTracerProvider().Tracer(
		t.ProjectName,
		trace.WithInstrumentationVersion(os.Getenv("APPVERSION")),
		trace.WithSchemaURL(semconv.SchemaURL),
	)

	return nil
}

// MongoMonitor returns the command monitor the registry attaches to new
// clients so every store round trip shows up as a span.
func (t *Telemetry) MongoMonitor() *event.CommandMonitor {
	return otelmongo.NewMonitor()
}

func (t *Telemetry) GinMiddleware() gin.HandlerFunc {
	return otelgin.Middleware(t.ProjectName)
}

func (t *Telemetry) StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, *Span) {
	if t.tracer == nil {
		return ctx, &Span{}
	}
	ctx, s := t.tracer.Start(ctx, spanName, opts...)
	return ctx, &Span{span: s}
}

func (s *Span) End() {
	if s.span != nil {
		s.span.End()
	}
}
