package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/cms-backend/internal/platform/logger"
)

const instrumentationPrefix = "github.com/yungbote/cms-backend/"

// Span attributes shared by the structural services.
const (
	AttrBlueprintID     = attribute.Key("cms.blueprint.id")
	AttrCascadeVisited  = attribute.Key("cms.cascade.visited")
	AttrCascadeAffected = attribute.Key("cms.cascade.affected")
	AttrTreeVariant     = attribute.Key("cms.route_tree.variant")
	AttrTreeNodes       = attribute.Key("cms.route_tree.nodes")
	AttrWriteStatus     = attribute.Key("cms.aggregate.status")
	AttrWriteAttempts   = attribute.Key("cms.aggregate.attempts")
)

type OtelConfig struct {
	Enabled     bool
	ServiceName string
	Environment string
	Version     string
	// Endpoint is an OTLP/HTTP host:port. Empty means stdout in development
	// and no export elsewhere.
	Endpoint    string
	Headers     map[string]string
	Insecure    bool
	SampleRatio float64
}

var (
	otelOnce     sync.Once
	otelShutdown = func(context.Context) error { return nil }
)

// Tracer returns a named tracer from the global provider. Spans are no-ops
// until InitOTel installs a provider.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentationPrefix + strings.TrimSpace(component))
}

// StartSpan starts a span on the component tracer.
func StartSpan(ctx context.Context, component, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer(component).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err, if any, and ends span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// InitOTel installs the global tracer provider once per process and returns
// its shutdown func. Exporter failures are logged, never fatal.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	otelOnce.Do(func() {
		if !cfg.Enabled {
			return
		}
		tp := newTracerProvider(ctx, log, cfg)
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
		otelShutdown = tp.Shutdown
		log.Info("otel tracing initialized", "service", serviceName(cfg), "endpoint", cfg.Endpoint, "sample_ratio", clampRatio(cfg.SampleRatio))
	})
	return otelShutdown
}

func newTracerProvider(ctx context.Context, log *logger.Logger, cfg OtelConfig) *sdktrace.TracerProvider {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName(cfg)),
		semconv.ServiceVersion(strings.TrimSpace(cfg.Version)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	))
	if err != nil {
		log.Warn("otel resource merge failed (continuing)", "error", err)
		res = resource.Default()
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(cfg.SampleRatio)))),
		sdktrace.WithResource(res),
	}
	exporter, err := traceExporter(ctx, cfg)
	switch {
	case err != nil:
		log.Warn("otel exporter init failed (continuing)", "error", err)
	case exporter != nil:
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}
	return sdktrace.NewTracerProvider(opts...)
}

func traceExporter(ctx context.Context, cfg OtelConfig) (sdktrace.SpanExporter, error) {
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Environment), "development") {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return nil, nil
}

func serviceName(cfg OtelConfig) string {
	if s := strings.TrimSpace(cfg.ServiceName); s != "" {
		return s
	}
	return "cms-backend"
}

func clampRatio(v float64) float64 {
	switch {
	case v <= 0:
		return 0.1
	case v > 1:
		return 1
	default:
		return v
	}
}

// ParseHeaders reads "k1=v1,k2=v2" as used by OTEL_EXPORTER_OTLP_HEADERS.
func ParseHeaders(raw string) map[string]string {
	var headers map[string]string
	for _, part := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(part, "=")
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)
		if !ok || key == "" || val == "" {
			continue
		}
		if headers == nil {
			headers = map[string]string{}
		}
		headers[key] = val
	}
	return headers
}
