// Package telemetry turns server and schema events into OpenTelemetry spans.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	eventbus "github.com/hanpama/structgraph/internal/eventbus"
	events "github.com/hanpama/structgraph/internal/events"
	reqid "github.com/hanpama/structgraph/internal/reqid"
)

// TracerName is the instrumentation name of every span created here.
const TracerName = "github.com/hanpama/structgraph"

// Setup exports spans over OTLP/gRPC to endpoint and subscribes to the
// global event bus. An empty endpoint disables tracing and returns a no-op
// shutdown.
func Setup(ctx context.Context, endpoint, service string) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	detach := Attach(tp.Tracer(TracerName))
	return func(ctx context.Context) error {
		detach()
		return tp.Shutdown(ctx)
	}, nil
}

// Attach subscribes tracer to the global event bus until detach is called.
func Attach(tracer trace.Tracer) (detach func()) {
	s := &subscriber{tracer: tracer}
	return s.register()
}

// Spans in flight are keyed by request value. Request ids come from clients
// and are not unique.
type subscriber struct {
	tracer    trace.Tracer
	httpSpans sync.Map // *http.Request -> trace.Span
	gqlSpans  sync.Map // operation -> trace.Span
}

type operation struct {
	request *http.Request
	index   int
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(s.httpStart),
		eventbus.Subscribe(s.httpFinish),
		eventbus.Subscribe(s.graphqlStart),
		eventbus.Subscribe(s.graphqlFinish),
		eventbus.Subscribe(s.schemaBuilt),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (s *subscriber) httpStart(ctx context.Context, e events.HTTPStart) {
	rid, _ := reqid.FromContext(ctx)
	_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		semconv.HTTPMethodKey.String(e.Request.Method),
		attribute.String("http.target", e.Request.URL.Path),
		attribute.String("request.id", rid),
	)
	s.httpSpans.Store(e.Request, span)
}

func (s *subscriber) httpFinish(_ context.Context, e events.HTTPFinish) {
	v, ok := s.httpSpans.LoadAndDelete(e.Request)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(semconv.HTTPStatusCodeKey.Int(e.Status))
	if e.Status >= 500 {
		span.SetStatus(codes.Error, "")
	}
	span.End()
}

func (s *subscriber) graphqlStart(ctx context.Context, e events.GraphQLStart) {
	parent := ctx
	if v, ok := s.httpSpans.Load(e.Request); ok {
		parent = trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	_, span := s.tracer.Start(parent, "graphql.operation")
	span.SetAttributes(
		attribute.String("graphql.operation.name", e.OperationName),
		attribute.String("graphql.operation.type", e.OperationType),
	)
	if e.BatchIndex >= 0 {
		span.SetAttributes(attribute.Int("graphql.batch.index", e.BatchIndex))
	}
	s.gqlSpans.Store(operation{e.Request, e.BatchIndex}, span)
}

func (s *subscriber) graphqlFinish(_ context.Context, e events.GraphQLFinish) {
	v, ok := s.gqlSpans.LoadAndDelete(operation{e.Request, e.BatchIndex})
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attribute.Int("graphql.error_count", len(e.Errors)))
	if len(e.Errors) > 0 {
		span.SetStatus(codes.Error, e.Errors[0].Error())
	}
	span.End()
}

// schemaBuilt records an assembly as a span covering its duration.
func (s *subscriber) schemaBuilt(ctx context.Context, e events.SchemaBuilt) {
	end := time.Now()
	_, span := s.tracer.Start(ctx, "schema.assemble", trace.WithTimestamp(end.Add(-e.Duration)))
	span.SetAttributes(
		attribute.Int("schema.types", e.Types),
		attribute.Int("schema.directives", e.Directives),
		attribute.Int("schema.generated_inputs", e.Generated),
	)
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, e.Err.Error())
	}
	span.End(trace.WithTimestamp(end))
}
