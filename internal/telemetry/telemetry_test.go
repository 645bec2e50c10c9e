package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	eventbus "github.com/hanpama/structgraph/internal/eventbus"
	events "github.com/hanpama/structgraph/internal/events"
	reqid "github.com/hanpama/structgraph/internal/reqid"
)

func setup(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	eventbus.Use(eventbus.New())
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	detach := Attach(tp.Tracer(TracerName))
	t.Cleanup(func() {
		detach()
		eventbus.Use(nil)
	})
	return sr
}

func attr(span sdktrace.ReadOnlySpan, key string) attribute.Value {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestRequestSpans(t *testing.T) {
	sr := setup(t)

	ctx, _ := reqid.WithID(context.Background(), "r1")
	r := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	eventbus.Publish(ctx, events.GraphQLStart{Request: r, OperationName: "Books", OperationType: "query", BatchIndex: 2})
	eventbus.Publish(ctx, events.GraphQLFinish{Request: r, OperationName: "Books", OperationType: "query", BatchIndex: 2, Errors: []error{errors.New("bad")}})
	eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: http.StatusOK})

	ended := sr.Ended()
	require.Len(t, ended, 2)
	op, req := ended[0], ended[1]
	require.Equal(t, "graphql.operation", op.Name())
	require.Equal(t, "http.request", req.Name())
	require.Equal(t, req.SpanContext().SpanID(), op.Parent().SpanID())
	require.Equal(t, "Books", attr(op, "graphql.operation.name").AsString())
	require.Equal(t, int64(1), attr(op, "graphql.error_count").AsInt64())
	require.Equal(t, int64(2), attr(op, "graphql.batch.index").AsInt64())
	require.Equal(t, codes.Error, op.Status().Code)
	require.Equal(t, int64(200), attr(req, "http.status_code").AsInt64())
	require.Equal(t, "r1", attr(req, "request.id").AsString())
}

func TestRequestsSharingAnID(t *testing.T) {
	sr := setup(t)

	ctx, _ := reqid.WithID(context.Background(), "same")
	first := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	second := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	eventbus.Publish(ctx, events.HTTPStart{Request: first})
	eventbus.Publish(ctx, events.HTTPStart{Request: second})
	eventbus.Publish(ctx, events.GraphQLStart{Request: first, OperationName: "A", BatchIndex: -1})
	eventbus.Publish(ctx, events.GraphQLStart{Request: second, OperationName: "B", BatchIndex: -1})
	eventbus.Publish(ctx, events.GraphQLFinish{Request: second, BatchIndex: -1})
	eventbus.Publish(ctx, events.GraphQLFinish{Request: first, BatchIndex: -1})
	eventbus.Publish(ctx, events.HTTPFinish{Request: first, Status: http.StatusOK})
	eventbus.Publish(ctx, events.HTTPFinish{Request: second, Status: http.StatusBadGateway})

	ended := sr.Ended()
	require.Len(t, ended, 4)
	opB, opA, reqFirst, reqSecond := ended[0], ended[1], ended[2], ended[3]
	require.Equal(t, "B", attr(opB, "graphql.operation.name").AsString())
	require.Equal(t, "A", attr(opA, "graphql.operation.name").AsString())
	require.Equal(t, reqFirst.SpanContext().SpanID(), opA.Parent().SpanID())
	require.Equal(t, reqSecond.SpanContext().SpanID(), opB.Parent().SpanID())
	require.Equal(t, int64(200), attr(reqFirst, "http.status_code").AsInt64())
	require.Equal(t, codes.Error, reqSecond.Status().Code)
}

func TestBatchOperationsAreSeparateSpans(t *testing.T) {
	sr := setup(t)

	r := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	ctx := context.Background()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	for i := 0; i < 2; i++ {
		eventbus.Publish(ctx, events.GraphQLStart{Request: r, BatchIndex: i})
	}
	for i := 1; i >= 0; i-- {
		eventbus.Publish(ctx, events.GraphQLFinish{Request: r, BatchIndex: i})
	}
	eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: http.StatusOK})

	ended := sr.Ended()
	require.Len(t, ended, 3)
	require.Equal(t, int64(1), attr(ended[0], "graphql.batch.index").AsInt64())
	require.Equal(t, int64(0), attr(ended[1], "graphql.batch.index").AsInt64())
}

func TestFinishWithoutStartIsIgnored(t *testing.T) {
	sr := setup(t)
	ctx, _ := reqid.WithID(context.Background(), "r2")
	eventbus.Publish(ctx, events.GraphQLFinish{})
	eventbus.Publish(ctx, events.HTTPFinish{Status: http.StatusOK})
	require.Empty(t, sr.Ended())
}

func TestSchemaSpan(t *testing.T) {
	sr := setup(t)
	eventbus.Publish(context.Background(), events.SchemaBuilt{Types: 4, Directives: 2, Generated: 3, Duration: 5 * time.Millisecond})
	eventbus.Publish(context.Background(), events.SchemaBuilt{Err: errors.New("clash"), Duration: time.Millisecond})

	ended := sr.Ended()
	require.Len(t, ended, 2)
	require.Equal(t, "schema.assemble", ended[0].Name())
	require.Equal(t, int64(3), attr(ended[0], "schema.generated_inputs").AsInt64())
	require.GreaterOrEqual(t, ended[0].EndTime().Sub(ended[0].StartTime()), 5*time.Millisecond)
	require.Equal(t, codes.Error, ended[1].Status().Code)
}

func TestDetach(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	detach := Attach(tp.Tracer(TracerName))
	detach()
	eventbus.Publish(context.Background(), events.SchemaBuilt{})
	require.Empty(t, sr.Ended())
}

func TestSetupWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "", "structgraph")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
