// Package metrics exposes Prometheus metrics for HTTP traffic, GraphQL
// operations and schema assembly.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/hanpama/structgraph/internal/eventbus"
	events "github.com/hanpama/structgraph/internal/events"
)

// Collector owns a private registry, so several collectors can live in one
// process.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeRequests      prometheus.Gauge

	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	schemaBuildsTotal *prometheus.CounterVec
	schemaTypes       prometheus.Gauge
	generatedInputs   prometheus.Gauge
}

// New creates a collector whose metric names start with namespace.
// Hyphens are replaced since Prometheus does not allow them.
func New(namespace string) *Collector {
	ns := strings.ReplaceAll(namespace, "-", "_")
	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})
	c.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "endpoint"})
	c.activeRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "http_active_requests",
		Help:      "Number of HTTP requests being served",
	})

	c.operationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "graphql_operations_total",
		Help:      "GraphQL operations by type and outcome",
	}, []string{"type", "outcome"})
	c.operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "graphql_operation_duration_seconds",
		Help:      "GraphQL execution time in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"})

	c.schemaBuildsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "schema_builds_total",
		Help:      "Schema assemblies by outcome",
	}, []string{"outcome"})
	c.schemaTypes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "schema_types",
		Help:      "Named types in the last assembled schema",
	})
	c.generatedInputs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "schema_generated_inputs",
		Help:      "Input types generated for the last assembled schema",
	})

	c.registry.MustRegister(
		c.httpRequestsTotal, c.httpRequestDuration, c.activeRequests,
		c.operationsTotal, c.operationDuration,
		c.schemaBuildsTotal, c.schemaTypes, c.generatedInputs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Attach subscribes the collector to the global event bus.
func (c *Collector) Attach() (detach func()) {
	unsubs := []func(){
		eventbus.Subscribe(c.graphqlFinish),
		eventbus.Subscribe(c.schemaBuilt),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func (c *Collector) graphqlFinish(_ context.Context, e events.GraphQLFinish) {
	typ := e.OperationType
	if typ == "" {
		typ = "unknown"
	}
	outcome := "ok"
	if len(e.Errors) > 0 {
		outcome = "error"
	}
	c.operationsTotal.WithLabelValues(typ, outcome).Inc()
	c.operationDuration.WithLabelValues(typ).Observe(e.Duration.Seconds())
}

func (c *Collector) schemaBuilt(_ context.Context, e events.SchemaBuilt) {
	if e.Err != nil {
		c.schemaBuildsTotal.WithLabelValues("error").Inc()
		return
	}
	c.schemaBuildsTotal.WithLabelValues("ok").Inc()
	c.schemaTypes.Set(float64(e.Types))
	c.generatedInputs.Set(float64(e.Generated))
}

// Middleware records HTTP metrics per matched route.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		c.activeRequests.Inc()
		defer c.activeRequests.Dec()

		ctx.Next()

		endpoint := ctx.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := ctx.Request.Method
		c.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
