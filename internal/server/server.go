// Package server implements GraphQL over HTTP on top of an Executor.
package server

import (
	"context"
	"net/http"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	eventbus "github.com/hanpama/structgraph/internal/eventbus"
	events "github.com/hanpama/structgraph/internal/events"
	language "github.com/hanpama/structgraph/internal/language"
	reqid "github.com/hanpama/structgraph/internal/reqid"
)

// Executor runs one GraphQL operation. *graphql.Schema satisfies it.
type Executor interface {
	Exec(ctx context.Context, queryString string, operationName string, variables map[string]interface{}) *graphql.Response
}

// Handler serves a GraphQL endpoint.
type Handler struct {
	exec Executor
	opt  Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty indents JSON responses.
	Pretty bool

	// MaxBodyBytes limits the size of the request body after decompression.
	// 0 means unlimited.
	MaxBodyBytes int64

	// CORS is off while AllowedOrigins is empty.
	CORS CORSOptions

	// MaxBatch caps the number of operations in a batched request. 0 means
	// no limit.
	MaxBatch int
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithMaxBatch(n int) Option          { return func(o *Options) { o.MaxBatch = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

// New creates a GraphQL HTTP handler executing requests with exec.
func New(exec Executor, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{exec: exec, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, _ = reqid.WithID(ctx, requestID(r))
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if h.opt.CORS.enabled() {
		h.opt.CORS.apply(w, r)
	}

	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		writeJSON(w, status, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	req, batch, rerr := parseRequest(r, h.opt.MaxBodyBytes)
	if rerr != nil {
		status = rerr.Status
		writeJSON(w, status, errorResponse("%s", rerr.Message), h.opt.Pretty)
		return
	}

	if batch != nil {
		if h.opt.MaxBatch > 0 && len(batch) > h.opt.MaxBatch {
			status = http.StatusBadRequest
			writeJSON(w, status, errorResponse("too many operations in batch"), h.opt.Pretty)
			return
		}
		out := make([]*graphql.Response, len(batch))
		for i := range batch {
			out[i] = h.executeOne(ctx, r, batch[i], i)
		}
		writeJSON(w, status, out, h.opt.Pretty)
		return
	}

	opType, _ := language.OperationType(req.Query, req.OperationName)
	if r.Method == http.MethodGet && opType != language.Query && opType != "" {
		status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "POST")
		writeJSON(w, status, errorResponse("%s operations must be sent with POST", opType), h.opt.Pretty)
		return
	}

	writeJSON(w, status, h.executeOne(ctx, r, req, -1), h.opt.Pretty)
}

// executeOne runs one operation. index is its batch position, or -1.
func (h *Handler) executeOne(ctx context.Context, r *http.Request, req Request, index int) *graphql.Response {
	typ, _ := language.OperationType(req.Query, req.OperationName)
	opType := string(typ)

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{
		Request:       r,
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		BatchIndex:    index,
	})
	result := h.exec.Exec(ctx, req.Query, req.OperationName, req.Variables)
	if result == nil {
		result = errorResponse("no result")
	}
	errs := make([]error, len(result.Errors))
	for i := range result.Errors {
		errs[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Request:       r,
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		BatchIndex:    index,
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return result
}

func requestID(r *http.Request) string {
	if id, ok := reqid.FromContext(r.Context()); ok {
		return id
	}
	return r.Header.Get(reqid.Header)
}
