package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	graphql "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/structgraph/internal/eventbus"
	events "github.com/hanpama/structgraph/internal/events"
	reqid "github.com/hanpama/structgraph/internal/reqid"
)

type call struct {
	Query         string
	OperationName string
	Variables     map[string]any
	RequestID     string
}

// fakeExecutor records calls and answers every operation with {"ok":true}.
type fakeExecutor struct {
	mu     sync.Mutex
	calls  []call
	result *graphql.Response
}

func (f *fakeExecutor) Exec(ctx context.Context, query, op string, vars map[string]interface{}) *graphql.Response {
	id, _ := reqid.FromContext(ctx)
	f.mu.Lock()
	f.calls = append(f.calls, call{Query: query, OperationName: op, Variables: vars, RequestID: id})
	f.mu.Unlock()
	if f.result != nil {
		return f.result
	}
	return &graphql.Response{Data: json.RawMessage(`{"ok":true}`)}
}

func (f *fakeExecutor) last(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func postJSON(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestPostJSON(t *testing.T) {
	exec := &fakeExecutor{}
	h := New(exec)

	w := serve(h, postJSON(`{"query":"query Q($n: Int) { n }","operationName":"Q","variables":{"n":3}}`))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	require.JSONEq(t, `{"ok":true}`, string(decode(t, w).Data))

	c := exec.last(t)
	require.Equal(t, "Q", c.OperationName)
	require.Equal(t, map[string]any{"n": float64(3)}, c.Variables)
}

func TestPostWithoutContentTypeIsJSON(t *testing.T) {
	exec := &fakeExecutor{}
	r := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ a }"}`))
	w := serve(New(exec), r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "{ a }", exec.last(t).Query)
	require.NotNil(t, exec.last(t).Variables)
}

func TestGetQuery(t *testing.T) {
	exec := &fakeExecutor{}
	q := url.Values{"query": {"{ a }"}, "variables": {`{"x":"y"}`}}
	w := serve(New(exec), httptest.NewRequest(http.MethodGet, "/graphql?"+q.Encode(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]any{"x": "y"}, exec.last(t).Variables)
}

func TestGetRejectsMutation(t *testing.T) {
	exec := &fakeExecutor{}
	q := url.Values{"query": {"mutation { a }"}}
	w := serve(New(exec), httptest.NewRequest(http.MethodGet, "/graphql?"+q.Encode(), nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	require.Equal(t, "POST", w.Header().Get("Allow"))
	require.Empty(t, exec.calls)

	resp := decode(t, w)
	require.Nil(t, resp.Data)
	require.Len(t, resp.Errors, 1)
	require.Contains(t, resp.Errors[0].Message, "mutation")
}

func TestApplicationGraphQL(t *testing.T) {
	exec := &fakeExecutor{}
	r := httptest.NewRequest(http.MethodPost, "/graphql?operationName=A", strings.NewReader("query A { a }"))
	r.Header.Set("Content-Type", "application/graphql; charset=utf-8")
	w := serve(New(exec), r)
	require.Equal(t, http.StatusOK, w.Code)
	c := exec.last(t)
	require.Equal(t, "query A { a }", c.Query)
	require.Equal(t, "A", c.OperationName)
}

func TestFormBody(t *testing.T) {
	exec := &fakeExecutor{}
	form := url.Values{"query": {"{ f }"}}
	r := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := serve(New(exec), r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "{ f }", exec.last(t).Query)
}

func TestQueryParamWinsOverBody(t *testing.T) {
	exec := &fakeExecutor{}
	q := url.Values{"query": {"{ fromURL }"}}
	r := httptest.NewRequest(http.MethodPost, "/graphql?"+q.Encode(), strings.NewReader(`{"query":"{ fromBody }"}`))
	r.Header.Set("Content-Type", "application/json")
	w := serve(New(exec), r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "{ fromURL }", exec.last(t).Query)
}

func TestBatch(t *testing.T) {
	exec := &fakeExecutor{}
	w := serve(New(exec), postJSON(`[{"query":"{ a }"},{"query":"{ b }"}]`))
	require.Equal(t, http.StatusOK, w.Code)

	var out []response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 2)
	require.Len(t, exec.calls, 2)
	require.Equal(t, "{ b }", exec.calls[1].Query)
}

func TestBatchLimit(t *testing.T) {
	exec := &fakeExecutor{}
	w := serve(New(exec, WithMaxBatch(1)), postJSON(`[{"query":"{ a }"},{"query":"{ b }"}]`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, exec.calls)
}

func TestGzipBody(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"query":"{ zipped }"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	exec := &fakeExecutor{}
	r := httptest.NewRequest(http.MethodPost, "/graphql", &buf)
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("Content-Encoding", "gzip")
	w := serve(New(exec), r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "{ zipped }", exec.last(t).Query)
}

func TestBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		req    func() *http.Request
		status int
	}{
		{"invalid json", func() *http.Request { return postJSON(`{`) }, http.StatusBadRequest},
		{"missing query", func() *http.Request { return postJSON(`{"variables":{}}`) }, http.StatusBadRequest},
		{"empty batch", func() *http.Request { return postJSON(`[]`) }, http.StatusBadRequest},
		{"get without query", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/graphql", nil)
		}, http.StatusBadRequest},
		{"bad variables", func() *http.Request {
			q := url.Values{"query": {"{ a }"}, "variables": {"{nope"}}
			return httptest.NewRequest(http.MethodGet, "/graphql?"+q.Encode(), nil)
		}, http.StatusBadRequest},
		{"bad gzip", func() *http.Request {
			r := postJSON(`{"query":"{ a }"}`)
			r.Header.Set("Content-Encoding", "gzip")
			return r
		}, http.StatusBadRequest},
		{"unsupported content type", func() *http.Request {
			r := postJSON(`<query/>`)
			r.Header.Set("Content-Type", "text/xml")
			return r
		}, http.StatusUnsupportedMediaType},
		{"method", func() *http.Request {
			return httptest.NewRequest(http.MethodPut, "/graphql", nil)
		}, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &fakeExecutor{}
			w := serve(New(exec), tt.req())
			require.Equal(t, tt.status, w.Code, w.Body.String())
			resp := decode(t, w)
			require.Nil(t, resp.Data)
			require.NotEmpty(t, resp.Errors)
			require.Empty(t, exec.calls)
		})
	}
}

func TestMaxBodyBytes(t *testing.T) {
	w := serve(New(&fakeExecutor{}, WithMaxBodyBytes(10)), postJSON(`{"query":"1234567890"}`))
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestExecutionErrorsPassThrough(t *testing.T) {
	exec := &fakeExecutor{result: &graphql.Response{Errors: []*gqlerrors.QueryError{gqlerrors.Errorf("boom")}}}
	w := serve(New(exec), postJSON(`{"query":"{ a }"}`))
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, "boom", resp.Errors[0].Message)
}

func TestPretty(t *testing.T) {
	w := serve(New(&fakeExecutor{}, WithPretty()), postJSON(`{"query":"{ a }"}`))
	require.Contains(t, w.Body.String(), "\n  \"data\"")
}

func TestCORSAndPreflight(t *testing.T) {
	h := New(&fakeExecutor{}, WithCORS("http://example.com"))

	r := postJSON(`{"query":"{ a }"}`)
	r.Header.Set("Origin", "http://example.com")
	w := serve(h, r)
	require.Equal(t, "http://example.com", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Origin", w.Header().Get("Vary"))

	other := postJSON(`{"query":"{ a }"}`)
	other.Header.Set("Origin", "http://evil.example")
	require.Empty(t, serve(h, other).Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := serve(h, pre)
	require.Equal(t, http.StatusNoContent, pw.Code)
	require.Equal(t, "X-Test", pw.Header().Get("Access-Control-Allow-Headers"))
	require.Equal(t, "GET,POST,OPTIONS", pw.Header().Get("Access-Control-Allow-Methods"))
}

func TestRequestID(t *testing.T) {
	exec := &fakeExecutor{}
	h := New(exec)

	r := postJSON(`{"query":"{ a }"}`)
	r.Header.Set(reqid.Header, "from-header")
	serve(h, r)
	require.Equal(t, "from-header", exec.last(t).RequestID)

	ctx, _ := reqid.WithID(context.Background(), "from-context")
	serve(h, postJSON(`{"query":"{ a }"}`).WithContext(ctx))
	require.Equal(t, "from-context", exec.last(t).RequestID)

	serve(h, postJSON(`{"query":"{ a }"}`))
	require.NotEmpty(t, exec.last(t).RequestID)
}

func TestEvents(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })

	var statuses []int
	var ops []events.GraphQLFinish
	eventbus.On(bus, func(_ context.Context, e events.HTTPFinish) { statuses = append(statuses, e.Status) })
	eventbus.On(bus, func(_ context.Context, e events.GraphQLFinish) { ops = append(ops, e) })

	exec := &fakeExecutor{result: &graphql.Response{Errors: []*gqlerrors.QueryError{gqlerrors.Errorf("bad")}}}
	h := New(exec)
	serve(h, postJSON(`{"query":"mutation M { a }"}`))
	serve(h, postJSON(`{`))
	serve(h, postJSON(`[{"query":"{ a }"},{"query":"{ b }"}]`))

	require.Equal(t, []int{http.StatusOK, http.StatusBadRequest, http.StatusOK}, statuses)
	require.Len(t, ops, 3)
	require.Equal(t, "mutation", ops[0].OperationType)
	require.Equal(t, -1, ops[0].BatchIndex)
	require.Len(t, ops[0].Errors, 1)
	require.Equal(t, "query", ops[1].OperationType)
	require.Equal(t, []int{0, 1}, []int{ops[1].BatchIndex, ops[2].BatchIndex})
	require.NotNil(t, ops[0].Request)
	require.Same(t, ops[1].Request, ops[2].Request)
	require.NotSame(t, ops[0].Request, ops[1].Request)
}
