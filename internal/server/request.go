package server

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// Request is one GraphQL operation as sent by a client.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

type requestError struct {
	Status  int
	Message string
}

func (e *requestError) Error() string { return e.Message }

func badRequest(format string, args ...any) *requestError {
	return &requestError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// parseRequest reads a single request or a batch.
//
// GET takes query, operationName and variables from the URL. POST accepts
// application/json (an object or an array of objects), application/graphql
// (the body is the query) and form encoding. A query URL parameter on a
// POST wins over the body; operationName and variables then come from the
// URL as well.
func parseRequest(r *http.Request, maxBody int64) (Request, []Request, *requestError) {
	params := r.URL.Query()
	if r.Method == http.MethodGet || params.Get("query") != "" {
		req, err := fromValues(params)
		return req, nil, err
	}

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		var err error
		if mediaType, _, err = mime.ParseMediaType(ct); err != nil {
			return Request{}, nil, &requestError{Status: http.StatusUnsupportedMediaType, Message: "invalid Content-Type"}
		}
	}
	switch mediaType {
	case "application/json", "application/graphql", "application/x-www-form-urlencoded":
	default:
		return Request{}, nil, &requestError{
			Status:  http.StatusUnsupportedMediaType,
			Message: fmt.Sprintf("unsupported Content-Type %q", mediaType),
		}
	}

	body, rerr := readBody(r, maxBody)
	if rerr != nil {
		return Request{}, nil, rerr
	}

	switch mediaType {
	case "application/graphql":
		req := Request{Query: string(body), OperationName: params.Get("operationName")}
		if req.Query == "" {
			return Request{}, nil, badRequest("missing 'query'")
		}
		vars, err := parseVariables(params.Get("variables"))
		if err != nil {
			return Request{}, nil, err
		}
		req.Variables = vars
		return req, nil, nil
	case "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return Request{}, nil, badRequest("invalid form body")
		}
		req, rerr := fromValues(form)
		return req, nil, rerr
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var batch []Request
		if err := json.Unmarshal(body, &batch); err != nil {
			return Request{}, nil, badRequest("invalid JSON")
		}
		if len(batch) == 0 {
			return Request{}, nil, badRequest("empty batch")
		}
		for i := range batch {
			if batch[i].Query == "" {
				return Request{}, nil, badRequest("missing 'query' in batch item %d", i)
			}
			if batch[i].Variables == nil {
				batch[i].Variables = map[string]any{}
			}
		}
		return Request{}, batch, nil
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, nil, badRequest("invalid JSON")
	}
	if req.Query == "" {
		return Request{}, nil, badRequest("missing 'query'")
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return req, nil, nil
}

func fromValues(v url.Values) (Request, *requestError) {
	q := v.Get("query")
	if q == "" {
		return Request{}, badRequest("missing 'query'")
	}
	vars, err := parseVariables(v.Get("variables"))
	if err != nil {
		return Request{}, err
	}
	return Request{Query: q, OperationName: v.Get("operationName"), Variables: vars}, nil
}

func parseVariables(raw string) (map[string]any, *requestError) {
	vars := map[string]any{}
	if strings.TrimSpace(raw) == "" || raw == "null" {
		return vars, nil
	}
	if err := json.Unmarshal([]byte(raw), &vars); err != nil {
		return nil, badRequest("invalid 'variables' JSON")
	}
	return vars, nil
}

// readBody reads the body, inflating gzip content. The limit applies to the
// inflated size.
func readBody(r *http.Request, maxBody int64) ([]byte, *requestError) {
	defer r.Body.Close()
	var reader io.Reader = r.Body
	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, badRequest("invalid gzip body")
		}
		defer zr.Close()
		reader = zr
	}
	if maxBody > 0 {
		reader = io.LimitReader(reader, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, badRequest("failed to read body")
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return nil, &requestError{Status: http.StatusRequestEntityTooLarge, Message: "body too large"}
	}
	return body, nil
}
