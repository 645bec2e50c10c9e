// Package events defines the lifecycle events published on the event bus.
// Subscribers find the request id in the context passed with each event.
package events

import (
	"net/http"
	"time"
)

// HTTPStart is published when the GraphQL handler receives a request.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is published once the response has been written.
type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}

// GraphQLStart is published before an operation runs. BatchIndex is the
// position of the operation in a batched request, or -1. Request is the
// HTTP request carrying the operation.
type GraphQLStart struct {
	Request       *http.Request
	Query         string
	OperationName string
	OperationType string
	BatchIndex    int
}

// GraphQLFinish is published after an operation ran.
type GraphQLFinish struct {
	Request       *http.Request
	Query         string
	OperationName string
	OperationType string
	BatchIndex    int
	Errors        []error
	Duration      time.Duration
}

// SchemaBuilt is published after an assembly attempt. Err is set when the
// schema failed to build; the counts are zero in that case.
type SchemaBuilt struct {
	Types      int
	Directives int
	Generated  int
	Err        error
	Duration   time.Duration
}
