// Package reqid carries request identifiers through contexts.
package reqid

import (
	"context"

	"github.com/google/uuid"
)

// Header is the HTTP header a request id is read from and echoed in.
const Header = "X-Request-ID"

// key is the context key for the request ID.
type key struct{}

// New returns a fresh random request id.
func New() string { return uuid.NewString() }

// NewContext returns a copy of parent carrying a request id. An id already
// present in parent is kept. It also returns the id.
func NewContext(parent context.Context) (context.Context, string) {
	if id, ok := FromContext(parent); ok {
		return parent, id
	}
	return WithID(parent, New())
}

// WithID stores id in a copy of parent. Empty ids are replaced with a new one.
func WithID(parent context.Context, id string) (context.Context, string) {
	if id == "" {
		id = New()
	}
	return context.WithValue(parent, key{}, id), id
}

// FromContext extracts the request ID from ctx.
// It returns the ID and whether it was present.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(key{}).(string)
	return id, ok && id != ""
}
