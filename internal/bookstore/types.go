package bookstore

import (
	"github.com/hanpama/structgraph/internal/meta"
)

// Trimmed asks for surrounding whitespace to be removed.
type Trimmed struct{}

// Length bounds the length of a string or the size of a list. Zero means
// unbounded.
type Length struct {
	Min int32
	Max int32
}

// Audited marks inputs whose use is logged.
type Audited struct{}

// NewBook is the payload of the addBook mutation.
type NewBook struct {
	Title  string `description:"Title as printed on the cover."`
	Author string
	Year   *int32
	Tags   []string
	ISBN   *string `graphql:"isbn"`
	// Source is filled in by the server.
	Source string `graphql:"-"`
}

func (NewBook) GraphQLAnnotations() []meta.Annotation {
	return []meta.Annotation{
		meta.Name("BookDraft"),
		meta.Description("A book to add to the catalogue."),
		meta.AnnotationOf(Audited{}),
	}
}

func (NewBook) GraphQLFieldAnnotations() map[string][]meta.Annotation {
	return map[string][]meta.Annotation{
		"Title":  {meta.AnnotationOf(Trimmed{}), meta.AnnotationOf(Length{Min: 1, Max: 200})},
		"Author": {meta.AnnotationOf(Trimmed{})},
		"Tags":   {meta.AnnotationOf(Length{Max: 10})},
	}
}

// BookFilter narrows the books query. Unset fields match everything.
type BookFilter struct {
	Author    *string `description:"Exact author name."`
	Tag       *string
	Published *YearRange
}

func (BookFilter) GraphQLAnnotations() []meta.Annotation {
	return []meta.Annotation{meta.Description("Filter for the books query.")}
}

// YearRange is an inclusive range of publication years.
type YearRange struct {
	From *int32
	To   *int32
}

func (r *YearRange) contains(year *int32) bool {
	if r == nil {
		return true
	}
	if year == nil {
		return false
	}
	if r.From != nil && *year < *r.From {
		return false
	}
	if r.To != nil && *year > *r.To {
		return false
	}
	return true
}

// Descriptors returns the input descriptors of the bookstore schema.
func Descriptors() ([]*meta.TypeDescriptor, error) {
	var out []*meta.TypeDescriptor
	for _, v := range []any{NewBook{}, BookFilter{}} {
		d, err := meta.Reflect(v)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
