// Package bookstore is a small catalogue service whose input types are
// generated from Go structs and merged into a hand-written schema.
package bookstore

import (
	"context"
	_ "embed"
	"fmt"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/hanpama/structgraph/internal/assembly"
	"github.com/hanpama/structgraph/internal/logging"
	"github.com/hanpama/structgraph/internal/schema"
)

// BaseSDL is the hand-written part of the schema.
//
//go:embed schema.graphql
var BaseSDL string

// Service is an executable bookstore schema.
type Service struct {
	// Assembly is the validated schema the executable one was parsed from.
	Assembly *assembly.Result
	// Schema executes operations; it satisfies server.Executor.
	Schema *graphql.Schema
	Store  *Store
}

// New assembles the schema and binds it to a resolver over store. A nil
// store starts empty.
func New(ctx context.Context, store *Store, logger logging.Logger) (*Service, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if store == nil {
		store = NewStore()
	}
	types, err := Descriptors()
	if err != nil {
		return nil, fmt.Errorf("bookstore: %w", err)
	}
	res, err := assembly.Assemble(ctx, BaseSDL,
		assembly.WithBaseName("bookstore.graphql"),
		assembly.WithTypes(types...),
		// graphql-go validates input field directives as argument directives.
		assembly.WithFieldLocations(schema.LocationInputFieldDefinition, schema.LocationArgumentDefinition),
		assembly.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("bookstore: %w", err)
	}

	r := &Resolver{
		store:  store,
		logger: logger,
		draft:  constraintsOf(res.Schema.Types["BookDraft"]),
	}
	sch, err := graphql.ParseSchema(res.SDL, r,
		graphql.UseFieldResolvers(),
		graphql.UseStringDescriptions(),
	)
	if err != nil {
		return nil, fmt.Errorf("bookstore: parse assembled schema: %w", err)
	}
	return &Service{Assembly: res, Schema: sch, Store: store}, nil
}

// Resolver is the root resolver for Query and Mutation.
type Resolver struct {
	store  *Store
	logger logging.Logger
	draft  constraints
}

func (r *Resolver) Books(args struct{ Filter *BookFilter }) []*Book {
	return r.store.Find(args.Filter)
}

func (r *Resolver) Book(args struct{ ID graphql.ID }) *Book {
	return r.store.Get(args.ID)
}

// AddBook applies the @trimmed and @length constraints declared on
// BookDraft before storing the book.
func (r *Resolver) AddBook(ctx context.Context, args struct{ Input NewBook }) (*Book, error) {
	in := args.Input
	title, err := r.draft.text("title", in.Title)
	if err != nil {
		return nil, err
	}
	author, err := r.draft.text("author", in.Author)
	if err != nil {
		return nil, err
	}
	if err := r.draft.list("tags", len(in.Tags)); err != nil {
		return nil, err
	}

	b := r.store.Add(Book{
		Title:  title,
		Author: author,
		Year:   in.Year,
		Tags:   in.Tags,
		ISBN:   in.ISBN,
		Source: "graphql",
	})
	r.logger.WithFields(logging.Fields{"book_id": b.ID, "title": b.Title}).Info("book added")
	return b, nil
}
