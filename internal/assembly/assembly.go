// Package assembly combines a hand-written base SDL document with input
// types generated from type metadata into one validated schema.
package assembly

import (
	"context"
	"fmt"
	"time"

	eventbus "github.com/hanpama/structgraph/internal/eventbus"
	events "github.com/hanpama/structgraph/internal/events"
	"github.com/hanpama/structgraph/internal/inputgen"
	language "github.com/hanpama/structgraph/internal/language"
	"github.com/hanpama/structgraph/internal/logging"
	"github.com/hanpama/structgraph/internal/meta"
	schema "github.com/hanpama/structgraph/internal/schema"
)

// Result is an assembled schema.
type Result struct {
	// Schema is the model of the combined, validated document.
	Schema *schema.Schema
	// SDL is Schema rendered canonically.
	SDL string
	// Generated lists the generated input types in discovery order.
	Generated []*schema.Type
	// GeneratedSDL is the text that was added to the base document.
	GeneratedSDL string
}

type Options struct {
	Types      []*meta.TypeDescriptor
	Builder    *inputgen.Builder
	Directives []*schema.Directive
	Logger     logging.Logger
	BaseName   string

	// FieldLocations overrides the locations of inferred field directive
	// definitions. See inputgen.Generator.FieldLocations.
	FieldLocations []string
}

type Option func(*Options)

// WithTypes adds descriptors to generate input types for. Referenced
// descriptors are generated too.
func WithTypes(types ...*meta.TypeDescriptor) Option {
	return func(o *Options) { o.Types = append(o.Types, types...) }
}

// WithTable adds every descriptor of a metadata table.
func WithTable(t *meta.Table) Option {
	return func(o *Options) { o.Types = append(o.Types, t.Types...) }
}

func WithBuilder(b *inputgen.Builder) Option { return func(o *Options) { o.Builder = b } }

// WithDirective supplies a directive definition instead of inferring it.
func WithDirective(d *schema.Directive) Option {
	return func(o *Options) { o.Directives = append(o.Directives, d) }
}

// WithFieldLocations sets the locations generated definitions of input field
// directives are declared on.
func WithFieldLocations(locations ...string) Option {
	return func(o *Options) { o.FieldLocations = locations }
}

func WithLogger(l logging.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithBaseName names the base document in error messages.
func WithBaseName(name string) Option { return func(o *Options) { o.BaseName = name } }

// Assemble generates the configured input types, appends them to base and
// validates the combination. Directives already defined in base are not
// generated again; a base type with the name of a generated type is an
// error.
func Assemble(ctx context.Context, base string, opts ...Option) (res *Result, err error) {
	o := Options{BaseName: "base.graphql", Logger: logging.Discard()}
	for _, f := range opts {
		f(&o)
	}

	start := time.Now()
	defer func() {
		e := events.SchemaBuilt{Err: err, Duration: time.Since(start)}
		if res != nil {
			e.Types, e.Directives = count(res.Schema)
			e.Generated = len(res.Generated)
		}
		eventbus.Publish(ctx, e)
	}()

	doc, err := language.ParseSchema(o.BaseName, base)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	baseTypes := map[string]bool{}
	for _, def := range doc.Definitions {
		baseTypes[def.Name] = true
	}

	gen := inputgen.NewGenerator(o.Builder).FieldLocations(o.FieldLocations...)
	for _, d := range o.Directives {
		gen.Define(d)
	}
	baseDirectives := map[string]bool{}
	for _, d := range doc.Directives {
		baseDirectives[d.Name] = true
		gen.Define(schema.NewDirective(d.Name, d.Description))
	}

	out, err := gen.Generate(o.Types...)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	generated := schema.NewSchema("")
	for _, t := range out.Types {
		if baseTypes[t.Name] {
			return nil, fmt.Errorf("assemble: generated input type %s is already defined in %s", t.Name, o.BaseName)
		}
		generated.AddType(t)
	}
	for _, d := range out.Directives {
		if !baseDirectives[d.Name] {
			generated.AddDirective(d)
		}
	}
	generatedSDL := ""
	if len(out.Types) > 0 {
		generatedSDL = schema.Render(generated)
	}

	sources := []*language.Source{{Name: o.BaseName, Input: base}}
	if generatedSDL != "" {
		sources = append(sources, &language.Source{Name: "generated.graphql", Input: generatedSDL})
	}
	full, err := language.LoadSchema(sources...)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}
	model, err := schema.BuildFromDocument(full)
	if err != nil {
		return nil, fmt.Errorf("assemble: %w", err)
	}

	res = &Result{
		Schema:       model,
		SDL:          schema.Render(model),
		Generated:    out.Types,
		GeneratedSDL: generatedSDL,
	}
	o.Logger.WithFields(logging.Fields{
		"generated":  len(out.Types),
		"directives": len(out.Directives),
		"duration":   time.Since(start).String(),
	}).Debug("schema assembled")
	return res, nil
}

func count(s *schema.Schema) (types, directives int) {
	for name := range s.Types {
		if !schema.IsBuiltinType(name) {
			types++
		}
	}
	for name := range s.Directives {
		if !schema.IsBuiltinDirective(name) {
			directives++
		}
	}
	return types, directives
}
