// Package inputgen derives GraphQL input object types from type metadata.
package inputgen

import (
	"fmt"

	"github.com/hanpama/structgraph/internal/meta"
	"github.com/hanpama/structgraph/internal/schema"
)

// InputSuffix is appended to a type name that carries no rename.
const InputSuffix = "Input"

// Builder turns type descriptors into input object types. A Builder holds no
// mutable state and may be shared between goroutines.
type Builder struct {
	namer Namer
}

type options struct {
	namer        Namer
	mapping      map[string]string
	mappingIsSet bool
}

type Option func(*options)

// WithNamer replaces the directive naming rule.
func WithNamer(n Namer) Option { return func(o *options) { o.namer = n } }

// WithDirectiveNames names the listed annotations explicitly. Annotations
// missing from the table keep the current naming rule.
func WithDirectiveNames(names map[string]string) Option {
	return func(o *options) {
		o.mapping = names
		o.mappingIsSet = true
	}
}

// New creates a Builder. Explicit directive names are checked here, so a
// Builder that was created never produces an invalid directive name from
// its mapping.
func New(opts ...Option) (*Builder, error) {
	o := options{namer: DefaultNamer}
	for _, f := range opts {
		f(&o)
	}
	namer := o.namer
	if namer == nil {
		namer = DefaultNamer
	}
	if o.mappingIsSet {
		m, err := NewMappingNamer(o.mapping, namer)
		if err != nil {
			return nil, err
		}
		namer = m
	}
	return &Builder{namer: namer}, nil
}

var defaultBuilder = &Builder{namer: DefaultNamer}

// BuildInputObject builds d with the default naming rules.
func BuildInputObject(d *meta.TypeDescriptor) (*schema.Type, error) {
	return defaultBuilder.BuildInputObject(d)
}

// BuildInputObject builds the input object type for d.
//
// The type is named by d's GraphQLName annotation or "<Name>Input",
// described by its GraphQLDescription and carries one directive per custom
// annotation, in order. Fields follow the same rules; GraphQLIgnore drops a
// field. The only errors come from meta.Validate.
func (b *Builder) BuildInputObject(d *meta.TypeDescriptor) (*schema.Type, error) {
	if err := meta.Validate(d); err != nil {
		return nil, err
	}
	t := schema.NewType(InputName(d), schema.TypeKindInputObject, description(d.Annotations))
	t.Directives = b.directives(d.Annotations)

	seen := map[string]string{}
	for _, f := range d.Fields {
		if meta.Has(f.Annotations, meta.IgnoreAnnotation) {
			continue
		}
		name := FieldName(f)
		if prev, dup := seen[name]; dup {
			return nil, meta.ValidationError{{
				Type:    d.Name,
				Field:   f.Name,
				Message: fmt.Sprintf("input field %q is also produced by %s", name, prev),
			}}
		}
		seen[name] = f.Name

		in := schema.NewInputValue(name, description(f.Annotations), ResolveType(f.Type))
		in.Directives = b.directives(f.Annotations)
		t.AddInputField(in)
	}
	return t, nil
}

// DirectiveName returns the directive name b uses for a.
func (b *Builder) DirectiveName(a meta.Annotation) string { return b.namer.DirectiveName(a) }

func (b *Builder) directives(annotations []meta.Annotation) []*schema.AppliedDirective {
	var out []*schema.AppliedDirective
	for _, a := range meta.Custom(annotations) {
		d := schema.NewAppliedDirective(b.namer.DirectiveName(a))
		for _, arg := range a.Args {
			// Validate already rejected values NormalizeValue cannot handle.
			v, _ := meta.NormalizeValue(arg.Value)
			d.Arguments = append(d.Arguments, schema.NewAppliedArgument(arg.Name, literal(v)))
		}
		out = append(out, d)
	}
	return out
}

// InputName is the input object name for d: a non-empty GraphQLName value
// verbatim, otherwise the descriptor name with InputSuffix.
func InputName(d *meta.TypeDescriptor) string {
	if a, ok := d.Annotation(meta.NameAnnotation); ok {
		if name := a.StringValue(); name != "" {
			return name
		}
	}
	return d.Name + InputSuffix
}

// FieldName is the input field name for f: a non-empty GraphQLName value
// verbatim, otherwise the lower-camel-cased field name.
func FieldName(f *meta.FieldDescriptor) string {
	if a, ok := f.Annotation(meta.NameAnnotation); ok {
		if name := a.StringValue(); name != "" {
			return name
		}
	}
	return meta.LowerCamel(f.Name)
}

// ResolveType maps a field type onto a schema type reference. References to
// other descriptors use their input names.
func ResolveType(e meta.TypeExpr) *schema.TypeRef {
	var ref *schema.TypeRef
	switch e.Kind {
	case meta.KindScalar:
		ref = schema.NamedType(e.Scalar)
	case meta.KindRef:
		ref = schema.NamedType(InputName(e.Ref))
	case meta.KindList:
		ref = schema.ListType(ResolveType(*e.Elem))
	}
	if !e.Nullable {
		ref = schema.NonNullType(ref)
	}
	return ref
}

func description(annotations []meta.Annotation) string {
	for _, a := range annotations {
		if a.Name == meta.DescriptionAnnotation {
			return a.StringValue()
		}
	}
	return ""
}

// literal swaps meta.Enum for the schema's enum literal, recursively.
func literal(v any) any {
	switch x := v.(type) {
	case meta.Enum:
		return schema.EnumLiteral(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = literal(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = literal(item)
		}
		return out
	}
	return v
}
