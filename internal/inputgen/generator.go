package inputgen

import (
	"fmt"

	"github.com/hanpama/structgraph/internal/meta"
	"github.com/hanpama/structgraph/internal/schema"
)

// Output is the result of a generator run: input object types in discovery
// order and the directive definitions their directives need, in the order
// they were first used.
type Output struct {
	Types      []*schema.Type
	Directives []*schema.Directive
}

// Type returns the generated type with the given name.
func (o *Output) Type(name string) *schema.Type {
	for _, t := range o.Types {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Directive returns the generated definition with the given name.
func (o *Output) Directive(name string) *schema.Directive {
	for _, d := range o.Directives {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Generator builds input types for a set of descriptors and everything they
// reference. Definitions registered with Define are used as given; the rest
// are inferred from the directives' argument values.
type Generator struct {
	builder        *Builder
	defined        map[string]*schema.Directive
	fieldLocations []string
}

func NewGenerator(b *Builder) *Generator {
	if b == nil {
		b = defaultBuilder
	}
	return &Generator{
		builder:        b,
		defined:        map[string]*schema.Directive{},
		fieldLocations: []string{schema.LocationInputFieldDefinition},
	}
}

// FieldLocations sets the locations inferred definitions get for directives
// used on input fields. The default is INPUT_FIELD_DEFINITION alone;
// graph-gophers/graphql-go also checks input field directives against
// ARGUMENT_DEFINITION.
func (g *Generator) FieldLocations(locations ...string) *Generator {
	if len(locations) > 0 {
		g.fieldLocations = append([]string(nil), locations...)
	}
	return g
}

// Define registers an explicit directive definition. It is returned as is
// and never checked against the inferred shape.
func (g *Generator) Define(d *schema.Directive) *Generator {
	g.defined[d.Name] = d
	return g
}

// Generate builds every descriptor reachable from roots once, depth first.
// Two distinct descriptors resolving to the same input name are an error.
func (g *Generator) Generate(roots ...*meta.TypeDescriptor) (*Output, error) {
	out := &Output{}
	owners := map[string]*meta.TypeDescriptor{}
	visited := map[*meta.TypeDescriptor]bool{}
	dirs := newDirectiveSet(g.defined)

	var err error
	for _, root := range roots {
		if root == nil {
			return nil, fmt.Errorf("generate: nil descriptor")
		}
		meta.Walk(root, func(d *meta.TypeDescriptor) {
			if err != nil || visited[d] {
				return
			}
			visited[d] = true
			name := InputName(d)
			if prev, ok := owners[name]; ok {
				err = fmt.Errorf("generate: input type %s is produced by two descriptors named %s and %s", name, prev.Name, d.Name)
				return
			}
			owners[name] = d

			var t *schema.Type
			if t, err = g.builder.BuildInputObject(d); err != nil {
				err = fmt.Errorf("generate %s: %w", d.Name, err)
				return
			}
			if len(t.InputFields) == 0 {
				err = fmt.Errorf("generate: input type %s has no fields", t.Name)
				return
			}
			if err = dirs.collect(t.Directives, schema.LocationInputObject); err != nil {
				err = fmt.Errorf("generate %s: %w", t.Name, err)
				return
			}
			for _, f := range t.InputFields {
				if err = dirs.collect(f.Directives, g.fieldLocations...); err != nil {
					err = fmt.Errorf("generate %s.%s: %w", t.Name, f.Name, err)
					return
				}
			}
			out.Types = append(out.Types, t)
		})
		if err != nil {
			return nil, err
		}
	}
	if err := dirs.checkTyped(); err != nil {
		return nil, err
	}
	out.Directives = dirs.list
	return out, nil
}

type directiveSet struct {
	defined map[string]*schema.Directive
	byName  map[string]*schema.Directive
	list    []*schema.Directive
}

func newDirectiveSet(defined map[string]*schema.Directive) *directiveSet {
	return &directiveSet{defined: defined, byName: map[string]*schema.Directive{}}
}

// collect records the directives applied on one element.
func (s *directiveSet) collect(applied []*schema.AppliedDirective, locations ...string) error {
	uses := map[string]int{}
	for _, a := range applied {
		uses[a.Name]++
		def, ok := s.byName[a.Name]
		if !ok {
			if explicit, isDefined := s.defined[a.Name]; isDefined {
				def = explicit
			} else {
				def = schema.NewDirective(a.Name, "")
			}
			s.byName[a.Name] = def
			s.list = append(s.list, def)
		}
		if _, isDefined := s.defined[a.Name]; isDefined {
			continue
		}
		for _, loc := range locations {
			def.AddLocation(loc)
		}
		if uses[a.Name] > 1 {
			def.SetRepeatable(true)
		}
		for _, arg := range a.Arguments {
			if err := mergeArgument(def, arg); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkTyped fails for inferred arguments whose every value was null, an
// enum or an object. Those directives have to be registered with Define.
func (s *directiveSet) checkTyped() error {
	for _, def := range s.list {
		if _, ok := s.defined[def.Name]; ok {
			continue
		}
		for _, arg := range def.Arguments {
			if arg.Type == nil {
				return fmt.Errorf("generate: cannot infer the type of @%s(%s); define the directive explicitly", def.Name, arg.Name)
			}
		}
	}
	return nil
}

func mergeArgument(def *schema.Directive, arg *schema.AppliedArgument) error {
	inferred := inferType(arg.Value)
	for _, existing := range def.Arguments {
		if existing.Name != arg.Name {
			continue
		}
		switch {
		case inferred == nil:
		case existing.Type == nil:
			existing.Type = inferred
		case existing.Type.String() == inferred.String():
		case widens(existing.Type, inferred):
			existing.Type = schema.NamedType("Float")
		case widens(inferred, existing.Type):
		default:
			return fmt.Errorf("@%s(%s) is used with %s and %s values", def.Name, arg.Name, existing.Type, inferred)
		}
		return nil
	}
	def.AddArgument(schema.NewInputValue(arg.Name, "", inferred))
	return nil
}

// widens reports whether an Int argument seen before can become Float.
func widens(from, to *schema.TypeRef) bool {
	return from.String() == "Int" && to.String() == "Float"
}

// inferType guesses a nullable argument type from a normalized value. Nil
// and empty lists carry no information and yield nil.
func inferType(v any) *schema.TypeRef {
	switch x := v.(type) {
	case string:
		return schema.NamedType("String")
	case bool:
		return schema.NamedType("Boolean")
	case int64:
		if x < -1<<31 || x > 1<<31-1 {
			return schema.NamedType("Float")
		}
		return schema.NamedType("Int")
	case float64:
		return schema.NamedType("Float")
	case []any:
		for _, item := range x {
			if elem := inferType(item); elem != nil {
				return schema.ListType(elem)
			}
		}
	}
	return nil
}
