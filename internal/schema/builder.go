package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// BuildFromDocument converts a validated gqlparser schema into the model.
// Extensions are already merged into their definitions by gqlparser;
// prelude types, introspection fields and built-in directives are left out.
// @deprecated, @specifiedBy and @oneOf are folded into the model's fields,
// every other directive use is kept as an AppliedDirective.
func BuildFromDocument(doc *ast.Schema) (*Schema, error) {
	if doc == nil {
		return nil, fmt.Errorf("build schema: nil document")
	}
	s := NewSchema(doc.Description)
	if doc.Query != nil {
		s.SetQueryType(doc.Query.Name)
	}
	if doc.Mutation != nil {
		s.SetMutationType(doc.Mutation.Name)
	}
	if doc.Subscription != nil {
		s.SetSubscriptionType(doc.Subscription.Name)
	}

	for name, def := range doc.Types {
		if def.BuiltIn || strings.HasPrefix(name, "__") {
			continue
		}
		t, err := buildDefinition(def)
		if err != nil {
			return nil, err
		}
		s.AddType(t)
	}
	for _, dir := range doc.Directives {
		if isPrelude(dir.Position) || IsBuiltinDirective(dir.Name) {
			continue
		}
		d, err := buildDirective(dir)
		if err != nil {
			return nil, err
		}
		s.AddDirective(d)
	}
	return s, nil
}

// BuildFromSDL parses and validates SDL and returns the corresponding Schema.
func BuildFromSDL(sdl string) (*Schema, error) {
	doc, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return nil, err
	}
	return BuildFromDocument(doc)
}

func isPrelude(pos *ast.Position) bool {
	return pos != nil && pos.Src != nil && pos.Src.BuiltIn
}

func buildDefinition(def *ast.Definition) (*Type, error) {
	var t *Type
	switch def.Kind {
	case ast.Object:
		t = NewType(def.Name, TypeKindObject, def.Description)
	case ast.Interface:
		t = NewType(def.Name, TypeKindInterface, def.Description)
	case ast.Union:
		t = NewType(def.Name, TypeKindUnion, def.Description)
		for _, name := range def.Types {
			t.AddPossibleType(name)
		}
	case ast.Enum:
		t = NewType(def.Name, TypeKindEnum, def.Description)
		for _, v := range def.EnumValues {
			ev := NewEnumValue(v.Name, v.Description)
			rest, err := foldDeprecation(v.Directives, ev.Deprecate)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Name, v.Name, err)
			}
			ev.Directives = rest
			t.AddEnumValue(ev)
		}
	case ast.InputObject:
		t = NewType(def.Name, TypeKindInputObject, def.Description)
		for _, f := range def.Fields {
			in, err := buildInputValue(f.Name, f.Description, f.Type, f.DefaultValue, f.Directives)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
			}
			t.AddInputField(in)
		}
	case ast.Scalar:
		t = NewType(def.Name, TypeKindScalar, def.Description)
	default:
		return nil, fmt.Errorf("%s: unsupported definition kind %s", def.Name, def.Kind)
	}

	if def.Kind == ast.Object || def.Kind == ast.Interface {
		for _, name := range def.Interfaces {
			t.AddInterface(name)
		}
		for _, f := range def.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			field, err := buildField(f)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
			}
			t.AddField(field)
		}
	}

	for _, d := range def.Directives {
		switch d.Name {
		case "oneOf":
			t.SetOneOf(true)
		case "specifiedBy":
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				t.SetSpecifiedByURL(arg.Value.Raw)
			}
		default:
			applied, err := buildApplied(d)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", def.Name, err)
			}
			t.Apply(applied)
		}
	}
	return t, nil
}

func buildField(def *ast.FieldDefinition) (*Field, error) {
	f := NewField(def.Name, def.Description, buildTypeRef(def.Type))
	for _, arg := range def.Arguments {
		in, err := buildInputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", arg.Name, err)
		}
		f.AddArgument(in)
	}
	rest, err := foldDeprecation(def.Directives, f.Deprecate)
	if err != nil {
		return nil, err
	}
	f.Directives = rest
	return f, nil
}

func buildInputValue(name, description string, typ *ast.Type, def *ast.Value, directives ast.DirectiveList) (*InputValue, error) {
	in := NewInputValue(name, description, buildTypeRef(typ))
	if def != nil {
		v, err := valueOf(def)
		if err != nil {
			return nil, err
		}
		in.SetDefault(v)
	}
	rest, err := foldDeprecation(directives, in.Deprecate)
	if err != nil {
		return nil, err
	}
	in.Directives = rest
	return in, nil
}

// foldDeprecation hands an @deprecated use to deprecate and returns the
// remaining applied directives.
func foldDeprecation[T any](directives ast.DirectiveList, deprecate func(string) T) ([]*AppliedDirective, error) {
	var rest []*AppliedDirective
	for _, d := range directives {
		if d.Name == "deprecated" {
			reason := ""
			if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
				reason = arg.Value.Raw
			}
			deprecate(reason)
			continue
		}
		applied, err := buildApplied(d)
		if err != nil {
			return nil, err
		}
		rest = append(rest, applied)
	}
	return rest, nil
}

func buildApplied(d *ast.Directive) (*AppliedDirective, error) {
	applied := NewAppliedDirective(d.Name)
	for _, arg := range d.Arguments {
		v, err := valueOf(arg.Value)
		if err != nil {
			return nil, fmt.Errorf("@%s(%s): %w", d.Name, arg.Name, err)
		}
		applied.Arguments = append(applied.Arguments, NewAppliedArgument(arg.Name, v))
	}
	return applied, nil
}

func buildDirective(dir *ast.DirectiveDefinition) (*Directive, error) {
	d := NewDirective(dir.Name, dir.Description).SetRepeatable(dir.IsRepeatable)
	for _, loc := range dir.Locations {
		d.AddLocation(string(loc))
	}
	for _, arg := range dir.Arguments {
		in, err := buildInputValue(arg.Name, arg.Description, arg.Type, arg.DefaultValue, arg.Directives)
		if err != nil {
			return nil, fmt.Errorf("@%s(%s): %w", dir.Name, arg.Name, err)
		}
		d.AddArgument(in)
	}
	return d, nil
}

func buildTypeRef(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = NonNullType(ref)
	}
	return ref
}

// valueOf converts a constant literal. Ints become int64 and floats float64
// so values compare the same way regardless of where they came from.
func valueOf(v *ast.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch v.Kind {
	case ast.IntValue:
		return strconv.ParseInt(v.Raw, 10, 64)
	case ast.FloatValue:
		return strconv.ParseFloat(v.Raw, 64)
	case ast.StringValue, ast.BlockValue:
		return v.Raw, nil
	case ast.BooleanValue:
		return v.Raw == "true", nil
	case ast.NullValue:
		return nil, nil
	case ast.EnumValue:
		return EnumLiteral(v.Raw), nil
	case ast.ListValue:
		out := make([]any, 0, len(v.Children))
		for _, child := range v.Children {
			item, err := valueOf(child.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case ast.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, child := range v.Children {
			item, err := valueOf(child.Value)
			if err != nil {
				return nil, err
			}
			out[child.Name] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value %s", v.String())
	}
}
