package meta

import (
	"fmt"
	"reflect"
	"strings"
)

// Built-in annotation names. They are consumed while building schema types
// and never surface as directives.
const (
	NameAnnotation        = "GraphQLName"
	DescriptionAnnotation = "GraphQLDescription"
	IgnoreAnnotation      = "GraphQLIgnore"
)

// ValueArg is the argument carrying the payload of single-valued annotations.
const ValueArg = "value"

// Annotation is a named marker attached to a type or field, with its
// arguments in declaration order.
type Annotation struct {
	Name string `json:"name" yaml:"name" validate:"required,graphqlname"`
	Args []Arg  `json:"args,omitempty" yaml:"args,omitempty" validate:"dive"`
}

type Arg struct {
	Name  string `json:"name" yaml:"name" validate:"required,graphqlname"`
	Value any    `json:"value" yaml:"value" validate:"-"`
}

func NewAnnotation(name string, args ...Arg) Annotation {
	return Annotation{Name: name, Args: append([]Arg(nil), args...)}
}

func NewArg(name string, value any) Arg { return Arg{Name: name, Value: value} }

// Name renames the annotated type or field.
func Name(value string) Annotation { return NewAnnotation(NameAnnotation, NewArg(ValueArg, value)) }

// Description documents the annotated type or field.
func Description(value string) Annotation {
	return NewAnnotation(DescriptionAnnotation, NewArg(ValueArg, value))
}

// Ignore drops the annotated field from generated types.
func Ignore() Annotation { return NewAnnotation(IgnoreAnnotation) }

// AnnotationOf turns a Go value into an annotation named after the value's
// type. Exported struct fields become arguments in declaration order; their
// names are lower-camel-cased unless a graphql tag says otherwise. Non-struct
// values become a single "value" argument.
func AnnotationOf(v any) Annotation {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return Annotation{Name: rv.Type().Elem().Name()}
		}
		rv = rv.Elem()
	}
	rt := rv.Type()
	a := Annotation{Name: rt.Name()}
	if rt.Kind() != reflect.Struct {
		a.Args = []Arg{{Name: ValueArg, Value: rv.Interface()}}
		return a
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := LowerCamel(sf.Name)
		if tag := sf.Tag.Get("graphql"); tag == "-" {
			continue
		} else if tag != "" {
			name = strings.TrimSpace(strings.Split(tag, ",")[0])
		}
		a.Args = append(a.Args, Arg{Name: name, Value: rv.Field(i).Interface()})
	}
	return a
}

// IsBuiltin reports whether a is one of the annotations consumed for naming,
// documentation or field selection.
func (a Annotation) IsBuiltin() bool {
	switch a.Name {
	case NameAnnotation, DescriptionAnnotation, IgnoreAnnotation:
		return true
	}
	return false
}

// Arg returns the value of the named argument.
func (a Annotation) Arg(name string) (any, bool) {
	for _, arg := range a.Args {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}

// StringValue returns the "value" argument as a string. Non-string values
// are formatted with fmt.
func (a Annotation) StringValue() string {
	v, ok := a.Arg(ValueArg)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (a Annotation) String() string {
	if len(a.Args) == 0 {
		return "@" + a.Name
	}
	parts := make([]string, len(a.Args))
	for i, arg := range a.Args {
		parts[i] = fmt.Sprintf("%s=%v", arg.Name, arg.Value)
	}
	return "@" + a.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Custom filters out built-in annotations, keeping order and multiplicity.
func Custom(annotations []Annotation) []Annotation {
	var out []Annotation
	for _, a := range annotations {
		if !a.IsBuiltin() {
			out = append(out, a)
		}
	}
	return out
}

// Has reports whether an annotation with the given name is present.
func Has(annotations []Annotation, name string) bool {
	_, ok := find(annotations, name)
	return ok
}

func find(annotations []Annotation, name string) (Annotation, bool) {
	for _, a := range annotations {
		if a.Name == name {
			return a, true
		}
	}
	return Annotation{}, false
}

func count(annotations []Annotation, name string) int {
	n := 0
	for _, a := range annotations {
		if a.Name == name {
			n++
		}
	}
	return n
}
