package meta

import (
	"fmt"
	"reflect"
	"strings"
)

// Annotated types supply their own type-level annotations, in order.
type Annotated interface {
	GraphQLAnnotations() []Annotation
}

// FieldAnnotated types supply custom annotations for their fields, keyed by
// Go field name.
type FieldAnnotated interface {
	GraphQLFieldAnnotations() map[string][]Annotation
}

// ScalarType lets a Go type declare the GraphQL scalar it maps to.
type ScalarType interface {
	GraphQLScalar() string
}

var (
	annotatedType      = reflect.TypeOf((*Annotated)(nil)).Elem()
	fieldAnnotatedType = reflect.TypeOf((*FieldAnnotated)(nil)).Elem()
	scalarTypeType     = reflect.TypeOf((*ScalarType)(nil)).Elem()
)

// Reflect builds a descriptor for the struct type of v (or the struct v
// points to).
func Reflect(v any) (*TypeDescriptor, error) {
	if v == nil {
		return nil, fmt.Errorf("reflect: nil value")
	}
	return ReflectType(reflect.TypeOf(v))
}

// ReflectType builds a descriptor for t, following nested struct fields.
//
// Struct tags on fields:
//
//	graphql:"name"      rename the field
//	graphql:"-"         ignore the field
//	description:"text"  document the field
//	scalar:"ID"         map the field (or its list elements) to a named scalar
//
// Exported fields are described in declaration order; fields of embedded
// structs are promoted in place. Each struct type is described once, so
// recursive types produce cyclic descriptors.
func ReflectType(t reflect.Type) (*TypeDescriptor, error) {
	r := &reflector{seen: map[reflect.Type]*TypeDescriptor{}}
	return r.describe(t)
}

type reflector struct {
	seen map[reflect.Type]*TypeDescriptor
}

func (r *reflector) describe(t reflect.Type) (*TypeDescriptor, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("reflect: %s is not a struct type", t)
	}
	if t.Name() == "" {
		return nil, fmt.Errorf("reflect: anonymous struct types have no name")
	}
	if d, ok := r.seen[t]; ok {
		return d, nil
	}
	d := &TypeDescriptor{Name: t.Name()}
	r.seen[t] = d

	if impl(t, annotatedType) {
		d.Annotations = append(d.Annotations, newValue(t).(Annotated).GraphQLAnnotations()...)
	}
	var fieldAnnotations map[string][]Annotation
	if impl(t, fieldAnnotatedType) {
		fieldAnnotations = newValue(t).(FieldAnnotated).GraphQLFieldAnnotations()
	}
	if err := r.addFields(d, t, fieldAnnotations); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *reflector) addFields(d *TypeDescriptor, t reflect.Type, extra map[string][]Annotation) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, hasTag := sf.Tag.Lookup("graphql")
		if sf.Anonymous && !hasTag {
			et := sf.Type
			if et.Kind() == reflect.Ptr {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				if err := r.addFields(d, et, extra); err != nil {
					return err
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}

		var annotations []Annotation
		if tag = strings.TrimSpace(strings.Split(tag, ",")[0]); tag == "-" {
			annotations = append(annotations, Ignore())
		} else if tag != "" {
			annotations = append(annotations, Name(tag))
		}
		if desc, ok := sf.Tag.Lookup("description"); ok {
			annotations = append(annotations, Description(desc))
		}
		annotations = append(annotations, extra[sf.Name]...)

		var typ TypeExpr
		if !Has(annotations, IgnoreAnnotation) {
			var err error
			typ, err = r.expr(sf.Type, sf.Tag.Get("scalar"))
			if err != nil {
				return fmt.Errorf("reflect: %s.%s: %w", t.Name(), sf.Name, err)
			}
		} else {
			typ = Optional(Scalar(String))
		}
		d.Fields = append(d.Fields, &FieldDescriptor{
			Name:        sf.Name,
			Type:        typ,
			Annotations: annotations,
		})
	}
	return nil
}

func (r *reflector) expr(t reflect.Type, scalar string) (TypeExpr, error) {
	if t.Kind() == reflect.Ptr {
		inner, err := r.expr(t.Elem(), scalar)
		if err != nil {
			return TypeExpr{}, err
		}
		return Optional(inner), nil
	}
	if t.Kind() != reflect.Slice && t.Kind() != reflect.Array {
		if scalar != "" {
			return Scalar(scalar), nil
		}
		if impl(t, scalarTypeType) {
			return Scalar(newValue(t).(ScalarType).GraphQLScalar()), nil
		}
	}
	switch t.Kind() {
	case reflect.String:
		return Scalar(String), nil
	case reflect.Bool:
		return Scalar(Boolean), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Scalar(Int), nil
	case reflect.Float32, reflect.Float64:
		return Scalar(Float), nil
	case reflect.Slice, reflect.Array:
		elem, err := r.expr(t.Elem(), scalar)
		if err != nil {
			return TypeExpr{}, err
		}
		return ListOf(elem), nil
	case reflect.Struct:
		d, err := r.describe(t)
		if err != nil {
			return TypeExpr{}, err
		}
		return Ref(d), nil
	default:
		return TypeExpr{}, fmt.Errorf("unsupported kind %s", t.Kind())
	}
}

func impl(t, iface reflect.Type) bool {
	return t.Implements(iface) || reflect.PointerTo(t).Implements(iface)
}

// newValue returns a value of t that satisfies whichever method set t or *t
// implements. Pointer types get a fresh element.
func newValue(t reflect.Type) any {
	if t.Kind() == reflect.Ptr {
		return reflect.New(t.Elem()).Interface()
	}
	return reflect.New(t).Interface()
}
