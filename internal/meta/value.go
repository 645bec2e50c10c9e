package meta

import (
	"fmt"
	"math"
	"reflect"
)

// Enum marks an annotation argument that should be written as an enum value
// rather than a string.
type Enum string

// NormalizeValue converts an annotation argument into the small set of
// shapes directive arguments are made of: nil, string, bool, int64, float64,
// Enum, []any and map[string]any. Named types are reduced to their kind,
// pointers are followed and structs become maps keyed by lower-camel field
// names.
func NormalizeValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if e, ok := v.(Enum); ok {
		return e, nil
	}
	return normalize(reflect.ValueOf(v))
}

var enumType = reflect.TypeOf(Enum(""))

func normalize(rv reflect.Value) (any, error) {
	if rv.IsValid() && rv.Type() == enumType {
		return Enum(rv.String()), nil
	}
	switch rv.Kind() {
	case reflect.Invalid:
		return nil, nil
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return NormalizeValue(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > 1<<63-1 {
			return nil, fmt.Errorf("value %d overflows int64", u)
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("float %v has no GraphQL literal", f)
		}
		return f, nil
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			item, err := normalize(rv.Index(i))
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = item
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map keys must be strings, got %s", rv.Type().Key())
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			item, err := normalize(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", iter.Key().String(), err)
			}
			out[iter.Key().String()] = item
		}
		return out, nil
	case reflect.Struct:
		out := map[string]any{}
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			sf := rt.Field(i)
			if !sf.IsExported() {
				continue
			}
			item, err := normalize(rv.Field(i))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", sf.Name, err)
			}
			out[LowerCamel(sf.Name)] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value of kind %s", rv.Kind())
	}
}
