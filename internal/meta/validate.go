package meta

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Violation is one problem found in a descriptor.
type Violation struct {
	Type    string `json:"type"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type ValidationError []*Violation

func (e ValidationError) Error() string {
	msg := "invalid type metadata:\n"
	for _, v := range e {
		line := "- " + v.Type
		if v.Field != "" {
			line += "." + v.Field
		}
		msg += line + ": " + v.Message + "\n"
	}
	return msg
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("graphqlname", func(fl validator.FieldLevel) bool {
		return IsValidName(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate checks d and every descriptor reachable from it. Descriptors that
// pass are safe to hand to the input-type builder.
//
// Besides the structural rules, an element may carry at most one
// GraphQLName and one GraphQLDescription, rename values must be legal GraphQL
// names, field names must be unique within a type and annotation arguments
// must be values NormalizeValue accepts.
func Validate(d *TypeDescriptor) error {
	if d == nil {
		return ValidationError{{Message: "nil type descriptor"}}
	}
	var violations []*Violation
	Walk(d, func(cur *TypeDescriptor) {
		violations = append(violations, check(cur)...)
	})
	if len(violations) > 0 {
		return ValidationError(violations)
	}
	return nil
}

func check(d *TypeDescriptor) []*Violation {
	var out []*Violation
	if err := validate.Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return []*Violation{{Type: d.Name, Message: err.Error()}}
		}
		for _, fe := range fieldErrs {
			out = append(out, &Violation{
				Type:    d.Name,
				Field:   strings.TrimPrefix(fe.Namespace(), "TypeDescriptor."),
				Message: fmt.Sprintf("failed %q validation", fe.Tag()),
			})
		}
	}

	out = append(out, checkAnnotations(d.Name, "", d.Annotations)...)

	seen := map[string]bool{}
	for _, f := range d.Fields {
		if f == nil {
			continue
		}
		if seen[f.Name] {
			out = append(out, &Violation{Type: d.Name, Field: f.Name, Message: "duplicate field"})
		}
		seen[f.Name] = true
		out = append(out, checkAnnotations(d.Name, f.Name, f.Annotations)...)
		if msg := checkExpr(f.Type); msg != "" {
			out = append(out, &Violation{Type: d.Name, Field: f.Name, Message: msg})
		}
	}
	return out
}

func checkAnnotations(typeName, fieldName string, annotations []Annotation) []*Violation {
	var out []*Violation
	for _, name := range []string{NameAnnotation, DescriptionAnnotation} {
		if n := count(annotations, name); n > 1 {
			out = append(out, &Violation{
				Type:    typeName,
				Field:   fieldName,
				Message: fmt.Sprintf("@%s given %d times", name, n),
			})
		}
	}
	for _, a := range annotations {
		if a.Name != NameAnnotation && a.Name != DescriptionAnnotation {
			for _, arg := range a.Args {
				if _, err := NormalizeValue(arg.Value); err != nil {
					out = append(out, &Violation{
						Type:    typeName,
						Field:   fieldName,
						Message: fmt.Sprintf("@%s(%s): %v", a.Name, arg.Name, err),
					})
				}
			}
			continue
		}
		v, ok := a.Arg(ValueArg)
		if !ok {
			continue
		}
		s, isString := v.(string)
		if !isString {
			out = append(out, &Violation{
				Type:    typeName,
				Field:   fieldName,
				Message: fmt.Sprintf("@%s value must be a string, got %T", a.Name, v),
			})
			continue
		}
		if a.Name == NameAnnotation && s != "" && !IsValidName(s) {
			out = append(out, &Violation{
				Type:    typeName,
				Field:   fieldName,
				Message: fmt.Sprintf("@%s value %q is not a valid GraphQL name", a.Name, s),
			})
		}
	}
	return out
}

func checkExpr(e TypeExpr) string {
	switch e.Kind {
	case KindScalar:
		if !IsValidName(e.Scalar) {
			return fmt.Sprintf("invalid scalar name %q", e.Scalar)
		}
	case KindRef:
		if e.Ref == nil {
			return "type reference without target"
		}
	case KindList:
		if e.Elem == nil {
			return "list without element type"
		}
		return checkExpr(*e.Elem)
	default:
		return fmt.Sprintf("unknown type kind %d", e.Kind)
	}
	return ""
}
