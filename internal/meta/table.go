package meta

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table is a set of descriptors loaded from a metadata file, in file order.
//
// A table file looks like:
//
//	types:
//	  - name: NewBook
//	    annotations:
//	      - name: GraphQLName
//	        value: BookDraft
//	      - name: Audited
//	    fields:
//	      - name: title
//	        type: String!
//	        annotations:
//	          - name: Length
//	            args: {min: 1, max: 200}
//	      - name: author
//	        type: Author
//
// Field types use SDL notation. A named type that matches another entry of the
// same table becomes a reference to it; any other name is a scalar.
type Table struct {
	Types []*TypeDescriptor
}

// Lookup returns the descriptor with the given name.
func (t *Table) Lookup(name string) *TypeDescriptor {
	for _, d := range t.Types {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// LoadTable reads and parses a table file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load table: %w", err)
	}
	t, err := ParseTable(data)
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", path, err)
	}
	return t, nil
}

type tableFile struct {
	Types []typeEntry `yaml:"types"`
}

type typeEntry struct {
	Name        string            `yaml:"name"`
	Annotations []annotationEntry `yaml:"annotations"`
	Fields      []fieldEntry      `yaml:"fields"`
}

type fieldEntry struct {
	Name        string            `yaml:"name"`
	Type        string            `yaml:"type"`
	Annotations []annotationEntry `yaml:"annotations"`
}

type annotationEntry struct {
	Name  string    `yaml:"name"`
	Value yaml.Node `yaml:"value"`
	Args  yaml.Node `yaml:"args"`
}

// ParseTable parses table YAML and resolves references between its types.
// The result is validated before it is returned.
func ParseTable(data []byte) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}

	t := &Table{}
	byName := map[string]*TypeDescriptor{}
	for _, e := range file.Types {
		if _, dup := byName[e.Name]; dup {
			return nil, fmt.Errorf("parse table: type %q declared twice", e.Name)
		}
		d := &TypeDescriptor{Name: e.Name}
		byName[e.Name] = d
		t.Types = append(t.Types, d)
	}

	for i, e := range file.Types {
		d := t.Types[i]
		var err error
		if d.Annotations, err = convertAnnotations(e.Annotations); err != nil {
			return nil, fmt.Errorf("parse table: %s: %w", e.Name, err)
		}
		for _, fe := range e.Fields {
			typ, err := parseTypeString(fe.Type, byName)
			if err != nil {
				return nil, fmt.Errorf("parse table: %s.%s: %w", e.Name, fe.Name, err)
			}
			annotations, err := convertAnnotations(fe.Annotations)
			if err != nil {
				return nil, fmt.Errorf("parse table: %s.%s: %w", e.Name, fe.Name, err)
			}
			d.Fields = append(d.Fields, &FieldDescriptor{Name: fe.Name, Type: typ, Annotations: annotations})
		}
	}

	for _, d := range t.Types {
		if err := Validate(d); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func convertAnnotations(entries []annotationEntry) ([]Annotation, error) {
	var out []Annotation
	for _, e := range entries {
		a := Annotation{Name: e.Name}
		if !e.Value.IsZero() {
			var v any
			if err := e.Value.Decode(&v); err != nil {
				return nil, fmt.Errorf("annotation %s: %w", e.Name, err)
			}
			a.Args = append(a.Args, Arg{Name: ValueArg, Value: v})
		}
		if !e.Args.IsZero() {
			if e.Args.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("annotation %s: args must be a mapping (line %d)", e.Name, e.Args.Line)
			}
			// Mapping nodes keep key order, which is the argument order.
			for i := 0; i+1 < len(e.Args.Content); i += 2 {
				var v any
				if err := e.Args.Content[i+1].Decode(&v); err != nil {
					return nil, fmt.Errorf("annotation %s: %w", e.Name, err)
				}
				a.Args = append(a.Args, Arg{Name: e.Args.Content[i].Value, Value: v})
			}
		}
		out = append(out, a)
	}
	return out, nil
}

// parseTypeString reads SDL type notation such as "String!", "[Int]" or
// "[Author!]!".
func parseTypeString(s string, types map[string]*TypeDescriptor) (TypeExpr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeExpr{}, fmt.Errorf("missing type")
	}
	nonNull := strings.HasSuffix(s, "!")
	if nonNull {
		s = strings.TrimSpace(strings.TrimSuffix(s, "!"))
	}

	var e TypeExpr
	switch {
	case strings.HasPrefix(s, "["):
		if !strings.HasSuffix(s, "]") {
			return TypeExpr{}, fmt.Errorf("unbalanced list type %q", s)
		}
		elem, err := parseTypeString(s[1:len(s)-1], types)
		if err != nil {
			return TypeExpr{}, err
		}
		e = ListOf(elem)
	case IsValidName(s):
		if d, ok := types[s]; ok {
			e = Ref(d)
		} else {
			e = Scalar(s)
		}
	default:
		return TypeExpr{}, fmt.Errorf("invalid type %q", s)
	}
	e.Nullable = !nonNull
	return e, nil
}
