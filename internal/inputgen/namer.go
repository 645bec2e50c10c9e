package inputgen

import (
	"fmt"
	"sort"

	"github.com/hanpama/structgraph/internal/meta"
)

// Namer picks the directive name for a custom annotation.
type Namer interface {
	DirectiveName(a meta.Annotation) string
}

type NamerFunc func(meta.Annotation) string

func (f NamerFunc) DirectiveName(a meta.Annotation) string { return f(a) }

// DefaultNamer lower-camel-cases the annotation name: SimpleDirective
// becomes simpleDirective.
var DefaultNamer Namer = NamerFunc(func(a meta.Annotation) string { return meta.LowerCamel(a.Name) })

// MappingNamer names annotations from an explicit table and defers to
// Fallback for annotations the table does not list.
type MappingNamer struct {
	names    map[string]string
	fallback Namer
}

// NewMappingNamer validates names (annotation name to directive name) and
// returns a namer using it. A nil fallback means DefaultNamer.
func NewMappingNamer(names map[string]string, fallback Namer) (*MappingNamer, error) {
	if fallback == nil {
		fallback = DefaultNamer
	}
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch {
		case !meta.IsValidName(k):
			return nil, fmt.Errorf("directive mapping: %q is not a valid annotation name", k)
		case k == meta.NameAnnotation || k == meta.DescriptionAnnotation || k == meta.IgnoreAnnotation:
			return nil, fmt.Errorf("directive mapping: %s is consumed by the builder and cannot be mapped", k)
		case !meta.IsValidName(names[k]):
			return nil, fmt.Errorf("directive mapping: %s maps to invalid directive name %q", k, names[k])
		}
	}
	copied := make(map[string]string, len(names))
	for k, v := range names {
		copied[k] = v
	}
	return &MappingNamer{names: copied, fallback: fallback}, nil
}

func (m *MappingNamer) DirectiveName(a meta.Annotation) string {
	if name, ok := m.names[a.Name]; ok {
		return name
	}
	return m.fallback.DirectiveName(a)
}
