package meta

// TypeDescriptor is the static metadata record for a host type: its simple
// name, its fields in declaration order and the annotations attached to it.
//
// Descriptors are assembled once (by hand, from a table file or by reflection)
// and are treated as read-only afterwards.
type TypeDescriptor struct {
	Name        string             `json:"name" validate:"required,graphqlname"`
	Fields      []*FieldDescriptor `json:"fields" validate:"dive,required"`
	Annotations []Annotation       `json:"annotations,omitempty" validate:"dive"`
}

// FieldDescriptor describes one declared field of a host type.
type FieldDescriptor struct {
	Name        string       `json:"name" validate:"required,graphqlname"`
	Type        TypeExpr     `json:"type"`
	Annotations []Annotation `json:"annotations,omitempty" validate:"dive"`
}

// TypeKind tells which variant of TypeExpr is populated.
type TypeKind int

const (
	KindScalar TypeKind = iota
	KindRef
	KindList
)

func (k TypeKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindRef:
		return "ref"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// TypeExpr is the declared type of a field. Expressions are non-null unless
// Nullable is set.
type TypeExpr struct {
	Kind     TypeKind        `json:"kind"`
	Scalar   string          `json:"scalar,omitempty"`
	Ref      *TypeDescriptor `json:"-" validate:"-"`
	Elem     *TypeExpr       `json:"elem,omitempty"`
	Nullable bool            `json:"nullable,omitempty"`
}

// Built-in scalar names.
const (
	String  = "String"
	Int     = "Int"
	Float   = "Float"
	Boolean = "Boolean"
	ID      = "ID"
)

func Scalar(name string) TypeExpr { return TypeExpr{Kind: KindScalar, Scalar: name} }

func Ref(d *TypeDescriptor) TypeExpr { return TypeExpr{Kind: KindRef, Ref: d} }

func ListOf(elem TypeExpr) TypeExpr { return TypeExpr{Kind: KindList, Elem: &elem} }

// Optional returns a nullable copy of t.
func Optional(t TypeExpr) TypeExpr {
	t.Nullable = true
	return t
}

// NewType starts a descriptor. Fields are appended with AddField while the
// descriptor is being put together.
func NewType(name string, annotations ...Annotation) *TypeDescriptor {
	return &TypeDescriptor{Name: name, Annotations: append([]Annotation(nil), annotations...)}
}

func (t *TypeDescriptor) AddField(name string, typ TypeExpr, annotations ...Annotation) *TypeDescriptor {
	t.Fields = append(t.Fields, &FieldDescriptor{
		Name:        name,
		Type:        typ,
		Annotations: append([]Annotation(nil), annotations...),
	})
	return t
}

// Field returns the field declared with the given name.
func (t *TypeDescriptor) Field(name string) *FieldDescriptor {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Annotation returns the first annotation with the given name.
func (t *TypeDescriptor) Annotation(name string) (Annotation, bool) {
	return find(t.Annotations, name)
}

// Annotation returns the first annotation with the given name.
func (f *FieldDescriptor) Annotation(name string) (Annotation, bool) {
	return find(f.Annotations, name)
}

// Refs lists the descriptors referenced by t's fields, in field order,
// without duplicates.
func (t *TypeDescriptor) Refs() []*TypeDescriptor {
	var out []*TypeDescriptor
	seen := map[*TypeDescriptor]bool{}
	for _, f := range t.Fields {
		if d := f.Type.Target(); d != nil && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// Target returns the descriptor at the bottom of the expression, if any.
func (e TypeExpr) Target() *TypeDescriptor {
	for cur := &e; cur != nil; cur = cur.Elem {
		if cur.Kind == KindRef {
			return cur.Ref
		}
	}
	return nil
}

// Walk visits d and every descriptor reachable from it exactly once,
// depth first in field order.
func Walk(d *TypeDescriptor, visit func(*TypeDescriptor)) {
	seen := map[*TypeDescriptor]bool{}
	var walk func(*TypeDescriptor)
	walk = func(cur *TypeDescriptor) {
		if cur == nil || seen[cur] {
			return
		}
		seen[cur] = true
		visit(cur)
		for _, ref := range cur.Refs() {
			walk(ref)
		}
	}
	walk(d)
}
