package inputgen

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/structgraph/internal/meta"
	"github.com/hanpama/structgraph/internal/schema"
)

type SimpleDirective struct{}

type Length struct {
	Min int
	Max int
}

func TestBuildInputObject_DefaultName(t *testing.T) {
	typ, err := BuildInputObject(meta.NewType("Book").AddField("title", meta.Scalar(meta.String)))
	require.NoError(t, err)
	require.Equal(t, "BookInput", typ.Name)
	require.Equal(t, schema.TypeKindInputObject, typ.Kind)
	require.Empty(t, typ.Description)
	require.Empty(t, typ.Directives)
}

func TestBuildInputObject_Rename(t *testing.T) {
	typ, err := BuildInputObject(meta.NewType("Book", meta.Name("BookDraft")))
	require.NoError(t, err)
	require.Equal(t, "BookDraft", typ.Name)

	// An empty rename falls back to the default.
	typ, err = BuildInputObject(meta.NewType("Book", meta.Name("")))
	require.NoError(t, err)
	require.Equal(t, "BookInput", typ.Name)
}

func TestBuildInputObject_Description(t *testing.T) {
	typ, err := BuildInputObject(meta.NewType("Book", meta.Description("Filters books.\nAll fields optional.")))
	require.NoError(t, err)
	require.Equal(t, "Filters books.\nAll fields optional.", typ.Description)
}

func TestBuildInputObject_RenameAndDescriptionTogether(t *testing.T) {
	typ, err := BuildInputObject(meta.NewType("Book", meta.Description("d"), meta.Name("Draft")))
	require.NoError(t, err)
	require.Equal(t, "Draft", typ.Name)
	require.Equal(t, "d", typ.Description)
	require.Empty(t, typ.Directives, "built-in annotations never become directives")
}

func TestBuildInputObject_OneDirectiveOnTypeAndField(t *testing.T) {
	d := meta.NewType("Book", meta.AnnotationOf(SimpleDirective{})).
		AddField("title", meta.Scalar(meta.String), meta.AnnotationOf(SimpleDirective{}))

	typ, err := BuildInputObject(d)
	require.NoError(t, err)

	want := &schema.Type{
		Name:       "BookInput",
		Kind:       schema.TypeKindInputObject,
		Directives: []*schema.AppliedDirective{{Name: "simpleDirective"}},
		InputFields: []*schema.InputValue{{
			Name:       "title",
			Type:       schema.NonNullType(schema.NamedType("String")),
			Directives: []*schema.AppliedDirective{{Name: "simpleDirective"}},
		}},
	}
	if diff := cmp.Diff(want, typ); diff != "" {
		t.Fatalf("input type mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildInputObject_DirectiveOrderAndMultiplicity(t *testing.T) {
	d := meta.NewType("Book",
		meta.NewAnnotation("Audited"),
		meta.Name("Draft"),
		meta.AnnotationOf(Length{Min: 1, Max: 2}),
		meta.NewAnnotation("Audited"),
	)
	typ, err := BuildInputObject(d)
	require.NoError(t, err)

	var names []string
	for _, dir := range typ.Directives {
		names = append(names, dir.Name)
	}
	require.Equal(t, []string{"audited", "length", "audited"}, names)
	require.Equal(t, []*schema.AppliedArgument{
		{Name: "min", Value: int64(1)},
		{Name: "max", Value: int64(2)},
	}, typ.Directives[1].Arguments)
}

func TestBuildInputObject_FieldOrderAndTypes(t *testing.T) {
	author := meta.NewType("Author", meta.Name("AuthorRef"))
	d := meta.NewType("Book").
		AddField("Title", meta.Scalar(meta.String)).
		AddField("year", meta.Optional(meta.Scalar(meta.Int))).
		AddField("internal", meta.Scalar(meta.String), meta.Ignore()).
		AddField("tags", meta.Optional(meta.ListOf(meta.Scalar(meta.String)))).
		AddField("author", meta.Ref(author), meta.Name("writtenBy"), meta.Description("Who wrote it")).
		AddField("editors", meta.ListOf(meta.Optional(meta.Ref(meta.NewType("Editor")))))

	typ, err := BuildInputObject(d)
	require.NoError(t, err)

	got := map[string]string{}
	var order []string
	for _, f := range typ.InputFields {
		order = append(order, f.Name)
		got[f.Name] = f.Type.String()
	}
	require.Equal(t, []string{"title", "year", "tags", "writtenBy", "editors"}, order)
	require.Equal(t, map[string]string{
		"title":     "String!",
		"year":      "Int",
		"tags":      "[String!]",
		"writtenBy": "AuthorRef!",
		"editors":   "[EditorInput]!",
	}, got)
	require.Equal(t, "Who wrote it", typ.InputField("writtenBy").Description)
}

func TestBuildInputObject_Idempotent(t *testing.T) {
	d := meta.NewType("Book", meta.Description("A book"), meta.AnnotationOf(SimpleDirective{})).
		AddField("title", meta.Scalar(meta.String), meta.AnnotationOf(Length{Min: 1, Max: 9})).
		AddField("tags", meta.ListOf(meta.Scalar(meta.String)), meta.NewAnnotation("Tags", meta.NewArg("allowed", []string{"a", "b"})))

	first, err := BuildInputObject(d)
	require.NoError(t, err)
	second, err := BuildInputObject(d)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("builds differ (-first +second):\n%s", diff)
	}
	require.NotSame(t, first, second)
}

func TestBuildInputObject_Concurrent(t *testing.T) {
	d := meta.NewType("Book", meta.AnnotationOf(SimpleDirective{})).AddField("title", meta.Scalar(meta.String))
	want, err := BuildInputObject(d)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*schema.Type, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = BuildInputObject(d)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		require.Empty(t, cmp.Diff(want, got))
	}
}

func TestBuildInputObject_RejectsConflictingMetadata(t *testing.T) {
	_, err := BuildInputObject(meta.NewType("Book", meta.Name("A"), meta.Name("B")))
	var verr meta.ValidationError
	require.True(t, errors.As(err, &verr))

	_, err = BuildInputObject(meta.NewType("Book").
		AddField("Title", meta.Scalar(meta.String)).
		AddField("name", meta.Scalar(meta.String), meta.Name("title")))
	require.True(t, errors.As(err, &verr))
	require.Contains(t, err.Error(), `input field "title" is also produced by Title`)
}

func TestBuildInputObject_EnumArgument(t *testing.T) {
	d := meta.NewType("Book", meta.NewAnnotation("Format", meta.NewArg("kinds", []meta.Enum{"EBOOK"})))
	typ, err := BuildInputObject(d)
	require.NoError(t, err)
	require.Equal(t, []any{schema.EnumLiteral("EBOOK")}, typ.Directives[0].Arguments[0].Value)
}

func TestWithDirectiveNames(t *testing.T) {
	b, err := New(WithDirectiveNames(map[string]string{"SimpleDirective": "simple"}))
	require.NoError(t, err)

	typ, err := b.BuildInputObject(meta.NewType("Book",
		meta.AnnotationOf(SimpleDirective{}),
		meta.AnnotationOf(Length{}),
	))
	require.NoError(t, err)
	require.Equal(t, "simple", typ.Directives[0].Name)
	require.Equal(t, "length", typ.Directives[1].Name)
	require.Equal(t, "simple", b.DirectiveName(meta.AnnotationOf(SimpleDirective{})))
}

func TestNewRejectsInvalidMapping(t *testing.T) {
	for name, mapping := range map[string]map[string]string{
		"bad target":  {"SimpleDirective": "not valid"},
		"empty":       {"SimpleDirective": ""},
		"bad source":  {"1x": "ok"},
		"builtin key": {meta.NameAnnotation: "rename"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(WithDirectiveNames(mapping))
			require.Error(t, err)
		})
	}
}

func TestWithNamer(t *testing.T) {
	b, err := New(WithNamer(NamerFunc(func(a meta.Annotation) string { return "x" + a.Name })))
	require.NoError(t, err)
	typ, err := b.BuildInputObject(meta.NewType("Book", meta.NewAnnotation("Audited")))
	require.NoError(t, err)
	require.Equal(t, "xAudited", typ.Directives[0].Name)
}
