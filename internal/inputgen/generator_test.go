package inputgen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/structgraph/internal/meta"
	"github.com/hanpama/structgraph/internal/schema"
)

func bookstore() *meta.TypeDescriptor {
	author := meta.NewType("Author").
		AddField("name", meta.Scalar(meta.String), meta.AnnotationOf(Length{Min: 1, Max: 80}))
	book := meta.NewType("NewBook", meta.Name("BookDraft"), meta.NewAnnotation("Audited")).
		AddField("title", meta.Scalar(meta.String),
			meta.NewAnnotation("Trimmed"),
			meta.AnnotationOf(Length{Min: 1, Max: 200}),
			meta.NewAnnotation("Length", meta.NewArg("min", 0.5))).
		AddField("author", meta.Ref(author)).
		AddField("related", meta.Optional(meta.ListOf(meta.Ref(author))))
	author.AddField("favourite", meta.Optional(meta.Ref(book)), meta.NewAnnotation("Audited"))
	return book
}

func TestGenerate(t *testing.T) {
	out, err := NewGenerator(nil).Generate(bookstore())
	require.NoError(t, err)

	var names []string
	for _, typ := range out.Types {
		names = append(names, typ.Name)
	}
	require.Equal(t, []string{"BookDraft", "AuthorInput"}, names)
	require.Equal(t, "BookDraft", out.Type("AuthorInput").InputField("favourite").Type.String())

	var dirs []string
	for _, d := range out.Directives {
		dirs = append(dirs, d.Name)
	}
	require.Equal(t, []string{"audited", "trimmed", "length"}, dirs)

	audited := out.Directive("audited")
	require.Equal(t, []string{schema.LocationInputObject, schema.LocationInputFieldDefinition}, audited.Locations)
	require.False(t, audited.IsRepeatable)

	length := out.Directive("length")
	require.True(t, length.IsRepeatable, "title carries @length twice")
	want := []*schema.InputValue{
		{Name: "min", Type: schema.NamedType("Float")},
		{Name: "max", Type: schema.NamedType("Int")},
	}
	if diff := cmp.Diff(want, length.Arguments); diff != "" {
		t.Fatalf("length arguments (-want +got):\n%s", diff)
	}
	require.Nil(t, out.Directive("missing"))
	require.Nil(t, out.Type("Missing"))
}

func TestGenerateSharedRootsOnce(t *testing.T) {
	book := bookstore()
	author := book.Field("author").Type.Target()
	out, err := NewGenerator(nil).Generate(author, book, author)
	require.NoError(t, err)
	require.Len(t, out.Types, 2)
	require.Equal(t, "AuthorInput", out.Types[0].Name)
}

func TestGenerateNameConflict(t *testing.T) {
	a := meta.NewType("Book").AddField("title", meta.Scalar(meta.String))
	b := meta.NewType("Other", meta.Name("BookInput")).AddField("title", meta.Scalar(meta.String))
	_, err := NewGenerator(nil).Generate(a, b)
	require.ErrorContains(t, err, "input type BookInput is produced by two descriptors")
}

func TestGenerateArgumentConflict(t *testing.T) {
	d := meta.NewType("Book").
		AddField("a", meta.Scalar(meta.String), meta.NewAnnotation("Tag", meta.NewArg("v", "x"))).
		AddField("b", meta.Scalar(meta.String), meta.NewAnnotation("Tag", meta.NewArg("v", true)))
	_, err := NewGenerator(nil).Generate(d)
	require.ErrorContains(t, err, "@tag(v) is used with String and Boolean values")
}

func TestGenerateNeedsDefinitionForUntypedArguments(t *testing.T) {
	d := meta.NewType("Book", meta.NewAnnotation("Format", meta.NewArg("kind", meta.Enum("EBOOK")))).
		AddField("title", meta.Scalar(meta.String))
	_, err := NewGenerator(nil).Generate(d)
	require.ErrorContains(t, err, "cannot infer the type of @format(kind)")

	format := schema.NewDirective("format", "").
		AddArgument(schema.NewInputValue("kind", "", schema.NamedType("Format"))).
		AddLocation(schema.LocationInputObject)
	out, err := NewGenerator(nil).Define(format).Generate(d)
	require.NoError(t, err)
	require.Same(t, format, out.Directive("format"))
}

func TestGenerateListArguments(t *testing.T) {
	d := meta.NewType("Book").
		AddField("a", meta.Scalar(meta.String), meta.NewAnnotation("Choices", meta.NewArg("values", []string{}))).
		AddField("b", meta.Scalar(meta.String), meta.NewAnnotation("Choices", meta.NewArg("values", []string{"x"})))
	out, err := NewGenerator(nil).Generate(d)
	require.NoError(t, err)
	require.Equal(t, "[String]", out.Directive("choices").Arguments[0].Type.String())
}

func TestGenerateRendersValidSDL(t *testing.T) {
	out, err := NewGenerator(nil).Generate(bookstore())
	require.NoError(t, err)

	s := schema.NewSchema("")
	for _, typ := range out.Types {
		s.AddType(typ)
	}
	for _, d := range out.Directives {
		s.AddDirective(d)
	}
	sdl := "type Query { ok: Boolean }\n" + schema.Render(s)
	parsed, err := schema.BuildFromSDL(sdl)
	require.NoError(t, err, sdl)
	require.True(t, strings.Contains(schema.Render(parsed), "input BookDraft @audited {"))
}

func TestGenerateFieldLocations(t *testing.T) {
	out, err := NewGenerator(nil).
		FieldLocations(schema.LocationInputFieldDefinition, schema.LocationArgumentDefinition).
		Generate(bookstore())
	require.NoError(t, err)
	require.Equal(t,
		[]string{schema.LocationInputFieldDefinition, schema.LocationArgumentDefinition},
		out.Directive("trimmed").Locations)
	require.Equal(t,
		[]string{schema.LocationInputObject, schema.LocationInputFieldDefinition, schema.LocationArgumentDefinition},
		out.Directive("audited").Locations)

	out, err = NewGenerator(nil).FieldLocations().Generate(bookstore())
	require.NoError(t, err)
	require.Equal(t, []string{schema.LocationInputFieldDefinition}, out.Directive("trimmed").Locations)
}

func TestGenerateRejectsInputsWithoutFields(t *testing.T) {
	tests := map[string]*meta.TypeDescriptor{
		"no fields": meta.NewType("Empty"),
		"all ignored": meta.NewType("Empty").
			AddField("secret", meta.Scalar(meta.String), meta.Ignore()).
			AddField("source", meta.Scalar(meta.String), meta.Ignore()),
	}
	for name, d := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewGenerator(nil).Generate(d)
			require.EqualError(t, err, "generate: input type EmptyInput has no fields")
		})
	}

	author := meta.NewType("Author")
	book := meta.NewType("Book").AddField("author", meta.Ref(author))
	_, err := NewGenerator(nil).Generate(book)
	require.ErrorContains(t, err, "input type AuthorInput has no fields")
}

func TestGenerateNilRoot(t *testing.T) {
	_, err := NewGenerator(nil).Generate(nil)
	require.Error(t, err)
}
