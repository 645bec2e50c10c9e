package language

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

func ParseQuery(source string) (*QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates the given SDL sources as one schema,
// together with the GraphQL prelude.
func LoadSchema(sources ...*Source) (*Schema, error) {
	s, err := gqlparser.LoadSchema(sources...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ErrNoOperation is returned when a document has no operation to execute.
var ErrNoOperation = errors.New("no operation provided")

// SelectOperation picks the operation a request refers to. An empty name is
// allowed only when the document holds exactly one operation.
func SelectOperation(doc *QueryDocument, name string) (*OperationDefinition, error) {
	if len(doc.Operations) == 0 {
		return nil, ErrNoOperation
	}
	if name == "" {
		if len(doc.Operations) > 1 {
			return nil, fmt.Errorf("operationName is required when the document has %d operations", len(doc.Operations))
		}
		return doc.Operations[0], nil
	}
	op := doc.Operations.ForName(name)
	if op == nil {
		return nil, fmt.Errorf("unknown operation %q", name)
	}
	return op, nil
}

// OperationType parses query and reports the type of the selected operation.
func OperationType(query, operationName string) (Operation, error) {
	doc, err := ParseQuery(query)
	if err != nil {
		return "", err
	}
	op, err := SelectOperation(doc, operationName)
	if err != nil {
		return "", err
	}
	return op.Operation, nil
}
