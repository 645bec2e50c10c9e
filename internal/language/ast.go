package language

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// The document model is gqlparser's.
type (
	Source              = ast.Source
	Schema              = ast.Schema
	QueryDocument       = ast.QueryDocument
	SchemaDocument      = ast.SchemaDocument
	OperationDefinition = ast.OperationDefinition
	DefinitionKind      = ast.DefinitionKind
	Operation           = ast.Operation
)

// Error is a located GraphQL error as reported by the parser and validator.
type Error = gqlerror.Error

const (
	Query        = ast.Query
	Mutation     = ast.Mutation
	Subscription = ast.Subscription
)

const (
	Object      = ast.Object
	InputObject = ast.InputObject
)
