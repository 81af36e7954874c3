package errors

import "fmt"

// Documents (DOC7xx)
var (
	ErrNodeNotFound = register("DOC700", CategoryDocument, SeverityError,
		"node not found", "The document references a deleted node; reload it from storage")
	ErrNodeTypeMismatch = register("DOC701", CategoryDocument, SeverityError,
		"node of the wrong type", "")
	ErrMissingAttribute = register("DOC702", CategoryDocument, SeverityError,
		"missing attribute", "Set the attribute to a constant value in the editor")
)

func NewNodeNotFound(loc Location, id string) *CompilerError {
	return newError(ErrNodeNotFound, fmt.Sprintf("Node '%s' does not exist", id), loc)
}

func NewNodeTypeMismatch(loc Location, id, want, got string) *CompilerError {
	return newError(ErrNodeTypeMismatch, fmt.Sprintf("Node '%s' is not a %s", id, want), loc).
		WithExpected(want).
		WithActual(got)
}

func NewMissingAttribute(loc Location, attribute string) *CompilerError {
	return newError(ErrMissingAttribute, fmt.Sprintf("Required attribute '%s' is missing or not a constant", attribute), loc)
}
