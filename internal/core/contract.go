// Package core holds the contract shared by the page compiler and the live
// runtime: module names, marker props, the binding id scheme and the
// component argument types. Both sides import it so generated identifiers
// and the extractor's expectations cannot drift apart.
package core

import (
	"fmt"
	"net/url"
)

// Module names imported by generated pages.
const (
	ModuleReact      = "react"
	ModuleCore       = "@pagecraft/core"
	ModuleRuntime    = "@pagecraft/core/runtime"
	ModuleComponents = "@pagecraft/components"
)

// Marker props placed by editor builds and read back by the extractor.
const (
	RuntimePropNodeID = "data-pagecraft-node"
	RuntimePropSlots  = "data-pagecraft-slots"

	SlotTypeSingle   = "single"
	SlotTypeMultiple = "multiple"

	// NodeErrorProp carries the error caught by a node's runtime wrapper.
	NodeErrorProp = "nodeError"
)

// Host globals used as the JSX factory in lowered page code.
const (
	JSXFactory  = "__h"
	JSXFragment = "__Fragment"
)

// CodeComponentPrefix marks element components backed by a codeComponent node.
const CodeComponentPrefix = "codeComponent."

// BindingID builds the key under which a bound value is reported.
func BindingID(nodeID, namespace, key string) string {
	return nodeID + "." + namespace + "." + key
}

// DataURL is the base path a page's queries are fetched from.
func DataURL(appID, version string) string {
	return fmt.Sprintf("/data/%s/%s/", url.PathEscape(appID), url.PathEscape(version))
}

// DerivedStateModule is the import path of a derived state body.
func DerivedStateModule(nodeID string) string {
	return "../derivedState/" + nodeID + ".js"
}

// CodeComponentModule is the import path of a code component.
func CodeComponentModule(name string) string {
	return "../components/" + name + ".js"
}

// InitialDataQuery is the value of a query slot before its first fetch settles.
func InitialDataQuery() map[string]any {
	return map[string]any{
		"status":     "pending",
		"isLoading":  true,
		"isFetching": true,
		"error":      nil,
	}
}

// LiveBinding is the evaluated state of one binding.
type LiveBinding struct {
	Value any           `json:"value,omitempty"`
	Error *RuntimeError `json:"error,omitempty"`
}

// RuntimeError is a serializable error raised while rendering or evaluating.
type RuntimeError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func (e *RuntimeError) Error() string {
	return e.Message
}

// Evaluator evaluates expression text against named parameters. Every
// expression and value getter in a page goes through it.
type Evaluator interface {
	Eval(code string, scope map[string]any) (any, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(code string, scope map[string]any) (any, error)

func (f EvaluatorFunc) Eval(code string, scope map[string]any) (any, error) {
	return f(code, scope)
}
