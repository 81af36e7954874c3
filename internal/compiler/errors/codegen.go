package errors

import "fmt"

// Code generation (GEN6xx)
var (
	ErrCodeGenFailed = register("GEN600", CategoryCodeGen, SeverityError,
		"code generation failed", "This is likely a compiler bug, please report it")
	ErrUnknownComponent = register("GEN601", CategoryCodeGen, SeverityError,
		"unknown component", "Use a built-in component or add a code component with this name")
	ErrUndeclaredProp = register("GEN602", CategoryCodeGen, SeverityError,
		"undeclared prop", "Remove the prop or declare it in the component's argTypes")
	ErrUndeclaredChildProp = register("GEN603", CategoryCodeGen, SeverityError,
		"children under a non-element prop", "")
	ErrImportsSealed = register("GEN604", CategoryCodeGen, SeverityError,
		"import after emission", "This is likely a compiler bug, please report it")
	ErrFormatFailed = register("GEN605", CategoryCodeGen, SeverityWarning,
		"pretty printing failed", "The unformatted module was kept")
	ErrReservedName = register("GEN606", CategoryCodeGen, SeverityError,
		"reserved node name", "Rename the node; 'page' holds the URL query parameters")
	ErrUndeclaredParam = register("GEN607", CategoryCodeGen, SeverityError,
		"undeclared param", "Declare the param in the derived state's argTypes or remove it")
)

// Bindings (BND8xx)
var (
	ErrUnknownBindableKind = register("BND800", CategoryBinding, SeverityWarning,
		"unknown bindable kind", "The value resolves to undefined in the generated page")
)

func NewCodeGenFailed(loc Location, reason string) *CompilerError {
	return newError(ErrCodeGenFailed, "Code generation failed: "+reason, loc)
}

func NewUnknownComponent(loc Location, component string) *CompilerError {
	return newError(ErrUnknownComponent, fmt.Sprintf("Element uses unknown component '%s'", component), loc)
}

func NewUndeclaredProp(loc Location, component, prop string) *CompilerError {
	return newError(ErrUndeclaredProp, fmt.Sprintf("Component '%s' does not declare prop '%s'", component, prop), loc)
}

func NewUndeclaredChildProp(loc Location, component, prop string) *CompilerError {
	return newError(ErrUndeclaredChildProp,
		fmt.Sprintf("Component '%s' has no element prop '%s' to hold children", component, prop), loc).
		WithExpected("a prop of type element, slot or slots")
}

func NewImportsSealed(loc Location, source string) *CompilerError {
	return newError(ErrImportsSealed, fmt.Sprintf("Import of '%s' requested after the import block was emitted", source), loc)
}

func NewFormatFailed(loc Location, reason string) *CompilerError {
	return newError(ErrFormatFailed, "Could not pretty print the module: "+reason, loc)
}

func NewReservedName(loc Location, name string) *CompilerError {
	return newError(ErrReservedName, fmt.Sprintf("Node name '%s' is reserved", name), loc)
}

func NewUndeclaredParam(loc Location, node, param string) *CompilerError {
	return newError(ErrUndeclaredParam, fmt.Sprintf("Derived state '%s' does not declare param '%s'", node, param), loc)
}

func NewUnknownBindableKind(loc Location, kind string) *CompilerError {
	return newError(ErrUnknownBindableKind, fmt.Sprintf("Unknown bindable kind '%s'", kind), loc)
}
