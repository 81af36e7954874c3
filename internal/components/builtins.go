package components

import "github.com/pagecraft-dev/pagecraft/internal/core"

// PageRoot is the component every page renders its children into.
const PageRoot = "Stack"

func arg(name, typ string) core.ArgTypeDefinition {
	return core.ArgTypeDefinition{Name: name, TypeDef: core.PropValueType{Type: typ}}
}

func slots(name string) core.ArgTypeDefinition {
	a := arg(name, core.TypeElement)
	a.Control.Type = core.ControlSlots
	return a
}

func slot(name string) core.ArgTypeDefinition {
	a := arg(name, core.TypeElement)
	a.Control.Type = core.ControlSlot
	return a
}

func controlled(name, typ, onChange, getter string, def any) core.ArgTypeDefinition {
	a := arg(name, typ)
	a.OnChangeProp = onChange
	if getter != "" {
		a.OnChangeHandler = &core.OnChangeHandler{Params: []string{"event"}, ValueGetter: getter}
	}
	a.DefaultValue = def
	return a
}

func memo(a core.ArgTypeDefinition) core.ArgTypeDefinition {
	a.Memoize = true
	return a
}

func enum(name string, values ...string) core.ArgTypeDefinition {
	a := arg(name, core.TypeString)
	a.TypeDef.Enum = values
	return a
}

func builtin(id string, args ...core.ArgTypeDefinition) Definition {
	return Definition{
		ID:     id,
		Module: core.ModuleComponents,
		Export: id,
		Config: core.ComponentConfig{ArgTypes: args},
	}
}

// Builtins returns the components served by the components module.
func Builtins() []Definition {
	grid := builtin("DataGrid",
		memo(arg("rows", core.TypeArray)),
		memo(arg("columns", core.TypeArray)),
		controlled("selection", core.TypeObject, "onSelectionChange", "", nil),
		arg("loading", core.TypeBoolean),
	)
	grid.Config.LoadingProp = "loading"

	return []Definition{
		builtin("Stack",
			enum("direction", "row", "column"),
			arg("alignItems", core.TypeString),
			arg("gap", core.TypeNumber),
			arg("sx", core.TypeObject),
			slots("children"),
		),
		builtin("Paper", slot("children")),
		builtin("Button",
			arg("content", core.TypeString),
			enum("variant", "contained", "outlined", "text"),
			arg("disabled", core.TypeBoolean),
			arg("onClick", core.TypeEvent),
		),
		builtin("Text", arg("value", core.TypeString)),
		builtin("TextField",
			arg("label", core.TypeString),
			controlled("value", core.TypeString, "onChange", "event.target.value", ""),
		),
		builtin("Checkbox",
			arg("label", core.TypeString),
			controlled("checked", core.TypeBoolean, "onChange", "event.target.checked", false),
		),
		builtin("Select",
			arg("label", core.TypeString),
			memo(arg("options", core.TypeArray)),
			controlled("value", core.TypeString, "onChange", "event.target.value", ""),
		),
		grid,
		builtin("Image", arg("src", core.TypeString), arg("alt", core.TypeString)),
	}
}
