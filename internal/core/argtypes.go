package core

// Value types a component argument can declare.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
	TypeElement = "element"
	TypeEvent   = "event"
)

// Editor controls that turn an argument into a slot.
const (
	ControlSlot  = "slot"
	ControlSlots = "slots"
)

// PropValueType describes the value an argument accepts.
type PropValueType struct {
	Type string   `json:"type"`
	Enum []string `json:"enum,omitempty"`
}

// ArgControl selects the editor control for an argument.
type ArgControl struct {
	Type string `json:"type,omitempty"`
}

// OnChangeHandler projects the arguments of a change event to the new
// value. ValueGetter is evaluated with Params bound by name.
type OnChangeHandler struct {
	Params      []string `json:"params"`
	ValueGetter string   `json:"valueGetter"`
}

// ArgTypeDefinition declares one argument of a component.
type ArgTypeDefinition struct {
	Name            string           `json:"name"`
	TypeDef         PropValueType    `json:"typeDef"`
	Control         ArgControl       `json:"control,omitempty"`
	OnChangeProp    string           `json:"onChangeProp,omitempty"`
	OnChangeHandler *OnChangeHandler `json:"onChangeHandler,omitempty"`
	DefaultValue    any              `json:"defaultValue,omitempty"`
	Memoize         bool             `json:"memoize,omitempty"`
}

// IsElement reports whether the argument holds child elements.
func (a ArgTypeDefinition) IsElement() bool {
	return a.TypeDef.Type == TypeElement || a.IsSlot()
}

// IsSlot reports whether the argument is edited as a slot.
func (a ArgTypeDefinition) IsSlot() bool {
	return a.Control.Type == ControlSlot || a.Control.Type == ControlSlots
}

// Controlled reports whether the argument is backed by page state.
func (a ArgTypeDefinition) Controlled() bool {
	return a.OnChangeProp != ""
}

// ArgTypeDefinitions is an ordered list of argument declarations.
type ArgTypeDefinitions []ArgTypeDefinition

// Get returns the declaration for name.
func (defs ArgTypeDefinitions) Get(name string) (ArgTypeDefinition, bool) {
	for _, d := range defs {
		if d.Name == name {
			return d, true
		}
	}
	return ArgTypeDefinition{}, false
}

// ComponentConfig is the capability a component advertises to the editor.
type ComponentConfig struct {
	ArgTypes    ArgTypeDefinitions `json:"argTypes"`
	ErrorProp   string             `json:"errorProp,omitempty"`
	LoadingProp string             `json:"loadingProp,omitempty"`
}
