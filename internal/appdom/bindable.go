package appdom

import (
	"encoding/json"
	"fmt"
)

// BindableKind tags the variant held by a BindableValue.
type BindableKind string

const (
	KindConst           BindableKind = "const"
	KindBinding         BindableKind = "binding"
	KindBoundExpression BindableKind = "boundExpression"
	KindJSExpression    BindableKind = "jsExpression"
)

// FormatStringLiteral renders a bound expression as a string template.
const FormatStringLiteral = "stringLiteral"

// BindableValue is a property value that is either a constant or an
// expression evaluated against page state at render time.
type BindableValue struct {
	Kind   BindableKind `json:"type"`
	Value  any          `json:"value"`
	Format string       `json:"format,omitempty"`
}

// Const wraps a JSON-encodable constant.
func Const(v any) *BindableValue {
	return &BindableValue{Kind: KindConst, Value: v}
}

// Binding refers to a dotted path into page state.
func Binding(path string) *BindableValue {
	return &BindableValue{Kind: KindBinding, Value: path}
}

// BoundExpression is a template with {{ ref }} references.
func BoundExpression(template, format string) *BindableValue {
	return &BindableValue{Kind: KindBoundExpression, Value: template, Format: format}
}

// JSExpression is an arbitrary expression evaluated against page state.
func JSExpression(code string) *BindableValue {
	return &BindableValue{Kind: KindJSExpression, Value: code}
}

// Text returns the expression payload of a non-constant value.
func (b *BindableValue) Text() string {
	s, _ := b.Value.(string)
	return s
}

// Validate checks that exactly one known variant is held and that its
// payload has the right shape.
func (b *BindableValue) Validate() error {
	if b == nil {
		return fmt.Errorf("bindable value is nil")
	}
	switch b.Kind {
	case KindConst:
		if _, err := json.Marshal(b.Value); err != nil {
			return fmt.Errorf("const value is not JSON-encodable: %w", err)
		}
		if b.Format != "" {
			return fmt.Errorf("const value cannot carry a format")
		}
	case KindBinding, KindJSExpression:
		if _, ok := b.Value.(string); !ok {
			return fmt.Errorf("%s value must be a string, got %T", b.Kind, b.Value)
		}
		if b.Format != "" {
			return fmt.Errorf("%s value cannot carry a format", b.Kind)
		}
	case KindBoundExpression:
		if _, ok := b.Value.(string); !ok {
			return fmt.Errorf("boundExpression value must be a string, got %T", b.Value)
		}
		if b.Format != "" && b.Format != FormatStringLiteral {
			return fmt.Errorf("unknown boundExpression format %q", b.Format)
		}
	default:
		return fmt.Errorf("unknown bindable value type %q", b.Kind)
	}
	return nil
}

// UnmarshalJSON decodes and validates a bindable value.
func (b *BindableValue) UnmarshalJSON(data []byte) error {
	type raw BindableValue
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	v := BindableValue(r)
	if err := v.Validate(); err != nil {
		return err
	}
	*b = v
	return nil
}

// Clone returns a deep copy of b.
func (b *BindableValue) Clone() *BindableValue {
	if b == nil {
		return nil
	}
	c := *b
	c.Value = cloneJSON(b.Value)
	return &c
}

func cloneJSON(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = cloneJSON(e)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, e := range x {
			s[i] = cloneJSON(e)
		}
		return s
	default:
		return v
	}
}
