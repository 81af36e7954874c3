package codegen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/bindings"
	cerrors "github.com/pagecraft-dev/pagecraft/internal/compiler/errors"
	"github.com/pagecraft-dev/pagecraft/internal/core"
)

// resolveBindable turns a bindable value into expression text. Expressions
// are wrapped in guarded evaluation keyed by bindingID; memoized constants
// are hoisted into a useMemo hook.
func (c *Context) resolveBindable(loc cerrors.Location, v *appdom.BindableValue, arg core.ArgTypeDefinition) string {
	if v == nil {
		return "undefined"
	}
	bindingID := core.BindingID(loc.NodeID, loc.Namespace, loc.Key)

	switch v.Kind {
	case appdom.KindConst:
		lit := c.literal(loc, v.Value)
		if !arg.Memoize {
			return lit
		}
		name := c.slotBinding(c.nodeName(loc.NodeID), loc.Key)
		c.memos = append(c.memos, fmt.Sprintf("const %s = %s.useMemo(() => (%s), []);", name, c.reactAlias, lit))
		return name
	case appdom.KindBinding:
		return c.guarded(bindingID, bindings.StateRef(v.Text()))
	case appdom.KindBoundExpression:
		parts := bindings.Parse(v.Text())
		code := bindings.Format(parts, v.Format == appdom.FormatStringLiteral, bindings.StateRef)
		return c.guarded(bindingID, code)
	case appdom.KindJSExpression:
		return c.guarded(bindingID, v.Text())
	default:
		c.warn(cerrors.NewUnknownBindableKind(loc, string(v.Kind)))
		return "undefined"
	}
}

// guarded wraps code in an evaluation that never throws. Editor builds
// record the outcome under bindingID.
func (c *Context) guarded(bindingID, code string) string {
	evalCode := c.coreImport("evalCode")
	call := fmt.Sprintf("%s(%s, %s)", evalCode, jsString(code), c.pageStateVar)
	if !c.config.Editor {
		return fmt.Sprintf("(() => { try { return %s; } catch (err) { return undefined; } })()", call)
	}
	return fmt.Sprintf(
		"(() => { let error, value; try { value = %s; } catch (err) { error = err; } finally { %s[%s] = { error, value }; } return value; })()",
		call, c.bindingsVar, jsString(bindingID),
	)
}

// literal encodes a constant as a JSON expression.
func (c *Context) literal(loc cerrors.Location, v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		c.fail(cerrors.NewCodeGenFailed(loc, "constant is not JSON-encodable").WithCause(err))
		return "undefined"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func (c *Context) nodeName(id string) string {
	if n, err := c.dom.Node(appdom.NodeID(id)); err == nil {
		return n.Name
	}
	return id
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

func propLocation(n *appdom.Node, ns appdom.Namespace, key string) cerrors.Location {
	return cerrors.Location{NodeID: string(n.ID), Namespace: string(ns), Key: key}
}
