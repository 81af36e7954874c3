package runtime

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"

	"github.com/dop251/goja"

	"github.com/pagecraft-dev/pagecraft/internal/viewstate"
)

const maxExportDepth = 32

// jsonSafe drops values that cannot be encoded as JSON: functions go away
// and non-finite numbers become null.
func jsonSafe(v any) any {
	switch x := v.(type) {
	case nil, bool, string, int64, int, int32:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			if isFunc(item) {
				continue
			}
			out[k] = jsonSafe(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = jsonSafe(item)
		}
		return out
	}
	if isFunc(v) {
		return nil
	}
	return v
}

func isFunc(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.Func
}

// get reads a property, mapping a missing property to undefined.
func get(obj *goja.Object, name string) goja.Value {
	if obj == nil {
		return goja.Undefined()
	}
	v := obj.Get(name)
	if v == nil {
		return goja.Undefined()
	}
	return v
}

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// toJS converts a Go value into a plain JavaScript value. Composite values
// go through JSON so the page sees ordinary objects and arrays.
func (h *Host) toJS(v any) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Undefined()
	case goja.Value:
		return x
	case map[string]any, []any:
		data, err := json.Marshal(jsonSafe(x))
		if err != nil {
			return goja.Undefined()
		}
		out, err := h.jsonParse(goja.Undefined(), h.vm.ToValue(string(data)))
		if err != nil {
			return goja.Undefined()
		}
		return out
	}
	return h.vm.ToValue(v)
}

// exportValue converts a page value for reporting. Functions and elements
// become viewstate.Opaque.
func (h *Host) exportValue(v goja.Value) any {
	return h.export(v, 0)
}

func (h *Host) export(v goja.Value, depth int) any {
	if isNullish(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return jsonSafe(v.Export())
	}
	if _, fn := goja.AssertFunction(obj); fn {
		return viewstate.Opaque{Kind: "function"}
	}
	if h.isElement(obj) {
		return viewstate.Opaque{Kind: "element"}
	}
	if depth >= maxExportDepth {
		return viewstate.Opaque{Kind: "object"}
	}
	if obj.ClassName() == "Array" {
		n := int(get(obj, "length").ToInteger())
		out := make([]any, n)
		for i := 0; i < n; i++ {
			out[i] = h.export(get(obj, strconv.Itoa(i)), depth+1)
		}
		return out
	}
	if obj.ClassName() != "Object" {
		return jsonSafe(obj.Export())
	}
	keys := obj.Keys()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = h.export(get(obj, k), depth+1)
	}
	return out
}

// exportScope converts an evaluation scope object into plain Go data.
func exportScope(v goja.Value) map[string]any {
	if isNullish(v) {
		return map[string]any{}
	}
	scope, ok := jsonSafe(v.Export()).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return scope
}

func (h *Host) isElement(obj *goja.Object) bool {
	marker := get(obj, "$$typeof")
	return !goja.IsUndefined(marker) && marker.SameAs(h.elementMarker)
}
