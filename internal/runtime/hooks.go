package runtime

import (
	"context"
	"strconv"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

type hookKind int

const (
	hookState hookKind = iota
	hookEffect
	hookMemo
	hookRef
	hookStable
	hookQuery
)

// hook is one hook slot of a component fiber.
type hook struct {
	kind    hookKind
	value   goja.Value
	setter  goja.Value
	deps    []goja.Value
	hasDeps bool
	key     string
	cleanup func()
	cancel  context.CancelFunc
	dead    bool
}

func (hk *hook) release() {
	hk.dead = true
	if hk.cleanup != nil {
		hk.cleanup()
		hk.cleanup = nil
	}
	if hk.cancel != nil {
		hk.cancel()
		hk.cancel = nil
	}
}

// throw raises a JavaScript Error with msg from a native function.
func (h *Host) throw(msg string) {
	errorCtor := h.vm.Get("Error")
	obj, err := h.vm.New(errorCtor, h.vm.ToValue(msg))
	if err != nil {
		panic(h.vm.ToValue(msg))
	}
	panic(obj)
}

// rethrow propagates an error from a JavaScript callback.
func (h *Host) rethrow(err error) {
	if ex, ok := err.(*goja.Exception); ok {
		panic(ex.Value())
	}
	h.throw(err.Error())
}

// nextHook returns the current component's next hook slot and whether it
// was created by this call.
func (h *Host) nextHook(kind hookKind) (*hook, bool) {
	f := h.current
	if f == nil {
		h.throw("hooks can only be called while rendering a component")
	}
	idx := h.hookIdx
	h.hookIdx++
	if idx < len(f.hooks) {
		hk := f.hooks[idx]
		if hk.kind != kind {
			h.throw("hooks were called in a different order than on the previous render")
		}
		return hk, false
	}
	hk := &hook{kind: kind, value: goja.Undefined()}
	f.hooks = append(f.hooks, hk)
	return hk, true
}

// depsChanged reports whether deps differ from the hook's previous deps.
// Missing deps always count as changed.
func (h *Host) depsChanged(hk *hook, fresh bool, depsArg goja.Value) bool {
	next, ok := h.depsList(depsArg)
	changed := fresh || !ok || !hk.hasDeps || len(next) != len(hk.deps)
	if !changed {
		for i := range next {
			if !next[i].SameAs(hk.deps[i]) {
				changed = true
				break
			}
		}
	}
	if changed {
		hk.deps, hk.hasDeps = next, ok
	}
	return changed
}

func (h *Host) depsList(v goja.Value) ([]goja.Value, bool) {
	obj, ok := v.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return nil, false
	}
	n := int(get(obj, "length").ToInteger())
	out := make([]goja.Value, n)
	for i := 0; i < n; i++ {
		out[i] = get(obj, strconv.Itoa(i))
	}
	return out, true
}

func (h *Host) useState(call goja.FunctionCall) goja.Value {
	hk, fresh := h.nextHook(hookState)
	if fresh {
		initial := call.Argument(0)
		if fn, ok := goja.AssertFunction(initial); ok {
			v, err := fn(goja.Undefined())
			if err != nil {
				h.rethrow(err)
			}
			initial = v
		}
		hk.value = initial
		hk.setter = h.vm.ToValue(func(c goja.FunctionCall) goja.Value {
			h.setState(hk, c.Argument(0))
			return goja.Undefined()
		})
	}
	return h.vm.NewArray(hk.value, hk.setter)
}

// setState stores next, calling it with the previous value when it is a
// function, and schedules another render pass on change.
func (h *Host) setState(hk *hook, next goja.Value) {
	if hk.dead {
		return
	}
	if fn, ok := goja.AssertFunction(next); ok {
		v, err := fn(goja.Undefined(), hk.value)
		if err != nil {
			h.rethrow(err)
		}
		next = v
	}
	if next.SameAs(hk.value) {
		return
	}
	hk.value = next
	h.dirty = true
}

func (h *Host) useEffect(call goja.FunctionCall) goja.Value {
	hk, fresh := h.nextHook(hookEffect)
	if !h.depsChanged(hk, fresh, call.Argument(1)) {
		return goja.Undefined()
	}
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		h.throw("useEffect expects a function")
	}
	h.effects = append(h.effects, func() {
		if hk.cleanup != nil {
			hk.cleanup()
			hk.cleanup = nil
		}
		if hk.dead {
			return
		}
		res, err := fn(goja.Undefined())
		if err != nil {
			h.logger.Warn("effect failed", zap.Error(evalError(err)))
			return
		}
		if cleanup, ok := goja.AssertFunction(res); ok {
			hk.cleanup = func() {
				if _, err := cleanup(goja.Undefined()); err != nil {
					h.logger.Warn("effect cleanup failed", zap.Error(evalError(err)))
				}
			}
		}
	})
	return goja.Undefined()
}

func (h *Host) useMemo(call goja.FunctionCall) goja.Value {
	hk, fresh := h.nextHook(hookMemo)
	if h.depsChanged(hk, fresh, call.Argument(1)) {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			h.throw("useMemo expects a function")
		}
		v, err := fn(goja.Undefined())
		if err != nil {
			h.rethrow(err)
		}
		hk.value = v
	}
	return hk.value
}

func (h *Host) useCallback(call goja.FunctionCall) goja.Value {
	hk, fresh := h.nextHook(hookMemo)
	if h.depsChanged(hk, fresh, call.Argument(1)) {
		hk.value = call.Argument(0)
	}
	return hk.value
}

func (h *Host) useRef(call goja.FunctionCall) goja.Value {
	hk, fresh := h.nextHook(hookRef)
	if fresh {
		ref := h.vm.NewObject()
		_ = ref.Set("current", call.Argument(0))
		hk.value = ref
	}
	return hk.value
}

// useStableValue returns the previous value while the new one serializes
// to the same JSON.
func (h *Host) useStableValue(call goja.FunctionCall) goja.Value {
	hk, fresh := h.nextHook(hookStable)
	next := call.Argument(0)
	encoded, err := h.jsonStringify(goja.Undefined(), next)
	if err != nil {
		hk.value = next
		hk.key = ""
		return next
	}
	if fresh || encoded.String() != hk.key {
		hk.value = next
		hk.key = encoded.String()
	}
	return hk.value
}
