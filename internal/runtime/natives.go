package runtime

import (
	"context"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/pagecraft-dev/pagecraft/internal/core"
)

// evalCode evaluates an expression through the host's Evaluator and throws
// on failure so guarded evaluation can record it.
func (h *Host) evalCode(call goja.FunctionCall) goja.Value {
	code := call.Argument(0).String()
	v, err := h.evaluator.Eval(code, exportScope(call.Argument(1)))
	if err != nil {
		rt := runtimeError(err)
		h.logger.Debug("binding evaluation failed", zap.String("code", code), zap.String("error", rt.Message))
		h.throw(rt.Message)
	}
	return h.toJS(v)
}

// useUrlQueryState returns [value, setter] for a URL query parameter.
func (h *Host) useUrlQueryState(call goja.FunctionCall) goja.Value {
	param := call.Argument(0).String()
	dflt := call.Argument(1)

	value := dflt
	if v, ok := h.location.Get(param); ok {
		value = h.toJS(v)
	}

	setter, ok := h.urlSetters[param]
	if !ok {
		setter = h.vm.ToValue(func(c goja.FunctionCall) goja.Value {
			before := h.location.Query()
			h.location.Set(param, jsonSafe(c.Argument(0).Export()), jsonSafe(dflt.Export()))
			if h.location.Query() != before {
				h.dirty = true
			}
			return goja.Undefined()
		})
		h.urlSetters[param] = setter
	}
	return h.vm.NewArray(value, setter)
}

// useDataQuery fetches apiID with params after commit and feeds the result
// into setter. A new fetch starts whenever the params change; responses for
// superseded params are dropped.
func (h *Host) useDataQuery(call goja.FunctionCall) goja.Value {
	hk, fresh := h.nextHook(hookQuery)
	hk.setter = call.Argument(0)
	dataURL := call.Argument(1).String()
	apiID := call.Argument(2).String()
	params := exportScope(call.Argument(3))

	key := QueryKey(dataURL, apiID, params)
	if !fresh && hk.key == key {
		return goja.Undefined()
	}
	hk.key = key
	h.effects = append(h.effects, func() {
		h.startQuery(hk, key, dataURL, apiID, params)
	})
	return goja.Undefined()
}

type queryResult struct {
	hook *hook
	key  string
	data any
	err  error
}

func (h *Host) startQuery(hk *hook, key, dataURL, apiID string, params map[string]any) {
	if hk.dead || hk.key != key {
		return
	}
	if hk.cancel != nil {
		hk.cancel()
	}
	ctx, cancel := context.WithCancel(h.ctx)
	hk.cancel = cancel
	h.pending++
	go func() {
		data, err := h.queries.Fetch(ctx, dataURL, apiID, params)
		select {
		case h.inbox <- queryResult{hook: hk, key: key, data: data, err: err}:
		case <-h.ctx.Done():
		}
	}()
}

// applyQuery hands a settled result to the page, unless its hook moved on.
func (h *Host) applyQuery(r queryResult) error {
	h.pending--
	if r.hook.dead || r.hook.key != r.key {
		return nil
	}
	if r.err != nil {
		h.logger.Debug("query failed", zap.String("key", r.key), zap.Error(r.err))
	}
	setter, ok := goja.AssertFunction(r.hook.setter)
	if !ok {
		return nil
	}
	_, err := setter(goja.Undefined(), h.toJS(queryValue(r.data, r.err)))
	return err
}

// useDiagnostics keeps references to the page state and binding results of
// the current render. They are exported on demand.
func (h *Host) useDiagnostics(call goja.FunctionCall) goja.Value {
	h.diagPage = call.Argument(0)
	h.diagBindings = call.Argument(1)
	return goja.Undefined()
}

// LiveBindings reports the outcome of every guarded evaluation of the last
// render. Only editor builds record them.
func (h *Host) LiveBindings() map[string]core.LiveBinding {
	out := make(map[string]core.LiveBinding)
	obj, ok := h.diagBindings.(*goja.Object)
	if !ok {
		return out
	}
	for _, id := range obj.Keys() {
		entry, ok := get(obj, id).(*goja.Object)
		if !ok {
			continue
		}
		b := core.LiveBinding{Value: h.exportValue(get(entry, "value"))}
		if errVal := get(entry, "error"); !isNullish(errVal) {
			b.Error = h.jsError(errVal)
		}
		out[id] = b
	}
	return out
}

// PageState reports the page state object of the last render.
func (h *Host) PageState() map[string]any {
	if state, ok := h.exportValue(h.diagPage).(map[string]any); ok {
		return state
	}
	return map[string]any{}
}

func (h *Host) jsError(v goja.Value) *core.RuntimeError {
	obj, ok := v.(*goja.Object)
	if !ok {
		return &core.RuntimeError{Message: v.String()}
	}
	rt := &core.RuntimeError{Message: v.String()}
	if msg := get(obj, "message"); !isNullish(msg) {
		rt.Message = msg.String()
	}
	if stack := get(obj, "stack"); !isNullish(stack) {
		rt.Stack = stack.String()
	}
	return rt
}
