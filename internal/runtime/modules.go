package runtime

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/core"
)

const (
	derivedStatePrefix  = "../derivedState/"
	codeComponentPrefix = "../components/"
)

// ModuleSource supplies the source of modules a page imports by path.
type ModuleSource interface {
	Source(path string) (string, bool)
}

// MapModules is a ModuleSource backed by a map.
type MapModules map[string]string

func (m MapModules) Source(path string) (string, bool) {
	src, ok := m[path]
	return src, ok
}

// DocumentModules serves derived state bodies and code components from an
// App Document.
type DocumentModules struct {
	Doc *appdom.Document
}

func (d DocumentModules) Source(path string) (string, bool) {
	if d.Doc == nil {
		return "", false
	}
	if id, ok := strings.CutPrefix(path, derivedStatePrefix); ok {
		n, err := d.Doc.NodeOfType(appdom.NodeID(strings.TrimSuffix(id, ".js")), appdom.TypeDerivedState)
		if err != nil {
			return "", false
		}
		return n.StringAttribute("code"), true
	}
	if name, ok := strings.CutPrefix(path, codeComponentPrefix); ok {
		name = strings.TrimSuffix(name, ".js")
		for _, n := range d.Doc.Children(d.Doc.App(), appdom.ChildCodeComponents) {
			if n.Name == name {
				return n.StringAttribute("code"), true
			}
		}
	}
	return "", false
}

// require resolves a module for page code. Built-in modules are created by
// the host; everything else comes from the ModuleSource.
func (h *Host) require(name string) (goja.Value, error) {
	if mod, ok := h.moduleCache[name]; ok {
		return mod, nil
	}
	src, ok := h.modules.Source(name)
	if !ok {
		return nil, fmt.Errorf("module %q not found", name)
	}
	mod, err := h.evalModule(name, src)
	if err != nil {
		if !strings.HasPrefix(name, codeComponentPrefix) {
			return nil, err
		}
		h.logger.Debug("code component failed to load", zap.String("module", name), zap.Error(err))
		broken := h.vm.NewObject()
		_ = broken.Set("__loadError", err.Error())
		mod = broken
	} else if strings.HasPrefix(name, codeComponentPrefix) {
		h.registerCodeComponent(name, mod)
	}
	h.moduleCache[name] = mod
	return mod, nil
}

// evalModule transpiles src and runs it as a CommonJS module.
func (h *Host) evalModule(name, src string) (goja.Value, error) {
	code, err := Transpile(name, src)
	if err != nil {
		return nil, err
	}
	wrapped, err := h.vm.RunScript(name, "(function (module, exports, require, "+
		core.JSXFactory+", "+core.JSXFragment+") {\n"+code+"\n})")
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	fn, ok := goja.AssertFunction(wrapped)
	if !ok {
		return nil, fmt.Errorf("load %s: module wrapper is not callable", name)
	}

	module := h.vm.NewObject()
	exports := h.vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}
	if _, err := fn(goja.Undefined(), module, exports, h.requireFn, h.factory(), h.fragment()); err != nil {
		return nil, fmt.Errorf("load %s: %w", name, evalError(err))
	}
	return get(module, "exports"), nil
}

func (h *Host) factory() goja.Value {
	if h.createElement == nil {
		return goja.Undefined()
	}
	return h.createElement
}

func (h *Host) fragment() goja.Value {
	if h.fragmentType == nil {
		return goja.Undefined()
	}
	return h.fragmentType
}

// registerCodeComponent records the argument contract of a loaded code
// component so the walker can report it.
func (h *Host) registerCodeComponent(path string, mod goja.Value) {
	if h.doc == nil {
		return
	}
	name := strings.TrimSuffix(strings.TrimPrefix(path, codeComponentPrefix), ".js")
	def, err := h.catalog.Resolve(h.doc, core.CodeComponentPrefix+name)
	if err != nil {
		return
	}
	obj, ok := mod.(*goja.Object)
	if !ok {
		return
	}
	if fn := get(obj, "default"); !goja.IsUndefined(fn) {
		cfg := def.Config
		h.configs = append(h.configs, componentConfig{fn: fn, config: &cfg})
	}
}
