package runtime

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/pagecraft-dev/pagecraft/internal/core"
)

// TranspileError reports esbuild diagnostics for a module.
type TranspileError struct {
	Module   string
	Messages []string
}

func (e *TranspileError) Error() string {
	return fmt.Sprintf("transpile %s: %s", e.Module, strings.Join(e.Messages, "; "))
}

// Transpile lowers a JSX ES module into a CommonJS body that the host can
// wrap and evaluate. JSX calls go to the host's element factory.
func Transpile(name, src string) (string, error) {
	result := api.Transform(src, api.TransformOptions{
		Loader:      api.LoaderJSX,
		Format:      api.FormatCommonJS,
		JSX:         api.JSXTransform,
		JSXFactory:  core.JSXFactory,
		JSXFragment: core.JSXFragment,
		Target:      api.ES2015,
		Sourcefile:  name,
		LogLevel:    api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, len(result.Errors))
		for i, m := range result.Errors {
			if m.Location != nil {
				msgs[i] = fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text)
			} else {
				msgs[i] = m.Text
			}
		}
		return "", &TranspileError{Module: name, Messages: msgs}
	}
	return string(result.Code), nil
}
