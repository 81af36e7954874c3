package codegen

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// format reprints module source through esbuild. No output format is set,
// so JSX and the module's import and export statements are kept as written.
func format(src string) (string, error) {
	result := api.Transform(src, api.TransformOptions{
		Loader:     api.LoaderJSX,
		JSX:        api.JSXPreserve,
		Sourcefile: "page.jsx",
		LogLevel:   api.LogLevelSilent,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, len(result.Errors))
		for i, m := range result.Errors {
			msgs[i] = m.Text
		}
		return "", fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return string(result.Code), nil
}
