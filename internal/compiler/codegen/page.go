package codegen

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	cerrors "github.com/pagecraft-dev/pagecraft/internal/compiler/errors"
)

// Result is the outcome of a successful compile.
type Result struct {
	Source   string
	Warnings cerrors.ErrorList
}

// CompilePage compiles page pageID of dom into module source text.
func CompilePage(appID string, dom *appdom.Document, pageID appdom.NodeID, config RenderConfig, opts ...Option) (string, error) {
	res, err := Compile(appID, dom, pageID, config, opts...)
	if err != nil {
		return "", err
	}
	return res.Source, nil
}

// Compile is CompilePage returning the recovered warnings as well.
func Compile(appID string, dom *appdom.Document, pageID appdom.NodeID, config RenderConfig, opts ...Option) (*Result, error) {
	page, err := dom.NodeOfType(pageID, appdom.TypePage)
	if err != nil {
		loc := cerrors.Location{PageID: string(pageID), NodeID: string(pageID)}
		var mismatch *appdom.TypeMismatchError
		if errors.As(err, &mismatch) {
			return nil, cerrors.NewNodeTypeMismatch(loc, string(pageID), string(appdom.TypePage), string(mismatch.Got)).
				WithApp(appID).WithCause(err)
		}
		return nil, cerrors.NewNodeNotFound(loc, string(pageID)).WithApp(appID).WithCause(err)
	}

	c := newContext(appID, dom, page, config, opts...)
	src := c.render()
	if c.err != nil {
		return nil, c.err
	}

	if config.Pretty {
		formatted, err := format(src)
		if err != nil {
			c.warn(cerrors.NewFormatFailed(cerrors.Location{NodeID: string(page.ID)}, err.Error()).WithCause(err))
		} else {
			src = formatted
		}
	}
	return &Result{Source: src, Warnings: c.warnings}, nil
}

// render emits the whole module. The body is produced first so every
// import it needs is registered before the registry is sealed.
func (c *Context) render() string {
	c.collectAllState()

	root := c.renderRoot()

	body := newWriter()
	body.indent = 1
	c.renderStateHooks(body)
	body.blank()
	c.renderPageState(body)
	body.blank()
	c.renderStateEffects(body)
	for _, memo := range c.memos {
		body.line("%s", memo)
	}
	if c.config.Editor {
		body.line("%s.useDiagnostics(%s, %s);", c.runtimeAlias, c.pageStateVar, c.bindingsVar)
	}
	body.blank()
	body.line("return (")
	body.indent++
	body.line("%s", root)
	body.indent--
	body.line(");")

	c.imports.Seal()

	var out strings.Builder
	out.WriteString(c.imports.Render())
	out.WriteString("\n")
	out.WriteString(c.moduleHeader())
	out.WriteString("export default function App() {\n")
	out.WriteString(body.String())
	out.WriteString("}\n")
	return out.String()
}

// writer accumulates indented lines.
type writer struct {
	buf    *bytes.Buffer
	indent int
}

func newWriter() *writer {
	return &writer{buf: &bytes.Buffer{}}
}

func (w *writer) line(format string, args ...any) {
	w.buf.WriteString(strings.Repeat("  ", w.indent))
	fmt.Fprintf(w.buf, format, args...)
	w.buf.WriteString("\n")
}

// blank adds an empty line unless the previous line already is one.
func (w *writer) blank() {
	b := w.buf.Bytes()
	if len(b) == 0 || bytes.HasSuffix(b, []byte("\n\n")) {
		return
	}
	w.buf.WriteString("\n")
}

func (w *writer) String() string {
	return w.buf.String()
}
