package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/cache"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/codegen"
	"github.com/pagecraft-dev/pagecraft/internal/store"
)

// BuildResult describes one build of an app version.
type BuildResult struct {
	Ref      store.AppVersion
	Files    []string
	Metrics  *cache.CompilationMetrics
	Duration time.Duration
}

// Builder compiles every page of a document into OutDir as
// <app>/<version>/<page name>.js.
type Builder struct {
	Compiler *cache.Coordinator
	OutDir   string
	Editor   bool
	Pretty   bool
}

// Build compiles doc and writes its pages. Nothing is written when any page
// fails to compile.
func (b *Builder) Build(ctx context.Context, ref store.AppVersion, doc *appdom.Document) (*BuildResult, error) {
	start := time.Now()
	config := codegen.RenderConfig{Editor: b.Editor, Pretty: b.Pretty, Version: ref.Version}

	results, metrics, err := b.Compiler.CompileApp(ctx, ref.AppID, doc, config)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(b.OutDir, ref.AppID, ref.Version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	out := &BuildResult{Ref: ref, Metrics: metrics}
	for _, res := range results {
		page, err := doc.Node(res.PageID)
		if err != nil {
			return nil, err
		}
		name := page.Name
		if name == "" {
			name = string(page.ID)
		}
		path := filepath.Join(dir, name+".js")
		if err := os.WriteFile(path, []byte(res.Source), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		out.Files = append(out.Files, path)
	}
	out.Duration = time.Since(start)
	return out, nil
}
