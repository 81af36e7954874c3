package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/cli/ui"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/codegen"
	"github.com/pagecraft-dev/pagecraft/internal/runtime"
	"github.com/pagecraft-dev/pagecraft/internal/store"
)

type inspectOptions struct {
	version string
	page    string
	query   string
	timeout time.Duration
}

// NewInspectCommand creates the inspect command
func NewInspectCommand(global *globalOptions) *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect <app>",
		Short: "List pages or print the live view state of a page",
		Long: `Without --page, list the pages of an app.

With --page, render the page headlessly from its editor build, wait for its
data queries to settle and print the view-state snapshot as JSON: rendered
nodes with their props and layout, binding values and errors, and page state.`,
		Example: `  # List pages
  pagecraft inspect shop

  # Print the view state of the orders page with a URL query
  pagecraft inspect shop --page orders --query "tab=open"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.version, "version", store.Preview, "App version to inspect")
	cmd.Flags().StringVarP(&opts.page, "page", "p", "", "Page name or id to render")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "URL query string of the page, e.g. \"tab=open\"")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Maximum time to wait for data queries")

	return cmd
}

func runInspect(cmd *cobra.Command, global *globalOptions, opts *inspectOptions, appID string) error {
	p, err := openProject(global)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := cmd.Context()
	doc, err := p.load(ctx, appID, opts.version, global.noColor)
	if err != nil {
		return err
	}

	if opts.page == "" {
		listPages(cmd, doc, appID, opts.version, global.noColor)
		return nil
	}

	page, err := findPage(doc, appID, opts.page, global.noColor)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	host, err := p.render(ctx, appID, opts.version, doc, page.ID, opts.query)
	if err != nil {
		return err
	}
	defer host.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(host.ViewState())
}

// render runs the editor build of a page until its queries settle
func (p *project) render(ctx context.Context, appID, version string, doc *appdom.Document, pageID appdom.NodeID, rawQuery string) (*runtime.Host, error) {
	res, err := p.compiler.CompilePage(ctx, appID, doc, pageID, codegen.RenderConfig{Editor: true, Version: version})
	if err != nil {
		return nil, err
	}

	exec := p.executor()
	queries, err := runtime.NewQueryClient(runtime.FetcherFunc(
		func(ctx context.Context, _, apiID string, params map[string]any) (any, error) {
			return exec.ExecuteIn(ctx, doc, apiID, params)
		}), 0)
	if err != nil {
		return nil, err
	}
	location, err := runtime.NewLocation(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid --query: %w", err)
	}

	opts := append([]runtime.Option{
		runtime.WithLogger(p.logger),
		runtime.WithDocument(doc),
		runtime.WithQueryClient(queries),
		runtime.WithLocation(location),
	}, p.hostOptions()...)
	host, err := runtime.New(opts...)
	if err != nil {
		return nil, err
	}
	if err := host.Load(res.Source); err != nil {
		host.Close()
		return nil, fmt.Errorf("load page %s: %w", pageID, err)
	}
	if err := host.Render(); err != nil {
		host.Close()
		return nil, fmt.Errorf("render page %s: %w", pageID, err)
	}
	if err := host.Settle(ctx); err != nil {
		host.Close()
		return nil, fmt.Errorf("settle page %s: %w", pageID, err)
	}
	return host, nil
}

func listPages(cmd *cobra.Command, doc *appdom.Document, appID, version string, noColor bool) {
	w := cmd.OutOrStdout()
	ui.Header(w, fmt.Sprintf("%s@%s", appID, version), noColor)
	ui.KeyValues(w, noColor,
		[2]string{"Pages", fmt.Sprint(len(doc.Pages()))},
		[2]string{"APIs", fmt.Sprint(len(doc.Children(doc.App(), appdom.ChildAPIs)))},
		[2]string{"Components", fmt.Sprint(len(doc.Children(doc.App(), appdom.ChildCodeComponents)))},
	)
	fmt.Fprintln(w)
	table := ui.NewTable(w, noColor, "PAGE", "ID", "TITLE", "ELEMENTS")
	for _, page := range doc.Pages() {
		elements := 0
		for _, n := range doc.Descendants(page) {
			if n.Type == appdom.TypeElement {
				elements++
			}
		}
		table.AddRow(page.Name, string(page.ID), page.StringAttribute("title"), fmt.Sprint(elements))
	}
	table.Render()
}
