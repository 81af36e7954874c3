package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pagecraft-dev/pagecraft/internal/cli/ui"
	"github.com/pagecraft-dev/pagecraft/internal/compiler/codegen"
	"github.com/pagecraft-dev/pagecraft/internal/store"
	"github.com/pagecraft-dev/pagecraft/internal/watch"
)

type compileOptions struct {
	version string
	page    string
	editor  bool
	pretty  bool
	out     string
}

// NewCompileCommand creates the compile command
func NewCompileCommand(global *globalOptions) *cobra.Command {
	opts := &compileOptions{}

	cmd := &cobra.Command{
		Use:   "compile <app>",
		Short: "Compile the pages of an app",
		Long: `Compile every page of a stored app document into a JavaScript module.

Pages are written to <out>/<app>/<version>/<page>.js. With --page, the
single page module is printed to stdout instead.`,
		Example: `  # Compile the preview document of the shop app
  pagecraft compile shop

  # Compile a released version with readable output
  pagecraft compile shop --version v3 --pretty

  # Print the editor build of one page
  pagecraft compile shop --page home --editor`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.version, "version", store.Preview, "App version to compile")
	cmd.Flags().StringVarP(&opts.page, "page", "p", "", "Print a single page (name or id) to stdout")
	cmd.Flags().BoolVar(&opts.editor, "editor", false, "Produce the editor build with live diagnostics")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", false, "Format the generated code (default from compile.pretty)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output directory (default from compile.out_dir)")

	return cmd
}

func runCompile(cmd *cobra.Command, global *globalOptions, opts *compileOptions, appID string) error {
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

	pretty := p.config.Compile.Pretty
	if cmd.Flags().Changed("pretty") {
		pretty = opts.pretty
	}

	if opts.page != "" {
		page, err := findPage(doc, appID, opts.page, global.noColor)
		if err != nil {
			return err
		}
		config := codegen.RenderConfig{Editor: opts.editor, Pretty: pretty, Version: opts.version}
		res, err := p.compiler.CompilePage(ctx, appID, doc, page.ID, config)
		if err != nil {
			return compileFailed(err, global.noColor)
		}
		fmt.Fprint(cmd.OutOrStdout(), res.Source)
		return nil
	}

	w := cmd.OutOrStdout()
	if len(doc.Pages()) == 0 {
		fmt.Fprint(w, ui.Warning(fmt.Sprintf("%s@%s has no pages", appID, opts.version), global.noColor))
	}

	builder := &watch.Builder{Compiler: p.compiler, OutDir: p.outDir(opts.out), Editor: opts.editor, Pretty: pretty}
	var res *watch.BuildResult
	label := fmt.Sprintf("Compiling %s@%s", appID, opts.version)
	err = ui.WithSpinner(cmd.ErrOrStderr(), label, global.noColor, func() error {
		var err error
		res, err = builder.Build(ctx, store.AppVersion{AppID: appID, Version: opts.version}, doc)
		return err
	})
	if err != nil {
		return compileFailed(err, global.noColor)
	}

	table := ui.NewTable(w, global.noColor, "PAGE", "FILE")
	for _, f := range res.Files {
		table.AddRow(strings.TrimSuffix(filepath.Base(f), ".js"), f)
	}
	table.Render()
	fmt.Fprintln(w)
	ui.WriteSuccess(w, fmt.Sprintf("Compiled %d pages of %s@%s in %s",
		len(res.Files), appID, opts.version, res.Duration.Round(time.Millisecond)), global.noColor)
	return nil
}
