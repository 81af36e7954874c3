package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pagecraft-dev/pagecraft/internal/cli/ui"
	"github.com/pagecraft-dev/pagecraft/internal/store"
	"github.com/pagecraft-dev/pagecraft/internal/watch"
)

type watchOptions struct {
	editor bool
	out    string
	// ready, when set, is called once the initial build is done
	ready func()
}

// NewWatchCommand creates the watch command
func NewWatchCommand(global *globalOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [app]",
		Short: "Recompile pages whenever a document is saved",
		Long: `Build every stored document, then rebuild each one as it changes.

Without an app argument all apps in documents.dir are watched. Output goes
to compile.out_dir unless --out is given.`,
		Example: `  # Rebuild all apps on save
  pagecraft watch

  # Rebuild only the shop app, with editor builds
  pagecraft watch shop --editor`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			app := ""
			if len(args) == 1 {
				app = args[0]
			}
			return runWatch(ctx, cmd, global, opts, app)
		},
	}

	cmd.Flags().BoolVar(&opts.editor, "editor", false, "Produce editor builds")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Output directory (default from compile.out_dir)")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, global *globalOptions, opts *watchOptions, app string) error {
	p, err := openProject(global)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := os.MkdirAll(p.docs.Dir(), 0o755); err != nil {
		return fmt.Errorf("create documents directory: %w", err)
	}

	out := p.outDir(opts.out)
	builder := &watch.Builder{Compiler: p.compiler, OutDir: out, Editor: opts.editor, Pretty: p.config.Compile.Pretty}

	// Reports come from the watcher goroutine as well as this one
	var mu sync.Mutex
	w := cmd.OutOrStdout()
	report := func(ref store.AppVersion, res *watch.BuildResult, err error) {
		mu.Lock()
		defer mu.Unlock()
		reportBuild(w, ref, res, err, global.noColor)
	}

	refs, err := p.docs.List()
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if app != "" && ref.AppID != app {
			continue
		}
		doc, err := p.docs.Load(ctx, ref.AppID, ref.Version)
		if err != nil {
			report(ref, nil, err)
			continue
		}
		res, err := builder.Build(ctx, ref, doc)
		report(ref, res, err)
	}

	dw, err := watch.NewDocumentWatcher(p.docs, func(c watch.Change) {
		if app != "" && c.Ref.AppID != app {
			return
		}
		if c.Err != nil {
			report(c.Ref, nil, c.Err)
			return
		}
		res, err := builder.Build(ctx, c.Ref, c.Document)
		report(c.Ref, res, err)
	}, p.logger)
	if err != nil {
		return err
	}
	if err := dw.Start(); err != nil {
		return err
	}
	defer dw.Stop()

	mu.Lock()
	color.New(color.FgCyan, color.Bold).Fprintf(w, "👀 Watching %s\n", p.docs.Dir())
	color.New(color.FgYellow).Fprintln(w, "⌨️  Press Ctrl+C to stop")
	mu.Unlock()
	if opts.ready != nil {
		opts.ready()
	}

	<-ctx.Done()
	return nil
}

func reportBuild(w io.Writer, ref store.AppVersion, res *watch.BuildResult, err error, noColor bool) {
	name := ref.AppID + "@" + ref.Version
	if err != nil {
		ui.Message{Level: ui.LevelError, Context: "build failed", Problem: name, Detail: err.Error(), NoColor: noColor}.Write(w)
		return
	}
	ui.WriteSuccess(w, fmt.Sprintf("%s: %d pages in %s (cache hit rate %.0f%%)",
		name, len(res.Files), res.Duration.Round(time.Millisecond), res.Metrics.CacheHitRate()), noColor)
}
