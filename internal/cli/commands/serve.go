package commands

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagecraft-dev/pagecraft/internal/server"
	"github.com/pagecraft-dev/pagecraft/internal/store"
	"github.com/pagecraft-dev/pagecraft/internal/watch"
)

type serveOptions struct {
	host  string
	port  int
	watch bool
}

// NewServeCommand creates the serve command
func NewServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve compiled pages, data queries and the editor bridge",
		Long: `Start the pagecraft HTTP server.

Routes:
  GET /healthz                                   health check
  GET /pages/{app}/{version}/{page}.js           compiled page module
  GET /data/{app}/{version}/{query}?params=...   data query
  GET /bridge/{app}/{page}                       editor canvas websocket

With --watch, saving a preview document pushes it to open canvases.`,
		Example: `  # Serve on the configured address
  pagecraft serve

  # Serve on all interfaces and follow document edits
  pagecraft serve --host 0.0.0.0 --port 8080 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, global, opts, nil)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "Listen host (default from server.host)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Listen port (default from server.port)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Push saved preview documents to open canvases")

	return cmd
}

// runServe serves until ctx is done. A nil listener listens on the
// configured address.
func runServe(ctx context.Context, cmd *cobra.Command, global *globalOptions, opts *serveOptions, listener net.Listener) error {
	p, err := openProject(global)
	if err != nil {
		return err
	}
	defer p.Close()

	if opts.host != "" {
		p.config.Server.Host = opts.host
	}
	if opts.port != 0 {
		p.config.Server.Port = opts.port
	}

	cfg := server.DefaultConfig(p.docs)
	cfg.Address = p.config.Server.Address()
	cfg.BasePath = p.config.Server.BasePath
	cfg.DataSources = p.registry
	cfg.Compiler = p.compiler
	cfg.HostOptions = p.hostOptions()
	cfg.Logger = p.logger
	limiter, err := p.rateLimiter()
	if err != nil {
		return err
	}
	if limiter != nil {
		cfg.RateLimiter = limiter
	}

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}

	if opts.watch {
		dw, err := watch.NewDocumentWatcher(p.docs, func(c watch.Change) {
			if c.Err != nil || c.Ref.Version != store.Preview {
				return
			}
			n := srv.Hub().NotifyDocument(c.Ref.AppID, c.Document)
			p.logger.Info("document updated", zap.String("app", c.Ref.AppID), zap.Int("canvases", n))
		}, p.logger)
		if err != nil {
			return err
		}
		if err := dw.Start(); err != nil {
			return err
		}
		defer dw.Stop()
	}

	address := cfg.Address
	if listener != nil {
		address = listener.Addr().String()
	}
	out := cmd.OutOrStdout()
	banner := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(out)
	banner.Fprintln(out, "📦 Pagecraft server")
	fmt.Fprintf(out, "   Listening: http://%s%s\n", address, cfg.BasePath)
	fmt.Fprintf(out, "   Documents: %s\n", p.docs.Dir())
	if rl := p.config.Server.RateLimit; rl.Requests > 0 {
		fmt.Fprintf(out, "   Rate limit: %d queries per %s\n", rl.Requests, rl.Window)
	}
	if opts.watch {
		fmt.Fprintln(out, "   Watching documents for changes")
	}
	fmt.Fprintln(out)
	color.New(color.FgYellow).Fprintln(out, "⌨️  Press Ctrl+C to stop")

	if listener != nil {
		err = srv.Serve(ctx, listener)
	} else {
		err = srv.ListenAndServe(ctx)
	}
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintln(out, "Goodbye!")
	return nil
}
