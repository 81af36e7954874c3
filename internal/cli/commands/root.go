package commands

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	cerrors "github.com/pagecraft-dev/pagecraft/internal/compiler/errors"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	dir      string
	logLevel string
	noColor  bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "pagecraft",
		Short: "Compile and preview low-code app pages",
		Long: color.CyanString(`Pagecraft - page compiler for low-code apps

Pagecraft turns App Documents into runnable page modules and serves them,
together with their data queries and a live editor canvas.

Features:
  • Editor and production page builds
  • Live binding values over a websocket bridge
  • Headless page rendering for inspection
  • Memory or redis page cache`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.dir, "dir", "C", "", "Project directory holding pagecraft.yml (default: nearest one above the working directory)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewNewCommand(opts))
	rootCmd.AddCommand(NewCompileCommand(opts))
	rootCmd.AddCommand(NewServeCommand(opts))
	rootCmd.AddCommand(NewWatchCommand(opts))
	rootCmd.AddCommand(NewInspectCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the pagecraft version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			out := cmd.OutOrStdout()
			titleColor := color.New(color.FgCyan, color.Bold)

			titleColor.Fprint(out, "Pagecraft version: ")
			fmt.Fprintln(out, Version)
			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		reportError(rootCmd.ErrOrStderr(), err, color.NoColor)
		return err
	}
	return nil
}

// reportError prints err the most helpful way it knows
func reportError(w io.Writer, err error, noColor bool) {
	var msgErr *messageError
	if errors.As(err, &msgErr) {
		msgErr.msg.Write(w)
		return
	}
	var compileErr *cerrors.CompilerError
	if errors.As(err, &compileErr) {
		fmt.Fprint(w, cerrors.FormatError(compileErr))
		return
	}
	errorColor := color.New(color.FgRed, color.Bold)
	if noColor {
		errorColor.DisableColor()
	}
	errorColor.Fprintf(w, "Error: %v\n", err)
}
