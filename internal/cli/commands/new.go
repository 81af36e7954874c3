package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pagecraft-dev/pagecraft/internal/appdom"
	"github.com/pagecraft-dev/pagecraft/internal/cli/config"
	"github.com/pagecraft-dev/pagecraft/internal/store"
)

const defaultConfigFile = `# pagecraft configuration
server:
  host: localhost
  port: 3000
  # data queries per client and app; 0 disables limiting
  rate_limit:
    requests: 0
    window: 1m
documents:
  dir: apps
cache:
  backend: memory
  size: 256
log:
  level: info
  format: console
compile:
  pretty: false
runtime:
  eval_timeout: 250ms
  viewport_width: 1024
`

var appNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// validateAppName checks an app id is usable as a document file name
func validateAppName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) == 0 || len(name) > 100 {
		return fmt.Errorf("app name must be 1-100 characters")
	}
	if !appNamePattern.MatchString(name) {
		return fmt.Errorf("app name can only contain letters, numbers, dashes, and underscores")
	}
	return nil
}

// starterOptions describes the first document of a new app
type starterOptions struct {
	app        string
	page       string
	title      string
	sampleData bool
}

type newOptions struct {
	yes bool
	starterOptions
}

// NewNewCommand creates the new command
func NewNewCommand(global *globalOptions) *cobra.Command {
	opts := &newOptions{}

	cmd := &cobra.Command{
		Use:   "new [app]",
		Short: "Create a new app document",
		Long: `Create a starter app document in documents.dir.

The project directory gets a pagecraft.yml with default settings if it has
none. Without --yes you are prompted for the app name, the first page and
whether to include a sample data query.`,
		Example: `  pagecraft new shop
  pagecraft new shop --yes --page dashboard --title "Sales dashboard"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.app = args[0]
			}
			if !opts.yes {
				if err := promptStarter(&opts.starterOptions); err != nil {
					return err
				}
			}
			return runNew(cmd, global, &opts.starterOptions)
		},
	}

	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Accept defaults without prompting")
	cmd.Flags().StringVar(&opts.page, "page", "home", "Name of the first page")
	cmd.Flags().StringVar(&opts.title, "title", "", "Title of the first page (default: the app name)")
	cmd.Flags().BoolVar(&opts.sampleData, "sample-data", true, "Include a static data query and grid")

	return cmd
}

func promptStarter(opts *starterOptions) error {
	questions := []*survey.Question{
		{
			Name:   "app",
			Prompt: &survey.Input{Message: "App name:", Default: opts.app},
			Validate: func(ans interface{}) error {
				s, _ := ans.(string)
				return validateAppName(s)
			},
		},
		{
			Name:     "page",
			Prompt:   &survey.Input{Message: "First page:", Default: opts.page},
			Validate: survey.Required,
		},
		{
			Name:   "title",
			Prompt: &survey.Input{Message: "Page title (optional):", Default: opts.title},
		},
		{
			Name: "sampleData",
			Prompt: &survey.Confirm{
				Message: "Include a sample data query?",
				Default: opts.sampleData,
				Help:    "Adds a static api, a query state and a DataGrid bound to it",
			},
		},
	}

	answers := struct {
		App        string
		Page       string
		Title      string
		SampleData bool
	}{}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	opts.app = strings.TrimSpace(answers.App)
	opts.page = strings.TrimSpace(answers.Page)
	opts.title = answers.Title
	opts.sampleData = answers.SampleData
	return nil
}

func runNew(cmd *cobra.Command, global *globalOptions, opts *starterOptions) error {
	if err := validateAppName(opts.app); err != nil {
		return err
	}

	dir := global.projectDir()
	if !config.InProject(dir) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
		path := filepath.Join(dir, config.FileName+".yml")
		if err := os.WriteFile(path, []byte(defaultConfigFile), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	p, err := openProject(global)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := cmd.Context()
	if _, err := p.docs.Load(ctx, opts.app, store.Preview); err == nil {
		return fmt.Errorf("app %q already exists in %s", opts.app, p.docs.Dir())
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	doc, err := starterDocument(opts)
	if err != nil {
		return err
	}
	if err := p.docs.Save(ctx, opts.app, doc); err != nil {
		return err
	}

	path, _ := p.docs.Path(opts.app, store.Preview)
	out := cmd.OutOrStdout()
	color.New(color.FgGreen, color.Bold).Fprintf(out, "✓ Created app: %s\n\n", opts.app)
	color.New(color.FgCyan).Fprintf(out, "  Document: %s\n\n", path)
	color.New(color.FgYellow).Fprintln(out, "Next steps:")
	fmt.Fprintf(out, "  pagecraft inspect %s --page %s\n", opts.app, opts.page)
	fmt.Fprintln(out, "  pagecraft serve --watch")
	return nil
}

// starterDocument builds a page with a heading, a name field echoed by a
// greeting and, optionally, a grid fed by a static query
func starterDocument(opts *starterOptions) (*appdom.Document, error) {
	doc := appdom.New()
	title := opts.title
	if title == "" {
		title = opts.app
	}
	page := opts.page
	if page == "" {
		page = "home"
	}

	var errs []error
	add := func(t appdom.NodeType, parent appdom.NodeID, prop string, init appdom.NodeInit) *appdom.Node {
		n, err := doc.CreateNode(t, init)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if err := doc.AddNode(n, parent, prop); err != nil {
			errs = append(errs, err)
			return nil
		}
		return n
	}
	element := func(parent *appdom.Node, name, component string, props appdom.BindableValues) *appdom.Node {
		return add(appdom.TypeElement, parent.ID, appdom.ChildChildren, appdom.NodeInit{
			Name:       name,
			Attributes: appdom.BindableValues{"component": appdom.Const(component)},
			Props:      props,
		})
	}

	pageNode := add(appdom.TypePage, doc.RootID(), appdom.ChildPages, appdom.NodeInit{
		Name:       page,
		Attributes: appdom.BindableValues{"title": appdom.Const(title)},
	})
	if pageNode == nil {
		return nil, errors.Join(errs...)
	}

	element(pageNode, "heading", "Text", appdom.BindableValues{"value": appdom.Const(title)})
	element(pageNode, "nameField", "TextField", appdom.BindableValues{"label": appdom.Const("Your name")})
	element(pageNode, "greeting", "Text", appdom.BindableValues{
		"value": appdom.BoundExpression("Hello {{ nameField.value }}", appdom.FormatStringLiteral),
	})

	if opts.sampleData {
		api := add(appdom.TypeAPI, doc.RootID(), appdom.ChildAPIs, appdom.NodeInit{
			Name: "sampleApi",
			Attributes: appdom.BindableValues{
				"dataSource": appdom.Const("static"),
				"query": appdom.Const(map[string]any{"data": []any{
					map[string]any{"id": 1, "name": "Notebook", "price": 4.5},
					map[string]any{"id": 2, "name": "Pencil", "price": 1.2},
				}}),
			},
		})
		if api != nil {
			add(appdom.TypeQueryState, pageNode.ID, appdom.ChildQueryStates, appdom.NodeInit{
				Name:       "products",
				Attributes: appdom.BindableValues{"api": appdom.Const(string(api.ID))},
			})
			element(pageNode, "productsGrid", "DataGrid", appdom.BindableValues{
				"rows": appdom.JSExpression("products.data || []"),
				"columns": appdom.Const([]any{
					map[string]any{"field": "name"},
					map[string]any{"field": "price"},
				}),
				"loading": appdom.JSExpression("products.isLoading"),
			})
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return doc, nil
}
