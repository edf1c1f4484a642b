package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/contentpipe/internal/engine"
	"github.com/roach88/contentpipe/internal/ir"
	"github.com/roach88/contentpipe/internal/selector"
	"github.com/roach88/contentpipe/internal/store"
)

// SelectOptions holds flags for the select command.
type SelectOptions struct {
	Action   string
	Project  string
	Input    string
	Window   int
	Create   bool
	Pipeline string
	Enhance  bool
}

// SelectResult is the JSON payload of the select command.
type SelectResult struct {
	Eligible int               `json:"eligible"`
	Selected []string          `json:"selected"`
	Created  []string          `json:"created,omitempty"`
	Skipped  map[string]string `json:"skipped,omitempty"`
}

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SelectOptions{}

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Pick eligible articles for an action",
		Long: `List the articles eligible for an action (their last action is one the
action accepts), oldest first, and select some of them.

Selection input:
  1,3,5   items of the displayed window
  51:50   50 articles starting at rank 51 of the full list
  all     every eligible article
  q       nothing

Without --input the window is printed and the selection is read from stdin.
With --create a run of --pipeline is created for each selected article;
articles that already have an active run are skipped.

Example:
  contentpipe select --action add-faq --project acme --input 51:50 --create --pipeline faq`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			if opts.Create && opts.Pipeline == "" {
				_ = f.Error(ErrCodeInput, "--create needs --pipeline", nil)
				return NewExitError(ExitCommandError, "--create needs --pipeline")
			}
			return withApp(rootOpts, f, func(app *App) error {
				return runSelect(cmd, app, f, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Action, "action", "", "action to select articles for (required)")
	cmd.Flags().StringVar(&opts.Project, "project", "", "only this project")
	cmd.Flags().StringVar(&opts.Input, "input", "", "selection (default: read from stdin)")
	cmd.Flags().IntVar(&opts.Window, "window", 0, "displayed window size (default from config)")
	cmd.Flags().BoolVar(&opts.Create, "create", false, "create a run for each selected article")
	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", "", "pipeline for created runs")
	cmd.Flags().BoolVar(&opts.Enhance, "enhance", false, "created runs keep only forcible actions")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

func runSelect(cmd *cobra.Command, app *App, f *OutputFormatter, opts *SelectOptions) error {
	ctx := cmd.Context()

	accepts, err := app.Catalog.Accepts(opts.Action)
	if err != nil {
		return f.Fail("failed to resolve action", err)
	}
	docs, err := app.Store.ListDocuments(ctx, store.DocumentFilter{
		ProjectID:   opts.Project,
		LastActions: accepts,
	})
	if err != nil {
		return f.Fail("failed to list documents", err)
	}
	eligible := selector.Eligible(docs, accepts)

	window := opts.Window
	if window <= 0 {
		window = app.Config.Selector.Window
	}

	input := opts.Input
	if input == "" {
		f.Printf("%d article(s) eligible for %s\n", len(eligible), opts.Action)
		if !f.JSON() {
			printDocumentRows(f.Writer, selector.Window(eligible, window), 1)
		}
		f.Printf("Select (1,3,5 | N:M | all | q): ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return f.Fail("failed to read selection", err)
		}
		input = strings.TrimSpace(line)
	}

	selected, err := selector.Select(input, eligible, window)
	if err != nil {
		return f.Fail("invalid selection", err)
	}
	app.Logger.Info("articles selected",
		"action", opts.Action,
		"eligible", len(eligible),
		"selected", len(selected))

	result := SelectResult{Eligible: len(eligible), Selected: documentIDs(selected)}
	if opts.Create {
		result.Created, result.Skipped, err = createRuns(cmd, app, opts, selected)
		if err != nil {
			return f.Fail("failed to create runs", err)
		}
	}

	if f.JSON() {
		return f.Success(result)
	}
	if len(selected) == 0 {
		fmt.Fprintln(f.Writer, "Nothing selected.")
		return nil
	}
	fmt.Fprintf(f.Writer, "Selected %d article(s)\n", len(selected))
	if opts.Create {
		fmt.Fprintf(f.Writer, "Created %d run(s)\n", len(result.Created))
		for id, reason := range result.Skipped {
			fmt.Fprintf(f.Writer, "  skipped %s: %s\n", id, reason)
		}
	}
	return nil
}

// createRuns creates one run per document. Conflicts and documents deleted
// since listing are skipped; any other error aborts.
func createRuns(cmd *cobra.Command, app *App, opts *SelectOptions, docs []ir.Document) ([]string, map[string]string, error) {
	created := []string{}
	skipped := map[string]string{}
	for _, doc := range docs {
		run, err := app.Engine.CreateRun(cmd.Context(), engine.CreateRunRequest{
			DocumentID: doc.ID,
			Pipeline:   opts.Pipeline,
			Enhance:    opts.Enhance,
		})
		switch {
		case err == nil:
			created = append(created, run.ID)
		case errors.Is(err, engine.ErrConflict), errors.Is(err, engine.ErrDocumentGone):
			skipped[doc.ID] = err.Error()
		default:
			return created, skipped, err
		}
	}
	return created, skipped, nil
}

func documentIDs(docs []ir.Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}
