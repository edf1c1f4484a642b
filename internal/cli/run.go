package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/contentpipe/internal/engine"
	"github.com/roach88/contentpipe/internal/ir"
	"github.com/roach88/contentpipe/internal/store"
)

// RunCreateOptions holds flags for run create.
type RunCreateOptions struct {
	Document string
	Project  string
	Pipeline string
	Enhance  bool
	Advance  bool
}

// NewRunCommand creates the run command group.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create, advance and inspect pipeline runs",
	}

	cmd.AddCommand(newRunCreateCommand(rootOpts))
	cmd.AddCommand(newRunAdvanceCommand(rootOpts))
	cmd.AddCommand(newRunCancelCommand(rootOpts))
	cmd.AddCommand(newRunStatusCommand(rootOpts))
	cmd.AddCommand(newRunListCommand(rootOpts))

	return cmd
}

func newRunCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunCreateOptions{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a run for a document or a project",
		Long: `Resolve a pipeline for a document (or a whole project) and persist a
pending run. The resolved action list is frozen at creation.

Example:
  contentpipe run create --doc 0190c3c2-... --pipeline default
  contentpipe run create --project acme --pipeline site --advance`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			if (opts.Document == "") == (opts.Project == "") {
				_ = f.Error(ErrCodeInput, "exactly one of --doc or --project is required", nil)
				return NewExitError(ExitCommandError, "exactly one of --doc or --project is required")
			}
			return withApp(rootOpts, f, func(app *App) error {
				run, err := app.Engine.CreateRun(cmd.Context(), engine.CreateRunRequest{
					DocumentID: opts.Document,
					ProjectID:  opts.Project,
					Pipeline:   opts.Pipeline,
					Enhance:    opts.Enhance,
				})
				if err != nil {
					return f.Fail("failed to create run", err)
				}
				if !opts.Advance {
					if f.JSON() {
						return f.Success(engine.Project(run))
					}
					fmt.Fprintf(f.Writer, "Created run %s (%s)\n", run.ID, strings.Join(run.Actions, " → "))
					return nil
				}
				f.Printf("Created run %s\n", run.ID)
				return advance(cmd, app, f, run.ID)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Document, "doc", "", "target document id")
	cmd.Flags().StringVar(&opts.Project, "project", "", "target project (project-level run)")
	cmd.Flags().StringVar(&opts.Pipeline, "pipeline", "", "pipeline name (required)")
	cmd.Flags().BoolVar(&opts.Enhance, "enhance", false, "keep only forcible actions")
	cmd.Flags().BoolVar(&opts.Advance, "advance", false, "advance the run to completion now")
	_ = cmd.MarkFlagRequired("pipeline")

	return cmd
}

func newRunAdvanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "advance <run-id>",
		Short: "Advance a run to a terminal state",
		Long: `Advance a run synchronously, retrying transient provider failures
with the configured backoff. Exits 1 when the run ends failed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			return withApp(rootOpts, f, func(app *App) error {
				return advance(cmd, app, f, args[0])
			})
		},
	}
}

// advance drives runID through the runner's retry loop and prints the
// final status.
func advance(cmd *cobra.Command, app *App, f *OutputFormatter, runID string) error {
	run, err := app.Runner.Process(cmd.Context(), runID)
	if err != nil {
		return f.Fail("failed to advance run", err)
	}
	view := engine.Project(run)
	if f.JSON() {
		if err := f.Success(view); err != nil {
			return err
		}
	} else {
		printStatus(f.Writer, view)
	}
	if run.Status == ir.RunFailed {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: run %s failed at %s", ErrCodeRunFailed, run.ID, run.FailedAction))
	}
	return nil
}

func newRunCancelCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Request cancellation of a run",
		Long: `Request cancellation. The run stops before its next action; an action
already in flight still commits.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			return withApp(rootOpts, f, func(app *App) error {
				if err := app.Engine.Cancel(cmd.Context(), args[0]); err != nil {
					return f.Fail("failed to cancel run", err)
				}
				if f.JSON() {
					return f.Success(map[string]any{"run_id": args[0], "cancel_requested": true})
				}
				fmt.Fprintf(f.Writer, "Cancellation requested for run %s\n", args[0])
				return nil
			})
		},
	}
}

func newRunStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status <run-id>",
		Short:         "Show run progress, results and cost",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			return withApp(rootOpts, f, func(app *App) error {
				view, err := app.Engine.Status(cmd.Context(), args[0])
				if err != nil {
					return f.Fail("failed to load run", err)
				}
				if f.JSON() {
					return f.Success(view)
				}
				printStatus(f.Writer, view)
				return nil
			})
		},
	}
}

func printStatus(w io.Writer, v engine.StatusView) {
	fmt.Fprintf(w, "Run:      %s\n", v.RunID)
	if v.DocumentID != "" {
		fmt.Fprintf(w, "Document: %s\n", v.DocumentID)
	} else {
		fmt.Fprintf(w, "Project:  %s\n", v.ProjectID)
	}
	fmt.Fprintf(w, "Pipeline: %s\n", v.Pipeline)
	fmt.Fprintf(w, "Status:   %s (%d/%d, %.0f%%)\n", v.Status, v.CurrentIndex, v.ActionCount, v.Progress)
	if v.CurrentAction != "" {
		fmt.Fprintf(w, "Next:     %s\n", v.CurrentAction)
	}
	if v.CancelRequested && !v.Status.Terminal() {
		fmt.Fprintln(w, "Cancel:   requested")
	}
	if v.LastError != "" {
		fmt.Fprintf(w, "Retry:    attempt %d, last error: %s\n", v.Attempts, v.LastError)
	}
	if v.FailedAction != "" {
		fmt.Fprintf(w, "Failed:   %s: %s\n", v.FailedAction, v.ErrorMessage)
	}
	for _, r := range v.Results {
		mark := "✓"
		if !r.Success {
			mark = "✗"
		}
		detail := "unchanged"
		if r.Changed {
			detail = "changed"
		}
		if r.Error != "" {
			detail = r.Error
		}
		estimated := ""
		if r.Estimated {
			estimated = " (est.)"
		}
		fmt.Fprintf(w, "  %s %-24s $%.6f  %d tokens%s  %s\n", mark, r.Action, r.Cost, r.Tokens(), estimated, detail)
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "      warning: %s\n", warning)
		}
	}
	fmt.Fprintf(w, "Total:    $%.6f, %d tokens\n", v.Summary.TotalCost, v.Summary.TotalTokens)
}

func newRunListCommand(rootOpts *RootOptions) *cobra.Command {
	var statuses []string
	var filter store.RunFilter
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List runs, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			for _, s := range statuses {
				filter.Statuses = append(filter.Statuses, ir.RunStatus(s))
			}
			return withApp(rootOpts, f, func(app *App) error {
				runs, err := app.Store.ListRuns(cmd.Context(), filter)
				if err != nil {
					return f.Fail("failed to list runs", err)
				}
				views := make([]engine.StatusView, len(runs))
				for i, run := range runs {
					views[i] = engine.Project(run)
				}
				if f.JSON() {
					return f.Success(views)
				}
				if len(views) == 0 {
					fmt.Fprintln(f.Writer, "No runs.")
					return nil
				}
				for _, v := range views {
					target := v.DocumentID
					if target == "" {
						target = "project:" + v.ProjectID
					}
					fmt.Fprintf(f.Writer, "%-36s  %-9s  %3.0f%%  %-12s  %s\n",
						v.RunID, v.Status, v.Progress, v.Pipeline, target)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only these statuses (pending,running,completed,failed,cancelled)")
	cmd.Flags().StringVar(&filter.DocumentID, "doc", "", "only runs of this document")
	cmd.Flags().StringVar(&filter.ProjectID, "project", "", "only runs of this project")
	cmd.Flags().Uint64Var(&filter.Limit, "limit", 0, "maximum rows (0 = all)")
	return cmd
}
