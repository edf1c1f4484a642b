package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/contentpipe/internal/engine"
	"github.com/roach88/contentpipe/internal/ir"
	"github.com/roach88/contentpipe/internal/store"
)

// DocAddOptions holds flags for doc add.
type DocAddOptions struct {
	ID         string
	Project    string
	Title      string
	Keywords   []string
	TargetURL  string
	LastAction string
	BodyFile   string
}

// NewDocCommand creates the doc command group.
func NewDocCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Manage stored articles",
	}

	cmd.AddCommand(newDocAddCommand(rootOpts))
	cmd.AddCommand(newDocShowCommand(rootOpts))
	cmd.AddCommand(newDocListCommand(rootOpts))
	cmd.AddCommand(newDocSetBodyCommand(rootOpts))
	cmd.AddCommand(newDocHistoryCommand(rootOpts))
	cmd.AddCommand(newDocRollbackCommand(rootOpts))

	return cmd
}

func newDocAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DocAddOptions{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an article",
		Long: `Add an article to the store.

The body is read from --body-file ("-" for stdin). The article starts with
last action "generate" unless --last-action says otherwise.

Example:
  contentpipe doc add --project acme --title "Pricing guide" \
    --keywords pricing,saas --target-url /blog/pricing --body-file body.md`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			body, err := readBody(cmd, opts.BodyFile)
			if err != nil {
				_ = f.Error(ErrCodeInput, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to read body", err)
			}
			return withApp(rootOpts, f, func(app *App) error {
				return runDocAdd(cmd.Context(), app, f, opts, body)
			})
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "document id (default: generated)")
	cmd.Flags().StringVar(&opts.Project, "project", "", "owning project (required)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "article title (required)")
	cmd.Flags().StringSliceVar(&opts.Keywords, "keywords", nil, "comma-separated keywords")
	cmd.Flags().StringVar(&opts.TargetURL, "target-url", "", "published URL or path")
	cmd.Flags().StringVar(&opts.LastAction, "last-action", "generate", "last action applied")
	cmd.Flags().StringVar(&opts.BodyFile, "body-file", "", `file holding the body ("-" for stdin)`)
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func runDocAdd(ctx context.Context, app *App, f *OutputFormatter, opts *DocAddOptions, body string) error {
	id := opts.ID
	if id == "" {
		id = engine.UUIDv7Generator{}.Generate()
	}
	now := app.Clock.Now()
	doc := ir.Document{
		ID:           id,
		ProjectID:    opts.Project,
		Title:        opts.Title,
		Keywords:     opts.Keywords,
		Body:         body,
		TargetURL:    opts.TargetURL,
		LastAction:   opts.LastAction,
		LastActionAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := app.Store.CreateDocument(ctx, doc); err != nil {
		return f.Fail("failed to add document", err)
	}
	app.Logger.Info("document added", "document_id", id, "project_id", opts.Project)

	if f.JSON() {
		return f.Success(doc)
	}
	fmt.Fprintf(f.Writer, "Added document %s\n", id)
	return nil
}

func newDocShowCommand(rootOpts *RootOptions) *cobra.Command {
	var bodyOnly bool
	cmd := &cobra.Command{
		Use:           "show <document-id>",
		Short:         "Show an article",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			return withApp(rootOpts, f, func(app *App) error {
				doc, err := app.Store.GetDocument(cmd.Context(), args[0])
				if err != nil {
					return f.Fail("failed to load document", err)
				}
				if f.JSON() {
					return f.Success(doc)
				}
				if !bodyOnly {
					printDocumentHeader(f.Writer, doc)
					fmt.Fprintln(f.Writer)
				}
				fmt.Fprintln(f.Writer, doc.Body)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&bodyOnly, "body", false, "print only the body")
	return cmd
}

func printDocumentHeader(w io.Writer, doc ir.Document) {
	fmt.Fprintf(w, "ID:          %s\n", doc.ID)
	fmt.Fprintf(w, "Project:     %s\n", doc.ProjectID)
	fmt.Fprintf(w, "Title:       %s\n", doc.Title)
	if len(doc.Keywords) > 0 {
		fmt.Fprintf(w, "Keywords:    %s\n", strings.Join(doc.Keywords, ", "))
	}
	if doc.TargetURL != "" {
		fmt.Fprintf(w, "Target URL:  %s\n", doc.TargetURL)
	}
	fmt.Fprintf(w, "Last action: %s (%s)\n", doc.LastAction, doc.LastActionAt.Format("2006-01-02 15:04:05"))
	if len(doc.AppliedActions) > 0 {
		fmt.Fprintf(w, "Applied:     %s\n", strings.Join(doc.AppliedActions, ", "))
	}
}

func newDocListCommand(rootOpts *RootOptions) *cobra.Command {
	var project string
	var limit uint64
	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List articles, oldest last action first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			return withApp(rootOpts, f, func(app *App) error {
				docs, err := app.Store.ListDocuments(cmd.Context(), store.DocumentFilter{
					ProjectID: project,
					Limit:     limit,
				})
				if err != nil {
					return f.Fail("failed to list documents", err)
				}
				if f.JSON() {
					return f.Success(docs)
				}
				printDocumentRows(f.Writer, docs, 1)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "only this project")
	cmd.Flags().Uint64Var(&limit, "limit", 0, "maximum rows (0 = all)")
	return cmd
}

// printDocumentRows prints one numbered line per document starting at first.
func printDocumentRows(w io.Writer, docs []ir.Document, first int) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents.")
		return
	}
	for i, doc := range docs {
		fmt.Fprintf(w, "%4d. %-36s  %-20s  %s  %s\n",
			first+i, doc.ID, doc.LastAction, doc.LastActionAt.Format("2006-01-02 15:04"), doc.Title)
	}
}

func newDocSetBodyCommand(rootOpts *RootOptions) *cobra.Command {
	var bodyFile string
	cmd := &cobra.Command{
		Use:   "set-body <document-id>",
		Short: "Replace an article body (manual edit)",
		Long: `Replace an article body with an explicit user edit.

The edit does not change the last action. A run that is mid-action when
the body changes detects the conflict and retries against the new body.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			body, err := readBody(cmd, bodyFile)
			if err != nil {
				_ = f.Error(ErrCodeInput, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to read body", err)
			}
			return withApp(rootOpts, f, func(app *App) error {
				if err := app.Store.UpdateBody(cmd.Context(), args[0], body, app.Clock.Now()); err != nil {
					return f.Fail("failed to update body", err)
				}
				app.Logger.Info("document body edited", "document_id", args[0])
				if f.JSON() {
					return f.Success(map[string]string{"document_id": args[0]})
				}
				fmt.Fprintf(f.Writer, "Updated document %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bodyFile, "body-file", "-", `file holding the body ("-" for stdin)`)
	return cmd
}

func newDocHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history <document-id>",
		Short:         "List body snapshots, oldest first",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			return withApp(rootOpts, f, func(app *App) error {
				if _, err := app.Store.GetDocument(cmd.Context(), args[0]); err != nil {
					return f.Fail("failed to load document", err)
				}
				snaps, err := app.Store.ListSnapshots(cmd.Context(), args[0])
				if err != nil {
					return f.Fail("failed to list snapshots", err)
				}
				if f.JSON() {
					return f.Success(snaps)
				}
				if len(snaps) == 0 {
					fmt.Fprintln(f.Writer, "No snapshots.")
					return nil
				}
				for _, s := range snaps {
					origin := s.Action
					if s.RunID != "" {
						origin = s.RunID + " " + s.Action
					}
					fmt.Fprintf(f.Writer, "%4d  seq=%-4d %s  %-20s  %s  %s\n",
						s.ID, s.Seq, s.CreatedAt.Format("2006-01-02 15:04:05"), s.LastAction, shortHash(s.ContentHash), origin)
				}
				return nil
			})
		},
	}
}

func newDocRollbackCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <document-id> <snapshot-id>",
		Short: "Restore an article body from a snapshot",
		Long: `Restore the body and last action recorded in a snapshot.

The current body is snapshotted first, so a rollback can itself be rolled
back. Refused while the document has a pending or running run.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			snapID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				_ = f.Error(ErrCodeInput, fmt.Sprintf("invalid snapshot id %q", args[1]), nil)
				return WrapExitError(ExitCommandError, "invalid snapshot id", err)
			}
			return withApp(rootOpts, f, func(app *App) error {
				saved, err := app.Store.RestoreSnapshot(cmd.Context(), args[0], snapID, app.Clock.Now())
				if err != nil {
					return f.Fail("failed to restore snapshot", err)
				}
				app.Logger.Info("document rolled back",
					"document_id", args[0],
					"snapshot_id", snapID,
					"saved_snapshot_id", saved.ID)
				if f.JSON() {
					return f.Success(saved)
				}
				fmt.Fprintf(f.Writer, "Restored snapshot %d; previous body saved as snapshot %d\n", snapID, saved.ID)
				return nil
			})
		},
	}
}

// readBody reads a body from path, or from the command's stdin for "-".
// An empty path means an empty body.
func readBody(cmd *cobra.Command, path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	default:
		data, err := os.ReadFile(path)
		return string(data), err
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
