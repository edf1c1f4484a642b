package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// WorkerOptions holds flags for the worker command.
type WorkerOptions struct {
	Workers int
	Drain   bool
}

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WorkerOptions{}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Advance pending and running runs",
		Long: `Start the job runner. Every pending or running run in the database is
queued at start-up, so runs interrupted by a crash resume from their last
committed action.

With --drain the worker exits once the queued runs are finished; otherwise
it runs until interrupted.

Example:
  contentpipe worker --config contentpipe.yaml
  contentpipe worker --drain --workers 8`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			return withApp(rootOpts, f, func(app *App) error {
				return runWorker(cmd, app, f, opts)
			})
		},
	}

	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent workers (default from config)")
	cmd.Flags().BoolVar(&opts.Drain, "drain", false, "exit when the queue is empty")

	return cmd
}

func runWorker(cmd *cobra.Command, app *App, f *OutputFormatter, opts *WorkerOptions) error {
	runner := app.Runner
	if opts.Workers > 0 {
		runner = app.newRunner(opts.Workers)
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			app.Logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	n, err := runner.ResumePending(ctx, app.Store)
	if err != nil {
		return f.Fail("failed to queue runs", err)
	}
	f.Printf("Queued %d run(s).\n", n)
	if opts.Drain {
		runner.Stop()
	} else {
		f.Printf("Press Ctrl-C to stop.\n")
	}

	if err := runner.Run(ctx); err != nil {
		return f.Fail("runner error", err)
	}

	if f.JSON() {
		return f.Success(map[string]int{"queued": n})
	}
	fmt.Fprintln(f.Writer, "Worker stopped.")
	return nil
}
