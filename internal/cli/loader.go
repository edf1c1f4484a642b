package cli

import (
	"fmt"
	"log/slog"

	"github.com/roach88/contentpipe/internal/catalog"
	"github.com/roach88/contentpipe/internal/config"
	"github.com/roach88/contentpipe/internal/engine"
	"github.com/roach88/contentpipe/internal/executor"
	"github.com/roach88/contentpipe/internal/jobs"
	"github.com/roach88/contentpipe/internal/logging"
	"github.com/roach88/contentpipe/internal/provider"
	"github.com/roach88/contentpipe/internal/store"
)

// App is the wired set of components one command works with.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Store   *store.Store
	Catalog *catalog.Catalog
	Engine  *engine.Engine
	Runner  *jobs.Runner
	Clock   engine.Clock
}

// loadConfig reads the config file named by the global flags. --verbose
// forces debug logging.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, err
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// openApp loads configuration, the catalog and the store, then wires the
// provider, executor, engine and runner. Logs go to the formatter's error
// writer; load failures are reported through the formatter. The caller
// must Close the App.
func openApp(opts *RootOptions, f *OutputFormatter) (*App, error) {
	fail := func(code, message string, err error) (*App, error) {
		_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), nil)
		return nil, WrapExitError(ExitCommandError, message, err)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fail(ErrCodeConfig, "failed to load config", err)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, f.GetErrWriter())

	client, err := newClient(cfg.Provider, logger)
	if err != nil {
		return fail(ErrCodeConfig, "failed to build provider", err)
	}

	// The catalog is validated against the routines the executor can run,
	// and the executor renders the catalog's templates.
	cat, err := catalog.Load(cfg.Catalog.Path, routineNames())
	if err != nil {
		return fail(ErrCodeCatalog, "failed to load catalog", err)
	}
	logger.Debug("catalog loaded", "path", cfg.Catalog.Path, "pipelines", len(cat.Pipelines()))

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fail(ErrCodeStore, "failed to open database", err)
	}
	logger.Debug("database ready", "path", cfg.Database.Path)

	clock := engine.SystemClock{}
	exec := executor.New(cat, client, executor.WithLogger(logger))
	eng := engine.New(st, cat, exec,
		engine.WithClock(clock),
		engine.WithLogger(logger))
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Store:   st,
		Catalog: cat,
		Engine:  eng,
		Clock:   clock,
	}
	app.Runner = app.newRunner(cfg.Jobs.Workers)
	return app, nil
}

// newRunner builds a job runner over the engine with the configured retry
// policy.
func (a *App) newRunner(workers int) *jobs.Runner {
	return jobs.New(a.Engine,
		jobs.WithWorkers(workers),
		jobs.WithPolicy(jobs.BackoffPolicy{
			MaxAttempts: a.Config.Jobs.MaxAttempts,
			Initial:     a.Config.Jobs.InitialBackoff.Duration(),
			Max:         a.Config.Jobs.MaxBackoff.Duration(),
			Multiplier:  a.Config.Jobs.Multiplier,
		}),
		jobs.WithLogger(a.Logger))
}

// Close releases the database.
func (a *App) Close() error {
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("error closing database", "error", err)
		return err
	}
	return nil
}

func newClient(cfg config.ProviderConfig, logger *slog.Logger) (provider.Client, error) {
	switch cfg.Kind {
	case config.ProviderScripted:
		return provider.LoadScript(cfg.Script)
	case config.ProviderOpenAI:
		return provider.NewOpenAI(provider.OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout.Duration(),
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", cfg.Kind)
	}
}

// withApp opens the App, runs fn, and closes it.
func withApp(opts *RootOptions, f *OutputFormatter, fn func(app *App) error) error {
	app, err := openApp(opts, f)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

// routineNames lists the local routines a catalog may reference.
func routineNames() []string {
	routines := executor.DefaultRoutines()
	names := make([]string, 0, len(routines))
	for name := range routines {
		names = append(names, name)
	}
	return names
}
