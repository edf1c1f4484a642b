package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/contentpipe/internal/catalog"
	"github.com/roach88/contentpipe/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Actions   int                        `json:"actions,omitempty"`
	Pipelines []string                   `json:"pipelines,omitempty"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [catalog]",
		Short: "Validate an action catalog",
		Long: `Validate a CUE action catalog (a .cue file or a directory of them).

Compiles every action and pipeline and reports all validation errors:
unknown output modes, missing or broken templates, unknown pipeline
actions, unregistered local routines and negative pricing. Without an
argument the catalog path from the config file is used.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := loadConfig(rootOpts)
				if err != nil {
					_ = f.Error(ErrCodeConfig, err.Error(), nil)
					return WrapExitError(ExitCommandError, "failed to load config", err)
				}
				path = cfg.Catalog.Path
			}
			return runValidate(f, path)
		},
	}

	return cmd
}

func runValidate(formatter *OutputFormatter, path string) error {
	formatter.VerboseLog("Loading catalog %s", path)
	cat, err := catalog.Load(path, routineNames())
	if err != nil {
		var invalid *catalog.InvalidError
		switch {
		case errors.As(err, &invalid):
			return outputValidationErrors(formatter, invalid.Errors)
		case errors.Is(err, fs.ErrNotExist):
			return outputValidateError(formatter, ErrCodeNotFound, fmt.Sprintf("catalog not found: %s", path))
		default:
			// CUE syntax and schema errors surface as a single compile error.
			return outputValidationErrors(formatter, []compiler.ValidationError{{
				Field:   "catalog",
				Message: err.Error(),
				Code:    ErrCodeCatalog,
			}})
		}
	}

	// Output success
	return outputValidateSuccess(formatter, cat)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, cat *catalog.Catalog) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{
			Valid:     true,
			Actions:   len(cat.Actions()),
			Pipelines: cat.Pipelines(),
		})
	}

	fmt.Fprintf(formatter.Writer, "✓ Catalog valid: %d action(s), %d pipeline(s)\n",
		len(cat.Actions()), len(cat.Pipelines()))
	return nil
}

// outputValidateError outputs a single command-level error (exit code 2).
func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
