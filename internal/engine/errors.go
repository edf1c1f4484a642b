package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict is matched by ConflictError via errors.Is.
	ErrConflict = errors.New("document has an active run")

	// ErrRunNotFound is returned when a run id does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrDocumentGone is returned when the target document of a run does
	// not exist (at creation, or deleted while the run was in flight).
	ErrDocumentGone = errors.New("document no longer exists")

	// ErrRunTerminal is returned by Cancel on a completed, failed or
	// cancelled run.
	ErrRunTerminal = errors.New("run is terminal")
)

// ConflictError reports an attempt to start a second run on a document
// that already has a pending or running one.
type ConflictError struct {
	DocumentID string
	RunID      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("document %s already has active run %s", e.DocumentID, e.RunID)
}

// Is makes errors.Is(err, ErrConflict) succeed.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConfigErrorCode categorizes configuration errors raised at run creation.
type ConfigErrorCode string

const (
	// ErrCodeUnknownPipeline indicates the requested pipeline is not in the catalog.
	ErrCodeUnknownPipeline ConfigErrorCode = "UNKNOWN_PIPELINE"

	// ErrCodeEmptyPipeline indicates exclusions removed every action.
	ErrCodeEmptyPipeline ConfigErrorCode = "EMPTY_PIPELINE"

	// ErrCodeUnknownAction indicates a frozen action vanished from the catalog.
	ErrCodeUnknownAction ConfigErrorCode = "UNKNOWN_ACTION"

	// ErrCodeMissingProject indicates a project-level run without a project id.
	ErrCodeMissingProject ConfigErrorCode = "MISSING_PROJECT"
)

// ConfigError is a configuration problem detected synchronously, before a
// run exists or before its next action starts.
type ConfigError struct {
	Code     ConfigErrorCode
	Pipeline string
	Action   string
	Message  string
	Err      error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Action != "":
		return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.Action)
	case e.Pipeline != "":
		return fmt.Sprintf("%s: %s (pipeline=%s)", e.Code, e.Message, e.Pipeline)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// RetryableError is returned by Advance when the current action failed for a
// transient reason (provider timeout, rate limit, transport failure, or a
// concurrent edit of the body). Nothing was committed; calling Advance again
// re-attempts the same action. Attempts is the persisted count of
// consecutive transient failures of Action.
type RetryableError struct {
	RunID    string
	Action   string
	Attempts int
	Err      error
}

// Err already names the action.
func (e *RetryableError) Error() string {
	return fmt.Sprintf("run %s: %v (retryable)", e.RunID, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err wraps a RetryableError.
// Uses errors.As to handle wrapped errors.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}
