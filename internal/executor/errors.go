package executor

import (
	"errors"
	"fmt"

	"github.com/roach88/contentpipe/internal/provider"
)

// ErrorKind classifies an action failure.
type ErrorKind string

const (
	KindProvider ErrorKind = "provider"
	KindParse    ErrorKind = "parse"
	KindNoChange ErrorKind = "no_change"
	KindLocal    ErrorKind = "local"
	KindTemplate ErrorKind = "template"
)

// ActionError is an action-level failure. It is recorded on the run rather
// than returned to callers of the engine.
type ActionError struct {
	Action string
	Kind   ErrorKind
	Err    error
}

func (e *ActionError) Error() string {
	var pe *provider.Error
	if errors.As(e.Err, &pe) {
		return fmt.Sprintf("action %s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("action %s: %s: %v", e.Action, e.Kind, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Transient reports whether re-running the action may succeed.
func (e *ActionError) Transient() bool {
	return e.Kind == KindProvider && provider.IsTransient(e.Err)
}

// AsActionError extracts an ActionError from err.
func AsActionError(err error) (*ActionError, bool) {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// ErrNoChange is wrapped by no_change failures.
var ErrNoChange = errors.New("no effect produced")
