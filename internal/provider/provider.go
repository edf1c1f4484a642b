// Package provider is the boundary to the generative service. The engine
// sees only the Client interface; OpenAI talks to a chat-completions API and
// Scripted replays canned responses for tests and dry runs.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/contentpipe/internal/ir"
)

// Request is one generative call for one action.
type Request struct {
	Action string
	Mode   ir.OutputMode
	System string
	Prompt string
}

// Usage is the provider-reported token count.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is the raw text returned by the service. Usage is nil when the
// service did not report token counts.
type Response struct {
	Text  string
	Usage *Usage
}

// Client calls the generative service. Implementations must honor ctx
// cancellation and deadlines.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindRateLimit ErrorKind = "rate_limit"
	KindTransport ErrorKind = "transport"
	KindEmpty     ErrorKind = "empty"
	KindRejected  ErrorKind = "rejected"
)

// Error is a classified provider failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s", e.Kind)
	}
	return fmt.Sprintf("provider %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether a later attempt may succeed.
func (e *Error) Transient() bool {
	switch e.Kind {
	case KindTimeout, KindRateLimit, KindTransport:
		return true
	}
	return false
}

// IsTransient reports whether err is a transient provider error.
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Transient()
}

// KindOf returns the provider error kind of err, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
