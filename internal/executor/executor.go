// Package executor runs a single action against a single document: it
// renders the prompt, calls a local routine or the generative provider,
// parses the response for the action's output mode, applies it with the
// patch applier and prices the call.
//
// The executor never persists anything. Its Outcome is committed (or
// discarded) by the engine.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"text/template"

	"github.com/roach88/contentpipe/internal/accounting"
	"github.com/roach88/contentpipe/internal/ir"
	"github.com/roach88/contentpipe/internal/patch"
	"github.com/roach88/contentpipe/internal/provider"
)

// Templates supplies parsed action templates and shared fragments.
type Templates interface {
	Template(action string) (*template.Template, bool)
	Fragments() map[string]string
}

// Outcome is the result of executing one action. It is populated as far as
// execution got, so a failed action still reports the cost it incurred.
type Outcome struct {
	Body     string
	Changed  bool
	Edit     ir.Edit
	EditHash string
	Warnings []string
	Usage    accounting.Usage
	Cost     float64

	// Output is the generated text for actions run without a document.
	Output string
}

// Executor dispatches actions. It is safe for concurrent use.
type Executor struct {
	templates Templates
	client    provider.Client
	routines  map[string]Routine
	logger    *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithRoutine registers (or replaces) a local routine.
func WithRoutine(name string, r Routine) Option {
	return func(e *Executor) {
		e.routines[name] = r
	}
}

// New creates an Executor with the built-in routines registered.
func New(templates Templates, client provider.Client, opts ...Option) *Executor {
	e := &Executor{
		templates: templates,
		client:    client,
		routines:  DefaultRoutines(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RoutineNames lists the registered local routines, sorted.
func (e *Executor) RoutineNames() []string {
	names := make([]string, 0, len(e.routines))
	for name := range e.routines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs def against doc. doc is nil for project-level actions; the
// generated text is then returned in Outcome.Output and nothing is applied.
//
// Errors are *ActionError. A require_changes action whose body comes back
// byte-identical fails with KindNoChange.
func (e *Executor) Execute(ctx context.Context, def *ir.ActionDef, doc *ir.Document) (Outcome, error) {
	var (
		out Outcome
		err error
	)
	if def.Local {
		out, err = e.runLocal(def, doc)
	} else {
		out, err = e.runGenerative(ctx, def, doc)
	}
	if err != nil {
		return out, err
	}

	if doc != nil && def.RequireChanges && !out.Changed {
		return out, &ActionError{Action: def.Name, Kind: KindNoChange, Err: ErrNoChange}
	}
	return out, nil
}

func (e *Executor) runLocal(def *ir.ActionDef, doc *ir.Document) (Outcome, error) {
	routine, ok := e.routines[def.RoutineName()]
	if !ok {
		return Outcome{}, &ActionError{
			Action: def.Name,
			Kind:   KindLocal,
			Err:    fmt.Errorf("routine %q not registered", def.RoutineName()),
		}
	}
	body, err := routine(doc)
	if err != nil {
		return Outcome{}, &ActionError{Action: def.Name, Kind: KindLocal, Err: err}
	}

	edit := ir.WholeEdit{Content: body}
	out := Outcome{Edit: edit, Body: body}
	if doc != nil {
		out.Changed = body != doc.Body
	}
	if out.EditHash, err = ir.EditHash(edit); err != nil {
		return out, &ActionError{Action: def.Name, Kind: KindLocal, Err: err}
	}
	return out, nil
}

func (e *Executor) runGenerative(ctx context.Context, def *ir.ActionDef, doc *ir.Document) (Outcome, error) {
	prompt, err := e.render(def, doc)
	if err != nil {
		return Outcome{}, &ActionError{Action: def.Name, Kind: KindTemplate, Err: err}
	}

	resp, err := e.client.Generate(ctx, provider.Request{
		Action: def.Name,
		Mode:   def.Mode,
		System: def.System,
		Prompt: prompt,
	})
	if err != nil {
		return Outcome{}, &ActionError{Action: def.Name, Kind: KindProvider, Err: err}
	}

	var out Outcome
	if resp.Usage != nil {
		out.Usage = accounting.Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}
	} else {
		out.Usage = accounting.Estimate(def.System+prompt, resp.Text)
	}
	out.Cost = accounting.Cost(def.Pricing, out.Usage)

	edit, err := ParseResponse(def.Mode, resp.Text)
	if err != nil {
		e.logger.Warn("unparseable provider response", "action", def.Name, "error", err)
		return out, &ActionError{Action: def.Name, Kind: KindParse, Err: err}
	}
	out.Edit = edit
	if out.EditHash, err = ir.EditHash(edit); err != nil {
		return out, &ActionError{Action: def.Name, Kind: KindParse, Err: err}
	}

	if doc == nil {
		out.Output = editText(edit)
		return out, nil
	}

	res := patch.Apply(doc.Body, edit)
	out.Body = res.Body
	out.Changed = res.Changed(doc.Body)
	out.Warnings = res.WarningStrings()
	for _, w := range res.Warnings {
		e.logger.Warn("patch skipped",
			"action", def.Name,
			"document_id", doc.ID,
			"index", w.Index,
			"kind", w.Kind)
	}
	return out, nil
}

// promptData is the value action templates are executed against.
type promptData struct {
	Action         string
	Title          string
	Keywords       []string
	Body           string
	TargetURL      string
	Section        string
	FAQ            string
	StructuredData string
	InternalLinks  []string
	Assets         []string
	LastAction     string
	Fragments      map[string]string
}

func (e *Executor) render(def *ir.ActionDef, doc *ir.Document) (string, error) {
	tmpl, ok := e.templates.Template(def.Name)
	if !ok {
		return "", errors.New("no template")
	}
	data := promptData{Action: def.Name, Fragments: e.templates.Fragments()}
	if doc != nil {
		data.Title = doc.Title
		data.Keywords = doc.Keywords
		data.Body = doc.Body
		data.TargetURL = doc.TargetURL
		data.Section = doc.Section()
		data.FAQ = doc.FAQ
		data.StructuredData = doc.StructuredData
		data.InternalLinks = doc.InternalLinks
		data.Assets = doc.Assets
		data.LastAction = doc.LastAction
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
