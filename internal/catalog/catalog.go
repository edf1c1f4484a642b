// Package catalog holds the action and pipeline definitions a process runs
// with. A Catalog is loaded once at startup, validated in full, and is
// read-only afterwards; it is safe for concurrent use.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/contentpipe/internal/compiler"
	"github.com/roach88/contentpipe/internal/ir"
)

// ErrUnknownPipeline is returned by Resolve for an undefined pipeline name.
var ErrUnknownPipeline = errors.New("unknown pipeline")

// ErrUnknownAction is returned for an undefined action name.
var ErrUnknownAction = errors.New("unknown action")

// InvalidError reports every validation error found while loading.
type InvalidError struct {
	Source string
	Errors []compiler.ValidationError
}

func (e *InvalidError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("invalid catalog %s: %s", e.Source, strings.Join(msgs, "; "))
}

// Catalog is the validated, immutable set of definitions.
type Catalog struct {
	actions    map[string]*ir.ActionDef
	order      []string
	pipelines  map[string]*ir.PipelineDef
	exclusions ir.ExclusionSet
	fragments  map[string]string
	templates  map[string]*template.Template
}

// Load reads a catalog from a .cue file or from every .cue file under a
// directory (unified into one value). routines lists the local routine names
// the executor can run.
func Load(path string, routines []string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		if files, err = FindCUEFiles(path); err != nil {
			return nil, fmt.Errorf("catalog: scanning %s: %w", path, err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("catalog: no CUE files found in %s", path)
		}
	}

	ctx := cuecontext.New()
	value := ctx.CompileString("{}")
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		v := ctx.CompileBytes(data, cue.Filename(f))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		value = value.Unify(v)
	}

	return fromValue(value, path, routines)
}

// Parse compiles a catalog from CUE source text.
func Parse(src, filename string, routines []string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return fromValue(v, filename, routines)
}

func fromValue(v cue.Value, source string, routines []string) (*Catalog, error) {
	spec, err := compiler.CompileCatalog(v)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return New(spec, source, routines)
}

// New validates a compiled spec and builds a Catalog from it. Any validation
// error is fatal.
func New(spec *compiler.CatalogSpec, source string, routines []string) (*Catalog, error) {
	if errs := compiler.ValidateCatalog(spec, routines); len(errs) > 0 {
		return nil, &InvalidError{Source: source, Errors: errs}
	}

	c := &Catalog{
		actions:    make(map[string]*ir.ActionDef, len(spec.Actions)),
		pipelines:  make(map[string]*ir.PipelineDef, len(spec.Pipelines)),
		exclusions: spec.Exclusions,
		fragments:  spec.Fragments,
		templates:  make(map[string]*template.Template),
	}
	if c.fragments == nil {
		c.fragments = map[string]string{}
	}
	for _, def := range spec.Actions {
		c.actions[def.Name] = def
		c.order = append(c.order, def.Name)
		if def.Template == "" {
			continue
		}
		tmpl, err := compiler.ParseTemplate(def.Name, def.Template)
		if err != nil {
			return nil, fmt.Errorf("catalog: action %s: %w", def.Name, err)
		}
		c.templates[def.Name] = tmpl
	}
	for _, p := range spec.Pipelines {
		c.pipelines[p.Name] = p
	}
	return c, nil
}

// Action returns the named definition.
func (c *Catalog) Action(name string) (*ir.ActionDef, bool) {
	def, ok := c.actions[name]
	return def, ok
}

// Actions returns every definition in declaration order.
func (c *Catalog) Actions() []*ir.ActionDef {
	out := make([]*ir.ActionDef, len(c.order))
	for i, name := range c.order {
		out[i] = c.actions[name]
	}
	return out
}

// Pipeline returns the named pipeline.
func (c *Catalog) Pipeline(name string) (*ir.PipelineDef, bool) {
	p, ok := c.pipelines[name]
	return p, ok
}

// Pipelines returns the pipeline names, sorted.
func (c *Catalog) Pipelines() []string {
	names := make([]string, 0, len(c.pipelines))
	for name := range c.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Template returns the parsed template of a generative action.
func (c *Catalog) Template(action string) (*template.Template, bool) {
	t, ok := c.templates[action]
	return t, ok
}

// Fragments returns the shared template fragments. Callers must not mutate
// the returned map.
func (c *Catalog) Fragments() map[string]string {
	return c.fragments
}

// Accepts returns the last_action values a document must carry to be
// eligible for action in a bulk selection. nil means any document.
func (c *Catalog) Accepts(action string) ([]string, error) {
	def, ok := c.actions[action]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, action)
	}
	return def.Accepts, nil
}

// ResolveOptions narrows a resolved action list.
type ResolveOptions struct {
	// Enhance keeps only forcible actions.
	Enhance bool

	// ProjectLevel keeps only actions that do not require a document.
	ProjectLevel bool
}

// Resolve returns the ordered action list for a run against targetURL:
// pipeline actions minus catalog-wide global exclusions, pipeline exclusions
// and the section exclusions of both for the URL's first path segment.
// The result may be empty.
func (c *Catalog) Resolve(pipeline, targetURL string, opts ResolveOptions) ([]string, error) {
	p, ok := c.pipelines[pipeline]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPipeline, pipeline)
	}

	section := ir.SectionOf(targetURL)
	resolved := make([]string, 0, len(p.Actions))
	for _, name := range p.Actions {
		if c.exclusions.Excludes(name, section) || p.Exclusions.Excludes(name, section) {
			continue
		}
		def := c.actions[name]
		if opts.Enhance && !def.Forcible {
			continue
		}
		if opts.ProjectLevel && def.RequiresDocument {
			continue
		}
		resolved = append(resolved, name)
	}
	return resolved, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
