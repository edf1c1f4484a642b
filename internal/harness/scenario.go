package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/contentpipe/internal/provider"
)

// Scenario is a scripted pipeline execution: seed documents, canned
// provider replies, a flow of engine operations and assertions on the
// final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is the CUE catalog path, relative to the scenario file.
	Catalog string `yaml:"catalog"`

	// Documents are created before the flow runs.
	Documents []DocumentSeed `yaml:"documents"`

	// Replies are the scripted provider replies per action. The last reply
	// of each action is sticky.
	Replies map[string][]provider.Reply `yaml:"replies,omitempty"`

	// MaxAttempts bounds process steps. Default 1 (no retry).
	MaxAttempts int `yaml:"max_attempts,omitempty"`

	// Flow is executed in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`

	// dir is the directory of the scenario file; relative paths resolve
	// against it.
	dir string
}

// DocumentSeed is a document created before the flow.
type DocumentSeed struct {
	ID         string   `yaml:"id"`
	Project    string   `yaml:"project"`
	Title      string   `yaml:"title"`
	Keywords   []string `yaml:"keywords,omitempty"`
	TargetURL  string   `yaml:"target_url,omitempty"`
	Body       string   `yaml:"body"`
	LastAction string   `yaml:"last_action,omitempty"` // default "generate"
}

// FlowStep is one operation. Exactly one operation field is set.
type FlowStep struct {
	// Create creates a run. Runs are numbered run-1, run-2, ... in
	// creation order.
	Create *CreateStep `yaml:"create,omitempty"`

	// Advance calls the engine once, without retries.
	Advance *AdvanceStep `yaml:"advance,omitempty"`

	// Process goes through the job runner with the scenario's MaxAttempts.
	Process *AdvanceStep `yaml:"process,omitempty"`

	// Cancel requests cancellation of a run.
	Cancel *RunRef `yaml:"cancel,omitempty"`

	// Edit replaces a document body outside any run.
	Edit *EditStep `yaml:"edit,omitempty"`

	// Delete removes a document.
	Delete *DocumentRef `yaml:"delete,omitempty"`

	// Expect validates the outcome of the step. Nil means success is
	// expected and nothing else is checked.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// CreateStep asks for a new run.
type CreateStep struct {
	Document string `yaml:"document,omitempty"`
	Project  string `yaml:"project,omitempty"`
	Pipeline string `yaml:"pipeline"`
	Enhance  bool   `yaml:"enhance,omitempty"`
}

// AdvanceStep advances a run. CancelDuring requests cancellation of the run
// when the provider receives the request for that action.
type AdvanceStep struct {
	Run          string `yaml:"run"`
	CancelDuring string `yaml:"cancel_during,omitempty"`
}

// RunRef names a run.
type RunRef struct {
	Run string `yaml:"run"`
}

// DocumentRef names a document.
type DocumentRef struct {
	Document string `yaml:"document"`
}

// EditStep replaces a document body.
type EditStep struct {
	Document string `yaml:"document"`
	Body     string `yaml:"body"`
}

// ExpectClause is the expected outcome of a step.
type ExpectClause struct {
	// Status is the expected run status after the step.
	Status string `yaml:"status,omitempty"`

	// Error is the expected error kind (see errorKind). Empty means the
	// step must succeed.
	Error string `yaml:"error,omitempty"`
}

// op returns the operation name of a step, or "" if none or several are set.
func (s FlowStep) op() string {
	ops := []struct {
		name string
		set  bool
	}{
		{"create", s.Create != nil},
		{"advance", s.Advance != nil},
		{"process", s.Process != nil},
		{"cancel", s.Cancel != nil},
		{"edit", s.Edit != nil},
		{"delete", s.Delete != nil},
	}
	name := ""
	for _, o := range ops {
		if !o.set {
			continue
		}
		if name != "" {
			return ""
		}
		name = o.name
	}
	return name
}

// Assertion type constants.
const (
	AssertRunState      = "run_state"
	AssertDocument      = "document"
	AssertSnapshotCount = "snapshot_count"
	AssertProviderCalls = "provider_calls"
)

// Assertion validates the final state. Unset optional fields are not
// checked.
type Assertion struct {
	Type string `yaml:"type"`

	// run_state
	Run          string   `yaml:"run,omitempty"`
	Status       string   `yaml:"status,omitempty"`
	CurrentIndex *int     `yaml:"current_index,omitempty"`
	TotalCost    *float64 `yaml:"total_cost,omitempty"`
	TotalTokens  *int64   `yaml:"total_tokens,omitempty"`
	FailedAction string   `yaml:"failed_action,omitempty"`
	Results      *int     `yaml:"results,omitempty"`

	// document, snapshot_count
	Document       string   `yaml:"document,omitempty"`
	LastAction     string   `yaml:"last_action,omitempty"`
	Body           *string  `yaml:"body,omitempty"`
	BodyContains   string   `yaml:"body_contains,omitempty"`
	AppliedActions []string `yaml:"applied_actions,omitempty"`
	Count          *int     `yaml:"count,omitempty"`

	// provider_calls
	Actions []string `yaml:"actions,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses scenario YAML. Relative paths resolve against the
// working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// CatalogPath returns the catalog path resolved against the scenario file.
func (s *Scenario) CatalogPath() string {
	if filepath.IsAbs(s.Catalog) || s.dir == "" {
		return s.Catalog
	}
	return filepath.Join(s.dir, s.Catalog)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Catalog == "" {
		return errors.New("catalog is required")
	}
	if len(s.Flow) == 0 {
		return errors.New("flow must have at least one step")
	}

	seen := make(map[string]bool)
	for i, d := range s.Documents {
		if d.ID == "" || d.Project == "" {
			return fmt.Errorf("documents[%d]: id and project are required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("documents[%d]: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = true
	}

	for i, step := range s.Flow {
		if step.op() == "" {
			return fmt.Errorf("flow[%d]: exactly one of create, advance, process, cancel, edit, delete is required", i)
		}
		if step.Create != nil && step.Create.Pipeline == "" {
			return fmt.Errorf("flow[%d]: create requires pipeline", i)
		}
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertRunState:
			if a.Run == "" {
				return fmt.Errorf("assertions[%d]: run_state requires run", i)
			}
		case AssertDocument:
			if a.Document == "" {
				return fmt.Errorf("assertions[%d]: document requires document", i)
			}
		case AssertSnapshotCount:
			if a.Document == "" || a.Count == nil {
				return fmt.Errorf("assertions[%d]: snapshot_count requires document and count", i)
			}
		case AssertProviderCalls:
		default:
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}
