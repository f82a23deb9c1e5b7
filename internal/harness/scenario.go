package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/request"
)

// Scenario is a sequence of backend operations with expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalog is a directory of CUE resource definitions, relative to the
	// scenario file. Empty means the embedded Ed-Fi catalog.
	Catalog string `yaml:"catalog,omitempty"`

	// MaxRetries overrides the backend retry budget.
	MaxRetries *int `yaml:"max_retries,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Operation names.
const (
	OpUpsert = "upsert"
	OpUpdate = "update"
	OpDelete = "delete"
	OpGet    = "get"
)

// Step is one backend call.
type Step struct {
	Op string `yaml:"op"`

	// As names the uuid written by an upsert.
	As string `yaml:"as,omitempty"`

	// Target names the document an update, delete or get addresses. A value
	// that is not a known name is used as a literal uuid.
	Target string `yaml:"target,omitempty"`

	request.Document `yaml:",inline"`

	// Validate turns reference checks off when false. Default true.
	Validate *bool `yaml:"validate,omitempty"`

	// Timestamp overrides the request time. Zero takes the next clock tick.
	Timestamp int64 `yaml:"timestamp,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// validate reports whether reference validation is on for the step.
func (s Step) validate() bool {
	return s.Validate == nil || *s.Validate
}

// Expect is checked against the outcome of a step.
type Expect struct {
	Response string `yaml:"response"`

	// Blocking lists the resource names of the blocking documents, in order.
	Blocking []string `yaml:"blocking,omitempty"`

	// Missing lists the resource names of failed references, in order.
	Missing []string `yaml:"missing,omitempty"`
}

// Assertion validates the final database state.
type Assertion struct {
	Type     string         `yaml:"type"`
	Target   string         `yaml:"target,omitempty"`
	Resource string         `yaml:"resource,omitempty"`
	Count    int            `yaml:"count,omitempty"`
	Body     map[string]any `yaml:"body,omitempty"`
}

// Assertion type constants.
const (
	AssertDocumentCount  = "document_count"
	AssertDocumentExists = "document_exists"
	AssertDocumentAbsent = "document_absent"
	AssertDocumentBody   = "document_body"
	AssertRegistryEmpty  = "registry_empty"
)

// LoadScenario reads and parses a scenario YAML file. A relative catalog
// path is resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Catalog != "" && !filepath.IsAbs(scenario.Catalog) {
		scenario.Catalog = filepath.Join(filepath.Dir(path), scenario.Catalog)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
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

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.MaxRetries != nil && *s.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}

	names := make(map[string]bool)
	for i, step := range s.Steps {
		if err := validateStep(i, step, names); err != nil {
			return err
		}
		if step.As != "" {
			names[step.As] = true
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, names); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step, names map[string]bool) error {
	if step.Resource == "" {
		return fmt.Errorf("steps[%d]: resource is required", i)
	}
	if step.Expect != nil && step.Expect.Response == "" {
		return fmt.Errorf("steps[%d].expect: response is required", i)
	}

	switch step.Op {
	case OpUpsert:
		if len(step.Identity) == 0 {
			return fmt.Errorf("steps[%d]: identity is required for upsert", i)
		}
		if step.Target != "" {
			return fmt.Errorf("steps[%d]: upsert does not take a target", i)
		}
		if step.As != "" && names[step.As] {
			return fmt.Errorf("steps[%d]: name %q is already in use", i, step.As)
		}
	case OpUpdate:
		if step.Target == "" {
			return fmt.Errorf("steps[%d]: target is required for update", i)
		}
		if len(step.Identity) == 0 {
			return fmt.Errorf("steps[%d]: identity is required for update", i)
		}
	case OpDelete, OpGet:
		if step.Target == "" {
			return fmt.Errorf("steps[%d]: target is required for %s", i, step.Op)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", i)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
	}

	if step.As != "" && step.Op != OpUpsert {
		return fmt.Errorf("steps[%d]: only upsert steps may name a document", i)
	}
	return nil
}

func validateAssertion(i int, a Assertion, names map[string]bool) error {
	switch a.Type {
	case AssertDocumentCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", i)
		}
	case AssertDocumentExists, AssertDocumentAbsent, AssertDocumentBody:
		if a.Target == "" {
			return fmt.Errorf("assertions[%d]: target is required for %s", i, a.Type)
		}
		if !names[a.Target] {
			return fmt.Errorf("assertions[%d]: unknown target %q", i, a.Target)
		}
		if a.Type == AssertDocumentBody && len(a.Body) == 0 {
			return fmt.Errorf("assertions[%d]: body is required for document_body", i)
		}
	case AssertRegistryEmpty:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	return nil
}
