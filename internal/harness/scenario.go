package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Step operations.
const (
	OpSave      = "save"
	OpFind      = "find"
	OpFindAll   = "find_all"
	OpExists    = "exists"
	OpDelete    = "delete"
	OpDeleteAll = "delete_all"
)

var ops = []string{OpSave, OpFind, OpFindAll, OpExists, OpDelete, OpDeleteAll}

// Step outcomes other than error codes.
const (
	OutcomeOK       = "ok"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomePresent  = "present"
	OutcomeAbsent   = "absent"
)

// Scenario is a conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is an optional CUE schema file, relative to the scenario file.
	Schema string `yaml:"schema,omitempty"`

	// Placeholders stores empty records as placeholder files instead of
	// rejecting them.
	Placeholders bool `yaml:"placeholders,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final repository state and the trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one repository operation.
type Step struct {
	Op   string `yaml:"op"`
	Type string `yaml:"type"`
	ID   string `yaml:"id,omitempty"`

	// Attributes and Blobs are the complete record contents for save.
	// Stored blobs not listed are removed.
	Attributes map[string]any    `yaml:"attributes,omitempty"`
	Blobs      map[string]string `yaml:"blobs,omitempty"`

	// Expect is checked against the step's result when present.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the expected result of a step.
type Expect struct {
	// Outcome is the expected outcome; see the package documentation.
	Outcome string `yaml:"outcome,omitempty"`

	// Attributes is a subset match against a found record.
	Attributes map[string]any `yaml:"attributes,omitempty"`

	// Blobs is an exact match against a found record's blobs.
	Blobs map[string]string `yaml:"blobs,omitempty"`

	// IDs is the exact, ordered id list returned by find_all.
	IDs []string `yaml:"ids,omitempty"`

	// Errors is a subset match against validation messages of a rejected
	// save.
	Errors map[string][]string `yaml:"errors,omitempty"`
}

// Assertion validates final state or the trace.
type Assertion struct {
	// Type is one of record_count, record, commit_count, trace_count.
	Type string `yaml:"type"`

	// RecordType and ID select records (record_count, record).
	RecordType string `yaml:"record_type,omitempty"`
	ID         string `yaml:"id,omitempty"`

	// Attributes is a subset match on the record (record).
	Attributes map[string]any `yaml:"attributes,omitempty"`

	// Absent asserts that the record does not exist (record).
	Absent bool `yaml:"absent,omitempty"`

	// Op and Outcome filter trace events (trace_count).
	Op      string `yaml:"op,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number (record_count, commit_count, trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertRecordCount = "record_count"
	AssertRecord      = "record"
	AssertCommitCount = "commit_count"
	AssertTraceCount  = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and the schema path is resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if s.Schema != "" && !filepath.IsAbs(s.Schema) {
		s.Schema = filepath.Join(filepath.Dir(path), s.Schema)
	}
	if s.Schema != "" {
		if _, err := os.Stat(s.Schema); err != nil {
			return nil, fmt.Errorf("%s: schema file not found: %s", path, s.Schema)
		}
	}
	return s, nil
}

// ParseScenario parses scenario YAML.
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

	for i, step := range s.Steps {
		if !slices.Contains(ops, step.Op) {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if step.Type == "" {
			return fmt.Errorf("steps[%d]: type is required", i)
		}
		needsID := step.Op != OpFindAll && step.Op != OpDeleteAll
		if needsID && step.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for %s", i, step.Op)
		}
		if step.Op != OpSave && (step.Attributes != nil || step.Blobs != nil) {
			return fmt.Errorf("steps[%d]: attributes and blobs are only allowed for save", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRecordCount:
		if a.RecordType == "" {
			return fmt.Errorf("assertions[%d]: record_type is required for record_count", index)
		}
	case AssertRecord:
		if a.RecordType == "" || a.ID == "" {
			return fmt.Errorf("assertions[%d]: record_type and id are required for record", index)
		}
		if a.Absent && a.Attributes != nil {
			return fmt.Errorf("assertions[%d]: absent and attributes are mutually exclusive", index)
		}
	case AssertCommitCount:
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
