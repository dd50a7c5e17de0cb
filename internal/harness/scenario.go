package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/todocheck/internal/compiler"
)

// Scenario is a declarative suite plus assertions on its outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// LatencyMS delays every re-render of the application, modelling
	// asynchronous DOM updates.
	LatencyMS int `yaml:"latency_ms,omitempty"`

	// Seed is stored before the first case runs.
	Seed []SeedItem `yaml:"seed,omitempty"`

	BeforeEach []compiler.RawStep     `yaml:"before_each,omitempty"`
	AfterEach  []compiler.RawStep     `yaml:"after_each,omitempty"`
	Cases      []compiler.CaseSpec    `yaml:"cases,omitempty"`
	Contexts   []compiler.ContextSpec `yaml:"contexts,omitempty"`

	// Assertions validate statuses, traces and the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// SeedItem is one stored todo.
type SeedItem struct {
	Title     string `yaml:"title"`
	Completed bool   `yaml:"completed,omitempty"`
}

// StepMatch selects trace steps. Empty fields match anything.
type StepMatch struct {
	Kind    string `yaml:"kind,omitempty"`
	Subject string `yaml:"subject,omitempty"`
	Detail  string `yaml:"detail,omitempty"`
	Outcome string `yaml:"outcome,omitempty"`
}

// Assertion validates a case status, a case trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Case is the full case name ("Suite > Context > case").
	Case string `yaml:"case,omitempty"`

	// Status and Code are used by case_status.
	Status string `yaml:"status,omitempty"`
	Code   string `yaml:"code,omitempty"`

	// StepMatch is used by trace_contains and trace_count.
	StepMatch `yaml:",inline"`

	// Count is used by trace_count.
	Count int `yaml:"count,omitempty"`

	// Steps is used by trace_order.
	Steps []StepMatch `yaml:"steps,omitempty"`

	// Items is used by final_state.
	Items []SeedItem `yaml:"items,omitempty"`
}

// Assertion type constants.
const (
	AssertCaseStatus    = "case_status"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Root returns the scenario's case tree, named after the scenario.
func (s *Scenario) Root() compiler.ContextSpec {
	return compiler.ContextSpec{
		Name:       s.Name,
		BeforeEach: s.BeforeEach,
		AfterEach:  s.AfterEach,
		Cases:      s.Cases,
		Contexts:   s.Contexts,
	}
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields (catches typos like "assertion:" vs "assertions:")
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

// LoadDir loads every *.yaml and *.yml file in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := ScenarioFiles(dir)
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// ScenarioFiles lists the scenario files in dir, sorted.
func ScenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
// Steps are checked by the compiler.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.LatencyMS < 0 {
		return fmt.Errorf("latency_ms must be non-negative")
	}
	if s.Root().CaseCount() == 0 {
		return fmt.Errorf("at least one case is required")
	}
	for i, item := range s.Seed {
		if strings.TrimSpace(item.Title) == "" {
			return fmt.Errorf("seed[%d]: title is required", i)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertCaseStatus:
		if a.Case == "" {
			return fmt.Errorf("assertions[%d]: case is required for case_status", index)
		}
		switch a.Status {
		case "passed", "failed", "skipped":
		default:
			return fmt.Errorf("assertions[%d]: status must be passed, failed or skipped, got %q", index, a.Status)
		}
		if a.Code != "" && a.Status != "failed" {
			return fmt.Errorf("assertions[%d]: code requires status failed", index)
		}
	case AssertTraceContains:
		if a.Case == "" {
			return fmt.Errorf("assertions[%d]: case is required for trace_contains", index)
		}
		if a.StepMatch == (StepMatch{}) {
			return fmt.Errorf("assertions[%d]: trace_contains needs kind, subject, detail or outcome", index)
		}
	case AssertTraceOrder:
		if a.Case == "" {
			return fmt.Errorf("assertions[%d]: case is required for trace_order", index)
		}
		if len(a.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: steps list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Case == "" {
			return fmt.Errorf("assertions[%d]: case is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		// An empty items list asserts an empty application.
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
