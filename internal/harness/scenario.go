package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/patternweave/internal/pattern"
)

// Scenario defines one generation run and what its output must look like.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Project is the project name handed to the generator. Optional.
	Project string `yaml:"project,omitempty"`

	// Layers lists the pattern documents of each refinement, in order.
	// After loading, paths are resolved against the scenario file.
	Layers [][]string `yaml:"layers"`

	// FirstRefinement is the index of the first layer's refinement.
	FirstRefinement int `yaml:"first_refinement,omitempty"`

	// ExpectError is the error kind generation must fail with.
	ExpectError pattern.ErrorKind `yaml:"expect_error,omitempty"`

	// Assertions validate the rendered artifacts.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion checks one property of the generated output.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Layer is the zero-based layer the assertion inspects.
	Layer int `yaml:"layer,omitempty"`

	// Event is the event name (event_present, event_absent).
	Event string `yaml:"event,omitempty"`

	// Text is the expected substring (machine_contains, context_contains).
	Text string `yaml:"text,omitempty"`

	// Count is the expected number of artifacts (artifact_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertEventPresent    = "event_present"
	AssertEventAbsent     = "event_absent"
	AssertMachineContains = "machine_contains"
	AssertContextContains = "context_contains"
	AssertArtifactCount   = "artifact_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected, and pattern paths are resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for _, layer := range scenario.Layers {
		for i, ref := range layer {
			if ref != "" && !filepath.IsAbs(ref) {
				layer[i] = filepath.Join(base, filepath.FromSlash(ref))
			}
		}
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

	if len(s.Layers) == 0 {
		return fmt.Errorf("layers list is required and must be non-empty")
	}

	if s.FirstRefinement < 0 {
		return fmt.Errorf("first_refinement must be non-negative")
	}

	for i, layer := range s.Layers {
		if len(layer) == 0 {
			return fmt.Errorf("layers[%d]: at least one pattern is required", i)
		}
		for _, ref := range layer {
			if ref == "" {
				return fmt.Errorf("layers[%d]: empty pattern path", i)
			}
			if _, err := os.Stat(ref); os.IsNotExist(err) {
				return fmt.Errorf("layers[%d]: pattern file not found: %s", i, ref)
			}
		}
	}

	if s.ExpectError != "" {
		if len(s.Assertions) > 0 {
			return fmt.Errorf("assertions cannot be combined with expect_error")
		}
		return nil
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], len(s.Layers)); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, layers int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEventPresent, AssertEventAbsent:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for %s", index, a.Type)
		}
	case AssertMachineContains, AssertContextContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertArtifactCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for artifact_count", index)
		}
		return nil
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Layer < 0 || a.Layer >= layers {
		return fmt.Errorf("assertions[%d]: layer %d out of range (scenario has %d)", index, a.Layer, layers)
	}
	return nil
}
