package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/patternweave/internal/eventb"
)

const eventPrefix = "  event "

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // assertion type
	Layer    int    // zero-based layer, -1 when not layer specific
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Layer >= 0 {
		fmt.Fprintf(&buf, " (layer %d)", e.Layer)
	}
	buf.WriteByte('\n')
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// MachineEvents lists the event names declared in machine text, in order.
func MachineEvents(machineText string) []string {
	var names []string
	for _, line := range strings.Split(machineText, "\n") {
		if name, ok := strings.CutPrefix(line, eventPrefix); ok {
			names = append(names, strings.TrimSpace(name))
		}
	}
	return names
}

func hasEvent(art eventb.Artifact, name string) bool {
	for _, e := range MachineEvents(art.MachineText) {
		if e == name {
			return true
		}
	}
	return false
}

func assertEvent(art eventb.Artifact, a Assertion) error {
	want := a.Type == AssertEventPresent
	if hasEvent(art, a.Event) == want {
		return nil
	}
	expected := fmt.Sprintf("event %s in %s", a.Event, art.MachineName)
	actual := "not declared"
	if !want {
		expected = fmt.Sprintf("no event %s in %s", a.Event, art.MachineName)
		actual = "declared"
	}
	return &AssertionError{
		Type:     a.Type,
		Layer:    a.Layer,
		Expected: expected,
		Actual:   fmt.Sprintf("%s (events: %s)", actual, strings.Join(MachineEvents(art.MachineText), ", ")),
	}
}

func assertContains(name, text string, a Assertion) error {
	if strings.Contains(text, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Layer:    a.Layer,
		Expected: fmt.Sprintf("%s to contain %q", name, a.Text),
		Actual:   "text not found",
	}
}

// EvaluateAssertions checks every assertion against the result's
// artifacts and returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		if assertion.Type == AssertArtifactCount {
			if n := len(result.Artifacts); n != assertion.Count {
				err = &AssertionError{
					Type:     assertion.Type,
					Layer:    -1,
					Expected: fmt.Sprintf("%d artifacts", assertion.Count),
					Actual:   fmt.Sprintf("%d artifacts", n),
				}
			}
		} else if assertion.Layer < 0 || assertion.Layer >= len(result.Artifacts) {
			err = fmt.Errorf("assertion[%d]: layer %d not generated", i, assertion.Layer)
		} else {
			art := result.Artifacts[assertion.Layer]
			switch assertion.Type {
			case AssertEventPresent, AssertEventAbsent:
				err = assertEvent(art, assertion)
			case AssertMachineContains:
				err = assertContains(art.MachineName, art.MachineText, assertion)
			case AssertContextContains:
				err = assertContains(art.ContextName, art.ContextText, assertion)
			default:
				err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
			}
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
