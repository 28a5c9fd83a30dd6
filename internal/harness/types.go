package harness

import (
	"github.com/roach88/patternweave/internal/eventb"
	"github.com/roach88/patternweave/internal/pattern"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when generation behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	// Artifacts are the rendered refinements, empty when generation failed.
	Artifacts []eventb.Artifact `json:"artifacts"`

	// ErrorKind is the kind of the generation error, if any.
	ErrorKind pattern.ErrorKind `json:"error_kind,omitempty"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Artifacts: []eventb.Artifact{},
		Errors:    []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
