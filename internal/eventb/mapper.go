package eventb

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/roach88/patternweave/internal/pattern"
)

// File extensions used by the workspace writer.
const (
	ContextExt = ".ctx"
	MachineExt = ".bcm"
)

// Artifact is the rendered context/machine pair for one refinement.
// It is immutable once returned.
type Artifact struct {
	BaseName    string `json:"base_name"`
	Refinement  int    `json:"refinement"`
	ContextName string `json:"context_name"`
	MachineName string `json:"machine_name"`
	ContextText string `json:"context_text"`
	MachineText string `json:"machine_text"`
}

// ContextFile returns the context file name, e.g. "PSend_C0.ctx".
func (a Artifact) ContextFile() string {
	return a.ContextName + ContextExt
}

// MachineFile returns the machine file name, e.g. "PSend_M0.bcm".
func (a Artifact) MachineFile() string {
	return a.MachineName + MachineExt
}

// ContextName returns "<base>_C<refinement>".
func ContextName(base string, refinement int) string {
	return fmt.Sprintf("%s_C%d", base, refinement)
}

// MachineName returns "<base>_M<refinement>".
func MachineName(base string, refinement int) string {
	return fmt.Sprintf("%s_M%d", base, refinement)
}

// ToEventB renders model as refinement number refinement.
func ToEventB(model *pattern.Pattern, refinement int) (Artifact, error) {
	if model == nil {
		return Artifact{}, fmt.Errorf("eventb: nil model")
	}
	if refinement < 0 {
		return Artifact{}, fmt.Errorf("eventb: refinement index must be >= 0, got %d", refinement)
	}

	base := model.BaseName()
	ctxName := ContextName(base, refinement)
	machName := MachineName(base, refinement)

	return Artifact{
		BaseName:    base,
		Refinement:  refinement,
		ContextName: ctxName,
		MachineName: machName,
		ContextText: renderContext(ctxName, model.Context),
		MachineText: renderMachine(machName, ctxName, model),
	}, nil
}

func renderContext(name string, ctx *pattern.Context) string {
	var t textBuilder
	t.line(0, "context ", name)

	if ctx != nil {
		if len(ctx.Sets) > 0 {
			t.line(0, "sets")
			for _, s := range ctx.Sets {
				t.line(1, s)
			}
		}
		if len(ctx.Constants) > 0 {
			t.line(0, "constants")
			for _, c := range ctx.Constants {
				t.line(1, c)
			}
		}
		if len(ctx.Axioms) > 0 {
			t.line(0, "axioms")
			for i, ax := range ctx.Axioms {
				t.labelled(1, "ax", i+1, ax)
			}
		}
	}

	t.line(0, "end")
	return t.String()
}

func renderMachine(name, ctxName string, model *pattern.Pattern) string {
	var t textBuilder
	t.line(0, "machine ", name)
	t.line(0, "sees ", ctxName)
	t.blank()

	if len(model.Variables) > 0 {
		t.line(0, "variables")
		for _, v := range model.Variables {
			t.line(1, v.Name)
		}
		t.blank()
	}

	if len(model.Invariants) > 0 {
		t.line(0, "invariants")
		for i, inv := range model.Invariants {
			t.labelled(1, "inv", i+1, inv.Expression)
		}
		t.blank()
	}

	init, rest := splitInitialisation(model.Events)

	t.line(0, "events")
	renderInitialisation(&t, init)
	for _, e := range rest {
		renderEvent(&t, e)
	}
	t.line(0, "end")

	return t.String()
}

// splitInitialisation pulls every initial event out of events and folds
// their actions (deduplicated) into one.
func splitInitialisation(events []pattern.Event) ([]pattern.Action, []pattern.Event) {
	var actions []pattern.Action
	var rest []pattern.Event
	seen := make(map[string]bool)

	for _, e := range events {
		if !e.IsInitialisation() {
			rest = append(rest, e)
			continue
		}
		for _, a := range e.Actions {
			asg := strings.TrimSpace(a.Assignment)
			if asg == "" || seen[asg] {
				continue
			}
			seen[asg] = true
			actions = append(actions, pattern.Action{Assignment: asg})
		}
	}
	return actions, rest
}

func renderInitialisation(t *textBuilder, actions []pattern.Action) {
	t.line(1, "event INITIALISATION")
	t.line(2, "then")
	if len(actions) == 0 {
		t.labelled(3, "int", 1, "skip")
	}
	for i, a := range actions {
		t.labelled(3, "int", i+1, a.Assignment)
	}
	t.line(1, "end")
	t.blank()
}

func renderEvent(t *textBuilder, e pattern.Event) {
	t.line(1, "event ", e.Name)

	if len(e.Params) > 0 {
		names := make([]string, len(e.Params))
		for i, p := range e.Params {
			names[i] = p.Name
		}
		t.line(2, "any ", strings.Join(names, " "))
	}

	guards := guardsFor(e)
	if len(guards) > 0 {
		t.line(2, "where")
		for i, g := range guards {
			t.labelled(3, "g", i+1, g)
		}
	}

	if len(e.Actions) > 0 {
		t.line(2, "then")
		for i, a := range e.Actions {
			t.labelled(3, "a", i+1, a.Assignment)
		}
	}

	t.line(1, "end")
	t.blank()
}

// guardsFor returns the implicit typing guards for typed parameters that
// are not already stated explicitly, followed by the explicit guards.
func guardsFor(e pattern.Event) []string {
	explicit := make(map[string]bool, len(e.Guards))
	for _, g := range e.Guards {
		explicit[stripSpace(g.Expr)] = true
	}

	var out []string
	for _, p := range e.Params {
		typ := strings.TrimSpace(p.Type)
		if typ == "" {
			continue
		}
		membership := p.Name + " ∈ " + typ
		if explicit[stripSpace(membership)] {
			continue
		}
		out = append(out, membership)
	}
	for _, g := range e.Guards {
		out = append(out, g.Expr)
	}
	return out
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
