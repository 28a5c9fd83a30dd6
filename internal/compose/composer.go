// Package compose merges several pattern models into one.
//
// Contexts, variables and invariants are unioned in first-seen order.
// Events are reconciled in three steps: initial events collapse into one
// synthetic event, the rest go through the combination table, and the
// survivors are deduplicated by name (see dedupeEvents).
package compose

import (
	"fmt"
	"strings"

	"github.com/roach88/patternweave/internal/combine"
	"github.com/roach88/patternweave/internal/pattern"
)

const (
	compositeSuffix = "_Composite"
	fallbackName    = "PatternComposite"
	initSource      = "Composite"
)

// Compose merges models into a new pattern. Inputs are never modified.
// Nil entries are ignored, but at least one model must be supplied.
func Compose(models []*pattern.Pattern) (*pattern.Pattern, error) {
	if len(models) == 0 {
		return nil, pattern.Errorf(pattern.ErrEmptyInput, "", "at least one pattern model is required for composition")
	}

	variables, err := mergeVariables(models)
	if err != nil {
		return nil, err
	}

	return &pattern.Pattern{
		Name:       deriveName(models),
		Context:    mergeContexts(models),
		Variables:  variables,
		Invariants: mergeInvariants(models),
		Events:     mergeEvents(models),
	}, nil
}

// deriveName uses the first model with a meaningful name.
func deriveName(models []*pattern.Pattern) string {
	for _, m := range models {
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m.Name)
		if name != "" && !strings.EqualFold(name, pattern.DefaultName) {
			return name + compositeSuffix
		}
	}
	return fallbackName
}

func mergeContexts(models []*pattern.Pattern) *pattern.Context {
	var sets, constants, axioms orderedSet
	for _, m := range models {
		if m == nil || m.Context == nil {
			continue
		}
		sets.addAll(m.Context.Sets)
		constants.addAll(m.Context.Constants)
		axioms.addAll(m.Context.Axioms)
	}

	ctx := &pattern.Context{Sets: sets.items, Constants: constants.items, Axioms: axioms.items}
	if ctx.IsEmpty() {
		return nil
	}
	return ctx
}

// mergeVariables deduplicates by name and fails on a type disagreement.
func mergeVariables(models []*pattern.Pattern) ([]pattern.Variable, error) {
	var out []pattern.Variable
	seen := make(map[string]string)
	owner := make(map[string]string)

	for _, m := range models {
		if m == nil {
			continue
		}
		for _, v := range m.Variables {
			name := strings.TrimSpace(v.Name)
			if name == "" {
				continue
			}
			typ := strings.TrimSpace(v.Type)
			if existing, ok := seen[name]; ok {
				if existing != typ {
					return nil, &pattern.Error{
						Kind:    pattern.ErrVariableTypeConflict,
						Element: name,
						Message: fmt.Sprintf("variable %q is %q in %s but %q in %s",
							name, existing, owner[name], typ, m.BaseName()),
					}
				}
				continue
			}
			seen[name] = typ
			owner[name] = m.BaseName()
			out = append(out, pattern.Variable{Name: name, Type: typ})
		}
	}
	return out, nil
}

func mergeInvariants(models []*pattern.Pattern) []pattern.Invariant {
	var out []pattern.Invariant
	seen := make(map[string]bool)
	for _, m := range models {
		if m == nil {
			continue
		}
		for _, inv := range m.Invariants {
			expr := strings.TrimSpace(inv.Expression)
			if expr == "" || seen[expr] {
				continue
			}
			seen[expr] = true
			out = append(out, pattern.Invariant{Expression: expr})
		}
	}
	return out
}

func mergeEvents(models []*pattern.Pattern) []pattern.Event {
	initEvent := pattern.Event{Name: pattern.InitialisationEvent, SourcePattern: initSource}
	seenInit := make(map[string]bool)

	var collected []pattern.Event
	for _, m := range models {
		if m == nil {
			continue
		}
		for _, e := range m.Events {
			if e.IsInitialisation() {
				for _, a := range e.Actions {
					asg := strings.TrimSpace(a.Assignment)
					if asg == "" || seenInit[asg] {
						continue
					}
					seenInit[asg] = true
					initEvent.Actions = append(initEvent.Actions, pattern.Action{Assignment: asg})
				}
				continue
			}

			c := copyEvent(e)
			if strings.TrimSpace(c.SourcePattern) == "" {
				c.SourcePattern = m.Name
			}
			collected = append(collected, c)
		}
	}

	processed := combine.Apply(collected)

	return append([]pattern.Event{initEvent}, dedupeEvents(processed)...)
}

// dedupeEvents drops an event whose name was already emitted by a
// structurally identical event, and renames it with the smallest free
// numeric suffix otherwise. Name collisions are checked case-insensitively.
//
// This is a different notion of "same event" from the combination table,
// which matches on (source pattern, name) regardless of content.
func dedupeEvents(events []pattern.Event) []pattern.Event {
	var out []pattern.Event
	byName := make(map[string]int)
	taken := make(map[string]bool)

	for _, e := range events {
		base := strings.TrimSpace(e.Name)
		if base == "" {
			continue
		}
		e.Name = base

		if idx, ok := byName[base]; ok && out[idx].Equivalent(e) {
			continue
		}

		candidate := base
		for suffix := 2; taken[strings.ToLower(candidate)]; suffix++ {
			candidate = fmt.Sprintf("%s_%d", base, suffix)
		}
		taken[strings.ToLower(candidate)] = true

		e.Name = candidate
		byName[candidate] = len(out)
		out = append(out, e)
	}
	return out
}

// copyEvent makes an independent copy with blank entries dropped and
// the remaining ones trimmed.
func copyEvent(src pattern.Event) pattern.Event {
	dst := pattern.Event{
		Name:          src.Name,
		SourcePattern: src.SourcePattern,
	}
	for _, p := range src.Params {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		dst.Params = append(dst.Params, pattern.Param{Name: name, Type: strings.TrimSpace(p.Type)})
	}
	for _, g := range src.Guards {
		if expr := strings.TrimSpace(g.Expr); expr != "" {
			dst.Guards = append(dst.Guards, pattern.Guard{Expr: expr})
		}
	}
	for _, a := range src.Actions {
		if asg := strings.TrimSpace(a.Assignment); asg != "" {
			dst.Actions = append(dst.Actions, pattern.Action{Assignment: asg})
		}
	}
	return dst
}

// orderedSet keeps the first occurrence of each exact string.
type orderedSet struct {
	items []string
	seen  map[string]bool
}

func (s *orderedSet) addAll(values []string) {
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	for _, v := range values {
		if s.seen[v] {
			continue
		}
		s.seen[v] = true
		s.items = append(s.items, v)
	}
}
