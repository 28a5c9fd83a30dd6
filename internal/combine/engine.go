package combine

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/roach88/patternweave/internal/pattern"
)

// compositeSource is the source pattern of a merged event whose inputs
// carry no source pattern at all.
const compositeSource = "Composite"

// KeyOf returns the rule-matching key of an event.
// Events with a blank name or source pattern have no key and never
// participate in a rule.
func KeyOf(e pattern.Event) (EventKey, bool) {
	p, n := normalize(e.SourcePattern), normalize(e.Name)
	if p == "" || n == "" {
		return EventKey{}, false
	}
	return EventKey{Pattern: p, Event: n}, true
}

// Apply runs the combination table over events and returns a new list.
// The input slice and its events are left untouched.
func Apply(events []pattern.Event) []pattern.Event {
	return apply(ruleTable[:], events)
}

func apply(rules []Rule, events []pattern.Event) []pattern.Event {
	if len(events) == 0 {
		return []pattern.Event{}
	}

	// First occurrence wins; later duplicates still pass through below.
	lookup := make(map[EventKey]int, len(events))
	for i, e := range events {
		if k, ok := KeyOf(e); ok {
			if _, seen := lookup[k]; !seen {
				lookup[k] = i
			}
		}
	}

	consumed := make(map[EventKey]bool)
	out := make([]pattern.Event, 0, len(events))

	for _, rule := range rules {
		matches, ok := resolve(rule, events, lookup)
		if !ok {
			continue
		}
		out = append(out, merge(rule.OutputName, matches))
		for _, m := range matches {
			if k, ok := KeyOf(m); ok {
				consumed[k] = true
			}
		}
	}

	for _, e := range events {
		k, ok := KeyOf(e)
		if !ok || !consumed[k] {
			out = append(out, e.Clone())
		}
	}

	return out
}

// resolve returns the events referenced by rule, or false if any is missing.
func resolve(rule Rule, events []pattern.Event, lookup map[EventKey]int) ([]pattern.Event, bool) {
	if len(rule.Refs) == 0 {
		return nil, false
	}
	matches := make([]pattern.Event, 0, len(rule.Refs))
	for _, ref := range rule.Refs {
		idx, ok := lookup[ref.Key()]
		if !ok {
			return nil, false
		}
		matches = append(matches, events[idx])
	}
	return matches, true
}

// merge folds the matched events into one composite event.
func merge(outputName string, sources []pattern.Event) pattern.Event {
	merged := pattern.Event{Name: strings.TrimSpace(outputName)}
	if merged.Name == "" {
		merged.Name = sources[0].Name
	}

	var origins []string
	seenOrigin := make(map[string]bool)
	for _, e := range sources {
		src := strings.TrimSpace(e.SourcePattern)
		if src == "" || seenOrigin[src] {
			continue
		}
		seenOrigin[src] = true
		origins = append(origins, src)
	}
	merged.SourcePattern = strings.Join(origins, "+")
	if merged.SourcePattern == "" {
		merged.SourcePattern = compositeSource
	}

	paramIdx := make(map[string]int)
	for _, e := range sources {
		for _, p := range e.Params {
			name := strings.TrimSpace(p.Name)
			if name == "" {
				continue
			}
			typ := strings.TrimSpace(p.Type)
			i, exists := paramIdx[name]
			if !exists {
				paramIdx[name] = len(merged.Params)
				merged.Params = append(merged.Params, pattern.Param{Name: name, Type: typ})
				continue
			}
			if typ != "" {
				merged.Params[i].Type = ReconcileType(merged.Params[i].Type, typ)
			}
		}
	}

	seenGuard := make(map[string]bool)
	for _, e := range sources {
		for _, g := range e.Guards {
			expr := strings.TrimSpace(g.Expr)
			if expr == "" || seenGuard[expr] {
				continue
			}
			seenGuard[expr] = true
			merged.Guards = append(merged.Guards, pattern.Guard{Expr: expr})
		}
	}

	seenAction := make(map[string]bool)
	for _, e := range sources {
		for _, a := range e.Actions {
			asg := strings.TrimSpace(a.Assignment)
			if asg == "" || seenAction[asg] {
				continue
			}
			seenAction[asg] = true
			merged.Actions = append(merged.Actions, pattern.Action{Assignment: asg})
		}
	}

	return merged
}

// ReconcileType picks the type of a parameter declared by several merged
// events. In order:
//   - a blank side yields the other
//   - identical strings, or whitespace-stripped forms equal ignoring case,
//     keep current
//   - when one stripped form contains the other, the containing one wins
//   - otherwise the longer string wins, incoming on a tie
//
// The last step is a textual heuristic: ℙ(ND) and ℙ(NDext) resolve to
// ℙ(NDext) by length even though they name different sets.
func ReconcileType(current, incoming string) string {
	candidate := strings.TrimSpace(incoming)
	if candidate == "" {
		return current
	}
	existing := strings.TrimSpace(current)
	if existing == "" {
		return candidate
	}
	if existing == candidate {
		return existing
	}

	normExisting := stripSpace(existing)
	normCandidate := stripSpace(candidate)

	if strings.EqualFold(normCandidate, normExisting) {
		return existing
	}
	if strings.Contains(normCandidate, normExisting) {
		return candidate
	}
	if strings.Contains(normExisting, normCandidate) {
		return existing
	}

	if utf8.RuneCountInString(candidate) >= utf8.RuneCountInString(existing) {
		return candidate
	}
	return existing
}

// stripSpace removes every whitespace rune.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
