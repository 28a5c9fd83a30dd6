package pattern

import "strings"

// DefaultName is the name given to a pattern that does not declare one.
const DefaultName = "Pattern"

// InitialisationEvent is the reserved name of the initial event.
const InitialisationEvent = "Initialisation"

// Pattern is one parsed pattern fragment, or the result of composing several.
type Pattern struct {
	Name       string      `json:"name"`
	Context    *Context    `json:"context,omitempty"` // nil when no shared vocabulary
	Variables  []Variable  `json:"variables"`
	Invariants []Invariant `json:"invariants"`
	Events     []Event     `json:"events"`
}

// Context is the static vocabulary a machine may reference.
type Context struct {
	Sets      []string `json:"sets"`
	Constants []string `json:"constants"`
	Axioms    []string `json:"axioms"`
}

// Variable is a typed machine variable. Name is the merge key.
type Variable struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Invariant is a machine invariant. The trimmed expression is the merge key.
type Invariant struct {
	Expression string `json:"expression"`
}

// Event is a guarded, parameterised state transition.
type Event struct {
	Name          string   `json:"name"`
	SourcePattern string   `json:"source_pattern,omitempty"`
	Params        []Param  `json:"params"`
	Guards        []Guard  `json:"guards"`
	Actions       []Action `json:"actions"`
}

// Param is an event parameter. Type may be empty.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Guard is an event guard expression.
type Guard struct {
	Expr string `json:"expr"`
}

// Action is an event assignment, e.g. "x ≔ x + 1".
type Action struct {
	Assignment string `json:"assignment"`
}

// IsEmpty reports whether the context declares nothing.
func (c *Context) IsEmpty() bool {
	return c == nil || (len(c.Sets) == 0 && len(c.Constants) == 0 && len(c.Axioms) == 0)
}

// Clone returns a deep copy of the context.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	return &Context{
		Sets:      append([]string(nil), c.Sets...),
		Constants: append([]string(nil), c.Constants...),
		Axioms:    append([]string(nil), c.Axioms...),
	}
}

// IsInitialisation reports whether the event is the initial event.
// The comparison is case-insensitive.
func (e Event) IsInitialisation() bool {
	return strings.EqualFold(strings.TrimSpace(e.Name), InitialisationEvent)
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	return Event{
		Name:          e.Name,
		SourcePattern: e.SourcePattern,
		Params:        append([]Param(nil), e.Params...),
		Guards:        append([]Guard(nil), e.Guards...),
		Actions:       append([]Action(nil), e.Actions...),
	}
}

// Equivalent reports whether two events are structurally identical:
// same name, and the same params, guards and actions compared positionally.
func (e Event) Equivalent(other Event) bool {
	if e.Name != other.Name {
		return false
	}
	if len(e.Params) != len(other.Params) || len(e.Guards) != len(other.Guards) || len(e.Actions) != len(other.Actions) {
		return false
	}
	for i := range e.Params {
		if e.Params[i] != other.Params[i] {
			return false
		}
	}
	for i := range e.Guards {
		if e.Guards[i] != other.Guards[i] {
			return false
		}
	}
	for i := range e.Actions {
		if e.Actions[i] != other.Actions[i] {
			return false
		}
	}
	return true
}

// BaseName returns the trimmed pattern name, or DefaultName when blank.
func (p *Pattern) BaseName() string {
	if p == nil {
		return DefaultName
	}
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return DefaultName
}

// Clone returns a deep copy of the pattern.
func (p *Pattern) Clone() *Pattern {
	if p == nil {
		return nil
	}
	out := &Pattern{
		Name:       p.Name,
		Context:    p.Context.Clone(),
		Variables:  append([]Variable(nil), p.Variables...),
		Invariants: append([]Invariant(nil), p.Invariants...),
		Events:     make([]Event, len(p.Events)),
	}
	for i, e := range p.Events {
		out.Events[i] = e.Clone()
	}
	return out
}

// FindEvent returns the first event with the given name (exact match).
func (p *Pattern) FindEvent(name string) (Event, bool) {
	for _, e := range p.Events {
		if e.Name == name {
			return e, true
		}
	}
	return Event{}, false
}
