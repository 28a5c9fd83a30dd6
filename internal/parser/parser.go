package parser

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/roach88/patternweave/internal/pattern"
)

const (
	bundleRoot  = "PatternBundle"
	patternRoot = "Pattern"
	skipKeyword = "skip"

	// assignOp joins the left and right side of an extracted action.
	assignOp = " ≔ "
)

// Parse reads one pattern document. source labels errors; it is usually the
// file name.
func Parse(r io.Reader, source string) (*pattern.Pattern, error) {
	root, err := decode(r, source)
	if err != nil {
		return nil, err
	}

	switch root.name {
	case bundleRoot:
		if errs := checkBundle(root, source); len(errs) > 0 {
			return nil, errs[0]
		}
		return extractBundle(root), nil
	case patternRoot:
		return extractLegacy(root), nil
	default:
		return nil, malformed(source, root.line,
			fmt.Sprintf("root element must be <%s> or <%s>, got <%s>", bundleRoot, patternRoot, root.name), nil)
	}
}

// ParseFile opens and parses the document at path.
func ParseFile(path string) (*pattern.Pattern, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &pattern.Error{
			Kind:    pattern.ErrResource,
			Message: "cannot open pattern document",
			Source:  path,
			Err:     err,
		}
	}
	defer f.Close()
	return Parse(f, path)
}

// Validate checks a document and returns every problem found. A document
// that cannot be decoded, or has the wrong root, yields exactly one error.
// Legacy <Pattern> documents have no grammar and are only checked for
// well-formedness.
func Validate(r io.Reader, source string) []*pattern.Error {
	root, err := decode(r, source)
	if err != nil {
		return []*pattern.Error{err}
	}
	switch root.name {
	case bundleRoot:
		return checkBundle(root, source)
	case patternRoot:
		return nil
	default:
		return []*pattern.Error{malformed(source, root.line,
			fmt.Sprintf("root element must be <%s> or <%s>, got <%s>", bundleRoot, patternRoot, root.name), nil)}
	}
}

func extractBundle(root *node) *pattern.Pattern {
	p := root.child(patternRoot)

	contexts := root.childrenNamed("Context")
	var ctxNode *node
	if ref := p.child("ContextRef"); ref != nil {
		name, _ := ref.attr("name")
		for _, c := range contexts {
			if n, _ := c.attr("name"); n == name {
				ctxNode = c
				break
			}
		}
	} else if len(contexts) == 1 {
		ctxNode = contexts[0]
	}

	return extractPattern(p, ctxNode)
}

func extractLegacy(root *node) *pattern.Pattern {
	return extractPattern(root, root.child("Context"))
}

// extractPattern builds the model from a <Pattern> element. Missing names
// fall back to positional defaults so that lenient documents still map.
func extractPattern(p *node, ctxNode *node) *pattern.Pattern {
	m := &pattern.Pattern{Name: p.attrOr("name", pattern.DefaultName)}
	if ctxNode != nil {
		m.Context = extractContext(ctxNode)
	}

	if vars := p.child("Variables"); vars != nil {
		for i, v := range vars.childrenNamed("Variable") {
			m.Variables = append(m.Variables, pattern.Variable{
				Name: v.attrOr("name", "v"+strconv.Itoa(i+1)),
				Type: v.attrOr("type", ""),
			})
		}
	}

	if invs := p.child("Invariants"); invs != nil {
		for _, inv := range invs.childrenNamed("Invariant") {
			if expr := expression(inv); expr != "" {
				m.Invariants = append(m.Invariants, pattern.Invariant{Expression: expr})
			}
		}
	}

	if init := p.child("Initialisation"); init != nil {
		m.Events = append(m.Events, pattern.Event{
			Name:          pattern.InitialisationEvent,
			SourcePattern: m.Name,
			Actions:       extractActions(init),
		})
	}

	if events := p.child("Events"); events != nil {
		for i, e := range events.childrenNamed("Event") {
			m.Events = append(m.Events, extractEvent(e, i, m.Name))
		}
	}

	return m
}

func extractContext(c *node) *pattern.Context {
	ctx := &pattern.Context{}
	seen := make(map[string]bool)
	if sets := c.child("Sets"); sets != nil {
		for _, s := range sets.childrenNamed("Set") {
			name, _ := s.attr("name")
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			ctx.Sets = append(ctx.Sets, name)
		}
	}
	if consts := c.child("Constants"); consts != nil {
		for _, k := range consts.childrenNamed("Constant") {
			if name, _ := k.attr("name"); name != "" {
				ctx.Constants = append(ctx.Constants, name)
			}
		}
	}
	if axioms := c.child("Axioms"); axioms != nil {
		for _, ax := range axioms.childrenNamed("Axiom") {
			if expr := expression(ax); expr != "" {
				ctx.Axioms = append(ctx.Axioms, expr)
			}
		}
	}
	if ctx.IsEmpty() {
		return nil
	}
	return ctx
}

func extractEvent(e *node, index int, source string) pattern.Event {
	evt := pattern.Event{
		Name:          e.attrOr("name", "event"+strconv.Itoa(index+1)),
		SourcePattern: source,
	}
	if params := e.child("Parameters"); params != nil {
		for j, p := range params.childrenNamed("Param") {
			evt.Params = append(evt.Params, pattern.Param{
				Name: p.attrOr("name", "p"+strconv.Itoa(j+1)),
				Type: p.attrOr("type", ""),
			})
		}
	}
	if guards := e.child("Guards"); guards != nil {
		for _, g := range guards.childrenNamed("Guard") {
			if expr := expression(g); expr != "" {
				evt.Guards = append(evt.Guards, pattern.Guard{Expr: expr})
			}
		}
	}
	if actions := e.child("Actions"); actions != nil {
		evt.Actions = extractActions(actions)
	}
	return evt
}

func extractActions(parent *node) []pattern.Action {
	var out []pattern.Action
	for _, a := range parent.childrenNamed("Action") {
		if asg, ok := assignment(a); ok {
			out = append(out, pattern.Action{Assignment: asg})
		}
	}
	return out
}

// assignment renders one <Action>. ok is false for skip actions and for
// actions with nothing to say.
func assignment(a *node) (string, bool) {
	if vars, _ := a.attr("vars"); vars != "" {
		values, _ := a.attr("values")
		if values == "" || isSkip(values) {
			return "", false
		}
		return joinNames(vars) + assignOp + values, true
	}

	value, _ := a.attr("value")
	if v, _ := a.attr("var"); v != "" {
		if isSkip(v) || value == "" || isSkip(value) {
			return "", false
		}
		return v + assignOp + value, true
	}

	// Legacy actions may carry the whole assignment in value or as text.
	if value == "" {
		value = a.content()
	}
	if value == "" || isSkip(value) {
		return "", false
	}
	return value, true
}

// expression reads the expression attribute, falling back to element text.
func expression(n *node) string {
	if v, _ := n.attr("expression"); v != "" {
		return v
	}
	return n.content()
}

func joinNames(list string) string {
	parts := strings.Split(list, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func isSkip(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), skipKeyword)
}
