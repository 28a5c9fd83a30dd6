package parser

import (
	"regexp"
	"strings"

	"github.com/roach88/patternweave/internal/pattern"
)

const identSrc = `[A-Za-z_:][A-Za-z0-9_\-.:]*`

var (
	identPattern     = regexp.MustCompile(`^` + identSrc + `$`)
	identListPattern = regexp.MustCompile(`^\s*` + identSrc + `(\s*,\s*` + identSrc + `)*\s*$`)
)

// grammar collects every violation found in a bundle rather than stopping
// at the first one.
type grammar struct {
	source string
	errs   []*pattern.Error
}

func (g *grammar) violate(n *node, format string, args ...any) {
	err := pattern.Errorf(pattern.ErrSchemaViolation, n.name, format, args...)
	err.Source = g.source
	err.Line = n.line
	g.errs = append(g.errs, err)
}

// checkBundle validates a <PatternBundle> element and everything below it.
func checkBundle(root *node, source string) []*pattern.Error {
	g := &grammar{source: source}
	g.bundle(root)
	return g.errs
}

func (g *grammar) bundle(root *node) {
	g.requireName(root, "name")

	var contexts []*node
	var patterns []*node
	for _, c := range root.children {
		switch c.name {
		case "Context":
			contexts = append(contexts, c)
		case "Pattern":
			patterns = append(patterns, c)
		default:
			g.violate(c, "unexpected element in <PatternBundle>")
		}
	}

	switch {
	case len(patterns) == 0:
		g.violate(root, "bundle is missing a <Pattern> element")
	case len(patterns) > 1:
		g.violate(patterns[1], "bundle must contain exactly one <Pattern>")
	}

	names := make(map[string]bool, len(contexts))
	for _, ctx := range contexts {
		name := g.context(ctx)
		if name == "" {
			continue
		}
		if names[name] {
			g.violate(ctx, "duplicate context name %q", name)
		}
		names[name] = true
	}

	if len(patterns) > 0 {
		g.pattern(patterns[0], names)
	}
}

// context validates one <Context> and returns its name ("" if invalid).
func (g *grammar) context(ctx *node) string {
	name := g.requireName(ctx, "name")
	for _, c := range ctx.children {
		switch c.name {
		case "Sets":
			g.named(c, "Set")
		case "Constants":
			g.named(c, "Constant")
		case "Axioms":
			g.expressions(c, "Axiom", false)
		default:
			g.violate(c, "unexpected element in <Context>")
		}
	}
	return name
}

func (g *grammar) pattern(p *node, contexts map[string]bool) {
	g.requireName(p, "name")
	g.requireAttr(p, "type")

	seen := make(map[string]bool)
	once := func(c *node) bool {
		if seen[c.name] {
			g.violate(c, "duplicate <%s> section", c.name)
			return false
		}
		seen[c.name] = true
		return true
	}

	for _, c := range p.children {
		switch c.name {
		case "ContextRef":
			if !once(c) {
				continue
			}
			ref := g.requireName(c, "name")
			if ref != "" && len(contexts) > 0 && !contexts[ref] {
				g.violate(c, "reference to unknown context %q", ref)
			}
		case "Variables":
			if once(c) {
				g.variables(c)
			}
		case "Invariants":
			if once(c) {
				g.expressions(c, "Invariant", false)
			}
		case "Initialisation":
			if once(c) {
				g.actions(c)
			}
		case "Events":
			if once(c) {
				g.events(c)
			}
		default:
			g.violate(c, "unexpected element in <Pattern>")
		}
	}

	if len(contexts) > 1 && !seen["ContextRef"] {
		g.violate(p, "a <ContextRef> is required when the bundle declares %d contexts", len(contexts))
	}
}

func (g *grammar) variables(vars *node) {
	for _, v := range vars.children {
		if !g.expect(v, "Variable") {
			continue
		}
		g.requireName(v, "name")
		g.requireAttr(v, "type")
	}
}

func (g *grammar) events(events *node) {
	count := 0
	for _, e := range events.children {
		if !g.expect(e, "Event") {
			continue
		}
		g.event(e)
		count++
	}
	if count == 0 {
		g.violate(events, "must contain at least one <Event>")
	}
}

func (g *grammar) event(e *node) {
	name := g.requireName(e, "name")

	seen := make(map[string]bool)
	for _, c := range e.children {
		switch c.name {
		case "Parameters", "Guards", "Actions":
			if seen[c.name] {
				g.violate(c, "event %q has duplicate <%s> sections", name, c.name)
				continue
			}
			seen[c.name] = true
		default:
			g.violate(c, "unexpected element in <Event>")
			continue
		}

		switch c.name {
		case "Parameters":
			g.parameters(c)
		case "Guards":
			g.expressions(c, "Guard", true)
		case "Actions":
			g.actions(c)
		}
	}

	if !seen["Actions"] {
		g.violate(e, "event %q must contain an <Actions> section", name)
	}
}

func (g *grammar) parameters(params *node) {
	count := 0
	for _, p := range params.children {
		if !g.expect(p, "Param") {
			continue
		}
		g.requireName(p, "name")
		count++
	}
	if count == 0 {
		g.violate(params, "must contain at least one <Param>")
	}
}

// named validates a list of <tag name="..."/> children.
func (g *grammar) named(parent *node, tag string) {
	for _, c := range parent.children {
		if g.expect(c, tag) {
			g.requireName(c, "name")
		}
	}
}

// expressions validates a list of <tag expression="..."/> children.
func (g *grammar) expressions(parent *node, tag string, requireOne bool) {
	count := 0
	for _, c := range parent.children {
		if !g.expect(c, tag) {
			continue
		}
		g.requireAttr(c, "expression")
		count++
	}
	if requireOne && count == 0 {
		g.violate(parent, "must contain at least one <%s>", tag)
	}
}

func (g *grammar) actions(parent *node) {
	count := 0
	for _, a := range parent.children {
		if !g.expect(a, "Action") {
			continue
		}
		g.action(a)
		count++
	}
	if count == 0 {
		g.violate(parent, "must contain at least one <Action>")
	}
}

func (g *grammar) action(a *node) {
	single, _ := a.attr("var")
	value, _ := a.attr("value")
	vars, _ := a.attr("vars")
	values, _ := a.attr("values")

	switch {
	case single != "" && vars != "":
		g.violate(a, "action cannot mix 'var' with 'vars'")
	case vars != "":
		if values == "" {
			g.violate(a, "action with 'vars' must include matching 'values'")
		}
		if !identListPattern.MatchString(vars) {
			g.violate(a, "'vars' must be a comma separated list of names, got %q", vars)
		}
	case values != "":
		g.violate(a, "action with 'values' must be accompanied by 'vars'")
	case single != "":
		if !strings.EqualFold(single, skipKeyword) && value == "" {
			g.violate(a, "action with 'var' must include a non-empty 'value'")
		}
	default:
		g.violate(a, "action must specify either 'var' or 'vars'")
	}
}

// expect reports whether n has the wanted tag, recording a violation if not.
func (g *grammar) expect(n *node, tag string) bool {
	if n.name == tag {
		return true
	}
	g.violate(n, "expected <%s>", tag)
	return false
}

// requireAttr returns the trimmed attribute, recording a violation when it
// is absent or blank.
func (g *grammar) requireAttr(n *node, attr string) string {
	v, ok := n.attr(attr)
	switch {
	case !ok:
		g.violate(n, "attribute %q is required", attr)
		return ""
	case v == "":
		g.violate(n, "attribute %q must not be blank", attr)
		return ""
	}
	return v
}

// requireName is requireAttr plus an identifier check.
func (g *grammar) requireName(n *node, attr string) string {
	v := g.requireAttr(n, attr)
	if v == "" {
		return ""
	}
	if !identPattern.MatchString(v) {
		g.violate(n, "attribute %q is not a valid identifier: %q", attr, v)
		return ""
	}
	return v
}
