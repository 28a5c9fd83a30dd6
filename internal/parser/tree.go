package parser

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/roach88/patternweave/internal/pattern"
)

// node is one element of a decoded document. Namespaces are dropped;
// pattern documents only use local names.
type node struct {
	name     string
	attrs    map[string]string
	text     strings.Builder
	line     int
	children []*node
}

// attr returns the trimmed attribute value and whether it was present.
func (n *node) attr(name string) (string, bool) {
	v, ok := n.attrs[name]
	return strings.TrimSpace(v), ok
}

// attrOr returns the trimmed attribute, or def when absent or blank.
func (n *node) attrOr(name, def string) string {
	if v, ok := n.attr(name); ok && v != "" {
		return v
	}
	return def
}

// content returns the trimmed character data directly inside n.
func (n *node) content() string {
	return strings.TrimSpace(n.text.String())
}

// child returns the first child element with the given name.
func (n *node) child(name string) *node {
	for _, c := range n.children {
		if c.name == name {
			return c
		}
	}
	return nil
}

// childrenNamed returns every child element with the given name, in order.
func (n *node) childrenNamed(name string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// decode reads a whole document into a node tree. Failures are always
// MALFORMED_DOCUMENT errors.
func decode(r io.Reader, source string) (*node, *pattern.Error) {
	d := xml.NewDecoder(r)
	d.Strict = true

	var root *node
	var stack []*node

	for {
		line, _ := d.InputPos()
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(source, lineOf(err, line), "document is not well-formed XML", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, attrs: make(map[string]string, len(t.Attr)), line: line}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				n.attrs[a.Name.Local] = a.Value
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, malformed(source, line, "document has more than one root element", nil)
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, malformed(source, 0, "document has no root element", nil)
	}
	return root, nil
}

// lineOf prefers the line reported by the decoder's syntax error.
func lineOf(err error, fallback int) int {
	var se *xml.SyntaxError
	if errors.As(err, &se) && se.Line > 0 {
		return se.Line
	}
	return fallback
}

func malformed(source string, line int, msg string, cause error) *pattern.Error {
	return &pattern.Error{
		Kind:    pattern.ErrMalformedDocument,
		Message: msg,
		Source:  source,
		Line:    line,
		Err:     cause,
	}
}
