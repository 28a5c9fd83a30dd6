package eventb

import (
	"fmt"
	"strings"
)

const indentUnit = "  "

// textBuilder accumulates lines of output for one rendering call.
type textBuilder struct {
	sb strings.Builder
}

// line writes one line at the given indentation depth.
func (t *textBuilder) line(depth int, parts ...string) {
	for i := 0; i < depth; i++ {
		t.sb.WriteString(indentUnit)
	}
	for _, p := range parts {
		t.sb.WriteString(p)
	}
	t.sb.WriteByte('\n')
}

// labelled writes "@<prefix><NN> <body>" at the given depth.
func (t *textBuilder) labelled(depth int, prefix string, n int, body string) {
	t.line(depth, label(prefix, n), " ", body)
}

func (t *textBuilder) blank() {
	t.sb.WriteByte('\n')
}

func (t *textBuilder) String() string {
	return t.sb.String()
}

// label formats a two-digit, zero-padded Event-B label.
func label(prefix string, n int) string {
	return fmt.Sprintf("@%s%02d", prefix, n)
}
