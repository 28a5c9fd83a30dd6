package generate

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/patternweave/internal/pattern"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mapLoader serves models from memory.
type mapLoader map[string]*pattern.Pattern

func (m mapLoader) Load(_ context.Context, ref string) (*pattern.Pattern, error) {
	p, ok := m[ref]
	if !ok {
		return nil, &pattern.Error{Kind: pattern.ErrResource, Element: ref, Message: "pattern not found", Err: os.ErrNotExist}
	}
	return p, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

const sendXML = `<PatternBundle name="SendBundle">
  <Pattern name="PSend" type="communication">
    <Variables><Variable name="sending" type="ℙ(ND)"/></Variables>
    <Initialisation><Action var="sending" value="∅"/></Initialisation>
    <Events>
      <Event name="start_tx">
        <Parameters><Param name="n" type="ND"/></Parameters>
        <Guards><Guard expression="n ∉ sending"/></Guards>
        <Actions><Action var="sending" value="sending ∪ {n}"/></Actions>
      </Event>
    </Events>
  </Pattern>
</PatternBundle>`

const bufferXML = `<PatternBundle name="BufferBundle">
  <Context name="Buf"><Sets><Set name="PKT"/></Sets></Context>
  <Pattern name="PNDBuffer" type="storage">
    <Variables><Variable name="ndBuff" type="ℙ(PKT)"/></Variables>
    <Events>
      <Event name="remove_ndBuff">
        <Parameters><Param name="p" type="PKT"/></Parameters>
        <Guards><Guard expression="p ∈ ndBuff"/></Guards>
        <Actions><Action var="ndBuff" value="ndBuff ∖ {p}"/></Actions>
      </Event>
    </Events>
  </Pattern>
</PatternBundle>`
