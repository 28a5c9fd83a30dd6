package generate

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/patternweave/internal/eventb"
	"github.com/roach88/patternweave/internal/pattern"
)

func sampleResult(t *testing.T, project string) *Result {
	t.Helper()
	a0, err := eventb.ToEventB(&pattern.Pattern{Name: "PSend"}, 0)
	require.NoError(t, err)
	a1, err := eventb.ToEventB(&pattern.Pattern{Name: "PSend_Composite"}, 1)
	require.NoError(t, err)
	return &Result{Project: project, Artifacts: []eventb.Artifact{a0, a1}}
}

func TestWriterWrite(t *testing.T) {
	ws := t.TempDir()
	res := sampleResult(t, "Net")

	paths, err := NewWriter(ws, testLogger()).Write(res)
	require.NoError(t, err)
	require.Len(t, paths, 5)

	want := map[string]string{
		"Net/machine0/PSend_C0.ctx":           res.Artifacts[0].ContextText,
		"Net/machine0/PSend_M0.bcm":           res.Artifacts[0].MachineText,
		"Net/machine1/PSend_Composite_C1.ctx": res.Artifacts[1].ContextText,
		"Net/machine1/PSend_Composite_M1.bcm": res.Artifacts[1].MachineText,
		"Net/bnf/PatternBundleGrammar.bnf":    string(Grammar()),
	}
	for rel, content := range want {
		got, err := os.ReadFile(filepath.Join(ws, filepath.FromSlash(rel)))
		require.NoError(t, err, rel)
		assert.Equal(t, content, string(got), rel)
	}

	leftovers, err := filepath.Glob(filepath.Join(ws, "Net", "machine0", ".*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestWriterOverwrites(t *testing.T) {
	ws := t.TempDir()
	w := NewWriter(ws, testLogger())

	_, err := w.Write(sampleResult(t, "Net"))
	require.NoError(t, err)
	second := rewrittenResult(t, "Net")
	_, err = w.Write(second)
	require.NoError(t, err)
	assertProjectFiles(t, ws, second)
	assertNoScratchFiles(t, ws)
}

func TestWriterRejectsUnsafeProject(t *testing.T) {
	w := NewWriter(t.TempDir(), testLogger())
	for _, name := range []string{"", "../escape", "a b", ".."} {
		_, err := w.Write(sampleResult(t, name))
		assert.Error(t, err, name)
	}
}

func TestWriterRollsBackOnFailure(t *testing.T) {
	ws := t.TempDir()
	// A regular file where the second refinement directory should go.
	writeFile(t, ws, "Net/machine1", "in the way")

	_, err := NewWriter(ws, testLogger()).Write(sampleResult(t, "Net"))
	require.Error(t, err)
	assert.True(t, pattern.IsKind(err, pattern.ErrResource))

	_, statErr := os.Stat(filepath.Join(ws, "Net", "machine0", "PSend_C0.ctx"))
	assert.ErrorIs(t, statErr, os.ErrNotExist, "files written before the failure are removed")
	_, statErr = os.Stat(filepath.Join(ws, "Net", "machine0"))
	assert.ErrorIs(t, statErr, os.ErrNotExist, "directories created for the project are removed")
	assert.FileExists(t, filepath.Join(ws, "Net", "machine1"))
}

// rewrittenResult is sampleResult with different texts, so a second write
// can be told apart from the first.
func rewrittenResult(t *testing.T, project string) *Result {
	t.Helper()
	res := sampleResult(t, project)
	for i := range res.Artifacts {
		res.Artifacts[i].ContextText += "// second run\n"
		res.Artifacts[i].MachineText += "// second run\n"
	}
	return res
}

func assertProjectFiles(t *testing.T, ws string, res *Result) {
	t.Helper()
	for _, a := range res.Artifacts {
		dir := filepath.Join(ws, res.Project, RefinementDir(a.Refinement))
		got, err := os.ReadFile(filepath.Join(dir, a.ContextFile()))
		require.NoError(t, err)
		assert.Equal(t, a.ContextText, string(got))
		got, err = os.ReadFile(filepath.Join(dir, a.MachineFile()))
		require.NoError(t, err)
		assert.Equal(t, a.MachineText, string(got))
	}
}

func assertNoScratchFiles(t *testing.T, ws string) {
	t.Helper()
	err := filepath.WalkDir(ws, func(p string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		name := d.Name()
		assert.False(t, strings.HasSuffix(name, ".tmp") || strings.HasSuffix(name, ".bak"), p)
		return nil
	})
	require.NoError(t, err)
}

func TestWriterFailureKeepsPreviousRun(t *testing.T) {
	ws := t.TempDir()
	w := NewWriter(ws, testLogger())

	first := sampleResult(t, "Net")
	_, err := w.Write(first)
	require.NoError(t, err)

	// The second refinement directory becomes a regular file, so the next
	// write fails after machine0 has already been replaced.
	machine1 := filepath.Join(ws, "Net", "machine1")
	require.NoError(t, os.RemoveAll(machine1))
	require.NoError(t, os.WriteFile(machine1, []byte("in the way"), 0o644))

	_, err = w.Write(rewrittenResult(t, "Net"))
	require.Error(t, err)
	assert.True(t, pattern.IsKind(err, pattern.ErrResource))

	got, err := os.ReadFile(filepath.Join(ws, "Net", "machine0", "PSend_C0.ctx"))
	require.NoError(t, err)
	assert.Equal(t, first.Artifacts[0].ContextText, string(got))
	got, err = os.ReadFile(filepath.Join(ws, "Net", "machine0", "PSend_M0.bcm"))
	require.NoError(t, err)
	assert.Equal(t, first.Artifacts[0].MachineText, string(got))
	assertNoScratchFiles(t, ws)
}

func TestStageRollbackRestoresPreviousRun(t *testing.T) {
	ws := t.TempDir()
	w := NewWriter(ws, testLogger())

	first := sampleResult(t, "Net")
	_, err := w.Write(first)
	require.NoError(t, err)

	second := rewrittenResult(t, "Net")
	out, err := w.Stage(second)
	require.NoError(t, err)
	assertProjectFiles(t, ws, second)

	out.Rollback()
	assertProjectFiles(t, ws, first)
	assertNoScratchFiles(t, ws)

	out.Commit()
	assertProjectFiles(t, ws, first)
}

func TestStageRollbackOfNewProject(t *testing.T) {
	ws := t.TempDir()
	out, err := NewWriter(ws, testLogger()).Stage(sampleResult(t, "Net"))
	require.NoError(t, err)
	require.Len(t, out.Paths, 5)

	out.Rollback()
	entries, err := os.ReadDir(ws)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStageCommitDropsBackups(t *testing.T) {
	ws := t.TempDir()
	w := NewWriter(ws, testLogger())
	_, err := w.Write(sampleResult(t, "Net"))
	require.NoError(t, err)

	second := rewrittenResult(t, "Net")
	out, err := w.Stage(second)
	require.NoError(t, err)
	out.Commit()
	out.Rollback()

	assertProjectFiles(t, ws, second)
	assertNoScratchFiles(t, ws)
}

func TestArchive(t *testing.T) {
	res := sampleResult(t, "Net")

	data, err := Archive(res)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var names []string
	contents := make(map[string]string)
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		contents[f.Name] = string(b)
	}

	assert.Equal(t, []string{
		"Net/",
		"Net/machine0/",
		"Net/machine0/PSend_C0.ctx",
		"Net/machine0/PSend_M0.bcm",
		"Net/machine1/",
		"Net/machine1/PSend_Composite_C1.ctx",
		"Net/machine1/PSend_Composite_M1.bcm",
		"Net/bnf/",
		"Net/bnf/PatternBundleGrammar.bnf",
	}, names)
	assert.Equal(t, res.Artifacts[1].MachineText, contents["Net/machine1/PSend_Composite_M1.bcm"])
	assert.Equal(t, string(Grammar()), contents["Net/bnf/PatternBundleGrammar.bnf"])

	_, err = Archive(&Result{Project: "bad name"})
	assert.Error(t, err)
}

func TestGrammarIsACopy(t *testing.T) {
	g := Grammar()
	require.NotEmpty(t, g)
	g[0] = 'X'
	assert.NotEqual(t, byte('X'), Grammar()[0])
}
