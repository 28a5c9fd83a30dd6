package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/patternweave/internal/eventb"
	"github.com/roach88/patternweave/internal/pattern"
)

// createTestStore opens a fresh database in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestArtifact maps a minimal model at the given refinement.
func createTestArtifact(t *testing.T, name string, refinement int) eventb.Artifact {
	t.Helper()
	a, err := eventb.ToEventB(&pattern.Pattern{
		Name:      name,
		Variables: []pattern.Variable{{Name: "x", Type: "ℕ"}},
	}, refinement)
	require.NoError(t, err)
	return a
}
