package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/patternweave/internal/eventb"
	"github.com/roach88/patternweave/internal/pattern"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "open %d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"runs", "run_inputs", "artifacts"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, table)
	}

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "history.db"))
	assert.Error(t, err)
}

func TestRecordRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	layers := [][]string{{"PSend.xml"}, {"PSend.xml", "PNDBuffer.xml"}}
	arts := []eventb.Artifact{
		createTestArtifact(t, "PSend", 0),
		createTestArtifact(t, "PSend_Composite", 1),
	}

	run, err := s.RecordRun(ctx, "Net", layers, arts)
	require.NoError(t, err)

	id, err := uuid.Parse(run.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, int64(1), run.Seq)
	assert.Equal(t, fixed, run.CreatedAt)

	runs, err := s.ListRuns(ctx, "Net", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run, runs[0])

	stored, err := s.Artifacts(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "PSend_M0", stored[0].MachineName)
	assert.Equal(t, arts[1].MachineText, stored[1].MachineText)
	assert.Equal(t, pattern.ContentHash(pattern.DomainContext, arts[0].ContextText), stored[0].ContextHash)
	assert.Equal(t, pattern.ContentHash(pattern.DomainMachine, arts[1].MachineText), stored[1].MachineHash)
	assert.NotEqual(t, stored[0].ContextHash, stored[0].MachineHash)
}

func TestRecordRunRejectsEmptyLayers(t *testing.T) {
	s := createTestStore(t)
	_, err := s.RecordRun(context.Background(), "Net", nil, nil)
	assert.Error(t, err)
}

func TestRecordRunIsAtomic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Two artifacts with the same refinement violate the primary key.
	a := createTestArtifact(t, "PSend", 0)
	_, err := s.RecordRun(ctx, "Net", [][]string{{"a.xml"}}, []eventb.Artifact{a, a})
	require.Error(t, err)

	runs, err := s.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)

	var inputs int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM run_inputs").Scan(&inputs))
	assert.Zero(t, inputs)
}

func TestListRunsOrderingAndFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, project := range []string{"A", "B", "A", "A"} {
		run, err := s.RecordRun(ctx, project, [][]string{{"p.xml"}}, []eventb.Artifact{createTestArtifact(t, "P", 0)})
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	all, err := s.ListRuns(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, ids[3], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[3].ID)

	onlyA, err := s.ListRuns(ctx, "A", 2)
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, ids[3], onlyA[0].ID)
	assert.Equal(t, ids[2], onlyA[1].ID)
	assert.Equal(t, [][]string{{"p.xml"}}, onlyA[0].Layers)

	none, err := s.ListRuns(ctx, "C", 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestArtifactsUnknownRun(t *testing.T) {
	s := createTestStore(t)
	arts, err := s.Artifacts(context.Background(), "nope")
	require.NoError(t, err)
	assert.NotNil(t, arts)
	assert.Empty(t, arts)
}
