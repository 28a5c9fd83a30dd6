package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/patternweave/internal/eventb"
	"github.com/roach88/patternweave/internal/pattern"
)

// Run is one recorded generation.
type Run struct {
	ID        string     `json:"id"`
	Seq       int64      `json:"seq"`
	Project   string     `json:"project"`
	CreatedAt time.Time  `json:"created_at"`
	Layers    [][]string `json:"layers"`
}

// Artifact is one stored refinement of a run.
type Artifact struct {
	RunID       string `json:"run_id"`
	Refinement  int    `json:"refinement"`
	BaseName    string `json:"base_name"`
	ContextName string `json:"context_name"`
	MachineName string `json:"machine_name"`
	ContextHash string `json:"context_hash"`
	MachineHash string `json:"machine_hash"`
	ContextText string `json:"context_text"`
	MachineText string `json:"machine_text"`
}

// RecordRun stores a run with its inputs and artifacts in one transaction
// and returns it with its assigned ID and sequence.
func (s *Store) RecordRun(ctx context.Context, project string, layers [][]string, artifacts []eventb.Artifact) (Run, error) {
	if len(layers) == 0 {
		return Run{}, fmt.Errorf("record run: no layers")
	}

	run := Run{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Project:   project,
		CreatedAt: s.now(),
		Layers:    layers,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, project, created_at, layer_count)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.Project, run.CreatedAt.Format(time.RFC3339Nano), len(layers))
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	if run.Seq, err = res.LastInsertId(); err != nil {
		return Run{}, fmt.Errorf("record run: seq: %w", err)
	}

	if err := insertInputs(ctx, tx, run.ID, layers); err != nil {
		return Run{}, err
	}
	if err := insertArtifacts(ctx, tx, run.ID, artifacts); err != nil {
		return Run{}, err
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: commit: %w", err)
	}
	return run, nil
}

func insertInputs(ctx context.Context, tx *sql.Tx, runID string, layers [][]string) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_inputs (run_id, layer, position, ref)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("record inputs: %w", err)
	}
	defer stmt.Close()

	for layer, refs := range layers {
		for pos, ref := range refs {
			if _, err := stmt.ExecContext(ctx, runID, layer, pos, ref); err != nil {
				return fmt.Errorf("record input %d/%d: %w", layer, pos, err)
			}
		}
	}
	return nil
}

func insertArtifacts(ctx context.Context, tx *sql.Tx, runID string, artifacts []eventb.Artifact) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO artifacts
		(run_id, refinement, base_name, context_name, machine_name,
		 context_hash, machine_hash, context_text, machine_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("record artifacts: %w", err)
	}
	defer stmt.Close()

	for _, a := range artifacts {
		_, err := stmt.ExecContext(ctx,
			runID,
			a.Refinement,
			a.BaseName,
			a.ContextName,
			a.MachineName,
			pattern.ContentHash(pattern.DomainContext, a.ContextText),
			pattern.ContentHash(pattern.DomainMachine, a.MachineText),
			a.ContextText,
			a.MachineText,
		)
		if err != nil {
			return fmt.Errorf("record artifact %s: %w", a.MachineName, err)
		}
	}
	return nil
}
