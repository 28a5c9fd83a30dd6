package store

import (
	"context"
	"fmt"
	"time"
)

// DefaultListLimit caps ListRuns when no limit is given.
const DefaultListLimit = 20

// ListRuns returns recorded runs, newest first. An empty project lists
// every project; limit <= 0 means DefaultListLimit.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListRuns(ctx context.Context, project string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, project, created_at
		FROM runs
		WHERE ? = '' OR project = ?
		ORDER BY seq DESC
		LIMIT ?
	`, project, project, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var created string
		if err := rows.Scan(&r.Seq, &r.ID, &r.Project, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("run %s: bad created_at %q: %w", r.ID, created, err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	for i := range runs {
		if runs[i].Layers, err = s.layers(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// layers rebuilds the ordered layer list of a run.
func (s *Store) layers(ctx context.Context, runID string) ([][]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT layer, ref
		FROM run_inputs
		WHERE run_id = ?
		ORDER BY layer ASC, position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query inputs: %w", err)
	}
	defer rows.Close()

	var layers [][]string
	for rows.Next() {
		var layer int
		var ref string
		if err := rows.Scan(&layer, &ref); err != nil {
			return nil, fmt.Errorf("scan input: %w", err)
		}
		for len(layers) <= layer {
			layers = append(layers, []string{})
		}
		layers[layer] = append(layers[layer], ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inputs: %w", err)
	}
	return layers, nil
}

// Artifacts returns the stored artifacts of a run ordered by refinement.
//
// Returns an empty slice (not nil) for an unknown run.
func (s *Store) Artifacts(ctx context.Context, runID string) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, refinement, base_name, context_name, machine_name,
		       context_hash, machine_hash, context_text, machine_text
		FROM artifacts
		WHERE run_id = ?
		ORDER BY refinement ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	out := []Artifact{}
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.RunID, &a.Refinement, &a.BaseName, &a.ContextName, &a.MachineName,
			&a.ContextHash, &a.MachineHash, &a.ContextText, &a.MachineText); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return out, nil
}
