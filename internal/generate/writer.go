package generate

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	_ "embed"

	"github.com/roach88/patternweave/internal/pattern"
)

// GrammarPath is where the bundle grammar is placed inside a project.
const GrammarPath = "bnf/PatternBundleGrammar.bnf"

//go:embed grammar.bnf
var grammarBNF []byte

// Grammar returns the pattern bundle grammar in BNF.
func Grammar() []byte {
	return append([]byte(nil), grammarBNF...)
}

// outputFile is one file of a project, relative to the workspace.
type outputFile struct {
	rel  string
	data []byte
}

// projectFiles lists every file of res under its project directory.
func projectFiles(res *Result) ([]outputFile, error) {
	if SanitizeProjectName(res.Project) != res.Project || res.Project == "" {
		return nil, fmt.Errorf("invalid project name %q", res.Project)
	}
	files := make([]outputFile, 0, 2*len(res.Artifacts)+1)
	for _, a := range res.Artifacts {
		dir := path.Join(res.Project, RefinementDir(a.Refinement))
		files = append(files,
			outputFile{rel: path.Join(dir, a.ContextFile()), data: []byte(a.ContextText)},
			outputFile{rel: path.Join(dir, a.MachineFile()), data: []byte(a.MachineText)},
		)
	}
	files = append(files, outputFile{rel: path.Join(res.Project, GrammarPath), data: grammarBNF})
	return files, nil
}

// Writer materializes results under a workspace directory:
//
//	<workspace>/<project>/machine<i>/<base>_C<i>.ctx
//	<workspace>/<project>/machine<i>/<base>_M<i>.bcm
//	<workspace>/<project>/bnf/PatternBundleGrammar.bnf
type Writer struct {
	workspace string
	logger    *slog.Logger
}

// NewWriter creates a writer for workspace.
func NewWriter(workspace string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{workspace: workspace, logger: logger}
}

// ProjectDir returns the directory a project is written to.
func (w *Writer) ProjectDir(project string) string {
	return filepath.Join(w.workspace, project)
}

// Write stores every file of res and returns their paths. It is Stage
// followed by Commit.
func (w *Writer) Write(res *Result) ([]string, error) {
	out, err := w.Stage(res)
	if err != nil {
		return nil, err
	}
	out.Commit()
	return out.Paths, nil
}

// Stage puts every file of res in place and returns an Output that must be
// committed or rolled back. Each file is written to a temporary name and
// renamed into place; a file it replaces is moved aside first. If any
// write fails, the workspace is restored before Stage returns.
func (w *Writer) Stage(res *Result) (*Output, error) {
	files, err := projectFiles(res)
	if err != nil {
		return nil, err
	}

	out := &Output{Paths: make([]string, 0, len(files)), logger: w.logger}
	for _, f := range files {
		dst := filepath.Join(w.workspace, filepath.FromSlash(f.rel))
		out.created = append(out.created, missingDirs(filepath.Dir(dst))...)
		p, err := placeFile(dst, f.data)
		if err != nil {
			out.Rollback()
			return nil, &pattern.Error{
				Kind:    pattern.ErrResource,
				Message: "cannot write generated file",
				Source:  dst,
				Err:     err,
			}
		}
		out.placed = append(out.placed, p)
		out.Paths = append(out.Paths, dst)
	}

	w.logger.Info("wrote project",
		"project", res.Project,
		"dir", w.ProjectDir(res.Project),
		"files", len(out.Paths))
	return out, nil
}

// Output is a staged project write. Replaced files are kept aside until
// Commit discards them or Rollback puts them back. Once either has run,
// further calls do nothing, so Rollback can be deferred.
type Output struct {
	Paths []string

	placed  []placed
	created []string
	done    bool
	logger  *slog.Logger
}

type placed struct {
	dst    string
	backup string // empty when dst did not exist before
}

// Commit keeps the new files and drops the replaced ones.
func (o *Output) Commit() {
	if o == nil || o.done {
		return
	}
	o.done = true
	for _, p := range o.placed {
		if p.backup == "" {
			continue
		}
		if err := os.Remove(p.backup); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn("cannot remove replaced output", "path", p.backup, "error", err)
		}
	}
}

// Rollback removes the new files, restores the ones they replaced and
// removes directories created for them.
func (o *Output) Rollback() {
	if o == nil || o.done {
		return
	}
	o.done = true
	for i := len(o.placed) - 1; i >= 0; i-- {
		p := o.placed[i]
		if err := os.Remove(p.dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn("cannot remove partial output", "path", p.dst, "error", err)
		}
		if p.backup == "" {
			continue
		}
		if err := os.Rename(p.backup, p.dst); err != nil {
			o.logger.Warn("cannot restore replaced output", "path", p.dst, "error", err)
		}
	}
	dirs := slices.Clone(o.created)
	slices.SortFunc(dirs, func(a, b string) int { return len(b) - len(a) })
	for _, d := range dirs {
		_ = os.Remove(d)
	}
}

// missingDirs lists dir and each ancestor that does not exist yet.
func missingDirs(dir string) []string {
	var dirs []string
	for {
		if _, err := os.Stat(dir); err == nil {
			return dirs
		}
		dirs = append(dirs, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			return dirs
		}
		dir = parent
	}
}

// placeFile writes data to dst through a temporary file. An existing dst
// is renamed to a backup next to it first.
func placeFile(dst string, data []byte) (placed, error) {
	p := placed{dst: dst}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return p, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+"-*.tmp")
	if err != nil {
		return p, err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return p, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return p, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return p, err
	}

	info, err := os.Lstat(dst)
	switch {
	case err == nil && info.Mode().IsRegular():
		p.backup = strings.TrimSuffix(tmpName, ".tmp") + ".bak"
		if err := os.Rename(dst, p.backup); err != nil {
			os.Remove(tmpName)
			return placed{dst: dst}, err
		}
	case err != nil && !errors.Is(err, os.ErrNotExist):
		os.Remove(tmpName)
		return p, err
	}

	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		if p.backup != "" {
			_ = os.Rename(p.backup, dst)
		}
		return placed{dst: dst}, err
	}
	return p, nil
}
