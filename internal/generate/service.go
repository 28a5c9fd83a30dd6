package generate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/patternweave/internal/compose"
	"github.com/roach88/patternweave/internal/eventb"
	"github.com/roach88/patternweave/internal/pattern"
)

// Request is one generation job: an ordered list of refinement layers, each
// an ordered list of pattern references.
type Request struct {
	Project string     `json:"project"`
	Layers  [][]string `json:"layers"`

	// FirstRefinement is the refinement index given to Layers[0].
	FirstRefinement int `json:"first_refinement"`
}

// Result holds one artifact per requested layer, in layer order.
type Result struct {
	Project   string            `json:"project"`
	Artifacts []eventb.Artifact `json:"artifacts"`
}

// Files returns the workspace-relative paths of every generated text, in
// the order Writer and Archive emit them.
func (r *Result) Files() []string {
	out := make([]string, 0, 2*len(r.Artifacts))
	for _, a := range r.Artifacts {
		dir := RefinementDir(a.Refinement)
		out = append(out,
			r.Project+"/"+dir+"/"+a.ContextFile(),
			r.Project+"/"+dir+"/"+a.MachineFile(),
		)
	}
	return out
}

// Service runs the pipeline. It is safe for concurrent use as long as its
// Loader is.
type Service struct {
	loader Loader
	logger *slog.Logger
}

// NewService creates a service reading patterns through loader.
func NewService(loader Loader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{loader: loader, logger: logger}
}

// Generate loads, composes and maps every layer of req. Any failure aborts
// the whole request; no partial result is returned.
func (s *Service) Generate(ctx context.Context, req Request) (*Result, error) {
	if len(req.Layers) == 0 {
		return nil, pattern.Errorf(pattern.ErrEmptyInput, "", "no refinement layers requested")
	}
	if req.FirstRefinement < 0 {
		return nil, fmt.Errorf("first refinement must be >= 0, got %d", req.FirstRefinement)
	}

	res := &Result{Project: req.Project, Artifacts: make([]eventb.Artifact, 0, len(req.Layers))}
	for i, refs := range req.Layers {
		refinement := req.FirstRefinement + i
		art, err := s.layer(ctx, refinement, refs)
		if err != nil {
			return nil, fmt.Errorf("refinement %d: %w", refinement, err)
		}
		res.Artifacts = append(res.Artifacts, art)
	}

	s.logger.Info("generated refinements",
		"project", req.Project,
		"layers", len(req.Layers),
		"first_refinement", req.FirstRefinement)
	return res, nil
}

func (s *Service) layer(ctx context.Context, refinement int, refs []string) (eventb.Artifact, error) {
	if len(refs) == 0 {
		return eventb.Artifact{}, pattern.Errorf(pattern.ErrEmptyInput, "", "layer has no patterns")
	}

	models := make([]*pattern.Pattern, 0, len(refs))
	for _, ref := range refs {
		m, err := s.loader.Load(ctx, ref)
		if err != nil {
			return eventb.Artifact{}, fmt.Errorf("load %s: %w", ref, err)
		}
		models = append(models, m)
	}

	model := models[0]
	if len(models) > 1 {
		composed, err := compose.Compose(models)
		if err != nil {
			return eventb.Artifact{}, err
		}
		model = composed
	}

	s.logger.Debug("mapping refinement",
		"refinement", refinement,
		"patterns", refs,
		"model", model.Name,
		"events", len(model.Events))

	return eventb.ToEventB(model, refinement)
}
