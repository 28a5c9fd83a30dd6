package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/patternweave/internal/generate"
	"github.com/roach88/patternweave/internal/pattern"
)

// Harness runs scenarios against a generation service.
type Harness struct {
	service *generate.Service
	logger  *slog.Logger
}

// New returns a harness that reads pattern files straight from disk.
// A nil logger discards output.
func New(logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{
		service: generate.NewService(generate.NewFileLoader(""), logger),
		logger:  logger,
	}
}

// Run executes scenario with a quiet harness.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	return New(nil).Run(ctx, scenario)
}

// Run generates the scenario's layers and evaluates its expectations.
//
// A generation failure is a scenario failure, not an error, unless the
// scenario expects it. The returned error is reserved for problems that
// prevent the scenario from running at all.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("nil scenario")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := NewResult()
	out, err := h.service.Generate(ctx, generate.Request{
		Project:         scenario.Project,
		Layers:          scenario.Layers,
		FirstRefinement: scenario.FirstRefinement,
	})

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		kind, _ := pattern.KindOf(err)
		result.ErrorKind = kind
		switch {
		case scenario.ExpectError == "":
			result.AddError(fmt.Sprintf("generation failed: %v", err))
		case kind != scenario.ExpectError:
			result.AddError(fmt.Sprintf("expected %s error, got %q: %v", scenario.ExpectError, kind, err))
		}
		h.logger.Debug("scenario generation failed", "scenario", scenario.Name, "kind", kind, "error", err)
		return result, nil
	}

	result.Artifacts = out.Artifacts
	if scenario.ExpectError != "" {
		result.AddError(fmt.Sprintf("expected %s error, generation succeeded", scenario.ExpectError))
		return result, nil
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Debug("scenario finished", "scenario", scenario.Name, "pass", result.Pass)
	return result, nil
}
