package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roach88/patternweave/internal/generate"
	"github.com/roach88/patternweave/internal/pattern"
)

// generateRequest is the body of POST /api/generate.
type generateRequest struct {
	ProjectName string     `json:"projectName"`
	Refinements [][]string `json:"refinements"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.opts.PatternsDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.fail(w, r, http.StatusInternalServerError, "cannot list patterns", err)
		return
	}

	names := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ".xml") {
			names = append(names, e.Name())
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(names)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Refinements) == 0 {
		s.fail(w, r, http.StatusBadRequest, "no refinements provided", nil)
		return
	}
	for _, layer := range req.Refinements {
		if len(layer) == 0 {
			s.fail(w, r, http.StatusBadRequest, "each refinement must include at least one pattern", nil)
			return
		}
	}

	project := generate.SanitizeProjectName(req.ProjectName)
	if project == "" {
		project = generate.DefaultProjectName(s.opts.Now())
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	res, err := s.opts.Service.Generate(ctx, generate.Request{
		Project:         project,
		Layers:          req.Refinements,
		FirstRefinement: 1,
	})
	if err != nil {
		s.fail(w, r, statusFor(err), "generation failed", err)
		return
	}

	var staged *generate.Output
	if s.opts.Writer != nil {
		staged, err = s.opts.Writer.Stage(res)
		if err != nil {
			s.fail(w, r, http.StatusInternalServerError, "cannot write project", err)
			return
		}
		// Undone unless the run is recorded and published as well.
		defer staged.Rollback()
	}

	archive, err := generate.Archive(res)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, "cannot assemble download", err)
		return
	}

	h := w.Header()
	key := project
	if s.opts.Recorder != nil {
		run, err := s.opts.Recorder.RecordRun(ctx, project, req.Refinements, res.Artifacts)
		if err != nil {
			s.fail(w, r, http.StatusInternalServerError, "cannot record run", err)
			return
		}
		h.Set("X-Run-ID", run.ID)
		key = project + "/" + run.ID
	}
	if s.opts.Publisher != nil {
		location, err := s.opts.Publisher.Publish(ctx, key+".zip", archive)
		if err != nil {
			s.fail(w, r, http.StatusInternalServerError, "cannot publish archive", err)
			return
		}
		h.Set("X-Archive-URL", headerValue(location))
	}

	staged.Commit()

	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", project+".zip"))
	h.Set("Content-Length", strconv.Itoa(len(archive)))
	h.Set("X-Project-Name", headerValue(project))
	h.Set("X-Generated-Files", headerValue(strings.Join(res.Files(), ";")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)

	s.opts.Logger.Info("generate request served",
		"project", project,
		"refinements", len(req.Refinements),
		"bytes", len(archive))
}

// statusFor maps a pipeline error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case pattern.IsInputError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	body := msg
	if err != nil {
		body = msg + ": " + err.Error()
	}
	level := s.opts.Logger.Warn
	if status >= http.StatusInternalServerError {
		level = s.opts.Logger.Error
	}
	level("request failed", "path", r.URL.Path, "status", status, "error", body)
	http.Error(w, body, status)
}

// headerValue strips line breaks so a value cannot split a header.
func headerValue(v string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(v))
}
