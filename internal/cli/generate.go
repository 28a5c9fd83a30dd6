package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/patternweave/internal/generate"
	"github.com/roach88/patternweave/internal/store"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	Inputs          []string // -i values, together the first layer
	Layers          []string // each --layer is one more refinement
	Project         string
	Output          string
	Database        string
	FirstRefinement int

	// Now overrides the clock used for default project names (for testing).
	Now func() time.Time
}

// GenerateResult is the payload of a successful generate command.
type GenerateResult struct {
	Project   string   `json:"project"`
	Directory string   `json:"directory"`
	Files     []string `json:"files"`
	RunID     string   `json:"run_id,omitempty"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate Event-B refinements from pattern documents",
		Long: `Generate one Event-B context and machine per refinement layer.

The -i values form the first layer. Each --layer adds a refinement on top.
A layer with several patterns is composed before it is mapped.

Output goes to <output>/<project>/machine<N>/ together with the pattern
grammar in <output>/<project>/bnf/.

Examples:
  patternweave generate -i PSend.xml -p Net
  patternweave generate -i PSend.xml,PNDBuffer.xml --layer PSend.xml,PPacket.xml -p Net -o ./out
  patternweave generate -i PSend.xml -p Net --db history.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Inputs, "input", "i", nil, "pattern documents of the first layer (comma separated, repeatable)")
	cmd.Flags().StringArrayVar(&opts.Layers, "layer", nil, "pattern documents of one further layer (comma separated, repeatable)")
	cmd.Flags().StringVarP(&opts.Project, "project", "p", "", "project name (default web-session-<timestamp>)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "workspace directory (default from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite history database")
	cmd.Flags().IntVar(&opts.FirstRefinement, "first-refinement", 0, "refinement index of the first layer")

	return cmd
}

func runGenerate(opts *GenerateOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	layers := buildLayers(opts.Inputs, opts.Layers)
	if len(layers) == 0 {
		_ = formatter.Error(ErrCodeUsage, "at least one -i or --layer is required", nil)
		return NewExitError(ExitCommandError, ErrCodeUsage+": no input patterns")
	}

	cfg, err := opts.loadConfig(formatter)
	if err != nil {
		return err
	}
	logger := opts.logger(cmd.ErrOrStderr(), cfg.SlogLevel())

	workspace := firstNonEmpty(opts.Output, cfg.Workspace)
	dbPath := firstNonEmpty(opts.Database, cfg.HistoryDB)
	project := projectName(opts.Project, opts.Now)

	formatter.VerboseLog("Generating %d refinement(s) for %s", len(layers), project)

	ctx := commandContext(cmd)
	svc := generate.NewService(generate.NewFileLoader(""), logger)
	res, err := svc.Generate(ctx, generate.Request{
		Project:         project,
		Layers:          layers,
		FirstRefinement: opts.FirstRefinement,
	})
	if err != nil {
		return formatter.Fail(err)
	}

	writer := generate.NewWriter(workspace, logger)
	staged, err := writer.Stage(res)
	if err != nil {
		_ = formatter.Error(ErrCodeWriteFailed, err.Error(), detailsFor(err))
		return WrapExitError(ExitCommandError, ErrCodeWriteFailed, err)
	}
	defer staged.Rollback()

	out := GenerateResult{
		Project:   project,
		Directory: writer.ProjectDir(project),
		Files:     staged.Paths,
	}

	if dbPath != "" {
		runID, err := recordRun(ctx, dbPath, res, layers)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeStore, err)
		}
		out.RunID = runID
	}
	staged.Commit()

	if formatter.JSON() {
		return formatter.Success(out)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Generated %d refinement(s) for %s in %s\n", len(res.Artifacts), project, out.Directory)
	for _, f := range out.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	if out.RunID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", out.RunID)
	}
	return nil
}

// buildLayers turns the -i values into the first layer and every --layer
// value into one more. Values are comma separated lists; blanks are
// ignored.
func buildLayers(inputs, extra []string) [][]string {
	var layers [][]string
	if first := splitRefs(inputs...); len(first) > 0 {
		layers = append(layers, first)
	}
	for _, l := range extra {
		if refs := splitRefs(l); len(refs) > 0 {
			layers = append(layers, refs)
		}
	}
	return layers
}

func splitRefs(values ...string) []string {
	var refs []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				refs = append(refs, part)
			}
		}
	}
	return refs
}

// projectName sanitizes name, falling back to a timestamped default.
func projectName(name string, now func() time.Time) string {
	if p := generate.SanitizeProjectName(name); p != "" {
		return p
	}
	if now == nil {
		now = time.Now
	}
	return generate.DefaultProjectName(now())
}

func recordRun(ctx context.Context, dbPath string, res *generate.Result, layers [][]string) (string, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("open history: %w", err)
	}
	defer st.Close()

	run, err := st.RecordRun(ctx, res.Project, layers, res.Artifacts)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
