package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/patternweave/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Project  string
	Limit    int
	RunID    string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded generation runs",
		Long: `List the generation runs recorded in a history database, newest first.

With --run, the artifacts of one run are listed with their content hashes.

Examples:
  patternweave history --db history.db
  patternweave history --db history.db --project Net --limit 5
  patternweave history --db history.db --run 0190f3c2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database (default from config)")
	cmd.Flags().StringVar(&opts.Project, "project", "", "only list runs of this project")
	cmd.Flags().IntVar(&opts.Limit, "limit", store.DefaultListLimit, "maximum number of runs")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the artifacts of one run")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := opts.loadConfig(formatter)
		if err != nil {
			return err
		}
		dbPath = cfg.HistoryDB
	}
	if dbPath == "" {
		_ = formatter.Error(ErrCodeUsage, "no history database: pass --db or set history_db", nil)
		return NewExitError(ExitCommandError, ErrCodeUsage+": no history database")
	}

	// Opening would create an empty database.
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("history database not found: %s", dbPath), nil)
		return NewExitError(ExitCommandError, ErrCodeNotFound+": history database not found")
	}

	st, err := store.Open(dbPath)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeStore, err)
	}
	defer st.Close()

	ctx := commandContext(cmd)

	if opts.RunID != "" {
		arts, err := st.Artifacts(ctx, opts.RunID)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, ErrCodeStore, err)
		}
		if formatter.JSON() {
			return formatter.Success(arts)
		}
		printArtifacts(formatter, opts.RunID, arts)
		return nil
	}

	runs, err := st.ListRuns(ctx, opts.Project, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeStore, err)
	}
	if formatter.JSON() {
		return formatter.Success(runs)
	}
	printRuns(formatter, runs)
	return nil
}

func printRuns(formatter *OutputFormatter, runs []store.Run) {
	w := formatter.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%4d  %s  %s  %s  %d layer(s)\n",
			r.Seq, r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Project, len(r.Layers))
		if formatter.Verbose {
			for i, layer := range r.Layers {
				fmt.Fprintf(w, "      layer %d: %s\n", i, strings.Join(layer, ", "))
			}
		}
	}
}

func printArtifacts(formatter *OutputFormatter, runID string, arts []store.Artifact) {
	w := formatter.Writer
	if len(arts) == 0 {
		fmt.Fprintf(w, "No artifacts for run %s.\n", runID)
		return
	}
	for _, a := range arts {
		fmt.Fprintf(w, "refinement %d\n", a.Refinement)
		fmt.Fprintf(w, "  %s  %s\n", a.ContextName, a.ContextHash)
		fmt.Fprintf(w, "  %s  %s\n", a.MachineName, a.MachineHash)
	}
}
