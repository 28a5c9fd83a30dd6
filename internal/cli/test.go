package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/patternweave/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
	Golden string // golden directory, resolved next to the scenarios when empty
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name          string   `json:"name"`
	Pass          bool     `json:"pass"`
	Errors        []string `json:"errors,omitempty"`
	MissingGolden []string `json:"missing_golden,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run generation scenarios",
		Long: `Run the YAML generation scenarios found in a directory.

Each scenario generates its layers and checks the assertions it declares.
When a golden file <scenario>_<component>.golden exists, the rendered
context or machine must match it byte for byte. Golden files are read from
--golden, else <scenarios-dir>/golden, else a golden directory beside
<scenarios-dir>. Missing golden files are listed but do not fail a scenario.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  patternweave test ./scenarios
  patternweave test ./scenarios --filter "send_*"
  patternweave test ./scenarios --update
  patternweave test ./scenarios --golden ./testdata/golden
  patternweave test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden file directory")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("scenarios directory not found: %s", scenariosDir), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	scenarioFiles, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(scenarioFiles)),
		Total:     len(scenarioFiles),
	}

	if len(scenarioFiles) == 0 {
		if formatter.JSON() {
			return outputTestJSON(formatter, result)
		}
		fmt.Fprintln(formatter.Writer, "No scenarios found.")
		return nil
	}

	h := harness.New(opts.logger(cmd.ErrOrStderr(), slog.LevelWarn))
	goldenDir := resolveGoldenDir(scenariosDir, opts.Golden)
	formatter.VerboseLog("Golden files: %s", goldenDir)

	for _, scenarioFile := range scenarioFiles {
		scenResult := runScenario(cmd, h, scenarioFile, goldenDir, opts.Update)
		if !formatter.JSON() {
			printScenario(formatter.Writer, scenResult, opts.Update)
		}
		result.Scenarios = append(result.Scenarios, scenResult)
		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.JSON() {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter.Writer, result)
}

// resolveGoldenDir picks the golden directory for scenariosDir: the
// explicit one, then scenariosDir/golden, then a golden directory beside
// scenariosDir. With neither present it returns scenariosDir/golden.
func resolveGoldenDir(scenariosDir, explicit string) string {
	if explicit != "" {
		return explicit
	}
	inside := filepath.Join(scenariosDir, "golden")
	if isDir(inside) {
		return inside
	}
	beside := filepath.Join(filepath.Dir(filepath.Clean(scenariosDir)), "golden")
	if isDir(beside) {
		return beside
	}
	return inside
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// findScenarioFiles finds all YAML scenario files below dir.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario loads, runs and golden-checks one scenario file.
func runScenario(cmd *cobra.Command, h *harness.Harness, scenarioFile, goldenDir string, update bool) ScenarioResult {
	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		return ScenarioResult{
			Name:   filepath.Base(scenarioFile),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := h.Run(commandContext(cmd), scenario)
	if err != nil {
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	out := ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}

	for _, file := range goldenFiles(scenario.Name, result) {
		path := filepath.Join(goldenDir, file.name)
		if update {
			if err := writeGolden(path, file.data); err != nil {
				out.Pass = false
				out.Errors = append(out.Errors, err.Error())
			}
			continue
		}

		want, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			out.MissingGolden = append(out.MissingGolden, file.name)
			continue
		}
		if err != nil {
			out.Pass = false
			out.Errors = append(out.Errors, fmt.Sprintf("failed to read golden file: %v", err))
			continue
		}
		if string(want) != string(file.data) {
			out.Pass = false
			out.Errors = append(out.Errors, fmt.Sprintf("%s does not match golden file (run with --update to regenerate)", file.name))
		}
	}

	return out
}

type goldenFile struct {
	name string
	data []byte
}

// goldenFiles names each rendered text the way harness.AssertGolden does.
func goldenFiles(scenario string, result *harness.Result) []goldenFile {
	var files []goldenFile
	for _, art := range result.Artifacts {
		files = append(files,
			goldenFile{scenario + "_" + art.ContextName + ".golden", []byte(art.ContextText)},
			goldenFile{scenario + "_" + art.MachineName + ".golden", []byte(art.MachineText)},
		)
	}
	return files
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

func printScenario(w io.Writer, r ScenarioResult, update bool) {
	if !r.Pass {
		fmt.Fprintf(w, "✗ %s\n", r.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	if update {
		fmt.Fprintf(w, "✓ %s (golden updated)\n", r.Name)
		return
	}
	fmt.Fprintf(w, "✓ %s\n", r.Name)
	for _, name := range r.MissingGolden {
		fmt.Fprintf(w, "  no golden file: %s\n", name)
	}
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := formatter.encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(w io.Writer, result TestResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
