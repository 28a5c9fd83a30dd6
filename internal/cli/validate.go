package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/patternweave/internal/parser"
	"github.com/roach88/patternweave/internal/pattern"
)

// ValidationIssue is one problem found in a pattern document.
type ValidationIssue struct {
	File    string            `json:"file"`
	Line    int               `json:"line,omitempty"`
	Code    string            `json:"code"`
	Kind    pattern.ErrorKind `json:"kind"`
	Element string            `json:"element,omitempty"`
	Message string            `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <pattern.xml>...",
		Short: "Check pattern documents against the bundle grammar",
		Long: `Check that pattern documents are well-formed XML and that
<PatternBundle> documents follow the pattern grammar.

Every problem in every file is reported, not just the first.
Legacy <Pattern> documents are only checked for well-formedness.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	var issues []ValidationIssue
	for _, path := range files {
		formatter.VerboseLog("Validating %s", path)

		errs, err := validateFile(path)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("cannot read %s: %v", path, err), nil)
			return WrapExitError(ExitCommandError, ErrCodeNotFound, err)
		}
		for _, e := range errs {
			issues = append(issues, ValidationIssue{
				File:    path,
				Line:    e.Line,
				Code:    kindCodes[e.Kind],
				Kind:    e.Kind,
				Element: e.Element,
				Message: e.Message,
			})
		}
	}

	if len(issues) > 0 {
		return outputValidationErrors(formatter, len(files), issues)
	}

	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Files: len(files)})
	}
	fmt.Fprintf(formatter.Writer, "✓ All patterns valid (%d file(s))\n", len(files))
	return nil
}

func validateFile(path string) ([]*pattern.Error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parser.Validate(f, path), nil
}

// outputValidationErrors reports every issue and returns exit code 1.
func outputValidationErrors(formatter *OutputFormatter, files int, issues []ValidationIssue) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))

	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Files: files, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}); err != nil {
			return errors.Join(failure, err)
		}
		return failure
	}

	w := formatter.Writer
	fmt.Fprintln(w, "✗ Validation failed")
	fmt.Fprintln(w)
	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(w, "%s:%d\n", issue.File, issue.Line)
		} else {
			fmt.Fprintln(w, issue.File)
		}
		if issue.Element != "" {
			fmt.Fprintf(w, "  %s: <%s> %s\n\n", issue.Code, issue.Element, issue.Message)
		} else {
			fmt.Fprintf(w, "  %s: %s\n\n", issue.Code, issue.Message)
		}
	}
	return failure
}
