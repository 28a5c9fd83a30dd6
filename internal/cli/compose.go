package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/patternweave/internal/compose"
	"github.com/roach88/patternweave/internal/eventb"
	"github.com/roach88/patternweave/internal/parser"
	"github.com/roach88/patternweave/internal/pattern"
)

// ComposeOptions holds flags for the compose command.
type ComposeOptions struct {
	*RootOptions
	EventB     bool // print the Event-B texts instead of a summary
	Refinement int
}

// ComposeResult is the payload of the compose command.
type ComposeResult struct {
	Model    *pattern.Pattern `json:"model"`
	Artifact *eventb.Artifact `json:"artifact,omitempty"`
}

// NewComposeCommand creates the compose command.
func NewComposeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ComposeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compose <pattern.xml>...",
		Short: "Compose pattern documents and print the result",
		Long: `Parse and compose pattern documents without writing anything.

By default a summary of the composed model is printed. With --eventb the
rendered context and machine are printed instead.

Examples:
  patternweave compose PSend.xml PNDBuffer.xml PPacket.xml
  patternweave compose PSend.xml PNDBuffer.xml --eventb --refinement 2
  patternweave compose PSend.xml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompose(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.EventB, "eventb", false, "print the Event-B context and machine")
	cmd.Flags().IntVar(&opts.Refinement, "refinement", 0, "refinement index used with --eventb")

	return cmd
}

func runCompose(opts *ComposeOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	models := make([]*pattern.Pattern, 0, len(files))
	for _, path := range files {
		formatter.VerboseLog("Parsing %s", path)
		m, err := parser.ParseFile(path)
		if err != nil {
			return formatter.Fail(err)
		}
		models = append(models, m)
	}

	model := models[0]
	if len(models) > 1 {
		composed, err := compose.Compose(models)
		if err != nil {
			return formatter.Fail(err)
		}
		model = composed
	}

	out := ComposeResult{Model: model}
	if opts.EventB {
		art, err := eventb.ToEventB(model, opts.Refinement)
		if err != nil {
			return formatter.Fail(err)
		}
		out.Artifact = &art
	}

	if formatter.JSON() {
		return formatter.Success(out)
	}

	if out.Artifact != nil {
		fmt.Fprint(formatter.Writer, out.Artifact.ContextText)
		fmt.Fprintln(formatter.Writer)
		fmt.Fprint(formatter.Writer, out.Artifact.MachineText)
		return nil
	}
	printModel(formatter.Writer, model)
	return nil
}

// printModel writes a human-readable summary of model.
func printModel(w io.Writer, model *pattern.Pattern) {
	fmt.Fprintf(w, "Pattern: %s\n", model.Name)

	if model.Context != nil {
		if len(model.Context.Sets) > 0 {
			fmt.Fprintf(w, "Sets: %s\n", strings.Join(model.Context.Sets, ", "))
		}
		if len(model.Context.Constants) > 0 {
			fmt.Fprintf(w, "Constants: %s\n", strings.Join(model.Context.Constants, ", "))
		}
	}

	if len(model.Variables) > 0 {
		fmt.Fprintln(w, "Variables:")
		for _, v := range model.Variables {
			if v.Type == "" {
				fmt.Fprintf(w, "  %s\n", v.Name)
				continue
			}
			fmt.Fprintf(w, "  %s : %s\n", v.Name, v.Type)
		}
	}

	fmt.Fprintln(w, "Events:")
	for _, e := range model.Events {
		fmt.Fprintf(w, "  %s", e.Name)
		if e.SourcePattern != "" {
			fmt.Fprintf(w, " [%s]", e.SourcePattern)
		}
		fmt.Fprintf(w, " (%d params, %d guards, %d actions)\n", len(e.Params), len(e.Guards), len(e.Actions))
	}
}
