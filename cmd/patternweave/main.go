// Command patternweave composes XML design patterns into Event-B models.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/patternweave/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "patternweave:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
