package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

var (
	patternsDir  = filepath.Join("..", "harness", "testdata", "patterns")
	scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")
	goldenDir    = filepath.Join("..", "harness", "testdata", "golden")
)

func patternPath(name string) string {
	return filepath.Join(patternsDir, name)
}

// execute runs cmd with args and returns stdout and the command error.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func readGolden(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(goldenDir, name+".golden"))
	require.NoError(t, err)
	return string(data)
}
