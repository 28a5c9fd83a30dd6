package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes a scenario and compares every rendered context
// and machine against testdata/golden/<scenario>_<component>.golden,
// e.g. send_pipeline_PSend_M0.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's artifacts against golden files.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	for _, art := range result.Artifacts {
		g.Assert(t, scenarioName+"_"+art.ContextName, []byte(art.ContextText))
		g.Assert(t, scenarioName+"_"+art.MachineName, []byte(art.MachineText))
	}
}
