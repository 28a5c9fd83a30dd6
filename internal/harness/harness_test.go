package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/patternweave/internal/pattern"
)

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
	require.NoError(t, err)
	return s
}

func TestRun_SendPipeline(t *testing.T) {
	result, err := Run(context.Background(), loadScenario(t, "send_pipeline"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, "PSend_M0", result.Artifacts[0].MachineName)
	assert.Equal(t, "PSend_Composite_M1", result.Artifacts[1].MachineName)
	assert.Equal(t,
		[]string{"INITIALISATION", "start_tx", "record_ndBuff"},
		MachineEvents(result.Artifacts[1].MachineText))
}

func TestRun_ExpectedErrors(t *testing.T) {
	tests := []struct {
		scenario string
		kind     pattern.ErrorKind
	}{
		{"variable_conflict", pattern.ErrVariableTypeConflict},
		{"broken_event", pattern.ErrSchemaViolation},
	}

	for _, tt := range tests {
		t.Run(tt.scenario, func(t *testing.T) {
			result, err := Run(context.Background(), loadScenario(t, tt.scenario))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Equal(t, tt.kind, result.ErrorKind)
			assert.Empty(t, result.Artifacts)
		})
	}
}

func TestRun_WrongErrorKind(t *testing.T) {
	s := loadScenario(t, "variable_conflict")
	s.ExpectError = pattern.ErrSchemaViolation

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected SCHEMA_VIOLATION error, got \"VARIABLE_TYPE_CONFLICT\"")
}

func TestRun_ExpectedErrorButSucceeded(t *testing.T) {
	s := loadScenario(t, "send_pipeline")
	s.Assertions = nil
	s.ExpectError = pattern.ErrVariableTypeConflict

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"expected VARIABLE_TYPE_CONFLICT error, generation succeeded"}, result.Errors)
}

func TestRun_UnexpectedGenerationFailure(t *testing.T) {
	s := loadScenario(t, "broken_event")
	s.ExpectError = ""

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "generation failed")
	assert.Equal(t, pattern.ErrSchemaViolation, result.ErrorKind)
}

func TestRun_FailingAssertion(t *testing.T) {
	s := loadScenario(t, "send_pipeline")
	s.Assertions = append(s.Assertions, Assertion{Type: AssertEventPresent, Layer: 0, Event: "record_ndBuff"})

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "event record_ndBuff in PSend_M0")
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, loadScenario(t, "send_pipeline"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_NilScenario(t *testing.T) {
	_, err := Run(context.Background(), nil)
	assert.Error(t, err)
}
