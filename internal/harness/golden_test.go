package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden_SendPipeline(t *testing.T) {
	result, err := RunWithGolden(t, loadScenario(t, "send_pipeline"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestGolden_Deterministic(t *testing.T) {
	s := loadScenario(t, "send_pipeline")

	first, err := Run(t.Context(), s)
	require.NoError(t, err)
	second, err := Run(t.Context(), s)
	require.NoError(t, err)

	assert.Equal(t, first.Artifacts, second.Artifacts)
}
