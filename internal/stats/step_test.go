package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepOrder(t *testing.T) {
	var visited []Step
	for s := StepReset; !s.Terminal(); s = s.Next() {
		visited = append(visited, s)
	}
	assert.Equal(t, Pipeline(), visited)
	assert.Equal(t, StepSucceeded, StepAggregation.Next())
	assert.Equal(t, StepFailed, StepFailed.Next())
}

func TestPipelineFrom(t *testing.T) {
	steps, err := PipelineFrom(StepTopPerformers)
	require.NoError(t, err)
	assert.Equal(t, []Step{StepTopPerformers, StepAggregation}, steps)

	_, err = PipelineFrom(StepSucceeded)
	assert.Error(t, err)
}

func TestParseStep(t *testing.T) {
	s, err := ParseStep(" top_performers ")
	require.NoError(t, err)
	assert.Equal(t, StepTopPerformers, s)

	_, err = ParseStep("later")
	assert.Error(t, err)
}
