package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsLogger(t *testing.T) {
	logger, err := New(false)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestComponentAndForStepAddFields(t *testing.T) {
	base, err := New(true)
	require.NoError(t, err)

	comp := Component(base, "clustering")
	assert.NotNil(t, comp)

	step := ForStep(base, "embedding")
	assert.NotNil(t, step)
}
