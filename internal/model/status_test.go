package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerStatusIsValid(t *testing.T) {
	valid := []ContainerStatus{
		StatusUndefined, StatusCreated, StatusStarting, StatusRunning,
		StatusStopping, StatusStopped, StatusFailed, StatusRemoved,
	}
	for _, s := range valid {
		assert.True(t, s.IsValid(), "%s should be valid", s)
	}

	assert.False(t, ContainerStatus("paused").IsValid())
	assert.False(t, ContainerStatus("").IsValid())
}

func TestParseContainerStatus(t *testing.T) {
	s, err := ParseContainerStatus("Running")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, s, "parsing should be case-insensitive")

	_, err = ParseContainerStatus("bogus")
	assert.Error(t, err)
}
