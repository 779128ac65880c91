package main

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPicocastCommand(t *testing.T) {
	cmd := NewPicocastCommand()
	require.NotNil(t, cmd)

	assert.Equal(t, "picocast", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
	assert.True(t, cmd.HasSubCommands())

	var uses []string
	for _, sub := range cmd.Commands() {
		uses = append(uses, sub.Name())
	}
	slices.Sort(uses)
	assert.Equal(t, []string{"generate", "history", "serve", "version"}, uses)
}
