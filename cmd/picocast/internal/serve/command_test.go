package serve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand()
	require.NotNil(t, cmd)

	assert.Equal(t, "serve", cmd.Use)
	assert.Equal(t, "Run the HTTP gateway", cmd.Short)
	assert.True(t, cmd.HasAlias("gateway"))

	assert.Nil(t, cmd.Run)
	assert.NotNil(t, cmd.RunE)
	assert.False(t, cmd.HasSubCommands())

	assert.NotNil(t, cmd.Flags().Lookup("debug"))
	assert.NotNil(t, cmd.Flags().Lookup("host"))
	assert.Equal(t, "p", cmd.Flags().Lookup("port").Shorthand)
}
