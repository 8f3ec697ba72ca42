package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeCommandFlags(t *testing.T) {
	assert.NotNil(t, serveCmd.Flags().Lookup("host"))
	assert.NotNil(t, serveCmd.Flags().Lookup("port"))
	assert.NotNil(t, serveCmd.Flags().Lookup("cors-origin"))
	assert.NotNil(t, serveCmd.Flags().Lookup("max-upload-size"))
	assert.NotNil(t, serveCmd.Flags().Lookup("method"))
}

func TestServeCommandInvalidPort(t *testing.T) {
	_, err := runCommand(t, "serve", "--port", "70000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number")
}

func TestServeCommandBadMethod(t *testing.T) {
	_, err := runCommand(t, "serve", "--port", "8080", "--method", "nonsense")
	require.Error(t, err)
}
