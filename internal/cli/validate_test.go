package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidConfig(t *testing.T) {
	out, _, err := execute(t, "validate", validConfig)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Configuration valid (2 scenes, 5 states)")
}

func TestValidateValidConfigJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", validConfig)
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.Scenes)
	assert.Equal(t, 5, result.States)
	assert.Empty(t, result.Issues)
}

func TestValidateInvalidConfig(t *testing.T) {
	out, _, err := execute(t, "validate", invalidConfig)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "error E203: states[1]")
}

func TestValidateInvalidConfigJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "validate", invalidConfig)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E203", resp.Error.Code)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Issues)
	for _, is := range result.Issues {
		assert.True(t, is.Fatal, is.Code)
	}
}

func TestValidateUndeclaredStateIsWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
states:
  - name: hit
scenes:
  - name: dodge
    triggers: [hit]
    handlers:
      - states: '["hit", 0, 1] and ["ghost", 0, 1]'
        operations:
          - op: press
            key: space
`), 0o644))

	out, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "warning")
	assert.Contains(t, out, "ghost")
}

func TestValidateNonExistentFile(t *testing.T) {
	_, _, err := execute(t, "validate", filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateRequiresArgument(t *testing.T) {
	_, _, err := execute(t, "validate")
	require.Error(t, err)
}
