package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scenarioWorkspace copies the harness scenarios and their config into a
// temp dir laid out the same way, so golden files can be written there.
func scenarioWorkspace(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	copyFile(t, arenaConfig, filepath.Join(root, "configs", "arena.yml"))
	for _, name := range []string{"preempt_patrol.yml", "interrupt_then_loot.yml"} {
		copyFile(t, filepath.Join(scenariosDir, name), filepath.Join(root, "scenarios", name))
	}
	return filepath.Join(root, "scenarios")
}

func TestTestCommandPasses(t *testing.T) {
	out, _, err := execute(t, "test", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ preempt_patrol")
	assert.Contains(t, out, "✓ interrupt_then_loot")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", scenariosDir, "--filter", "preempt*")
	require.NoError(t, err)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "preempt_patrol", result.Scenarios[0].Name)
	assert.Equal(t, 1, result.Passed)
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := scenarioWorkspace(t)

	out, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err, out)

	golden := filepath.Join(dir, "golden", "preempt_patrol.golden")
	want, err := os.ReadFile(filepath.Join("..", "harness", "testdata", "golden", "preempt_patrol.golden"))
	require.NoError(t, err)
	got, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	_, _, err = execute(t, "test", dir)
	require.NoError(t, err)
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := scenarioWorkspace(t)
	goldenDir := filepath.Join(dir, "golden")
	require.NoError(t, os.MkdirAll(goldenDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "preempt_patrol.golden"), []byte("{}\n"), 0o644))

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ preempt_patrol")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "✓ interrupt_then_loot")
	assert.Contains(t, out, "1 passed, 1 failed, 2 total")
}

func TestTestCommandFailingAssertionJSON(t *testing.T) {
	dir := scenarioWorkspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "never_loots.yml"), []byte(`
name: never_loots
config: ../configs/arena.yml
steps:
  - at: 1
    facts:
      - state: enemy
assertions:
  - type: started
    scene: loot
`), 0o644))

	out, _, err := execute(t, "--format", "json", "test", dir, "--filter", "never*")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	require.Len(t, result.Scenarios, 1)
	assert.False(t, result.Scenarios[0].Pass)
	assert.NotEmpty(t, result.Scenarios[0].Errors)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: broken\nconfig: missing.yml\n"), 0o644))

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandNoScenarios(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandMissingDirectory(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFindScenarioFilesSkipsSubdirectories(t *testing.T) {
	dir := scenarioWorkspace(t)
	copyFile(t, arenaConfig, filepath.Join(dir, "nested", "ignored.yml"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "interrupt_then_loot.yml"),
		filepath.Join(dir, "preempt_patrol.yml"),
	}, files)

	_, err = findScenarioFiles(dir, "[")
	assert.Error(t, err)
}
