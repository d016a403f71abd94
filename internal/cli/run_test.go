package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/condop/internal/store"
)

func TestRunScriptJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "condop.db")

	out, _, err := execute(t, "--format", "json", "run", validConfig,
		"--facts", factScript, "--db", dbPath, "--snapshot-every", "250ms")
	require.NoError(t, err)

	var result RunResult
	resp := decodeResponse(t, out, &result)
	require.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, result.Batches)

	require.NotEmpty(t, result.Tasks)
	first := result.Tasks[0]
	assert.Equal(t, "combat", first.Scene)
	assert.Equal(t, "hit", first.Trigger)
	assert.Equal(t, "dodge ← engaged", first.Trail)
	assert.Equal(t, "completed", first.Outcome)

	require.NotEmpty(t, result.Keys)
	assert.Equal(t, "space", result.Keys[0].Key)
	assert.GreaterOrEqual(t, result.Snapshots, 1)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	history, err := st.LoadHistory(context.Background())
	require.NoError(t, err)
	assert.Len(t, history.Batches, 3)
	require.NotEmpty(t, history.Runs)
	assert.Equal(t, "combat", history.Runs[0].Scene)
	assert.Equal(t, "completed", history.Runs[0].Outcome)
}

func TestRunScriptText(t *testing.T) {
	out, _, err := execute(t, "run", validConfig, "--facts", factScript)
	require.NoError(t, err)
	assert.Contains(t, out, "Running ")
	assert.Contains(t, out, "space")
	assert.Contains(t, out, "Batches: 3")
	assert.Contains(t, out, "dodge ← engaged")
}

func TestRunSnapshotRequiresDatabase(t *testing.T) {
	_, _, err := execute(t, "run", validConfig, "--facts", factScript, "--snapshot-every", "1s")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--snapshot-every requires --db")
}

func TestRunInvalidConfig(t *testing.T) {
	_, _, err := execute(t, "run", invalidConfig, "--facts", factScript)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunMissingFactScript(t *testing.T) {
	_, _, err := execute(t, "run", validConfig, "--facts", filepath.Join(t.TempDir(), "none.yml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCancelledContextStopsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "json", "run", validConfig, "--facts", factScript})
	require.NoError(t, cmd.ExecuteContext(ctx))

	var result RunResult
	decodeResponse(t, buf.String(), &result)
	assert.Zero(t, result.Batches)
	assert.Empty(t, result.Tasks)
}
