package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/condop/internal/state"
	"github.com/roach88/condop/internal/store"
)

var (
	validConfig   = filepath.Join("..", "config", "testdata", "valid.yml")
	invalidConfig = filepath.Join("..", "config", "testdata", "invalid.yml")
	factScript    = filepath.Join("..", "config", "testdata", "script.yml")
	scenariosDir  = filepath.Join("..", "harness", "testdata", "scenarios")
	arenaConfig   = filepath.Join("..", "harness", "testdata", "configs", "arena.yml")
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decodeResponse unmarshals a JSON CLIResponse whose data decodes into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

func ptr[T any](v T) *T { return &v }

// seedDatabase writes two task runs and a snapshot without running the engine.
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "condop.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.WriteTaskRun(ctx, store.TaskRun{
		ID:         "task-1",
		Scene:      "patrol",
		Trail:      "moving",
		Expr:       `["walk", 0, 10] or ["run", 0, 10]`,
		Ops:        []string{"set-state(enemy)", "log"},
		Outcome:    "interrupted",
		StartedAt:  10,
		FinishedAt: 10.5,
	}))
	require.NoError(t, st.WriteTaskRun(ctx, store.TaskRun{
		ID:         "task-2",
		Scene:      "combat",
		Priority:   ptr(5),
		Trigger:    "hit",
		Trail:      "dodge ← engaged",
		Ops:        []string{"press(space)", "wait(0.2s)"},
		Outcome:    "completed",
		StartedAt:  10.5,
		FinishedAt: 10.7,
	}))

	hit := state.NewRecorder("hit")
	hit.LastRecordTime = 10.5
	hit.LastValue = ptr(3.0)
	_, err = st.WriteSnapshot(ctx, 11, []state.Recorder{*state.NewRecorder("enemy"), *hit})
	require.NoError(t, err)
	return path
}

// copyFile copies src to dst, creating dst's directory.
func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(dst, data, 0o644))
}

// writeEmptyScript writes a fact script with no batches and no linger.
func writeEmptyScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.yml")
	require.NoError(t, os.WriteFile(path, []byte("batches: []\n"), 0o644))
	return path
}
