package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTestCommand(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandPassesHarnessScenarios(t *testing.T) {
	dir := testdataDir(t)

	out, err := runTestCommand(t, "text",
		filepath.Join(dir, "scenarios"), "--golden", filepath.Join(dir, "golden"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ create_find_delete")
	assert.Contains(t, out, "✓ schema_validation")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTestCommandJSON(t *testing.T) {
	dir := testdataDir(t)

	out, err := runTestCommand(t, "json",
		filepath.Join(dir, "scenarios"), "--golden", filepath.Join(dir, "golden"), "--filter", "create_*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "create_find_delete", resp.Data.Scenarios[0].Name)
}

func TestTestCommandNoMatches(t *testing.T) {
	dir := testdataDir(t)

	out, err := runTestCommand(t, "text", filepath.Join(dir, "scenarios"), "--filter", "nothing-*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandUpdateAndMismatch(t *testing.T) {
	dir := testdataDir(t)
	golden := t.TempDir()
	scenarios := filepath.Join(dir, "scenarios")

	out, err := runTestCommand(t, "text", scenarios, "--golden", golden, "--update")
	require.NoError(t, err, out)
	for _, name := range []string{"create_find_delete", "placeholders", "schema_validation"} {
		written, err := os.ReadFile(filepath.Join(golden, name+".golden"))
		require.NoError(t, err)
		want, err := os.ReadFile(filepath.Join(dir, "golden", name+".golden"))
		require.NoError(t, err)
		assert.Equal(t, string(want), string(written), name)
	}

	require.NoError(t, os.WriteFile(filepath.Join(golden, "placeholders.golden"), []byte("{}\n"), 0o644))
	out, err = runTestCommand(t, "text", scenarios, "--golden", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ placeholders")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "Test Summary: 2 passed, 1 failed, 3 total")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong
description: expects a noop on a first save
steps:
  - op: save
    type: TestEntity
    id: foo
    attributes: {one: 1}
    expect: {outcome: noop}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(scenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: [\n"), 0o644))

	out, err := runTestCommand(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "TEST_FAILED", resp.Error.Code)
	assert.Equal(t, "2 scenario(s) failed", resp.Error.Message)
}
