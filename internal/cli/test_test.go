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

const addTwoScenario = `name: add_two
description: "Two items are added and counted"
before_each:
  - clear_storage:
  - visit: /
cases:
  - name: adds two items
    steps:
      - get: .new-todo
        do: type
        text: "buy some cheese{enter}"
      - get: .new-todo
        do: type
        text: "feed the cat{enter}"
      - get: .todo-count
        should:
          - assert: contain
            value: "2 items left"
assertions:
  - type: final_state
    items:
      - title: buy some cheese
      - title: feed the cat
`

const wrongCountScenario = `name: wrong_count
description: "Expects the wrong final list"
before_each:
  - visit: /
cases:
  - name: adds one item
    steps:
      - get: .new-todo
        do: type
        text: "buy some cheese{enter}"
assertions:
  - type: final_state
    items: []
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execTest(t *testing.T, format string, args ...string) (string, error) {
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
	_, err := execTest(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execTest(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := execTest(t, "json", t.TempDir())
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestTestCommandRunsPackagedScenarios(t *testing.T) {
	out, err := execTest(t, "text", filepath.Join("..", "harness", "testdata", "scenarios"))
	require.NoError(t, err)

	assert.Contains(t, out, "PASS add_and_complete (no golden file)")
	assert.Contains(t, out, "PASS seeded_routing (no golden file)")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
}

func TestTestCommandGoldenUpdateThenMatch(t *testing.T) {
	dir := t.TempDir()
	file := writeScenario(t, dir, "add_two.yaml", addTwoScenario)

	out, err := execTest(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS add_two (golden updated)")

	golden, err := os.ReadFile(goldenFilePath(file))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"name":"adds two items"`)

	out, err = execTest(t, "json", dir)
	require.NoError(t, err)
	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "match", resp.Data.Scenarios[0].Golden)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	file := writeScenario(t, dir, "add_two.yaml", addTwoScenario)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, os.WriteFile(goldenFilePath(file), []byte("{}\n"), 0o644))

	out, err := execTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL add_two")
	assert.Contains(t, out, "trace does not match")
}

func TestTestCommandAssertionFailure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "wrong_count.yaml", wrongCountScenario)

	out, err := execTest(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Error  *CLIError  `json:"error"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	require.NotEmpty(t, resp.Data.Scenarios[0].Errors)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "final_state")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: broken\nunknown_key: 1\n")

	out, err := execTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL broken")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestHelpText(t *testing.T) {
	out, err := execTest(t, "text", "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "golden")
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "test1.yaml", "")
	writeScenario(t, dir, "test2.yml", "")
	writeScenario(t, dir, "ignore.txt", "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "test1.yaml"), filepath.Join(dir, "test2.yml")}, files)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "routing-back.yaml", "")
	writeScenario(t, dir, "routing-active.yaml", "")
	writeScenario(t, dir, "editing.yaml", "")

	files, err := findScenarioFiles(dir, "routing-*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "routing-active.yaml"), filepath.Join(dir, "routing-back.yaml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"/path/to/scenario.yaml", "/path/to/golden/scenario.golden"},
		{"/path/to/scenario.yml", "/path/to/golden/scenario.golden"},
		{"scenarios/test.yaml", "scenarios/golden/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.input))
	}
}
