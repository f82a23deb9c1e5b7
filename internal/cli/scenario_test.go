package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: school_only
steps:
  - op: upsert
    as: school
    resource: School
    identity: { schoolId: "1" }
    expect:
      response: INSERT_SUCCESS
assertions:
  - type: document_count
    count: 1
  - type: registry_empty
`

const failingScenario = `name: dangling_week
steps:
  - op: upsert
    resource: AcademicWeek
    identity: { schoolId: "1", weekIdentifier: "W1" }
    references:
      - resource: School
        identity: { schoolId: "1" }
    expect:
      response: INSERT_SUCCESS
`

func TestScenarioCommandMissingArgs(t *testing.T) {
	_, err := execute(t, "scenario")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestScenarioCommandNonExistentDir(t *testing.T) {
	_, err := execute(t, "scenario", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestScenarioCommandEmptyDir(t *testing.T) {
	out, err := execute(t, "scenario", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestScenarioCommandEmptyDirJSON(t *testing.T) {
	out, err := execute(t, "--format", "json", "scenario", t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   ScenarioRunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestScenarioCommandPassing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "school_only.yaml", passingScenario)

	out, err := execute(t, "scenario", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ school_only")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestScenarioCommandFailing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "school_only.yaml", passingScenario)
	writeFile(t, dir, "dangling_week.yaml", failingScenario)

	out, err := execute(t, "--format", "json", "scenario", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string            `json:"status"`
		Data   ScenarioRunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)

	for _, s := range resp.Data.Scenarios {
		if s.Name == "dangling_week" {
			require.NotEmpty(t, s.Errors)
			assert.Contains(t, s.Errors[0], "INSERT_FAILURE_REFERENCE")
		}
	}
}

func TestScenarioCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "school_only.yaml", passingScenario)
	writeFile(t, dir, "dangling_week.yaml", failingScenario)

	out, err := execute(t, "scenario", "--filter", "school_*", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestScenarioCommandGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "school_only.yaml", passingScenario)
	goldenPath := filepath.Join(dir, "golden", "school_only.golden")

	out, err := execute(t, "scenario", "--update", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name": "school_only"`)
	assert.Contains(t, string(golden), "INSERT_SUCCESS")

	_, err = execute(t, "scenario", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0o644))
	out, err = execute(t, "scenario", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "c.json", "")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)

	files, err = findScenarioFiles(dir, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "x.golden"), goldenFilePath(filepath.Join("s", "x.yaml")))
}
