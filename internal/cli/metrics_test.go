package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMetrics(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestMetricsFlag_DocumentCommands(t *testing.T) {
	dir := t.TempDir()
	school := writeFile(t, dir, "school.yaml", schoolDoc)
	metrics := filepath.Join(dir, "metrics.prom")
	db := []string{"--connection", dir, "--metrics", metrics}

	_, err := execute(t, append(db, "upsert", school)...)
	require.NoError(t, err)
	out := readMetrics(t, metrics)
	assert.Contains(t, out, `meadowlark_operations_total{operation="upsert",response="INSERT_SUCCESS"} 1`)
	assert.Contains(t, out, `meadowlark_operation_duration_seconds_count{operation="upsert"} 1`)

	// Each command writes its own counts.
	_, err = execute(t, append(db, "upsert", school)...)
	require.NoError(t, err)
	out = readMetrics(t, metrics)
	assert.Contains(t, out, `meadowlark_operations_total{operation="upsert",response="UPDATE_SUCCESS"} 1`)
	assert.NotContains(t, out, `response="INSERT_SUCCESS"`)
}

func TestMetricsFlag_FailedOutcomeIsCounted(t *testing.T) {
	dir := t.TempDir()
	week := writeFile(t, dir, "week.yaml", weekDoc)
	metrics := filepath.Join(dir, "metrics.prom")

	_, err := execute(t, "--connection", dir, "--metrics", metrics, "upsert", week)
	require.Error(t, err)
	assert.Contains(t, readMetrics(t, metrics),
		`meadowlark_operations_total{operation="upsert",response="INSERT_FAILURE_REFERENCE"} 1`)
}

func TestMetricsFlag_Scenarios(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "school_only.yaml", passingScenario)
	writeFile(t, dir, "dangling_week.yaml", failingScenario)
	metrics := filepath.Join(t.TempDir(), "metrics.prom")

	_, err := execute(t, "--metrics", metrics, "scenario", dir)
	require.Error(t, err)
	out := readMetrics(t, metrics)
	assert.Contains(t, out, `meadowlark_operations_total{operation="upsert",response="INSERT_SUCCESS"} 1`)
	assert.Contains(t, out, `meadowlark_operations_total{operation="upsert",response="INSERT_FAILURE_REFERENCE"} 1`)
}

func TestMetricsFlag_Unset(t *testing.T) {
	opts := &RootOptions{}
	sink, err := opts.openMetrics(nil)
	require.NoError(t, err)
	assert.Nil(t, sink)
	assert.Nil(t, sink.backendMetrics())
	sink.flush()
}
