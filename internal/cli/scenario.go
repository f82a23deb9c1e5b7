package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Update bool   // rewrite golden traces instead of comparing
	Filter string // glob on the scenario file name without extension
}

// ScenarioResult is the result of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioRunResult summarizes a scenario command run.
type ScenarioRunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r *ScenarioRunResult) add(s ScenarioResult) {
	r.Scenarios = append(r.Scenarios, s)
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <scenarios-dir>",
		Short: "Run YAML scenarios against a fresh in-memory database",
		Long: `Run every *.yaml scenario in a directory against the backend.

Each scenario gets its own in-memory database with sequential document
uuids and request timestamps, so its trace is reproducible. When
<scenarios-dir>/golden/<name>.golden exists the trace must match it.

Exit status is 0 when every scenario passes, 1 when any fails and 2 when
the directory cannot be read.

Examples:
  meadowlark scenario ./scenarios
  meadowlark scenario ./scenarios --filter "delete_*"
  meadowlark scenario ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose file name matches this glob")

	return cmd
}

// scenarioRunner runs scenario files and prints progress in text mode.
type scenarioRunner struct {
	update  bool
	text    bool
	out     io.Writer
	options []harness.Option
}

func runScenarios(opts *ScenarioOptions, dir string, cmd *cobra.Command) error {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	files, err := findScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	runner := &scenarioRunner{
		update: opts.Update,
		text:   opts.Format != "json",
		out:    cmd.OutOrStdout(),
	}
	if opts.Verbose {
		runner.options = append(runner.options, harness.WithLogger(opts.logger(cmd)))
	}
	sink, err := opts.openMetrics(opts.logger(cmd))
	if err != nil {
		return err
	}
	defer sink.flush()
	runner.options = append(runner.options, harness.WithMetrics(sink.backendMetrics()))

	result := ScenarioRunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	formatter := opts.formatter(cmd)
	for _, file := range files {
		formatter.VerboseLog("running %s", file)
		result.add(runner.run(file))
	}

	if !runner.text {
		return writeScenarioJSON(runner.out, result)
	}
	return writeScenarioSummary(runner.out, result)
}

// findScenarioFiles lists the .yaml and .yml files directly in dir, in name
// order, keeping those whose base name matches filter.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		if filter != "" {
			matched, err := filepath.Match(filter, strings.TrimSuffix(entry.Name(), ext))
			if err != nil {
				return nil, fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				continue
			}
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	return files, nil
}

func (r *scenarioRunner) run(file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return r.fail(filepath.Base(file), fmt.Sprintf("failed to load scenario: %v", err))
	}

	result, err := harness.Run(scenario, r.options...)
	if err != nil {
		return r.fail(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	snapshot, err := harness.MarshalSnapshot(scenario.Name, result.Trace)
	if err != nil {
		return r.fail(scenario.Name, fmt.Sprintf("failed to marshal trace: %v", err))
	}

	golden := goldenFilePath(file)
	if r.update {
		if err := writeGoldenFile(golden, snapshot); err != nil {
			return r.fail(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
		}
		r.progress("✓ %s (golden updated)", scenario.Name)
		return ScenarioResult{Name: scenario.Name, Pass: result.Pass, Errors: result.Errors}
	}

	if msg := compareGolden(golden, snapshot); msg != "" {
		return r.fail(scenario.Name, msg)
	}
	if !result.Pass {
		return r.fail(scenario.Name, result.Errors...)
	}
	r.progress("✓ %s", scenario.Name)
	return ScenarioResult{Name: scenario.Name, Pass: true}
}

func (r *scenarioRunner) fail(name string, errs ...string) ScenarioResult {
	r.progress("✗ %s", name)
	for _, e := range errs {
		r.progress("  %s", e)
	}
	return ScenarioResult{Name: name, Errors: errs}
}

func (r *scenarioRunner) progress(format string, args ...any) {
	if r.text {
		fmt.Fprintf(r.out, format+"\n", args...)
	}
}

// compareGolden returns a failure message when the golden file exists and
// differs from snapshot. A missing golden file is not a failure.
func compareGolden(path string, snapshot []byte) string {
	golden, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ""
	case err != nil:
		return fmt.Sprintf("failed to read golden file: %v", err)
	case !bytes.Equal(golden, snapshot):
		return "trace does not match golden file (run with --update to regenerate)"
	}
	return ""
}

// goldenFilePath maps dir/name.yaml to dir/golden/name.golden.
func goldenFilePath(scenarioFile string) string {
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}

func writeGoldenFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func writeScenarioJSON(w io.Writer, result ScenarioRunResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_SCENARIO_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return reportedFailure(response.Error.Message)
	}
	return nil
}

func writeScenarioSummary(w io.Writer, result ScenarioRunResult) error {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	fmt.Fprintf(w, "\nScenario Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return reportedFailure(fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
