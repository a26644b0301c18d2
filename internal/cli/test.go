package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/txrepl/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern on the file name)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run YAML scenarios against fresh sessions.

Each scenario feeds its steps to a session, checks each step's expected
output and error code, then evaluates its final-state assertions.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, bad filter, etc.)

Examples:
  txrepl test ./testdata/scenarios
  txrepl test ./testdata/scenarios --filter "snapshot_*"
  txrepl test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}
	if _, err := filepath.Match(opts.Filter, ""); err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	files, err := harness.FindScenarios(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	suite := &harness.SuiteResult{}
	var passed []string
	for _, path := range files {
		if !matchFilter(opts.Filter, path) {
			continue
		}
		formatter.VerboseLog("running %s", path)
		failure := runScenario(path)
		suite.Total++
		if failure == nil {
			suite.Passed++
			passed = append(passed, filepath.Base(path))
			continue
		}
		suite.Failed++
		suite.Failures = append(suite.Failures, *failure)
	}

	if err := formatter.Success(suite, formatSuiteText(suite, passed)); err != nil {
		return err
	}
	if suite.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", suite.Failed, suite.Total))
	}
	return nil
}

// runScenario runs one scenario file, returning nil when it passes.
func runScenario(path string) *harness.ScenarioFailure {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return &harness.ScenarioFailure{Path: path, Errors: []string{err.Error()}}
	}
	result, err := harness.Run(scenario)
	if err != nil {
		return &harness.ScenarioFailure{Path: path, Name: scenario.Name, Errors: []string{err.Error()}}
	}
	if !result.Pass {
		return &harness.ScenarioFailure{Path: path, Name: scenario.Name, Errors: result.Errors}
	}
	return nil
}

func matchFilter(filter, path string) bool {
	if filter == "" {
		return true
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	ok, _ := filepath.Match(filter, name)
	return ok
}

func formatSuiteText(s *harness.SuiteResult, passed []string) string {
	if s.Total == 0 {
		return "No scenarios found.\n"
	}
	var b strings.Builder
	for _, name := range passed {
		fmt.Fprintf(&b, "✓ %s\n", name)
	}
	for _, f := range s.Failures {
		fmt.Fprintf(&b, "✗ %s\n", filepath.Base(f.Path))
		for _, e := range f.Errors {
			fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
		}
	}
	fmt.Fprintf(&b, "\n%d passed, %d failed, %d total\n", s.Passed, s.Failed, s.Total)
	return b.String()
}
