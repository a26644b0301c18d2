package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_Transcript(t *testing.T) {
	result, err := Run(mustParse(t, validScenario))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Transcript, 2)
	assert.Equal(t, "", result.Transcript[0].Output)
	assert.Equal(t, int64(1), result.Transcript[0].Tx)
	assert.Equal(t, "(int) 1\n", result.Transcript[1].Output)
	assert.NotEmpty(t, result.Digest)
}

func TestRun_Deterministic(t *testing.T) {
	s := mustParse(t, validScenario)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
}

func TestRun_ExpectationFailures(t *testing.T) {
	result, err := Run(mustParse(t, `
name: failing
description: "every expectation is wrong"
steps:
  - input: "1 + 1"
    expect:
      output: "(int) 3"
      error: E_RUNTIME
      warnings: 1
  - input: ".undo"
    expect:
      quit: true
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, []string{
		`steps[0]: output "(int) 2", expected "(int) 3"`,
		`steps[0]: error code "", expected "E_RUNTIME"`,
		"steps[0]: 0 warnings, expected 1",
		"steps[1]: quit false, expected true",
	}, result.Errors)
}

func TestRun_AssertionFailures(t *testing.T) {
	result, err := Run(mustParse(t, `
name: failing_assertions
description: "assertions that do not hold"
steps:
  - input: "int a;"
  - input: '.storeState "s"'
  - input: "int b;"
assertions:
  - type: visible_contains
    name: c
  - type: visible_contains
    name: a
    kind: function
  - type: visible_absent
    name: b
  - type: live_count
    count: 5
  - type: snapshot_clean
    snapshot: s
  - type: output_contains
    text: "never printed"
  - type: snapshot_clean
    snapshot: unknown
`))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 7)
	assert.Contains(t, result.Errors[0], "Assertion failed: visible_contains")
	assert.Contains(t, result.Errors[1], "Actual: variable a")
	assert.Contains(t, result.Errors[2], "Assertion failed: visible_absent")
	assert.Contains(t, result.Errors[3], "Actual: 2 live transactions")
	assert.Contains(t, result.Errors[4], "+ variable b")
	assert.Contains(t, result.Errors[5], "Assertion failed: output_contains")
	assert.Contains(t, result.Errors[6], "snapshot_clean")
	assert.Contains(t, result.Errors[0], "[2] int b;")
}

func TestRun_StrictStops(t *testing.T) {
	result, err := Run(mustParse(t, `
name: strict
description: "strict escalation"
options:
  strict: true
steps:
  - input: ".L nowhere"
    expect:
      fatal: true
  - input: "int never;"
`))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Transcript, 1)
	assert.Contains(t, result.Fatal, "fatal:")
	assert.Contains(t, result.Transcript[0].Output, "fatal: file 'nowhere' not found")
}

func TestRun_UnexpectedFatal(t *testing.T) {
	result, err := Run(mustParse(t, `
name: strict
description: "strict escalation without expectation"
options:
  strict: true
steps:
  - input: ".L nowhere"
`))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "steps[0]: unexpected fatal:")
}

func TestRun_IncludePathsRelativeToScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "include"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "include", "seven.h"),
		[]byte("int seven() { return 7; }\n"), 0o644))

	path := filepath.Join(dir, "inc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: inc
description: "include paths resolve against the scenario file"
options:
  include_paths: [include]
steps:
  - input: '#include "seven.h"'
  - input: "seven()"
    expect:
      output: "(int) 7"
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestFormatTranscript(t *testing.T) {
	got := FormatTranscript([]TranscriptEvent{
		{Input: "int f() {\n  return 1;\n}\n"},
		{Input: "f()", Output: "(int) 1\n"},
	})
	assert.Equal(t, "txrepl> int f() {\n...   return 1;\n... }\ntxrepl> f()\n(int) 1\n", got)
}
