package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

// Scenario is a scripted session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// SessionID fixes the session id. Defaults to "scenario-<name>".
	SessionID string `yaml:"session_id,omitempty"`

	Options Options `yaml:"options,omitempty"`

	// Files maps file names to contents written before the first step.
	Files map[string]string `yaml:"files,omitempty"`

	// Steps are processed in order, one input each.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final session.
	Assertions []Assertion `yaml:"assertions"`

	// BaseDir is the directory of the scenario file. Relative include paths
	// resolve against it.
	BaseDir string `yaml:"-"`
}

// Options configure the scenario's session.
type Options struct {
	Strict       bool     `yaml:"strict,omitempty"`
	IncludePaths []string `yaml:"include_paths,omitempty"`
	NativeString string   `yaml:"native_string,omitempty"`
	Journal      bool     `yaml:"journal,omitempty"`
}

// Step is one input and what it should produce.
type Step struct {
	Input  string  `yaml:"input"`
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes a step's rendered result. Unset fields are not checked.
type Expect struct {
	// Output is the printed value or command output, without trailing
	// newline.
	Output *string `yaml:"output,omitempty"`

	// Error is the code of the reported condition. "none" requires that
	// nothing was reported.
	Error string `yaml:"error,omitempty"`

	// Warnings is the number of warnings.
	Warnings *int `yaml:"warnings,omitempty"`

	// Quit expects the step to end the session.
	Quit bool `yaml:"quit,omitempty"`

	// Fatal expects strict mode to escalate the step.
	Fatal bool `yaml:"fatal,omitempty"`
}

// Assertion validates the final session.
type Assertion struct {
	Type string `yaml:"type"`

	// Name is a qualified name (visible_contains, visible_absent).
	Name string `yaml:"name,omitempty"`

	// Kind optionally restricts visible_contains.
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of live transactions (live_count).
	Count int `yaml:"count,omitempty"`

	// Snapshot names the stored snapshot (snapshot_clean).
	Snapshot string `yaml:"snapshot,omitempty"`

	// Text is searched in step output (output_contains).
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertVisibleContains = "visible_contains"
	AssertVisibleAbsent   = "visible_absent"
	AssertLiveCount       = "live_count"
	AssertSnapshotClean   = "snapshot_clean"
	AssertOutputContains  = "output_contains"
	AssertReplayMatches   = "replay_matches"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve scenario directory: %w", err)
	}
	scenario.BaseDir = abs
	return scenario, nil
}

// ParseScenario parses scenario YAML. Unknown fields are rejected.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.Options.NativeString != "" {
		if _, err := ir.ParseEncoding(s.Options.NativeString); err != nil {
			return fmt.Errorf("options.native_string: %w", err)
		}
	}

	for name := range s.Files {
		if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
			return fmt.Errorf("files: %q must be a plain file name", name)
		}
	}

	for i, step := range s.Steps {
		if step.Input == "" {
			return fmt.Errorf("steps[%d]: input is required", i)
		}
		if step.Expect != nil && step.Expect.Error != "" && step.Expect.Error != "none" && !knownCodes[diag.Code(step.Expect.Error)] {
			return fmt.Errorf("steps[%d].expect: unknown error code %q", i, step.Expect.Error)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, s.Options); err != nil {
			return err
		}
	}
	return nil
}

var knownCodes = map[diag.Code]bool{
	diag.CodeSyntax:          true,
	diag.CodeNotFound:        true,
	diag.CodeLoadFailed:      true,
	diag.CodeUnresolved:      true,
	diag.CodeInvalidDeref:    true,
	diag.CodeNothingToUndo:   true,
	diag.CodeCompile:         true,
	diag.CodeRuntime:         true,
	diag.CodeVersionMismatch: true,
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion, opts Options) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertVisibleContains, AssertVisibleAbsent:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for %s", index, a.Type)
		}
		if a.Kind != "" && !ir.ValidEntryKinds[ir.EntryKind(a.Kind)] {
			return fmt.Errorf("assertions[%d]: unknown kind %q", index, a.Kind)
		}
	case AssertLiveCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for live_count", index)
		}
	case AssertSnapshotClean:
		if a.Snapshot == "" {
			return fmt.Errorf("assertions[%d]: snapshot is required for snapshot_clean", index)
		}
	case AssertOutputContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_contains", index)
		}
	case AssertReplayMatches:
		if !opts.Journal {
			return fmt.Errorf("assertions[%d]: replay_matches requires options.journal", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
