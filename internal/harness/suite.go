package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/txrepl/internal/session"
)

// SuiteResult summarizes running every scenario in a directory.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is a scenario that did not pass or could not run.
type ScenarioFailure struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Errors []string `json:"errors"`
}

// FindScenarios returns the YAML files under dir in lexical order.
func FindScenarios(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !info.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// RunDir loads and runs every scenario under dir. A scenario that fails to
// load counts as failed; the rest still run.
func RunDir(dir string, opts ...session.Option) (*SuiteResult, error) {
	files, err := FindScenarios(dir)
	if err != nil {
		return nil, fmt.Errorf("scan scenarios: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files found in %s", dir)
	}

	suite := &SuiteResult{}
	for _, path := range files {
		suite.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			suite.fail(ScenarioFailure{Path: path, Errors: []string{err.Error()}})
			continue
		}
		result, err := Run(scenario, opts...)
		if err != nil {
			suite.fail(ScenarioFailure{Path: path, Name: scenario.Name, Errors: []string{err.Error()}})
			continue
		}
		if !result.Pass {
			suite.fail(ScenarioFailure{Path: path, Name: scenario.Name, Errors: result.Errors})
			continue
		}
		suite.Passed++
	}
	return suite, nil
}

func (s *SuiteResult) fail(f ScenarioFailure) {
	s.Failed++
	s.Failures = append(s.Failures, f)
}
