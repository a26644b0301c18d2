package harness

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/txrepl/internal/session"
)

// TranscriptPrompt precedes each input in a rendered transcript.
const TranscriptPrompt = "txrepl> "

// FormatTranscript renders a transcript the way an interactive session shows
// it: each input after a prompt, continuation lines after the continuation
// prompt, then whatever the input printed.
func FormatTranscript(events []TranscriptEvent) string {
	var b strings.Builder
	for _, ev := range events {
		for i, line := range strings.Split(strings.TrimRight(ev.Input, "\n"), "\n") {
			if i == 0 {
				b.WriteString(TranscriptPrompt)
			} else {
				b.WriteString(session.ContinuationPrompt)
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteString(ev.Output)
	}
	return b.String()
}

// RunWithGolden executes a scenario and compares its transcript against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie) occurs
// if the transcript doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's transcript against a golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(FormatTranscript(result.Transcript)))
}
