package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/txrepl/internal/session"
	"github.com/roach88/txrepl/internal/snapshot"
	"github.com/roach88/txrepl/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the transcript to help debug the failure.
type AssertionError struct {
	Type       string
	Expected   string
	Actual     string
	Transcript []TranscriptEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nTranscript:\n")
	for _, ev := range e.Transcript {
		fmt.Fprintf(&buf, "  [%d] %s\n", ev.Step, firstLine(ev.Input))
	}

	return buf.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// AssertionContext provides what assertions inspect besides the transcript.
type AssertionContext struct {
	Ctx     context.Context
	Session *session.Session

	// Store is the scenario's journal, nil unless it journals.
	Store *store.Store

	// Options configure the session a replay runs in.
	Options []session.Option
}

func assertVisibleContains(actx *AssertionContext, result *Result, a Assertion) error {
	e, ok := actx.Session.Log().Lookup(a.Name)
	if !ok {
		return &AssertionError{
			Type:       AssertVisibleContains,
			Expected:   fmt.Sprintf("%s visible", a.Name),
			Actual:     "not visible",
			Transcript: result.Transcript,
		}
	}
	if a.Kind != "" && string(e.Kind) != a.Kind {
		return &AssertionError{
			Type:       AssertVisibleContains,
			Expected:   fmt.Sprintf("%s %s", a.Kind, a.Name),
			Actual:     e.String(),
			Transcript: result.Transcript,
		}
	}
	return nil
}

func assertVisibleAbsent(actx *AssertionContext, result *Result, a Assertion) error {
	if e, ok := actx.Session.Log().Lookup(a.Name); ok {
		return &AssertionError{
			Type:       AssertVisibleAbsent,
			Expected:   fmt.Sprintf("%s not visible", a.Name),
			Actual:     e.String(),
			Transcript: result.Transcript,
		}
	}
	return nil
}

func assertLiveCount(actx *AssertionContext, result *Result, a Assertion) error {
	if n := actx.Session.Log().Len(); n != a.Count {
		return &AssertionError{
			Type:       AssertLiveCount,
			Expected:   fmt.Sprintf("%d live transactions", a.Count),
			Actual:     fmt.Sprintf("%d live transactions", n),
			Transcript: result.Transcript,
		}
	}
	return nil
}

func assertSnapshotClean(actx *AssertionContext, result *Result, a Assertion) error {
	changes, err := actx.Session.Snapshots().Compare(a.Snapshot, actx.Session.Visible())
	if err != nil {
		return fmt.Errorf("snapshot_clean: %w", err)
	}
	if len(changes) > 0 {
		return &AssertionError{
			Type:       AssertSnapshotClean,
			Expected:   fmt.Sprintf("no differences from %q", a.Snapshot),
			Actual:     strings.TrimSpace(snapshot.Format(a.Snapshot, changes)),
			Transcript: result.Transcript,
		}
	}
	return nil
}

func assertOutputContains(result *Result, a Assertion) error {
	for _, ev := range result.Transcript {
		if strings.Contains(ev.Output, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:       AssertOutputContains,
		Expected:   fmt.Sprintf("output containing %q", a.Text),
		Actual:     "not printed",
		Transcript: result.Transcript,
	}
}

func assertReplayMatches(actx *AssertionContext, result *Result) error {
	res, err := actx.Store.Replay(actx.Ctx, actx.Session.ID(), actx.Options...)
	if err != nil {
		return fmt.Errorf("replay_matches: %w", err)
	}
	if !res.Match() {
		actual := fmt.Sprintf("digest %s, %d failed transactions", res.Actual, len(res.Failed))
		return &AssertionError{
			Type:       AssertReplayMatches,
			Expected:   fmt.Sprintf("digest %s", res.Expected),
			Actual:     actual,
			Transcript: result.Transcript,
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertVisibleContains:
			err = assertVisibleContains(actx, result, assertion)
		case AssertVisibleAbsent:
			err = assertVisibleAbsent(actx, result, assertion)
		case AssertLiveCount:
			err = assertLiveCount(actx, result, assertion)
		case AssertSnapshotClean:
			err = assertSnapshotClean(actx, result, assertion)
		case AssertOutputContains:
			err = assertOutputContains(result, assertion)
		case AssertReplayMatches:
			if actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: replay_matches requires a journal", i)
			} else {
				err = assertReplayMatches(actx, result)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
