package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
	"github.com/roach88/txrepl/internal/session"
	"github.com/roach88/txrepl/internal/store"
	"github.com/roach88/txrepl/internal/testutil"
	"github.com/roach88/txrepl/internal/txlog"
)

// Harness runs one scenario.
type Harness struct {
	scenario *Scenario
	session  *session.Session
	store    *store.Store // nil unless the scenario journals
	dir      string
	opts     []session.Option
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh session, with a fresh in-memory journal when
// it asks for one. Execution stops early when a step quits or strict mode
// escalates.
func Run(scenario *Scenario, opts ...session.Option) (*Result, error) {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "txrepl-scenario-")
	if err != nil {
		return nil, fmt.Errorf("create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	h := &Harness{scenario: scenario, dir: dir}
	if err := h.writeFiles(); err != nil {
		return nil, err
	}
	if err := h.start(ctx, opts); err != nil {
		return nil, err
	}
	if h.store != nil {
		defer h.store.Close()
	}

	result := NewResult()
	h.executeSteps(ctx, result)

	digest, err := h.session.Digest()
	if err != nil {
		return nil, fmt.Errorf("digest: %w", err)
	}
	result.Digest = digest

	actx := &AssertionContext{Ctx: ctx, Session: h.session, Store: h.store, Options: h.opts}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) writeFiles() error {
	for name, content := range h.scenario.Files {
		if err := os.WriteFile(filepath.Join(h.dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write scenario file %s: %w", name, err)
		}
	}
	return nil
}

func (h *Harness) start(ctx context.Context, extra []session.Option) error {
	s := h.scenario
	id := s.SessionID
	if id == "" {
		id = "scenario-" + s.Name
	}

	includes := []string{h.dir}
	for _, p := range s.Options.IncludePaths {
		if !filepath.IsAbs(p) && s.BaseDir != "" {
			p = filepath.Join(s.BaseDir, p)
		}
		includes = append(includes, p)
	}

	native := ir.Narrow
	if s.Options.NativeString != "" {
		native, _ = ir.ParseEncoding(s.Options.NativeString)
	}

	h.opts = append([]session.Option{
		session.WithClock(txlog.NewClock()),
		session.WithStrict(s.Options.Strict),
		session.WithNativeString(native),
		session.WithIncludePaths(includes...),
		session.WithEnv(testutil.NoEnv),
	}, extra...)

	opts := append([]session.Option{session.WithIDGenerator(session.NewFixedGenerator(id))}, h.opts...)
	if s.Options.Journal {
		st, err := store.Open(":memory:")
		if err != nil {
			return fmt.Errorf("failed to create in-memory store: %w", err)
		}
		j, err := st.BeginSession(ctx, store.SessionRecord{ID: id, Strict: s.Options.Strict, NativeString: native.String()})
		if err != nil {
			st.Close()
			return fmt.Errorf("begin journal: %w", err)
		}
		h.store = st
		opts = append(opts, session.WithJournal(j))
	}

	h.session = session.New(opts...)
	return nil
}

func (h *Harness) executeSteps(ctx context.Context, result *Result) {
	for i, step := range h.scenario.Steps {
		out, err := h.session.Process(ctx, step.Input)

		ev := TranscriptEvent{
			Step:   i,
			Input:  step.Input,
			Output: h.session.Render(out),
			Code:   string(diag.CodeOf(out.Err)),
			Tx:     int64(out.Tx),
		}
		for _, w := range out.Warnings {
			ev.Warnings = append(ev.Warnings, w.Error())
		}
		switch {
		case errors.Is(err, session.ErrQuit):
			result.Quit = true
		case err != nil:
			result.Fatal = err.Error()
			ev.Output += err.Error() + "\n"
		}
		result.Transcript = append(result.Transcript, ev)

		for _, msg := range checkExpect(i, step.Expect, out, err) {
			result.AddError(msg)
		}
		if err != nil {
			slog.Debug("scenario stopped", "scenario", h.scenario.Name, "step", i, "reason", err)
			return
		}
	}
}

// checkExpect compares a step's outcome with its expectation.
func checkExpect(i int, exp *Expect, out session.Outcome, err error) []string {
	quit := errors.Is(err, session.ErrQuit)
	fatal := session.IsFatal(err)

	if exp == nil {
		if err != nil && !quit {
			return []string{fmt.Sprintf("steps[%d]: unexpected %v", i, err)}
		}
		return nil
	}

	var msgs []string
	if exp.Output != nil && strings.TrimSuffix(out.Output, "\n") != *exp.Output {
		msgs = append(msgs, fmt.Sprintf("steps[%d]: output %q, expected %q", i, out.Output, *exp.Output))
	}
	code := string(diag.CodeOf(out.Err))
	switch exp.Error {
	case "":
	case "none":
		if out.Err != nil {
			msgs = append(msgs, fmt.Sprintf("steps[%d]: unexpected error %v", i, out.Err))
		}
	default:
		if code != exp.Error {
			msgs = append(msgs, fmt.Sprintf("steps[%d]: error code %q, expected %q", i, code, exp.Error))
		}
	}
	if exp.Warnings != nil && len(out.Warnings) != *exp.Warnings {
		msgs = append(msgs, fmt.Sprintf("steps[%d]: %d warnings, expected %d", i, len(out.Warnings), *exp.Warnings))
	}
	if quit != exp.Quit {
		msgs = append(msgs, fmt.Sprintf("steps[%d]: quit %t, expected %t", i, quit, exp.Quit))
	}
	if fatal != exp.Fatal {
		msgs = append(msgs, fmt.Sprintf("steps[%d]: fatal %t, expected %t", i, fatal, exp.Fatal))
	}
	return msgs
}
