package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/txrepl/internal/bridge"
	"github.com/roach88/txrepl/internal/command"
	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/frontend"
	"github.com/roach88/txrepl/internal/ir"
	"github.com/roach88/txrepl/internal/snapshot"
)

// Outcome is the result of processing one input.
type Outcome struct {
	// Output is the printed value or the command's output.
	Output string

	// Warnings did not stop the input from being processed.
	Warnings []error

	// Err is the reported condition, if any. The session continues.
	Err error

	// Tx is the transaction the input committed, or 0.
	Tx ir.TxID
}

func (o *Outcome) merge(other Outcome) {
	o.Warnings = append(o.Warnings, other.Warnings...)
	if other.Output != "" {
		o.Output = other.Output
	}
	if other.Err != nil {
		o.Err = other.Err
	}
	if other.Tx != 0 {
		o.Tx = other.Tx
	}
}

// Process handles one input: a dot-command or a source fragment.
//
// It returns ErrQuit after ".q" and a *FatalError when strict mode escalates
// a condition. Every other condition is reported in the Outcome.
func (s *Session) Process(ctx context.Context, input string) (Outcome, error) {
	if strings.TrimSpace(input) == "" {
		return Outcome{}, nil
	}
	if !command.IsCommand(input) {
		return s.compile(ctx, frontend.Source{Text: input, Origin: "prompt"})
	}

	cmd, err := command.Parse(input)
	if err != nil {
		return Outcome{Err: err}, nil
	}
	slog.Debug("command", "session", s.id, "command", fmt.Sprintf("%T", cmd))

	switch c := cmd.(type) {
	case command.LoadCmd:
		return s.Load(ctx, c.Locator)
	case command.IncludeCmd:
		return s.include(c), nil
	case command.ExecCmd:
		return s.exec(ctx, c)
	case command.UndoCmd:
		return s.undo(c.N), nil
	case command.StoreStateCmd:
		return s.storeState(c.Name), nil
	case command.CompareStateCmd:
		return s.compareState(c.Name), nil
	case command.QuitCmd:
		return Outcome{}, ErrQuit
	case command.HelpCmd:
		return Outcome{Output: strings.TrimRight(command.Help, "\n")}, nil
	case command.StatsCmd:
		return Outcome{Output: s.stats()}, nil
	default:
		return Outcome{Err: diag.Syntax("unhandled command %T", cmd)}, nil
	}
}

// compile compiles src, commits it, links it and runs its entry. A fragment
// that fails to link or run is rolled back, leaving the session exactly as
// before it.
func (s *Session) compile(ctx context.Context, src frontend.Source) (Outcome, error) {
	frag, err := s.fe.Compile(ctx, src, s.log)
	if err != nil {
		return Outcome{Err: err}, nil
	}

	var out Outcome
	for _, w := range frag.Warnings {
		out.Warnings = append(out.Warnings, plainWarning{w})
	}
	if frag.Empty() {
		return out, nil
	}

	id, err := s.log.Commit(frag, src.Text, src.Origin)
	if err != nil {
		out.Err = err
		return out, nil
	}
	tx, _ := s.log.Get(id)

	if err := s.linker.Link(ctx, tx); err != nil {
		s.discard(id)
		out.Err = err
		return out, nil
	}
	v, err := s.linker.Run(ctx, tx)
	if err != nil {
		s.discard(id)
		out.Err = err
		return out, nil
	}
	out.Tx = id

	if tx.Print {
		text, err := s.printer.Print(v)
		if err != nil {
			out.Err = err
			return out, nil
		}
		out.Output = text
	}
	return out, nil
}

// Replay compiles a journaled input under its recorded origin. Prompt input
// is compiled as if typed again; file input resolves includes relative to the
// file's directory.
func (s *Session) Replay(ctx context.Context, input, origin string) (Outcome, error) {
	src := frontend.Source{Text: input, Origin: origin}
	if origin != "prompt" {
		src.Dir = filepath.Dir(origin)
	}
	return s.compile(ctx, src)
}

// discard rolls back the transaction just committed for a failed fragment.
func (s *Session) discard(id ir.TxID) {
	if _, err := s.log.RollbackTo(id); err != nil {
		slog.Warn("discarding failed transaction", "tx", id, "error", err)
	}
}

// Load handles ".L": it loads a native library or compiles a source file.
// Loading a file that is already loaded is a successful no-op.
func (s *Session) Load(ctx context.Context, locator string) (Outcome, error) {
	loc, err := bridge.Locate(locator, s.searchDirs(s.libPaths))
	if err != nil {
		return s.reportResource(err)
	}

	if loc.Kind == bridge.LibraryFile {
		lib, already, err := s.libs.Load(loc.Path)
		if s.journal != nil && !already {
			if jerr := s.journal.RecordLibrary(lib); jerr != nil {
				slog.Warn("journal library record failed", "path", lib.Path, "error", jerr)
			}
		}
		if err != nil {
			return s.reportResource(err)
		}
		return Outcome{}, nil
	}

	if tx, ok := s.libs.Source(loc.Path); ok {
		slog.Debug("source already loaded", "path", loc.Path, "tx", tx)
		return Outcome{}, nil
	}
	text, err := os.ReadFile(loc.Path)
	if err != nil {
		return s.reportResource(diag.LoadFailed(locator, err))
	}

	out, err := s.compile(ctx, frontend.Source{
		Text:   string(text),
		Origin: loc.Path,
		Dir:    filepath.Dir(loc.Path),
	})
	if err == nil && out.Tx != 0 {
		s.libs.AddSource(loc.Path, out.Tx)
	}
	return out, err
}

// reportResource reports a missing or unloadable resource, or escalates it in
// strict mode.
func (s *Session) reportResource(err error) (Outcome, error) {
	if fatal := s.escalate(err); fatal != nil {
		return Outcome{Err: err}, fatal
	}
	return Outcome{Err: err}, nil
}

func (s *Session) include(c command.IncludeCmd) Outcome {
	if !c.HasArg {
		old := s.includes.Reset()
		return Outcome{Output: strings.Join(old, "\n")}
	}
	added := s.includes.Apply(c, s.env)
	slog.Debug("include paths added", "paths", added, "total", s.includes.Len())
	return Outcome{}
}

// exec handles ".x": load the file, then evaluate the call chain.
func (s *Session) exec(ctx context.Context, c command.ExecCmd) (Outcome, error) {
	out, err := s.Load(ctx, c.Locator)
	if err != nil || out.Err != nil {
		return out, err
	}

	call, err := s.compile(ctx, frontend.Source{Text: c.Expr(), Origin: "prompt"})
	out.merge(call)
	return out, err
}

func (s *Session) undo(n int) Outcome {
	undone, err := s.log.UndoN(n)
	if err != nil {
		return Outcome{Err: err}
	}
	slog.Debug("undo", "requested", n, "undone", undone)
	return Outcome{}
}

func (s *Session) storeState(name string) Outcome {
	snap := s.snaps.Save(name, s.log.Clock().Current(), s.log.Visible())
	if s.journal != nil {
		if err := s.journal.SaveSnapshot(snap); err != nil {
			slog.Warn("journal snapshot failed", "name", name, "error", err)
		}
	}
	return Outcome{}
}

func (s *Session) compareState(name string) Outcome {
	changes, err := s.snaps.Compare(name, s.log.Visible())
	if err != nil {
		return Outcome{Err: &diag.Error{
			Code:    diag.CodeNotFound,
			Message: fmt.Sprintf("no state stored under '%s'", name),
			Subject: name,
			Err:     err,
		}}
	}
	return Outcome{Output: strings.TrimRight(snapshot.Format(name, changes), "\n")}
}

func (s *Session) stats() string {
	st := s.log.Stats()
	loaded, failed := 0, 0
	for _, lib := range s.libs.Libraries() {
		if lib.Status == bridge.Loaded {
			loaded++
		} else {
			failed++
		}
	}
	return fmt.Sprintf("transactions: %d live, %d rolled back\n"+
		"entries: %d (%d visible)\n"+
		"seq: %d\n"+
		"libraries: %d loaded, %d failed\n"+
		"heap cells: %d\n"+
		"snapshots: %d",
		st.Live, st.RolledBack, st.Entries, st.Visible, st.Seq,
		loaded, failed, s.linker.Heap().Len(), len(s.snaps.Names()))
}

// IncludePCH compiles a precompiled artifact into the session. The locator
// is resolved against the current directory, the include paths and the
// configured roots; absolute locators are used as given. A version mismatch
// is a warning unless strict mode escalates it.
func (s *Session) IncludePCH(ctx context.Context, locator string) (Outcome, error) {
	path, err := frontend.FindPCH(locator, s.searchDirs(s.pchRoots))
	if err != nil {
		return s.reportResource(err)
	}
	pch, err := frontend.LoadPCH(path)
	if err != nil {
		return s.reportResource(err)
	}

	var out Outcome
	if err := pch.CheckVersion(); err != nil {
		if fatal := s.escalate(err); fatal != nil {
			return Outcome{Err: err}, fatal
		}
		out.Warnings = append(out.Warnings, err)
	}

	text, origin, err := pch.Contents()
	if err != nil {
		return s.reportResource(err)
	}
	compiled, err := s.compile(ctx, frontend.Source{Text: text, Origin: origin, Dir: filepath.Dir(origin)})
	out.merge(compiled)
	return out, err
}
