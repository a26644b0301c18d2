package session

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
	"github.com/roach88/txrepl/internal/testutil"
)

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{
		WithIDGenerator(NewFixedGenerator("test-session")),
		WithLoader(&testutil.FakeLoader{}),
		WithEnv(testutil.NoEnv),
	}, opts...)
	return New(opts...)
}

// feed processes inputs in order and returns the rendered transcript.
func feed(t *testing.T, s *Session, inputs ...string) string {
	t.Helper()
	var b strings.Builder
	for _, in := range inputs {
		o, err := s.Process(context.Background(), in)
		require.NoError(t, err, "input %q", in)
		b.WriteString(s.Render(o))
	}
	return b.String()
}

func process(t *testing.T, s *Session, input string) Outcome {
	t.Helper()
	o, err := s.Process(context.Background(), input)
	require.NoError(t, err)
	return o
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSession_RedundantUsingUndoRegression(t *testing.T) {
	s := newTestSession(t)

	out := feed(t, s,
		"namespace A { int foo(); }",
		`.storeState "before"`,
		"using A::foo;",
		"using A::foo;",
		".undo",
		".undo",
		`.compareState "before"`,
	)

	assert.Equal(t, "no differences from \"before\"\n", out)
	assert.Equal(t, 1, s.Log().Len())
}

func TestSession_UsingStaysVisibleAfterRedundantUndo(t *testing.T) {
	s := newTestSession(t)
	feed(t, s, "namespace A { int foo() { return 5; } }", "using A::foo;", "using A::foo;", ".undo")

	e, ok := s.Log().Lookup("foo")
	require.True(t, ok)
	assert.Equal(t, ir.KindUsing, e.Kind)
	assert.Equal(t, "(int) 5\n", feed(t, s, "foo()"))
}

func TestSession_UndoSymmetry(t *testing.T) {
	s := newTestSession(t)
	feed(t, s, "int base = 1;", `.storeState "s"`)

	inputs := []string{"int a = 2;", "int f() { return a; }", "namespace N { int g(); }", "int f() { return 3; }"}
	feed(t, s, inputs...)
	for range inputs {
		feed(t, s, ".undo")
	}

	assert.Equal(t, "no differences from \"s\"\n", feed(t, s, `.compareState "s"`))
}

func TestSession_SnapshotIndependence(t *testing.T) {
	s := newTestSession(t)
	feed(t, s, `.storeState "k"`, "int a;", "int b;", "int c;", ".undo")

	o := process(t, s, `.compareState "k"`)
	assert.Equal(t, "+ variable a\n+ variable b", o.Output)
}

func TestSession_UndoEmpty(t *testing.T) {
	s := newTestSession(t)

	o := process(t, s, ".undo")
	assert.True(t, diag.Is(o.Err, diag.CodeNothingToUndo))
	assert.Equal(t, "error [E_NOTHING_TO_UNDO]: nothing to undo\n", s.Render(o))
}

func TestSession_UnresolvedSymbol(t *testing.T) {
	s := newTestSession(t)

	o := process(t, s, "int main(); main()")
	var de *diag.Error
	require.ErrorAs(t, o.Err, &de)
	assert.Equal(t, diag.CodeUnresolved, de.Code)
	assert.Equal(t, "main", de.Subject)
	assert.Equal(t, "error [E_UNRESOLVED]: symbol 'main' unresolved while linking\n", s.Render(o))
	assert.Equal(t, 0, s.Log().Len())

	assert.Equal(t, "(int) 3\n", feed(t, s, "1 + 2"))
}

func TestSession_PointerGuard(t *testing.T) {
	s := newTestSession(t)

	o := process(t, s, "(int*)0")
	assert.True(t, diag.Is(o.Err, diag.CodeInvalidDeref))
	assert.Equal(t, "error [E_DEREF]: null pointer passed to a callee\n", s.Render(o))

	o = process(t, s, "(int*)0x10")
	var de *diag.Error
	require.ErrorAs(t, o.Err, &de)
	assert.Equal(t, uintptr(0x10), de.Address)

	assert.Equal(t, "(int) 4\n", feed(t, s, "2 * 2"))
}

func TestSession_MissingPCHRecovery(t *testing.T) {
	s := newTestSession(t)

	o, err := s.IncludePCH(context.Background(), "missing.pch")
	require.NoError(t, err)
	var de *diag.Error
	require.ErrorAs(t, o.Err, &de)
	assert.Equal(t, diag.CodeNotFound, de.Code)
	assert.Equal(t, "missing.pch", de.Subject)

	assert.Equal(t, "(int) 42\n", feed(t, s, "int answer() { return 42; }", "answer()"))
}

func TestSession_PCHVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "old.pch", "format_version: 1\nbuild_id: txrepl-0.0.0\ntext: |\n  int seven() { return 7; }\n")

	lenient := newTestSession(t, WithPCHRoots(dir))
	o, err := lenient.IncludePCH(context.Background(), "old.pch")
	require.NoError(t, err)
	require.NoError(t, o.Err)
	require.Len(t, o.Warnings, 1)
	assert.True(t, diag.Is(o.Warnings[0], diag.CodeVersionMismatch))
	assert.Equal(t, "(int) 7\n", feed(t, lenient, "seven()"))

	strict := newTestSession(t, WithPCHRoots(dir), WithStrict(true))
	_, err = strict.IncludePCH(context.Background(), "old.pch")
	assert.True(t, IsFatal(err))
	assert.True(t, diag.Is(err, diag.CodeVersionMismatch))
}

func TestSession_LoadMissing(t *testing.T) {
	s := newTestSession(t)

	o := process(t, s, `.L "no;such file.so"`)
	assert.Equal(t, "error [E_NOT_FOUND]: file 'no;such file.so' not found\n", s.Render(o))

	strict := newTestSession(t, WithStrict(true))
	_, err := strict.Process(context.Background(), ".L nowhere")
	assert.True(t, IsFatal(err))
	assert.True(t, diag.Is(err, diag.CodeNotFound))
}

func TestSession_LoadLibrary(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "libgood.so", "")
	writeFile(t, dir, "libbad.so", "")

	s := newTestSession(t, WithLibraryPaths(dir))

	assert.Empty(t, feed(t, s, ".L good", ".L "+good))
	lib, ok := s.Libraries().Get(good)
	require.True(t, ok)
	assert.Equal(t, "loaded", string(lib.Status))

	o := process(t, s, ".L bad")
	assert.True(t, diag.Is(o.Err, diag.CodeLoadFailed))
	assert.Contains(t, o.Err.Error(), "invalid ELF header")

	strict := newTestSession(t, WithLibraryPaths(dir), WithStrict(true))
	_, err := strict.Process(context.Background(), ".L bad")
	assert.True(t, IsFatal(err))
}

func TestSession_LoadSourceIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "util.h", "int util() { return 11; }\n")
	s := newTestSession(t, WithIncludePaths(dir))

	feed(t, s, ".L util.h", ".L util.h")
	assert.Equal(t, 1, s.Log().Len())

	feed(t, s, ".undo", ".L util.h")
	assert.Equal(t, 1, s.Log().Len())
	assert.Equal(t, "(int) 11\n", feed(t, s, "util()"))
}

func TestSession_Exec(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dbl.h", "int dbl(int x) { return x * 2; }\n")
	writeFile(t, dir, "g.h", "int two() { return 2; }\nauto pick(int x) { return two; }\nauto g(int a) { return pick; }\n")
	s := newTestSession(t, WithIncludePaths(dir))

	assert.Equal(t, "(int) 42\n", feed(t, s, ".x dbl.h(21)"))
	assert.Equal(t, "(int) 2\n", feed(t, s, `.x "g.h(4)(1)" ()`))

	o := process(t, s, ".x missing.h()")
	assert.True(t, diag.Is(o.Err, diag.CodeNotFound))
}

func TestSession_IncludePaths(t *testing.T) {
	s := newTestSession(t, WithEnv(func(name string) (string, bool) {
		if name == "EXTRA" {
			return "X:Y", true
		}
		return "", false
	}))

	feed(t, s, `.I "ABC:DEF:G"`, `.I "HAT;SHOE;LACE" ";"`, `.I SEP/PATH/LIT /`, `.I $EXTRA`)
	assert.Equal(t,
		[]string{"ABC", "DEF", "G", "HAT", "SHOE", "LACE", "SEP", "PATH", "LIT", "X", "Y"},
		s.Includes().List())

	o := process(t, s, ".I")
	assert.Equal(t, "ABC\nDEF\nG\nHAT\nSHOE\nLACE\nSEP\nPATH\nLIT\nX\nY", o.Output)
	assert.Equal(t, 0, s.Includes().Len())
}

func TestSession_CompareUnknown(t *testing.T) {
	s := newTestSession(t)

	o := process(t, s, `.compareState "never"`)
	assert.Equal(t, "error [E_NOT_FOUND]: no state stored under 'never': unknown snapshot \"never\"\n", s.Render(o))
}

func TestSession_SyntaxErrorContinues(t *testing.T) {
	s := newTestSession(t)

	o := process(t, s, ".frobnicate")
	assert.True(t, diag.Is(o.Err, diag.CodeSyntax))

	_, err := s.Process(context.Background(), ".q")
	assert.ErrorIs(t, err, ErrQuit)
}

func TestSession_RuntimeErrorRollsBack(t *testing.T) {
	s := newTestSession(t)

	o := process(t, s, "int z = 1 / 0;")
	assert.True(t, diag.Is(o.Err, diag.CodeRuntime))
	_, ok := s.Log().Lookup("z")
	assert.False(t, ok)
}

func TestSession_FrontendWarnings(t *testing.T) {
	s := newTestSession(t)

	o := process(t, s, "#define X 1\n")
	require.Len(t, o.Warnings, 1)
	assert.Equal(t, "warning: prompt:1: ignoring unsupported directive #define\n", s.Render(o))
	assert.Equal(t, 0, s.Log().Len())
}

func TestSession_Stats(t *testing.T) {
	s := newTestSession(t)
	feed(t, s, "int a = 1;", "int a = 2;", ".undo", `.storeState "x"`)

	o := process(t, s, ".stats")
	assert.Contains(t, o.Output, "transactions: 1 live, 1 rolled back")
	assert.Contains(t, o.Output, "entries: 1 (1 visible)")
	assert.Contains(t, o.Output, "snapshots: 1")
}

func TestSession_Digest(t *testing.T) {
	a := newTestSession(t)
	b := newTestSession(t)
	feed(t, a, "int x;", "int y;", ".undo", "int y;")
	feed(t, b, "int x;", "int y;")

	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.NotEqual(t, a.Visible()[1].ID, "")
}

func TestRun(t *testing.T) {
	s := newTestSession(t)
	in := strings.NewReader("namespace A {\n  int foo() {\n    return 3;\n  }\n}\nA::foo()\n.undo\n.q\n1 + 1\n")
	var out bytes.Buffer

	require.NoError(t, s.Run(context.Background(), in, &out, ""))
	assert.Equal(t, "(int) 3\n", out.String())
	assert.Equal(t, 1, s.Log().Len())
}

func TestRun_Prompt(t *testing.T) {
	s := newTestSession(t)
	var out bytes.Buffer

	require.NoError(t, s.Run(context.Background(), strings.NewReader("int f() {\nreturn 1; }\n"), &out, "[txrepl] "))
	assert.Equal(t, "[txrepl] ... [txrepl] ", out.String())
}

func TestRun_StrictStops(t *testing.T) {
	s := newTestSession(t, WithStrict(true))
	var out bytes.Buffer

	err := s.Run(context.Background(), strings.NewReader(".L missing.so\n1\n"), &out, "")
	assert.True(t, IsFatal(err))
	assert.Equal(t, "error [E_NOT_FOUND]: file 'missing.so' not found\n", out.String())
}

func TestComplete(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"1 + 2\n", true},
		{"namespace A {\n", false},
		{"int f() { return 1; }\n", true},
		{"const char *s = \"{\";\n", true},
		{"char c = '(';\n", true},
		{"// {\n", true},
		{"/* open\n", false},
		{"int x = \\\n", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Complete(tt.text), "%q", tt.text)
	}
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	assert.Len(t, id, 36)
	assert.NotEqual(t, id, UUIDv7Generator{}.Generate())
}
