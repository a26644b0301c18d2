package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txrepl/internal/ir"
	"github.com/roach88/txrepl/internal/session"
	"github.com/roach88/txrepl/internal/testutil"
	"github.com/roach88/txrepl/internal/txlog"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testOptions(id string, extra ...session.Option) []session.Option {
	return append([]session.Option{
		session.WithIDGenerator(session.NewFixedGenerator(id)),
		session.WithLoader(&testutil.FakeLoader{}),
		session.WithEnv(testutil.NoEnv),
	}, extra...)
}

// journaled starts a session recorded into st.
func journaled(t *testing.T, st *Store, id string, extra ...session.Option) *session.Session {
	t.Helper()
	j, err := st.BeginSession(context.Background(), SessionRecord{ID: id})
	require.NoError(t, err)
	return session.New(testOptions(id, append(extra, session.WithJournal(j))...)...)
}

func feed(t *testing.T, s *session.Session, inputs ...string) string {
	t.Helper()
	var b strings.Builder
	for _, in := range inputs {
		o, err := s.Process(context.Background(), in)
		require.NoError(t, err, "input %q", in)
		b.WriteString(s.Render(o))
	}
	return b.String()
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_MigratesFromVersionZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("DROP INDEX idx_shadows_entry")
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 0")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	var n int
	require.NoError(t, s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_shadows_entry'").Scan(&n))
	assert.Equal(t, 1, n)
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestSessions_OrderedByID(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"0002", "0001", "0003"} {
		_, err := st.BeginSession(ctx, SessionRecord{ID: id, Strict: id == "0003"})
		require.NoError(t, err)
	}

	sessions, err := st.ReadSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "0001", sessions[0].ID)
	assert.Equal(t, ir.CoreVersion, sessions[0].CoreVersion)
	assert.Equal(t, "narrow", sessions[0].NativeString)

	latest, err := st.LatestSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0003", latest.ID)
	assert.True(t, latest.Strict)
}

func TestSessions_NotFound(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()

	_, err := st.ReadSession(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = st.LatestSession(ctx)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = st.Replay(ctx, "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestJournal_RecordsCommitsAndRollbacks(t *testing.T) {
	st := createTestStore(t)
	s := journaled(t, st, "s1")
	feed(t, s, "int a = 1;", "int b = 2;", ".undo")

	ctx := context.Background()
	all, err := st.ReadTransactions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "int a = 1;", all[0].Input)
	assert.Equal(t, "prompt", all[0].Origin)
	assert.True(t, all[0].Live())
	assert.Equal(t, StatusRolledBack, all[1].Status)
	assert.Less(t, all[0].Seq, all[1].Seq)

	live, err := st.ReadLiveTransactions(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, all[0].ID, live[0].ID)
	require.Len(t, live[0].Artifacts, 1)
	assert.Equal(t, ArtifactRecord{Symbol: "a", Type: "int"}, live[0].Artifacts[0])
}

func TestJournal_FailedLinkIsRolledBack(t *testing.T) {
	st := createTestStore(t)
	s := journaled(t, st, "s1")
	out := feed(t, s, "int g();", "g()")
	require.Contains(t, out, "E_UNRESOLVED")

	txs, err := st.ReadTransactions(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.True(t, txs[0].Live())
	assert.False(t, txs[1].Live())
	assert.True(t, txs[1].Print)
}

func TestJournal_VisibleMatchesSession(t *testing.T) {
	st := createTestStore(t)
	s := journaled(t, st, "s1")
	feed(t, s,
		"int f() { return 1; }",
		"int f() { return 2; }",
		"namespace N { int g(); }",
		"using N::g;",
		"int h();",
		".undo",
	)

	visible, err := st.ReadVisible(context.Background(), "s1")
	require.NoError(t, err)
	if diff := cmp.Diff(s.Visible(), visible); diff != "" {
		t.Errorf("journaled directory mismatch (-session +journal):\n%s", diff)
	}

	want, err := s.Digest()
	require.NoError(t, err)
	got, err := ir.DirectoryDigest(visible)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestJournal_ShadowUndoneRestoresEntry(t *testing.T) {
	st := createTestStore(t)
	s := journaled(t, st, "s1")
	feed(t, s, "int x = 1;", "int x = 2;", ".undo")

	visible, err := st.ReadVisible(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "x", visible[0].Name)
	assert.Equal(t, s.Visible()[0].ID, visible[0].ID)
}

func TestJournal_Snapshots(t *testing.T) {
	st := createTestStore(t)
	s := journaled(t, st, "s1")
	feed(t, s, "int a;", `.storeState "s"`, "int b;", `.storeState "s"`, `.storeState "t"`)

	snaps, err := st.ReadSnapshots(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "s", snaps[0].Name)
	assert.Equal(t, "t", snaps[1].Name)

	cur, _ := s.Snapshots().Get("s")
	if diff := cmp.Diff(cur.Entries, snaps[0].Entries); diff != "" {
		t.Errorf("snapshot entries mismatch (-session +journal):\n%s", diff)
	}
}

func TestJournal_Libraries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"libgood.so", "libbad.so"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("\x7fELF"), 0o644))
	}

	st := createTestStore(t)
	s := journaled(t, st, "s1", session.WithLibraryPaths(dir))
	feed(t, s, "int a;", ".L good", ".L good", ".L bad")

	libs, err := st.ReadLibraries(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, libs, 2)

	byPath := map[string]LibraryRecord{}
	for _, l := range libs {
		byPath[filepath.Base(l.Path)] = l
	}
	assert.Equal(t, "loaded", byPath["libgood.so"].Status)
	assert.Equal(t, "failed", byPath["libbad.so"].Status)
	assert.Contains(t, byPath["libbad.so"].Reason, "invalid ELF header")
	assert.Positive(t, byPath["libgood.so"].Seq)
}

func TestJournal_WriteTransactionIdempotent(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()
	_, err := st.BeginSession(ctx, SessionRecord{ID: "s1"})
	require.NoError(t, err)

	d := ir.Decl{Kind: ir.KindVariable, Name: "v", Signature: "int"}
	tx := &txlog.Transaction{ID: 1, Input: "int v;", Origin: "prompt"}
	entry := ir.SymbolEntry{ID: ir.MustEntryID(d, 2), Kind: d.Kind, Name: d.Name, Signature: d.Signature, Tx: 1, Seq: 2}

	require.NoError(t, st.WriteTransaction(ctx, "s1", tx, []ir.SymbolEntry{entry}))
	require.NoError(t, st.WriteTransaction(ctx, "s1", tx, []ir.SymbolEntry{entry}))

	txs, err := st.ReadTransactions(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	err = st.MarkRolledBack(ctx, "s1", 99)
	assert.Error(t, err)
}

func TestReplay_ReproducesDirectory(t *testing.T) {
	st := createTestStore(t)
	s := journaled(t, st, "s1")
	feed(t, s,
		"int b = 7;",
		".undo",
		"namespace A { int foo() { return 1; } }",
		"using A::foo;",
		"using A::foo;",
		"int twice(int x) { return 2 * x; }",
		"twice(4)",
		`.storeState "end"`,
		"1/0",
	)

	res, err := st.Replay(context.Background(), "s1", testOptions("replay")...)
	require.NoError(t, err)
	assert.True(t, res.Match(), "expected %s, got %s", res.Expected, res.Actual)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 5, res.Replayed)

	assert.Equal(t, "no differences from \"end\"\n", feed(t, res.Session, `.compareState "end"`))
	assert.Equal(t, "(int) 8\n", feed(t, res.Session, "twice(4)"))
}

func TestReplay_SourceAndLibrary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "libgood.so"), []byte("\x7fELF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.h"), []byte("int triple(int x) { return 3 * x; }\n"), 0o644))

	st := createTestStore(t)
	s := journaled(t, st, "s1", session.WithIncludePaths(dir))
	feed(t, s, ".L good", ".L util.h", "int nine = triple(3);")

	res, err := st.Replay(context.Background(), "s1", testOptions("replay")...)
	require.NoError(t, err)
	assert.True(t, res.Match())
	assert.Len(t, res.Session.Libraries().Libraries(), 1)
	assert.Equal(t, "(int) 9\n", feed(t, res.Session, "nine"))
}

func TestReplay_DetectsDivergence(t *testing.T) {
	st := createTestStore(t)
	ctx := context.Background()
	s := journaled(t, st, "s1")
	feed(t, s, "int a = 1;")

	d := ir.Decl{Kind: ir.KindVariable, Name: "ghost", Signature: "int"}
	tx := &txlog.Transaction{ID: 100, Input: "int ghost = missing;", Origin: "prompt"}
	entry := ir.SymbolEntry{ID: ir.MustEntryID(d, 101), Kind: d.Kind, Name: d.Name, Signature: d.Signature, Tx: 100, Seq: 101}
	require.NoError(t, st.WriteTransaction(ctx, "s1", tx, []ir.SymbolEntry{entry}))

	res, err := st.Replay(ctx, "s1", testOptions("replay")...)
	require.NoError(t, err)
	assert.False(t, res.Match())
	require.Len(t, res.Failed, 1)
	assert.Equal(t, ir.TxID(100), res.Failed[0].Tx)
	assert.NotEqual(t, res.Expected, res.Actual)
}

func TestCorrespondence(t *testing.T) {
	decl := ir.Decl{Kind: ir.KindVariable, Name: "x", Signature: "int"}
	mk := func(seq int64) ir.SymbolEntry {
		return ir.SymbolEntry{ID: ir.MustEntryID(decl, seq), Kind: decl.Kind, Name: decl.Name, Signature: decl.Signature, Seq: seq}
	}
	journal := []ir.SymbolEntry{mk(4), mk(9)}
	replay := []ir.SymbolEntry{mk(2), mk(4)}

	ids := correspondence(journal, replay)
	assert.Equal(t, replay[0].ID, ids[journal[0].ID].ID)
	assert.Equal(t, replay[1].ID, ids[journal[1].ID].ID)
}
