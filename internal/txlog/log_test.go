package txlog

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

func frag(decls ...ir.Decl) *ir.Fragment {
	return &ir.Fragment{Decls: decls}
}

func fn(scope, name string) ir.Decl {
	return ir.Decl{Kind: ir.KindFunction, Scope: scope, Name: name, Signature: "int " + ir.Qualify(scope, name) + "()"}
}

func ns(scope, name string) ir.Decl {
	return ir.Decl{Kind: ir.KindNamespace, Scope: scope, Name: name, Signature: "namespace " + name}
}

func using(target string) ir.Decl {
	_, name := ir.SplitQualified(target)
	return ir.Decl{Kind: ir.KindUsing, Name: name, Target: target, Signature: "using " + target}
}

func commit(t *testing.T, l *Log, f *ir.Fragment) ir.TxID {
	t.Helper()
	id, err := l.Commit(f, "", "prompt")
	require.NoError(t, err)
	return id
}

func TestCommit_IntroducesEntries(t *testing.T) {
	l := New(nil)

	id := commit(t, l, frag(ns("", "A"), fn("A", "foo")))

	tx, ok := l.Get(id)
	require.True(t, ok)
	assert.Len(t, tx.Introduced, 2)
	assert.Empty(t, tx.Shadowed)
	assert.Equal(t, Committed, tx.Status)

	e, ok := l.Lookup("A::foo")
	require.True(t, ok)
	assert.Equal(t, id, e.Tx)
	assert.Equal(t, ir.KindFunction, e.Kind)
}

func TestCommit_InvalidKind(t *testing.T) {
	l := New(nil)

	_, err := l.Commit(frag(ir.Decl{Kind: "macro", Name: "X"}), "", "prompt")
	require.Error(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestCommit_ShadowAndRestore(t *testing.T) {
	l := New(nil)
	commit(t, l, frag(ir.Decl{Kind: ir.KindVariable, Name: "x", Signature: "int x"}))
	before, _ := l.Lookup("x")

	id := commit(t, l, frag(ir.Decl{Kind: ir.KindVariable, Name: "x", Signature: "long x"}))
	tx, _ := l.Get(id)
	assert.Equal(t, []ir.EntryID{before.ID}, tx.Shadowed)

	after, _ := l.Lookup("x")
	assert.Equal(t, "long x", after.Signature)
	assert.Equal(t, 2, l.Directory().Depth("x"))

	require.NoError(t, l.Undo())

	restored, ok := l.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, before, restored, "undo must restore the shadowed entry exactly")
}

func TestCommit_IdempotentUsing(t *testing.T) {
	l := New(nil)
	commit(t, l, frag(ns("", "A"), fn("A", "foo")))

	first := commit(t, l, frag(using("A::foo")))
	second := commit(t, l, frag(using("A::foo")))

	tx1, _ := l.Get(first)
	tx2, _ := l.Get(second)
	assert.Len(t, tx1.Introduced, 1)
	assert.Empty(t, tx2.Introduced, "identical alias introduces nothing")
	assert.Equal(t, 1, l.Directory().Depth("foo"))

	// Rolling back the redundant commit keeps the alias visible.
	require.NoError(t, l.Undo())
	e, ok := l.Lookup("foo")
	require.True(t, ok)
	assert.Equal(t, first, e.Tx)

	require.NoError(t, l.Undo())
	_, ok = l.Lookup("foo")
	assert.False(t, ok)
}

func TestCommit_UsingDifferentTargetShadows(t *testing.T) {
	l := New(nil)
	commit(t, l, frag(ns("", "A"), fn("A", "foo"), ns("", "B"), fn("B", "foo")))
	commit(t, l, frag(using("A::foo")))
	id := commit(t, l, frag(using("B::foo")))

	tx, _ := l.Get(id)
	assert.Len(t, tx.Introduced, 1)
	assert.Len(t, tx.Shadowed, 1)

	e, ok := l.Directory().Resolve("foo")
	require.True(t, ok)
	assert.Equal(t, "B", e.Scope)
}

func TestCommit_NamespaceReopen(t *testing.T) {
	l := New(nil)
	commit(t, l, frag(ns("", "A"), fn("A", "foo")))
	id := commit(t, l, frag(ns("", "A"), fn("A", "bar")))

	tx, _ := l.Get(id)
	assert.Len(t, tx.Introduced, 1, "reopening a visible namespace only adds its members")
	assert.Equal(t, 1, l.Directory().Depth("A"))
}

func TestCommit_RedundantWithinFragment(t *testing.T) {
	l := New(nil)
	commit(t, l, frag(ns("", "A"), fn("A", "foo")))

	id := commit(t, l, frag(using("A::foo"), using("A::foo")))
	tx, _ := l.Get(id)
	assert.Len(t, tx.Introduced, 1)
}

func TestUndo_Empty(t *testing.T) {
	l := New(nil)

	err := l.Undo()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNothingToUndo))
	assert.True(t, diag.Is(err, diag.CodeNothingToUndo))
}

func TestUndo_Symmetry(t *testing.T) {
	l := New(nil)
	commit(t, l, frag(ns("", "A"), fn("A", "foo")))
	before := l.Visible()

	inputs := []*ir.Fragment{
		frag(fn("", "g")),
		frag(using("A::foo")),
		frag(ir.Decl{Kind: ir.KindVariable, Name: "g", Signature: "int g"}),
		frag(ns("", "A"), fn("A", "foo")),
		frag(using("A::foo")),
	}
	for _, f := range inputs {
		commit(t, l, f)
	}
	for range inputs {
		require.NoError(t, l.Undo())
	}

	if diff := cmp.Diff(before, l.Visible()); diff != "" {
		t.Errorf("visible entries differ after undo (-before +after):\n%s", diff)
	}
	assert.Equal(t, 1, l.Len())
}

func TestRollbackTo_Transitive(t *testing.T) {
	l := New(nil)
	a := commit(t, l, frag(fn("", "a")))
	b := commit(t, l, frag(fn("", "b")))
	commit(t, l, frag(fn("", "c")))
	commit(t, l, frag(fn("", "d")))

	n, err := l.RollbackTo(b)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	top, ok := l.Peek()
	require.True(t, ok)
	assert.Equal(t, a, top)

	_, err = l.RollbackTo(b)
	assert.Error(t, err, "rolled back transaction is no longer live")
}

func TestUndoN(t *testing.T) {
	l := New(nil)
	commit(t, l, frag(fn("", "a")))
	commit(t, l, frag(fn("", "b")))

	n, err := l.UndoN(5)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = l.UndoN(1)
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestLive_MostRecentFirst(t *testing.T) {
	l := New(nil)
	a := commit(t, l, frag(fn("", "a")))
	b := commit(t, l, frag(fn("", "b")))

	live := l.Live()
	require.Len(t, live, 2)
	assert.Equal(t, b, live[0].ID)
	assert.Equal(t, a, live[1].ID)
	assert.Less(t, int64(a), int64(b))
}

func TestVisible_OrderedBySeq(t *testing.T) {
	l := New(nil)
	commit(t, l, frag(fn("", "z"), fn("", "a")))
	commit(t, l, frag(fn("", "m")))

	var names []string
	for _, e := range l.Visible() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"z", "a", "m"}, names)
}

func TestRollback_ArenaCompaction(t *testing.T) {
	l := New(nil)
	commit(t, l, frag(fn("", "a")))
	id := commit(t, l, frag(fn("", "b")))
	tx, _ := l.Get(id)

	require.NoError(t, l.Undo())

	_, ok := l.Entry(tx.Introduced[0])
	assert.False(t, ok)
	assert.Equal(t, RolledBack, tx.Status)
	assert.Equal(t, Stats{Live: 1, RolledBack: 1, Entries: 1, Visible: 1, Seq: l.Clock().Current()}, l.Stats())
}

type recorder struct {
	commits   []ir.TxID
	rollbacks []ir.TxID
	entries   int
}

func (r *recorder) OnCommit(tx *Transaction, introduced []ir.SymbolEntry) error {
	r.commits = append(r.commits, tx.ID)
	r.entries += len(introduced)
	return nil
}

func (r *recorder) OnRollback(tx *Transaction) error {
	r.rollbacks = append(r.rollbacks, tx.ID)
	return errors.New("observer errors are logged, not returned")
}

func TestObserver(t *testing.T) {
	l := New(nil)
	r := &recorder{}
	l.Observe(r)

	a := commit(t, l, frag(fn("", "a")))
	b := commit(t, l, frag(fn("", "b"), fn("", "c")))
	_, err := l.RollbackTo(a)
	require.NoError(t, err)

	assert.Equal(t, []ir.TxID{a, b}, r.commits)
	assert.Equal(t, []ir.TxID{b, a}, r.rollbacks)
	assert.Equal(t, 3, r.entries)
}
