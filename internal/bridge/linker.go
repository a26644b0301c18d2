package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
	"github.com/roach88/txrepl/internal/txlog"
)

// Symbol is a resolved name.
type Symbol struct {
	Name string

	// Tx and Artifact are set when the symbol is defined by a live
	// transaction.
	Tx       ir.TxID
	Artifact *ir.Artifact

	// Library and Addr are set when a loaded native library exports it.
	Library string
	Addr    uintptr
}

// Native reports whether the symbol lives in a native library.
func (s Symbol) Native() bool {
	return s.Artifact == nil
}

type cellKey struct {
	tx     ir.TxID
	symbol string
}

// Linker resolves and runs linked code for one session.
type Linker struct {
	log   *txlog.Log
	libs  *LibrarySet
	heap  *Heap
	guard *Guard

	vars map[cellKey]uintptr

	// owner is the transaction whose code is running; cells allocated while
	// it runs are freed with it.
	owner ir.TxID
}

// NewLinker creates a linker over log's live transactions and libs.
func NewLinker(log *txlog.Log, libs *LibrarySet) *Linker {
	heap := NewHeap()
	return &Linker{
		log:   log,
		libs:  libs,
		heap:  heap,
		guard: NewGuard(heap),
		vars:  make(map[cellKey]uintptr),
	}
}

// Guard returns the linker's pointer guard.
func (l *Linker) Guard() *Guard {
	return l.guard
}

// Heap returns the session heap.
func (l *Linker) Heap() *Heap {
	return l.heap
}

// Libraries returns the loaded-library set.
func (l *Linker) Libraries() *LibrarySet {
	return l.libs
}

// Resolve finds the definition of a symbol: first among the artifacts of
// live transactions, most recent first, then among loaded libraries, most
// recently loaded first. Declarations without code do not define a symbol.
func (l *Linker) Resolve(name string) (Symbol, error) {
	for _, tx := range l.log.Live() {
		for i := len(tx.Artifacts) - 1; i >= 0; i-- {
			a := &tx.Artifacts[i]
			if a.Symbol == name && (a.Code != nil || a.Init != nil) {
				return Symbol{Name: name, Tx: tx.ID, Artifact: a}, nil
			}
		}
	}
	if addr, lib, err := l.libs.lookup(cSymbol(name)); err == nil {
		return Symbol{Name: name, Library: lib, Addr: addr}, nil
	}
	return Symbol{}, diag.Unresolved(name)
}

// cSymbol maps a qualified name to the name a C library would export.
func cSymbol(name string) string {
	return strings.TrimPrefix(name, "::")
}

// Link verifies that every symbol needed by code executed at link time
// resolves, then initializes the transaction's variables in order. An error
// leaves the caller to roll the transaction back.
func (l *Linker) Link(ctx context.Context, tx *txlog.Transaction) error {
	if err := l.checkRequires(tx); err != nil {
		return err
	}

	prev := l.owner
	l.owner = tx.ID
	defer func() { l.owner = prev }()

	for i := range tx.Artifacts {
		a := &tx.Artifacts[i]
		if a.Init == nil {
			continue
		}
		v, err := a.Init.Invoke(ctx, l, nil)
		if err != nil {
			return fmt.Errorf("initializing %s: %w", a.Symbol, err)
		}
		l.vars[cellKey{tx.ID, a.Symbol}] = l.heap.Alloc(tx.ID, v)
	}

	slog.Debug("transaction linked", "tx", tx.ID, "artifacts", len(tx.Artifacts))
	return nil
}

func (l *Linker) checkRequires(tx *txlog.Transaction) error {
	var required []string
	for _, a := range tx.Artifacts {
		if a.Init != nil {
			required = append(required, a.Requires...)
		}
	}
	if tx.Entry != nil {
		required = append(required, tx.Entry.Requires...)
	}
	for _, name := range required {
		if _, err := l.Resolve(name); err != nil {
			return err
		}
	}
	return nil
}

// Run executes the transaction's entry artifact. A transaction without one
// yields Void.
func (l *Linker) Run(ctx context.Context, tx *txlog.Transaction) (ir.Value, error) {
	if tx.Entry == nil || tx.Entry.Code == nil {
		return ir.Void, nil
	}
	prev := l.owner
	l.owner = tx.ID
	defer func() { l.owner = prev }()

	return tx.Entry.Code.Invoke(ctx, l, nil)
}

// OnCommit implements txlog.Observer.
func (l *Linker) OnCommit(*txlog.Transaction, []ir.SymbolEntry) error {
	return nil
}

// OnRollback frees the transaction's cells and forgets the source files it
// loaded. Pointers into freed cells fail the guard from then on.
func (l *Linker) OnRollback(tx *txlog.Transaction) error {
	for k := range l.vars {
		if k.tx == tx.ID {
			delete(l.vars, k)
		}
	}
	freed := l.heap.Free(tx.ID)
	l.libs.ForgetTx(tx.ID)
	slog.Debug("transaction unlinked", "tx", tx.ID, "cells", freed)
	return nil
}

// Lookup implements ir.Env.
func (l *Linker) Lookup(symbol string) (ir.Value, error) {
	sym, err := l.Resolve(symbol)
	if err != nil {
		return ir.Value{}, err
	}
	if sym.Native() {
		fn := ir.FuncValue(symbol, "")
		fn.Native = sym.Addr
		return fn, nil
	}
	if sym.Artifact.Init != nil {
		addr, ok := l.vars[cellKey{sym.Tx, symbol}]
		if !ok {
			return ir.Value{}, diag.Runtime("variable '%s' used before initialization", symbol)
		}
		v, _ := l.heap.Load(addr)
		return v, nil
	}
	return ir.FuncValue(symbol, sym.Artifact.Type), nil
}

// AddressOf implements ir.Env.
func (l *Linker) AddressOf(symbol string) (ir.Value, error) {
	sym, err := l.Resolve(symbol)
	if err != nil {
		return ir.Value{}, err
	}
	if sym.Native() {
		return ir.PointerValue("void", sym.Addr), nil
	}
	if sym.Artifact.Init == nil {
		return ir.FuncValue(symbol, sym.Artifact.Type), nil
	}
	addr, ok := l.vars[cellKey{sym.Tx, symbol}]
	if !ok {
		return ir.Value{}, diag.Runtime("variable '%s' used before initialization", symbol)
	}
	return ir.PointerValue(sym.Artifact.Type, addr), nil
}

// Assign implements ir.Env.
func (l *Linker) Assign(symbol string, v ir.Value) error {
	sym, err := l.Resolve(symbol)
	if err != nil {
		return err
	}
	if sym.Native() || sym.Artifact.Init == nil {
		return diag.Runtime("'%s' is not assignable", symbol)
	}
	addr, ok := l.vars[cellKey{sym.Tx, symbol}]
	if !ok || !l.heap.Store(addr, v) {
		return diag.Runtime("variable '%s' used before initialization", symbol)
	}
	return nil
}

// Deref implements ir.Env.
func (l *Linker) Deref(ptr ir.Value) (ir.Value, error) {
	return l.guard.Deref(ptr)
}

// Alloc implements ir.Env.
func (l *Linker) Alloc(elem string, v ir.Value) (ir.Value, error) {
	return ir.PointerValue(elem, l.heap.Alloc(l.owner, v)), nil
}

// Call implements ir.Env. Functions defined by live transactions run their
// linked code; native functions are called with their arguments passed as
// machine words.
func (l *Linker) Call(ctx context.Context, fn ir.Value, args []ir.Value) (ir.Value, error) {
	if fn.Kind != ir.ValFunc {
		return ir.Value{}, diag.Runtime("called object of type '%s' is not a function", fn.Type)
	}
	if fn.Native != 0 {
		return l.callNative(fn, args)
	}

	sym, err := l.Resolve(fn.Symbol)
	if err != nil {
		return ir.Value{}, err
	}
	if sym.Native() {
		fn.Native = sym.Addr
		return l.callNative(fn, args)
	}
	if sym.Artifact.Code == nil {
		return ir.Value{}, diag.Runtime("'%s' is not a function", fn.Symbol)
	}
	return sym.Artifact.Code.Invoke(ctx, l, args)
}

func (l *Linker) callNative(fn ir.Value, args []ir.Value) (ir.Value, error) {
	words := make([]uintptr, len(args))
	for i, a := range args {
		switch a.Kind {
		case ir.ValInt, ir.ValBool, ir.ValChar:
			words[i] = uintptr(a.Int)
		case ir.ValPointer:
			if l.heap.Contains(a.Addr) {
				return ir.Value{}, diag.Runtime("cannot pass session pointer to native function '%s'", fn.Symbol)
			}
			words[i] = a.Addr
		case ir.ValNullptr:
			words[i] = 0
		default:
			return ir.Value{}, diag.Runtime("cannot pass '%s' to native function '%s'", a.Type, fn.Symbol)
		}
	}

	r, err := callNative(fn.Native, words)
	if err != nil {
		return ir.Value{}, diag.Runtime("calling '%s': %v", fn.Symbol, err)
	}
	return nativeResult(ReturnType(fn.Type), r), nil
}

// ReturnType extracts the return type from a function type spelling such as
// "int (int, int)". An empty spelling is treated as int.
func ReturnType(fnType string) string {
	if i := strings.Index(fnType, "("); i > 0 {
		return strings.TrimSpace(fnType[:i])
	}
	if fnType == "" {
		return "int"
	}
	return strings.TrimSpace(fnType)
}

func nativeResult(ret string, r uintptr) ir.Value {
	switch {
	case ret == "void":
		return ir.Void
	case ret == "bool":
		return ir.BoolValue(r&0xff != 0)
	case ret == "char":
		return ir.CharValue(rune(byte(r)), ir.Narrow)
	case strings.HasSuffix(ret, "*"):
		return ir.PointerValue(strings.TrimSpace(strings.TrimSuffix(ret, "*")), r)
	case ret == "long" || ret == "long long" || ret == "size_t":
		v := ir.IntValue(int64(r))
		v.Type = ret
		return v
	default:
		return ir.IntValue(int64(int32(r)))
	}
}
