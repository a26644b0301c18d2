package ir

import (
	"context"
	"strings"
)

// EntryKind classifies a symbol entry.
type EntryKind string

const (
	KindNamespace EntryKind = "namespace"
	KindFunction  EntryKind = "function"
	KindVariable  EntryKind = "variable"
	KindType      EntryKind = "type"
	KindUsing     EntryKind = "using"
	KindExport    EntryKind = "export"
)

// ValidEntryKinds defines allowed entry kinds.
var ValidEntryKinds = map[EntryKind]bool{
	KindNamespace: true,
	KindFunction:  true,
	KindVariable:  true,
	KindType:      true,
	KindUsing:     true,
	KindExport:    true,
}

// TxID identifies a transaction. Ids come from the session's logical clock
// and are strictly increasing.
type TxID int64

// SymbolEntry is one externally visible name in the session.
//
// Tx is a back-reference by id only; the transaction log owns the entry.
type SymbolEntry struct {
	ID        EntryID   `json:"id"`
	Kind      EntryKind `json:"kind"`
	Scope     string    `json:"scope"`            // "" for global, else "A::B"
	Name      string    `json:"name"`             // unqualified
	Target    string    `json:"target,omitempty"` // qualified alias target (using)
	Signature string    `json:"signature"`
	Tx        TxID      `json:"tx"`
	Seq       int64     `json:"seq"`
}

// Qualified returns the scope-qualified name of the entry.
func (e SymbolEntry) Qualified() string {
	return Qualify(e.Scope, e.Name)
}

// Shape returns a key describing the entry independent of when it was
// introduced. Two sessions that declared the same things have entries with
// equal shapes even though their ids differ.
func (e SymbolEntry) Shape() string {
	return string(e.Kind) + "|" + e.Qualified() + "|" + e.Target + "|" + e.Signature
}

// String renders the entry for diagnostics, e.g. "function A::foo".
func (e SymbolEntry) String() string {
	if e.Kind == KindUsing {
		return "using " + e.Qualified() + " = " + e.Target
	}
	return string(e.Kind) + " " + e.Qualified()
}

// Qualify joins a scope and a name with "::".
func Qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "::" + name
}

// SplitQualified splits "A::B::c" into ("A::B", "c").
func SplitQualified(q string) (scope, name string) {
	i := strings.LastIndex(q, "::")
	if i < 0 {
		return "", q
	}
	return q[:i], q[i+2:]
}

// Decl is a declaration proposed by the frontend for one fragment. The
// transaction log decides whether it becomes a new SymbolEntry.
type Decl struct {
	Kind      EntryKind
	Scope     string
	Name      string
	Target    string
	Signature string
}

// Qualified returns the scope-qualified name of the declaration.
func (d Decl) Qualified() string {
	return Qualify(d.Scope, d.Name)
}

// Fragment is the result of compiling one input fragment: the declarations
// it proposes and the linked-code artifacts it produced.
type Fragment struct {
	Decls     []Decl
	Artifacts []Artifact

	// Entry, when set, is executed right after the fragment is linked.
	Entry *Artifact

	// Print requests that Entry's result be rendered by the value printer.
	Print bool

	// Warnings are frontend diagnostics that did not prevent compilation.
	Warnings []string
}

// Empty reports whether the fragment carries nothing to commit.
func (f *Fragment) Empty() bool {
	return len(f.Decls) == 0 && len(f.Artifacts) == 0 && f.Entry == nil
}

// Artifact is one unit of linked code. Functions carry Code; variables carry
// Init, evaluated once when the owning transaction is linked.
type Artifact struct {
	Symbol string // qualified symbol name
	Type   string // C++ spelling of the symbol's type
	Code   Code
	Init   Code

	// Requires lists qualified symbols this artifact references. Link verifies
	// that every symbol required by code executed at link time resolves.
	Requires []string
}

// Code is executable linked code.
type Code interface {
	Invoke(ctx context.Context, env Env, args []Value) (Value, error)
}

// CodeFunc adapts a function to the Code interface.
type CodeFunc func(ctx context.Context, env Env, args []Value) (Value, error)

// Invoke calls f.
func (f CodeFunc) Invoke(ctx context.Context, env Env, args []Value) (Value, error) {
	return f(ctx, env, args)
}

// Env is the view of the running process image that linked code executes
// against. The execution bridge implements it.
type Env interface {
	// Lookup returns the current value of a variable or a function value.
	Lookup(symbol string) (Value, error)

	// AddressOf returns a pointer to a variable.
	AddressOf(symbol string) (Value, error)

	// Assign stores v into a variable.
	Assign(symbol string, v Value) error

	// Deref validates ptr and returns the value it points to.
	Deref(ptr Value) (Value, error)

	// Alloc stores v in a new session-owned cell and returns a pointer to it
	// typed as a pointer to elem.
	Alloc(elem string, v Value) (Value, error)

	// Call invokes a function value.
	Call(ctx context.Context, fn Value, args []Value) (Value, error)
}
