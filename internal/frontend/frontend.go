// Package frontend defines the boundary between the session and the compiler
// that turns source fragments into declarations and linked code.
package frontend

import (
	"context"

	"github.com/roach88/txrepl/internal/ir"
)

// Source is one fragment of input.
type Source struct {
	Text string

	// Origin is "prompt" or the path of the file the text came from.
	Origin string

	// Dir is the directory quoted includes are resolved against first.
	Dir string
}

// Scope is the frontend's read-only view of the symbol directory.
type Scope interface {
	Lookup(qualified string) (ir.SymbolEntry, bool)
}

// Includer resolves and reads an included file.
type Includer interface {
	Include(locator, fromDir string) (path, text string, err error)
}

// Frontend compiles a fragment against the visible declarations.
type Frontend interface {
	Compile(ctx context.Context, src Source, scope Scope) (*ir.Fragment, error)
}
