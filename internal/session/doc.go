// Package session runs the read-compile-link-execute loop of one txrepl
// session.
//
// A Session owns all session-scoped state: the transaction log and the symbol
// directory derived from it, the snapshot store, the include path list, the
// loaded-library set, the linker and the value printer. Nothing is global, so
// several sessions can live in one process.
//
// Processing is single-threaded. Each call to Process handles one fragment or
// one dot-command to completion. Reported conditions (syntax errors, missing
// files, unresolved symbols, invalid dereferences, an empty undo log) come
// back in the Outcome and the session continues. Only .q (ErrQuit) and strict
// mode escalation (*FatalError) are returned as errors.
package session
