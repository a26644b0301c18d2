// Package hostabi exposes the two entry points an embedding host calls into
// a session: a pointer check that must pass before the host dereferences a
// value, and the value printer. Both are available as Go methods and, on
// supported platforms, as C function pointers.
//
// Inside the session the guard is a typed error. At this boundary it becomes
// a panic carrying the *diag.Error, which the host recovers with Recover.
package hostabi

import (
	"errors"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
	"github.com/roach88/txrepl/internal/printer"
	"github.com/roach88/txrepl/internal/session"
)

// Status codes returned by the native entry points.
const (
	StatusOK           = 0
	StatusInvalidDeref = 1
	StatusPrintFailed  = 2
	StatusTruncated    = 3
)

// Host binds the entry points to one session's guard and printer.
type Host struct {
	guard   printer.Dereferencer
	printer *printer.Printer
}

// New creates a host over a printer and the guard it dereferences through.
func New(p *printer.Printer, guard printer.Dereferencer) *Host {
	return &Host{guard: guard, printer: p}
}

// ForSession creates a host over a session's linker guard and printer.
func ForSession(s *session.Session) *Host {
	return New(s.Printer(), s.Linker().Guard())
}

// CheckPointer panics with an E_DEREF *diag.Error when addr must not be
// dereferenced. It never reads addr.
func (h *Host) CheckPointer(addr uintptr) {
	if err := h.guard.Check(addr); err != nil {
		panic(asDiag(err))
	}
}

// PrintValue renders v through the printer. A guard trip while rendering
// panics like CheckPointer; other printer failures are returned.
func (h *Host) PrintValue(v ir.Value) (string, error) {
	s, err := h.printer.Print(v)
	if diag.Is(err, diag.CodeInvalidDeref) {
		panic(asDiag(err))
	}
	return s, err
}

// Recover converts a guard panic raised by this package into *errp. Other
// panics propagate. Use as:
//
//	defer hostabi.Recover(&err)
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	var de *diag.Error
	if err, ok := r.(error); ok && errors.As(err, &de) && de.Code == diag.CodeInvalidDeref {
		*errp = de
		return
	}
	panic(r)
}

// Guarded runs fn, returning a guard trip inside it as an error.
func Guarded(fn func()) (err error) {
	defer Recover(&err)
	fn()
	return nil
}

func asDiag(err error) *diag.Error {
	var de *diag.Error
	if errors.As(err, &de) {
		return de
	}
	return &diag.Error{Code: diag.CodeInvalidDeref, Message: err.Error(), Err: err}
}

func (h *Host) checkStatus(addr uintptr) int {
	if err := Guarded(func() { h.CheckPointer(addr) }); err != nil {
		return StatusInvalidDeref
	}
	return StatusOK
}

// printStatus renders the typ value stored at addr into buf as a
// NUL-terminated string. Output that does not fit is cut short and reported
// as StatusTruncated.
func (h *Host) printStatus(addr uintptr, typ string, buf []byte) int {
	v, err := h.guard.Deref(ir.PointerValue(typ, addr))
	var out string
	if err == nil {
		out, err = h.printer.Print(v)
	}
	switch {
	case diag.Is(err, diag.CodeInvalidDeref):
		return StatusInvalidDeref
	case err != nil:
		return StatusPrintFailed
	case len(buf) == 0:
		return StatusTruncated
	}

	n := copy(buf[:len(buf)-1], out)
	buf[n] = 0
	if n < len(out) {
		return StatusTruncated
	}
	return StatusOK
}
