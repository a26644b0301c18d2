package session

import (
	"errors"
	"fmt"

	"github.com/roach88/txrepl/internal/diag"
)

// ErrQuit is returned by Process after ".q".
var ErrQuit = errors.New("quit")

// FatalError is a reported condition that strict mode escalated. The session
// must not accept further input after returning one.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

// Unwrap returns the escalated condition.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err is a strict-mode escalation.
// Uses errors.As to handle wrapped errors.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// escalated lists the codes strict mode turns into fatal errors.
var escalated = map[diag.Code]bool{
	diag.CodeNotFound:        true,
	diag.CodeLoadFailed:      true,
	diag.CodeVersionMismatch: true,
}

// escalate returns a *FatalError for err in strict mode, or nil when err
// stays a reported condition.
func (s *Session) escalate(err error) error {
	if !s.strict || !escalated[diag.CodeOf(err)] {
		return nil
	}
	return &FatalError{Err: err}
}
