// Package diag defines the error kinds the session core reports to the user.
//
// Every recoverable condition carries a Code so the session can render it and
// the CLI can report it in JSON without string matching. Errors are inspected
// with errors.As through wrapping.
package diag

import (
	"errors"
	"fmt"
)

// Code identifies an error category.
type Code string

const (
	// CodeSyntax indicates a malformed dot-command.
	CodeSyntax Code = "E_SYNTAX"

	// CodeNotFound indicates a missing library, file or precompiled artifact.
	CodeNotFound Code = "E_NOT_FOUND"

	// CodeLoadFailed indicates a target that exists but could not be loaded.
	CodeLoadFailed Code = "E_LOAD"

	// CodeUnresolved indicates a symbol that no loaded artifact or library defines.
	CodeUnresolved Code = "E_UNRESOLVED"

	// CodeInvalidDeref indicates a pointer guard trip.
	CodeInvalidDeref Code = "E_DEREF"

	// CodeNothingToUndo indicates .undo on an empty transaction log.
	CodeNothingToUndo Code = "E_NOTHING_TO_UNDO"

	// CodeCompile indicates the frontend rejected a fragment.
	CodeCompile Code = "E_COMPILE"

	// CodeRuntime indicates linked code failed while executing.
	CodeRuntime Code = "E_RUNTIME"

	// CodeVersionMismatch indicates a precompiled artifact from another build.
	CodeVersionMismatch Code = "W_VERSION"
)

// Error is a reported, recoverable session condition.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Subject is the exact locator, symbol or snapshot name the error is about.
	Subject string

	// Address is the offending address for CodeInvalidDeref.
	Address uintptr

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Is reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Syntax creates a CodeSyntax error.
func Syntax(format string, args ...any) *Error {
	return &Error{Code: CodeSyntax, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a CodeNotFound error naming the exact locator.
func NotFound(locator string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("file '%s' not found", locator),
		Subject: locator,
	}
}

// LoadFailed creates a CodeLoadFailed error.
func LoadFailed(locator string, cause error) *Error {
	return &Error{
		Code:    CodeLoadFailed,
		Message: fmt.Sprintf("failed to load '%s'", locator),
		Subject: locator,
		Err:     cause,
	}
}

// Unresolved creates a CodeUnresolved error naming the symbol.
func Unresolved(symbol string) *Error {
	return &Error{
		Code:    CodeUnresolved,
		Message: fmt.Sprintf("symbol '%s' unresolved while linking", symbol),
		Subject: symbol,
	}
}

// InvalidDeref creates a CodeInvalidDeref error for addr.
func InvalidDeref(addr uintptr) *Error {
	msg := fmt.Sprintf("invalid memory pointer 0x%x passed to a callee", addr)
	if addr == 0 {
		msg = "null pointer passed to a callee"
	}
	return &Error{Code: CodeInvalidDeref, Message: msg, Address: addr}
}

// NothingToUndo is returned by .undo on an empty transaction log.
var NothingToUndo = &Error{Code: CodeNothingToUndo, Message: "nothing to undo"}

// Compile creates a CodeCompile error.
func Compile(format string, args ...any) *Error {
	return &Error{Code: CodeCompile, Message: fmt.Sprintf(format, args...)}
}

// Runtime creates a CodeRuntime error.
func Runtime(format string, args ...any) *Error {
	return &Error{Code: CodeRuntime, Message: fmt.Sprintf(format, args...)}
}

// VersionMismatch creates a CodeVersionMismatch warning.
func VersionMismatch(locator, detail string) *Error {
	return &Error{
		Code:    CodeVersionMismatch,
		Message: fmt.Sprintf("precompiled file '%s' was built by a different version (%s)", locator, detail),
		Subject: locator,
	}
}

// IsWarning reports whether the code denotes a warning rather than an error.
func (c Code) IsWarning() bool {
	return len(c) > 0 && c[0] == 'W'
}
