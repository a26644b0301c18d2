// Package testutil holds deterministic stand-ins for process-level
// dependencies of a session: the dynamic loader and the environment.
package testutil

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
)

// FakeLoader stands in for the platform dynamic loader. It opens any file
// whose base name contains "good" and rejects the rest the way dlopen
// rejects a file that is not a shared object.
//
// Symbols maps symbol names to addresses returned by Sym for every handle.
//
// Thread-safety: safe for concurrent use.
type FakeLoader struct {
	Symbols map[string]uintptr

	mu     sync.Mutex
	opened []string
}

// ErrNotSharedObject is returned by Open for rejected files.
var ErrNotSharedObject = errors.New("invalid ELF header")

// Open returns a handle numbered from 1 in open order.
func (f *FakeLoader) Open(path string) (uintptr, error) {
	if !strings.Contains(filepath.Base(path), "good") {
		return 0, ErrNotSharedObject
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, path)
	return uintptr(len(f.opened)), nil
}

// Sym resolves name from Symbols.
func (f *FakeLoader) Sym(_ uintptr, name string) (uintptr, error) {
	if addr, ok := f.Symbols[name]; ok {
		return addr, nil
	}
	return 0, errors.New("undefined symbol: " + name)
}

// Opened returns the paths opened so far, in order.
func (f *FakeLoader) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

// NoEnv is an environment lookup that finds nothing, so include-path
// expansion does not depend on the test machine.
func NoEnv(string) (string, bool) {
	return "", false
}
