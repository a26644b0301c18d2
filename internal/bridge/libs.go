package bridge

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

// LoadStatus is the outcome of loading a locator.
type LoadStatus string

const (
	Loaded LoadStatus = "loaded"
	Failed LoadStatus = "failed"
)

// Library is one entry of the loaded-library set.
type Library struct {
	Path   string     `json:"path"`
	Status LoadStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`

	handle uintptr
}

// Loader opens native libraries and looks up their symbols.
type Loader interface {
	Open(path string) (uintptr, error)
	Sym(handle uintptr, name string) (uintptr, error)
}

// LibrarySet tracks every library the session tried to load, keyed by
// resolved path, and every source file loaded into a live transaction.
//
// Libraries are never unloaded. A failed load is remembered with its reason
// and retried on the next request; a successful one makes later requests for
// the same path no-ops.
type LibrarySet struct {
	loader Loader
	libs   map[string]*Library
	order  []string // successful loads, oldest first

	sources map[string]ir.TxID
}

// NewLibrarySet creates an empty set using loader. A nil loader uses the
// platform dynamic loader.
func NewLibrarySet(loader Loader) *LibrarySet {
	if loader == nil {
		loader = systemLoader{}
	}
	return &LibrarySet{
		loader:  loader,
		libs:    make(map[string]*Library),
		sources: make(map[string]ir.TxID),
	}
}

// Load opens the library at path. It reports already=true when the path was
// loaded before, in which case nothing is re-linked.
func (s *LibrarySet) Load(path string) (lib Library, already bool, err error) {
	if l, ok := s.libs[path]; ok && l.Status == Loaded {
		return *l, true, nil
	}

	h, err := s.loader.Open(path)
	if err != nil {
		l := &Library{Path: path, Status: Failed, Reason: err.Error()}
		s.libs[path] = l
		slog.Debug("library load failed", "path", path, "error", err)
		return *l, false, diag.LoadFailed(path, err)
	}

	l := &Library{Path: path, Status: Loaded, handle: h}
	s.libs[path] = l
	s.order = append(s.order, path)
	slog.Debug("library loaded", "path", path)
	return *l, false, nil
}

// Get returns the entry for a resolved path.
func (s *LibrarySet) Get(path string) (Library, bool) {
	l, ok := s.libs[path]
	if !ok {
		return Library{}, false
	}
	return *l, true
}

// Libraries returns every entry, successful loads most recent first and
// failed ones after them by path.
func (s *LibrarySet) Libraries() []Library {
	out := make([]Library, 0, len(s.libs))
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, *s.libs[s.order[i]])
	}
	var failed []string
	for path, l := range s.libs {
		if l.Status == Failed {
			failed = append(failed, path)
		}
	}
	slices.Sort(failed)
	for _, path := range failed {
		out = append(out, *s.libs[path])
	}
	return out
}

// errNoSymbol is returned by lookup when no loaded library exports a name.
var errNoSymbol = errors.New("symbol not exported by any loaded library")

// lookup finds name in loaded libraries, most recently loaded first.
func (s *LibrarySet) lookup(name string) (uintptr, string, error) {
	for i := len(s.order) - 1; i >= 0; i-- {
		l := s.libs[s.order[i]]
		if addr, err := s.loader.Sym(l.handle, name); err == nil && addr != 0 {
			return addr, l.Path, nil
		}
	}
	return 0, "", errNoSymbol
}

// AddSource records that a source file was compiled into tx.
func (s *LibrarySet) AddSource(path string, tx ir.TxID) {
	s.sources[path] = tx
}

// Source reports the transaction that loaded a source file.
func (s *LibrarySet) Source(path string) (ir.TxID, bool) {
	tx, ok := s.sources[path]
	return tx, ok
}

// ForgetTx drops the source files owned by tx so they can be loaded again.
func (s *LibrarySet) ForgetTx(tx ir.TxID) {
	for path, owner := range s.sources {
		if owner == tx {
			delete(s.sources, path)
		}
	}
}
