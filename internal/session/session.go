package session

import (
	"log/slog"
	"os"

	"github.com/roach88/txrepl/internal/bridge"
	"github.com/roach88/txrepl/internal/command"
	"github.com/roach88/txrepl/internal/frontend"
	"github.com/roach88/txrepl/internal/frontend/lite"
	"github.com/roach88/txrepl/internal/ir"
	"github.com/roach88/txrepl/internal/printer"
	"github.com/roach88/txrepl/internal/snapshot"
	"github.com/roach88/txrepl/internal/txlog"
)

// Journal persists a session as it runs. It observes every commit and
// rollback and is told about snapshots and library loads.
type Journal interface {
	txlog.Observer
	SaveSnapshot(snap *snapshot.Snapshot) error
	RecordLibrary(lib bridge.Library) error
}

// Session is one interactive session.
type Session struct {
	id string

	log      *txlog.Log
	snaps    *snapshot.Store
	includes *command.IncludePaths
	libs     *bridge.LibrarySet
	linker   *bridge.Linker
	printer  *printer.Printer
	fe       frontend.Frontend
	journal  Journal

	strict   bool
	native   ir.StringEncoding
	libPaths []string
	pchRoots []string
	env      func(string) (string, bool)
	styled   bool
}

// Option configures a Session.
type Option func(*sessionConfig)

type sessionConfig struct {
	ids      IDGenerator
	loader   bridge.Loader
	fe       frontend.Frontend
	journal  Journal
	clock    *txlog.Clock
	strict   bool
	native   ir.StringEncoding
	includes []string
	libPaths []string
	pchRoots []string
	env      func(string) (string, bool)
	styled   bool
}

// WithStrict escalates missing files, load failures and precompiled artifact
// version mismatches to fatal errors.
func WithStrict(strict bool) Option {
	return func(c *sessionConfig) { c.strict = strict }
}

// WithNativeString selects the string representation the printer uses for
// objects with several string conversions.
func WithNativeString(enc ir.StringEncoding) Option {
	return func(c *sessionConfig) { c.native = enc }
}

// WithIncludePaths seeds the include path list.
func WithIncludePaths(paths ...string) Option {
	return func(c *sessionConfig) { c.includes = append(c.includes, paths...) }
}

// WithLibraryPaths adds directories searched by .L after the include paths.
func WithLibraryPaths(paths ...string) Option {
	return func(c *sessionConfig) { c.libPaths = append(c.libPaths, paths...) }
}

// WithPCHRoots adds search roots for precompiled artifacts after the
// include paths.
func WithPCHRoots(roots ...string) Option {
	return func(c *sessionConfig) { c.pchRoots = append(c.pchRoots, roots...) }
}

// WithLoader replaces the platform dynamic loader.
func WithLoader(l bridge.Loader) Option {
	return func(c *sessionConfig) { c.loader = l }
}

// WithFrontend replaces the default lite frontend.
func WithFrontend(fe frontend.Frontend) Option {
	return func(c *sessionConfig) { c.fe = fe }
}

// WithJournal records the session in j.
func WithJournal(j Journal) Option {
	return func(c *sessionConfig) { c.journal = j }
}

// WithClock starts the session's logical clock at a given value.
func WithClock(clock *txlog.Clock) Option {
	return func(c *sessionConfig) { c.clock = clock }
}

// WithIDGenerator replaces the UUIDv7 session id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *sessionConfig) { c.ids = g }
}

// WithEnv replaces the environment lookup used by .I expansion.
func WithEnv(lookup func(string) (string, bool)) Option {
	return func(c *sessionConfig) { c.env = lookup }
}

// WithStyle enables terminal styling of diagnostics.
func WithStyle(styled bool) Option {
	return func(c *sessionConfig) { c.styled = styled }
}

// New creates a session.
func New(opts ...Option) *Session {
	cfg := &sessionConfig{
		ids: UUIDv7Generator{},
		env: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	log := txlog.New(cfg.clock)
	libs := bridge.NewLibrarySet(cfg.loader)
	linker := bridge.NewLinker(log, libs)
	log.Observe(linker)

	s := &Session{
		id:       cfg.ids.Generate(),
		log:      log,
		snaps:    snapshot.NewStore(),
		includes: command.NewIncludePaths(cfg.includes...),
		libs:     libs,
		linker:   linker,
		printer:  printer.New(cfg.native, linker.Guard()),
		fe:       cfg.fe,
		journal:  cfg.journal,
		strict:   cfg.strict,
		native:   cfg.native,
		libPaths: cfg.libPaths,
		pchRoots: cfg.pchRoots,
		env:      cfg.env,
		styled:   cfg.styled,
	}
	if s.fe == nil {
		s.fe = lite.New(includer{s})
	}
	if s.journal != nil {
		log.Observe(s.journal)
	}

	slog.Debug("session created", "id", s.id, "strict", s.strict, "native", s.native)
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Log returns the transaction log.
func (s *Session) Log() *txlog.Log {
	return s.log
}

// Snapshots returns the snapshot store.
func (s *Session) Snapshots() *snapshot.Store {
	return s.snaps
}

// Includes returns the include path list.
func (s *Session) Includes() *command.IncludePaths {
	return s.includes
}

// Libraries returns the loaded-library set.
func (s *Session) Libraries() *bridge.LibrarySet {
	return s.libs
}

// Linker returns the session's linker.
func (s *Session) Linker() *bridge.Linker {
	return s.linker
}

// Printer returns the session's value printer.
func (s *Session) Printer() *printer.Printer {
	return s.printer
}

// Strict reports whether strict mode is on.
func (s *Session) Strict() bool {
	return s.strict
}

// Visible returns the visible symbol entries.
func (s *Session) Visible() []ir.SymbolEntry {
	return s.log.Visible()
}

// Digest hashes the visible directory. Two sessions that end with the same
// visible declarations have equal digests.
func (s *Session) Digest() (string, error) {
	return ir.DirectoryDigest(s.log.Visible())
}

// searchDirs returns the include paths followed by extra.
func (s *Session) searchDirs(extra []string) []string {
	return append(s.includes.List(), extra...)
}
