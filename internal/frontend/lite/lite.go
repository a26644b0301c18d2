// Package lite is a small C++ subset frontend.
//
// It compiles namespaces, functions with statement bodies, variables, using
// declarations, type aliases, structs with string conversion operators,
// extern declarations resolved against native libraries, and expression
// statements. Names are resolved at compile time against the fragment's own
// declarations and the visible symbol directory; linked code reaches
// everything else through ir.Env at run time.
package lite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/frontend"
	"github.com/roach88/txrepl/internal/ir"
)

// maxIncludeDepth bounds nested #include.
const maxIncludeDepth = 16

// Frontend compiles fragments of the C++ subset.
type Frontend struct {
	includer frontend.Includer
}

// New creates a frontend. includer resolves #include directives; it may be
// nil, in which case every include is reported missing.
func New(includer frontend.Includer) *Frontend {
	return &Frontend{includer: includer}
}

var _ frontend.Frontend = (*Frontend)(nil)

// Compile compiles one fragment. Expression statements run, in order, from
// the fragment's entry artifact; a final expression without a trailing ';'
// marks the fragment for printing.
func (f *Frontend) Compile(ctx context.Context, src frontend.Source, scope frontend.Scope) (*ir.Fragment, error) {
	c := &compiler{
		fe:        f,
		scope:     scope,
		frag:      &ir.Fragment{},
		pending:   make(map[string]symInfo),
		including: make(map[string]bool),
	}
	if err := c.compileText(src.Text, src.Origin, src.Dir, 0); err != nil {
		return nil, err
	}
	c.finish()
	slog.Debug("fragment compiled",
		"origin", src.Origin,
		"decls", len(c.frag.Decls),
		"artifacts", len(c.frag.Artifacts),
		"entry", c.frag.Entry != nil)
	return c.frag, nil
}

// symInfo is what the compiler knows about a visible name.
type symInfo struct {
	kind   ir.EntryKind
	q      string
	typ    string   // variable type, function type, or aliased type
	ret    string   // function return type
	params []string // function parameter types
	target string   // using-alias target
	extern bool
	member bool
}

func (s symInfo) isStruct() bool {
	return s.kind == ir.KindType && s.typ == ""
}

// infoFromEntry recovers type information from an entry's signature.
func infoFromEntry(e ir.SymbolEntry) symInfo {
	q := e.Qualified()
	info := symInfo{kind: e.Kind, q: q, target: e.Target}
	sig := e.Signature
	if rest, ok := strings.CutPrefix(sig, "extern "); ok {
		info.extern = true
		sig = rest
	}

	switch e.Kind {
	case ir.KindFunction:
		i := strings.Index(sig, " "+q+"(")
		if i < 0 {
			info.ret = "int"
			info.typ = fnType("int", nil)
			return info
		}
		info.ret = sig[:i]
		inner := sig[i+len(q)+2:]
		if j := strings.LastIndex(inner, ")"); j >= 0 {
			inner = inner[:j]
		}
		if inner != "" {
			info.params = strings.Split(inner, ", ")
		}
		info.typ = fnType(info.ret, info.params)
		info.member = e.Scope != "" && strings.HasPrefix(e.Name, "operator ")
	case ir.KindVariable:
		info.typ = strings.TrimSpace(strings.TrimSuffix(sig, q))
	case ir.KindType:
		info.typ = e.Target
	}
	return info
}

// compiler holds the state of one Compile call.
type compiler struct {
	fe    *Frontend
	scope frontend.Scope
	frag  *ir.Fragment

	pending   map[string]symInfo
	ns        []string
	including map[string]bool

	stmts     []evalFn
	entryReqs []string
	printLast bool

	// reqs collects the symbols referenced by the artifact being compiled.
	reqs *[]string
}

func (c *compiler) currentScope() string {
	return strings.Join(c.ns, "::")
}

// declare records a declaration proposed by the fragment.
func (c *compiler) declare(d ir.Decl, info symInfo) {
	c.frag.Decls = append(c.frag.Decls, d)
	info.q = d.Qualified()
	info.kind = d.Kind
	c.pending[info.q] = info
}

// lookupExact finds a qualified name among pending declarations, then in the
// directory, following using-aliases.
func (c *compiler) lookupExact(q string) (symInfo, bool) {
	for hops := 0; hops < 32; hops++ {
		info, ok := c.pending[q]
		if !ok {
			e, found := c.scope.Lookup(q)
			if !found {
				return symInfo{}, false
			}
			info = infoFromEntry(e)
		}
		if info.kind != ir.KindUsing {
			return info, true
		}
		q = info.target
	}
	return symInfo{}, false
}

// lookup resolves a name as written in the current namespace: the innermost
// enclosing namespace first, then outward to the global scope. A leading
// "::" makes the name absolute.
func (c *compiler) lookup(name string) (symInfo, bool) {
	if abs, ok := strings.CutPrefix(name, "::"); ok {
		return c.lookupExact(abs)
	}
	for i := len(c.ns); i >= 0; i-- {
		if info, ok := c.lookupExact(ir.Qualify(strings.Join(c.ns[:i], "::"), name)); ok {
			return info, true
		}
	}
	return symInfo{}, false
}

func (c *compiler) require(q string) {
	if c.reqs != nil {
		*c.reqs = appendUnique(*c.reqs, q)
	}
}

// withReqs compiles with a fresh requirement list and returns it.
func (c *compiler) withReqs(fn func() error) ([]string, error) {
	prev := c.reqs
	reqs := []string{}
	c.reqs = &reqs
	defer func() { c.reqs = prev }()
	err := fn()
	return reqs, err
}

// compileText preprocesses text line by line: directives are handled in
// place and the code between them is parsed as a unit.
func (c *compiler) compileText(text, origin, dir string, depth int) error {
	var chunk strings.Builder
	chunkLine := 1

	flush := func(last bool) error {
		code := chunk.String()
		chunk.Reset()
		if strings.TrimSpace(code) == "" {
			return nil
		}
		toks, err := lex(code, origin, chunkLine)
		if err != nil {
			return err
		}
		p := &parser{c: c, toks: toks, origin: origin}
		return p.unit(depth == 0 && last)
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "#") {
			if chunk.Len() == 0 {
				chunkLine = i + 1
			}
			chunk.WriteString(line)
			chunk.WriteByte('\n')
			continue
		}
		if err := flush(false); err != nil {
			return err
		}
		if err := c.directive(trimmed, origin, dir, i+1, depth); err != nil {
			return err
		}
	}
	return flush(true)
}

func (c *compiler) directive(line, origin, dir string, lineno, depth int) error {
	body := strings.TrimSpace(strings.TrimPrefix(line, "#"))
	word, arg, _ := strings.Cut(body, " ")
	arg = strings.TrimSpace(arg)

	switch word {
	case "pragma", "":
		return nil
	case "include":
		return c.include(arg, origin, dir, lineno, depth)
	default:
		c.frag.Warnings = append(c.frag.Warnings,
			fmt.Sprintf("%s:%d: ignoring unsupported directive #%s", origin, lineno, word))
		return nil
	}
}

func (c *compiler) include(arg, origin, dir string, lineno, depth int) error {
	if len(arg) < 2 {
		return diag.Compile("%s:%d: malformed #include", origin, lineno)
	}
	system := arg[0] == '<'
	locator := strings.Trim(arg, `"<>`)

	if depth >= maxIncludeDepth {
		return diag.Compile("%s:%d: #include nested too deeply", origin, lineno)
	}

	var (
		path, text string
		err        error
	)
	if c.fe.includer == nil {
		err = diag.NotFound(locator)
	} else {
		path, text, err = c.fe.includer.Include(locator, dir)
	}
	if err != nil {
		if system && diag.Is(err, diag.CodeNotFound) {
			// Standard headers have no meaning to this frontend.
			return nil
		}
		return err
	}
	if c.including[path] {
		return nil
	}
	c.including[path] = true
	defer delete(c.including, path)

	slog.Debug("including file", "path", path, "from", origin)
	return c.compileText(text, path, dirOf(path), depth+1)
}

func dirOf(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[:i]
	}
	return "."
}

// finish wraps the fragment's top-level statements into its entry artifact.
func (c *compiler) finish() {
	if len(c.stmts) == 0 {
		return
	}
	stmts := c.stmts
	code := ir.CodeFunc(func(ctx context.Context, env ir.Env, _ []ir.Value) (ir.Value, error) {
		v := ir.Void
		for _, s := range stmts {
			var err error
			if v, err = s(ctx, env, nil); err != nil {
				return ir.Value{}, err
			}
		}
		return v, nil
	})
	c.frag.Entry = &ir.Artifact{Symbol: "__txrepl_entry", Type: "void ()", Code: code, Requires: c.entryReqs}
	c.frag.Print = c.printLast
}
