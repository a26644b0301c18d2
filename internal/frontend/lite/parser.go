package lite

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

type parser struct {
	c      *compiler
	toks   []token
	pos    int
	origin string

	// fn is the function body being compiled, nil at the top level.
	fn *fnState
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(s string) bool {
	t := p.peek()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) isWord(s string) bool {
	t := p.peek()
	return t.kind == tokIdent && t.text == s
}

func (p *parser) accept(s string) bool {
	if p.isPunct(s) || p.isWord(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(s string) error {
	if p.accept(s) {
		return nil
	}
	return p.errorf("expected '%s' but found %s", s, p.peek())
}

func (p *parser) errorf(format string, args ...any) error {
	return diag.Compile("%s:%d: %s", p.origin, p.peek().line, fmt.Sprintf(format, args...))
}

func (p *parser) ident() (string, error) {
	t := p.peek()
	if t.kind != tokIdent || keywords[t.text] {
		return "", p.errorf("expected identifier but found %s", t)
	}
	p.next()
	return t.text, nil
}

var keywords = map[string]bool{
	"namespace": true, "using": true, "typedef": true, "struct": true,
	"class": true, "extern": true, "return": true, "if": true, "else": true,
	"const": true, "true": true, "false": true, "nullptr": true,
	"operator": true, "static": true, "inline": true, "constexpr": true,
	"public": true, "private": true, "while": true, "for": true,
}

// qualifiedName reads "a", "::a" or "a::b::c" without resolving it.
func (p *parser) qualifiedName() (string, bool) {
	start := p.pos
	name := ""
	if p.isPunct("::") {
		p.next()
		name = "::"
	}
	for {
		t := p.peek()
		if t.kind != tokIdent || keywords[t.text] || builtinWords[t.text] {
			p.pos = start
			return "", false
		}
		p.next()
		name += t.text
		if !(p.isPunct("::") && p.peekAt(1).kind == tokIdent) {
			return name, true
		}
		p.next()
		name += "::"
	}
}

// unit parses a sequence of top-level items. When allowPrint is set, a final
// expression statement may omit its ';' to request printing.
func (p *parser) unit(allowPrint bool) error {
	for p.peek().kind != tokEOF {
		if p.accept(";") {
			continue
		}
		if err := p.topItem(allowPrint); err != nil {
			return err
		}
	}
	return nil
}

func (p *parser) topItem(allowPrint bool) error {
	for p.isWord("static") || p.isWord("inline") || p.isWord("constexpr") {
		p.next()
	}

	switch {
	case p.isWord("namespace"):
		return p.namespaceDecl()
	case p.isWord("using"):
		return p.usingDecl()
	case p.isWord("typedef"):
		return p.typedefDecl()
	case p.isWord("struct"), p.isWord("class"):
		if p.peekAt(2).kind == tokPunct && (p.peekAt(2).text == "{" || p.peekAt(2).text == ";") {
			return p.structDecl()
		}
	case p.isWord("extern"):
		return p.externDecl()
	}

	ok, err := p.declaration(false)
	if ok || err != nil {
		return err
	}
	if len(p.c.ns) > 0 {
		return p.errorf("expected a declaration in namespace %s", p.c.currentScope())
	}
	return p.exprStatement(allowPrint)
}

func (p *parser) namespaceDecl() error {
	p.next()
	name, err := p.ident()
	if err != nil {
		return err
	}
	scope := p.c.currentScope()
	p.c.declare(ir.Decl{
		Kind:      ir.KindNamespace,
		Scope:     scope,
		Name:      name,
		Signature: "namespace " + ir.Qualify(scope, name),
	}, symInfo{})

	if err := p.expect("{"); err != nil {
		return err
	}
	p.c.ns = append(p.c.ns, name)
	defer func() { p.c.ns = p.c.ns[:len(p.c.ns)-1] }()

	for !p.isPunct("}") {
		if p.peek().kind == tokEOF {
			return p.errorf("expected '}' to close namespace %s", name)
		}
		if p.accept(";") {
			continue
		}
		if err := p.topItem(false); err != nil {
			return err
		}
	}
	p.next()
	return nil
}

func (p *parser) usingDecl() error {
	p.next()
	if p.isWord("namespace") {
		return p.errorf("using-directives are not supported")
	}

	// using T = type;
	if p.peek().kind == tokIdent && p.peekAt(1).kind == tokPunct && p.peekAt(1).text == "=" {
		name, _ := p.ident()
		p.next()
		typ, ok, err := p.parseType()
		if err != nil {
			return err
		}
		if !ok {
			return p.errorf("expected a type after 'using %s ='", name)
		}
		p.declareAlias(name, typ)
		return p.expect(";")
	}

	written, ok := p.qualifiedName()
	if !ok {
		return p.errorf("expected a qualified name after 'using'")
	}
	info, found := p.c.lookup(written)
	if !found {
		return p.errorf("no declaration matches 'using %s'", written)
	}
	_, name := ir.SplitQualified(info.q)
	scope := p.c.currentScope()
	p.c.declare(ir.Decl{
		Kind:      ir.KindUsing,
		Scope:     scope,
		Name:      name,
		Target:    info.q,
		Signature: "using " + info.q,
	}, symInfo{target: info.q})
	return p.expect(";")
}

func (p *parser) typedefDecl() error {
	p.next()
	typ, ok, err := p.parseType()
	if err != nil {
		return err
	}
	if !ok {
		return p.errorf("expected a type after 'typedef'")
	}
	name, err := p.ident()
	if err != nil {
		return err
	}
	p.declareAlias(name, typ)
	return p.expect(";")
}

func (p *parser) declareAlias(name, typ string) {
	scope := p.c.currentScope()
	p.c.declare(ir.Decl{
		Kind:      ir.KindType,
		Scope:     scope,
		Name:      name,
		Target:    typ,
		Signature: "using " + ir.Qualify(scope, name) + " = " + typ,
	}, symInfo{typ: typ})
}

func (p *parser) externDecl() error {
	p.next()
	if p.peek().kind == tokString {
		p.next() // linkage spec
		if p.accept("{") {
			for !p.isPunct("}") {
				if p.peek().kind == tokEOF {
					return p.errorf("expected '}' to close extern block")
				}
				if p.accept(";") {
					continue
				}
				if ok, err := p.declaration(true); err != nil {
					return err
				} else if !ok {
					return p.errorf("expected a declaration in extern block")
				}
			}
			p.next()
			return nil
		}
	}
	ok, err := p.declaration(true)
	if err == nil && !ok {
		err = p.errorf("expected a declaration after 'extern'")
	}
	return err
}

// declaration parses "type name ..." if the input starts with one. It
// reports false, consuming nothing, when the input is not a declaration.
func (p *parser) declaration(extern bool) (bool, error) {
	start := p.pos
	typ, ok, err := p.parseType()
	if err != nil {
		return false, err
	}
	if !ok || p.peek().kind != tokIdent || keywords[p.peek().text] {
		p.pos = start
		return false, nil
	}
	name, _ := p.ident()

	if p.isPunct("(") {
		return true, p.function(typ, name, extern)
	}
	return true, p.variable(typ, name, extern)
}

func (p *parser) params() ([]string, []string, error) {
	if err := p.expect("("); err != nil {
		return nil, nil, err
	}
	var types, names []string
	if p.isWord("void") && p.peekAt(1).kind == tokPunct && p.peekAt(1).text == ")" {
		p.next()
	}
	for !p.isPunct(")") {
		if len(types) > 0 {
			if err := p.expect(","); err != nil {
				return nil, nil, err
			}
		}
		t, ok, err := p.parseType()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			return nil, nil, p.errorf("expected a parameter type but found %s", p.peek())
		}
		name := ""
		if p.peek().kind == tokIdent && !keywords[p.peek().text] {
			name, _ = p.ident()
		}
		types = append(types, t)
		names = append(names, name)
	}
	p.next()
	return types, names, nil
}

func (p *parser) function(ret, name string, extern bool) error {
	ptypes, pnames, err := p.params()
	if err != nil {
		return err
	}
	scope := p.c.currentScope()
	q := ir.Qualify(scope, name)
	sig := fmt.Sprintf("%s %s(%s)", ret, q, strings.Join(ptypes, ", "))
	if extern {
		sig = "extern " + sig
	}
	info := symInfo{ret: ret, params: ptypes, typ: fnType(ret, ptypes), extern: extern}
	p.c.declare(ir.Decl{Kind: ir.KindFunction, Scope: scope, Name: name, Signature: sig}, info)

	if p.accept(";") {
		return nil
	}
	if extern {
		return p.errorf("extern function '%s' cannot have a body", q)
	}
	code, err := p.functionBody(ret, ptypes, pnames, false)
	if err != nil {
		return err
	}
	p.c.frag.Artifacts = append(p.c.frag.Artifacts, ir.Artifact{Symbol: q, Type: info.typ, Code: code})
	return nil
}

func (p *parser) variable(typ, name string, extern bool) error {
	scope := p.c.currentScope()
	q := ir.Qualify(scope, name)
	sig := declString(typ, q)
	if extern {
		sig = "extern " + sig
	}

	var init *expr
	reqs, err := p.c.withReqs(func() error {
		switch {
		case p.accept("="):
			e, err := p.expression()
			if err != nil {
				return err
			}
			init = e
		case p.isPunct("{"):
			p.next()
			if !p.isPunct("}") {
				e, err := p.expression()
				if err != nil {
					return err
				}
				init = e
			}
			return p.expect("}")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := p.expect(";"); err != nil {
		return err
	}
	if typ == "auto" && init == nil {
		return p.errorf("declaration of '%s' with type 'auto' requires an initializer", q)
	}

	// The declared name is visible only after its initializer.
	p.c.declare(ir.Decl{Kind: ir.KindVariable, Scope: scope, Name: name, Signature: sig},
		symInfo{typ: typ, extern: extern})
	if extern {
		if init != nil {
			return p.errorf("extern variable '%s' cannot have an initializer", q)
		}
		return nil
	}

	declared := typ
	if typ == "auto" && init.static != "" {
		declared = init.static
	}
	initFn := zeroInit(typ, p.c)
	if init != nil {
		eval := init.eval
		initFn = func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, error) {
			v, err := eval(ctx, env, fr)
			if err != nil {
				return ir.Value{}, err
			}
			return convert(env, v, typ)
		}
	}
	p.c.frag.Artifacts = append(p.c.frag.Artifacts, ir.Artifact{
		Symbol:   q,
		Type:     declared,
		Init:     asCode(initFn),
		Requires: reqs,
	})
	return nil
}

// zeroInit returns the default initializer for a variable of type t.
func zeroInit(t string, c *compiler) evalFn {
	if info, ok := c.lookup(t); ok && info.isStruct() {
		q := info.q
		return func(ctx context.Context, env ir.Env, _ []ir.Value) (ir.Value, error) {
			return buildObject(ctx, env, q)
		}
	}
	return func(_ context.Context, env ir.Env, _ []ir.Value) (ir.Value, error) {
		if enc, ok := stringClasses[t]; ok {
			v := ir.StringValue("", enc)
			v.Type = t
			return v, nil
		}
		return convert(env, ir.IntValue(0), t)
	}
}

func (p *parser) structDecl() error {
	p.next()
	name, err := p.ident()
	if err != nil {
		return err
	}
	scope := p.c.currentScope()
	q := ir.Qualify(scope, name)
	p.c.declare(ir.Decl{Kind: ir.KindType, Scope: scope, Name: name, Signature: "struct " + q}, symInfo{})
	if p.accept(";") {
		return nil
	}
	if err := p.expect("{"); err != nil {
		return err
	}

	for !p.isPunct("}") {
		switch {
		case p.peek().kind == tokEOF:
			return p.errorf("expected '}' to close struct %s", name)
		case p.accept(";"):
		case (p.isWord("public") || p.isWord("private")) && p.peekAt(1).text == ":":
			p.next()
			p.next()
		case p.isWord("operator"):
			if err := p.conversionOperator(q); err != nil {
				return err
			}
		default:
			return p.errorf("unsupported member in struct %s: %s", name, p.peek())
		}
	}
	p.next()
	return p.expect(";")
}

// conversionOperator parses "operator T() const { ... }" inside struct q.
func (p *parser) conversionOperator(q string) error {
	p.next()
	target, ok, err := p.parseType()
	if err != nil {
		return err
	}
	if !ok {
		return p.errorf("expected a conversion type after 'operator'")
	}
	enc, ok := conversionTarget(target)
	if !ok {
		return p.errorf("conversion to '%s' is not supported", target)
	}
	if _, _, err := p.params(); err != nil {
		return err
	}
	p.accept("const")

	name := conversionName(enc)
	member := q + "::" + name
	p.c.declare(ir.Decl{
		Kind:      ir.KindFunction,
		Scope:     q,
		Name:      name,
		Signature: fmt.Sprintf("%s %s()", target, member),
	}, symInfo{ret: target, typ: fnType(target, nil), member: true})

	if p.accept(";") {
		return nil
	}
	code, err := p.functionBody(target, nil, nil, true)
	if err != nil {
		return err
	}
	p.c.frag.Artifacts = append(p.c.frag.Artifacts, ir.Artifact{Symbol: member, Type: fnType(target, nil), Code: code})
	return nil
}

// exprStatement parses a top-level expression statement.
func (p *parser) exprStatement(allowPrint bool) error {
	var e *expr
	reqs, err := p.c.withReqs(func() error {
		var err error
		e, err = p.expression()
		return err
	})
	if err != nil {
		return err
	}
	printed := false
	switch {
	case p.accept(";"):
	case allowPrint && p.peek().kind == tokEOF:
		printed = true
	default:
		return p.errorf("expected ';' after expression but found %s", p.peek())
	}

	p.c.stmts = append(p.c.stmts, e.eval)
	for _, r := range reqs {
		p.c.entryReqs = appendUnique(p.c.entryReqs, r)
	}
	p.c.printLast = printed
	return nil
}

// parseType reads a type spelling if one starts here. It consumes nothing and
// reports false otherwise.
func (p *parser) parseType() (string, bool, error) {
	start := p.pos
	isConst := false
	for p.isWord("const") || p.isWord("volatile") {
		if p.next().text == "const" {
			isConst = true
		}
	}

	var base string
	switch t := p.peek(); {
	case t.kind == tokIdent && builtinWords[t.text]:
		var words []string
		for p.peek().kind == tokIdent && builtinWords[p.peek().text] {
			words = append(words, p.next().text)
		}
		base = normalizeBuiltin(words)
	case p.isWord("struct") || p.isWord("class"):
		p.next()
		name, ok := p.qualifiedName()
		if !ok {
			return "", false, p.errorf("expected a struct name")
		}
		info, found := p.c.lookup(name)
		if !found || !info.isStruct() {
			return "", false, p.errorf("unknown struct '%s'", name)
		}
		base = info.q
	default:
		name, ok := p.qualifiedName()
		if !ok {
			p.pos = start
			return "", false, nil
		}
		if _, ok := stringClasses[name]; ok {
			base = name
			break
		}
		info, found := p.c.lookup(name)
		if !found || info.kind != ir.KindType {
			p.pos = start
			return "", false, nil
		}
		base = info.q
		if !info.isStruct() {
			base = info.typ
		}
	}

	for p.isWord("const") {
		p.next()
		isConst = true
	}
	t := base
	if isConst {
		t = "const " + t
	}
	for p.isPunct("*") {
		p.next()
		t = ir.PointerType(t)
		for p.isWord("const") {
			p.next()
		}
	}
	p.accept("&")
	return t, true, nil
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
