package lite

import (
	"context"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

// execFn runs a statement and reports whether it executed a return.
type execFn func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, bool, error)

type localVar struct {
	slot int
	typ  string
}

type localScope struct {
	vars   map[string]localVar
	parent *localScope
}

// fnState tracks the function body being compiled.
type fnState struct {
	nslots int
	locals *localScope
}

func (p *parser) lookupLocal(name string) (localVar, bool) {
	if p.fn == nil {
		return localVar{}, false
	}
	for s := p.fn.locals; s != nil; s = s.parent {
		if lv, ok := s.vars[name]; ok {
			return lv, true
		}
	}
	return localVar{}, false
}

func (p *parser) pushScope() {
	p.fn.locals = &localScope{vars: make(map[string]localVar), parent: p.fn.locals}
}

func (p *parser) popScope() {
	p.fn.locals = p.fn.locals.parent
}

func (p *parser) addLocal(name, typ string) int {
	slot := p.fn.nslots
	p.fn.nslots++
	if name != "" {
		p.fn.locals.vars[name] = localVar{slot: slot, typ: typ}
	}
	return slot
}

// functionBody compiles "{ ... }" into callable code. Member functions
// receive the object as an extra first argument, which is dropped.
func (p *parser) functionBody(ret string, ptypes, pnames []string, member bool) (ir.Code, error) {
	prevFn, prevReqs := p.fn, p.c.reqs
	fs := &fnState{}
	p.fn = fs
	p.c.reqs = nil
	defer func() { p.fn, p.c.reqs = prevFn, prevReqs }()

	p.pushScope()
	for i, name := range pnames {
		p.addLocal(name, ptypes[i])
	}
	if !p.isPunct("{") {
		return nil, p.errorf("expected '{' to begin function body but found %s", p.peek())
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}

	return ir.CodeFunc(func(ctx context.Context, env ir.Env, args []ir.Value) (ir.Value, error) {
		if member && len(args) == len(ptypes)+1 {
			args = args[1:]
		}
		if len(args) != len(ptypes) {
			return ir.Value{}, diag.Runtime("function expects %d arguments, got %d", len(ptypes), len(args))
		}
		fr := make([]ir.Value, fs.nslots)
		for i, a := range args {
			v, err := convert(env, a, ptypes[i])
			if err != nil {
				return ir.Value{}, err
			}
			fr[i] = v
		}
		v, returned, err := body(ctx, env, fr)
		if err != nil {
			return ir.Value{}, err
		}
		if !returned {
			return ir.Void, nil
		}
		return convert(env, v, ret)
	}), nil
}

func (p *parser) block() (execFn, error) {
	if err := p.expect("{"); err != nil {
		return nil, err
	}
	p.pushScope()
	defer p.popScope()

	var stmts []execFn
	for !p.isPunct("}") {
		if p.peek().kind == tokEOF {
			return nil, p.errorf("expected '}' but found end of input")
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		if s != nil {
			stmts = append(stmts, s)
		}
	}
	p.next()

	return func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, bool, error) {
		for _, s := range stmts {
			v, returned, err := s(ctx, env, fr)
			if err != nil || returned {
				return v, returned, err
			}
		}
		return ir.Void, false, nil
	}, nil
}

func (p *parser) statement() (execFn, error) {
	switch {
	case p.accept(";"):
		return nil, nil
	case p.isPunct("{"):
		return p.block()
	case p.accept("return"):
		return p.returnStmt()
	case p.accept("if"):
		return p.ifStmt()
	case p.accept("while"):
		return p.whileStmt()
	}

	start := p.pos
	typ, ok, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if ok && p.peek().kind == tokIdent && !keywords[p.peek().text] {
		return p.localDecl(typ)
	}
	p.pos = start

	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	ev := e.eval
	return func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, bool, error) {
		_, err := ev(ctx, env, fr)
		return ir.Void, false, err
	}, nil
}

func (p *parser) returnStmt() (execFn, error) {
	if p.accept(";") {
		return func(context.Context, ir.Env, []ir.Value) (ir.Value, bool, error) {
			return ir.Void, true, nil
		}, nil
	}
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}
	ev := e.eval
	return func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, bool, error) {
		v, err := ev(ctx, env, fr)
		return v, err == nil, err
	}, nil
}

func (p *parser) condition() (evalFn, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	return cond.eval, p.expect(")")
}

func (p *parser) ifStmt() (execFn, error) {
	cond, err := p.condition()
	if err != nil {
		return nil, err
	}
	then, err := p.statement()
	if err != nil {
		return nil, err
	}
	var otherwise execFn
	if p.accept("else") {
		if otherwise, err = p.statement(); err != nil {
			return nil, err
		}
	}
	return func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, bool, error) {
		c, err := cond(ctx, env, fr)
		if err != nil {
			return ir.Value{}, false, err
		}
		switch {
		case c.Truthy() && then != nil:
			return then(ctx, env, fr)
		case !c.Truthy() && otherwise != nil:
			return otherwise(ctx, env, fr)
		}
		return ir.Void, false, nil
	}, nil
}

func (p *parser) whileStmt() (execFn, error) {
	cond, err := p.condition()
	if err != nil {
		return nil, err
	}
	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, bool, error) {
		for {
			c, err := cond(ctx, env, fr)
			if err != nil || !c.Truthy() {
				return ir.Void, false, err
			}
			if body == nil {
				continue
			}
			v, returned, err := body(ctx, env, fr)
			if err != nil || returned {
				return v, returned, err
			}
		}
	}, nil
}

func (p *parser) localDecl(typ string) (execFn, error) {
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	init := zeroInit(typ, p.c)
	var e *expr
	switch {
	case p.accept("="):
		if e, err = p.expression(); err != nil {
			return nil, err
		}
	case p.accept("{"):
		if !p.isPunct("}") {
			if e, err = p.expression(); err != nil {
				return nil, err
			}
		}
		if err := p.expect("}"); err != nil {
			return nil, err
		}
	}
	if e != nil {
		ev := e.eval
		if typ == "auto" {
			typ = e.static
		}
		target := typ
		init = func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, error) {
			v, err := ev(ctx, env, fr)
			if err != nil {
				return ir.Value{}, err
			}
			return convert(env, v, target)
		}
	} else if typ == "auto" {
		return nil, p.errorf("declaration of '%s' with type 'auto' requires an initializer", name)
	}
	if err := p.expect(";"); err != nil {
		return nil, err
	}

	// Declared after the initializer so it cannot refer to itself.
	slot := p.addLocal(name, typ)
	return func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, bool, error) {
		v, err := init(ctx, env, fr)
		if err != nil {
			return ir.Value{}, false, err
		}
		fr[slot] = v
		return ir.Void, false, nil
	}, nil
}
