package lite

import (
	"context"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

// evalFn evaluates compiled code. fr holds the local variable slots of the
// enclosing function call and is nil at the top level.
type evalFn func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, error)

func asCode(f evalFn) ir.Code {
	return ir.CodeFunc(func(ctx context.Context, env ir.Env, _ []ir.Value) (ir.Value, error) {
		return f(ctx, env, nil)
	})
}

// expr is a compiled expression.
type expr struct {
	eval   evalFn
	static string // static type when known

	slot   int    // local variable slot, or -1
	global string // qualified variable name when the expression names one
	fn     *symInfo
}

func rvalue(eval evalFn, static string) *expr {
	return &expr{eval: eval, static: static, slot: -1}
}

func constant(v ir.Value) *expr {
	return rvalue(func(context.Context, ir.Env, []ir.Value) (ir.Value, error) {
		return v, nil
	}, v.Type)
}

var binPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, ">": 4, "<=": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

func (p *parser) expression() (*expr, error) {
	lhs, err := p.binary(1)
	if err != nil {
		return nil, err
	}
	if !p.isPunct("=") {
		return lhs, nil
	}
	p.next()
	rhs, err := p.expression()
	if err != nil {
		return nil, err
	}
	return p.assign(lhs, rhs)
}

func (p *parser) binary(minPrec int) (*expr, error) {
	lhs, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		prec, ok := binPrec[t.text]
		if t.kind != tokPunct || !ok || prec < minPrec {
			return lhs, nil
		}
		p.next()
		rhs, err := p.binary(prec + 1)
		if err != nil {
			return nil, err
		}
		lhs = binop(t.text, lhs, rhs)
	}
}

func (p *parser) assign(lhs, rhs *expr) (*expr, error) {
	rv := rhs.eval
	switch {
	case lhs.slot >= 0:
		slot, typ := lhs.slot, lhs.static
		return rvalue(func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, error) {
			v, err := rv(ctx, env, fr)
			if err != nil {
				return ir.Value{}, err
			}
			if v, err = convert(env, v, typ); err != nil {
				return ir.Value{}, err
			}
			fr[slot] = v
			return v, nil
		}, typ), nil
	case lhs.global != "":
		q, typ := lhs.global, lhs.static
		return rvalue(func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, error) {
			v, err := rv(ctx, env, fr)
			if err != nil {
				return ir.Value{}, err
			}
			if v, err = convert(env, v, typ); err != nil {
				return ir.Value{}, err
			}
			return v, env.Assign(q, v)
		}, typ), nil
	default:
		return nil, p.errorf("expression is not assignable")
	}
}

func (p *parser) unary() (*expr, error) {
	t := p.peek()
	if t.kind == tokPunct {
		switch t.text {
		case "-", "+", "!", "~":
			p.next()
			operand, err := p.unary()
			if err != nil {
				return nil, err
			}
			return unop(t.text, operand), nil
		case "*":
			p.next()
			operand, err := p.unary()
			if err != nil {
				return nil, err
			}
			elem, _ := pointee(operand.static)
			ev := operand.eval
			return rvalue(func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, error) {
				v, err := ev(ctx, env, fr)
				if err != nil {
					return ir.Value{}, err
				}
				return env.Deref(v)
			}, elem), nil
		case "&":
			p.next()
			operand, err := p.unary()
			if err != nil {
				return nil, err
			}
			return p.addressOf(operand)
		case "(":
			if e, ok, err := p.cast(); ok || err != nil {
				return e, err
			}
		}
	}
	return p.postfix()
}

func (p *parser) addressOf(operand *expr) (*expr, error) {
	switch {
	case operand.global != "":
		q := operand.global
		return rvalue(func(_ context.Context, env ir.Env, _ []ir.Value) (ir.Value, error) {
			return env.AddressOf(q)
		}, ir.PointerType(operand.static)), nil
	case operand.fn != nil:
		return operand, nil
	case operand.slot >= 0:
		return nil, p.errorf("cannot take the address of a local variable")
	default:
		return nil, p.errorf("cannot take the address of a temporary")
	}
}

// cast parses "(type) operand". It consumes nothing and reports false when
// the parenthesis does not hold a type.
func (p *parser) cast() (*expr, bool, error) {
	start := p.pos
	p.next()
	typ, ok, err := p.parseType()
	if err != nil {
		return nil, false, err
	}
	if !ok || !p.accept(")") {
		p.pos = start
		return nil, false, nil
	}
	operand, err := p.unary()
	if err != nil {
		return nil, true, err
	}
	return castTo(typ, operand), true, nil
}

func castTo(typ string, operand *expr) *expr {
	ev := operand.eval
	return rvalue(func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, error) {
		v, err := ev(ctx, env, fr)
		if err != nil {
			return ir.Value{}, err
		}
		if elem, ok := pointee(typ); ok && isScalar(v) {
			return ir.PointerValue(elem, uintptr(v.Int)), nil
		}
		return convert(env, v, typ)
	}, typ)
}

func (p *parser) postfix() (*expr, error) {
	e, err := p.primary()
	if err != nil {
		return nil, err
	}
	for p.isPunct("(") {
		if e, err = p.call(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (p *parser) call(callee *expr) (*expr, error) {
	p.next()
	var args []*expr
	for !p.isPunct(")") {
		if len(args) > 0 {
			if err := p.expect(","); err != nil {
				return nil, err
			}
		}
		a, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	p.next()

	static := ""
	if fn := callee.fn; fn != nil {
		if len(args) != len(fn.params) {
			return nil, p.errorf("function '%s' expects %d arguments, got %d", fn.q, len(fn.params), len(args))
		}
		static = fn.ret
	}

	cv := callee.eval
	return rvalue(func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, error) {
		fn, err := cv(ctx, env, fr)
		if err != nil {
			return ir.Value{}, err
		}
		argv := make([]ir.Value, len(args))
		for i, a := range args {
			if argv[i], err = a.eval(ctx, env, fr); err != nil {
				return ir.Value{}, err
			}
		}
		return env.Call(ctx, fn, argv)
	}, static), nil
}

func (p *parser) primary() (*expr, error) {
	t := p.peek()
	switch t.kind {
	case tokInt:
		p.next()
		return constant(ir.IntValue(t.num)), nil
	case tokChar:
		p.next()
		return constant(ir.CharValue(rune(t.num), t.enc)), nil
	case tokString:
		p.next()
		return constant(ir.StringValue(t.text, t.enc)), nil
	case tokEOF:
		return nil, p.errorf("expected an expression")
	}

	switch {
	case p.accept("true"):
		return constant(ir.BoolValue(true)), nil
	case p.accept("false"):
		return constant(ir.BoolValue(false)), nil
	case p.accept("nullptr"):
		return constant(ir.NullptrValue()), nil
	case p.accept("("):
		e, err := p.expression()
		if err != nil {
			return nil, err
		}
		return e, p.expect(")")
	case t.kind == tokIdent && builtinWords[t.text]:
		typ, _, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect("("); err != nil {
			return nil, err
		}
		operand, err := p.expression()
		if err != nil {
			return nil, err
		}
		return castTo(typ, operand), p.expect(")")
	}

	name, ok := p.qualifiedName()
	if !ok {
		return nil, p.errorf("expected an expression but found %s", t)
	}
	if lv, ok := p.lookupLocal(name); ok {
		slot := lv.slot
		return &expr{
			eval: func(_ context.Context, _ ir.Env, fr []ir.Value) (ir.Value, error) {
				return fr[slot], nil
			},
			static: lv.typ,
			slot:   slot,
		}, nil
	}

	info, found := p.c.lookup(name)
	if !found {
		return nil, p.errorf("use of undeclared identifier '%s'", name)
	}
	return p.reference(name, info)
}

// reference compiles a use of a directory or fragment-level name.
func (p *parser) reference(name string, info symInfo) (*expr, error) {
	q := info.q
	switch info.kind {
	case ir.KindVariable:
		p.c.require(q)
		typ := info.typ
		e := &expr{static: typ, slot: -1, global: q}
		if info.extern {
			e.eval = func(_ context.Context, env ir.Env, _ []ir.Value) (ir.Value, error) {
				ptr, err := env.AddressOf(q)
				if err != nil {
					return ir.Value{}, err
				}
				return env.Deref(ir.PointerValue(typ, ptr.Addr))
			}
		} else {
			e.eval = func(_ context.Context, env ir.Env, _ []ir.Value) (ir.Value, error) {
				return env.Lookup(q)
			}
		}
		return e, nil

	case ir.KindFunction:
		p.c.require(q)
		typ := info.typ
		fi := info
		return &expr{
			eval: func(_ context.Context, env ir.Env, _ []ir.Value) (ir.Value, error) {
				fn, err := env.Lookup(q)
				if err != nil {
					return ir.Value{}, err
				}
				if fn.Type == "" {
					fn.Type = typ
				}
				return fn, nil
			},
			static: typ,
			slot:   -1,
			fn:     &fi,
		}, nil

	case ir.KindType:
		if !info.isStruct() {
			return nil, p.errorf("unexpected type name '%s' in expression", name)
		}
		closing := map[string]string{"{": "}", "(": ")"}
		open := p.peek().text
		if p.peek().kind != tokPunct || closing[open] == "" {
			return nil, p.errorf("unexpected type name '%s' in expression", name)
		}
		p.next()
		if err := p.expect(closing[open]); err != nil {
			return nil, err
		}
		return rvalue(func(ctx context.Context, env ir.Env, _ []ir.Value) (ir.Value, error) {
			return buildObject(ctx, env, q)
		}, q), nil

	case ir.KindNamespace:
		return nil, p.errorf("'%s' is a namespace, not a value", name)
	default:
		return nil, p.errorf("'%s' cannot be used in an expression", name)
	}
}

func unop(op string, operand *expr) *expr {
	ev := operand.eval
	static := "int"
	if op == "!" {
		static = "bool"
	}
	return rvalue(func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, error) {
		v, err := ev(ctx, env, fr)
		if err != nil {
			return ir.Value{}, err
		}
		if op == "!" {
			return ir.BoolValue(!v.Truthy()), nil
		}
		if !isScalar(v) {
			return ir.Value{}, diag.Runtime("invalid operand '%s' to unary %s", v.Type, op)
		}
		switch op {
		case "-":
			return ir.IntValue(-v.Int), nil
		case "~":
			return ir.IntValue(^v.Int), nil
		default:
			return ir.IntValue(v.Int), nil
		}
	}, static)
}

func binop(op string, lhs, rhs *expr) *expr {
	l, r := lhs.eval, rhs.eval
	switch op {
	case "&&", "||":
		return rvalue(func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, error) {
			a, err := l(ctx, env, fr)
			if err != nil {
				return ir.Value{}, err
			}
			if op == "&&" && !a.Truthy() || op == "||" && a.Truthy() {
				return ir.BoolValue(a.Truthy()), nil
			}
			b, err := r(ctx, env, fr)
			if err != nil {
				return ir.Value{}, err
			}
			return ir.BoolValue(b.Truthy()), nil
		}, "bool")
	}

	static := "int"
	if binPrec[op] == 3 || binPrec[op] == 4 {
		static = "bool"
	}
	return rvalue(func(ctx context.Context, env ir.Env, fr []ir.Value) (ir.Value, error) {
		a, err := l(ctx, env, fr)
		if err != nil {
			return ir.Value{}, err
		}
		b, err := r(ctx, env, fr)
		if err != nil {
			return ir.Value{}, err
		}
		return arith(op, a, b)
	}, static)
}

// address returns the numeric address of a pointer-like operand.
func address(v ir.Value) (uintptr, bool) {
	switch v.Kind {
	case ir.ValPointer:
		return v.Addr, true
	case ir.ValNullptr:
		return 0, true
	case ir.ValInt:
		if v.Int == 0 {
			return 0, true
		}
	}
	return 0, false
}

func arith(op string, a, b ir.Value) (ir.Value, error) {
	if (op == "==" || op == "!=") && (a.Kind == ir.ValPointer || a.Kind == ir.ValNullptr || b.Kind == ir.ValPointer || b.Kind == ir.ValNullptr) {
		x, okA := address(a)
		y, okB := address(b)
		if !okA || !okB {
			return ir.Value{}, diag.Runtime("cannot compare '%s' with '%s'", a.Type, b.Type)
		}
		return ir.BoolValue((x == y) == (op == "==")), nil
	}
	if !isScalar(a) || !isScalar(b) {
		return ir.Value{}, diag.Runtime("invalid operands '%s' and '%s' to binary %s", a.Type, b.Type, op)
	}

	x, y := a.Int, b.Int
	switch op {
	case "+":
		return ir.IntValue(x + y), nil
	case "-":
		return ir.IntValue(x - y), nil
	case "*":
		return ir.IntValue(x * y), nil
	case "/", "%":
		if y == 0 {
			return ir.Value{}, diag.Runtime("division by zero")
		}
		if op == "/" {
			return ir.IntValue(x / y), nil
		}
		return ir.IntValue(x % y), nil
	case "==":
		return ir.BoolValue(x == y), nil
	case "!=":
		return ir.BoolValue(x != y), nil
	case "<":
		return ir.BoolValue(x < y), nil
	case ">":
		return ir.BoolValue(x > y), nil
	case "<=":
		return ir.BoolValue(x <= y), nil
	case ">=":
		return ir.BoolValue(x >= y), nil
	}
	return ir.Value{}, diag.Runtime("unsupported operator %s", op)
}
