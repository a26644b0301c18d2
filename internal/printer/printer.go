// Package printer renders runtime values as "(type) representation".
//
// Pointers are validated before anything they point to is read; a null or
// unmapped address yields an InvalidDereference error and no output.
package printer

import (
	"fmt"
	"strings"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

// Dereferencer validates a pointer and reads what it points to.
type Dereferencer interface {
	Check(addr uintptr) error
	Deref(ptr ir.Value) (ir.Value, error)
}

// Printer renders values for one session.
type Printer struct {
	native ir.StringEncoding
	deref  Dereferencer
}

// New creates a printer. native selects which of an object's string
// conversions is used.
func New(native ir.StringEncoding, deref Dereferencer) *Printer {
	return &Printer{native: native, deref: deref}
}

// Native returns the configured native string representation.
func (p *Printer) Native() ir.StringEncoding {
	return p.native
}

// ValidateDeref checks ptr and returns the value it points to. It never
// reads memory that failed validation.
func (p *Printer) ValidateDeref(ptr ir.Value) (ir.Value, error) {
	switch ptr.Kind {
	case ir.ValNullptr:
		return ir.Value{}, diag.InvalidDeref(0)
	case ir.ValPointer:
		if err := p.deref.Check(ptr.Addr); err != nil {
			return ir.Value{}, err
		}
		return p.deref.Deref(ptr)
	default:
		return ir.Value{}, diag.Runtime("cannot dereference a value of type '%s'", ptr.Type)
	}
}

// Print renders v. Void values render as the empty string.
func (p *Printer) Print(v ir.Value) (string, error) {
	repr, err := p.repr(v)
	if err != nil || v.Kind == ir.ValVoid {
		return "", err
	}
	return fmt.Sprintf("(%s) %s", v.Type, repr), nil
}

func (p *Printer) repr(v ir.Value) (string, error) {
	switch v.Kind {
	case ir.ValVoid:
		return "", nil
	case ir.ValInt:
		return fmt.Sprintf("%d", v.Int), nil
	case ir.ValBool:
		if v.Int != 0 {
			return "true", nil
		}
		return "false", nil
	case ir.ValChar:
		return quoteChar(rune(v.Int), v.Enc), nil
	case ir.ValString:
		return Quote(v.Str, v.Enc)
	case ir.ValNullptr:
		return "nullptr", nil
	case ir.ValFunc:
		return "Function " + v.Symbol, nil
	case ir.ValPointer:
		return p.pointer(v)
	case ir.ValObject:
		return p.object(v)
	default:
		return "", fmt.Errorf("cannot print value of kind %s", v.Kind)
	}
}

// pointer validates the address first. Character pointers render as the
// string they point to; other pointers render as their address.
func (p *Printer) pointer(v ir.Value) (string, error) {
	if err := p.deref.Check(v.Addr); err != nil {
		return "", err
	}
	if !v.IsCharPointer() {
		return fmt.Sprintf("0x%x", v.Addr), nil
	}
	target, err := p.deref.Deref(v)
	if err != nil {
		return "", err
	}
	enc, _ := ir.EncodingForCharType(strings.TrimPrefix(v.Elem, "const "))
	return Quote(target.Str, enc)
}

// object applies exactly one string conversion: the one matching the native
// representation.
func (p *Printer) object(v ir.Value) (string, error) {
	if s, ok := v.Conversions[p.native]; ok {
		return Quote(s, p.native)
	}
	if v.Addr != 0 {
		return fmt.Sprintf("@0x%x", v.Addr), nil
	}
	return "{}", nil
}
