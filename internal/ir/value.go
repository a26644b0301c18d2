package ir

import (
	"fmt"
	"strings"
)

// ValueKind is the runtime category of a Value.
type ValueKind int

const (
	ValVoid ValueKind = iota
	ValInt
	ValBool
	ValChar
	ValString
	ValPointer
	ValNullptr
	ValFunc
	ValObject
)

func (k ValueKind) String() string {
	switch k {
	case ValVoid:
		return "void"
	case ValInt:
		return "int"
	case ValBool:
		return "bool"
	case ValChar:
		return "char"
	case ValString:
		return "string"
	case ValPointer:
		return "pointer"
	case ValNullptr:
		return "nullptr"
	case ValFunc:
		return "function"
	case ValObject:
		return "object"
	default:
		return "unknown"
	}
}

// StringEncoding is the native representation of a string-like value.
type StringEncoding int

const (
	Narrow StringEncoding = iota // char
	Wide                         // wchar_t
	UTF16                        // char16_t
	UTF32                        // char32_t
)

// Encodings lists every string encoding in declaration order.
var Encodings = []StringEncoding{Narrow, Wide, UTF16, UTF32}

// Prefix returns the literal prefix of the encoding.
func (e StringEncoding) Prefix() string {
	switch e {
	case Wide:
		return "L"
	case UTF16:
		return "u"
	case UTF32:
		return "U"
	default:
		return ""
	}
}

// CharType returns the C++ character type of the encoding.
func (e StringEncoding) CharType() string {
	switch e {
	case Wide:
		return "wchar_t"
	case UTF16:
		return "char16_t"
	case UTF32:
		return "char32_t"
	default:
		return "char"
	}
}

// String returns the configuration name of the encoding.
func (e StringEncoding) String() string {
	switch e {
	case Wide:
		return "wide"
	case UTF16:
		return "utf16"
	case UTF32:
		return "utf32"
	default:
		return "narrow"
	}
}

// ParseEncoding parses a configuration name ("narrow", "wide", "utf16", "utf32").
func ParseEncoding(s string) (StringEncoding, error) {
	for _, e := range Encodings {
		if e.String() == s {
			return e, nil
		}
	}
	return Narrow, fmt.Errorf("unknown string encoding %q", s)
}

// EncodingForCharType maps a character type spelling to its encoding.
func EncodingForCharType(t string) (StringEncoding, bool) {
	for _, e := range Encodings {
		if e.CharType() == t {
			return e, true
		}
	}
	return Narrow, false
}

// Value is a runtime value produced by linked code.
type Value struct {
	Kind ValueKind
	Type string // C++ spelling, e.g. "int", "const char *"

	Int  int64
	Str  string
	Enc  StringEncoding
	Addr uintptr
	Elem string // pointee type for pointers

	// Symbol names the function for ValFunc values. Native is the resolved
	// entry address when the function lives in a loaded library.
	Symbol string
	Native uintptr

	// Conversions holds the results of an object's implicit string
	// conversion operators, keyed by target representation.
	Conversions map[StringEncoding]string
}

// Void is the value of expressions with no result.
var Void = Value{Kind: ValVoid, Type: "void"}

// IntValue returns an int value.
func IntValue(n int64) Value {
	return Value{Kind: ValInt, Type: "int", Int: n}
}

// BoolValue returns a bool value.
func BoolValue(b bool) Value {
	v := Value{Kind: ValBool, Type: "bool"}
	if b {
		v.Int = 1
	}
	return v
}

// CharValue returns a char value of the given encoding.
func CharValue(r rune, enc StringEncoding) Value {
	return Value{Kind: ValChar, Type: enc.CharType(), Int: int64(r), Enc: enc}
}

// StringValue returns a string literal value, typed as a const array of the
// encoding's character type including the terminator.
func StringValue(s string, enc StringEncoding) Value {
	n := len([]rune(s)) + 1
	if enc == Narrow {
		n = len(s) + 1
	}
	return Value{
		Kind: ValString,
		Type: fmt.Sprintf("const %s[%d]", enc.CharType(), n),
		Str:  s,
		Enc:  enc,
	}
}

// PointerValue returns a pointer to elem at addr.
func PointerValue(elem string, addr uintptr) Value {
	return Value{Kind: ValPointer, Type: PointerType(elem), Elem: elem, Addr: addr}
}

// NullptrValue returns the nullptr literal.
func NullptrValue() Value {
	return Value{Kind: ValNullptr, Type: "std::nullptr_t"}
}

// FuncValue returns a function value bound to a symbol.
func FuncValue(symbol, typ string) Value {
	return Value{Kind: ValFunc, Type: typ, Symbol: symbol}
}

// PointerType spells a pointer to elem, e.g. "int *" or "const char *".
func PointerType(elem string) string {
	if strings.HasSuffix(elem, "*") {
		return elem + "*"
	}
	return elem + " *"
}

// Truthy reports whether the value converts to true.
func (v Value) Truthy() bool {
	switch v.Kind {
	case ValInt, ValBool, ValChar:
		return v.Int != 0
	case ValPointer:
		return v.Addr != 0
	case ValString, ValFunc, ValObject:
		return true
	default:
		return false
	}
}

// IsCharPointer reports whether the value points at a character type.
func (v Value) IsCharPointer() bool {
	if v.Kind != ValPointer {
		return false
	}
	_, ok := EncodingForCharType(strings.TrimPrefix(v.Elem, "const "))
	return ok
}
