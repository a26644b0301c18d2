package lite

import (
	"context"
	"strings"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

// builtinWords are the keywords that may spell a fundamental type.
var builtinWords = map[string]bool{
	"void": true, "bool": true, "char": true, "wchar_t": true,
	"char16_t": true, "char32_t": true, "int": true, "short": true,
	"long": true, "signed": true, "unsigned": true, "auto": true,
	"size_t": true,
}

// stringClasses maps standard string classes to the encoding they hold.
var stringClasses = map[string]ir.StringEncoding{
	"std::string":    ir.Narrow,
	"std::wstring":   ir.Wide,
	"std::u16string": ir.UTF16,
	"std::u32string": ir.UTF32,
}

// integerTypes render as plain integers.
var integerTypes = map[string]bool{
	"int": true, "short": true, "long": true, "long long": true,
	"unsigned": true, "unsigned int": true, "unsigned long": true,
	"unsigned long long": true, "unsigned short": true, "signed": true,
	"signed int": true, "size_t": true, "long int": true, "short int": true,
}

// normalizeBuiltin orders a run of builtin keywords the canonical way.
func normalizeBuiltin(words []string) string {
	s := strings.Join(words, " ")
	switch s {
	case "signed", "signed int":
		return "int"
	case "unsigned int":
		return "unsigned"
	case "long int":
		return "long"
	case "short int":
		return "short"
	}
	return s
}

// pointee returns the element type of a pointer type spelling.
func pointee(t string) (string, bool) {
	if !strings.HasSuffix(t, "*") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimSuffix(t, "*")), true
}

// charEncoding reports the encoding of a character type, ignoring const.
func charEncoding(t string) (ir.StringEncoding, bool) {
	return ir.EncodingForCharType(strings.TrimPrefix(t, "const "))
}

// conversionTarget maps the target type of a conversion operator to the
// string encoding it produces.
func conversionTarget(t string) (ir.StringEncoding, bool) {
	if enc, ok := stringClasses[strings.TrimPrefix(t, "const ")]; ok {
		return enc, true
	}
	if elem, ok := pointee(t); ok {
		return charEncoding(elem)
	}
	return ir.Narrow, false
}

// conversionName is the member name under which a struct's conversion to
// enc is recorded, whichever spelling the source used.
func conversionName(enc ir.StringEncoding) string {
	return "operator " + ir.PointerType("const "+enc.CharType())
}

// fnType spells a function type, e.g. "int (int, int)".
func fnType(ret string, params []string) string {
	return ret + " (" + strings.Join(params, ", ") + ")"
}

// declString spells a declarator, e.g. "int x" or "const char *s".
func declString(typ, name string) string {
	if strings.HasSuffix(typ, "*") {
		return typ + name
	}
	return typ + " " + name
}

// convert coerces v to the declared type t.
func convert(env ir.Env, v ir.Value, t string) (ir.Value, error) {
	t = strings.TrimPrefix(t, "const ")
	switch {
	case t == "auto" || t == "":
		return v, nil
	case t == "void":
		return ir.Void, nil
	case t == "bool":
		return ir.BoolValue(v.Truthy()), nil
	}

	if enc, ok := ir.EncodingForCharType(t); ok {
		if !isScalar(v) {
			return ir.Value{}, cannotConvert(v, t)
		}
		return ir.CharValue(rune(v.Int), enc), nil
	}
	if integerTypes[t] {
		if !isScalar(v) {
			return ir.Value{}, cannotConvert(v, t)
		}
		out := ir.IntValue(v.Int)
		out.Type = t
		return out, nil
	}

	if elem, ok := pointee(t); ok {
		switch v.Kind {
		case ir.ValPointer:
			return ir.PointerValue(elem, v.Addr), nil
		case ir.ValNullptr:
			return ir.PointerValue(elem, 0), nil
		case ir.ValInt:
			if v.Int == 0 {
				return ir.PointerValue(elem, 0), nil
			}
		case ir.ValString:
			if enc, ok := charEncoding(elem); ok && enc == v.Enc {
				return env.Alloc(elem, v)
			}
		case ir.ValFunc:
			return v, nil
		}
		return ir.Value{}, cannotConvert(v, t)
	}

	if enc, ok := stringClasses[t]; ok {
		if v.Kind == ir.ValString && v.Enc == enc {
			out := v
			out.Type = t
			return out, nil
		}
		return ir.Value{}, cannotConvert(v, t)
	}

	if v.Kind == ir.ValObject && v.Type == t {
		return v, nil
	}
	if t == "std::nullptr_t" && v.Kind == ir.ValNullptr {
		return v, nil
	}
	return ir.Value{}, cannotConvert(v, t)
}

func isScalar(v ir.Value) bool {
	return v.Kind == ir.ValInt || v.Kind == ir.ValBool || v.Kind == ir.ValChar
}

func cannotConvert(v ir.Value, t string) error {
	return diag.Runtime("cannot convert '%s' to '%s'", v.Type, t)
}

// stringOf extracts the text a conversion operator produced.
func stringOf(env ir.Env, v ir.Value) (string, error) {
	switch v.Kind {
	case ir.ValString:
		return v.Str, nil
	case ir.ValPointer:
		target, err := env.Deref(v)
		if err != nil {
			return "", err
		}
		if target.Kind != ir.ValString {
			return "", diag.Runtime("'%s' does not point to a string", v.Type)
		}
		return target.Str, nil
	default:
		return "", diag.Runtime("conversion produced '%s', not a string", v.Type)
	}
}

// buildObject creates a value of struct type q and applies each conversion
// operator the struct defines, so the printer can pick one.
func buildObject(ctx context.Context, env ir.Env, q string) (ir.Value, error) {
	obj := ir.Value{Kind: ir.ValObject, Type: q}
	for _, enc := range ir.Encodings {
		fn, err := env.Lookup(q + "::" + conversionName(enc))
		if err != nil {
			if diag.Is(err, diag.CodeUnresolved) {
				continue
			}
			return ir.Value{}, err
		}
		res, err := env.Call(ctx, fn, []ir.Value{obj})
		if err != nil {
			return ir.Value{}, err
		}
		s, err := stringOf(env, res)
		if err != nil {
			return ir.Value{}, err
		}
		if obj.Conversions == nil {
			obj.Conversions = make(map[ir.StringEncoding]string)
		}
		obj.Conversions[enc] = s
	}
	return obj, nil
}
