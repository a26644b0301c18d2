package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringValueType(t *testing.T) {
	assert.Equal(t, "const char[4]", StringValue("abc", Narrow).Type)
	assert.Equal(t, "const wchar_t[3]", StringValue("ab", Wide).Type)
	assert.Equal(t, "const char16_t[2]", StringValue("\u00e9", UTF16).Type)
	assert.Equal(t, "const char[3]", StringValue("\u00e9", Narrow).Type, "narrow counts bytes")
}

func TestEncodingPrefixes(t *testing.T) {
	assert.Equal(t, "", Narrow.Prefix())
	assert.Equal(t, "L", Wide.Prefix())
	assert.Equal(t, "u", UTF16.Prefix())
	assert.Equal(t, "U", UTF32.Prefix())
}

func TestParseEncoding(t *testing.T) {
	for _, e := range Encodings {
		got, err := ParseEncoding(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}

	_, err := ParseEncoding("ebcdic")
	assert.Error(t, err)
}

func TestPointerType(t *testing.T) {
	assert.Equal(t, "int *", PointerType("int"))
	assert.Equal(t, "int **", PointerType("int *"))
	assert.Equal(t, "const char *", PointerValue("const char", 0x10).Type)
}

func TestIsCharPointer(t *testing.T) {
	assert.True(t, PointerValue("const char", 1).IsCharPointer())
	assert.True(t, PointerValue("wchar_t", 1).IsCharPointer())
	assert.False(t, PointerValue("int", 1).IsCharPointer())
	assert.False(t, IntValue(1).IsCharPointer())
}

func TestQualify(t *testing.T) {
	assert.Equal(t, "foo", Qualify("", "foo"))
	assert.Equal(t, "A::B::foo", Qualify("A::B", "foo"))

	scope, name := SplitQualified("A::B::foo")
	assert.Equal(t, "A::B", scope)
	assert.Equal(t, "foo", name)

	scope, name = SplitQualified("foo")
	assert.Equal(t, "", scope)
	assert.Equal(t, "foo", name)
}

func TestSymbolEntryString(t *testing.T) {
	fn := SymbolEntry{Kind: KindFunction, Scope: "A", Name: "foo"}
	assert.Equal(t, "function A::foo", fn.String())

	alias := SymbolEntry{Kind: KindUsing, Name: "foo", Target: "A::foo"}
	assert.Equal(t, "using foo = A::foo", alias.String())
}
