package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"seq":  int64(2),
		"name": "foo",
		"kind": "function",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"kind":"function","name":"foo","seq":2}`, string(out))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	out, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(out))
}

func TestMarshalCanonical_Escapes(t *testing.T) {
	out, err := MarshalCanonical("say \"hi\"\n\\")
	require.NoError(t, err)
	assert.Equal(t, `"say \"hi\"\n\\"`, string(out))

	out, err = MarshalCanonical("\x01")
	require.NoError(t, err)
	assert.Equal(t, `"\u0001"`, string(out))
}

func TestMarshalCanonical_LineSeparatorLiteral(t *testing.T) {
	out, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(out))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	out, err := MarshalCanonical("e\u0301")
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(out))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(1.5)
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"x": nil})
	assert.Error(t, err)
}

func TestMarshalCanonical_Nested(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"steps": []any{
			map[string]any{"input": ".undo", "ok": true},
		},
		"names": []string{"b", "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"names":["b","a"],"steps":[{"input":".undo","ok":true}]}`, string(out))
}
