package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txrepl/internal/ir"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.False(t, cfg.Strict)
	assert.Empty(t, cfg.IncludePaths)
	assert.Equal(t, "narrow", cfg.NativeString)
	assert.Equal(t, "", cfg.Journal)
	assert.Equal(t, "txrepl> ", cfg.Prompt)

	enc, err := cfg.NativeEncoding()
	require.NoError(t, err)
	assert.Equal(t, ir.Narrow, enc)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := Parse("txrepl.cue", []byte(`
strict: true
include_paths: ["/opt/include", "include"]
native_string: "utf32"
journal: "session.db"
pch: ["std.pch"]
`))
	require.NoError(t, err)

	assert.True(t, cfg.Strict)
	assert.Equal(t, []string{"/opt/include", "include"}, cfg.IncludePaths)
	assert.Equal(t, []string{"std.pch"}, cfg.PCH)
	assert.Equal(t, "session.db", cfg.Journal)
	assert.Equal(t, "txrepl> ", cfg.Prompt)

	enc, err := cfg.NativeEncoding()
	require.NoError(t, err)
	assert.Equal(t, ir.UTF32, enc)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		contain string
	}{
		{"unknown field", `bogus: 1`, "bogus"},
		{"bad encoding", `native_string: "ascii"`, "native_string"},
		{"wrong type", `strict: "yes"`, "strict"},
		{"syntax", `strict: [`, "syntax"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.cue", []byte(tt.src))
			require.Error(t, err)

			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.contain)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txrepl.cue")
	require.NoError(t, os.WriteFile(path, []byte(`prompt: ">> "`+"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ">> ", cfg.Prompt)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "file", cfgErr.Field)
}
