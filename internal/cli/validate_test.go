package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ok.cue", "strict: true\ninclude_paths: [\"inc\"]\n")

	out, err := execute(t, "", "validate", path)
	require.NoError(t, err)
	assert.Equal(t, "✓ "+path+" is valid\n", out)

	out, err = execute(t, "", "validate", path, "--format", "json")
	require.NoError(t, err)
	var result ValidationResult
	decodeData(t, out, &result)
	assert.True(t, result.Valid)
	require.NotNil(t, result.Config)
	assert.True(t, result.Config.Strict)
	assert.Equal(t, []string{"inc"}, result.Config.IncludePaths)
	assert.Equal(t, "narrow", result.Config.NativeString)
	assert.Equal(t, "txrepl> ", result.Config.Prompt)
}

func TestValidate_Invalid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", "native_string: \"ascii\"\n")

	out, err := execute(t, "", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "error [E_CONFIG]: ")
}

func TestValidate_MissingFile(t *testing.T) {
	out, err := execute(t, "", "validate", "does-not-exist.cue")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "file: ")
}
