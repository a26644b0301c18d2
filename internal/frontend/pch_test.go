package frontend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFindPCH(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	want := writeFile(t, second, "std.pch", "format_version: 1\n")

	got, err := FindPCH("std.pch", []string{first, second})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = FindPCH(want, nil)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = FindPCH("missing.pch", []string{first, second})
	var de *diag.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, diag.CodeNotFound, de.Code)
	assert.Equal(t, "missing.pch", de.Subject)
}

func TestLoadPCH_Inline(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.pch", "format_version: 1\nbuild_id: "+ir.BuildID+"\ntext: |\n  int answer() { return 42; }\n")

	p, err := LoadPCH(path)
	require.NoError(t, err)
	assert.NoError(t, p.CheckVersion())

	text, origin, err := p.Contents()
	require.NoError(t, err)
	assert.Equal(t, "int answer() { return 42; }\n", text)
	assert.Equal(t, path, origin)
}

func TestLoadPCH_SourceRelativeToManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "prelude.h", "int one() { return 1; }\n")
	path := writeFile(t, dir, "p.pch", "format_version: 1\nbuild_id: "+ir.BuildID+"\nsource: prelude.h\n")

	p, err := LoadPCH(path)
	require.NoError(t, err)
	text, origin, err := p.Contents()
	require.NoError(t, err)
	assert.Equal(t, "int one() { return 1; }\n", text)
	assert.Equal(t, filepath.Join(dir, "prelude.h"), origin)
}

func TestLoadPCH_VersionMismatch(t *testing.T) {
	dir := t.TempDir()

	old := writeFile(t, dir, "old.pch", "format_version: 1\nbuild_id: txrepl-0.0.1\ntext: ''\n")
	p, err := LoadPCH(old)
	require.NoError(t, err)
	err = p.CheckVersion()
	assert.True(t, diag.Is(err, diag.CodeVersionMismatch))
	assert.True(t, diag.CodeOf(err).IsWarning())

	future := writeFile(t, dir, "future.pch", "format_version: 9\nbuild_id: "+ir.BuildID+"\n")
	p, err = LoadPCH(future)
	require.NoError(t, err)
	assert.ErrorContains(t, p.CheckVersion(), "format 9, expected 1")
}

func TestLoadPCH_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadPCH(filepath.Join(dir, "nope.pch"))
	assert.True(t, diag.Is(err, diag.CodeNotFound))

	bad := writeFile(t, dir, "bad.pch", "format_version: [\n")
	_, err = LoadPCH(bad)
	assert.True(t, diag.Is(err, diag.CodeLoadFailed))

	unversioned := writeFile(t, dir, "none.pch", "text: x\n")
	_, err = LoadPCH(unversioned)
	assert.True(t, diag.Is(err, diag.CodeLoadFailed))

	missingSource := writeFile(t, dir, "ms.pch", "format_version: 1\nsource: gone.h\n")
	p, err := LoadPCH(missingSource)
	require.NoError(t, err)
	_, _, err = p.Contents()
	assert.True(t, diag.Is(err, diag.CodeNotFound))
}

func TestLoadPCH_UnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "typo.pch", "format_version: 1\nsourc: prelude.h\n")

	_, err := LoadPCH(path)
	require.Error(t, err)
	assert.True(t, diag.Is(err, diag.CodeLoadFailed))
	assert.Contains(t, err.Error(), "sourc")

	empty := writeFile(t, dir, "empty.pch", "")
	_, err = LoadPCH(empty)
	assert.True(t, diag.Is(err, diag.CodeLoadFailed))
}
