package diag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("loading: %w", NotFound("libmissing.so"))

	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.True(t, Is(err, CodeNotFound))
	assert.False(t, Is(err, CodeSyntax))
	assert.False(t, Is(nil, CodeNotFound))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}

func TestNotFoundNamesLocator(t *testing.T) {
	err := NotFound("dir/with;semi.h")
	assert.Equal(t, "dir/with;semi.h", err.Subject)
	assert.Contains(t, err.Error(), "'dir/with;semi.h'")
}

func TestUnresolvedNamesSymbol(t *testing.T) {
	err := Unresolved("main")
	assert.Equal(t, "symbol 'main' unresolved while linking", err.Error())
}

func TestInvalidDeref(t *testing.T) {
	assert.Equal(t, "null pointer passed to a callee", InvalidDeref(0).Error())
	assert.Contains(t, InvalidDeref(0x10).Error(), "0x10")
	assert.Equal(t, uintptr(0x10), InvalidDeref(0x10).Address)
}

func TestLoadFailedUnwraps(t *testing.T) {
	cause := errors.New("invalid ELF header")
	err := LoadFailed("bad.so", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load 'bad.so': invalid ELF header", err.Error())
}

func TestIsWarning(t *testing.T) {
	assert.True(t, CodeVersionMismatch.IsWarning())
	assert.False(t, CodeNotFound.IsWarning())
	assert.False(t, Code("").IsWarning())
}
