//go:build linux || darwin

package bridge

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

var (
	nativeInt = int32(42)
	nativeStr = []byte("native\x00")
)

func TestPagesReadable(t *testing.T) {
	assert.True(t, pagesReadable(uintptr(unsafe.Pointer(&nativeInt)), 4))
	assert.False(t, pagesReadable(0x10, 1))
	assert.False(t, pagesReadable(^uintptr(0), 8))
}

// guardedPages maps two pages and makes the second one unreadable.
func guardedPages(t *testing.T) []byte {
	t.Helper()
	ps := int(pageSize())
	b, err := unix.Mmap(-1, 0, 2*ps, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Munmap(b) })
	require.NoError(t, unix.Mprotect(b[ps:], unix.PROT_NONE))
	return b
}

func TestGuard_ProtNonePage(t *testing.T) {
	b := guardedPages(t)
	g := NewGuard(NewHeap())
	locked := uintptr(unsafe.Pointer(&b[0])) + pageSize()

	assert.True(t, pagesReadable(uintptr(unsafe.Pointer(&b[0])), 1))
	assert.False(t, pagesReadable(locked, 1))

	for _, elem := range []string{"int", "long", "bool", "const char", "int *"} {
		_, err := g.Deref(ir.PointerValue(elem, locked))
		assert.True(t, diag.Is(err, diag.CodeInvalidDeref), elem)
	}
}

func TestGuard_ReadStraddlingUnreadablePage(t *testing.T) {
	b := guardedPages(t)
	g := NewGuard(NewHeap())
	ps := int(pageSize())
	*(*int32)(unsafe.Pointer(&b[ps-4])) = 7
	tail := uintptr(unsafe.Pointer(&b[ps-4]))

	v, err := g.Deref(ir.PointerValue("int", tail))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Int)

	// Eight bytes from four before the boundary run into the locked page.
	_, err = g.Deref(ir.PointerValue("long", tail))
	assert.True(t, diag.Is(err, diag.CodeInvalidDeref))
}

func TestGuard_UnterminatedStringAtUnreadablePage(t *testing.T) {
	b := guardedPages(t)
	g := NewGuard(NewHeap())
	ps := int(pageSize())
	copy(b[ps-3:ps], "abc")

	_, err := g.Deref(ir.PointerValue("const char", uintptr(unsafe.Pointer(&b[ps-3]))))
	assert.True(t, diag.Is(err, diag.CodeInvalidDeref))
}

func TestGuard_NativeMemory(t *testing.T) {
	g := NewGuard(NewHeap())

	v, err := g.Deref(ir.PointerValue("int", uintptr(unsafe.Pointer(&nativeInt))))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int)

	s, err := g.Deref(ir.PointerValue("const char", uintptr(unsafe.Pointer(&nativeStr[0]))))
	require.NoError(t, err)
	assert.Equal(t, "native", s.Str)

	_, err = g.Deref(ir.PointerValue("int", 0x10))
	assert.True(t, diag.Is(err, diag.CodeInvalidDeref))
}
