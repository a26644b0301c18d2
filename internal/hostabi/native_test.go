//go:build (darwin || linux) && (amd64 || arm64)

package hostabi

import (
	"bytes"
	"runtime"
	"testing"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txrepl/internal/ir"
)

func TestNativeEntryPoints(t *testing.T) {
	h, heap := newHost()
	addr := heap.Alloc(1, ir.IntValue(3))

	check := NativeCheckPointer(h)
	render := NativePrintValue(h)
	require.NotZero(t, check)
	require.NotZero(t, render)
	assert.Same(t, h, currentHost())

	r, _, _ := purego.SyscallN(check, addr)
	assert.Equal(t, uintptr(StatusOK), r)
	r, _, _ = purego.SyscallN(check, 0)
	assert.Equal(t, uintptr(StatusInvalidDeref), r)

	typ := []byte("int\x00")
	buf := make([]byte, 32)
	r, _, _ = purego.SyscallN(render, addr,
		uintptr(unsafe.Pointer(&typ[0])), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	runtime.KeepAlive(typ)
	runtime.KeepAlive(buf)
	assert.Equal(t, uintptr(StatusOK), r)
	assert.Equal(t, "(int) 3", string(buf[:bytes.IndexByte(buf, 0)]))

	r, _, _ = purego.SyscallN(render, 0x10,
		uintptr(unsafe.Pointer(&typ[0])), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	runtime.KeepAlive(typ)
	runtime.KeepAlive(buf)
	assert.Equal(t, uintptr(StatusInvalidDeref), r)
}

func TestGoString(t *testing.T) {
	b := []byte("const char\x00junk")
	assert.Equal(t, "const char", goString(uintptr(unsafe.Pointer(&b[0]))))
	assert.Empty(t, goString(0))
}
