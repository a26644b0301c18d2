package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

func unmappedGuard() (*Guard, *Heap) {
	h := NewHeap()
	return &Guard{heap: h, readable: func(uintptr, uintptr) bool { return false }}, h
}

func TestGuard_Null(t *testing.T) {
	g, _ := unmappedGuard()

	_, err := g.Deref(ir.PointerValue("int", 0))
	require.Error(t, err)
	assert.True(t, diag.Is(err, diag.CodeInvalidDeref))

	_, err = g.Deref(ir.NullptrValue())
	assert.True(t, diag.Is(err, diag.CodeInvalidDeref))
}

func TestGuard_Unmapped(t *testing.T) {
	g, _ := unmappedGuard()

	_, err := g.Deref(ir.PointerValue("int", 0x10))
	require.Error(t, err)
	var de *diag.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, uintptr(0x10), de.Address)
}

func TestGuard_HeapCells(t *testing.T) {
	g, h := unmappedGuard()
	addr := h.Alloc(1, ir.IntValue(3))

	v, err := g.Deref(ir.PointerValue("int", addr))
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.Int)

	// Inside the heap range but not a cell.
	assert.Error(t, g.Check(addr+1))

	h.Free(1)
	assert.Error(t, g.Check(addr))
}

func TestGuard_NotAPointer(t *testing.T) {
	g, _ := unmappedGuard()

	_, err := g.Deref(ir.IntValue(1))
	assert.True(t, diag.Is(err, diag.CodeRuntime))
}

func TestHeap_AddressesNotReused(t *testing.T) {
	h := NewHeap()
	a := h.Alloc(1, ir.IntValue(1))
	h.Free(1)
	b := h.Alloc(2, ir.IntValue(2))

	assert.NotEqual(t, a, b)
	assert.Equal(t, []uintptr{b}, h.Addrs())
	assert.False(t, h.Store(a, ir.IntValue(9)))
}
