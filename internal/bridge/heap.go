package bridge

import (
	"slices"

	"github.com/roach88/txrepl/internal/ir"
)

// Synthetic addresses for session cells. They are spaced so that pointer
// arithmetic mistakes land between cells and fail the guard.
const (
	heapBase = uintptr(0x10000000)
	cellStep = uintptr(16)
)

// cell is one session-owned storage slot.
type cell struct {
	owner ir.TxID
	value ir.Value
}

// Heap stores the values of session variables and literals that linked code
// takes the address of. Cells belong to the transaction that allocated them
// and are freed when it is rolled back, which invalidates every pointer to
// them.
type Heap struct {
	next  uintptr
	cells map[uintptr]*cell
}

// NewHeap creates an empty heap.
func NewHeap() *Heap {
	return &Heap{next: heapBase, cells: make(map[uintptr]*cell)}
}

// Alloc stores v in a new cell owned by tx and returns its address.
// Addresses are never reused.
func (h *Heap) Alloc(tx ir.TxID, v ir.Value) uintptr {
	addr := h.next
	h.next += cellStep
	h.cells[addr] = &cell{owner: tx, value: v}
	return addr
}

// Load returns the value stored at addr.
func (h *Heap) Load(addr uintptr) (ir.Value, bool) {
	c, ok := h.cells[addr]
	if !ok {
		return ir.Value{}, false
	}
	return c.value, true
}

// Store replaces the value at addr. It reports false for a freed or unknown
// address.
func (h *Heap) Store(addr uintptr, v ir.Value) bool {
	c, ok := h.cells[addr]
	if !ok {
		return false
	}
	c.value = v
	return true
}

// Contains reports whether addr is a live cell.
func (h *Heap) Contains(addr uintptr) bool {
	_, ok := h.cells[addr]
	return ok
}

// InRange reports whether addr lies in the heap's address range, live or not.
func (h *Heap) InRange(addr uintptr) bool {
	return addr >= heapBase && addr < h.next
}

// Free releases every cell owned by tx and returns how many were freed.
func (h *Heap) Free(tx ir.TxID) int {
	n := 0
	for addr, c := range h.cells {
		if c.owner == tx {
			delete(h.cells, addr)
			n++
		}
	}
	return n
}

// Len returns the number of live cells.
func (h *Heap) Len() int {
	return len(h.cells)
}

// Addrs returns the live cell addresses in ascending order.
func (h *Heap) Addrs() []uintptr {
	out := make([]uintptr, 0, len(h.cells))
	for addr := range h.cells {
		out = append(out, addr)
	}
	slices.Sort(out)
	return out
}
