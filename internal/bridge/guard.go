package bridge

import (
	"strings"
	"unsafe"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

// maxCString bounds how far a native C string is read.
const maxCString = 4096

// Guard validates pointers before they are dereferenced.
type Guard struct {
	heap     *Heap
	readable func(addr, n uintptr) bool
}

// NewGuard creates a guard over heap that asks the operating system about
// every other address.
func NewGuard(heap *Heap) *Guard {
	return &Guard{heap: heap, readable: pagesReadable}
}

// Check reports whether the byte at addr may be dereferenced. It never
// loads from addr itself.
func (g *Guard) Check(addr uintptr) error {
	switch {
	case addr == 0:
		return diag.InvalidDeref(0)
	case g.heap.Contains(addr):
		return nil
	case g.heap.InRange(addr):
		// A freed or misaligned session cell.
		return diag.InvalidDeref(addr)
	case g.readable(addr, 1):
		return nil
	default:
		return diag.InvalidDeref(addr)
	}
}

// Deref validates ptr and returns the value it points to. Session cells
// yield their stored value; native memory is read as the pointee type only
// after every byte of the read has been reported readable.
func (g *Guard) Deref(ptr ir.Value) (ir.Value, error) {
	if ptr.Kind == ir.ValNullptr {
		return ir.Value{}, diag.InvalidDeref(0)
	}
	if ptr.Kind != ir.ValPointer {
		return ir.Value{}, diag.Runtime("cannot dereference a value of type '%s'", ptr.Type)
	}
	if err := g.Check(ptr.Addr); err != nil {
		return ir.Value{}, err
	}
	if v, ok := g.heap.Load(ptr.Addr); ok {
		return v, nil
	}
	return g.readNative(ptr)
}

// nativeSize is the number of bytes read for a native pointee, or 0 when the
// type cannot be read.
func nativeSize(elem string) uintptr {
	switch elem {
	case "char", "bool":
		return 1
	case "int", "unsigned", "unsigned int":
		return 4
	case "long", "long long", "size_t":
		return 8
	}
	if strings.HasSuffix(elem, "*") {
		return unsafe.Sizeof(uintptr(0))
	}
	return 0
}

func (g *Guard) readNative(ptr ir.Value) (ir.Value, error) {
	elem := strings.TrimPrefix(ptr.Elem, "const ")
	n := nativeSize(elem)
	if n == 0 {
		return ir.Value{}, diag.Runtime("cannot read native memory of type '%s'", ptr.Elem)
	}
	if !g.readable(ptr.Addr, n) {
		return ir.Value{}, diag.InvalidDeref(ptr.Addr)
	}
	switch elem {
	case "char":
		s, err := g.cString(ptr.Addr)
		if err != nil {
			return ir.Value{}, err
		}
		return ir.StringValue(s, ir.Narrow), nil
	case "int", "unsigned", "unsigned int":
		return ir.IntValue(int64(*(*int32)(unsafe.Pointer(ptr.Addr)))), nil
	case "long", "long long", "size_t":
		return ir.IntValue(*(*int64)(unsafe.Pointer(ptr.Addr))), nil
	case "bool":
		return ir.BoolValue(*(*byte)(unsafe.Pointer(ptr.Addr)) != 0), nil
	default:
		p := *(*uintptr)(unsafe.Pointer(ptr.Addr))
		inner := strings.TrimSpace(strings.TrimSuffix(elem, "*"))
		return ir.PointerValue(inner, p), nil
	}
}

// cString reads a NUL-terminated string, checking each page it crosses.
func (g *Guard) cString(addr uintptr) (string, error) {
	var b strings.Builder
	for i := uintptr(0); i < maxCString; i++ {
		p := addr + i
		if i > 0 && p%pageSize() == 0 {
			if err := g.Check(p); err != nil {
				return "", err
			}
		}
		c := *(*byte)(unsafe.Pointer(p))
		if c == 0 {
			return b.String(), nil
		}
		b.WriteByte(c)
	}
	return b.String(), nil
}
