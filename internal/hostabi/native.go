//go:build (darwin || linux) && (amd64 || arm64)

package hostabi

import (
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// maxTypeName bounds how far a type name passed by the host is read.
const maxTypeName = 256

var (
	nativeOnce sync.Once
	nativeHost struct {
		sync.Mutex
		h *Host
	}
	checkPointerFn uintptr
	printValueFn   uintptr
)

// Callbacks cannot be freed, so both are created once per process and check
// against the host most recently bound.
func bindNative(h *Host) {
	nativeHost.Lock()
	nativeHost.h = h
	nativeHost.Unlock()

	nativeOnce.Do(func() {
		checkPointerFn = purego.NewCallback(func(addr uintptr) uintptr {
			host := currentHost()
			if host == nil {
				return StatusInvalidDeref
			}
			return uintptr(host.checkStatus(addr))
		})
		printValueFn = purego.NewCallback(func(addr, typ, buf, size uintptr) uintptr {
			host := currentHost()
			if host == nil {
				return StatusInvalidDeref
			}
			var out []byte
			if buf != 0 && size > 0 {
				out = unsafe.Slice((*byte)(unsafe.Pointer(buf)), size)
			}
			return uintptr(host.printStatus(addr, goString(typ), out))
		})
	})
}

func currentHost() *Host {
	nativeHost.Lock()
	defer nativeHost.Unlock()
	return nativeHost.h
}

// NativeCheckPointer returns a C function pointer with the signature
// int (*)(const void *). It returns StatusInvalidDeref where CheckPointer
// would panic; a panic must not unwind through native frames.
func NativeCheckPointer(h *Host) uintptr {
	bindNative(h)
	return checkPointerFn
}

// NativePrintValue returns a C function pointer with the signature
//
//	int (*)(const void *addr, const char *type, char *buf, size_t len)
//
// It renders the value of the given C++ type stored at addr into buf. A guard
// trip yields StatusInvalidDeref and leaves buf untouched.
func NativePrintValue(h *Host) uintptr {
	bindNative(h)
	return printValueFn
}

func goString(p uintptr) string {
	if p == 0 {
		return ""
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(p)), maxTypeName)
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
