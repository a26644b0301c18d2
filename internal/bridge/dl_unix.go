//go:build linux || darwin

package bridge

import (
	"fmt"

	"github.com/ebitengine/purego"
)

// systemLoader opens libraries with the platform dynamic loader.
type systemLoader struct{}

func (systemLoader) Open(path string) (uintptr, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, err
	}
	return h, nil
}

func (systemLoader) Sym(handle uintptr, name string) (uintptr, error) {
	return purego.Dlsym(handle, name)
}

// callNative invokes a C function with integer and pointer arguments.
func callNative(fn uintptr, args []uintptr) (uintptr, error) {
	if len(args) > 15 {
		return 0, fmt.Errorf("too many arguments for a native call: %d", len(args))
	}
	r1, _, _ := purego.SyscallN(fn, args...)
	return r1, nil
}
