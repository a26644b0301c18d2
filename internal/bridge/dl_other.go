//go:build !linux && !darwin

package bridge

import "errors"

var errNoDynamicLoader = errors.New("dynamic loading is not supported on this platform")

type systemLoader struct{}

func (systemLoader) Open(string) (uintptr, error) {
	return 0, errNoDynamicLoader
}

func (systemLoader) Sym(uintptr, string) (uintptr, error) {
	return 0, errNoDynamicLoader
}

func callNative(uintptr, []uintptr) (uintptr, error) {
	return 0, errNoDynamicLoader
}
