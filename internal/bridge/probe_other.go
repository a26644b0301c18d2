//go:build !linux && !darwin

package bridge

import "os"

func pageSize() uintptr {
	return uintptr(os.Getpagesize())
}

// pagesReadable has no portable probe here, so only session cells are trusted.
func pagesReadable(uintptr, uintptr) bool {
	return false
}
