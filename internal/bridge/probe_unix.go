//go:build linux || darwin

package bridge

import (
	"os"

	"golang.org/x/sys/unix"
)

var pagesize = uintptr(os.Getpagesize())

func pageSize() uintptr {
	return pagesize
}

// pagesReadable reports whether every page covering [addr, addr+n) can be
// read. One byte from each page is written into a pipe; the kernel copies it
// and answers EFAULT for an unmapped or PROT_NONE page instead of faulting.
func pagesReadable(addr, n uintptr) bool {
	if n == 0 {
		n = 1
	}
	last := addr + n - 1
	if last < addr {
		return false
	}

	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return false
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	for p := addr; ; {
		if _, _, errno := unix.Syscall(unix.SYS_WRITE, uintptr(fds[1]), p, 1); errno != 0 {
			return false
		}
		next := p&^(pagesize-1) + pagesize
		if next <= p || next > last {
			return true
		}
		p = next
	}
}
