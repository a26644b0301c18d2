package session

import (
	"fmt"
	"os"

	"github.com/roach88/txrepl/internal/bridge"
	"github.com/roach88/txrepl/internal/diag"
)

// includer resolves #include for the frontend: the including file's
// directory first, then the include path list.
type includer struct {
	s *Session
}

func (i includer) Include(locator, fromDir string) (string, string, error) {
	dirs := i.s.includes.List()
	if fromDir != "" {
		dirs = append([]string{fromDir}, dirs...)
	}
	loc, err := bridge.Locate(locator, dirs)
	if err != nil {
		return "", "", err
	}
	if loc.Kind == bridge.LibraryFile {
		return "", "", diag.LoadFailed(locator, fmt.Errorf("%s is a shared library", loc.Path))
	}
	data, err := os.ReadFile(loc.Path)
	if err != nil {
		return "", "", diag.LoadFailed(locator, err)
	}
	return loc.Path, string(data), nil
}
