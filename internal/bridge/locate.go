package bridge

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/roach88/txrepl/internal/diag"
)

// FileKind distinguishes native libraries from source files.
type FileKind int

const (
	SourceFile FileKind = iota
	LibraryFile
)

func (k FileKind) String() string {
	if k == LibraryFile {
		return "library"
	}
	return "source"
}

// Located is a resolved locator.
type Located struct {
	Locator string
	Path    string
	Kind    FileKind
}

// Locate resolves a locator to a file.
//
// The locator is tried verbatim first, then relative to each search
// directory in order, and only then with library naming rules applied:
// lib<name>.so, <name>.so and the platform's shared library suffix. A
// locator that resolves nowhere is a ResourceNotFound error naming it
// exactly as given.
func Locate(locator string, dirs []string) (Located, error) {
	if locator == "" {
		return Located{}, diag.NotFound(locator)
	}

	if p, ok := regularFile(locator); ok {
		return Located{Locator: locator, Path: p, Kind: kindOf(p)}, nil
	}
	if !filepath.IsAbs(locator) {
		for _, dir := range dirs {
			if p, ok := regularFile(filepath.Join(dir, locator)); ok {
				return Located{Locator: locator, Path: p, Kind: kindOf(p)}, nil
			}
		}
	}

	dir, base := filepath.Split(locator)
	roots := []string{dir}
	if !filepath.IsAbs(locator) {
		for _, d := range dirs {
			roots = append(roots, filepath.Join(d, dir))
		}
	}
	for _, root := range roots {
		for _, name := range libraryNames(base) {
			if p, ok := regularFile(filepath.Join(root, name)); ok {
				return Located{Locator: locator, Path: p, Kind: LibraryFile}, nil
			}
		}
	}

	return Located{}, diag.NotFound(locator)
}

// libraryNames lists the file names a bare library name may have on disk.
func libraryNames(base string) []string {
	suffixes := []string{".so"}
	if s := platformSuffix(); s != ".so" {
		suffixes = append(suffixes, s)
	}
	var names []string
	for _, suffix := range suffixes {
		if !strings.HasPrefix(base, "lib") {
			names = append(names, "lib"+base+suffix)
		}
		names = append(names, base+suffix)
	}
	return names
}

func platformSuffix() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

func regularFile(p string) (string, bool) {
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return "", false
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return p, true
}

var libraryMagic = [][]byte{
	{0x7f, 'E', 'L', 'F'},
	{0xfe, 0xed, 0xfa, 0xce},
	{0xfe, 0xed, 0xfa, 0xcf},
	{0xce, 0xfa, 0xed, 0xfe},
	{0xcf, 0xfa, 0xed, 0xfe},
	{0xca, 0xfe, 0xba, 0xbe},
}

// kindOf classifies a file by its shared library extension or, failing
// that, by the object file magic at its start.
func kindOf(p string) FileKind {
	base := filepath.Base(p)
	for _, ext := range []string{".so", ".dylib", ".dll"} {
		if strings.HasSuffix(base, ext) || strings.Contains(base, ext+".") {
			return LibraryFile
		}
	}

	f, err := os.Open(p)
	if err != nil {
		return SourceFile
	}
	defer f.Close()

	head := make([]byte, 4)
	n, _ := io.ReadFull(f, head)
	head = head[:n]
	for _, m := range libraryMagic {
		if bytes.HasPrefix(head, m) {
			return LibraryFile
		}
	}
	return SourceFile
}
