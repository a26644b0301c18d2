package command

import (
	"os"
	"slices"
	"strings"
)

// DefaultDelimiter separates include path components.
const DefaultDelimiter = ":"

// IncludePaths is the session's ordered include path list. It only grows,
// except for an explicit Reset, and keeps duplicates that were added
// separately.
type IncludePaths struct {
	paths []string
}

// NewIncludePaths creates a list holding paths.
func NewIncludePaths(paths ...string) *IncludePaths {
	p := &IncludePaths{}
	p.Add(paths...)
	return p
}

// Add appends components in order. Empty components are skipped.
func (p *IncludePaths) Add(components ...string) {
	for _, c := range components {
		if c != "" {
			p.paths = append(p.paths, c)
		}
	}
}

// List returns a copy of the list.
func (p *IncludePaths) List() []string {
	if p.paths == nil {
		return []string{}
	}
	return slices.Clone(p.paths)
}

// Len returns the number of entries.
func (p *IncludePaths) Len() int {
	return len(p.paths)
}

// Reset clears the list and returns what it held.
func (p *IncludePaths) Reset() []string {
	old := p.List()
	p.paths = nil
	return old
}

// Apply adds the components named by an ".I" command with an argument.
// Environment references in the argument are expanded before splitting.
// It returns the components added.
func (p *IncludePaths) Apply(cmd IncludeCmd, lookup func(string) (string, bool)) []string {
	delim := DefaultDelimiter
	if cmd.HasDelim {
		delim = cmd.Delim
	}
	parts := SplitPaths(ExpandEnv(cmd.Arg, lookup), delim)
	p.Add(parts...)
	return parts
}

// SplitPaths splits s on delim, which may be longer than one character, and
// drops empty components.
func SplitPaths(s, delim string) []string {
	if delim == "" {
		delim = DefaultDelimiter
	}
	out := []string{}
	for _, part := range strings.Split(s, delim) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ExpandEnv replaces $VAR and ${VAR} in s using lookup. Unset variables
// expand to the empty string. A nil lookup reads the process environment.
func ExpandEnv(s string, lookup func(string) (string, bool)) string {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return os.Expand(s, func(name string) string {
		v, _ := lookup(name)
		return v
	})
}
