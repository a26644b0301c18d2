// Package command parses the dot-prefixed control language of the session.
//
// Parse turns one input line into a Command. Command is a closed set: every
// case is declared in this file and carries an unexported marker method, so
// the session's type switch names all of them.
package command

import (
	"strconv"
	"strings"

	"github.com/roach88/txrepl/internal/diag"
)

// Command is one parsed dot-command.
type Command interface {
	command()
}

// LoadCmd is ".L <locator>": load a library or source file.
type LoadCmd struct {
	Locator string
}

// IncludeCmd is ".I [arg [delim]]": manage the include path list.
type IncludeCmd struct {
	Arg      string
	Delim    string
	HasArg   bool
	HasDelim bool
}

// ExecCmd is ".x <locator>(<args>)[(<args2>)...]": load a file and call the
// function named after it.
type ExecCmd struct {
	Locator string
	Func    string

	// Calls holds the raw argument text of each invocation, in order. The
	// first group is applied to the function, each later group to the value
	// the previous call returned. It is never empty: a locator with no groups
	// is called once with no arguments.
	Calls []string
}

// Expr returns the call expression the command evaluates, e.g. "f(4)()".
func (c ExecCmd) Expr() string {
	var b strings.Builder
	b.WriteString(c.Func)
	for _, args := range c.Calls {
		b.WriteByte('(')
		b.WriteString(args)
		b.WriteByte(')')
	}
	return b.String()
}

// UndoCmd is ".undo [N]".
type UndoCmd struct {
	N int
}

// StoreStateCmd is ".storeState <name>".
type StoreStateCmd struct {
	Name string
}

// CompareStateCmd is ".compareState <name>".
type CompareStateCmd struct {
	Name string
}

// QuitCmd is ".q".
type QuitCmd struct{}

// HelpCmd is ".help".
type HelpCmd struct{}

// StatsCmd is ".stats": transaction log and directory counters.
type StatsCmd struct{}

func (LoadCmd) command()         {}
func (IncludeCmd) command()      {}
func (ExecCmd) command()         {}
func (UndoCmd) command()         {}
func (StoreStateCmd) command()   {}
func (CompareStateCmd) command() {}
func (QuitCmd) command()         {}
func (HelpCmd) command()         {}
func (StatsCmd) command()        {}

// Help is the text printed by ".help".
const Help = `.L <locator>              load a library or source file
.I [path [delim]]         add include paths; with no argument print and clear the list
.x <file>(<args>)...      load a file and call the function named after it
.undo [N]                 roll back the last N transactions (default 1)
.storeState <name>        capture the visible declarations under name
.compareState <name>      report declarations added or removed since name
.stats                    transaction log counters
.help                     this text
.q                        quit
`

// IsCommand reports whether line is a dot-command rather than source input.
func IsCommand(line string) bool {
	s := strings.TrimSpace(line)
	if len(s) < 2 || s[0] != '.' {
		return false
	}
	c := s[1]
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// Parse parses one dot-command line.
func Parse(line string) (Command, error) {
	s := strings.TrimSpace(line)
	if !IsCommand(s) {
		return nil, diag.Syntax("not a command: %q", s)
	}

	verb, rest := s, ""
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		verb, rest = s[:i], strings.TrimSpace(s[i+1:])
	}

	// .x takes the raw remainder: its argument groups are not tokens.
	if verb == ".x" || verb == ".X" {
		return parseExec(rest)
	}

	args, err := Tokenize(rest)
	if err != nil {
		return nil, err
	}

	switch verb {
	case ".L":
		if len(args) != 1 {
			return nil, diag.Syntax(".L expects one locator, got %d arguments", len(args))
		}
		return LoadCmd{Locator: args[0]}, nil

	case ".I":
		switch len(args) {
		case 0:
			return IncludeCmd{}, nil
		case 1:
			return IncludeCmd{Arg: args[0], HasArg: true}, nil
		case 2:
			if args[1] == "" {
				return nil, diag.Syntax(".I delimiter must not be empty")
			}
			return IncludeCmd{Arg: args[0], Delim: args[1], HasArg: true, HasDelim: true}, nil
		default:
			return nil, diag.Syntax(".I expects at most a path and a delimiter, got %d arguments", len(args))
		}

	case ".undo":
		switch len(args) {
		case 0:
			return UndoCmd{N: 1}, nil
		case 1:
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return nil, diag.Syntax(".undo expects a positive count, got %q", args[0])
			}
			return UndoCmd{N: n}, nil
		default:
			return nil, diag.Syntax(".undo expects at most one count")
		}

	case ".storeState", ".compareState":
		if len(args) != 1 || args[0] == "" {
			return nil, diag.Syntax("%s expects one snapshot name", verb)
		}
		if verb == ".storeState" {
			return StoreStateCmd{Name: args[0]}, nil
		}
		return CompareStateCmd{Name: args[0]}, nil

	case ".q":
		if len(args) != 0 {
			return nil, diag.Syntax(".q takes no arguments")
		}
		return QuitCmd{}, nil

	case ".help", ".?":
		return HelpCmd{}, nil

	case ".stats":
		return StatsCmd{}, nil
	}

	return nil, diag.Syntax("unknown command '%s'", verb)
}

// Tokenize splits s into whitespace-separated words. Double and single quotes
// group a word so it can hold spaces or delimiters such as ';'. Inside double
// quotes a backslash escapes the next character.
func Tokenize(s string) ([]string, error) {
	args := []string{}
	var cur strings.Builder
	inWord := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		case c == '"' || c == '\'':
			end, text, err := readQuoted(s, i)
			if err != nil {
				return nil, err
			}
			cur.WriteString(text)
			inWord = true
			i = end
		default:
			cur.WriteByte(c)
			inWord = true
		}
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}

// readQuoted reads the quoted string starting at s[start] and returns the
// index of the closing quote and the unquoted text.
func readQuoted(s string, start int) (int, string, error) {
	q := s[start]
	var b strings.Builder
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == q:
			return i, b.String(), nil
		case c == '\\' && q == '"' && i+1 < len(s):
			i++
			b.WriteByte(s[i])
		default:
			b.WriteByte(c)
		}
	}
	return 0, "", diag.Syntax("unterminated %c quote", q)
}
