package command

import (
	"path"
	"strings"

	"github.com/roach88/txrepl/internal/diag"
)

// parseExec parses the argument of ".x".
//
// A bare locator is split from its call groups at the first '(' after which
// the rest of the text is nothing but balanced groups. A quoted locator is
// split the same way inside the quotes, and every group following the
// closing quote is applied after them:
//
//	.x "f.h(4)(1)" ()    calls f(4)(1)()
//	.x "f.h(4)" (1)      calls f(4)(1)
//	.x f.h               calls f()
func parseExec(rest string) (Command, error) {
	if rest == "" {
		return nil, diag.Syntax(".x expects a file to execute")
	}

	var (
		locator string
		calls   []string
	)

	if rest[0] == '"' || rest[0] == '\'' {
		end, quoted, err := readQuoted(rest, 0)
		if err != nil {
			return nil, err
		}
		inner, innerCalls := splitCalls(quoted)
		outer, ok := parseGroups(rest[end+1:])
		if !ok {
			return nil, diag.Syntax(".x: unexpected text after %q", rest[:end+1])
		}
		locator = inner
		calls = append(innerCalls, outer...)
	} else {
		locator, calls = splitCalls(rest)
		if strings.ContainsAny(locator, "()") {
			return nil, diag.Syntax(".x: unbalanced parentheses in %q", rest)
		}
		if strings.ContainsAny(locator, " \t") {
			return nil, diag.Syntax(".x: unexpected whitespace in locator %q", locator)
		}
	}

	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, diag.Syntax(".x expects a file to execute")
	}

	fn := FuncName(locator)
	if !isIdent(fn) {
		return nil, diag.Syntax(".x: %q does not name a callable function", fn)
	}
	if len(calls) == 0 {
		calls = []string{""}
	}
	return ExecCmd{Locator: locator, Func: fn, Calls: calls}, nil
}

// FuncName derives the function called by ".x" from a locator: the base name
// without its extension.
func FuncName(locator string) string {
	base := path.Base(strings.ReplaceAll(locator, "\\", "/"))
	if i := strings.IndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

// splitCalls finds the first '(' in s after which the remainder parses as a
// sequence of balanced groups, and returns the text before it and the groups.
// If there is none, the whole text is the locator.
func splitCalls(s string) (string, []string) {
	for i := 0; i < len(s); i++ {
		if s[i] != '(' {
			continue
		}
		if groups, ok := parseGroups(s[i:]); ok {
			return strings.TrimSpace(s[:i]), groups
		}
	}
	return s, nil
}

// parseGroups parses s as zero or more balanced parenthesized groups
// separated by optional whitespace. String and character literals inside a
// group may hold unbalanced parentheses. Each returned group is the trimmed
// text between its outer parentheses.
func parseGroups(s string) ([]string, bool) {
	groups := []string{}
	i := 0
	for {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i == len(s) {
			return groups, true
		}
		if s[i] != '(' {
			return nil, false
		}
		end, ok := matchParen(s, i)
		if !ok {
			return nil, false
		}
		groups = append(groups, strings.TrimSpace(s[i+1:end]))
		i = end + 1
	}
}

// matchParen returns the index of the ')' closing the '(' at s[open].
func matchParen(s string, open int) (int, bool) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		case '"', '\'':
			q := s[i]
			i++
			for i < len(s) && s[i] != q {
				if s[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(s) {
				return 0, false
			}
		}
	}
	return 0, false
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
