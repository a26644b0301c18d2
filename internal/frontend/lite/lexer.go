package lite

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/txrepl/internal/diag"
	"github.com/roach88/txrepl/internal/ir"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokInt
	tokChar
	tokString
	tokPunct
)

type token struct {
	kind tokKind
	text string // identifier, punctuation, or literal payload
	num  int64
	enc  ir.StringEncoding
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return strconv.Quote(t.text)
	case tokChar:
		return "character literal"
	case tokInt:
		return fmt.Sprintf("%d", t.num)
	default:
		return "'" + t.text + "'"
	}
}

var puncts = []string{
	"::", "==", "!=", "<=", ">=", "&&", "||", "->",
	"+", "-", "*", "/", "%", "<", ">", "=", "!", "&",
	"(", ")", "{", "}", "[", "]", ";", ",", ":", "~", "?",
}

// lex splits C++ text into tokens. Comments are dropped; preprocessor
// directives must already have been removed.
func lex(src string, origin string, firstLine int) ([]token, error) {
	var toks []token
	line := firstLine
	errAt := func(format string, args ...any) error {
		return diag.Compile("%s:%d: %s", origin, line, fmt.Sprintf(format, args...))
	}

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++
		case strings.HasPrefix(src[i:], "//"):
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, errAt("unterminated comment")
			}
			line += strings.Count(src[i:i+2+end], "\n")
			i += end + 4

		case isIdentStart(c):
			j := i
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			word := src[i:j]
			if enc, ok := literalPrefix(word); ok && j < len(src) && (src[j] == '"' || src[j] == '\'') {
				t, n, err := lexQuoted(src[j:], enc, line)
				if err != nil {
					return nil, errAt("%v", err)
				}
				toks = append(toks, t)
				i = j + n
				continue
			}
			toks = append(toks, token{kind: tokIdent, text: word, line: line})
			i = j

		case c >= '0' && c <= '9':
			j := i
			for j < len(src) && (isIdentPart(src[j]) || src[j] == '.' || src[j] == '\'') {
				j++
			}
			n, err := parseIntLiteral(src[i:j])
			if err != nil {
				return nil, errAt("%v", err)
			}
			toks = append(toks, token{kind: tokInt, num: n, text: src[i:j], line: line})
			i = j

		case c == '"' || c == '\'':
			t, n, err := lexQuoted(src[i:], ir.Narrow, line)
			if err != nil {
				return nil, errAt("%v", err)
			}
			toks = append(toks, t)
			i += n

		default:
			matched := false
			for _, p := range puncts {
				if strings.HasPrefix(src[i:], p) {
					toks = append(toks, token{kind: tokPunct, text: p, line: line})
					i += len(p)
					matched = true
					break
				}
			}
			if !matched {
				return nil, errAt("unexpected character %q", c)
			}
		}
	}

	// Adjacent string literals concatenate.
	out := toks[:0]
	for _, t := range toks {
		if n := len(out); n > 0 && t.kind == tokString && out[n-1].kind == tokString {
			prev := &out[n-1]
			if t.enc != ir.Narrow {
				prev.enc = t.enc
			}
			prev.text += t.text
			continue
		}
		out = append(out, t)
	}
	return append(out, token{kind: tokEOF, line: line}), nil
}

func literalPrefix(word string) (ir.StringEncoding, bool) {
	switch word {
	case "L":
		return ir.Wide, true
	case "u":
		return ir.UTF16, true
	case "U":
		return ir.UTF32, true
	case "u8":
		return ir.Narrow, true
	}
	return ir.Narrow, false
}

func parseIntLiteral(s string) (int64, error) {
	s = strings.ReplaceAll(s, "'", "")
	s = strings.TrimRight(s, "uUlL")
	if strings.ContainsAny(s, ".eE") && !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, fmt.Errorf("floating-point literal %q is not supported", s)
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(s, 0, 64)
		if uerr != nil {
			return 0, fmt.Errorf("invalid integer literal %q", s)
		}
		n = int64(u)
	}
	return n, nil
}

// lexQuoted reads a string or character literal starting at s[0] and returns
// the token and the number of bytes consumed.
func lexQuoted(s string, enc ir.StringEncoding, line int) (token, int, error) {
	q := s[0]
	var b strings.Builder
	i := 1
	for ; i < len(s) && s[i] != q; i++ {
		c := s[i]
		if c == '\n' {
			return token{}, 0, fmt.Errorf("newline in literal")
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			break
		}
		switch e := s[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case 'x':
			j := i + 1
			for j < len(s) && j < i+3 && isHex(s[j]) {
				j++
			}
			v, err := strconv.ParseUint(s[i+1:j], 16, 8)
			if err != nil {
				return token{}, 0, fmt.Errorf("invalid \\x escape")
			}
			b.WriteByte(byte(v))
			i = j - 1
		case 'u', 'U':
			width := 4
			if e == 'U' {
				width = 8
			}
			if i+width >= len(s) {
				return token{}, 0, fmt.Errorf("short \\%c escape", e)
			}
			v, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil {
				return token{}, 0, fmt.Errorf("invalid \\%c escape", e)
			}
			b.WriteRune(rune(v))
			i += width
		default:
			b.WriteByte(e)
		}
	}
	if i >= len(s) {
		return token{}, 0, fmt.Errorf("unterminated literal")
	}

	text := b.String()
	if q == '"' {
		return token{kind: tokString, text: text, enc: enc, line: line}, i + 1, nil
	}
	runes := []rune(text)
	if len(runes) != 1 {
		return token{}, 0, fmt.Errorf("character literal must hold one character")
	}
	return token{kind: tokChar, num: int64(runes[0]), enc: enc, line: line}, i + 1, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}
