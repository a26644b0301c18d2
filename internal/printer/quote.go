package printer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"

	"github.com/roach88/txrepl/internal/ir"
)

// codec returns the x/text encoding storing enc's code units, or nil for
// narrow strings, which are kept as raw bytes.
func codec(enc ir.StringEncoding) encoding.Encoding {
	switch enc {
	case ir.UTF16:
		return xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM)
	case ir.Wide, ir.UTF32:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM)
	default:
		return nil
	}
}

// Encode returns the native code units of s in enc, as stored in memory.
func Encode(s string, enc ir.StringEncoding) ([]byte, error) {
	c := codec(enc)
	if c == nil {
		return []byte(s), nil
	}
	return c.NewEncoder().Bytes([]byte(s))
}

// Decode converts native code units back to a Go string.
func Decode(b []byte, enc ir.StringEncoding) (string, error) {
	c := codec(enc)
	if c == nil {
		return string(b), nil
	}
	out, err := c.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Quote renders s as a C++ string literal of encoding enc, with the
// encoding's prefix. Wide forms are round-tripped through their native code
// units, so text they cannot represent is shown as it would be stored.
func Quote(s string, enc ir.StringEncoding) (string, error) {
	if enc != ir.Narrow {
		units, err := Encode(s, enc)
		if err != nil {
			return "", fmt.Errorf("encoding %s string: %w", enc, err)
		}
		if s, err = Decode(units, enc); err != nil {
			return "", fmt.Errorf("decoding %s string: %w", enc, err)
		}
	}

	var b strings.Builder
	b.WriteString(enc.Prefix())
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			fmt.Fprintf(&b, `\x%02x`, s[i])
			i++
			continue
		}
		writeEscaped(&b, r, '"', enc)
		i += size
	}
	b.WriteByte('"')
	return b.String(), nil
}

func quoteChar(r rune, enc ir.StringEncoding) string {
	var b strings.Builder
	b.WriteString(enc.Prefix())
	b.WriteByte('\'')
	writeEscaped(&b, r, '\'', enc)
	b.WriteByte('\'')
	return b.String()
}

func writeEscaped(b *strings.Builder, r rune, quote rune, enc ir.StringEncoding) {
	switch r {
	case quote, '\\':
		b.WriteByte('\\')
		b.WriteRune(r)
	case '\n':
		b.WriteString(`\n`)
	case '\t':
		b.WriteString(`\t`)
	case '\r':
		b.WriteString(`\r`)
	case 0:
		b.WriteString(`\0`)
	default:
		switch {
		case unicode.IsPrint(r):
			b.WriteRune(r)
		case r < 0x80 || enc == ir.Narrow && r < 0x100:
			fmt.Fprintf(b, `\x%02x`, r)
		case r <= 0xffff:
			fmt.Fprintf(b, `\u%04x`, r)
		default:
			fmt.Fprintf(b, `\U%08x`, r)
		}
	}
}
