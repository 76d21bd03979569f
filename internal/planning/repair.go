package planning

import (
	"fmt"
	"strings"
)

// normalizeJSON fixes delimiter and quoting slips that small models make,
// without touching the values themselves:
//   - raw control characters inside strings are escaped
//   - backslashes that do not start a valid escape are doubled (regexes such as \d)
//   - trailing commas before a closer are removed
//   - bare Python literals True, False and None become JSON literals
func normalizeJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case c == '\\':
				if i+1 < len(s) && validEscape(s, i+1) {
					b.WriteByte(c)
					b.WriteByte(s[i+1])
					i++
				} else {
					b.WriteString(`\\`)
				}
			case c == '"':
				inString = false
				b.WriteByte(c)
			case c < 0x20:
				b.WriteString(escapeControl(c))
			default:
				b.WriteByte(c)
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == ',':
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
			b.WriteByte(c)
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			word := s[i:j]
			switch word {
			case "True":
				word = "true"
			case "False":
				word = "false"
			case "None":
				word = "null"
			}
			b.WriteString(word)
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func validEscape(s string, i int) bool {
	switch s[i] {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
		return true
	case 'u':
		if i+4 >= len(s) {
			return false
		}
		for _, h := range s[i+1 : i+5] {
			if !strings.ContainsRune("0123456789abcdefABCDEF", h) {
				return false
			}
		}
		return true
	}
	return false
}

func escapeControl(c byte) string {
	switch c {
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	}
	return fmt.Sprintf(`\u%04x`, c)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
