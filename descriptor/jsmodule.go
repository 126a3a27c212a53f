package descriptor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	exportMarker = regexp.MustCompile(`export\s+default\b|module\.exports\s*=`)
	identifier   = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*`)
)

// normalizeJS turns a config module into a YAML flow mapping that keeps the
// source line numbers. Comments are dropped, every string literal is
// rewritten as a double-quoted literal and key colons get a trailing space.
// Only the object literal that the module exports is kept.
func normalizeJS(src []byte) ([]byte, error) {
	code, err := stripJS(string(src))
	if err != nil {
		return nil, err
	}

	start, err := exportedObject(code)
	if err != nil {
		return nil, err
	}
	end := findObjectEnd(code, start)
	if end < 0 {
		return nil, malformed("", lineAt(code, start), "exported object is not closed")
	}

	var b strings.Builder
	b.Grow(end)
	b.WriteString(strings.Repeat("\n", strings.Count(code[:start], "\n")))
	b.WriteString(code[start:end])
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// stripJS removes comments and canonicalizes string literals.
func stripJS(src string) (string, error) {
	var b strings.Builder
	b.Grow(len(src) + len(src)/8)
	line := 1

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '\n':
			line++
			b.WriteByte(c)
			i++

		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			end := strings.Index(src[i+2:], "*/")
			if end == -1 {
				return "", malformed("", line, "unterminated block comment")
			}
			comment := src[i : i+2+end+2]
			n := strings.Count(comment, "\n")
			line += n
			b.WriteString(strings.Repeat("\n", n))
			i += len(comment)

		case c == '\'' || c == '"':
			s, n, err := readJSString(src[i:], line)
			if err != nil {
				return "", err
			}
			b.WriteString(strconv.Quote(s))
			line += strings.Count(src[i:i+n], "\n")
			i += n

		case c == '`':
			return "", malformed("", line, "template literals are not supported")

		case c == ':':
			b.WriteByte(c)
			if i+1 < len(src) && !isSpace(src[i+1]) {
				b.WriteByte(' ')
			}
			i++

		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// readJSString decodes the quoted literal at the start of s and returns its
// value and the number of source bytes consumed.
func readJSString(s string, line int) (string, int, error) {
	quote := s[0]
	var b strings.Builder
	for i := 1; i < len(s); {
		c := s[i]
		switch {
		case c == quote:
			return b.String(), i + 1, nil
		case c == '\n':
			return "", 0, malformed("", line, "unterminated string literal")
		case c == '\\':
			if i+1 >= len(s) {
				return "", 0, malformed("", line, "unterminated string literal")
			}
			r, n := decodeEscape(s[i+1:])
			if r >= 0 {
				b.WriteRune(r)
			}
			i += 1 + n
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, malformed("", line, "unterminated string literal")
}

// decodeEscape decodes the escape sequence following a backslash. It returns
// -1 for line continuations.
func decodeEscape(s string) (rune, int) {
	switch s[0] {
	case 'n':
		return '\n', 1
	case 't':
		return '\t', 1
	case 'r':
		return '\r', 1
	case 'b':
		return '\b', 1
	case 'f':
		return '\f', 1
	case 'v':
		return '\v', 1
	case '0':
		return 0, 1
	case '\n':
		return -1, 1
	case 'x':
		if len(s) >= 3 {
			if v, err := strconv.ParseUint(s[1:3], 16, 8); err == nil {
				return rune(v), 3
			}
		}
	case 'u':
		if len(s) >= 3 && s[1] == '{' {
			if end := strings.IndexByte(s, '}'); end > 2 {
				if v, err := strconv.ParseUint(s[2:end], 16, 32); err == nil {
					return rune(v), end + 1
				}
			}
		} else if len(s) >= 5 {
			if v, err := strconv.ParseUint(s[1:5], 16, 16); err == nil {
				return rune(v), 5
			}
		}
	}
	r, n := utf8.DecodeRuneInString(s)
	return r, n
}

// exportedObject returns the offset of the opening brace of the exported
// config object.
func exportedObject(code string) (int, error) {
	loc := exportMarker.FindStringIndex(code)
	if loc == nil {
		if trimmed := strings.TrimLeft(code, " \t\r\n"); strings.HasPrefix(trimmed, "{") {
			return len(code) - len(trimmed), nil
		}
		return 0, malformed("", 0, "no export default or module.exports object found")
	}

	pos := skipSpace(code, loc[1])
	if pos < len(code) && code[pos] == '{' {
		return pos, nil
	}

	name := identifier.FindString(code[pos:])
	if name == "" {
		return 0, malformed("", lineAt(code, pos), "exported value is not an object literal")
	}

	// defineConfig({...}) style wrappers
	if after := skipSpace(code, pos+len(name)); after < len(code) && code[after] == '(' {
		if open := skipSpace(code, after+1); open < len(code) && code[open] == '{' {
			return open, nil
		}
		return 0, malformed("", lineAt(code, pos), "%s(...) does not wrap an object literal", name)
	}

	decl := regexp.MustCompile(`(?:const|let|var)\s+` + regexp.QuoteMeta(name) + `\b[^=]*=\s*`)
	m := decl.FindStringIndex(code)
	if m == nil || m[1] >= len(code) || code[m[1]] != '{' {
		return 0, malformed("", lineAt(code, pos), "cannot find object literal for %s", name)
	}
	return m[1], nil
}

// findObjectEnd returns the offset just past the brace matching the one at
// start, or -1. Strings are expected in canonical double-quoted form.
func findObjectEnd(code string, start int) int {
	depth := 0
	for i := start; i < len(code); i++ {
		switch code[i] {
		case '"':
			for i++; i < len(code) && code[i] != '"'; i++ {
				if code[i] == '\\' {
					i++
				}
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func lineAt(s string, offset int) int {
	return strings.Count(s[:offset], "\n") + 1
}
