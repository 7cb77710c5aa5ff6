package ignore

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

var errNegated = errors.New("negated patterns are not supported")

// compileLine turns one ignore line into a Pattern. Blank lines and comments
// yield (nil, nil).
func compileLine(line string) (*Pattern, error) {
	trimmed := trimTrailingSpaces(strings.TrimSuffix(line, "\r"))

	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "!") {
		return nil, errNegated
	}
	if strings.HasPrefix(trimmed, `\#`) || strings.HasPrefix(trimmed, `\!`) {
		trimmed = trimmed[1:]
	}

	dirOnly := strings.HasSuffix(trimmed, "/")
	body := strings.TrimRight(trimmed, "/")
	if body == "" {
		return nil, nil
	}

	// A slash anywhere but the end anchors the pattern to the root.
	anchored := strings.Contains(body, "/")
	body = strings.TrimPrefix(body, "/")

	expr := anchorPattern(globToRegex(body), anchored)
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}

	return &Pattern{Regexp: re, DirOnly: dirOnly, Line: line}, nil
}

// globToRegex translates glob syntax into a regular expression body.
func globToRegex(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			if i+1 < len(glob) && glob[i+1] == '*' {
				atSegmentStart := i == 0 || glob[i-1] == '/'
				switch {
				case atSegmentStart && i+2 < len(glob) && glob[i+2] == '/':
					b.WriteString(`(?:.*/)?`)
					i += 2
					continue
				case atSegmentStart && i+2 == len(glob):
					b.WriteString(`.*`)
					i++
					continue
				}
				b.WriteString(`[^/]*`)
				i++
				continue
			}
			b.WriteString(`[^/]*`)
		case '?':
			b.WriteString(`[^/]`)
		case '[':
			class, next, ok := bracketClass(glob, i)
			if !ok {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(class)
			i = next
		case '\\':
			if i+1 < len(glob) {
				i++
				b.WriteString(regexp.QuoteMeta(glob[i : i+1]))
			}
		default:
			b.WriteString(regexp.QuoteMeta(glob[i : i+1]))
		}
	}
	return b.String()
}

// bracketClass translates the class starting at glob[start] == '['. It
// returns the regexp class, the index of the closing ']' and false when the
// class is unterminated, in which case '[' is a literal. A class never
// matches '/'.
func bracketClass(glob string, start int) (string, int, bool) {
	i := start + 1
	negated := false
	if i < len(glob) && (glob[i] == '!' || glob[i] == '^') {
		negated = true
		i++
	}

	var b strings.Builder
	b.WriteString("[")
	if negated {
		b.WriteString("^/")
	}
	first := true
	for ; i < len(glob); i++ {
		c := glob[i]
		switch {
		case c == ']' && !first:
			b.WriteString("]")
			return b.String(), i, true
		case c == '[' && i+1 < len(glob) && glob[i+1] == ':':
			end := strings.Index(glob[i+2:], ":]")
			if end < 0 {
				b.WriteString(`\[`)
				break
			}
			b.WriteString(glob[i : i+2+end+2])
			i += 2 + end + 1
		case c == '\\' && i+1 < len(glob):
			i++
			b.WriteString(classLiteral(glob[i]))
		case c == '/':
			// '/' never matches inside a class.
			return "", 0, false
		case c == '-' && !first && i+1 < len(glob) && glob[i+1] != ']':
			b.WriteByte(c)
		default:
			b.WriteString(classLiteral(c))
		}
		first = false
	}
	return "", 0, false
}

// classLiteral escapes ASCII punctuation so it is literal inside a regexp class.
func classLiteral(c byte) string {
	isWord := c >= utf8.RuneSelf || c == '_' ||
		(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	if isWord || c == ' ' {
		return string([]byte{c})
	}
	return `\` + string([]byte{c})
}

// trimTrailingSpaces drops trailing spaces unless escaped with a backslash.
// Leading whitespace is part of the pattern.
func trimTrailingSpaces(line string) string {
	for strings.HasSuffix(line, " ") && !strings.HasSuffix(line, `\ `) {
		line = line[:len(line)-1]
	}
	return line
}

// anchorPattern makes the expression match a whole path, either from the
// root or after any number of leading directories.
func anchorPattern(expr string, anchored bool) string {
	if anchored {
		return "^" + expr + "$"
	}
	return "^(?:.*/)?" + expr + "$"
}
