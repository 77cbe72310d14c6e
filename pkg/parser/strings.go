package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// decodeString turns a Python string literal into its value. Byte strings and
// f-strings with replacement fields are rejected.
func decodeString(lit string) (string, bool) {
	i := 0
	raw, fstr := false, false
	for i < len(lit) && lit[i] != '\'' && lit[i] != '"' {
		switch lit[i] {
		case 'r', 'R':
			raw = true
		case 'f', 'F':
			fstr = true
		case 'u', 'U':
		default:
			return "", false
		}
		i++
	}
	lit = lit[i:]

	var quote string
	switch {
	case strings.HasPrefix(lit, `"""`), strings.HasPrefix(lit, `'''`):
		quote = lit[:3]
	case len(lit) >= 2:
		quote = lit[:1]
	default:
		return "", false
	}
	if len(lit) < 2*len(quote) || !strings.HasSuffix(lit, quote) {
		return "", false
	}
	body := lit[len(quote) : len(lit)-len(quote)]

	if fstr {
		unbraced := strings.ReplaceAll(strings.ReplaceAll(body, "{{", ""), "}}", "")
		if strings.ContainsAny(unbraced, "{}") {
			return "", false
		}
		body = strings.ReplaceAll(strings.ReplaceAll(body, "{{", "{"), "}}", "}")
	}
	if raw {
		return body, true
	}
	return unescape(body)
}

func unescape(s string) (string, bool) {
	if !strings.Contains(s, `\`) {
		return s, true
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' || i+1 >= len(s) {
			sb.WriteByte(ch)
			continue
		}
		i++
		switch s[i] {
		case '\n':
			// Line continuation.
		case '\\':
			sb.WriteByte('\\')
		case '\'':
			sb.WriteByte('\'')
		case '"':
			sb.WriteByte('"')
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'v':
			sb.WriteByte('\v')
		case 'x', 'u', 'U':
			width := map[byte]int{'x': 2, 'u': 4, 'U': 8}[s[i]]
			if i+1+width > len(s) {
				return "", false
			}
			code, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil || !utf8.ValidRune(rune(code)) {
				return "", false
			}
			sb.WriteRune(rune(code))
			i += width
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			code, _ := strconv.ParseUint(s[i:j], 8, 32)
			sb.WriteRune(rune(code))
			i = j - 1
		default:
			// Unknown escapes are kept verbatim, as Python does.
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String(), true
}
