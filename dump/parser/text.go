package parser

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// textBlock accumulates the body of a text element across lines.
type textBlock struct {
	sb strings.Builder
}

// add consumes one line of the body and reports whether it held the closing
// tag. Lines before the closing one are entity-decoded and newline
// terminated. Of the closing line only the part before the tag is kept, as
// it appears in the dump.
func (b *textBlock) add(line string) bool {
	if rest, ok := Match(KindTextEnd, line); ok {
		b.sb.WriteString(rest)
		return true
	}
	b.sb.WriteString(UnescapeXML(line))
	b.sb.WriteByte('\n')
	return false
}

func (b *textBlock) String() string {
	return b.sb.String()
}

var xmlEntities = map[string]string{
	"amp":  "&",
	"lt":   "<",
	"gt":   ">",
	"quot": `"`,
	"apos": "'",
}

// UnescapeXML decodes the five predefined XML entities and numeric character
// references. Anything else, including unterminated references, is copied
// unchanged.
func UnescapeXML(s string) string {
	i := strings.IndexByte(s, '&')
	if i < 0 {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s))
	for i >= 0 {
		sb.WriteString(s[:i])
		s = s[i:]
		end := strings.IndexByte(s, ';')
		if end < 0 {
			break
		}
		if decoded, ok := decodeReference(s[1:end]); ok {
			sb.WriteString(decoded)
			s = s[end+1:]
		} else {
			sb.WriteByte('&')
			s = s[1:]
		}
		i = strings.IndexByte(s, '&')
	}
	sb.WriteString(s)
	return sb.String()
}

func decodeReference(ref string) (string, bool) {
	if v, ok := xmlEntities[ref]; ok {
		return v, true
	}
	if !strings.HasPrefix(ref, "#") || len(ref) < 2 {
		return "", false
	}
	var (
		n   uint64
		err error
	)
	if ref[1] == 'x' || ref[1] == 'X' {
		n, err = strconv.ParseUint(ref[2:], 16, 32)
	} else {
		n, err = strconv.ParseUint(ref[1:], 10, 32)
	}
	if err != nil || !utf8.ValidRune(rune(n)) {
		return "", false
	}
	return string(rune(n)), true
}
