package stringutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Check whether str is a "http://" or "https://"" url
func IsUrl(str string) bool {
	return strings.HasPrefix(str, "http://") || strings.HasPrefix(str, "https://")
}

// CleanTitle:
// 1. Remove line breaks (replace them with space).
// 2. Clean (Remove invisible chars then TrimSpace).
func CleanTitle(s string) string {
	s = regexp.MustCompile(`[\t\r\n]+`).ReplaceAllString(s, " ")
	s = Clean(s)
	return s
}

// Clean:
// 1. removes non-graphic (excluding spaces) characters from the given string.
// Non-graphic chars are the ones for which unicode.IsGraphic() returns false.
// 2. TrimSpace.
func Clean(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsGraphic(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
	s = strings.TrimSpace(s)
	return s
}

func ContainsI(str string, substr string) bool {
	return strings.Contains(
		strings.ToLower(str),
		strings.ToLower(substr),
	)
}

// Return prefix of str that is at most max bytes encoded in UTF-8.
func StringPrefixInBytes(str string, max int) string {
	if len(str) <= max {
		return str
	}
	length := 0
	sb := &strings.Builder{}
	for _, char := range str {
		runeLength := utf8.RuneLen(char)
		if length+runeLength > int(max) {
			break
		}
		sb.WriteRune(char)
		length += runeLength
	}
	return sb.String()
}

// Truncate str for display in a log line, appending "..." when cut.
func Truncate(str string, max int) string {
	if len(str) <= max {
		return str
	}
	return StringPrefixInBytes(str, max) + "..."
}
