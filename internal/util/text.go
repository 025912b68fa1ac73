package util

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizePostgresText drops invalid UTF-8 and NUL bytes, which TEXT and JSONB reject.
func SanitizePostgresText(value string) string {
	if value == "" {
		return value
	}

	sanitized := strings.ToValidUTF8(value, "")
	return strings.ReplaceAll(sanitized, "\x00", "")
}

// CountNonSpace counts the runes in s that are not whitespace.
func CountNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// TruncateRunes returns at most limit runes of s. A limit <= 0 disables truncation.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	i := 0
	for pos := range s {
		if i == limit {
			return s[:pos]
		}
		i++
	}
	return s
}

// SafeFileComponent maps an opaque identifier onto characters that are safe in a file name.
func SafeFileComponent(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "doc"
	}
	out := b.String()
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}
