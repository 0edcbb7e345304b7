// Package textx holds text helpers shared by the HTTP layer and the ranking
// stages.
package textx

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeText drops control runes other than tab, newline and carriage
// return, then trims surrounding space.
func SanitizeText(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s))
}

// Fold normalises a skill or label for comparison: trimmed and lower-cased.
func Fold(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// SplitFold splits s on sep and folds every entry, dropping empties.
func SplitFold(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = Fold(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Truncate trims s and caps it at n bytes without splitting a rune,
// appending "..." when anything was cut.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
