// Package sanitize makes labels read from input files safe to print.
// Gene and cell-line labels come from user-supplied CSV files and end up
// in terminal tables, TSV exports and log lines.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLabelLength is the longest label printed before truncation.
const MaxLabelLength = 64

// Label strips control characters (including tabs and newlines, which
// would break TSV rows), collapses internal whitespace and truncates to
// MaxLabelLength runes with a trailing "...".
//
// The matrix keeps the raw label; only its displayed form changes.
func Label(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input)
	s = strings.Join(strings.Fields(s), " ")

	if utf8.RuneCountInString(s) > MaxLabelLength {
		runes := []rune(s)
		s = string(runes[:MaxLabelLength-3]) + "..."
	}
	return s
}

// Labels applies Label to every element, returning a new slice.
func Labels(input []string) []string {
	out := make([]string, len(input))
	for i, s := range input {
		out[i] = Label(s)
	}
	return out
}

// stripControlChars removes C0/C1 control characters and invalid UTF-8.
// Tabs and newlines become spaces so adjacent words stay apart.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteByte(' ')
		case r == utf8.RuneError, unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
