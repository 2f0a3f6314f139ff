package textutil

import (
	"regexp"
	"strings"
)

// bulletin pages are full of non-breaking spaces, which Go's \s does
// not cover
var whitespaceRegex = regexp.MustCompile(`[\s\x{00A0}\x{200B}]+`)

// Collapse trims a string and folds every whitespace run (including
// NBSP and zero-width space) into a single plain space.
func Collapse(s string) string {
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.Trim(s, " ")
}

// NormalizeCode uppercases and collapses a subject or course code so
// "cmp sc " and "CMP SC" compare equal.
func NormalizeCode(s string) string {
	return strings.ToUpper(Collapse(s))
}
