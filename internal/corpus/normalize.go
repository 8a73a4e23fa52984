package corpus

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const titleLength = 100

// Normalize lowercases text, replaces punctuation with spaces and collapses
// whitespace. Letters and digits of any script are kept.
func Normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	space := true
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(unicode.ToLower(r))
			space = false
			continue
		}
		if !space {
			sb.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

// Truncate cuts text to at most maxChars runes. maxChars <= 0 disables truncation.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}

// DeriveTitle builds a title from content: the first 100 characters with
// line breaks folded to spaces, followed by "...".
func DeriveTitle(content string) string {
	folded := strings.Join(strings.Fields(content), " ")
	if folded == "" {
		return ""
	}
	return Truncate(folded, titleLength) + "..."
}
