package store

import (
	"strings"
	"unicode"
)

// span is a token with its byte offsets in the source text.
type span struct {
	term       string
	start, end int
}

// tokenSpans splits text into lowercase runs of letters and digits.
// Apostrophes inside a word are dropped so "don't" indexes as "dont".
func tokenSpans(text string, minLen int) []span {
	var (
		spans []span
		sb    strings.Builder
		start = -1
		runes int
	)
	flush := func(end int) {
		if start >= 0 && runes >= minLen {
			spans = append(spans, span{term: sb.String(), start: start, end: end})
		}
		sb.Reset()
		start = -1
		runes = 0
	}

	for i, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if start < 0 {
				start = i
			}
			sb.WriteRune(unicode.ToLower(r))
			runes++
		case (r == '\'' || r == '’') && start >= 0:
			// Keep the word open across an apostrophe.
		default:
			flush(i)
		}
	}
	flush(len(text))
	return spans
}

// Tokenize lowercases text and splits it into words of at least minLen runes.
func Tokenize(text string, minLen int) []string {
	spans := tokenSpans(text, minLen)
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.term
	}
	return out
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := stopWords[strings.ToLower(token)]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a lookup set.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}

// uniqueTerms returns tokens in first-seen order without repeats.
func uniqueTerms(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
