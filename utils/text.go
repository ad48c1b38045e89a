package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripDiacritics removes combining marks, so "día" becomes "dia".
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize lowercases s, strips diacritics and apostrophes, turns every run
// of punctuation into a single space and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(StripDiacritics(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case r == '`' || r == '´' || r == '’' || r == '\'':
			continue
		case unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || r == '-':
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		default:
			pendingSpace = true
		}
	}
	return b.String()
}

// ContainsAny reports whether the normalized text contains any of words.
func ContainsAny(normText string, words []string) bool {
	for _, w := range words {
		if strings.Contains(normText, Normalize(w)) {
			return true
		}
	}
	return false
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ChunkString splits s into pieces of at most maxLen runes. Messages sent to
// Discord are limited to 2000 characters.
func ChunkString(s string, maxLen int) []string {
	if maxLen <= 0 {
		return nil
	}
	r := []rune(s)
	chunks := make([]string, 0, len(r)/maxLen+1)
	for len(r) > 0 {
		n := maxLen
		if len(r) < n {
			n = len(r)
		}
		chunks = append(chunks, string(r[:n]))
		r = r[n:]
	}
	return chunks
}
