package utils

import (
	"strings"
	"unicode"
)

// Levenshtein computes the edit distance between two strings, counting
// insertions, deletions and substitutions at cost 1. Comparison is
// rune-based so multi-byte characters count as single edits.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// SimilarityRatio returns a normalized similarity in [0,1] based on edit
// distance: 1.0 means identical, 0.0 means nothing in common. Two empty
// strings are considered identical.
func SimilarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}

	return 1.0 - float64(Levenshtein(a, b))/float64(maxLen)
}

// NormalizeFreeText lowercases, strips punctuation and collapses runs of
// whitespace to single spaces. Used to make free-form fields (postal
// addresses, company names) comparable across formatting differences.
func NormalizeFreeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}

	return strings.TrimSpace(b.String())
}

// Digits returns only the decimal digits of s, in order.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DigitGroups returns every maximal run of consecutive digits in s whose
// length is at least minLen. Shorter runs (dates, street numbers) are
// ignored.
func DigitGroups(s string, minLen int) []string {
	var groups []string
	start := -1

	flush := func(end int) {
		if start >= 0 && end-start >= minLen {
			groups = append(groups, s[start:end])
		}
		start = -1
	}

	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(s))

	return groups
}

// LastNDigits strips all non-digits from s and returns the trailing n
// digits, or everything if fewer than n remain.
func LastNDigits(s string, n int) string {
	digits := Digits(s)
	if len(digits) <= n {
		return digits
	}
	return digits[len(digits)-n:]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
