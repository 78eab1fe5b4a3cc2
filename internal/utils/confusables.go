package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// confusableRunes maps characters that render close to a Latin letter onto
// that letter. Covers the Cyrillic and Greek homoglyphs commonly used in
// lookalike domains.
var confusableRunes = map[rune]rune{
	'а': 'a', // cyrillic а
	'е': 'e', // cyrillic е
	'о': 'o', // cyrillic о
	'р': 'p', // cyrillic р
	'с': 'c', // cyrillic с
	'у': 'y', // cyrillic у
	'х': 'x', // cyrillic х
	'і': 'i', // cyrillic і
	'ѕ': 's', // cyrillic ѕ
	'ј': 'j', // cyrillic ј
	'һ': 'h', // cyrillic һ
	'ԁ': 'd', // cyrillic ԁ
	'ԛ': 'q', // cyrillic ԛ
	'ԝ': 'w', // cyrillic ԝ
	'α': 'a', // greek α
	'ι': 'i', // greek ι
	'ν': 'v', // greek ν
	'ο': 'o', // greek ο
	'ρ': 'p', // greek ρ
	'υ': 'u', // greek υ
	'ϲ': 'c', // greek ϲ
	'ɡ': 'g', // latin ɡ
	'ℓ': 'l', // script ℓ
}

// Skeleton reduces a string to a comparable ASCII-leaning form: NFKD
// decomposition, combining marks removed, known homoglyphs folded onto
// their Latin counterparts. Two visually-identical domains produce the
// same skeleton.
func Skeleton(s string) string {
	decomposed := norm.NFKD.String(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if folded, ok := confusableRunes[r]; ok {
			b.WriteRune(folded)
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}
