package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 100))
	assert.Equal(t, "no limit", tp.TruncateText("no limit", 0))

	long := strings.Repeat("a", 50)
	got := tp.TruncateText(long, 10)
	assert.True(t, strings.HasPrefix(got, strings.Repeat("a", 10)))
	assert.Contains(t, got, "content truncated")

	// Truncation must not split a multi-byte rune.
	multibyte := strings.Repeat("é", 10)
	got = tp.TruncateText(multibyte, 3)
	assert.True(t, strings.HasPrefix(got, "é"))
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "already valid", tp.SanitizeUTF8("already valid"))

	invalid := "abc\xff\xfedef"
	got := tp.SanitizeUTF8(invalid)
	assert.Equal(t, "abcdef", got)
}

func TestSnippet(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "a b c", tp.Snippet("  a \n b \t c  ", 100))
	assert.Equal(t, "abcde...", tp.Snippet("abcdefghij", 5))
	assert.Equal(t, "", tp.Snippet("", 10))
}
