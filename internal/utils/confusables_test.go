package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkeleton(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain ascii unchanged", "google.com", "google.com"},
		{"lowercases", "PayPal.COM", "paypal.com"},
		{"cyrillic o folded", "gооgle.com", "google.com"},
		{"greek omicron folded", "micrοsoft.com", "microsoft.com"},
		{"diacritics stripped", "paýpal.com", "paypal.com"},
		{"mixed homoglyphs", "аmаzon.com", "amazon.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Skeleton(tt.in))
		})
	}
}

func TestSkeletonDetectsLookalike(t *testing.T) {
	// A homograph domain folds onto the brand it imitates while the raw
	// strings differ.
	spoofed := "gооgle.com"
	assert.NotEqual(t, "google.com", spoofed)
	assert.Equal(t, Skeleton("google.com"), Skeleton(spoofed))
}
