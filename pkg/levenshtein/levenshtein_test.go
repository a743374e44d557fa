package levenshtein_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/jestify/pkg/levenshtein"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want int
	}{
		{"", "a", 1},
		{"a", "", 1},
		{"a", "a", 0},
		{"ab", "aaa", 2},
		{"kitten", "sitting", 3},
		{"sitting", "kitten", 3},
		{"aa", "aü", 1},
		{"Fön", "Föm", 1},
		{"equal", "eqaul", 2},
		{"insert", "inser", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein.Distance(tt.a, tt.b), "%q -> %q", tt.a, tt.b)
	}
}

func TestClosest(t *testing.T) {
	t.Parallel()

	vocabulary := []string{"equal", "eql", "include", "instanceof", "true"}

	got, ok := levenshtein.Closest("ture", vocabulary, 2)
	assert.True(t, ok)
	assert.Equal(t, "true", got)

	got, ok = levenshtein.Closest("equals", vocabulary, 2)
	assert.True(t, ok)
	assert.Equal(t, "equal", got)

	_, ok = levenshtein.Closest("sparkle", vocabulary, 2)
	assert.False(t, ok)

	_, ok = levenshtein.Closest("eql", vocabulary, 2)
	assert.False(t, ok)
}
