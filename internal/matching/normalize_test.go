package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Dune Messiah", "dune messiah"},
		{"strips diacritics", "Café Révolution", "cafe revolution"},
		{"strips punctuation", "Foundation's Edge: A Novel!", "foundation s edge a novel"},
		{"collapses whitespace", "  The   Left Hand\tof Darkness ", "the left hand of darkness"},
		{"keeps digits", "1984", "1984"},
		{"empty", "", ""},
		{"only punctuation", "...!?", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestJaccard(t *testing.T) {
	t.Run("identical sets", func(t *testing.T) {
		a := tokens("foundation and empire")
		assert.Equal(t, 1.0, jaccard(a, tokens("Foundation and Empire")))
	})

	t.Run("disjoint sets", func(t *testing.T) {
		assert.Equal(t, 0.0, jaccard(tokens("dune"), tokens("hyperion")))
	})

	t.Run("partial overlap", func(t *testing.T) {
		// {foundation} vs {foundation, and, empire}: 1 of 3
		got := jaccard(tokens("Foundation"), tokens("Foundation and Empire"))
		assert.InDelta(t, 1.0/3.0, got, 1e-9)
	})

	t.Run("both empty counts as identical", func(t *testing.T) {
		assert.Equal(t, 1.0, jaccard(tokens(""), tokens("")))
	})

	t.Run("one empty counts as disjoint", func(t *testing.T) {
		assert.Equal(t, 0.0, jaccard(tokens(""), tokens("dune")))
	})
}

func TestAuthorTokens(t *testing.T) {
	t.Run("order insensitive", func(t *testing.T) {
		a := authorTokens([]string{"Isaac Asimov", "Robert Silverberg"})
		b := authorTokens([]string{"Silverberg, Robert", "Asimov, Isaac"})
		assert.Equal(t, 1.0, jaccard(a, b))
	})

	t.Run("empty list", func(t *testing.T) {
		assert.Empty(t, authorTokens(nil))
	})
}
