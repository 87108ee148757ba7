package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnnotation_DedupKey(t *testing.T) {
	base := Annotation{Location: "location 000064", Text: "some text", BackendID: "kindle_clippings"}

	t.Run("stable across irrelevant fields", func(t *testing.T) {
		other := base
		other.Note = "a note"
		other.Color = "#FFFFFF00"
		assert.Equal(t, base.DedupKey(), other.DedupKey())
	})

	t.Run("location distinguishes", func(t *testing.T) {
		other := base
		other.Location = "location 000065"
		assert.NotEqual(t, base.DedupKey(), other.DedupKey())
	})

	t.Run("text distinguishes", func(t *testing.T) {
		other := base
		other.Text = "different text"
		assert.NotEqual(t, base.DedupKey(), other.DedupKey())
	})

	t.Run("backend distinguishes", func(t *testing.T) {
		other := base
		other.BackendID = "tolino"
		assert.NotEqual(t, base.DedupKey(), other.DedupKey())
	})

	t.Run("field boundaries are unambiguous", func(t *testing.T) {
		a := Annotation{Location: "ab", Text: "c", BackendID: "x"}
		b := Annotation{Location: "a", Text: "bc", BackendID: "x"}
		assert.NotEqual(t, a.DedupKey(), b.DedupKey())
	})
}

func TestBookIdentity_HasStrongIdentifier(t *testing.T) {
	assert.False(t, BookIdentity{Title: "Dune"}.HasStrongIdentifier())
	assert.True(t, BookIdentity{ISBN: "9780441013593"}.HasStrongIdentifier())
	assert.True(t, BookIdentity{ASIN: "B000R5UGEE"}.HasStrongIdentifier())
	assert.True(t, BookIdentity{UUID: "calibre-uuid"}.HasStrongIdentifier())
	assert.False(t, BookIdentity{FileHash: "abc123"}.HasStrongIdentifier(), "file hash is a weak identifier")
}

func TestCatalogEntry_AuthorList(t *testing.T) {
	assert.Nil(t, CatalogEntry{}.AuthorList())
	assert.Equal(t, []string{"Frank Herbert"}, CatalogEntry{Authors: "Frank Herbert"}.AuthorList())
	assert.Equal(t,
		[]string{"Arkady Strugatsky", "Boris Strugatsky"},
		CatalogEntry{Authors: "Arkady Strugatsky & Boris Strugatsky"}.AuthorList())
}

func TestJoinAuthors(t *testing.T) {
	assert.Equal(t, "", JoinAuthors(nil))
	assert.Equal(t, "Arkady Strugatsky & Boris Strugatsky",
		JoinAuthors([]string{"Arkady Strugatsky", "Boris Strugatsky"}))
}

func TestBackendDescriptor_Has(t *testing.T) {
	d := BackendDescriptor{ID: "kobo", Capabilities: []Capability{CapabilityFetch}}
	assert.True(t, d.Has(CapabilityFetch))
	assert.False(t, d.Has(CapabilityExport))
}
