package tolino

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginalia/internal/entities"
)

const sampleNotes = `The Glass Bead Game (Hermann Hesse)
Highlight on page 12: There is truth, my boy. But the doctrine you desire does not exist.
Added on 04/15/2025 | 22:16
-----------------------------------
The Glass Bead Game (Hermann Hesse)
Note on page 48: Knecht's first doubt appears here
Added on 04/16/2025 | 09:30
-----------------------------------
The Glass Bead Game (Hermann Hesse)
Bookmark on page 102:
Added on 04/17/2025 | 18:05
-----------------------------------
`

func TestBackend_Parse(t *testing.T) {
	b := New()

	set, err := b.Parse([]byte(sampleNotes))
	require.NoError(t, err)

	assert.Equal(t, "The Glass Bead Game", set.Book.Title)
	assert.Equal(t, []string{"Hermann Hesse"}, set.Book.Authors)
	assert.Equal(t, BackendID, set.BackendID)
	require.Len(t, set.Annotations, 3)

	highlight := set.Annotations[0]
	assert.Equal(t, entities.AnnotationKindHighlight, highlight.Kind)
	assert.Equal(t, "page 12", highlight.Location)
	assert.Equal(t, "There is truth, my boy. But the doctrine you desire does not exist.", highlight.Text)
	assert.Equal(t, time.Date(2025, 4, 15, 22, 16, 0, 0, time.UTC), highlight.Timestamp)

	note := set.Annotations[1]
	assert.Equal(t, entities.AnnotationKindNote, note.Kind)
	assert.Equal(t, "Knecht's first doubt appears here", note.Note)
	assert.Empty(t, note.Text)

	bookmark := set.Annotations[2]
	assert.Equal(t, entities.AnnotationKindBookmark, bookmark.Kind)
	assert.Equal(t, "page 102", bookmark.Location)
	assert.Empty(t, bookmark.Text)
}

func TestBackend_Parse_CRLFAndNbsp(t *testing.T) {
	input := strings.ReplaceAll(sampleNotes, "\n", "\r\n")
	input = strings.ReplaceAll(input, "Added on", "Added on")

	b := New()
	set, err := b.Parse([]byte(input))
	require.NoError(t, err)
	assert.Len(t, set.Annotations, 3)
}

func TestBackend_Parse_SeparatorInsideNote(t *testing.T) {
	// The second record's text contains a verbatim dashed line, splitting
	// it across chunks; the orphaned pieces rejoin the previous record
	// instead of failing the whole file.
	input := `The Glass Bead Game (Hermann Hesse)
Highlight on page 12: There is truth, my boy.
Added on 04/15/2025 | 22:16
-----------------------------------
a stray continuation the device emitted
after a literal dashed line
-----------------------------------
`
	b := New()
	set, err := b.Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, set.Annotations, 1)
	assert.Contains(t, set.Annotations[0].Text, "There is truth, my boy.")
	assert.Contains(t, set.Annotations[0].Text, "a stray continuation")
}

func TestBackend_Parse_MultiBookRejected(t *testing.T) {
	input := `Book One (Author A)
Highlight on page 1: first
Added on 04/15/2025 | 22:16
-----------------------------------
Book Two (Author B)
Highlight on page 2: second
Added on 04/15/2025 | 22:17
-----------------------------------
`
	b := New()
	_, err := b.Parse([]byte(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Book One")
	assert.Contains(t, err.Error(), "Book Two")
}

func TestBackend_Parse_PageNumberCleanup(t *testing.T) {
	input := `Some Book (Someone)
Highlight on page 1,024: large page number
Added on 04/15/2025 | 22:16
-----------------------------------
`
	b := New()
	set, err := b.Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, set.Annotations, 1)
	assert.Equal(t, "page 1024", set.Annotations[0].Location)
}

func TestBackend_Parse_Garbage(t *testing.T) {
	b := New()

	_, err := b.Parse([]byte("definitely not a notes file"))
	assert.Error(t, err)

	_, err = b.Parse([]byte(""))
	assert.Error(t, err)
}

func TestBackend_Extensions(t *testing.T) {
	assert.Equal(t, []string{"txt"}, New().Extensions())
}
