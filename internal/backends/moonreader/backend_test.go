package moonreader

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marginalia/internal/entities"
)

const notesSchema = `
CREATE TABLE notes (
	_id INTEGER PRIMARY KEY,
	book TEXT,
	filename TEXT,
	highlightColor TEXT,
	time INTEGER,
	bookmark TEXT,
	note TEXT,
	original TEXT,
	underline INTEGER,
	strikethrough INTEGER
);
`

type testNote struct {
	id       int64
	book     string
	filename string
	color    string
	timeMs   int64
	bookmark string
	note     string
	original string
}

// buildBackup writes a Moon+ Reader-shaped sqlite database and returns
// its raw bytes, the way an uploaded backup arrives.
func buildBackup(t *testing.T, notes []testNote) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mrbooks.db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(notesSchema)
	require.NoError(t, err)

	for _, n := range notes {
		_, err = db.Exec(
			`INSERT INTO notes (_id, book, filename, highlightColor, time, bookmark, note, original, underline, strikethrough)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, 0)`,
			n.id, n.book, n.filename, n.color, n.timeMs, n.bookmark, n.note, n.original,
		)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	blob, err := os.ReadFile(path)
	require.NoError(t, err)
	return blob
}

func TestBackend_Parse(t *testing.T) {
	blob := buildBackup(t, []testNote{
		{id: 1, book: "Roadside Picnic", filename: "/sdcard/Books/Roadside Picnic - Arkady Strugatsky.epub",
			color: "-256", timeMs: 1713219381000, bookmark: "Chapter 1", original: "Happiness for everybody, free, and no one will go away unsatisfied!"},
		{id: 2, book: "Roadside Picnic", filename: "/sdcard/Books/Roadside Picnic - Arkady Strugatsky.epub",
			color: "-256", timeMs: 1713219400000, bookmark: "Chapter 2", note: "the zone as metaphor"},
	})

	b := New()
	set, err := b.Parse(blob)
	require.NoError(t, err)

	assert.Equal(t, "Roadside Picnic", set.Book.Title)
	assert.Equal(t, []string{"Arkady Strugatsky"}, set.Book.Authors)
	assert.Equal(t, BackendID, set.BackendID)
	require.Len(t, set.Annotations, 2)

	highlight := set.Annotations[0]
	assert.Equal(t, "id 1", highlight.Location)
	assert.Equal(t, entities.AnnotationKindHighlight, highlight.Kind)
	assert.Equal(t, "Happiness for everybody, free, and no one will go away unsatisfied!", highlight.Text)
	assert.Equal(t, "#FFFFFF00", highlight.Color)
	assert.Equal(t, "Chapter 1", highlight.Chapter)
	assert.EqualValues(t, 1713219381000, highlight.Timestamp.UnixMilli())

	note := set.Annotations[1]
	assert.Equal(t, entities.AnnotationKindNote, note.Kind, "row without selected text is a note")
	assert.Equal(t, "the zone as metaphor", note.Note)
	assert.Empty(t, note.Text)
}

func TestBackend_Parse_MultiBookRejected(t *testing.T) {
	blob := buildBackup(t, []testNote{
		{id: 1, book: "Roadside Picnic", original: "first", color: "-256"},
		{id: 2, book: "Hard to Be a God", original: "second", color: "-256"},
	})

	b := New()
	_, err := b.Parse(blob)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Roadside Picnic")
	assert.Contains(t, err.Error(), "Hard to Be a God")
}

func TestBackend_Parse_EmptyDatabase(t *testing.T) {
	blob := buildBackup(t, nil)

	b := New()
	_, err := b.Parse(blob)
	assert.Error(t, err)
}

func TestBackend_Parse_RejectsNonSqlite(t *testing.T) {
	b := New()

	_, err := b.Parse([]byte("just some text"))
	assert.Error(t, err)

	_, err = b.Parse([]byte("PK\x03\x04compressed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mrpro")
}

func TestBackend_Extensions(t *testing.T) {
	assert.Equal(t, []string{"db", "sqlite", "mrpro"}, New().Extensions())
}
