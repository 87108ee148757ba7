// Package moonreader parses Moon+ Reader backup databases as an
// export-capable backend. The blob is the sqlite database itself; it is
// staged to a temporary file because the sqlite driver wants a path.
package moonreader

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"marginalia/internal/entities"
	"marginalia/internal/utils"
)

const BackendID = "moonreader"

var sqliteMagic = []byte("SQLite format 3\x00")

// Backend parses Moon+ Reader backup databases.
type Backend struct{}

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Descriptor() entities.BackendDescriptor {
	return entities.BackendDescriptor{
		ID:           BackendID,
		Name:         "Moon+ Reader",
		Capabilities: []entities.Capability{entities.CapabilityExport},
	}
}

func (b *Backend) Extensions() []string {
	return []string{"db", "sqlite", "mrpro"}
}

// note is the raw row shape of Moon+ Reader's notes table.
type note struct {
	ID             int64
	BookTitle      string
	Filename       string
	HighlightColor string
	TimeMs         int64
	Bookmark       string
	Note           string
	Original       string
	Underline      int
	Strikethrough  int
}

// Parse stages the blob and reads its notes table.
func (b *Backend) Parse(blob []byte) (*entities.AnnotationSet, error) {
	if bytes.HasPrefix(blob, []byte("PK")) {
		return nil, fmt.Errorf("compressed .mrpro backup; extract the database from it first")
	}
	if !bytes.HasPrefix(blob, sqliteMagic) {
		return nil, fmt.Errorf("not a sqlite database")
	}

	tmp, err := os.CreateTemp("", "moonreader-*.db")
	if err != nil {
		return nil, fmt.Errorf("failed to stage database: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to stage database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to stage database: %w", err)
	}

	notes, err := readNotes(tmp.Name())
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("no notes found in database")
	}

	titles := distinctTitles(notes)
	if len(titles) > 1 {
		return nil, fmt.Errorf("backup spans %d books (%s); supply a per-book export",
			len(titles), strings.Join(titles, ", "))
	}

	return toSet(notes), nil
}

func readNotes(dbPath string) ([]note, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	query := `
		SELECT
			_id,
			book,
			filename,
			highlightColor,
			time,
			bookmark,
			note,
			original,
			underline,
			strikethrough
		FROM notes;
	`

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []note
	for rows.Next() {
		var n note
		var bookmark, noteText, original sql.NullString
		var underline, strikethrough sql.NullInt64

		err := rows.Scan(
			&n.ID,
			&n.BookTitle,
			&n.Filename,
			&n.HighlightColor,
			&n.TimeMs,
			&bookmark,
			&noteText,
			&original,
			&underline,
			&strikethrough,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		n.Bookmark = bookmark.String
		n.Note = noteText.String
		n.Original = original.String
		if underline.Valid {
			n.Underline = int(underline.Int64)
		}
		if strikethrough.Valid {
			n.Strikethrough = int(strikethrough.Int64)
		}
		notes = append(notes, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return notes, nil
}

func toSet(notes []note) *entities.AnnotationSet {
	first := notes[0]
	set := &entities.AnnotationSet{
		Book: entities.BookIdentity{
			Title: first.BookTitle,
		},
		BackendID: BackendID,
	}
	if author := utils.ExtractAuthorFromFilename(first.Filename, first.BookTitle); author != "" {
		set.Book.Authors = []string{author}
	}

	for _, n := range notes {
		text := n.Original
		noteText := n.Note
		kind := entities.AnnotationKindHighlight
		if text == "" && noteText != "" {
			kind = entities.AnnotationKindNote
		}

		color, err := utils.InternalColorToHexARGB(n.HighlightColor)
		if err != nil {
			color = ""
		}

		set.Annotations = append(set.Annotations, entities.Annotation{
			Location:  "id " + strconv.FormatInt(n.ID, 10),
			Kind:      kind,
			Text:      text,
			Note:      noteText,
			Color:     color,
			Chapter:   n.Bookmark,
			Timestamp: time.UnixMilli(n.TimeMs),
			BackendID: BackendID,
		})
	}
	return set
}

func distinctTitles(notes []note) []string {
	seen := make(map[string]struct{})
	var titles []string
	for _, n := range notes {
		if _, ok := seen[n.BookTitle]; !ok {
			seen[n.BookTitle] = struct{}{}
			titles = append(titles, n.BookTitle)
		}
	}
	return titles
}
