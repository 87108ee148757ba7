// Package kobo fetches annotations from a USB-attached Kobo device by
// reading the KoboReader.sqlite database on its mount point. Fetching is
// two-stage, mirroring how the device organizes its data: enumerate
// installed volumes, then read the Bookmark table per volume.
package kobo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"marginalia/internal/entities"
)

const BackendID = "kobo"

// contentTypeBook filters the content table to actual books; other rows
// are chapters and shortcovers.
const contentTypeBook = 6

// Backend reads a mounted Kobo device.
type Backend struct {
	root string

	mu      sync.Mutex
	volumes map[string]string // identity key -> VolumeID
}

// New addresses a device mounted at root. The caller decides which
// attached source maps to this backend; the backend only knows how to
// read it.
func New(root string) (*Backend, error) {
	dbPath := databasePath(root)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("no Kobo database at %s: %w", dbPath, err)
	}
	return &Backend{root: root, volumes: make(map[string]string)}, nil
}

func databasePath(root string) string {
	return filepath.Join(root, ".kobo", "KoboReader.sqlite")
}

func (b *Backend) Descriptor() entities.BackendDescriptor {
	return entities.BackendDescriptor{
		ID:           BackendID,
		Name:         "Kobo eReader",
		Capabilities: []entities.Capability{entities.CapabilityFetch},
	}
}

// ListInstalled enumerates the books on the device.
func (b *Backend) ListInstalled(ctx context.Context) ([]entities.BookIdentity, error) {
	db, err := sql.Open("sqlite3", databasePath(b.root))
	if err != nil {
		return nil, fmt.Errorf("failed to open device database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT ContentID, Title, IFNULL(Attribution, ''), IFNULL(ISBN, '')
		FROM content
		WHERE ContentType = ? AND Title IS NOT NULL
		ORDER BY Title`, contentTypeBook)
	if err != nil {
		return nil, fmt.Errorf("failed to query device content: %w", err)
	}
	defer rows.Close()

	var books []entities.BookIdentity
	b.mu.Lock()
	defer b.mu.Unlock()
	for rows.Next() {
		var volumeID, title, attribution, isbn string
		if err := rows.Scan(&volumeID, &title, &attribution, &isbn); err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		identity := entities.BookIdentity{
			Title: title,
			ISBN:  isbn,
		}
		if attribution != "" {
			identity.Authors = splitAttribution(attribution)
		}
		b.volumes[identityKey(identity)] = volumeID
		books = append(books, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content rows: %w", err)
	}
	return books, nil
}

// ListActiveAnnotations reads the Bookmark table for one installed book.
// The identity must come from a prior ListInstalled call on this backend;
// that call established the identity-to-volume mapping.
func (b *Backend) ListActiveAnnotations(ctx context.Context, book entities.BookIdentity) (*entities.AnnotationSet, error) {
	b.mu.Lock()
	volumeID, ok := b.volumes[identityKey(book)]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown volume for %q; list installed books first", book.Title)
	}

	db, err := sql.Open("sqlite3", databasePath(b.root))
	if err != nil {
		return nil, fmt.Errorf("failed to open device database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT BookmarkID, IFNULL(Text, ''), IFNULL(Annotation, ''),
		       IFNULL(Type, 'highlight'), ChapterProgress,
		       IFNULL(DateModified, DateCreated)
		FROM Bookmark
		WHERE VolumeID = ? AND Hidden = 'false'
		ORDER BY ChapterProgress, DateCreated`, volumeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer rows.Close()

	set := &entities.AnnotationSet{Book: book, BackendID: BackendID}
	for rows.Next() {
		var bookmarkID, text, note, kind string
		var progress float64
		var created sql.NullString
		if err := rows.Scan(&bookmarkID, &text, &note, &kind, &progress, &created); err != nil {
			return nil, fmt.Errorf("failed to scan bookmark row: %w", err)
		}

		set.Annotations = append(set.Annotations, entities.Annotation{
			Location:  fmt.Sprintf("progress %.4f", progress),
			Kind:      bookmarkKind(kind, text),
			Text:      text,
			Note:      note,
			Timestamp: parseDeviceTime(created.String),
			BackendID: BackendID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookmark rows: %w", err)
	}
	return set, nil
}

// bookmarkKind maps Kobo's Bookmark.Type to the canonical kind. Dog-ears
// are plain bookmarks; rows with a note but no selected text read as
// notes regardless of type.
func bookmarkKind(deviceType, text string) entities.AnnotationKind {
	switch deviceType {
	case "dogear":
		return entities.AnnotationKindBookmark
	case "note":
		return entities.AnnotationKindNote
	}
	if text == "" {
		return entities.AnnotationKindNote
	}
	return entities.AnnotationKindHighlight
}

var deviceTimeLayouts = []string{
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

func parseDeviceTime(s string) time.Time {
	for _, layout := range deviceTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func splitAttribution(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func identityKey(b entities.BookIdentity) string {
	return b.Title + "|" + strings.Join(b.Authors, "|")
}
