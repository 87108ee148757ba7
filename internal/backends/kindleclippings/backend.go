package kindleclippings

import (
	"bytes"
	"fmt"
	"strings"

	"marginalia/internal/entities"
)

const BackendID = "kindle_clippings"

// MultiBookError means the clippings blob spans several books. One parse
// yields one annotation set, so the caller has to supply a per-book
// export (newer Kindle firmware exports notebooks per book) or split the
// file. The covered titles are listed so nothing is dropped silently.
type MultiBookError struct {
	Titles []string
}

func (e *MultiBookError) Error() string {
	return fmt.Sprintf("clippings file spans %d books (%s); supply a per-book export",
		len(e.Titles), strings.Join(e.Titles, ", "))
}

// Backend parses Kindle "My Clippings.txt" exports.
type Backend struct{}

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Descriptor() entities.BackendDescriptor {
	return entities.BackendDescriptor{
		ID:           BackendID,
		Name:         "Kindle (My Clippings)",
		Capabilities: []entities.Capability{entities.CapabilityExport},
	}
}

func (b *Backend) Extensions() []string {
	return []string{"txt"}
}

// Parse reads a clippings blob covering a single book and converts it to
// the canonical shape. Notes immediately following a highlight at the
// same location are folded into that highlight, the way the device pairs
// them.
func (b *Backend) Parse(blob []byte) (*entities.AnnotationSet, error) {
	entries, err := parseEntries(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no clippings entries found")
	}

	titles := distinctBooks(entries)
	if len(titles) > 1 {
		return nil, &MultiBookError{Titles: titles}
	}

	set := &entities.AnnotationSet{
		Book: entities.BookIdentity{
			Title: entries[0].Title,
		},
		BackendID: BackendID,
	}
	if entries[0].Author != "" {
		set.Book.Authors = []string{entries[0].Author}
	}

	for i, e := range entries {
		location := locationToken(e, i)

		if e.Type == EntryTypeNote {
			// A note at the location of the previous highlight annotates it.
			if len(set.Annotations) > 0 {
				last := &set.Annotations[len(set.Annotations)-1]
				if last.Kind == entities.AnnotationKindHighlight && last.Location == location && last.Note == "" {
					last.Note = e.Text
					continue
				}
			}
			// Editing a note appends a fresh record at the same location;
			// the later body supersedes the earlier one.
			if prev := standaloneNoteAt(set.Annotations, location); prev != nil {
				prev.Note = e.Text
				prev.Timestamp = e.AddedAt
				continue
			}
		}

		set.Annotations = append(set.Annotations, entities.Annotation{
			Location:  location,
			Kind:      kindOf(e.Type),
			Text:      highlightText(e),
			Note:      noteText(e),
			Timestamp: e.AddedAt,
			BackendID: BackendID,
		})
	}

	return set, nil
}

// locationToken renders the entry's position as the opaque token the
// engine sorts and deduplicates by. Kindle locations sort correctly when
// zero-padded.
func locationToken(e ClippingEntry, index int) string {
	if e.Location > 0 {
		return fmt.Sprintf("location %06d", e.Location)
	}
	if e.Page > 0 {
		return fmt.Sprintf("page %06d", e.Page)
	}
	return fmt.Sprintf("entry %04d", index)
}

func kindOf(t EntryType) entities.AnnotationKind {
	switch t {
	case EntryTypeNote:
		return entities.AnnotationKindNote
	case EntryTypeBookmark:
		return entities.AnnotationKindBookmark
	default:
		return entities.AnnotationKindHighlight
	}
}

func highlightText(e ClippingEntry) string {
	if e.Type == EntryTypeHighlight {
		return e.Text
	}
	return ""
}

func noteText(e ClippingEntry) string {
	if e.Type == EntryTypeNote {
		return e.Text
	}
	return ""
}

func standaloneNoteAt(annotations []entities.Annotation, location string) *entities.Annotation {
	for i := range annotations {
		if annotations[i].Kind == entities.AnnotationKindNote && annotations[i].Location == location {
			return &annotations[i]
		}
	}
	return nil
}

// distinctBooks lists the titles present, first occurrence first.
func distinctBooks(entries []ClippingEntry) []string {
	seen := make(map[string]struct{})
	var titles []string
	for _, e := range entries {
		if _, ok := seen[e.Title]; !ok {
			seen[e.Title] = struct{}{}
			titles = append(titles, e.Title)
		}
	}
	return titles
}
