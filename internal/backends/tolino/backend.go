// Package tolino parses the "notes.txt" file Tolino devices keep, as an
// export-capable backend. Records are separated by a dashed line; each
// one is a book line, a status line naming the annotation kind and page,
// the text, and an "Added on" timestamp line.
package tolino

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"marginalia/internal/entities"
)

const BackendID = "tolino"

const recordSeparator = "-----------------------------------"

var (
	// "Highlight on page 12: selected text"
	statusPattern = regexp.MustCompile(`^(Highlight|Note|Bookmark) on page ([\d,.-]+):\s*(.*)$`)

	// "Title (Author)"; the last parenthesized block is the author
	bookLinePattern = regexp.MustCompile(`^(.+?)\s*\(([^()]+)\)\s*$`)

	addedPrefix = "Added on "

	// Timestamp layouts observed across firmware versions
	addedLayouts = []string{
		"01/02/2006 | 15:04",
		"01/02/2006 | 3:04 PM",
		"02.01.2006 | 15:04",
	}
)

// Backend parses Tolino notes.txt exports.
type Backend struct{}

func New() *Backend {
	return &Backend{}
}

func (b *Backend) Descriptor() entities.BackendDescriptor {
	return entities.BackendDescriptor{
		ID:           BackendID,
		Name:         "Tolino (notes.txt)",
		Capabilities: []entities.Capability{entities.CapabilityExport},
	}
}

func (b *Backend) Extensions() []string {
	return []string{"txt"}
}

type record struct {
	title  string
	author string
	kind   entities.AnnotationKind
	page   string
	text   string
	note   string
	added  time.Time
}

// Parse converts a single-book notes.txt blob to the canonical shape.
func (b *Backend) Parse(blob []byte) (*entities.AnnotationSet, error) {
	text := strings.ReplaceAll(string(blob), "\r\n", "\n")
	text = strings.ReplaceAll(text, " ", " ")

	var records []record
	for _, chunk := range strings.Split(text, recordSeparator+"\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		rec, err := parseRecord(chunk)
		if err != nil {
			// The separator can legitimately appear inside note text;
			// an unparseable chunk continues the previous record.
			if len(records) > 0 {
				prev := &records[len(records)-1]
				prev.text = prev.text + "\n" + recordSeparator + "\n" + chunk
				continue
			}
			return nil, fmt.Errorf("not a tolino notes file: %w", err)
		}
		records = append(records, *rec)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no tolino annotations found")
	}

	titles := distinctTitles(records)
	if len(titles) > 1 {
		return nil, fmt.Errorf("notes file spans %d books (%s); supply a per-book export",
			len(titles), strings.Join(titles, ", "))
	}

	set := &entities.AnnotationSet{
		Book:      entities.BookIdentity{Title: records[0].title},
		BackendID: BackendID,
	}
	if records[0].author != "" {
		set.Book.Authors = []string{records[0].author}
	}

	for _, rec := range records {
		set.Annotations = append(set.Annotations, entities.Annotation{
			Location:  "page " + rec.page,
			Kind:      rec.kind,
			Text:      rec.text,
			Note:      rec.note,
			Timestamp: rec.added,
			BackendID: BackendID,
		})
	}
	return set, nil
}

func parseRecord(chunk string) (*record, error) {
	lines := strings.Split(chunk, "\n")
	if len(lines) < 3 {
		return nil, fmt.Errorf("record too short")
	}

	var rec record
	rec.title = strings.TrimSpace(lines[0])
	if m := bookLinePattern.FindStringSubmatch(rec.title); m != nil {
		rec.title, rec.author = m[1], strings.TrimSpace(m[2])
	}

	status := statusPattern.FindStringSubmatch(strings.TrimSpace(lines[1]))
	if status == nil {
		return nil, fmt.Errorf("unrecognized status line %q", lines[1])
	}
	rec.page = strings.NewReplacer(",", "", ".", "").Replace(status[2])

	switch status[1] {
	case "Note":
		rec.kind = entities.AnnotationKindNote
	case "Bookmark":
		rec.kind = entities.AnnotationKindBookmark
	default:
		rec.kind = entities.AnnotationKindHighlight
	}

	// Last line is the timestamp; everything between the status line and
	// it continues the annotation text.
	last := strings.TrimSpace(lines[len(lines)-1])
	if !strings.HasPrefix(last, addedPrefix) {
		return nil, fmt.Errorf("missing timestamp line")
	}
	rec.added = parseAdded(strings.TrimPrefix(last, addedPrefix))

	body := status[3]
	if len(lines) > 3 {
		rest := strings.Join(lines[2:len(lines)-1], "\n")
		if body != "" {
			body = body + "\n" + rest
		} else {
			body = rest
		}
	}
	body = strings.TrimSpace(body)

	if rec.kind == entities.AnnotationKindNote {
		rec.note = body
	} else {
		rec.text = body
	}
	return &rec, nil
}

func parseAdded(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range addedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func distinctTitles(records []record) []string {
	seen := make(map[string]struct{})
	var titles []string
	for _, r := range records {
		if _, ok := seen[r.title]; !ok {
			seen[r.title] = struct{}{}
			titles = append(titles, r.title)
		}
	}
	return titles
}
