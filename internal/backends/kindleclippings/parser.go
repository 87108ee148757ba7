// Package kindleclippings parses the "My Clippings.txt" format Kindle
// devices accumulate, as an export-capable backend.
package kindleclippings

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// EntryType classifies a single clipping.
type EntryType string

const (
	EntryTypeHighlight EntryType = "highlight"
	EntryTypeNote      EntryType = "note"
	EntryTypeBookmark  EntryType = "bookmark"
)

// ClippingEntry is one record between two separator lines.
type ClippingEntry struct {
	Title       string
	Author      string
	Type        EntryType
	Page        int
	PageEnd     int
	Location    int
	LocationEnd int
	AddedAt     time.Time
	Text        string
}

const entrySeparator = "=========="

var (
	// Second line of every record, e.g.
	// "- Your Highlight on page 8 | Location 64-64 | Added on Tuesday, April 15, 2025 10:16:21 PM"
	// "- Your Bookmark at location 346 | Added on Saturday, 26 March 2016 15:46:21"
	metadataPattern = regexp.MustCompile(`^- Your (Highlight|Note|Bookmark)`)

	pagePattern     = regexp.MustCompile(`(?i)(?:on )?page (\d+)(?:-(\d+))?`)
	locationPattern = regexp.MustCompile(`(?i)(?:at )?location (\d+)(?:-(\d+))?`)

	// US and international firmware stamp dates differently.
	datePatterns = []string{
		"Added on Monday, January 2, 2006 3:04:05 PM",
		"Added on Monday, January 2, 2006 15:04:05",
		"Added on Monday, 2 January 2006 3:04:05 PM",
		"Added on Monday, 2 January 2006 15:04:05",
	}

	// "Book Title (Author Name)"; the parenthesized author is optional.
	titleAuthorPattern = regexp.MustCompile(`^(.+?)\s*\(([^)]+)\)\s*$`)
)

// parseEntries splits the stream on separator lines and parses each
// record. Malformed records are dropped, not fatal: a clippings file
// accumulates for years and a single corrupt entry should not block the
// rest.
func parseEntries(r io.Reader) ([]ClippingEntry, error) {
	scanner := bufio.NewScanner(r)

	var entries []ClippingEntry
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		if entry, err := parseEntry(current); err == nil {
			entries = append(entries, *entry)
		}
		current = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == entrySeparator {
			flush()
			continue
		}
		current = append(current, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading clippings: %w", err)
	}

	// Trailing record without a closing separator.
	flush()

	return entries, nil
}

func parseEntry(lines []string) (*ClippingEntry, error) {
	if len(lines) < 2 {
		return nil, fmt.Errorf("entry too short")
	}

	titleLine := strings.TrimSpace(lines[0])
	if titleLine == "" {
		return nil, fmt.Errorf("empty title line")
	}
	title, author := parseTitleAuthor(titleLine)

	metadataLine := strings.TrimSpace(lines[1])
	if !metadataPattern.MatchString(metadataLine) {
		return nil, fmt.Errorf("invalid metadata line")
	}

	entry := ClippingEntry{
		Title:   title,
		Author:  author,
		Type:    parseEntryType(metadataLine),
		AddedAt: parseDate(metadataLine),
	}
	entry.Page, entry.PageEnd = parseRange(pagePattern, metadataLine)
	entry.Location, entry.LocationEnd = parseRange(locationPattern, metadataLine)

	entry.Text = collectText(lines[2:])

	// Bookmarks legitimately carry no text; everything else must.
	if entry.Type != EntryTypeBookmark && entry.Text == "" {
		return nil, fmt.Errorf("empty content")
	}

	return &entry, nil
}

// collectText joins the content lines that follow the blank line after
// the metadata.
func collectText(lines []string) string {
	var textLines []string
	started := false
	for _, line := range lines {
		if !started && strings.TrimSpace(line) == "" {
			started = true
			continue
		}
		if started || strings.TrimSpace(line) != "" {
			started = true
			textLines = append(textLines, line)
		}
	}
	return strings.TrimSpace(strings.Join(textLines, "\n"))
}

func parseTitleAuthor(line string) (title, author string) {
	if m := titleAuthorPattern.FindStringSubmatch(line); len(m) == 3 {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return strings.TrimSpace(line), ""
}

func parseEntryType(line string) EntryType {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "your note"):
		return EntryTypeNote
	case strings.Contains(lower, "your bookmark"):
		return EntryTypeBookmark
	default:
		return EntryTypeHighlight
	}
}

func parseRange(pattern *regexp.Regexp, line string) (start, end int) {
	m := pattern.FindStringSubmatch(line)
	if len(m) >= 2 {
		start, _ = strconv.Atoi(m[1])
		if len(m) >= 3 && m[2] != "" {
			end, _ = strconv.Atoi(m[2])
		}
	}
	return
}

func parseDate(line string) time.Time {
	idx := strings.Index(strings.ToLower(line), "added on")
	if idx == -1 {
		return time.Time{}
	}
	dateStr := strings.TrimSpace("Added on" + line[idx+len("added on"):])

	for _, pattern := range datePatterns {
		if t, err := time.Parse(pattern, dateStr); err == nil {
			return t
		}
	}
	return time.Time{}
}
