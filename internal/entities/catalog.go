package entities

import (
	"strings"
	"time"
)

// authorSeparator is how the catalog stores multi-author books in a
// single column, matching calibre's display convention.
const authorSeparator = " & "

// CatalogEntry is one book in the user's catalog. The matching engine
// treats entries as a read-only snapshot; only the catalog library itself
// writes them.
type CatalogEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"index;size:512" json:"title"`
	Authors   string    `gorm:"size:512" json:"authors"`
	ISBN      string    `gorm:"index;size:20" json:"isbn,omitempty"`
	ASIN      string    `gorm:"size:20" json:"asin,omitempty"`
	UUID      string    `gorm:"index;size:64" json:"uuid,omitempty"`
	FileHash  string    `gorm:"index;size:64" json:"file_hash,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (CatalogEntry) TableName() string {
	return "catalog_entries"
}

// AuthorList splits the stored author string back into the ordered list.
func (e CatalogEntry) AuthorList() []string {
	if e.Authors == "" {
		return nil
	}
	return strings.Split(e.Authors, authorSeparator)
}

// JoinAuthors renders an author list in the catalog's storage convention.
func JoinAuthors(authors []string) string {
	return strings.Join(authors, authorSeparator)
}
