// Package catalog provides the read-only book catalog the matching engine
// consults. Library is the sqlite-backed implementation used by the
// shipped binary; the engine only depends on the matching.Catalog
// interface, so tests and embedders can substitute their own.
package catalog

import (
	"fmt"

	"gorm.io/gorm"

	"marginalia/internal/entities"
)

type Library struct {
	db *gorm.DB
}

func NewLibrary(db *gorm.DB) *Library {
	return &Library{db: db}
}

// FindCandidates pre-filters entries that could plausibly be the book:
// any strong-identifier hit plus case-insensitive exact title matches.
// The matching engine falls back to a full scan when this returns nothing.
func (l *Library) FindCandidates(identity entities.BookIdentity) ([]entities.CatalogEntry, error) {
	var out []entities.CatalogEntry
	q := l.db.Where("LOWER(title) = LOWER(?)", identity.Title)
	if identity.ISBN != "" {
		q = q.Or("isbn = ?", identity.ISBN)
	}
	if identity.ASIN != "" {
		q = q.Or("asin = ?", identity.ASIN)
	}
	if identity.UUID != "" {
		q = q.Or("uuid = ?", identity.UUID)
	}
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to query catalog candidates: %w", err)
	}
	return out, nil
}

// AllEntries returns the whole catalog in a deterministic order.
func (l *Library) AllEntries() ([]entities.CatalogEntry, error) {
	var out []entities.CatalogEntry
	if err := l.db.Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	return out, nil
}

// Add inserts an entry; used to seed the catalog and by tests.
func (l *Library) Add(entry *entities.CatalogEntry) error {
	if err := l.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to add catalog entry: %w", err)
	}
	return nil
}

// Get looks an entry up by ID.
func (l *Library) Get(id uint) (*entities.CatalogEntry, error) {
	var entry entities.CatalogEntry
	if err := l.db.First(&entry, id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}
