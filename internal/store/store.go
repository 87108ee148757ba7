// Package store durably persists approved annotation sets. Merging is the
// only mutation: it inserts annotations whose dedup key is unseen and
// never deletes anything, so repeated imports of the same source are
// idempotent.
package store

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"gorm.io/gorm"

	"marginalia/internal/entities"
)

// ErrDeveloperModeDisabled guards the destructive purge operation.
var ErrDeveloperModeDisabled = errors.New("purge requires developer mode")

// PersistenceError wraps a storage failure. The failed merge batch is
// rolled back in full; previously stored data is never affected.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// mergeStripes bounds the lock table for per-key merge serialization.
const mergeStripes = 64

// Store owns all persisted annotation state.
type Store struct {
	db            *gorm.DB
	developerMode bool

	// Merges against the same (catalog entry, backend) key must be
	// strictly ordered to preserve the dedup invariant; different keys
	// may merge concurrently. Striped locks keep the table bounded.
	locks [mergeStripes]sync.Mutex
}

// New creates a store. developerMode explicitly enables PurgeAll; it is a
// constructor argument rather than ambient state so the destructive path
// is visible at the call site.
func New(db *gorm.DB, developerMode bool) *Store {
	return &Store{db: db, developerMode: developerMode}
}

// MergeResult reports what one merge batch changed.
type MergeResult struct {
	Added   int `json:"added"`
	Skipped int `json:"skipped"` // already present under the same dedup key
}

// Merge records the given annotations under (catalogEntryID, backendID).
// Annotations whose dedup key already exists for that key are skipped;
// the batch is atomic, so a storage failure leaves the set untouched.
func (s *Store) Merge(catalogEntryID uint, backendID string, annotations []entities.Annotation) (MergeResult, error) {
	lock := s.lockFor(catalogEntryID, backendID)
	lock.Lock()
	defer lock.Unlock()

	var result MergeResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var set entities.StoredAnnotationSet
		err := tx.Where("catalog_entry_id = ? AND backend_id = ?", catalogEntryID, backendID).
			First(&set).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			set = entities.StoredAnnotationSet{CatalogEntryID: catalogEntryID, BackendID: backendID}
			if err := tx.Create(&set).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		existing := make(map[string]struct{})
		var keys []string
		if err := tx.Model(&entities.StoredAnnotation{}).
			Where("set_id = ?", set.ID).
			Pluck("dedup_key", &keys).Error; err != nil {
			return err
		}
		for _, k := range keys {
			existing[k] = struct{}{}
		}

		for _, a := range annotations {
			key := a.DedupKey()
			if _, seen := existing[key]; seen {
				result.Skipped++
				continue
			}
			existing[key] = struct{}{}

			row := entities.StoredAnnotation{
				SetID:     set.ID,
				DedupKey:  key,
				Location:  a.Location,
				Kind:      string(a.Kind),
				Text:      a.Text,
				Note:      a.Note,
				Color:     a.Color,
				Chapter:   a.Chapter,
				Timestamp: a.Timestamp,
				BackendID: a.BackendID,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			result.Added++
		}
		return nil
	})
	if err != nil {
		return MergeResult{}, &PersistenceError{Op: "merge", Err: err}
	}
	return result, nil
}

// Annotations returns the stored sequence for a key, in insertion order.
func (s *Store) Annotations(catalogEntryID uint, backendID string) ([]entities.StoredAnnotation, error) {
	var set entities.StoredAnnotationSet
	err := s.db.Where("catalog_entry_id = ? AND backend_id = ?", catalogEntryID, backendID).
		First(&set).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Op: "read", Err: err}
	}

	var rows []entities.StoredAnnotation
	if err := s.db.Where("set_id = ?", set.ID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, &PersistenceError{Op: "read", Err: err}
	}
	return rows, nil
}

// Count returns how many annotations are stored under a key.
func (s *Store) Count(catalogEntryID uint, backendID string) (int64, error) {
	var count int64
	err := s.db.Model(&entities.StoredAnnotation{}).
		Joins("JOIN stored_annotation_sets ON stored_annotation_sets.id = stored_annotations.set_id").
		Where("stored_annotation_sets.catalog_entry_id = ? AND stored_annotation_sets.backend_id = ?",
			catalogEntryID, backendID).
		Count(&count).Error
	if err != nil {
		return 0, &PersistenceError{Op: "count", Err: err}
	}
	return count, nil
}

// PurgeAll deletes every stored annotation. Only available in developer
// mode and never invoked implicitly.
func (s *Store) PurgeAll() error {
	if !s.developerMode {
		return ErrDeveloperModeDisabled
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&entities.StoredAnnotation{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&entities.StoredAnnotationSet{}).Error
	})
	if err != nil {
		return &PersistenceError{Op: "purge", Err: err}
	}
	return nil
}

func (s *Store) lockFor(catalogEntryID uint, backendID string) *sync.Mutex {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d|%s", catalogEntryID, backendID)
	return &s.locks[h.Sum32()%mergeStripes]
}
