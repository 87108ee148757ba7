package entities

import "time"

// StoredAnnotationSet is the durable form of an approved annotation set,
// keyed by (catalog entry, backend). Merges only ever add StoredAnnotation
// rows; a set is never replaced wholesale.
type StoredAnnotationSet struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	CatalogEntryID uint               `gorm:"uniqueIndex:idx_set_key;index" json:"catalog_entry_id"`
	BackendID      string             `gorm:"uniqueIndex:idx_set_key;size:50" json:"backend_id"`
	Annotations    []StoredAnnotation `gorm:"foreignKey:SetID" json:"annotations,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func (StoredAnnotationSet) TableName() string {
	return "stored_annotation_sets"
}

// StoredAnnotation is one persisted annotation row. DedupKey is unique
// within its set so that re-merging the same source data is a no-op.
type StoredAnnotation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SetID     uint      `gorm:"uniqueIndex:idx_ann_dedup;index" json:"set_id"`
	DedupKey  string    `gorm:"uniqueIndex:idx_ann_dedup;size:64" json:"dedup_key"`
	Location  string    `gorm:"size:256" json:"location"`
	Kind      string    `gorm:"size:20" json:"kind"`
	Text      string    `gorm:"type:text" json:"text,omitempty"`
	Note      string    `gorm:"type:text" json:"note,omitempty"`
	Color     string    `gorm:"size:20" json:"color,omitempty"`
	Chapter   string    `gorm:"size:256" json:"chapter,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	BackendID string    `gorm:"size:50" json:"backend_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (StoredAnnotation) TableName() string {
	return "stored_annotations"
}

// SchemaInfo tags the persisted layout so a future engine version can
// detect and migrate older data.
type SchemaInfo struct {
	ID      uint `gorm:"primaryKey"`
	Version int
}

func (SchemaInfo) TableName() string {
	return "schema_info"
}
