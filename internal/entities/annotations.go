package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Capability describes what a backend can do with its source.
type Capability string

const (
	// CapabilityFetch means the backend can probe a live-attached source
	// for installed books and their annotations.
	CapabilityFetch Capability = "fetch"
	// CapabilityExport means the backend can parse a supplied file that
	// the reader application exported.
	CapabilityExport Capability = "export"
)

// AnnotationKind classifies what the reader recorded at a location.
type AnnotationKind string

const (
	AnnotationKindHighlight AnnotationKind = "highlight"
	AnnotationKindNote      AnnotationKind = "note"
	AnnotationKindBookmark  AnnotationKind = "bookmark"
)

// BackendDescriptor identifies a registered backend. Created once at
// registration time and never mutated afterwards.
type BackendDescriptor struct {
	ID           string
	Name         string
	Capabilities []Capability
}

// Has reports whether the descriptor declares the given capability.
func (d BackendDescriptor) Has(c Capability) bool {
	for _, cap := range d.Capabilities {
		if cap == c {
			return true
		}
	}
	return false
}

// BookIdentity is the metadata a backend could recover about the book an
// annotation set belongs to. It is used only for matching against the
// catalog and is never mutated after creation.
type BookIdentity struct {
	Title   string
	Authors []string // ordered as the source reported them, may be empty

	// Strong identifiers. Any non-empty one is sufficient for an exact
	// catalog match on its own.
	ISBN string
	ASIN string
	UUID string

	// Weak identifiers.
	FileHash string
}

// HasStrongIdentifier reports whether any strong identifier is present.
func (b BookIdentity) HasStrongIdentifier() bool {
	return b.ISBN != "" || b.ASIN != "" || b.UUID != ""
}

// Annotation is the canonical shape for a single highlight, note or
// bookmark, independent of which reader produced it.
type Annotation struct {
	// Location is a source-defined position token. The engine treats it
	// as opaque and uses it only for ordering display and deduplication.
	Location  string
	Kind      AnnotationKind
	Text      string
	Note      string
	Color     string
	Chapter   string
	Timestamp time.Time
	BackendID string
}

// DedupKey returns the identity under which the store deduplicates
// annotations: location + text + originating backend.
func (a Annotation) DedupKey() string {
	h := sha256.New()
	h.Write([]byte(a.Location))
	h.Write([]byte{0})
	h.Write([]byte(a.Text))
	h.Write([]byte{0})
	h.Write([]byte(a.BackendID))
	return hex.EncodeToString(h.Sum(nil))
}

// AnnotationSet is the result of exactly one backend invocation: one book
// plus everything the reader recorded in it. Immutable once handed to the
// matching engine.
type AnnotationSet struct {
	Book        BookIdentity
	Annotations []Annotation
	BackendID   string
}
