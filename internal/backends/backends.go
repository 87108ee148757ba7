// Package backends defines the contract every pluggable annotation source
// implements, and the registry that indexes the backends enabled for a run.
//
// A backend is one reader device or application. It declares which
// capabilities it supports and implements the matching interface(s):
//
//	CapabilityFetch  -> Fetcher (probe a live-attached source)
//	CapabilityExport -> Parser (parse a file the reader exported)
//
// Adding a new reader means writing a new package under
// internal/backends/ and registering it; the engine itself never changes.
package backends

import (
	"context"

	"marginalia/internal/entities"
)

// Backend is the minimal surface every source implements.
type Backend interface {
	Descriptor() entities.BackendDescriptor
}

// Fetcher probes a live-attached source the backend knows how to address.
type Fetcher interface {
	Backend

	// ListInstalled enumerates the books present on the source.
	ListInstalled(ctx context.Context) ([]entities.BookIdentity, error)

	// ListActiveAnnotations returns everything the reader recorded for
	// one installed book.
	ListActiveAnnotations(ctx context.Context, book entities.BookIdentity) (*entities.AnnotationSet, error)
}

// Parser accepts raw exported file content. A parser that does not
// recognize the blob returns an error; the import orchestrator then moves
// on to the next registered backend.
type Parser interface {
	Backend

	Parse(blob []byte) (*entities.AnnotationSet, error)
}

// ExtensionHinter is optionally implemented by Parser backends to declare
// which file extensions they accept. The import orchestrator uses the hint
// to skip incompatible backends; it never reorders the trial.
type ExtensionHinter interface {
	Extensions() []string
}
