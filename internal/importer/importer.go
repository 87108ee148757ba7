// Package importer drives export-capable backends against a supplied
// file. Blobs are not self-describing, so backends are tried strictly in
// registration order and the first parser that accepts the blob wins;
// that order is part of the observable contract, not a loop detail.
package importer

import (
	"fmt"
	"strings"

	"marginalia/internal/backends"
	"marginalia/internal/entities"
)

// Attempt records one backend's refusal during a trial.
type Attempt struct {
	BackendID string
	Err       error
	Skipped   bool // skipped on extension hint, parser never invoked
}

// UnrecognizedFormatError means no registered backend accepted the blob.
// It carries every backend's refusal so the user can see why.
type UnrecognizedFormatError struct {
	Hint     string
	Attempts []Attempt
}

func (e *UnrecognizedFormatError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "no backend recognized the supplied file")
	if e.Hint != "" {
		fmt.Fprintf(&b, " (%s)", e.Hint)
	}
	for _, a := range e.Attempts {
		if a.Skipped {
			fmt.Fprintf(&b, "; %s: skipped by extension", a.BackendID)
		} else {
			fmt.Fprintf(&b, "; %s: %v", a.BackendID, a.Err)
		}
	}
	return b.String()
}

// Orchestrator tries registered parsers against supplied blobs.
type Orchestrator struct {
	registry *backends.Registry
}

func New(registry *backends.Registry) *Orchestrator {
	return &Orchestrator{registry: registry}
}

// ImportBlob parses the blob with the first accepting backend. hint is the
// declared file extension or MIME type, if known; it lets backends that
// declared incompatible extensions be skipped, but never reorders the
// trial. Exactly one AnnotationSet results from a successful parse.
func (o *Orchestrator) ImportBlob(blob []byte, hint string) (*entities.AnnotationSet, error) {
	var attempts []Attempt

	for _, b := range o.registry.Query(entities.CapabilityExport) {
		parser := b.(backends.Parser) // guaranteed by registration-time validation
		id := b.Descriptor().ID

		if !acceptsHint(b, hint) {
			attempts = append(attempts, Attempt{BackendID: id, Skipped: true})
			continue
		}

		set, err := parser.Parse(blob)
		if err != nil {
			attempts = append(attempts, Attempt{BackendID: id, Err: err})
			continue
		}

		if set.BackendID == "" {
			set.BackendID = id
		}
		return set, nil
	}

	return nil, &UnrecognizedFormatError{Hint: hint, Attempts: attempts}
}

// acceptsHint reports whether the backend should be tried for the given
// extension/MIME hint. Backends without a declared extension list accept
// everything, as does an empty hint.
func acceptsHint(b backends.Backend, hint string) bool {
	hinter, ok := b.(backends.ExtensionHinter)
	if !ok || hint == "" {
		return true
	}
	exts := hinter.Extensions()
	if len(exts) == 0 {
		return true
	}
	hint = strings.ToLower(strings.TrimPrefix(hint, "."))
	for _, ext := range exts {
		if strings.ToLower(strings.TrimPrefix(ext, ".")) == hint {
			return true
		}
	}
	return false
}
