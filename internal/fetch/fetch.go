// Package fetch drives fetch-capable backends against a live-attached
// source. Probing a device can block on I/O, so callers run Fetch on its
// own goroutine; a second fetch against the same source while one is
// outstanding is rejected rather than queued.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"marginalia/internal/backends"
	"marginalia/internal/entities"
)

// ErrSourceBusy means a fetch for this source is already in flight.
var ErrSourceBusy = errors.New("source busy: a fetch is already running")

// BookError is a per-book fetch failure. It is localized to one installed
// book and never aborts the remaining books.
type BookError struct {
	Book entities.BookIdentity
	Err  error
}

func (e *BookError) Error() string {
	return fmt.Sprintf("fetch failed for %q: %v", e.Book.Title, e.Err)
}

func (e *BookError) Unwrap() error {
	return e.Err
}

// Result carries whatever a fetch collected before finishing or being
// interrupted. Partial results are better than none: already-collected
// sets are still offered to the matching engine.
type Result struct {
	Sets        []*entities.AnnotationSet
	Failures    []*BookError
	Interrupted bool
}

// Orchestrator runs fetches with a per-source busy guard.
type Orchestrator struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New() *Orchestrator {
	return &Orchestrator{inFlight: make(map[string]struct{})}
}

// Fetch enumerates the books installed on the source addressed by the
// given backend and collects each book's annotations. If ctx is cancelled
// mid-run (e.g. the source was detached), remaining books are abandoned
// and reported as failures while collected results are kept.
func (o *Orchestrator) Fetch(ctx context.Context, sourceID string, fetcher backends.Fetcher) (*Result, error) {
	if !o.acquire(sourceID) {
		return nil, fmt.Errorf("%w (%s)", ErrSourceBusy, sourceID)
	}
	defer o.release(sourceID)

	books, err := fetcher.ListInstalled(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list installed books on %s: %w", sourceID, err)
	}

	result := &Result{}
	for i, book := range books {
		if ctx.Err() != nil {
			result.Interrupted = true
			for _, remaining := range books[i:] {
				result.Failures = append(result.Failures, &BookError{Book: remaining, Err: ctx.Err()})
			}
			log.Printf("Fetch from %s interrupted after %d of %d books", sourceID, i, len(books))
			break
		}

		set, err := fetcher.ListActiveAnnotations(ctx, book)
		if err != nil {
			result.Failures = append(result.Failures, &BookError{Book: book, Err: err})
			continue
		}
		if set == nil || len(set.Annotations) == 0 {
			continue
		}
		if set.BackendID == "" {
			set.BackendID = fetcher.Descriptor().ID
		}
		result.Sets = append(result.Sets, set)
	}

	return result, nil
}

// Busy reports whether a fetch is currently running for the source.
func (o *Orchestrator) Busy(sourceID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, busy := o.inFlight[sourceID]
	return busy
}

func (o *Orchestrator) acquire(sourceID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[sourceID]; busy {
		return false
	}
	o.inFlight[sourceID] = struct{}{}
	return true
}

func (o *Orchestrator) release(sourceID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, sourceID)
}
