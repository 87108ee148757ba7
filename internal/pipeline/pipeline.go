// Package pipeline wires the orchestrators, the matching engine and the
// session manager into the engine's two entry points: import a supplied
// blob, or fetch from a live-attached source. Both produce a selection
// session the user approves before anything is persisted.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"marginalia/internal/backends"
	"marginalia/internal/entities"
	"marginalia/internal/fetch"
	"marginalia/internal/importer"
	"marginalia/internal/matching"
	"marginalia/internal/session"
	"marginalia/internal/store"
)

// ErrNotFetchCapable means the named backend cannot probe a live source.
var ErrNotFetchCapable = errors.New("backend is not fetch-capable")

type Pipeline struct {
	registry *backends.Registry
	engine   *matching.Engine
	importer *importer.Orchestrator
	fetcher  *fetch.Orchestrator
	sessions *session.Manager
	store    *store.Store
}

func New(registry *backends.Registry, engine *matching.Engine, st *store.Store) *Pipeline {
	return &Pipeline{
		registry: registry,
		engine:   engine,
		importer: importer.New(registry),
		fetcher:  fetch.New(),
		sessions: session.NewManager(),
		store:    st,
	}
}

func (p *Pipeline) Sessions() *session.Manager {
	return p.sessions
}

func (p *Pipeline) Store() *store.Store {
	return p.store
}

func (p *Pipeline) Registry() *backends.Registry {
	return p.registry
}

// ImportBlob parses the blob against the registered export backends in
// order, matches the result against the catalog and opens a session
// holding it. hint is the declared file extension or MIME type, if any.
func (p *Pipeline) ImportBlob(blob []byte, hint string) (*session.Session, error) {
	set, err := p.importer.ImportBlob(blob, hint)
	if err != nil {
		return nil, err
	}

	result, err := p.engine.Match(set)
	if err != nil {
		return nil, err
	}

	s := session.New([]*matching.MatchResult{result}, nil)
	p.sessions.Add(s)
	log.Printf("Import via %s: %q -> %s", set.BackendID, set.Book.Title, result.Tier)
	return s, nil
}

// FetchFromSource probes the fetch-capable backend the caller selected
// for the attached source. Which backend matches a given device is
// decided by the caller (device recognition lives outside the engine).
// Per-book failures and an interrupted remainder become session
// diagnostics alongside whatever was collected.
func (p *Pipeline) FetchFromSource(ctx context.Context, backendID string) (*session.Session, error) {
	fetcher, err := p.fetchBackend(backendID)
	if err != nil {
		return nil, err
	}

	result, err := p.fetcher.Fetch(ctx, backendID, fetcher)
	if err != nil {
		return nil, err
	}

	var results []*matching.MatchResult
	for _, set := range result.Sets {
		match, err := p.engine.Match(set)
		if err != nil {
			return nil, err
		}
		results = append(results, match)
	}

	var diagnostics []string
	for _, f := range result.Failures {
		diagnostics = append(diagnostics, f.Error())
	}
	if result.Interrupted {
		diagnostics = append(diagnostics, fmt.Sprintf("source %s detached before all books were read", backendID))
	}

	s := session.New(results, diagnostics)
	p.sessions.Add(s)
	log.Printf("Fetch from %s: %d books, %d failures", backendID, len(results), len(result.Failures))
	return s, nil
}

// SyncSource runs an unattended fetch and persists only Exact-tier
// matches. Partial and unmatched books are left for an interactive run;
// unattended mode never guesses on the user's behalf.
func (p *Pipeline) SyncSource(ctx context.Context, backendID string) (store.MergeResult, error) {
	fetcher, err := p.fetchBackend(backendID)
	if err != nil {
		return store.MergeResult{}, err
	}

	result, err := p.fetcher.Fetch(ctx, backendID, fetcher)
	if err != nil {
		return store.MergeResult{}, err
	}

	var total store.MergeResult
	skipped := 0
	for _, set := range result.Sets {
		match, err := p.engine.Match(set)
		if err != nil {
			return total, err
		}
		if match.Tier != matching.TierExact {
			skipped++
			continue
		}
		res, err := p.store.Merge(match.Entry.ID, set.BackendID, set.Annotations)
		if err != nil {
			return total, err
		}
		total.Added += res.Added
		total.Skipped += res.Skipped
	}

	if skipped > 0 {
		log.Printf("Sync from %s: %d books need interactive confirmation", backendID, skipped)
	}
	return total, nil
}

// CommitSession commits a session by ID and releases it.
func (p *Pipeline) CommitSession(id string) (session.CommitOutcome, error) {
	s, ok := p.sessions.Get(id)
	if !ok {
		return session.CommitOutcome{}, fmt.Errorf("unknown session %q", id)
	}
	outcome, err := s.Commit(p.store)
	if err != nil {
		return outcome, err
	}
	p.sessions.Remove(id)
	return outcome, nil
}

// DiscardSession releases a session without persisting anything.
func (p *Pipeline) DiscardSession(id string) error {
	s, ok := p.sessions.Get(id)
	if !ok {
		return fmt.Errorf("unknown session %q", id)
	}
	s.Discard()
	p.sessions.Remove(id)
	return nil
}

func (p *Pipeline) fetchBackend(backendID string) (backends.Fetcher, error) {
	b, ok := p.registry.Get(backendID)
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", backendID)
	}
	if !b.Descriptor().Has(entities.CapabilityFetch) {
		return nil, fmt.Errorf("%w: %s", ErrNotFetchCapable, backendID)
	}
	return b.(backends.Fetcher), nil
}
