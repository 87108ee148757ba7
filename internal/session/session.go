// Package session holds fetched or imported results while the user
// decides what to keep. Nothing is persisted until a session is
// committed; discarding releases everything.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"marginalia/internal/entities"
	"marginalia/internal/matching"
	"marginalia/internal/store"
)

var (
	ErrItemNotFound      = errors.New("no such selection item")
	ErrSessionClosed     = errors.New("session already committed or discarded")
	ErrOverrideForbidden = errors.New("target override is only valid for partial or unmatched items")
	// ErrNoTarget means an enabled item has nowhere to attach: an
	// unmatched set whose target the user never chose.
	ErrNoTarget = errors.New("enabled item has no catalog target")
)

// Item wraps one match result with the user's decision about it.
type Item struct {
	ID       int                    `json:"id"`
	Result   *matching.MatchResult  `json:"result"`
	Enabled  bool                   `json:"enabled"`
	Override *entities.CatalogEntry `json:"override,omitempty"`
}

// target resolves where the item's annotations go: the user's override if
// set, else the engine's pick.
func (it *Item) target() *entities.CatalogEntry {
	if it.Override != nil {
		return it.Override
	}
	return it.Result.Entry
}

// Session is the working set pending user approval. It exclusively owns
// its items for its lifetime.
type Session struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Diagnostics []string  `json:"diagnostics,omitempty"`

	mu     sync.Mutex
	items  []*Item
	closed bool
}

// New builds a session from match results. Everything starts enabled
// except unmatched (tier None) items, which have nothing to attach to yet.
func New(results []*matching.MatchResult, diagnostics []string) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		Diagnostics: diagnostics,
	}
	for i, r := range results {
		s.items = append(s.items, &Item{
			ID:      i,
			Result:  r,
			Enabled: r.Tier != matching.TierNone,
		})
	}
	return s
}

// Items returns a snapshot of the session's items.
func (s *Session) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, *it)
	}
	return out
}

// Toggle flips an item's enabled flag.
func (s *Session) Toggle(itemID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	it, err := s.item(itemID)
	if err != nil {
		return err
	}
	it.Enabled = !it.Enabled
	return nil
}

// OverrideTarget points a partial or unmatched item at a user-chosen
// catalog entry. Exact matches cannot be redirected. Overriding an
// unmatched item also enables it.
func (s *Session) OverrideTarget(itemID int, entry entities.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	it, err := s.item(itemID)
	if err != nil {
		return err
	}
	if it.Result.Tier == matching.TierExact {
		return ErrOverrideForbidden
	}
	it.Override = &entry
	it.Enabled = true
	return nil
}

// CommitOutcome reports what a commit persisted.
type CommitOutcome struct {
	Sets    int `json:"sets"`
	Added   int `json:"added"`
	Skipped int `json:"skipped"`
}

// Commit persists every enabled item to the store and closes the session.
// Exact items attach automatically; partial and overridden items attach to
// their confirmed target. An enabled item with no target at all fails the
// commit before anything is written.
func (s *Session) Commit(st *store.Store) (CommitOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return CommitOutcome{}, ErrSessionClosed
	}

	// Resolve all targets up front so a target-less item is reported
	// before any merge runs.
	type pending struct {
		entryID   uint
		backendID string
		set       *entities.AnnotationSet
	}
	var batch []pending
	for _, it := range s.items {
		if !it.Enabled {
			continue
		}
		target := it.target()
		if target == nil {
			return CommitOutcome{}, fmt.Errorf("%w: %q", ErrNoTarget, it.Result.Set.Book.Title)
		}
		batch = append(batch, pending{
			entryID:   target.ID,
			backendID: it.Result.Set.BackendID,
			set:       it.Result.Set,
		})
	}

	var outcome CommitOutcome
	for _, p := range batch {
		res, err := st.Merge(p.entryID, p.backendID, p.set.Annotations)
		if err != nil {
			return outcome, fmt.Errorf("commit of %q: %w", p.set.Book.Title, err)
		}
		outcome.Sets++
		outcome.Added += res.Added
		outcome.Skipped += res.Skipped
	}

	s.closed = true
	return outcome, nil
}

// Discard closes the session without persisting anything.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.items = nil
}

func (s *Session) item(id int) (*Item, error) {
	for _, it := range s.items {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrItemNotFound, id)
}

// Manager indexes live sessions by ID for the HTTP surface.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}
