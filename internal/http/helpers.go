package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"marginalia/internal/matching"
	"marginalia/internal/session"
)

// ErrorResponse is the uniform error body. Unrecognized formats and
// persistence failures must be explicit and distinguishable, never
// silently dropped.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondError(c *gin.Context, status int, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

// CandidateView is one alternative catalog target for an item.
type CandidateView struct {
	CatalogEntryID uint    `json:"catalog_entry_id"`
	Title          string  `json:"title"`
	Authors        string  `json:"authors"`
	Score          float64 `json:"score"`
}

// ItemView is the JSON shape of one selection item.
type ItemView struct {
	ID         int             `json:"id"`
	Title      string          `json:"title"`
	Authors    []string        `json:"authors,omitempty"`
	BackendID  string          `json:"backend_id"`
	Tier       string          `json:"tier"`
	Score      float64         `json:"score"`
	Ambiguous  bool            `json:"ambiguous,omitempty"`
	Enabled    bool            `json:"enabled"`
	Target     *CandidateView  `json:"target,omitempty"`
	Candidates []CandidateView `json:"candidates,omitempty"`
	Count      int             `json:"annotation_count"`
}

// SessionView is the JSON shape of a selection session.
type SessionView struct {
	ID          string     `json:"id"`
	CreatedAt   string     `json:"created_at"`
	Items       []ItemView `json:"items"`
	Diagnostics []string   `json:"diagnostics,omitempty"`
}

func sessionView(s *session.Session) SessionView {
	view := SessionView{
		ID:          s.ID,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		Diagnostics: s.Diagnostics,
	}
	for _, it := range s.Items() {
		view.Items = append(view.Items, itemView(it))
	}
	return view
}

func itemView(it session.Item) ItemView {
	r := it.Result
	view := ItemView{
		ID:        it.ID,
		Title:     r.Set.Book.Title,
		Authors:   r.Set.Book.Authors,
		BackendID: r.Set.BackendID,
		Tier:      r.Tier.String(),
		Score:     r.Score,
		Ambiguous: r.Ambiguous,
		Enabled:   it.Enabled,
		Count:     len(r.Set.Annotations),
	}

	target := r.Entry
	if it.Override != nil {
		target = it.Override
	}
	if target != nil {
		view.Target = &CandidateView{
			CatalogEntryID: target.ID,
			Title:          target.Title,
			Authors:        target.Authors,
		}
	}

	for _, cand := range r.Candidates {
		view.Candidates = append(view.Candidates, candidateView(cand))
	}
	return view
}

func candidateView(c matching.Candidate) CandidateView {
	return CandidateView{
		CatalogEntryID: c.Entry.ID,
		Title:          c.Entry.Title,
		Authors:        c.Entry.Authors,
		Score:          c.Score,
	}
}
