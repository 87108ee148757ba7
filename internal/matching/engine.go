// Package matching reconciles a BookIdentity recovered from a reader
// against the user's catalog, producing a tiered verdict: Exact matches
// can be attached automatically, Partial matches need a human to confirm,
// None means nothing plausible was found.
//
// The engine is pure: the same identity against the same catalog snapshot
// always yields the same result.
package matching

import (
	"fmt"
	"sort"

	"marginalia/internal/entities"
)

// Tier is the confidence classification of a proposed match. Values are
// ordered so a higher tier compares greater.
type Tier int

const (
	TierNone Tier = iota
	TierPartial
	TierExact
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierPartial:
		return "partial"
	default:
		return "none"
	}
}

// Thresholds are the similarity cut-offs separating the tiers. With the
// defaults a full title+author agreement attaches on its own, a title-only
// or partial-author agreement asks the user, and anything weaker is left
// unmatched.
type Thresholds struct {
	High float64 // similarity >= High -> Exact
	Low  float64 // Low <= similarity < High -> Partial
}

// DefaultThresholds are used when configuration does not override them.
var DefaultThresholds = Thresholds{High: 0.85, Low: 0.50}

// Relative weight of title vs author similarity when both sides report
// authors. Title dominates: readers mangle author fields far more often.
const (
	titleWeight  = 0.6
	authorWeight = 0.4
)

// ScoreBreakdown records how a candidate's score was produced.
type ScoreBreakdown struct {
	StrongIdentifier string  `json:"strong_identifier,omitempty"` // which identifier matched, if any
	TitleSimilarity  float64 `json:"title_similarity"`
	AuthorSimilarity float64 `json:"author_similarity"`
}

// Candidate is one scored catalog entry.
type Candidate struct {
	Entry     entities.CatalogEntry `json:"entry"`
	Score     float64               `json:"score"`
	Breakdown ScoreBreakdown        `json:"breakdown"`
}

// MatchResult is the engine's verdict for one annotation set.
type MatchResult struct {
	Set       *entities.AnnotationSet
	Entry     *entities.CatalogEntry // nil when Tier is None
	Tier      Tier
	Score     float64
	Breakdown ScoreBreakdown

	// Candidates holds every entry that scored above zero, best first.
	// Lower-scoring alternatives are surfaced rather than discarded so a
	// user confirming a Partial match can pick among them.
	Candidates []Candidate

	// Ambiguous is set when several entries tied for the top score and no
	// strong identifier broke the tie. The engine reports the tie instead
	// of guessing; such results are always Partial.
	Ambiguous bool
}

// Catalog is the read-only view of the user's library the engine consults.
type Catalog interface {
	// FindCandidates may pre-filter entries for an identity (e.g. by
	// strong identifier or title index). Returning nothing is fine; the
	// engine then scans all entries.
	FindCandidates(identity entities.BookIdentity) ([]entities.CatalogEntry, error)

	AllEntries() ([]entities.CatalogEntry, error)
}

// Engine scores annotation sets against a catalog.
type Engine struct {
	catalog    Catalog
	thresholds Thresholds
}

func NewEngine(catalog Catalog, thresholds Thresholds) *Engine {
	if thresholds.High == 0 && thresholds.Low == 0 {
		thresholds = DefaultThresholds
	}
	return &Engine{catalog: catalog, thresholds: thresholds}
}

// Match scores the set's BookIdentity against the catalog snapshot.
func (e *Engine) Match(set *entities.AnnotationSet) (*MatchResult, error) {
	identity := set.Book

	// Strong identifiers short-circuit similarity scoring entirely.
	candidates, err := e.catalog.FindCandidates(identity)
	if err != nil {
		return nil, fmt.Errorf("catalog candidate lookup: %w", err)
	}
	for i := range candidates {
		if id := strongIdentifierMatch(identity, candidates[i]); id != "" {
			entry := candidates[i]
			breakdown := ScoreBreakdown{StrongIdentifier: id}
			return &MatchResult{
				Set:        set,
				Entry:      &entry,
				Tier:       TierExact,
				Score:      1.0,
				Breakdown:  breakdown,
				Candidates: []Candidate{{Entry: entry, Score: 1.0, Breakdown: breakdown}},
			}, nil
		}
	}

	entries, err := e.catalog.AllEntries()
	if err != nil {
		return nil, fmt.Errorf("catalog snapshot: %w", err)
	}

	scored := scoreAll(identity, entries)
	if len(scored) == 0 || scored[0].Score < e.thresholds.Low {
		return &MatchResult{Set: set, Tier: TierNone, Candidates: scored}, nil
	}

	top := scored[0]
	tied := topTies(scored)

	if len(tied) > 1 {
		// Prefer a strong-identifier holder among the tied entries.
		if best, ok := strongAmongTied(identity, tied); ok {
			top = best
		} else {
			// Genuine tie: surface everything, never guess.
			entry := top.Entry
			return &MatchResult{
				Set:        set,
				Entry:      &entry,
				Tier:       TierPartial,
				Score:      top.Score,
				Breakdown:  top.Breakdown,
				Candidates: scored,
				Ambiguous:  true,
			}, nil
		}
	}

	tier := TierPartial
	if top.Score >= e.thresholds.High {
		tier = TierExact
	}

	entry := top.Entry
	return &MatchResult{
		Set:        set,
		Entry:      &entry,
		Tier:       tier,
		Score:      top.Score,
		Breakdown:  top.Breakdown,
		Candidates: scored,
	}, nil
}

// scoreAll scores every entry against the identity and returns the
// above-zero candidates, best first. Ordering is deterministic: ties are
// broken by entry ID.
func scoreAll(identity entities.BookIdentity, entries []entities.CatalogEntry) []Candidate {
	titleSet := tokens(identity.Title)
	authorSet := authorTokens(identity.Authors)

	var scored []Candidate
	for _, entry := range entries {
		titleSim := jaccard(titleSet, tokens(entry.Title))
		authorSim := jaccard(authorSet, authorTokens(entry.AuthorList()))

		var score float64
		if len(authorSet) == 0 || entry.Authors == "" {
			// No author information on one side: the title carries the
			// whole score rather than being diluted by a missing field.
			score = titleSim
		} else {
			score = titleWeight*titleSim + authorWeight*authorSim
		}

		if score <= 0 {
			continue
		}
		scored = append(scored, Candidate{
			Entry: entry,
			Score: score,
			Breakdown: ScoreBreakdown{
				TitleSimilarity:  titleSim,
				AuthorSimilarity: authorSim,
			},
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Entry.ID < scored[j].Entry.ID
	})
	return scored
}

// topTies returns the leading run of candidates sharing the top score.
func topTies(scored []Candidate) []Candidate {
	if len(scored) == 0 {
		return nil
	}
	top := scored[0].Score
	var tied []Candidate
	for _, c := range scored {
		if c.Score != top {
			break
		}
		tied = append(tied, c)
	}
	return tied
}

func strongAmongTied(identity entities.BookIdentity, tied []Candidate) (Candidate, bool) {
	for _, c := range tied {
		if strongIdentifierMatch(identity, c.Entry) != "" {
			return c, true
		}
	}
	return Candidate{}, false
}

// strongIdentifierMatch reports which strong identifier, if any, ties the
// identity to the entry.
func strongIdentifierMatch(identity entities.BookIdentity, entry entities.CatalogEntry) string {
	switch {
	case identity.ISBN != "" && identity.ISBN == entry.ISBN:
		return "isbn"
	case identity.ASIN != "" && identity.ASIN == entry.ASIN:
		return "asin"
	case identity.UUID != "" && identity.UUID == entry.UUID:
		return "uuid"
	}
	return ""
}
