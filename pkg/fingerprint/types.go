// ABOUTME: Fingerprint index data model
// ABOUTME: Entries, match records and duplication verdicts

package fingerprint

import "time"

// MatchKind distinguishes exact fingerprint matches from same-category ones
type MatchKind string

const (
	// MatchExact means fingerprint equality
	MatchExact MatchKind = "exact"

	// MatchCategory means same data category, different fingerprint
	MatchCategory MatchKind = "category"
)

// Similarity scores per match kind
const (
	SimilarityExact    = 1.0
	SimilarityCategory = 0.5
)

// Recommendation texts returned with a verdict
const (
	RecommendDuplicate = "Exact duplicate found. Consider using existing data instead of uploading again."
	RecommendSimilar   = "Similar data found. Review existing data to avoid redundancy."
	RecommendSafe      = "No duplicate or similar data found. Safe to upload."
)

// Entry is one registered fingerprint with its provenance
type Entry struct {
	EntryID   string    `json:"entry_id"`
	Hash      string    `json:"hash"`
	Category  string    `json:"data_category"`
	PaperID   string    `json:"paper_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is one index entry that duplicates or resembles checked content
type Match struct {
	EntryID    string    `json:"entry_id"`
	PaperID    string    `json:"paper_id"`
	UserID     string    `json:"user_id"`
	Category   string    `json:"data_category"`
	CreatedAt  time.Time `json:"created_at"`
	Similarity float64   `json:"similarity"`
	Kind       MatchKind `json:"match_kind"`
}

// Verdict is the advisory result of a duplication check. It is computed
// per check and never persisted.
type Verdict struct {
	Hash              string  `json:"fingerprint"`
	Category          string  `json:"data_category"`
	HasExactDuplicate bool    `json:"has_exact_duplicate"`
	HasSimilar        bool    `json:"has_similar"`
	Matches           []Match `json:"matches"`
	Recommendation    string  `json:"recommendation"`
}

// recommendation picks the verdict text; exact matches take precedence
func recommendation(hasDuplicate, hasSimilar bool) string {
	switch {
	case hasDuplicate:
		return RecommendDuplicate
	case hasSimilar:
		return RecommendSimilar
	default:
		return RecommendSafe
	}
}
