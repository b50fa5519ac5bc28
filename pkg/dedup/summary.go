// ABOUTME: Run summary records for deduplication scans
// ABOUTME: One timestamped JSON file per run in the log directory

package dedup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunDetail is the per-entry outcome of one scan
type RunDetail struct {
	EntryID           string    `json:"entry_id"`
	PaperID           string    `json:"paper_id"`
	UserID            string    `json:"user_id"`
	Category          string    `json:"data_category"`
	CreatedAt         time.Time `json:"created_at"`
	HasExactDuplicate bool      `json:"has_exact_duplicate"`
	HasSimilar        bool      `json:"has_similar"`
	Recommendation    string    `json:"recommendation"`
}

// RunSummary records one complete deduplication scan
type RunSummary struct {
	RunID           string      `json:"run_id"`
	Timestamp       time.Time   `json:"timestamp"`
	TotalEntries    int         `json:"total_entries"`
	CheckedEntries  int         `json:"checked_entries"`
	DuplicatesFound int         `json:"duplicates_found"`
	SimilarFound    int         `json:"similar_found"`
	AlertedOwners   []string    `json:"alerted_owners"`
	Details         []RunDetail `json:"details"`
}

// writeSummary persists a run summary to the log directory
func writeSummary(dir string, summary *RunSummary) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create run log dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("cannot encode run summary: %w", err)
	}

	name := fmt.Sprintf("run_%s.json", summary.Timestamp.UTC().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("cannot write run summary: %w", err)
	}
	return path, nil
}
