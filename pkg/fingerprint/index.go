// ABOUTME: Content-fingerprint index backing duplicate detection
// ABOUTME: In-memory map with durable whole-file swaps behind a file lock

package fingerprint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/nainya/chronostore/internal/logger"
	"github.com/nainya/chronostore/internal/metrics"
)

const indexFileName = "index.json"

// Index maps fingerprints to provenance records and answers duplication
// checks. All mutations persist the whole index under an advisory file
// lock, so the ingestion path and the scheduler never interleave a
// partial write.
type Index struct {
	dir     string
	path    string
	flk     *flock.Flock
	mu      sync.RWMutex
	entries map[string]Entry
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewIndex opens or creates a fingerprint index under dir. An unreadable
// or missing index file yields an empty index: availability wins over
// strict durability at startup.
func NewIndex(dir string, log *logger.Logger, m *metrics.Metrics) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create index dir %s: %w", dir, err)
	}

	ix := &Index{
		dir:     dir,
		path:    filepath.Join(dir, indexFileName),
		flk:     flock.New(filepath.Join(dir, indexFileName+".lock")),
		entries: make(map[string]Entry),
		log:     log.IndexLogger(),
		metrics: m,
	}
	ix.load()
	return ix, nil
}

// load reads the persisted index. Failures are logged, not fatal.
func (ix *Index) load() {
	data, err := os.ReadFile(ix.path)
	if err != nil {
		if !os.IsNotExist(err) {
			ix.log.Error("Error loading data index").Err(err).Send()
		}
		return
	}

	entries := make(map[string]Entry)
	if err := json.Unmarshal(data, &entries); err != nil {
		ix.log.Error("Error parsing data index, starting empty").Err(err).Send()
		return
	}

	ix.entries = entries
	ix.metrics.UpdateIndexSize(len(entries))
}

// Check scans the index for exact and same-category matches. It is
// side-effect-free; matches come back ordered by registration time.
func (ix *Index) Check(hash, category, paperID, userID string) Verdict {
	return ix.check(hash, category, paperID, userID, "")
}

// CheckExcluding behaves like Check but ignores one entry, so the
// scheduler can re-examine a registered entry without matching itself.
func (ix *Index) CheckExcluding(excludeEntryID, hash, category, paperID, userID string) Verdict {
	return ix.check(hash, category, paperID, userID, excludeEntryID)
}

func (ix *Index) check(hash, category, paperID, userID, exclude string) Verdict {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var matches []Match
	for id, e := range ix.entries {
		if id == exclude {
			continue
		}
		switch {
		case e.Hash == hash:
			matches = append(matches, Match{
				EntryID:    id,
				PaperID:    e.PaperID,
				UserID:     e.UserID,
				Category:   e.Category,
				CreatedAt:  e.CreatedAt,
				Similarity: SimilarityExact,
				Kind:       MatchExact,
			})
		case e.Category == category:
			matches = append(matches, Match{
				EntryID:    id,
				PaperID:    e.PaperID,
				UserID:     e.UserID,
				Category:   e.Category,
				CreatedAt:  e.CreatedAt,
				Similarity: SimilarityCategory,
				Kind:       MatchCategory,
			})
		}
	}

	sort.Slice(matches, func(a, b int) bool {
		if !matches[a].CreatedAt.Equal(matches[b].CreatedAt) {
			return matches[a].CreatedAt.Before(matches[b].CreatedAt)
		}
		return matches[a].EntryID < matches[b].EntryID
	})

	hasDuplicate := false
	for _, m := range matches {
		if m.Kind == MatchExact {
			hasDuplicate = true
			break
		}
	}
	hasSimilar := len(matches) > 0

	ix.log.Debug("Duplication check").
		Str("fingerprint", short(hash)).
		Str("paper_id", paperID).
		Str("user_id", userID).
		Bool("duplicate", hasDuplicate).
		Bool("similar", hasSimilar).
		Send()

	ix.metrics.RecordCheck(hasDuplicate, hasSimilar)

	return Verdict{
		Hash:              hash,
		Category:          category,
		HasExactDuplicate: hasDuplicate,
		HasSimilar:        hasSimilar,
		Matches:           matches,
		Recommendation:    recommendation(hasDuplicate, hasSimilar),
	}
}

// Register appends one entry and persists the index synchronously.
// A persist failure is logged and swallowed: the in-memory index stays
// authoritative until the next successful save.
func (ix *Index) Register(hash, category, paperID, userID string) string {
	ix.lockFile()
	defer ix.unlockFile()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	now := time.Now().UTC()
	entryID := fmt.Sprintf("entry_%s_%s_%d", paperID, userID, now.UnixNano())
	ix.entries[entryID] = Entry{
		EntryID:   entryID,
		Hash:      hash,
		Category:  category,
		PaperID:   paperID,
		UserID:    userID,
		CreatedAt: now,
	}

	ix.persist()
	ix.metrics.UpdateIndexSize(len(ix.entries))

	ix.log.Info("Registered fingerprint").
		Str("entry_id", entryID).
		Str("fingerprint", short(hash)).
		Str("category", category).
		Send()
	return entryID
}

// Remove deletes one entry if present and persists. Returns whether
// anything was removed.
func (ix *Index) Remove(entryID string) bool {
	ix.lockFile()
	defer ix.unlockFile()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.entries[entryID]; !ok {
		return false
	}
	delete(ix.entries, entryID)
	ix.persist()
	ix.metrics.UpdateIndexSize(len(ix.entries))
	return true
}

// Entries returns a snapshot ordered by registration time
func (ix *Index) Entries() []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make([]Entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].EntryID < out[b].EntryID
	})
	return out
}

// Size returns the number of registered entries
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// persist writes the whole index via a durable temp-and-rename swap.
// Caller holds mu. Failures are logged and swallowed.
func (ix *Index) persist() {
	data, err := json.MarshalIndent(ix.entries, "", "  ")
	if err != nil {
		ix.log.Error("Error encoding data index").Err(err).Send()
		ix.metrics.RecordIndexPersistFailure()
		return
	}

	tmp, err := os.CreateTemp(ix.dir, indexFileName+".*")
	if err != nil {
		ix.log.Error("Error saving data index").Err(err).Send()
		ix.metrics.RecordIndexPersistFailure()
		return
	}

	_, werr := tmp.Write(data)
	if werr == nil {
		werr = tmp.Sync()
	}
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Rename(tmp.Name(), ix.path)
	}
	if werr != nil {
		os.Remove(tmp.Name())
		ix.log.Error("Error saving data index").Err(werr).Send()
		ix.metrics.RecordIndexPersistFailure()
	}
}

// lockFile takes the advisory lock shared with other index writers.
// Lock failures are logged and the mutation proceeds: the in-process
// mutex still serializes local writers.
func (ix *Index) lockFile() {
	if err := ix.flk.Lock(); err != nil {
		ix.log.Warn("Cannot acquire index file lock").Err(err).Send()
	}
}

func (ix *Index) unlockFile() {
	if err := ix.flk.Unlock(); err != nil {
		ix.log.Warn("Cannot release index file lock").Err(err).Send()
	}
}

// short truncates a fingerprint for log output
func short(hash string) string {
	if len(hash) > 10 {
		return hash[:10]
	}
	return hash
}
