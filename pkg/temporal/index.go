// ABOUTME: Hierarchically partitioned temporal index of version events
// ABOUTME: Per-paper partitions plus calendar-year partitions for range scans

package temporal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nainya/chronostore/internal/logger"
	"github.com/nainya/chronostore/internal/metrics"
)

// Index is an append-only index of paper-version events. Every insert
// writes the event under its paper partition and a lookup reference
// under the event's calendar-year partition, so a range query touches
// only the partitions the range covers even across a multi-millennial
// span.
type Index struct {
	papersDir string
	yearsDir  string
	mu        sync.Mutex
	log       *logger.Logger
	metrics   *metrics.Metrics
}

// NewIndex opens or creates a temporal index under dir
func NewIndex(dir string, log *logger.Logger, m *metrics.Metrics) (*Index, error) {
	papersDir := filepath.Join(dir, "papers")
	yearsDir := filepath.Join(dir, "years")
	for _, d := range []string{papersDir, yearsDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create index dir %s: %w", d, err)
		}
	}
	return &Index{
		papersDir: papersDir,
		yearsDir:  yearsDir,
		log:       log.TimelineLogger(),
		metrics:   m,
	}, nil
}

func (ix *Index) paperPath(paperID string) string {
	return filepath.Join(ix.papersDir, paperID+".log")
}

func (ix *Index) yearPath(year int) string {
	return filepath.Join(ix.yearsDir, strconv.Itoa(year)+".log")
}

// Insert appends an event under its paper partition and records a
// lookup reference under the timestamp's calendar-year partition.
func (ix *Index) Insert(ev *VersionEvent, timestamp time.Time) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	key := eventKey(timestamp, ev.VersionNumber)

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("cannot encode version event: %w", err)
	}
	if err := appendRecord(ix.paperPath(ev.PaperID), key, payload); err != nil {
		return err
	}

	ref, err := json.Marshal(EventRef{PaperID: ev.PaperID, Key: key})
	if err != nil {
		return fmt.Errorf("cannot encode year reference: %w", err)
	}
	if err := appendRecord(ix.yearPath(timestamp.UTC().Year()), key, ref); err != nil {
		return err
	}

	ix.metrics.RecordTimelineInsert()
	ix.log.Info("Inserted version event").
		Str("paper_id", ev.PaperID).
		Int("version", ev.VersionNumber).
		Str("key", key).
		Send()
	return nil
}

// scanPaper reads every event in a paper's partition. A torn tail stops
// the scan with a warning; records before it are still returned.
func (ix *Index) scanPaper(paperID string) ([]*VersionEvent, []string, bool) {
	var events []*VersionEvent
	var keys []string

	err := scanRecords(ix.paperPath(paperID), func(key string, value []byte) bool {
		var ev VersionEvent
		if jerr := json.Unmarshal(value, &ev); jerr != nil {
			ix.log.Warn("Failed to decode version event").
				Str("paper_id", paperID).
				Str("key", key).
				Err(jerr).
				Send()
			return true
		}
		events = append(events, &ev)
		keys = append(keys, key)
		return true
	})
	if err != nil {
		if os.IsNotExist(err) {
			ix.log.Warn("Paper not found in temporal index").
				Str("paper_id", paperID).
				Send()
			return nil, nil, false
		}
		ix.log.Warn("Partition scan stopped early").
			Str("paper_id", paperID).
			Err(err).
			Send()
	}
	return events, keys, true
}

// RangeQuery returns the paper's events with start <= timestamp <= end,
// sorted ascending by timestamp. A paper with no partition yields an
// empty result, not an error.
func (ix *Index) RangeQuery(paperID string, start, end time.Time) ([]*VersionEvent, error) {
	ix.metrics.RecordTimelineQuery("range")

	events, keys, ok := ix.scanPaper(paperID)
	if !ok {
		return nil, nil
	}

	type timed struct {
		ev *VersionEvent
		ts time.Time
	}
	var matched []timed
	for i, ev := range events {
		ts, err := parseKeyTime(keys[i])
		if err != nil {
			ix.log.Warn("Failed to parse timestamp for key").
				Str("key", keys[i]).
				Err(err).
				Send()
			continue
		}
		if ts.Before(start) || ts.After(end) {
			continue
		}
		matched = append(matched, timed{ev: ev, ts: ts})
	}

	sort.SliceStable(matched, func(a, b int) bool {
		return matched[a].ts.Before(matched[b].ts)
	})

	out := make([]*VersionEvent, len(matched))
	for i, m := range matched {
		out[i] = m.ev
	}

	ix.log.Info("Range query completed").
		Str("paper_id", paperID).
		Int("events", len(out)).
		Send()
	return out, nil
}

// AllVersions returns the paper's complete history sorted ascending by
// version number. Version number is the authoritative ordering for
// full history; timestamps order range queries.
func (ix *Index) AllVersions(paperID string) ([]*VersionEvent, error) {
	ix.metrics.RecordTimelineQuery("all")

	events, _, ok := ix.scanPaper(paperID)
	if !ok {
		return nil, nil
	}

	sort.SliceStable(events, func(a, b int) bool {
		return events[a].VersionNumber < events[b].VersionNumber
	})
	return events, nil
}

// Exact returns the event whose key carries the given timestamp, or
// ErrNotFound.
func (ix *Index) Exact(paperID string, timestamp time.Time) (*VersionEvent, error) {
	ix.metrics.RecordTimelineQuery("exact")

	prefix := keyPrefix(timestamp)
	var found *VersionEvent

	err := scanRecords(ix.paperPath(paperID), func(key string, value []byte) bool {
		if !strings.HasPrefix(key, prefix) {
			return true
		}
		var ev VersionEvent
		if jerr := json.Unmarshal(value, &ev); jerr != nil {
			ix.log.Warn("Failed to decode version event").
				Str("key", key).
				Err(jerr).
				Send()
			return true
		}
		found = &ev
		return false
	})
	if err != nil && !os.IsNotExist(err) {
		ix.log.Warn("Partition scan stopped early").
			Str("paper_id", paperID).
			Err(err).
			Send()
	}

	if found == nil {
		return nil, fmt.Errorf("%w: %s at %s", ErrNotFound, paperID,
			timestamp.UTC().Format(time.RFC3339Nano))
	}
	return found, nil
}

// Timeline returns references to every event across all papers inside
// the inclusive window, using the calendar-year partitions so only the
// years the range touches are scanned.
func (ix *Index) Timeline(start, end time.Time) ([]EventRef, error) {
	ix.metrics.RecordTimelineQuery("timeline")

	dirEntries, err := os.ReadDir(ix.yearsDir)
	if err != nil {
		return nil, fmt.Errorf("cannot scan year partitions: %w", err)
	}

	startYear := start.UTC().Year()
	endYear := end.UTC().Year()

	var refs []EventRef
	for _, de := range dirEntries {
		name := strings.TrimSuffix(de.Name(), ".log")
		year, perr := strconv.Atoi(name)
		if perr != nil || year < startYear || year > endYear {
			continue
		}

		serr := scanRecords(filepath.Join(ix.yearsDir, de.Name()), func(key string, value []byte) bool {
			var ref EventRef
			if jerr := json.Unmarshal(value, &ref); jerr != nil {
				ix.log.Warn("Failed to decode year reference").
					Str("key", key).
					Err(jerr).
					Send()
				return true
			}
			ts, terr := parseKeyTime(ref.Key)
			if terr != nil {
				ix.log.Warn("Failed to parse timestamp for key").
					Str("key", ref.Key).
					Err(terr).
					Send()
				return true
			}
			if ts.Before(start) || ts.After(end) {
				return true
			}
			ref.Timestamp = ts
			refs = append(refs, ref)
			return true
		})
		if serr != nil && !os.IsNotExist(serr) {
			ix.log.Warn("Year partition scan stopped early").
				Int("year", year).
				Err(serr).
				Send()
		}
	}

	sort.SliceStable(refs, func(a, b int) bool {
		return refs[a].Timestamp.Before(refs[b].Timestamp)
	})
	return refs, nil
}
