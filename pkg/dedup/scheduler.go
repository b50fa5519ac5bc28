// ABOUTME: Background deduplication scheduler over the fingerprint index
// ABOUTME: Cadence loop with manual trigger, per-owner alerts and run summaries

package dedup

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nainya/chronostore/internal/logger"
	"github.com/nainya/chronostore/internal/metrics"
	"github.com/nainya/chronostore/pkg/fingerprint"
	"github.com/nainya/chronostore/pkg/notify"
)

// State is the scheduler lifecycle state
type State int32

const (
	// Stopped means no cadence is registered
	Stopped State = iota

	// Scheduled means a cadence is registered and the next tick is pending
	Scheduled

	// Running means a tick is in progress
	Running
)

// String renders the state for logs
func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	default:
		return "stopped"
	}
}

// Scheduler periodically re-checks every fingerprint index entry
// against the current index, so an entry registered after another can
// retroactively flag the earlier one once new matches appear. There is
// no paused state: Stop is the only way out of the loop.
type Scheduler struct {
	index    *fingerprint.Index
	notifier notify.Notifier
	schedule Schedule
	logDir   string
	log      *logger.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	state  State
	stopCh chan struct{}
	done   chan struct{}

	now func() time.Time
}

// NewScheduler creates a scheduler over the given index
func NewScheduler(index *fingerprint.Index, notifier notify.Notifier, schedule Schedule, logDir string, log *logger.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		index:    index,
		notifier: notifier,
		schedule: schedule,
		logDir:   logDir,
		log:      log.SchedulerLogger(),
		metrics:  m,
		state:    Stopped,
		now:      time.Now,
	}
}

// Configure replaces the cadence. Takes effect on the next Start.
func (s *Scheduler) Configure(interval, at string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule = Schedule{Enabled: true, Interval: interval, At: at}
	s.log.Info("Configured deduplication schedule").
		Str("interval", interval).
		Str("time", at).
		Send()
}

// State returns the current lifecycle state
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Start registers the cadence and launches the tick loop. A disabled
// schedule leaves the scheduler stopped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.schedule.Enabled {
		s.log.Info("Deduplication scheduler is disabled in config").Send()
		return nil
	}
	if s.state != Stopped {
		return fmt.Errorf("scheduler already started")
	}

	// Validate cadence before the loop owns it
	if _, err := nextRun(s.now(), s.schedule.Interval, s.schedule.At); err != nil {
		return err
	}

	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	s.state = Scheduled

	// The loop owns a snapshot of the cadence; Configure only affects
	// later Starts.
	go s.loop(s.schedule)

	s.log.Info("Started deduplication scheduler").
		Str("interval", s.schedule.Interval).
		Str("time", s.schedule.At).
		Send()
	return nil
}

// Stop cancels the pending cadence and waits for any running tick
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	close(stopCh)
	<-done

	s.setState(Stopped)
	s.log.Info("Stopped deduplication scheduler").Send()
}

// loop waits for cadence boundaries and runs full scans
func (s *Scheduler) loop(schedule Schedule) {
	defer close(s.done)

	for {
		next, err := nextRun(s.now(), schedule.Interval, schedule.At)
		if err != nil {
			s.log.Error("Cannot compute next run").Err(err).Send()
			return
		}
		s.setState(Scheduled)

		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
			s.setState(Running)
			summary := s.run(nil)
			s.log.Info("Scheduled deduplication run completed").
				Str("run_id", summary.RunID).
				Int("checked", summary.CheckedEntries).
				Int("duplicates", summary.DuplicatesFound).
				Send()
		}
	}
}

// Trigger runs a scan immediately, bypassing the cadence. When entry
// IDs are given, the scan is restricted to that subset.
func (s *Scheduler) Trigger(entryIDs ...string) *RunSummary {
	s.log.Info("Manual deduplication triggered").
		Int("subset", len(entryIDs)).
		Send()
	return s.run(entryIDs)
}

// run re-checks entries against the current index, alerts each
// affected owner once, and writes a run summary.
func (s *Scheduler) run(entryIDs []string) *RunSummary {
	started := s.now().UTC()
	entries := s.index.Entries()

	subset := make(map[string]bool, len(entryIDs))
	for _, id := range entryIDs {
		subset[id] = true
	}

	summary := &RunSummary{
		RunID:        uuid.NewString(),
		Timestamp:    started,
		TotalEntries: len(entries),
	}

	// owner -> affected entry IDs by finding kind
	dupByOwner := make(map[string][]string)
	simByOwner := make(map[string][]string)

	for _, e := range entries {
		if len(subset) > 0 && !subset[e.EntryID] {
			continue
		}

		verdict := s.index.CheckExcluding(e.EntryID, e.Hash, e.Category, e.PaperID, e.UserID)
		summary.CheckedEntries++

		if verdict.HasExactDuplicate {
			summary.DuplicatesFound++
			dupByOwner[e.UserID] = append(dupByOwner[e.UserID], e.EntryID)
		}
		if verdict.HasSimilar {
			summary.SimilarFound++
			if !verdict.HasExactDuplicate {
				simByOwner[e.UserID] = append(simByOwner[e.UserID], e.EntryID)
			}
		}

		summary.Details = append(summary.Details, RunDetail{
			EntryID:           e.EntryID,
			PaperID:           e.PaperID,
			UserID:            e.UserID,
			Category:          e.Category,
			CreatedAt:         e.CreatedAt,
			HasExactDuplicate: verdict.HasExactDuplicate,
			HasSimilar:        verdict.HasSimilar,
			Recommendation:    verdict.Recommendation,
		})
	}

	summary.AlertedOwners = s.alertOwners(summary.RunID, dupByOwner, simByOwner)
	s.metrics.RecordSchedulerRun(len(summary.AlertedOwners))

	if path, err := writeSummary(s.logDir, summary); err != nil {
		s.log.Error("Cannot save deduplication results").Err(err).Send()
	} else {
		s.log.Info("Saved deduplication results").Str("path", path).Send()
	}

	return summary
}

// alertOwners sends one alert per affected owner and returns the
// owners alerted, sorted for stable summaries.
func (s *Scheduler) alertOwners(runID string, dupByOwner, simByOwner map[string][]string) []string {
	owners := make(map[string]bool, len(dupByOwner)+len(simByOwner))
	for o := range dupByOwner {
		owners[o] = true
	}
	for o := range simByOwner {
		owners[o] = true
	}

	sorted := make([]string, 0, len(owners))
	for o := range owners {
		sorted = append(sorted, o)
	}
	sort.Strings(sorted)

	for _, owner := range sorted {
		payload := map[string]any{"run_id": runID}
		message := "Similar data found during scheduled deduplication"
		if ids := dupByOwner[owner]; len(ids) > 0 {
			payload["duplicate_entries"] = ids
			message = "Exact duplicate found during scheduled deduplication"
		}
		if ids := simByOwner[owner]; len(ids) > 0 {
			payload["similar_entries"] = ids
		}
		s.notifier.Notify(owner, message, payload)
	}
	return sorted
}
