// ABOUTME: Tests for the deduplication scheduler
// ABOUTME: Verifies cadence math, scans, alerts and run summaries

package dedup

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nainya/chronostore/internal/logger"
	"github.com/nainya/chronostore/pkg/dataset"
	"github.com/nainya/chronostore/pkg/fingerprint"
)

// memoryNotifier records alerts for assertions
type memoryNotifier struct {
	mu     sync.Mutex
	alerts []memoryAlert
}

type memoryAlert struct {
	userID  string
	message string
	payload map[string]any
}

func (n *memoryNotifier) Notify(userID, message string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, memoryAlert{userID: userID, message: message, payload: payload})
}

func (n *memoryNotifier) byUser() map[string][]memoryAlert {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string][]memoryAlert)
	for _, a := range n.alerts {
		out[a.userID] = append(out[a.userID], a)
	}
	return out
}

func setupTestScheduler(t *testing.T, schedule Schedule) (*Scheduler, *fingerprint.Index, *memoryNotifier, string) {
	log := logger.NewLogger(logger.Config{Level: "error", Output: io.Discard})

	ix, err := fingerprint.NewIndex(t.TempDir(), log, nil)
	if err != nil {
		t.Fatalf("Failed to open index: %v", err)
	}

	notifier := &memoryNotifier{}
	logDir := t.TempDir()
	return NewScheduler(ix, notifier, schedule, logDir, log, nil), ix, notifier, logDir
}

func TestNextRunDaily(t *testing.T) {
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) // Wednesday

	next, err := nextRun(now, IntervalDaily, "02:00")
	if err != nil {
		t.Fatalf("Failed to compute next run: %v", err)
	}
	want := time.Date(2024, 3, 7, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Expected %v, got %v", want, next)
	}

	// Before the run time the same day still qualifies
	early := time.Date(2024, 3, 6, 1, 0, 0, 0, time.UTC)
	next, _ = nextRun(early, IntervalDaily, "02:00")
	want = time.Date(2024, 3, 6, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Expected %v, got %v", want, next)
	}
}

func TestNextRunWeeklyFallsOnMonday(t *testing.T) {
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC) // Wednesday

	next, err := nextRun(now, IntervalWeekly, "02:00")
	if err != nil {
		t.Fatalf("Failed to compute next run: %v", err)
	}
	want := time.Date(2024, 3, 11, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Expected next Monday %v, got %v", want, next)
	}
	if next.Weekday() != time.Monday {
		t.Errorf("Expected Monday, got %s", next.Weekday())
	}
}

func TestNextRunMonthlyFallsOnFirst(t *testing.T) {
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)

	next, err := nextRun(now, IntervalMonthly, "02:00")
	if err != nil {
		t.Fatalf("Failed to compute next run: %v", err)
	}
	want := time.Date(2024, 4, 1, 2, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("Expected first of next month %v, got %v", want, next)
	}
}

func TestNextRunRejectsBadInput(t *testing.T) {
	now := time.Now()

	if _, err := nextRun(now, "hourly", "02:00"); err == nil {
		t.Error("Expected error for unknown interval")
	}
	if _, err := nextRun(now, IntervalDaily, "25:00"); err == nil {
		t.Error("Expected error for out-of-range hour")
	}
	if _, err := nextRun(now, IntervalDaily, "bogus"); err == nil {
		t.Error("Expected error for malformed run time")
	}
}

func TestTriggerDetectsCrossEntryDuplicates(t *testing.T) {
	s, ix, notifier, _ := setupTestScheduler(t, Schedule{})

	// Alice and Bob registered the same content independently
	ix.Register("hash_a", dataset.CategoryTabular, "p1", "alice")
	ix.Register("hash_a", dataset.CategoryTabular, "p2", "bob")

	summary := s.Trigger()
	if summary.TotalEntries != 2 || summary.CheckedEntries != 2 {
		t.Fatalf("Expected 2 checked entries, got %d/%d", summary.CheckedEntries, summary.TotalEntries)
	}
	if summary.DuplicatesFound != 2 {
		t.Errorf("Expected both entries flagged as duplicates, got %d", summary.DuplicatesFound)
	}

	// One alert per affected owner
	byUser := notifier.byUser()
	for _, user := range []string{"alice", "bob"} {
		alerts := byUser[user]
		if len(alerts) != 1 {
			t.Fatalf("Expected 1 alert for %s, got %d", user, len(alerts))
		}
		if !strings.Contains(alerts[0].message, "duplicate") {
			t.Errorf("Expected duplicate alert for %s, got %q", user, alerts[0].message)
		}
	}
	if len(summary.AlertedOwners) != 2 {
		t.Errorf("Expected 2 alerted owners, got %v", summary.AlertedOwners)
	}
}

func TestTriggerSingleEntryFindsNothing(t *testing.T) {
	s, ix, notifier, _ := setupTestScheduler(t, Schedule{})

	// An entry never matches its own record
	ix.Register("hash_a", dataset.CategoryTabular, "p1", "alice")

	summary := s.Trigger()
	if summary.DuplicatesFound != 0 || summary.SimilarFound != 0 {
		t.Errorf("Expected no findings for a lone entry, got %d/%d",
			summary.DuplicatesFound, summary.SimilarFound)
	}
	if len(notifier.byUser()) != 0 {
		t.Error("Expected no alerts for a lone entry")
	}
}

func TestTriggerSubset(t *testing.T) {
	s, ix, _, _ := setupTestScheduler(t, Schedule{})

	target := ix.Register("hash_a", dataset.CategoryTabular, "p1", "alice")
	ix.Register("hash_a", dataset.CategoryTabular, "p2", "bob")

	summary := s.Trigger(target)
	if summary.CheckedEntries != 1 {
		t.Errorf("Expected 1 checked entry, got %d", summary.CheckedEntries)
	}
	if summary.TotalEntries != 2 {
		t.Errorf("Expected total of 2 entries, got %d", summary.TotalEntries)
	}
	if summary.DuplicatesFound != 1 {
		t.Errorf("Expected 1 duplicate finding, got %d", summary.DuplicatesFound)
	}
}

func TestTriggerWritesRunSummary(t *testing.T) {
	s, ix, _, logDir := setupTestScheduler(t, Schedule{})

	ix.Register("hash_a", dataset.CategoryTabular, "p1", "alice")
	summary := s.Trigger()
	if summary.RunID == "" {
		t.Fatal("Expected non-empty run ID")
	}

	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("Failed to read run log dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 run summary file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "run_") || !strings.HasSuffix(name, ".json") {
		t.Errorf("Unexpected summary file name %q", name)
	}
	if _, err := os.Stat(filepath.Join(logDir, name)); err != nil {
		t.Errorf("Failed to stat summary file: %v", err)
	}
}

func TestSchedulerLifecycle(t *testing.T) {
	s, _, _, _ := setupTestScheduler(t, Schedule{Enabled: true, Interval: IntervalDaily, At: "00:00"})

	if s.State() != Stopped {
		t.Fatalf("Expected stopped before start, got %s", s.State())
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	if s.State() != Scheduled {
		t.Errorf("Expected scheduled after start, got %s", s.State())
	}

	if err := s.Start(); err == nil {
		t.Error("Expected second start to fail")
	}

	s.Stop()
	if s.State() != Stopped {
		t.Errorf("Expected stopped after stop, got %s", s.State())
	}

	// Stop is idempotent
	s.Stop()
}

func TestConfigureTakesEffectOnNextStart(t *testing.T) {
	// The initial cadence is invalid; Configure repairs it before Start
	s, _, _, _ := setupTestScheduler(t, Schedule{Enabled: true, Interval: "hourly", At: "00:00"})

	s.Configure(IntervalWeekly, "03:30")

	if err := s.Start(); err != nil {
		t.Fatalf("Expected configured cadence to start, got: %v", err)
	}
	if s.State() != Scheduled {
		t.Errorf("Expected scheduled, got %s", s.State())
	}
	s.Stop()

	// Reconfiguring while stopped and restarting works the same way
	s.Configure(IntervalDaily, "12:00")
	if err := s.Start(); err != nil {
		t.Fatalf("Expected reconfigured cadence to start, got: %v", err)
	}
	s.Stop()
}

func TestSchedulerDisabledStaysStopped(t *testing.T) {
	s, _, _, _ := setupTestScheduler(t, Schedule{Enabled: false})

	if err := s.Start(); err != nil {
		t.Fatalf("Expected disabled start to succeed as a no-op, got: %v", err)
	}
	if s.State() != Stopped {
		t.Errorf("Expected stopped, got %s", s.State())
	}
}

func TestSchedulerRejectsBadCadence(t *testing.T) {
	s, _, _, _ := setupTestScheduler(t, Schedule{Enabled: true, Interval: "hourly", At: "00:00"})

	if err := s.Start(); err == nil {
		t.Error("Expected start to reject unknown interval")
	}
	if s.State() != Stopped {
		t.Errorf("Expected stopped after rejected start, got %s", s.State())
	}
}
