// ABOUTME: End-to-end tests for the ingestion orchestrator
// ABOUTME: Verifies the fingerprint-store-version flow and advisory alerts

package ingest

import (
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nainya/chronostore/internal/logger"
	"github.com/nainya/chronostore/pkg/crypt"
	"github.com/nainya/chronostore/pkg/dataset"
	"github.com/nainya/chronostore/pkg/fingerprint"
	"github.com/nainya/chronostore/pkg/fourd"
	"github.com/nainya/chronostore/pkg/paper"
	"github.com/nainya/chronostore/pkg/temporal"
)

// memoryNotifier records alerts for assertions
type memoryNotifier struct {
	mu       sync.Mutex
	messages map[string][]string
}

func (n *memoryNotifier) Notify(userID, message string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.messages == nil {
		n.messages = make(map[string][]string)
	}
	n.messages[userID] = append(n.messages[userID], message)
}

func (n *memoryNotifier) sent(userID string) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messages[userID]
}

func setupTestOrchestrator(t *testing.T) (*Orchestrator, *temporal.Index, *memoryNotifier) {
	root := t.TempDir()
	log := logger.NewLogger(logger.Config{Level: "error", Output: io.Discard})

	index, err := fingerprint.NewIndex(filepath.Join(root, "dedup"), log, nil)
	if err != nil {
		t.Fatalf("Failed to open fingerprint index: %v", err)
	}
	store, err := fourd.NewStore(filepath.Join(root, "objects"), log, nil)
	if err != nil {
		t.Fatalf("Failed to open object store: %v", err)
	}
	timeline, err := temporal.NewIndex(filepath.Join(root, "timeline"), log, nil)
	if err != nil {
		t.Fatalf("Failed to open temporal index: %v", err)
	}
	papers, err := paper.NewStore(filepath.Join(root, "papers"), log)
	if err != nil {
		t.Fatalf("Failed to open paper store: %v", err)
	}
	keyring, err := crypt.NewKeyring(filepath.Join(root, "keys"), log)
	if err != nil {
		t.Fatalf("Failed to open keyring: %v", err)
	}

	notifier := &memoryNotifier{}
	return NewOrchestrator(index, store, timeline, papers, notifier, keyring, log, nil), timeline, notifier
}

func tableRequest(userID, paperID string, rows [][]string) *Request {
	return &Request{
		Payload: fourd.TablePayload(&dataset.Table{
			Columns: []string{"temp", "site"},
			Rows:    rows,
		}),
		UserID:    userID,
		PaperID:   paperID,
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Secret:    userID + "-secret",
	}
}

func TestIngestFirstUploadIsSafe(t *testing.T) {
	o, _, notifier := setupTestOrchestrator(t)

	res, err := o.Ingest(tableRequest("alice", "p1", [][]string{{"21.5", "alpha"}}))
	if err != nil {
		t.Fatalf("Failed to ingest: %v", err)
	}

	if !strings.HasPrefix(res.DataID, "data_p1_") {
		t.Errorf("Unexpected data ID %q", res.DataID)
	}
	if res.Category != dataset.CategoryTabular {
		t.Errorf("Expected tabular category, got %s", res.Category)
	}
	if res.EntryID == "" {
		t.Error("Expected entry to be registered")
	}
	if res.Verdict.HasExactDuplicate || res.Verdict.HasSimilar {
		t.Error("Expected first upload to be safe")
	}
	if res.Version == nil || res.Version.VersionNumber != 1 {
		t.Fatal("Expected first upload to create version 1")
	}
	if len(notifier.sent("alice")) != 0 {
		t.Error("Expected no alert for a safe upload")
	}
}

func TestIngestDuplicateStillStoresAndAlerts(t *testing.T) {
	o, _, notifier := setupTestOrchestrator(t)

	rows := [][]string{{"21.5", "alpha"}}
	if _, err := o.Ingest(tableRequest("alice", "p1", rows)); err != nil {
		t.Fatalf("Failed first ingest: %v", err)
	}

	// Bob uploads identical content under a different paper
	res, err := o.Ingest(tableRequest("bob", "p2", rows))
	if err != nil {
		t.Fatalf("Failed duplicate ingest: %v", err)
	}

	if !res.Verdict.HasExactDuplicate {
		t.Error("Expected exact duplicate verdict")
	}
	if res.Verdict.Recommendation != fingerprint.RecommendDuplicate {
		t.Errorf("Expected duplicate recommendation, got %q", res.Verdict.Recommendation)
	}
	// Duplicate findings are advisory: storage and versioning still ran
	if res.Version == nil || res.Version.VersionNumber != 1 {
		t.Error("Expected duplicate upload to still create a version")
	}

	msgs := notifier.sent("bob")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "duplicate") {
		t.Errorf("Expected duplicate alert for bob, got %v", msgs)
	}
}

func TestIngestSimilarContentAlerts(t *testing.T) {
	o, _, notifier := setupTestOrchestrator(t)

	if _, err := o.Ingest(tableRequest("alice", "p1", [][]string{{"21.5", "alpha"}})); err != nil {
		t.Fatalf("Failed first ingest: %v", err)
	}

	// Different table content, same category
	res, err := o.Ingest(tableRequest("bob", "p2", [][]string{{"19.2", "beta"}}))
	if err != nil {
		t.Fatalf("Failed similar ingest: %v", err)
	}

	if res.Verdict.HasExactDuplicate {
		t.Error("Expected no exact duplicate for different content")
	}
	if !res.Verdict.HasSimilar {
		t.Error("Expected similar verdict for same category")
	}

	msgs := notifier.sent("bob")
	if len(msgs) != 1 || !strings.Contains(msgs[0], "Similar") {
		t.Errorf("Expected similar alert for bob, got %v", msgs)
	}
}

func TestIngestSequencesVersions(t *testing.T) {
	o, timeline, _ := setupTestOrchestrator(t)

	for i, rows := range [][][]string{
		{{"21.5", "alpha"}},
		{{"19.2", "beta"}},
		{{"18.0", "gamma"}},
	} {
		res, err := o.Ingest(tableRequest("alice", "p1", rows))
		if err != nil {
			t.Fatalf("Failed ingest %d: %v", i+1, err)
		}
		if res.Version.VersionNumber != i+1 {
			t.Errorf("Expected version %d, got %d", i+1, res.Version.VersionNumber)
		}
	}

	events, err := timeline.AllVersions("p1")
	if err != nil {
		t.Fatalf("Failed to list versions: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 version events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.VersionNumber != i+1 {
			t.Errorf("Expected event %d at version %d, got %d", i, i+1, ev.VersionNumber)
		}
		if len(ev.DataRefs) != 1 {
			t.Errorf("Expected 1 data reference on version %d", ev.VersionNumber)
		}
	}
}

func TestIngestRequiresPayloadAndKey(t *testing.T) {
	o, _, _ := setupTestOrchestrator(t)

	if _, err := o.Ingest(&Request{UserID: "alice", PaperID: "p1", Secret: "s"}); err == nil {
		t.Error("Expected error for missing payload")
	}

	req := tableRequest("alice", "p1", [][]string{{"21.5", "alpha"}})
	req.Secret = ""
	if _, err := o.Ingest(req); err == nil {
		t.Error("Expected error for missing key and secret")
	}
}

func TestIngestThenTrace(t *testing.T) {
	o, _, _ := setupTestOrchestrator(t)

	res, err := o.Ingest(tableRequest("alice", "p1", [][]string{{"21.5", "alpha"}}))
	if err != nil {
		t.Fatalf("Failed to ingest: %v", err)
	}

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	traced, err := o.Trace("p1", "alice", ts.Add(-time.Hour), ts.Add(time.Hour), "alice-secret")
	if err != nil {
		t.Fatalf("Failed to trace: %v", err)
	}
	if len(traced) != 1 {
		t.Fatalf("Expected 1 traced object, got %d", len(traced))
	}
	if _, ok := traced[res.DataID]; !ok {
		t.Errorf("Expected traced objects to include %s", res.DataID)
	}
}

func TestIngestExplicitKeyBypassesKeyring(t *testing.T) {
	o, _, _ := setupTestOrchestrator(t)

	salt, err := crypt.NewSalt()
	if err != nil {
		t.Fatalf("Failed to generate salt: %v", err)
	}
	key := crypt.DeriveKey("external", salt)

	req := tableRequest("alice", "p1", [][]string{{"21.5", "alpha"}})
	req.Secret = ""
	req.Key = key

	res, err := o.Ingest(req)
	if err != nil {
		t.Fatalf("Failed to ingest with explicit key: %v", err)
	}
	if res.DataID == "" {
		t.Error("Expected stored object")
	}
}
