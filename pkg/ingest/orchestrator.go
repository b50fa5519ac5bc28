// ABOUTME: Ingestion orchestrator composing the storage triad
// ABOUTME: Fingerprint check, encrypted store, registration, version event

package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nainya/chronostore/internal/logger"
	"github.com/nainya/chronostore/internal/metrics"
	"github.com/nainya/chronostore/pkg/fingerprint"
	"github.com/nainya/chronostore/pkg/fourd"
	"github.com/nainya/chronostore/pkg/notify"
	"github.com/nainya/chronostore/pkg/paper"
	"github.com/nainya/chronostore/pkg/temporal"
)

// KeyProvider derives per-user symmetric keys from caller secrets.
// Satisfied by crypt.Keyring.
type KeyProvider interface {
	Derive(userID, secret string) ([]byte, error)
}

// Request carries one upload through the ingestion path
type Request struct {
	Payload      *fourd.Payload
	UserID       string
	PaperID      string
	Timestamp    time.Time
	Coordinate   *fourd.Coordinate
	Description  string
	UpdateReason string
	Authors      []string

	// Key encrypts the object when set; otherwise the key is derived
	// from Secret through the key provider.
	Key    []byte
	Secret string
}

// Result reports a completed ingestion. The verdict is advisory: a
// duplicate finding never blocks storage.
type Result struct {
	DataID      string
	Category    string
	StoragePath string
	EntryID     string
	Verdict     fingerprint.Verdict
	Version     *temporal.VersionEvent
}

// Orchestrator wires the fingerprint index, the encrypted object store,
// the paper record owner and the temporal index into the one-way
// ingestion flow.
type Orchestrator struct {
	index    *fingerprint.Index
	store    *fourd.Store
	timeline *temporal.Index
	papers   *paper.Store
	notifier notify.Notifier
	keys     KeyProvider
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// NewOrchestrator assembles the ingestion path
func NewOrchestrator(
	index *fingerprint.Index,
	store *fourd.Store,
	timeline *temporal.Index,
	papers *paper.Store,
	notifier notify.Notifier,
	keys KeyProvider,
	log *logger.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		index:    index,
		store:    store,
		timeline: timeline,
		papers:   papers,
		notifier: notifier,
		keys:     keys,
		log:      log.Component("ingestion"),
		metrics:  m,
	}
}

// Ingest runs one upload through the full flow: fingerprint, verdict,
// encrypted persistence, registration, version event. Ingestion
// completes or fails as a whole; dedup findings are advisory and
// alerting happens after storage, never as a gate.
func (o *Orchestrator) Ingest(req *Request) (*Result, error) {
	if req.Payload == nil {
		return nil, fmt.Errorf("ingest: payload is required")
	}

	key := req.Key
	if key == nil {
		if req.Secret == "" {
			return nil, fmt.Errorf("ingest: key or secret is required")
		}
		derived, err := o.keys.Derive(req.UserID, req.Secret)
		if err != nil {
			return nil, fmt.Errorf("ingest: cannot derive key: %w", err)
		}
		key = derived
	}

	dataID := newDataID(req.PaperID)
	category := req.Payload.Category()

	digest, degraded := fingerprint.Hash(req.Payload.Value())
	if degraded != nil {
		o.metrics.RecordDegradedFingerprint()
		o.log.Warn("Fingerprint degraded to error-derived hash").
			Str("data_id", dataID).
			Err(degraded).
			Send()
	}

	verdict := o.index.Check(digest, category, req.PaperID, req.UserID)

	storagePath, err := o.store.Save(req.Payload, dataID, req.UserID, req.PaperID, req.Timestamp, req.Coordinate, key)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	entryID := o.index.Register(digest, category, req.PaperID, req.UserID)
	o.alert(req.UserID, verdict)

	ev, err := o.recordVersion(req, dataID, digest, category)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	o.log.Info("Successfully ingested 4D data").
		Str("data_id", dataID).
		Str("paper_id", req.PaperID).
		Str("category", category).
		Send()

	return &Result{
		DataID:      dataID,
		Category:    category,
		StoragePath: storagePath,
		EntryID:     entryID,
		Verdict:     verdict,
		Version:     ev,
	}, nil
}

// Trace retrieves all of a paper's objects for a user inside an
// inclusive time window, deriving the key from the user's secret.
func (o *Orchestrator) Trace(paperID, userID string, start, end time.Time, secret string) (map[string]*fourd.Container, error) {
	key, err := o.keys.Derive(userID, secret)
	if err != nil {
		return nil, fmt.Errorf("trace: cannot derive key: %w", err)
	}
	return o.store.Trace(paperID, userID, start, end, key)
}

// alert sends the post-storage advisory notification. Exact duplicates
// take precedence over similar findings.
func (o *Orchestrator) alert(userID string, verdict fingerprint.Verdict) {
	switch {
	case verdict.HasExactDuplicate:
		o.notifier.Notify(userID, "Exact duplicate found for your data upload", map[string]any{
			"fingerprint":   verdict.Hash,
			"data_category": verdict.Category,
			"matches":       verdict.Matches,
		})
	case verdict.HasSimilar:
		o.notifier.Notify(userID, "Similar data found for your data upload", map[string]any{
			"fingerprint":   verdict.Hash,
			"data_category": verdict.Category,
			"matches":       verdict.Matches,
		})
	}
}

// recordVersion appends the upload as the paper's next version and
// inserts the event into the temporal index.
func (o *Orchestrator) recordVersion(req *Request, dataID, digest, category string) (*temporal.VersionEvent, error) {
	rec, err := o.papers.Ensure(req.PaperID, req.PaperID, req.UserID)
	if err != nil {
		return nil, err
	}

	reason := req.UpdateReason
	if reason == "" {
		reason = "data upload: " + dataID
	}
	authors := req.Authors
	if len(authors) == 0 {
		authors = []string{req.UserID}
	}

	ref := temporal.DataRef{
		DataID:      dataID,
		Timestamp:   req.Timestamp.UTC(),
		Coordinate:  req.Coordinate,
		Hash:        digest,
		Category:    category,
		Description: req.Description,
	}

	ev, err := o.papers.NewVersion(req.PaperID, paper.VersionParams{
		VersionNumber: rec.LatestVersion + 1,
		UpdateReason:  reason,
		DataRefs:      []temporal.DataRef{ref},
		Content:       fmt.Sprintf("%s v%d %s", req.PaperID, rec.LatestVersion+1, digest),
		Authors:       authors,
		SpaceContext:  req.Coordinate,
	})
	if err != nil {
		return nil, err
	}

	if err := o.timeline.Insert(ev, ev.CreatedAt); err != nil {
		return nil, err
	}
	return ev, nil
}

// newDataID builds a unique object identifier scoped to a paper
func newDataID(paperID string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("data_%s_%s", paperID, id[:8])
}
