// ABOUTME: Paper version record owner
// ABOUTME: Enforces strictly sequential version numbering per paper

package paper

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nainya/chronostore/internal/logger"
	"github.com/nainya/chronostore/pkg/temporal"
)

var (
	// ErrNotFound indicates a paper record does not exist
	ErrNotFound = errors.New("paper: record not found")

	// ErrVersionGap indicates a non-sequential version number.
	// Versions start at 1 and each append must be exactly latest+1.
	ErrVersionGap = errors.New("paper: non-sequential version number")
)

// Store owns paper records and the sequential version invariant.
// The temporal index persists the events this store produces; the
// sequencing check lives here, not there.
type Store struct {
	dir string
	mu  sync.Mutex
	log *logger.Logger
}

// NewStore opens or creates a paper record store under dir
func NewStore(dir string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create paper dir %s: %w", dir, err)
	}
	return &Store{dir: dir, log: log.Component("paper_store")}, nil
}

func (s *Store) recordPath(paperID string) string {
	return filepath.Join(s.dir, paperID+".json")
}

// Get loads one paper record
func (s *Store) Get(paperID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(paperID)
}

// Ensure creates a paper record if none exists yet
func (s *Store) Ensure(paperID, title, creator string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(paperID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	rec = &Record{
		PaperID:   paperID,
		Title:     title,
		Creator:   creator,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.write(rec); err != nil {
		return nil, err
	}

	s.log.Info("Paper record created").
		Str("paper_id", paperID).
		Str("creator", creator).
		Send()
	return rec, nil
}

// NewVersion appends a version to the paper's history. The version
// number must be exactly latest+1; anything else fails with
// ErrVersionGap and leaves the record unchanged.
func (s *Store) NewVersion(paperID string, params VersionParams) (*temporal.VersionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(paperID)
	if err != nil {
		return nil, err
	}

	if params.VersionNumber != rec.LatestVersion+1 {
		return nil, fmt.Errorf("%w: got %d, latest is %d",
			ErrVersionGap, params.VersionNumber, rec.LatestVersion)
	}

	ev := temporal.VersionEvent{
		PaperID:       paperID,
		VersionNumber: params.VersionNumber,
		CreatedAt:     time.Now().UTC(),
		UpdateReason:  params.UpdateReason,
		DataRefs:      params.DataRefs,
		ContentHash:   HashContent(params.Content),
		Authors:       params.Authors,
		SpaceContext:  params.SpaceContext,
	}

	rec.Versions = append(rec.Versions, ev)
	rec.LatestVersion = params.VersionNumber
	if err := s.write(rec); err != nil {
		return nil, err
	}

	s.log.Info("New version saved").
		Str("paper_id", paperID).
		Int("version", params.VersionNumber).
		Send()
	return &ev, nil
}

// Latest returns the most recent version event for a paper
func (s *Store) Latest(paperID string) (*temporal.VersionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.read(paperID)
	if err != nil {
		return nil, err
	}
	if len(rec.Versions) == 0 {
		return nil, fmt.Errorf("%w: %s has no versions", ErrNotFound, paperID)
	}
	return &rec.Versions[len(rec.Versions)-1], nil
}

// HashContent computes the rendered-version content hash
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// read loads a record. Caller holds mu.
func (s *Store) read(paperID string) (*Record, error) {
	data, err := os.ReadFile(s.recordPath(paperID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, paperID)
		}
		return nil, fmt.Errorf("cannot read paper %s: %w", paperID, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("cannot parse paper %s: %w", paperID, err)
	}
	return &rec, nil
}

// write persists a record atomically. Caller holds mu.
func (s *Store) write(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode paper %s: %w", rec.PaperID, err)
	}

	path := s.recordPath(rec.PaperID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("cannot write paper %s: %w", rec.PaperID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cannot finalize paper %s: %w", rec.PaperID, err)
	}
	return nil
}
