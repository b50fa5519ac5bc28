// ABOUTME: Encrypted object store for 4D measurement data
// ABOUTME: Sealed container per data ID, time-window trace across the directory

package fourd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nainya/chronostore/internal/logger"
	"github.com/nainya/chronostore/internal/metrics"
	"github.com/nainya/chronostore/pkg/crypt"
)

// fileExt marks sealed 4D containers
const fileExt = ".c4d"

// Store persists 4D objects as encrypted containers, one file per
// data ID. Keys are supplied by the caller per call and never stored.
type Store struct {
	dir     string
	log     *logger.Logger
	metrics *metrics.Metrics
}

// NewStore opens or creates an object store under dir
func NewStore(dir string, log *logger.Logger, m *metrics.Metrics) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create store dir %s: %w", dir, err)
	}
	return &Store{
		dir:     dir,
		log:     log.StoreLogger(),
		metrics: m,
	}, nil
}

// objectPath derives the container path for a data ID
func (s *Store) objectPath(dataID string) string {
	return filepath.Join(s.dir, dataID+fileExt)
}

// Save encrypts payload and metadata as one container and writes it.
// The plaintext never touches durable storage: sealing happens in
// memory and only ciphertext is written.
func (s *Store) Save(p *Payload, dataID, userID, paperID string, timestamp time.Time, coord *Coordinate, key []byte) (string, error) {
	start := time.Now()

	container := Container{
		Metadata: Metadata{
			DataID:     dataID,
			UserID:     userID,
			PaperID:    paperID,
			Timestamp:  timestamp.UTC(),
			Coordinate: coord,
			DataHash:   p.integrityHash(),
			CreatedAt:  time.Now().UTC(),
		},
		Payload: p,
	}

	plaintext, err := json.Marshal(&container)
	if err != nil {
		s.metrics.RecordObjectStore("error", time.Since(start))
		return "", fmt.Errorf("cannot encode container %s: %w", dataID, err)
	}

	sealed, err := crypt.Seal(plaintext, key)
	if err != nil {
		s.metrics.RecordObjectStore("error", time.Since(start))
		return "", fmt.Errorf("cannot seal container %s: %w", dataID, err)
	}

	path := s.objectPath(dataID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		s.metrics.RecordObjectStore("error", time.Since(start))
		return "", fmt.Errorf("cannot write container %s: %w", dataID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		s.metrics.RecordObjectStore("error", time.Since(start))
		return "", fmt.Errorf("cannot finalize container %s: %w", dataID, err)
	}

	s.metrics.RecordObjectStore("success", time.Since(start))
	s.log.Info("4D data saved").
		Str("data_id", dataID).
		Str("paper_id", paperID).
		Str("user_id", userID).
		Send()
	return path, nil
}

// Load decrypts one container. Optional timestamp and coordinate
// filters must match the stored metadata exactly; a disagreement is a
// rejected read, not a missing object.
func (s *Store) Load(dataID string, key []byte, timestamp *time.Time, coord *Coordinate) (*Container, error) {
	start := time.Now()

	sealed, err := os.ReadFile(s.objectPath(dataID))
	if err != nil {
		s.metrics.RecordObjectLoad("error", time.Since(start))
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, dataID)
		}
		return nil, fmt.Errorf("cannot read container %s: %w", dataID, err)
	}

	plaintext, err := crypt.Open(sealed, key)
	if err != nil {
		s.metrics.RecordObjectLoad("error", time.Since(start))
		return nil, fmt.Errorf("container %s: %w", dataID, err)
	}

	var container Container
	if err := json.Unmarshal(plaintext, &container); err != nil {
		s.metrics.RecordObjectLoad("error", time.Since(start))
		return nil, fmt.Errorf("cannot decode container %s: %w", dataID, err)
	}

	if timestamp != nil && !container.Metadata.Timestamp.Equal(*timestamp) {
		s.metrics.RecordObjectLoad("error", time.Since(start))
		return nil, fmt.Errorf("%w: timestamp %s != %s", ErrFilterMismatch,
			timestamp.UTC().Format(time.RFC3339Nano),
			container.Metadata.Timestamp.Format(time.RFC3339Nano))
	}
	if coord != nil {
		if container.Metadata.Coordinate == nil || *container.Metadata.Coordinate != *coord {
			s.metrics.RecordObjectLoad("error", time.Since(start))
			return nil, fmt.Errorf("%w: space coordinate", ErrFilterMismatch)
		}
	}

	s.metrics.RecordObjectLoad("success", time.Since(start))
	s.log.Debug("4D data loaded").Str("data_id", dataID).Send()
	return &container, nil
}

// Delete removes one container
func (s *Store) Delete(dataID string) error {
	if err := os.Remove(s.objectPath(dataID)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, dataID)
		}
		return err
	}
	return nil
}

// Trace scans every container in the store and returns the objects
// belonging to the paper and user inside the inclusive time window.
// A failure on any single container is logged and skipped; one bad
// object never aborts the scan.
func (s *Store) Trace(paperID, userID string, startTime, endTime time.Time, key []byte) (map[string]*Container, error) {
	begin := time.Now()

	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("cannot scan store dir: %w", err)
	}

	traced := make(map[string]*Container)
	skipped := 0
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		dataID := strings.TrimSuffix(name, fileExt)

		container, err := s.Load(dataID, key, nil, nil)
		if err != nil {
			s.log.Warn("Failed to process data during trace").
				Str("data_id", dataID).
				Err(err).
				Send()
			skipped++
			continue
		}

		meta := container.Metadata
		if meta.PaperID != paperID || meta.UserID != userID {
			continue
		}
		if meta.Timestamp.Before(startTime) || meta.Timestamp.After(endTime) {
			continue
		}
		traced[dataID] = container
	}

	s.metrics.RecordTrace(skipped, time.Since(begin))
	s.log.Info("Traced 4D data").
		Str("paper_id", paperID).
		Int("matched", len(traced)).
		Int("skipped", skipped).
		Send()
	return traced, nil
}
