// ABOUTME: Fire-and-forget user notification collaborator
// ABOUTME: File-backed alert records, delivery failures never surface

package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nainya/chronostore/internal/logger"
)

// Notifier delivers alerts to users. Delivery is fire-and-forget; the
// caller never inspects success.
type Notifier interface {
	Notify(userID, message string, payload map[string]any)
}

// alertRecord is one persisted notification
type alertRecord struct {
	Timestamp time.Time      `json:"timestamp"`
	UserID    string         `json:"user_id"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// FileNotifier appends alert records to one log file per user
type FileNotifier struct {
	dir string
	log *logger.Logger
}

// NewFileNotifier opens or creates a notification directory
func NewFileNotifier(dir string, log *logger.Logger) (*FileNotifier, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create notification dir %s: %w", dir, err)
	}
	return &FileNotifier{dir: dir, log: log.Component("notifier")}, nil
}

// Notify appends one alert record. Failures are logged and dropped.
func (n *FileNotifier) Notify(userID, message string, payload map[string]any) {
	rec := alertRecord{
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		Message:   message,
		Payload:   payload,
	}

	line, err := json.Marshal(rec)
	if err != nil {
		n.log.Warn("Cannot encode alert").Str("user_id", userID).Err(err).Send()
		return
	}

	path := filepath.Join(n.dir, userID+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		n.log.Warn("Cannot deliver alert").Str("user_id", userID).Err(err).Send()
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		n.log.Warn("Cannot deliver alert").Str("user_id", userID).Err(err).Send()
		return
	}

	n.log.Info("Alert delivered").Str("user_id", userID).Str("message", message).Send()
}
