// ABOUTME: Per-user key provider with persisted salts
// ABOUTME: Derives stable symmetric keys from caller-supplied secrets

package crypt

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nainya/chronostore/internal/logger"
)

// Keyring derives per-user symmetric keys. Only salts are persisted;
// keys exist in memory for the duration of a call.
type Keyring struct {
	path  string
	mu    sync.Mutex
	salts map[string]string // userID -> hex salt
	log   *logger.Logger
}

// NewKeyring opens or creates a keyring under dir
func NewKeyring(dir string, log *logger.Logger) (*Keyring, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create keyring dir %s: %w", dir, err)
	}

	kr := &Keyring{
		path:  filepath.Join(dir, "keyring.json"),
		salts: make(map[string]string),
		log:   log.Component("keyring"),
	}

	data, err := os.ReadFile(kr.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("cannot read keyring: %w", err)
		}
		return kr, nil
	}

	if err := json.Unmarshal(data, &kr.salts); err != nil {
		return nil, fmt.Errorf("cannot parse keyring: %w", err)
	}
	return kr, nil
}

// Derive returns the user's symmetric key for the given secret,
// creating and persisting a salt on first use. The same secret always
// yields the same key for a user.
func (kr *Keyring) Derive(userID, secret string) ([]byte, error) {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	saltHex, ok := kr.salts[userID]
	if !ok {
		salt, err := NewSalt()
		if err != nil {
			return nil, err
		}
		kr.salts[userID] = hex.EncodeToString(salt)
		if err := kr.persist(); err != nil {
			delete(kr.salts, userID)
			return nil, err
		}
		kr.log.Info("Created encryption salt").Str("user_id", userID).Send()
		return DeriveKey(secret, salt), nil
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return nil, fmt.Errorf("corrupt salt for user %s: %w", userID, err)
	}
	return DeriveKey(secret, salt), nil
}

// Rotate replaces the user's salt, yielding a new key for newSecret
func (kr *Keyring) Rotate(userID, newSecret string) ([]byte, error) {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	prev, ok := kr.salts[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	salt, err := NewSalt()
	if err != nil {
		return nil, err
	}
	kr.salts[userID] = hex.EncodeToString(salt)
	if err := kr.persist(); err != nil {
		kr.salts[userID] = prev
		return nil, err
	}

	kr.log.Info("Rotated encryption salt").Str("user_id", userID).Send()
	return DeriveKey(newSecret, salt), nil
}

// Has reports whether a user has a salt
func (kr *Keyring) Has(userID string) bool {
	kr.mu.Lock()
	defer kr.mu.Unlock()
	_, ok := kr.salts[userID]
	return ok
}

// Delete removes a user's salt
func (kr *Keyring) Delete(userID string) error {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	if _, ok := kr.salts[userID]; !ok {
		return nil
	}
	delete(kr.salts, userID)
	return kr.persist()
}

// persist writes the salts atomically. Caller holds mu.
func (kr *Keyring) persist() error {
	data, err := json.MarshalIndent(kr.salts, "", "  ")
	if err != nil {
		return err
	}

	tmp := kr.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("cannot write keyring: %w", err)
	}
	return os.Rename(tmp, kr.path)
}
