// ABOUTME: Tests for the per-user keyring
// ABOUTME: Verifies salt persistence, key stability and rotation

package crypt

import (
	"bytes"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/nainya/chronostore/internal/logger"
)

func setupTestKeyring(t *testing.T) (*Keyring, string) {
	dir := t.TempDir()
	kr, err := NewKeyring(dir, logger.NewLogger(logger.Config{Level: "error", Output: io.Discard}))
	if err != nil {
		t.Fatalf("Failed to open keyring: %v", err)
	}
	return kr, dir
}

func TestDeriveStableKey(t *testing.T) {
	kr, _ := setupTestKeyring(t)

	k1, err := kr.Derive("alice", "secret")
	if err != nil {
		t.Fatalf("Failed to derive key: %v", err)
	}
	k2, err := kr.Derive("alice", "secret")
	if err != nil {
		t.Fatalf("Failed to derive key again: %v", err)
	}

	if !bytes.Equal(k1, k2) {
		t.Error("Expected same secret to derive the same key for a user")
	}
	if !kr.Has("alice") {
		t.Error("Expected keyring to record alice's salt")
	}
}

func TestDeriveIsolatesUsers(t *testing.T) {
	kr, _ := setupTestKeyring(t)

	k1, _ := kr.Derive("alice", "secret")
	k2, _ := kr.Derive("bob", "secret")

	if bytes.Equal(k1, k2) {
		t.Error("Expected different users to derive different keys for the same secret")
	}
}

func TestSaltPersistsAcrossReopen(t *testing.T) {
	kr, dir := setupTestKeyring(t)

	k1, err := kr.Derive("alice", "secret")
	if err != nil {
		t.Fatalf("Failed to derive key: %v", err)
	}

	reopened, err := NewKeyring(dir, logger.NewLogger(logger.Config{Level: "error", Output: io.Discard}))
	if err != nil {
		t.Fatalf("Failed to reopen keyring: %v", err)
	}
	k2, err := reopened.Derive("alice", "secret")
	if err != nil {
		t.Fatalf("Failed to derive key after reopen: %v", err)
	}

	if !bytes.Equal(k1, k2) {
		t.Error("Expected key to survive keyring reopen")
	}
}

func TestRotateChangesKey(t *testing.T) {
	kr, _ := setupTestKeyring(t)

	k1, _ := kr.Derive("alice", "secret")
	k2, err := kr.Rotate("alice", "secret")
	if err != nil {
		t.Fatalf("Failed to rotate: %v", err)
	}

	if bytes.Equal(k1, k2) {
		t.Error("Expected rotation to change the key even for the same secret")
	}
}

func TestRotateRollsBackOnPersistFailure(t *testing.T) {
	kr, _ := setupTestKeyring(t)

	k1, err := kr.Derive("alice", "secret")
	if err != nil {
		t.Fatalf("Failed to derive key: %v", err)
	}

	// A directory at the keyring path makes the persist rename fail
	if err := os.Remove(kr.path); err != nil {
		t.Fatalf("Failed to remove keyring file: %v", err)
	}
	if err := os.Mkdir(kr.path, 0o755); err != nil {
		t.Fatalf("Failed to block keyring path: %v", err)
	}

	if _, err := kr.Rotate("alice", "secret"); err == nil {
		t.Fatal("Expected rotate to fail when persist fails")
	}

	// The in-memory salt must still match what is on disk
	k2, err := kr.Derive("alice", "secret")
	if err != nil {
		t.Fatalf("Failed to derive key after failed rotate: %v", err)
	}
	if !bytes.Equal(k1, k2) {
		t.Error("Expected failed rotate to keep the previous salt")
	}
}

func TestRotateUnknownUserFails(t *testing.T) {
	kr, _ := setupTestKeyring(t)

	if _, err := kr.Rotate("nobody", "secret"); !errors.Is(err, ErrUnknownUser) {
		t.Errorf("Expected ErrUnknownUser, got: %v", err)
	}
}

func TestDeleteSalt(t *testing.T) {
	kr, _ := setupTestKeyring(t)

	kr.Derive("alice", "secret")
	if err := kr.Delete("alice"); err != nil {
		t.Fatalf("Failed to delete salt: %v", err)
	}
	if kr.Has("alice") {
		t.Error("Expected salt gone after delete")
	}

	// Deleting a missing user is a no-op
	if err := kr.Delete("alice"); err != nil {
		t.Errorf("Expected idempotent delete, got: %v", err)
	}
}
