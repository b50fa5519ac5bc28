package crypt

import "errors"

var (
	// ErrIntegrity indicates decryption failed: wrong key or tampered ciphertext
	ErrIntegrity = errors.New("crypt: integrity check failed")

	// ErrUnknownUser indicates a keyring operation on an unknown user
	ErrUnknownUser = errors.New("crypt: unknown user")
)
