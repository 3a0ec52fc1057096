package service

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// ErrVaultDisabled is returned when no sealing key is configured
var ErrVaultDisabled = errors.New("contact vault disabled")

// ContactVault seals entrant contact addresses so a winner can be reached
// without storing the address in the clear. A vault without a key seals nothing.
type ContactVault struct {
	key     [32]byte
	enabled bool
}

// NewContactVault parses a hex encoded 32 byte key. An empty key yields a
// disabled vault.
func NewContactVault(hexKey string) (*ContactVault, error) {
	v := &ContactVault{}
	if hexKey == "" {
		return v, nil
	}

	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("contact sealing key is not hex: %w", err)
	}
	if len(raw) != len(v.key) {
		return nil, fmt.Errorf("contact sealing key must be %d bytes, got %d", len(v.key), len(raw))
	}

	copy(v.key[:], raw)
	v.enabled = true
	return v, nil
}

// Enabled reports whether the vault has a key
func (v *ContactVault) Enabled() bool {
	return v != nil && v.enabled
}

// Seal encrypts contact. The nonce is prepended to the box.
func (v *ContactVault) Seal(contact string) ([]byte, error) {
	if !v.Enabled() {
		return nil, ErrVaultDisabled
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(contact), &nonce, &v.key), nil
}

// Open decrypts a box produced by Seal
func (v *ContactVault) Open(sealed []byte) (string, error) {
	if !v.Enabled() {
		return "", ErrVaultDisabled
	}
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", errors.New("sealed contact too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &v.key)
	if !ok {
		return "", errors.New("sealed contact failed authentication")
	}
	return string(plain), nil
}
