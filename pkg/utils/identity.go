package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
)

// IdentityHashLength is the length of a hex encoded identity hash
const IdentityHashLength = sha256.Size * 2

// NormalizeEmail lowercases and trims surrounding whitespace.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashIdentity derives the deduplication key for an entrant.
//
// The digest is unsalted so the same address always maps to the same key and
// can be counted per promotion. The cost is that common addresses can be
// recovered by hashing a dictionary of candidates.
func HashIdentity(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}

// ValidateEmail checks that the normalized address is a bare addr-spec
func ValidateEmail(email string) error {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return errors.New("email cannot be empty")
	}

	addr, err := mail.ParseAddress(normalized)
	if err != nil {
		return errors.New("invalid email format")
	}

	// Reject display-name forms like "Jane <jane@x.com>"
	if addr.Address != normalized {
		return errors.New("invalid email format")
	}

	return nil
}

// ShortHash truncates an identity hash for log fields
func ShortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
