package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"rafl-be/internal/domain"
)

// Signature modes
const (
	SignatureModePresence = "presence"
	SignatureModeHMAC     = "hmac"
)

// NewSignatureVerifier returns the verifier for mode
func NewSignatureVerifier(mode string) (SignatureVerifier, error) {
	switch mode {
	case "", SignatureModePresence:
		return PresenceVerifier{}, nil
	case SignatureModeHMAC:
		return HMACVerifier{}, nil
	default:
		return nil, fmt.Errorf("unknown signature mode %q", mode)
	}
}

// PresenceVerifier only requires the signature header to be non-empty. The
// signature value is not checked against the body.
type PresenceVerifier struct{}

func (PresenceVerifier) Verify(_ string, _ []byte, signature string) error {
	if strings.TrimSpace(signature) == "" {
		return domain.ErrSignatureInvalid
	}
	return nil
}

// HMACVerifier requires the signature to be the hex HMAC-SHA256 of the raw
// body keyed by the presented API key, optionally prefixed with "sha256=".
type HMACVerifier struct{}

func (HMACVerifier) Verify(apiKey string, body []byte, signature string) error {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return domain.ErrSignatureInvalid
	}

	got, err := hex.DecodeString(signature)
	if err != nil {
		return domain.ErrSignatureInvalid
	}

	if !hmac.Equal(got, Sign(apiKey, body)) {
		return domain.ErrSignatureInvalid
	}
	return nil
}

// Sign computes the HMAC-SHA256 of body keyed by apiKey
func Sign(apiKey string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(apiKey))
	mac.Write(body)
	return mac.Sum(nil)
}
