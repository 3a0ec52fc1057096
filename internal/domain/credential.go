package domain

import "time"

// CredentialPrefixLength is the number of leading secret characters stored for lookup
const CredentialPrefixLength = 12

// APICredential is a store scoped API key. Only the prefix and the hash of the
// secret are persisted.
type APICredential struct {
	ID         string     `json:"id"`
	StoreID    string     `json:"store_id"`
	Label      string     `json:"label"`
	KeyPrefix  string     `json:"key_prefix"`
	KeyHash    string     `json:"-"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// IssuedCredential is returned once, when a credential is created
type IssuedCredential struct {
	Credential *APICredential `json:"credential"`
	Secret     string         `json:"secret"`
}

// CreateCredentialRequest is the management request to issue a credential
type CreateCredentialRequest struct {
	Label string `json:"label" validate:"required,max=100"`
}

// OperatorClaims identify the dashboard operator behind a management request
type OperatorClaims struct {
	Subject   string    `json:"sub"`
	StoreID   string    `json:"store_id"`
	ExpiresAt time.Time `json:"exp"`
}
