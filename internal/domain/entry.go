package domain

import (
	"encoding/json"
	"time"
)

// EntrySource is the channel that produced an entry
type EntrySource string

const (
	SourceKlaviyo   EntrySource = "klaviyo"
	SourceMailchimp EntrySource = "mailchimp"
	SourceAweber    EntrySource = "aweber"
	SourceSendgrid  EntrySource = "sendgrid"
	SourceAMOE      EntrySource = "amoe"
	SourcePurchase  EntrySource = "purchase"
	SourceDirect    EntrySource = "direct"
)

// Valid reports whether s is a known source channel
func (s EntrySource) Valid() bool {
	switch s {
	case SourceKlaviyo, SourceMailchimp, SourceAweber, SourceSendgrid, SourceAMOE, SourcePurchase, SourceDirect:
		return true
	}
	return false
}

// Entry is one recorded chance to win. Entries are never updated.
type Entry struct {
	ID            string          `json:"id"`
	PromoID       string          `json:"promo_id"`
	HashedEmail   string          `json:"hashed_email"`
	Sequence      int             `json:"entry_seq"`
	Source        EntrySource     `json:"source"`
	IPAddress     *string         `json:"ip_address,omitempty"`
	UserAgent     *string         `json:"user_agent,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	ContactSealed []byte          `json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ConsentLog is the consent record written together with its Entry
type ConsentLog struct {
	ID           string    `json:"id"`
	EntryID      string    `json:"entry_id"`
	ConsentBrand bool      `json:"consent_brand"`
	ConsentRafl  bool      `json:"consent_rafl"`
	ConsentText  string    `json:"consent_text"`
	IPAddress    *string   `json:"ip_address,omitempty"`
	UserAgent    *string   `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// EntryRequest is the ingestion request body
type EntryRequest struct {
	PromoID      string                 `json:"promoId" validate:"required"`
	Email        string                 `json:"email" validate:"required"`
	Source       EntrySource            `json:"source" validate:"required"`
	ConsentBrand bool                   `json:"consentBrand"`
	ConsentRafl  bool                   `json:"consentRafl"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Provenance is captured server side from the inbound request
type Provenance struct {
	IPAddress string
	UserAgent string
}

// EntryCounts are the existing entry counts seen inside the recording transaction
type EntryCounts struct {
	Identity int
	Origin   int
}

// EntryResponse is returned after an entry is recorded
type EntryResponse struct {
	Success bool   `json:"success"`
	EntryID string `json:"entryId"`
	Message string `json:"message"`
}
