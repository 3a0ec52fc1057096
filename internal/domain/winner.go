package domain

import "time"

// Winner is the result of a draw. Winners are append only.
type Winner struct {
	ID               string    `json:"id"`
	PromoID          string    `json:"promoId"`
	StoreID          string    `json:"storeId"`
	EntryID          string    `json:"entryId"`
	HashedEmail      string    `json:"-"`
	CustomerEmail    *string   `json:"-"`
	PrizeDescription string    `json:"prizeDescription"`
	DrawnAt          time.Time `json:"drawnAt"`
}

// IdentityEntries groups the entries of one identity for a promotion
type IdentityEntries struct {
	HashedEmail   string
	EntryIDs      []string
	ContactSealed []byte
}

// WinnerResponse is the draw result handed to the dashboard
type WinnerResponse struct {
	ID               string    `json:"id"`
	PromoID          string    `json:"promoId"`
	EntryID          string    `json:"entryId"`
	Contact          string    `json:"contact"`
	ContactAvailable bool      `json:"contactAvailable"`
	PrizeDescription string    `json:"prizeDescription"`
	DrawnAt          time.Time `json:"drawnAt"`
}
