package domain

import (
	"strconv"
	"strings"
	"time"
)

// PromotionStatus is the lifecycle state of a promotion
type PromotionStatus string

const (
	PromotionDraft  PromotionStatus = "draft"
	PromotionActive PromotionStatus = "active"
	PromotionPaused PromotionStatus = "paused"
	PromotionEnded  PromotionStatus = "ended"
)

// Promotion is a single giveaway campaign owned by a store
type Promotion struct {
	ID                    string          `json:"id"`
	StoreID               string          `json:"store_id"`
	Title                 string          `json:"title"`
	PrizeAmount           float64         `json:"prize_amount"`
	PrizeDescription      string          `json:"prize_description"`
	Status                PromotionStatus `json:"status"`
	StartDate             *time.Time      `json:"start_date,omitempty"`
	EndDate               *time.Time      `json:"end_date,omitempty"`
	MaxEntriesPerEmail    int             `json:"max_entries_per_email"`
	MaxEntriesPerIP       *int            `json:"max_entries_per_ip,omitempty"`
	EnablePurchaseEntries bool            `json:"enable_purchase_entries"`
	RulesText             string          `json:"rules_text"`
	EligibilityText       string          `json:"eligibility_text"`
	AMOEInstructions      string          `json:"amoe_instructions"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// CheckWindow reports whether the promotion accepts entries at now.
// Status is checked first, then the start date, then the end date.
func (p *Promotion) CheckWindow(now time.Time) error {
	if p.Status != PromotionActive {
		return ErrPromotionNotActive
	}
	if p.StartDate != nil && p.StartDate.After(now) {
		return ErrPromotionNotStarted
	}
	if p.EndDate != nil && p.EndDate.Before(now) {
		return ErrPromotionEnded
	}
	return nil
}

// AcceptsSource reports whether entries from source may be recorded
func (p *Promotion) AcceptsSource(source EntrySource) bool {
	if source == SourcePurchase {
		return p.EnablePurchaseEntries
	}
	return true
}

var promotionTransitions = map[PromotionStatus][]PromotionStatus{
	PromotionDraft:  {PromotionActive},
	PromotionActive: {PromotionPaused, PromotionEnded},
	PromotionPaused: {PromotionActive, PromotionEnded},
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
// Ended is terminal.
func (p *Promotion) CanTransitionTo(next PromotionStatus) bool {
	for _, allowed := range promotionTransitions[p.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Placeholder tokens that may appear in rules, eligibility and AMOE text
const (
	PlaceholderPrizeAmount = "{PRIZE_AMOUNT}"
	PlaceholderStartDate   = "{START_DATE}"
	PlaceholderEndDate     = "{END_DATE}"
)

// RenderText substitutes the promotion placeholders in text.
// Stored text is never rewritten; substitution happens on read.
func (p *Promotion) RenderText(text string) string {
	start := "[Start Date]"
	if p.StartDate != nil {
		start = p.StartDate.Format("1/2/2006")
	}
	end := "[End Date]"
	if p.EndDate != nil {
		end = p.EndDate.Format("1/2/2006")
	}

	return strings.NewReplacer(
		PlaceholderPrizeAmount, "$"+formatAmount(p.PrizeAmount),
		PlaceholderStartDate, start,
		PlaceholderEndDate, end,
	).Replace(text)
}

// formatAmount renders whole dollars with thousands separators, keeping cents when present
func formatAmount(amount float64) string {
	cents := int64(amount*100 + 0.5)
	whole := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	if rem := cents % 100; rem != 0 {
		b.WriteByte('.')
		if rem < 10 {
			b.WriteByte('0')
		}
		b.WriteString(strconv.FormatInt(rem, 10))
	}
	return b.String()
}

// PromotionRules is the public, rendered view of a promotion's legal text
type PromotionRules struct {
	PromoID            string     `json:"promoId"`
	Title              string     `json:"title"`
	PrizeDescription   string     `json:"prizeDescription"`
	StartDate          *time.Time `json:"startDate,omitempty"`
	EndDate            *time.Time `json:"endDate,omitempty"`
	MaxEntriesPerEmail int        `json:"maxEntriesPerEmail"`
	Rules              string     `json:"rules"`
	Eligibility        string     `json:"eligibility"`
	AMOEInstructions   string     `json:"amoeInstructions"`
}
