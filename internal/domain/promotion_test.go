package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPromotion_CheckWindow(t *testing.T) {
	now := time.Now()
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	tests := []struct {
		name    string
		promo   Promotion
		wantErr error
	}{
		{"active in window", Promotion{Status: PromotionActive, StartDate: &yesterday, EndDate: &tomorrow}, nil},
		{"active without dates", Promotion{Status: PromotionActive}, nil},
		{"paused", Promotion{Status: PromotionPaused, StartDate: &yesterday, EndDate: &tomorrow}, ErrPromotionNotActive},
		{"draft", Promotion{Status: PromotionDraft}, ErrPromotionNotActive},
		{"ended status", Promotion{Status: PromotionEnded}, ErrPromotionNotActive},
		{"not started", Promotion{Status: PromotionActive, StartDate: &tomorrow}, ErrPromotionNotStarted},
		{"ended by date", Promotion{Status: PromotionActive, EndDate: &yesterday}, ErrPromotionEnded},
		{"status checked before dates", Promotion{Status: PromotionPaused, StartDate: &tomorrow}, ErrPromotionNotActive},
		{"start checked before end", Promotion{Status: PromotionActive, StartDate: &tomorrow, EndDate: &yesterday}, ErrPromotionNotStarted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.promo.CheckWindow(now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestPromotion_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to PromotionStatus
		allowed  bool
	}{
		{PromotionDraft, PromotionActive, true},
		{PromotionDraft, PromotionEnded, false},
		{PromotionActive, PromotionPaused, true},
		{PromotionPaused, PromotionActive, true},
		{PromotionActive, PromotionEnded, true},
		{PromotionPaused, PromotionEnded, true},
		{PromotionActive, PromotionDraft, false},
		{PromotionEnded, PromotionActive, false},
		{PromotionEnded, PromotionPaused, false},
	}

	for _, tt := range tests {
		p := Promotion{Status: tt.from}
		assert.Equal(t, tt.allowed, p.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestPromotion_RenderText(t *testing.T) {
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	p := Promotion{PrizeAmount: 2500, StartDate: &start, EndDate: &end}
	assert.Equal(t,
		"Prize: $2,500. From 1/5/2026 until 12/31/2026.",
		p.RenderText("Prize: {PRIZE_AMOUNT}. From {START_DATE} until {END_DATE}."))

	undated := Promotion{PrizeAmount: 50}
	assert.Equal(t, "$50 [Start Date]-[End Date]", undated.RenderText("{PRIZE_AMOUNT} {START_DATE}-{END_DATE}"))
	assert.Equal(t, "no placeholders", undated.RenderText("no placeholders"))
}

func TestFormatAmount(t *testing.T) {
	tests := map[float64]string{
		0:       "0",
		5:       "5",
		999:     "999",
		1000:    "1,000",
		1234567: "1,234,567",
		99.5:    "99.50",
		1250.05: "1,250.05",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatAmount(in), "%v", in)
	}
}

func TestPromotion_AcceptsSource(t *testing.T) {
	p := Promotion{}
	assert.True(t, p.AcceptsSource(SourceAMOE))
	assert.True(t, p.AcceptsSource(SourceKlaviyo))
	assert.False(t, p.AcceptsSource(SourcePurchase))

	p.EnablePurchaseEntries = true
	assert.True(t, p.AcceptsSource(SourcePurchase))
}

func TestEntrySource_Valid(t *testing.T) {
	for _, s := range []EntrySource{SourceKlaviyo, SourceMailchimp, SourceAweber, SourceSendgrid, SourceAMOE, SourcePurchase, SourceDirect} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, EntrySource("shopify").Valid())
	assert.False(t, EntrySource("").Valid())
}
