package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rafl-be/internal/domain"
)

type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) GetPromotion(ctx context.Context, storeID, promoID string, load PromotionLoader) (*domain.Promotion, error) {
	return load(ctx, storeID, promoID)
}

func (c *recordingCache) InvalidatePromotion(_ context.Context, promoID string) {
	c.invalidated = append(c.invalidated, promoID)
}

func TestPromotionService_Rules(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	promo := activePromotion(3)
	promo.PrizeAmount = 1234
	promo.StartDate = &start
	promo.RulesText = "Win {PRIZE_AMOUNT}! Runs {START_DATE} to {END_DATE}."
	promo.AMOEInstructions = "Mail a postcard before {END_DATE}."

	svc := NewPromotionService(newFakePromotionRepo(promo), nil, nil, zap.NewNop(), "@every 1m")

	rules, err := svc.Rules(context.Background(), testPromoID)
	require.NoError(t, err)
	assert.Equal(t, "Win $1,234! Runs 3/1/2026 to [End Date].", rules.Rules)
	assert.Equal(t, "Mail a postcard before [End Date].", rules.AMOEInstructions)
	assert.Equal(t, 3, rules.MaxEntriesPerEmail)

	// stored text is untouched
	assert.Contains(t, promo.RulesText, "{PRIZE_AMOUNT}")
}

func TestPromotionService_RulesHidesDrafts(t *testing.T) {
	promo := activePromotion(3)
	promo.Status = domain.PromotionDraft
	svc := NewPromotionService(newFakePromotionRepo(promo), nil, nil, zap.NewNop(), "@every 1m")

	_, err := svc.Rules(context.Background(), testPromoID)
	assert.ErrorIs(t, err, domain.ErrPromotionNotFound)

	_, err = svc.Rules(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrPromotionNotFound)
}

func TestPromotionService_TransitionStatus(t *testing.T) {
	repo := newFakePromotionRepo(activePromotion(3))
	cache := &recordingCache{}
	svc := NewPromotionService(repo, cache, nil, zap.NewNop(), "@every 1m")
	ctx := context.Background()

	promo, err := svc.TransitionStatus(ctx, testStoreID, testPromoID, domain.PromotionPaused)
	require.NoError(t, err)
	assert.Equal(t, domain.PromotionPaused, promo.Status)
	assert.Equal(t, []string{testPromoID}, cache.invalidated)

	_, err = svc.TransitionStatus(ctx, testStoreID, testPromoID, domain.PromotionDraft)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.TransitionStatus(ctx, testStoreID, testPromoID, domain.PromotionEnded)
	require.NoError(t, err)

	_, err = svc.TransitionStatus(ctx, testStoreID, testPromoID, domain.PromotionActive)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.TransitionStatus(ctx, otherStoreID, testPromoID, domain.PromotionActive)
	assert.ErrorIs(t, err, domain.ErrPromotionNotFound)
}

// endingRepo ends the promotion right after handing out its snapshot, as a
// draw or the auto-end job would between read and write
type endingRepo struct {
	*fakePromotionRepo
}

func (r endingRepo) GetForStore(ctx context.Context, storeID, promoID string) (*domain.Promotion, error) {
	promo, err := r.fakePromotionRepo.GetForStore(ctx, storeID, promoID)
	r.setStatus(promoID, domain.PromotionEnded)
	return promo, err
}

func TestPromotionService_TransitionStatusDoesNotReopenEnded(t *testing.T) {
	promo := activePromotion(3)
	promo.Status = domain.PromotionPaused
	repo := newFakePromotionRepo(promo)
	cache := &recordingCache{}
	svc := NewPromotionService(endingRepo{repo}, cache, nil, zap.NewNop(), "@every 1m")

	_, err := svc.TransitionStatus(context.Background(), testStoreID, testPromoID, domain.PromotionActive)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.PromotionEnded, repo.get(testPromoID).Status)
	assert.Empty(t, cache.invalidated)

	f := newEntryFixture(t, repo.get(testPromoID), nil)
	_, err = f.svc.Submit(context.Background(), testStoreID, entryRequest("a@x.com"), testProvenance, "")
	assert.ErrorIs(t, err, domain.ErrPromotionNotActive)
}

func TestPromotionService_CloseExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	expired := activePromotion(3)
	expired.EndDate = &past

	running := activePromotion(3)
	running.ID = "44444444-4444-4444-8444-444444444444"
	running.EndDate = &future

	repo := newFakePromotionRepo(expired, running)
	cache := &recordingCache{}
	svc := NewPromotionService(repo, cache, nil, zap.NewNop(), "@every 1m")

	n, err := svc.CloseExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.PromotionEnded, repo.get(expired.ID).Status)
	assert.Equal(t, domain.PromotionActive, repo.get(running.ID).Status)
	assert.Equal(t, []string{expired.ID}, cache.invalidated)

	n, err = svc.CloseExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	repo.err = errors.New("db down")
	_, err = svc.CloseExpired(context.Background())
	assert.Error(t, err)
}

func TestPromotionService_StartStop(t *testing.T) {
	svc := NewPromotionService(newFakePromotionRepo(), nil, nil, zap.NewNop(), "@every 1s")
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Start(ctx))
	require.NoError(t, svc.Stop(ctx))
	require.NoError(t, svc.Stop(ctx))

	bad := NewPromotionService(newFakePromotionRepo(), nil, nil, zap.NewNop(), "not a schedule")
	assert.Error(t, bad.Start(ctx))
}

func TestPromotionService_StartEndsExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	expired := activePromotion(3)
	expired.EndDate = &past

	repo := newFakePromotionRepo(expired)
	svc := NewPromotionService(repo, nil, nil, zap.NewNop(), "@every 1h")
	ctx := context.Background()

	require.NoError(t, svc.Start(ctx))
	t.Cleanup(func() { _ = svc.Stop(ctx) })
	assert.Equal(t, domain.PromotionEnded, repo.get(expired.ID).Status)

	failing := newFakePromotionRepo()
	failing.err = errors.New("db down")
	other := NewPromotionService(failing, nil, nil, zap.NewNop(), "@every 1h")
	require.NoError(t, other.Start(ctx))
	require.NoError(t, other.Stop(ctx))
}
