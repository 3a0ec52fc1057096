package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"rafl-be/internal/domain"
	"rafl-be/internal/repository"
)

const (
	testStoreID  = "11111111-1111-4111-8111-111111111111"
	otherStoreID = "22222222-2222-4222-8222-222222222222"
	testPromoID  = "33333333-3333-4333-8333-333333333333"
)

type fakePromotionRepo struct {
	mu     sync.Mutex
	promos map[string]*domain.Promotion
	err    error
}

func newFakePromotionRepo(promos ...*domain.Promotion) *fakePromotionRepo {
	r := &fakePromotionRepo{promos: map[string]*domain.Promotion{}}
	for _, p := range promos {
		r.promos[p.ID] = p
	}
	return r
}

func (r *fakePromotionRepo) get(promoID string) *domain.Promotion {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[promoID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *fakePromotionRepo) GetForStore(_ context.Context, storeID, promoID string) (*domain.Promotion, error) {
	if r.err != nil {
		return nil, r.err
	}
	p := r.get(promoID)
	if p == nil || p.StoreID != storeID {
		return nil, nil
	}
	return p, nil
}

func (r *fakePromotionRepo) GetByID(_ context.Context, promoID string) (*domain.Promotion, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.get(promoID), nil
}

func (r *fakePromotionRepo) UpdateStatus(_ context.Context, storeID, promoID string, from, to domain.PromotionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.promos[promoID]
	if !ok || p.StoreID != storeID || p.Status != from {
		return domain.ErrInvalidTransition
	}
	p.Status = to
	return nil
}

func (r *fakePromotionRepo) setStatus(promoID string, status domain.PromotionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.promos[promoID]; ok {
		p.Status = status
	}
}

func (r *fakePromotionRepo) EndExpired(_ context.Context, now time.Time) ([]*domain.Promotion, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var ended []*domain.Promotion
	for _, p := range r.promos {
		if (p.Status == domain.PromotionActive || p.Status == domain.PromotionPaused) && p.EndDate != nil && p.EndDate.Before(now) {
			p.Status = domain.PromotionEnded
			cp := *p
			ended = append(ended, &cp)
		}
	}
	return ended, nil
}

// fakeEntryStore mimics the recording transaction: writers are serialized,
// and nothing becomes visible unless every step succeeds.
type fakeEntryStore struct {
	mu       sync.Mutex
	promos   *fakePromotionRepo
	entries  []domain.Entry
	consents []domain.ConsentLog
	nextID   int

	// failConsent fails the second insert after the entry insert succeeded
	failConsent error
	// beforeCommit runs after both inserts, before commit
	beforeCommit func()
}

func newFakeEntryStore(promos *fakePromotionRepo) *fakeEntryStore {
	return &fakeEntryStore{promos: promos}
}

func (s *fakeEntryStore) RecordEntry(ctx context.Context, storeID string, entry *domain.Entry, consent *domain.ConsentLog, guard repository.EntryGuard) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.NewStorageError("begin transaction", err)
	}

	promo, _ := s.promos.GetForStore(ctx, storeID, entry.PromoID)
	if promo == nil {
		return domain.ErrPromotionNotFound
	}

	var counts domain.EntryCounts
	for _, e := range s.entries {
		if e.PromoID != entry.PromoID {
			continue
		}
		if e.HashedEmail == entry.HashedEmail {
			counts.Identity++
		}
		if entry.IPAddress != nil && e.IPAddress != nil && *e.IPAddress == *entry.IPAddress {
			counts.Origin++
		}
	}

	if guard != nil {
		if err := guard(promo, counts); err != nil {
			return err
		}
	}

	staged := *entry
	s.nextID++
	staged.ID = fmt.Sprintf("entry-%03d", s.nextID)
	staged.Sequence = counts.Identity + 1
	staged.CreatedAt = time.Now()

	if s.failConsent != nil {
		return domain.NewStorageError("insert consent log", s.failConsent)
	}
	stagedConsent := *consent
	stagedConsent.ID = "consent-" + staged.ID
	stagedConsent.EntryID = staged.ID

	if s.beforeCommit != nil {
		s.beforeCommit()
	}
	if err := ctx.Err(); err != nil {
		return domain.NewStorageError("commit transaction", err)
	}

	s.entries = append(s.entries, staged)
	s.consents = append(s.consents, stagedConsent)
	*entry = staged
	*consent = stagedConsent
	return nil
}

func (s *fakeEntryStore) ListIdentityGroups(_ context.Context, promoID string) ([]domain.IdentityEntries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byHash := map[string]*domain.IdentityEntries{}
	for _, e := range s.entries {
		if e.PromoID != promoID {
			continue
		}
		g, ok := byHash[e.HashedEmail]
		if !ok {
			g = &domain.IdentityEntries{HashedEmail: e.HashedEmail}
			byHash[e.HashedEmail] = g
		}
		g.EntryIDs = append(g.EntryIDs, e.ID)
		if g.ContactSealed == nil && e.ContactSealed != nil {
			g.ContactSealed = e.ContactSealed
		}
	}

	groups := make([]domain.IdentityEntries, 0, len(byHash))
	for _, g := range byHash {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].HashedEmail < groups[j].HashedEmail })
	return groups, nil
}

func (s *fakeEntryStore) counts() (entries, consents int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), len(s.consents)
}

// add seeds entries directly, bypassing the pipeline
func (s *fakeEntryStore) add(promoID, hash string, n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s.nextID++
		id := fmt.Sprintf("entry-%03d", s.nextID)
		s.entries = append(s.entries, domain.Entry{ID: id, PromoID: promoID, HashedEmail: hash})
		ids = append(ids, id)
	}
	return ids
}

type fakeCredentialRepo struct {
	mu         sync.Mutex
	byPrefix   map[string]*domain.APICredential
	touched    chan string
	createErrs []error
	err        error
}

func newFakeCredentialRepo() *fakeCredentialRepo {
	return &fakeCredentialRepo{
		byPrefix: map[string]*domain.APICredential{},
		touched:  make(chan string, 16),
	}
}

func (r *fakeCredentialRepo) GetByPrefix(_ context.Context, prefix string) (*domain.APICredential, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byPrefix[prefix]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCredentialRepo) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	for _, c := range r.byPrefix {
		if c.ID == id {
			c.LastUsedAt = &at
		}
	}
	r.mu.Unlock()
	r.touched <- id
	return nil
}

func (r *fakeCredentialRepo) Create(_ context.Context, cred *domain.APICredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		return err
	}
	cred.ID = fmt.Sprintf("cred-%d", len(r.byPrefix)+1)
	cred.IsActive = true
	cred.CreatedAt = time.Now()
	cp := *cred
	r.byPrefix[cred.KeyPrefix] = &cp
	return nil
}

func (r *fakeCredentialRepo) ListByStore(_ context.Context, storeID string) ([]*domain.APICredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.APICredential
	for _, c := range r.byPrefix {
		if c.StoreID == storeID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeCredentialRepo) Deactivate(_ context.Context, storeID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byPrefix {
		if c.ID == id && c.StoreID == storeID {
			c.IsActive = false
			return true, nil
		}
	}
	return false, nil
}

type fakeWinnerRepo struct {
	mu      sync.Mutex
	promos  *fakePromotionRepo
	winners map[string]*domain.Winner
	err     error
}

func newFakeWinnerRepo(promos *fakePromotionRepo) *fakeWinnerRepo {
	return &fakeWinnerRepo{promos: promos, winners: map[string]*domain.Winner{}}
}

func (r *fakeWinnerRepo) GetByPromotion(_ context.Context, promoID string) (*domain.Winner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.winners[promoID], nil
}

func (r *fakeWinnerRepo) RecordWinner(_ context.Context, winner *domain.Winner) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.winners[winner.PromoID]; ok {
		return domain.ErrWinnerAlreadyDrawn
	}
	winner.ID = "winner-" + winner.PromoID
	winner.DrawnAt = time.Now()
	cp := *winner
	r.winners[winner.PromoID] = &cp
	r.promos.setStatus(winner.PromoID, domain.PromotionEnded)
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocker) Acquire(_ context.Context, promoID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[promoID] {
		return nil, domain.ErrDrawInProgress
	}
	l.held[promoID] = true
	return func() {
		l.mu.Lock()
		delete(l.held, promoID)
		l.mu.Unlock()
	}, nil
}

// memIdempotency is an in-memory IdempotencyStore
type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memIdempotency) ClaimIdempotencyKey(_ context.Context, storeID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]string{}
	}
	k := storeID + ":" + key
	v, ok := m.keys[k]
	if !ok {
		m.keys[k] = idempotencyPending
		return "", true, nil
	}
	if v == idempotencyPending {
		return "", false, nil
	}
	return v, false, nil
}

func (m *memIdempotency) CompleteIdempotencyKey(_ context.Context, storeID, key, entryID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[storeID+":"+key] = entryID
}

func (m *memIdempotency) ReleaseIdempotencyKey(_ context.Context, storeID, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, storeID+":"+key)
}

func activePromotion(maxPerEmail int) *domain.Promotion {
	return &domain.Promotion{
		ID:                 testPromoID,
		StoreID:            testStoreID,
		Title:              "Spring Giveaway",
		PrizeDescription:   "$500 gift card",
		PrizeAmount:        500,
		Status:             domain.PromotionActive,
		MaxEntriesPerEmail: maxPerEmail,
	}
}
