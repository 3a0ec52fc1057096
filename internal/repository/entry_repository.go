package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"rafl-be/internal/domain"
	"rafl-be/pkg/database"
)

type EntryRepo struct {
	db *database.PostgresDB
}

func NewEntryRepository(db *database.PostgresDB) *EntryRepo {
	return &EntryRepo{db: db}
}

// RecordEntry writes an entry and its consent log in a single transaction.
//
// The promotion row is locked FOR SHARE so a concurrent status change waits
// for the recording to finish, and a transaction scoped advisory lock on
// (promotion, identity) serializes writers for the same identity. The counts
// handed to guard are therefore exact, and entry_seq = count+1 is backed by
// the UNIQUE(promo_id, hashed_email, entry_seq) constraint.
func (r *EntryRepo) RecordEntry(ctx context.Context, storeID string, entry *domain.Entry, consent *domain.ConsentLog, guard EntryGuard) error {
	var rejected error

	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		promo, err := scanPromotion(tx.QueryRow(ctx,
			`SELECT `+promotionColumns+` FROM promos WHERE id = $1 AND store_id = $2 FOR SHARE`,
			entry.PromoID, storeID))
		if errors.Is(err, pgx.ErrNoRows) {
			rejected = domain.ErrPromotionNotFound
			return rejected
		}
		if err != nil {
			return classify("lock promotion", err)
		}

		if _, err := tx.Exec(ctx,
			`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
			entry.PromoID+":"+entry.HashedEmail); err != nil {
			return classify("lock identity", err)
		}

		var counts domain.EntryCounts
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM entries WHERE promo_id = $1 AND hashed_email = $2`,
			entry.PromoID, entry.HashedEmail).Scan(&counts.Identity); err != nil {
			return classify("count identity entries", err)
		}

		if promo.MaxEntriesPerIP != nil && entry.IPAddress != nil {
			if err := tx.QueryRow(ctx,
				`SELECT COUNT(*) FROM entries WHERE promo_id = $1 AND ip_address = $2`,
				entry.PromoID, *entry.IPAddress).Scan(&counts.Origin); err != nil {
				return classify("count origin entries", err)
			}
		}

		if guard != nil {
			if err := guard(promo, counts); err != nil {
				rejected = err
				return err
			}
		}

		entry.Sequence = counts.Identity + 1
		if err := tx.QueryRow(ctx, `
			INSERT INTO entries (
				promo_id, hashed_email, entry_seq, source, ip_address,
				user_agent, metadata, contact_sealed
			)
			VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::jsonb, '{}'::jsonb), $8)
			RETURNING id::text, created_at`,
			entry.PromoID,
			entry.HashedEmail,
			entry.Sequence,
			string(entry.Source),
			entry.IPAddress,
			entry.UserAgent,
			nullableJSON(entry.Metadata),
			entry.ContactSealed,
		).Scan(&entry.ID, &entry.CreatedAt); err != nil {
			return classify("insert entry", err)
		}

		consent.EntryID = entry.ID
		if err := tx.QueryRow(ctx, `
			INSERT INTO consent_logs (
				entry_id, consent_brand, consent_rafl, consent_text, ip_address, user_agent
			)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id::text, created_at`,
			consent.EntryID,
			consent.ConsentBrand,
			consent.ConsentRafl,
			consent.ConsentText,
			consent.IPAddress,
			consent.UserAgent,
		).Scan(&consent.ID, &consent.CreatedAt); err != nil {
			return classify("insert consent log", err)
		}

		return nil
	})

	if err == nil {
		return nil
	}
	if rejected != nil {
		return rejected
	}
	return classify("record entry", err)
}

// ListIdentityGroups groups a promotion's entries by identity. Entry ids are
// ordered by creation; the sealed contact is the first one stored, if any.
func (r *EntryRepo) ListIdentityGroups(ctx context.Context, promoID string) ([]domain.IdentityEntries, error) {
	query := `
		SELECT hashed_email,
		       array_agg(id::text ORDER BY created_at, entry_seq),
		       (array_agg(contact_sealed ORDER BY created_at)
		           FILTER (WHERE contact_sealed IS NOT NULL))[1]
		FROM entries
		WHERE promo_id = $1
		GROUP BY hashed_email
		ORDER BY hashed_email
	`

	rows, err := r.db.Pool.Query(ctx, query, promoID)
	if err != nil {
		return nil, domain.NewStorageError("list identity groups", err)
	}
	defer rows.Close()

	var groups []domain.IdentityEntries
	for rows.Next() {
		var g domain.IdentityEntries
		if err := rows.Scan(&g.HashedEmail, &g.EntryIDs, &g.ContactSealed); err != nil {
			return nil, domain.NewStorageError("scan identity group", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("list identity groups", err)
	}
	return groups, nil
}

// classify maps database failures onto the domain: a unique violation means a
// concurrent writer took the same entry slot, anything else is retryable.
func classify(op string, err error) error {
	if database.IsUniqueViolation(err) {
		return domain.ErrDuplicateEntry
	}
	if errors.Is(err, domain.ErrDuplicateEntry) || errors.Is(err, domain.ErrStorage) {
		return err
	}
	return domain.NewStorageError(op, err)
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
