package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"rafl-be/internal/domain"
	"rafl-be/pkg/database"
)

type WinnerRepo struct {
	db *database.PostgresDB
}

func NewWinnerRepository(db *database.PostgresDB) *WinnerRepo {
	return &WinnerRepo{db: db}
}

// GetByPromotion gets the winner drawn for a promotion
func (r *WinnerRepo) GetByPromotion(ctx context.Context, promoID string) (*domain.Winner, error) {
	query := `
		SELECT id::text, promo_id::text, store_id::text, entry_id::text, hashed_email,
		       customer_email, COALESCE(prize_description, ''), drawn_at
		FROM winners
		WHERE promo_id = $1
	`

	var w domain.Winner
	err := r.db.Pool.QueryRow(ctx, query, promoID).Scan(
		&w.ID,
		&w.PromoID,
		&w.StoreID,
		&w.EntryID,
		&w.HashedEmail,
		&w.CustomerEmail,
		&w.PrizeDescription,
		&w.DrawnAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("get winner", err)
	}
	return &w, nil
}

// RecordWinner inserts the winner and ends the promotion atomically.
// winners.promo_id is unique, so a second draw fails with ErrWinnerAlreadyDrawn.
func (r *WinnerRepo) RecordWinner(ctx context.Context, winner *domain.Winner) error {
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO winners (
				promo_id, store_id, entry_id, hashed_email, customer_email, prize_description
			)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id::text, drawn_at`,
			winner.PromoID,
			winner.StoreID,
			winner.EntryID,
			winner.HashedEmail,
			winner.CustomerEmail,
			winner.PrizeDescription,
		).Scan(&winner.ID, &winner.DrawnAt)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE promos SET status = 'ended', updated_at = NOW() WHERE id = $1`,
			winner.PromoID)
		return err
	})

	if err == nil {
		return nil
	}
	if database.IsUniqueViolation(err) {
		return domain.ErrWinnerAlreadyDrawn
	}
	return domain.NewStorageError("record winner", err)
}
