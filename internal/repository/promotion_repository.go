package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"rafl-be/internal/domain"
	"rafl-be/pkg/database"
)

const promotionColumns = `
	id::text, store_id::text, title, prize_amount::float8,
	COALESCE(prize_description, ''), status, start_date, end_date,
	max_entries_per_email, max_entries_per_ip, enable_purchase_entries,
	COALESCE(rules_text, ''), COALESCE(eligibility_text, ''),
	COALESCE(amoe_instructions, ''), created_at, updated_at`

type PromotionRepo struct {
	db *database.PostgresDB
}

func NewPromotionRepository(db *database.PostgresDB) *PromotionRepo {
	return &PromotionRepo{db: db}
}

// GetForStore gets a promotion scoped to its owning store
func (r *PromotionRepo) GetForStore(ctx context.Context, storeID, promoID string) (*domain.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promos WHERE id = $1 AND store_id = $2`

	promo, err := scanPromotion(r.db.Pool.QueryRow(ctx, query, promoID, storeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("get promotion", err)
	}
	return promo, nil
}

// GetByID gets a promotion by id
func (r *PromotionRepo) GetByID(ctx context.Context, promoID string) (*domain.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promos WHERE id = $1`

	promo, err := scanPromotion(r.db.Pool.QueryRow(ctx, query, promoID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.NewStorageError("get promotion", err)
	}
	return promo, nil
}

// UpdateStatus moves the promotion to status to only while it still holds from
func (r *PromotionRepo) UpdateStatus(ctx context.Context, storeID, promoID string, from, to domain.PromotionStatus) error {
	query := `
		UPDATE promos SET status = $4, updated_at = NOW()
		WHERE id = $1 AND store_id = $2 AND status = $3`

	tag, err := r.db.Pool.Exec(ctx, query, promoID, storeID, string(from), string(to))
	if err != nil {
		return domain.NewStorageError("update promotion status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: status is no longer %s", domain.ErrInvalidTransition, from)
	}
	return nil
}

// EndExpired ends promotions whose end date has passed
func (r *PromotionRepo) EndExpired(ctx context.Context, now time.Time) ([]*domain.Promotion, error) {
	query := `
		UPDATE promos SET status = 'ended', updated_at = NOW()
		WHERE status IN ('active', 'paused') AND end_date IS NOT NULL AND end_date < $1
		RETURNING ` + promotionColumns

	rows, err := r.db.Pool.Query(ctx, query, now)
	if err != nil {
		return nil, domain.NewStorageError("end expired promotions", err)
	}
	defer rows.Close()

	var ended []*domain.Promotion
	for rows.Next() {
		promo, err := scanPromotion(rows)
		if err != nil {
			return nil, domain.NewStorageError("scan promotion", err)
		}
		ended = append(ended, promo)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("end expired promotions", err)
	}
	return ended, nil
}

func scanPromotion(row pgx.Row) (*domain.Promotion, error) {
	var p domain.Promotion
	var status string
	err := row.Scan(
		&p.ID,
		&p.StoreID,
		&p.Title,
		&p.PrizeAmount,
		&p.PrizeDescription,
		&status,
		&p.StartDate,
		&p.EndDate,
		&p.MaxEntriesPerEmail,
		&p.MaxEntriesPerIP,
		&p.EnablePurchaseEntries,
		&p.RulesText,
		&p.EligibilityText,
		&p.AMOEInstructions,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan promotion: %w", err)
	}
	p.Status = domain.PromotionStatus(status)
	return &p, nil
}
