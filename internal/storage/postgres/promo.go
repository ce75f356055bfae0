package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hallmart/storefront/internal/domain/pricing"
)

const (
	getPromoByCodeSQL = `SELECT code, discount_type, value, description
		FROM promo_codes WHERE code = UPPER($1)`

	upsertPromoSQL = `INSERT INTO promo_codes (code, discount_type, value, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE
		SET discount_type = EXCLUDED.discount_type,
		    value = EXCLUDED.value,
		    description = EXCLUDED.description`
)

var _ pricing.PromoRepository = (*PromoRepository)(nil)

// PromoRepository implements pricing.PromoRepository backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up a promo code case-insensitively. Returns
// pricing.ErrUnknownCode when no such code exists.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*pricing.PromoCode, error) {
	var p pricing.PromoCode
	var discountType string
	err := r.pool.QueryRow(ctx, getPromoByCodeSQL, code).Scan(
		&p.Code, &discountType, &p.Value, &p.Description,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pricing.ErrUnknownCode
		}
		return nil, fmt.Errorf("finding promo code %q: %w", code, err)
	}
	p.DiscountType = pricing.DiscountType(discountType)
	return &p, nil
}

// UpsertBatch writes a batch of promo codes in one round trip. Used by the
// bulk ingest tool.
func (r *PromoRepository) UpsertBatch(ctx context.Context, promos []pricing.PromoCode) error {
	batch := &pgx.Batch{}
	for _, p := range promos {
		batch.Queue(upsertPromoSQL, p.Code, string(p.DiscountType), p.Value, p.Description)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	for range promos {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upserting promo codes: %w", err)
		}
	}
	return nil
}
