package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hallmart/storefront/internal/domain/catalog"
)

const (
	getVariantSQL = `SELECT id, product_id, title, unit_price, inventory_qty, image_url
		FROM variants WHERE id = $1`

	getVariantsByIDsSQL = `SELECT id, product_id, title, unit_price, inventory_qty, image_url
		FROM variants WHERE id = ANY($1)`

	upsertVariantSQL = `INSERT INTO variants (id, product_id, title, unit_price, inventory_qty, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			title = EXCLUDED.title,
			unit_price = EXCLUDED.unit_price,
			inventory_qty = EXCLUDED.inventory_qty,
			image_url = EXCLUDED.image_url`
)

var _ catalog.Repository = (*VariantRepository)(nil)

// VariantRepository implements catalog.Repository backed by PostgreSQL.
type VariantRepository struct {
	pool *pgxpool.Pool
}

// NewVariantRepository returns a VariantRepository that uses the given pool.
func NewVariantRepository(pool *pgxpool.Pool) *VariantRepository {
	return &VariantRepository{pool: pool}
}

// GetVariant returns a single variant by its identifier.
func (r *VariantRepository) GetVariant(ctx context.Context, id string) (*catalog.Variant, error) {
	rows, err := r.pool.Query(ctx, getVariantSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting variant %q: %w", id, err)
	}

	v, err := pgx.CollectExactlyOneRow(rows, scanVariant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting variant %q: %w", id, err)
	}
	return &v, nil
}

// GetByIDs returns variants matching any of the given IDs.
func (r *VariantRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Variant, error) {
	rows, err := r.pool.Query(ctx, getVariantsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting variants by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanVariant)
}

// Upsert inserts or replaces a variant. Used by the seed tool.
func (r *VariantRepository) Upsert(ctx context.Context, v *catalog.Variant) error {
	_, err := r.pool.Exec(ctx, upsertVariantSQL,
		v.ID, v.ProductID, v.Title, v.UnitPrice, v.InventoryQty, v.ImageURL,
	)
	if err != nil {
		return fmt.Errorf("upserting variant %q: %w", v.ID, err)
	}
	return nil
}

func scanVariant(row pgx.CollectableRow) (catalog.Variant, error) {
	var v catalog.Variant
	err := row.Scan(&v.ID, &v.ProductID, &v.Title, &v.UnitPrice, &v.InventoryQty, &v.ImageURL)
	return v, err
}
