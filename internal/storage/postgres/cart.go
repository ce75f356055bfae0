package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hallmart/storefront/internal/domain/cart"
)

const (
	getCartByOwnerSQL = `SELECT id, owner_ref, items, updated_at FROM carts WHERE owner_ref = $1`

	// The upsert keys on owner_ref: exactly one open cart per owner.
	saveCartSQL = `INSERT INTO carts (id, owner_ref, items, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_ref) DO UPDATE
		SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at`

	deleteCartSQL = `DELETE FROM carts WHERE owner_ref = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Cart lines
// are stored as a JSONB document; Postgres serializes conflicting writes per
// cart row, giving the last-write-wins semantics the cart service expects.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetByOwner returns the owner's cart, or cart.ErrNotFound when absent.
func (r *CartRepository) GetByOwner(ctx context.Context, ownerRef string) (*cart.Cart, error) {
	var (
		c         cart.Cart
		itemsJSON []byte
	)
	err := r.pool.QueryRow(ctx, getCartByOwnerSQL, ownerRef).Scan(
		&c.ID, &c.OwnerRef, &itemsJSON, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart for %q: %w", ownerRef, err)
	}

	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart items for %q: %w", ownerRef, err)
	}
	return &c, nil
}

// Save upserts the whole cart aggregate keyed by owner.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}

	_, err = r.pool.Exec(ctx, saveCartSQL, c.ID, c.OwnerRef, itemsJSON, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving cart for %q: %w", c.OwnerRef, err)
	}
	return nil
}

// Delete removes the owner's cart. Deleting an absent cart is a no-op.
func (r *CartRepository) Delete(ctx context.Context, ownerRef string) error {
	_, err := r.pool.Exec(ctx, deleteCartSQL, ownerRef)
	if err != nil {
		return fmt.Errorf("deleting cart for %q: %w", ownerRef, err)
	}
	return nil
}
