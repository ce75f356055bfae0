package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hallmart/storefront/internal/domain/order"
	"github.com/hallmart/storefront/internal/domain/payment"
)

const (
	insertOrderSQL = `INSERT INTO orders
		(id, order_number, customer_ref, items, subtotal, discount, shipping_cost, tax, total,
		 card_masked, transaction_status, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	// Conditional decrement: matches zero rows when the remaining stock
	// cannot cover the quantity, which aborts the enclosing transaction.
	decrementInventorySQL = `UPDATE variants
		SET inventory_qty = inventory_qty - $2
		WHERE id = $1 AND inventory_qty >= $2`

	getOrderByNumberSQL = `SELECT id, order_number, customer_ref, items, subtotal, discount,
		shipping_cost, tax, total, card_masked, transaction_status, status, created_at
		FROM orders WHERE order_number = $1`

	listOrdersByCustomerSQL = `SELECT id, order_number, customer_ref, items, subtotal, discount,
		shipping_cost, tax, total, card_masked, transaction_status, status, created_at
		FROM orders WHERE customer_ref = $1 ORDER BY created_at DESC`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE order_number = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items are serialized to JSON for storage in the JSONB column.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateApproved persists an approved order and decrements inventory for
// every line in one transaction. Each decrement is a single conditional
// UPDATE, so concurrent checkouts can never oversell: the losing transaction
// sees zero affected rows, rolls back, and surfaces
// *order.InsufficientInventoryError.
func (r *OrderRepository) CreateApproved(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range o.Items {
		tag, err := tx.Exec(ctx, decrementInventorySQL, it.VariantID, it.Quantity)
		if err != nil {
			return fmt.Errorf("decrementing inventory for %q: %w", it.VariantID, err)
		}
		if tag.RowsAffected() == 0 {
			return &order.InsufficientInventoryError{VariantID: it.VariantID}
		}
	}

	if err := r.insert(ctx, tx, o, itemsJSON); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.OrderNumber, err)
	}
	return nil
}

// CreateAttempt persists a declined or errored checkout attempt. No inventory
// is touched.
func (r *OrderRepository) CreateAttempt(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	return r.insert(ctx, r.pool, o, itemsJSON)
}

// execer covers both *pgxpool.Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *OrderRepository) insert(ctx context.Context, db execer, o *order.Order, itemsJSON []byte) error {
	_, err := db.Exec(ctx, insertOrderSQL,
		o.ID, o.OrderNumber, o.CustomerRef, itemsJSON,
		o.Subtotal, o.Discount, o.ShippingCost, o.Tax, o.Total,
		o.CardMasked, string(o.TransactionStatus), string(o.Status), o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.OrderNumber, err)
	}
	return nil
}

// GetByNumber returns the order with the given order number, or
// order.ErrNotFound when absent.
func (r *OrderRepository) GetByNumber(ctx context.Context, orderNumber string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByNumberSQL, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", orderNumber, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderNumber, err)
	}
	return &o, nil
}

// ListByCustomer returns the customer's orders, newest first.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerRef string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByCustomerSQL, customerRef)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", customerRef, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus sets the order's status. Money fields are never written here.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderNumber string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, orderNumber, string(status))
	if err != nil {
		return fmt.Errorf("updating status of order %q: %w", orderNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o         order.Order
		itemsJSON []byte
		txStatus  string
		status    string
	)
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.CustomerRef, &itemsJSON,
		&o.Subtotal, &o.Discount, &o.ShippingCost, &o.Tax, &o.Total,
		&o.CardMasked, &txStatus, &status, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	o.TransactionStatus = payment.Outcome(txStatus)
	st, err := order.ParseStatus(status)
	if err != nil {
		return o, err
	}
	o.Status = st
	return o, nil
}
