package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/hallmart/storefront/internal/domain/payment"
)

// Sentinel errors for order creation and lookup.
var (
	ErrNotFound        = errors.New("order not found")
	ErrPaymentDeclined = errors.New("payment declined")
	ErrPaymentError    = errors.New("payment processing error")
)

// InsufficientInventoryError names the variant whose stock could not cover the
// requested quantity, either during pre-checkout validation or at commit time
// when a concurrent checkout exhausted the inventory first.
type InsufficientInventoryError struct {
	VariantID string
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("insufficient inventory for variant %s", e.VariantID)
}

// LineItem is a frozen copy of a variant at purchase time.
type LineItem struct {
	VariantID string          `json:"variant_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url"`
}

// Order is immutable once created except for its status. Status changes never
// recompute the money fields: total = subtotal - discount + shipping + tax
// holds for the lifetime of the record.
type Order struct {
	ID           string
	OrderNumber  string
	CustomerRef  string
	Items        []LineItem
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal

	// CardMasked retains only the last four digits. The CVV is never stored.
	CardMasked        string
	TransactionStatus payment.Outcome
	Status            Status
	CreatedAt         time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	// CreateApproved persists an order with an approved transaction. The
	// inventory decrement for every line and the order insert happen in a
	// single transaction; a line whose conditional decrement matches no stock
	// fails the whole call with *InsufficientInventoryError and leaves
	// inventory untouched.
	CreateApproved(ctx context.Context, o *Order) error

	// CreateAttempt persists a declined or errored checkout attempt for audit
	// and support tooling. It has no inventory effect.
	CreateAttempt(ctx context.Context, o *Order) error

	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
	ListByCustomer(ctx context.Context, customerRef string) ([]Order, error)
	UpdateStatus(ctx context.Context, orderNumber string, status Status) error
}

// Notifier dispatches a post-checkout notification. Implementations are
// fire-and-forget collaborators: a notification failure never fails checkout.
type Notifier interface {
	Notify(ctx context.Context, o *Order) error
}
