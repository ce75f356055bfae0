package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for cart mutation.
var (
	ErrNotFound        = errors.New("cart not found")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
)

// OutOfStockError indicates a requested quantity exceeds the variant's
// available inventory.
type OutOfStockError struct {
	VariantID string
	Available int
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("variant %s out of stock: %d available", e.VariantID, e.Available)
}

// Item is a single cart line. The title, price, and image are a denormalized
// snapshot taken when the variant was first added, kept for display.
type Item struct {
	LineID    string          `json:"line_id"`
	VariantID string          `json:"variant_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ImageURL  string          `json:"image_url"`
	Quantity  int             `json:"quantity"`
}

// Cart is the mutable pre-purchase aggregate. Exactly one open cart exists
// per owner; the owner is either an authenticated customer or a guest session.
type Cart struct {
	ID        string
	OwnerRef  string
	Items     []Item
	UpdatedAt time.Time
}

// Subtotal returns the sum of unit price times quantity over all lines.
// It is always derived, never stored.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// ItemCount returns the total quantity across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// findVariant returns the index of the line holding variantID, or -1.
func (c *Cart) findVariant(variantID string) int {
	for i, it := range c.Items {
		if it.VariantID == variantID {
			return i
		}
	}
	return -1
}

// findLine returns the index of the line with lineID, or -1.
func (c *Cart) findLine(lineID string) int {
	for i, it := range c.Items {
		if it.LineID == lineID {
			return i
		}
	}
	return -1
}

// Repository defines persistence operations for carts. Save upserts the whole
// aggregate keyed by owner; conflicting writes are serialized per cart row by
// the store.
type Repository interface {
	GetByOwner(ctx context.Context, ownerRef string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, ownerRef string) error
}
