package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested variant does not exist.
var ErrNotFound = errors.New("variant not found")

// Variant is a purchasable configuration of a product with its own price and
// stock count. The storefront core only ever reads variants, except for the
// inventory decrement tied to an approved order.
type Variant struct {
	ID           string
	ProductID    string
	Title        string
	UnitPrice    decimal.Decimal
	InventoryQty int
	ImageURL     string
}

// Repository defines the catalog operations the cart and checkout consume.
type Repository interface {
	GetVariant(ctx context.Context, id string) (*Variant, error)
	GetByIDs(ctx context.Context, ids []string) ([]Variant, error)
}
