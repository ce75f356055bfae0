// Package pricing holds the pluggable discount, shipping, and tax policies
// consumed by the order factory.
package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promo code strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed amount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// ErrUnknownCode is returned by promo repositories when a code does not exist.
// The discount policy treats it as "no discount" rather than a checkout error.
var ErrUnknownCode = errors.New("unknown promo code")

// PromoCode is a stored discount rule resolvable by code.
type PromoCode struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	Description  string
}

// PromoRepository provides lookup of promo codes.
type PromoRepository interface {
	FindByCode(ctx context.Context, code string) (*PromoCode, error)
}

// DiscountPolicy resolves a promo code into a discount amount for a subtotal.
// An empty or unknown code yields zero.
type DiscountPolicy interface {
	Discount(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error)
}

// ShippingPolicy computes the shipping cost for an order subtotal.
type ShippingPolicy interface {
	Shipping(ctx context.Context, subtotal decimal.Decimal) (decimal.Decimal, error)
}

// TaxPolicy computes the tax on an order subtotal after discount.
type TaxPolicy interface {
	Tax(ctx context.Context, taxable decimal.Decimal) (decimal.Decimal, error)
}

var hundred = decimal.NewFromInt(100)

// PromoDiscountPolicy implements DiscountPolicy backed by a PromoRepository.
type PromoDiscountPolicy struct {
	promos PromoRepository
}

// NewPromoDiscountPolicy creates a PromoDiscountPolicy.
func NewPromoDiscountPolicy(promos PromoRepository) *PromoDiscountPolicy {
	return &PromoDiscountPolicy{promos: promos}
}

// Discount resolves the code and applies its rule to the subtotal. The amount
// is clamped to [0, subtotal] and rounded to 2 decimal places.
func (p *PromoDiscountPolicy) Discount(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if code == "" {
		return decimal.Zero, nil
	}

	promo, err := p.promos.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrUnknownCode) {
			return decimal.Zero, nil
		}
		return decimal.Zero, errors.Wrap(err, "lookup promo code")
	}

	var amount decimal.Decimal
	switch promo.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(promo.Value).Div(hundred)
	case DiscountFixed:
		amount = decimal.Min(promo.Value, subtotal)
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", promo.DiscountType)
	}

	return clamp(amount, subtotal).Round(2), nil
}

// FlatRateShipping charges a flat rate, waived once the subtotal reaches the
// free-shipping threshold. A zero threshold disables the waiver.
type FlatRateShipping struct {
	Rate     decimal.Decimal
	FreeOver decimal.Decimal
}

func (s FlatRateShipping) Shipping(_ context.Context, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if subtotal.IsZero() {
		return decimal.Zero, nil
	}
	if s.FreeOver.IsPositive() && subtotal.GreaterThanOrEqual(s.FreeOver) {
		return decimal.Zero, nil
	}
	return s.Rate, nil
}

// SingleRateTax applies one percentage rate to the taxable amount.
type SingleRateTax struct {
	RatePercent decimal.Decimal
}

func (t SingleRateTax) Tax(_ context.Context, taxable decimal.Decimal) (decimal.Decimal, error) {
	if taxable.IsNegative() {
		return decimal.Zero, nil
	}
	return taxable.Mul(t.RatePercent).Div(hundred).Round(2), nil
}

func clamp(d, max decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(max) {
		return max
	}
	return d
}
