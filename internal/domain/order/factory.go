package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hallmart/storefront/internal/domain/cart"
	"github.com/hallmart/storefront/internal/domain/catalog"
	"github.com/hallmart/storefront/internal/domain/checkout"
	"github.com/hallmart/storefront/internal/domain/payment"
	"github.com/hallmart/storefront/internal/domain/pricing"
)

// FactoryConfig holds non-dependency configuration for the Factory.
type FactoryConfig struct {
	// PolicyTimeout bounds each external discount/shipping/tax policy call.
	// An expired call fails the checkout with a recoverable error; it never
	// hangs the request.
	PolicyTimeout time.Duration

	// NotifyTimeout bounds the fire-and-forget notification dispatch.
	NotifyTimeout time.Duration
}

// CreateOrderRequest is the validated input for one checkout attempt.
type CreateOrderRequest struct {
	// OwnerRef identifies the cart owner; the cart is cleared on success.
	OwnerRef string
	// CustomerRef owns the resulting order.
	CustomerRef string
	Input       checkout.Input
	PromoCode   string
}

// Factory runs the checkout transaction: inventory validation, total
// computation, payment simulation, and order persistence.
type Factory struct {
	cfg       FactoryConfig
	carts     *cart.Service
	catalog   catalog.Repository
	orders    Repository
	discounts pricing.DiscountPolicy
	shipping  pricing.ShippingPolicy
	tax       pricing.TaxPolicy
	notifier  Notifier
	now       func() time.Time
}

// NewFactory creates an order Factory with the required collaborators.
func NewFactory(
	cfg FactoryConfig,
	carts *cart.Service,
	variants catalog.Repository,
	orders Repository,
	discounts pricing.DiscountPolicy,
	shipping pricing.ShippingPolicy,
	tax pricing.TaxPolicy,
	notifier Notifier,
) *Factory {
	if cfg.PolicyTimeout <= 0 {
		cfg.PolicyTimeout = 3 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	return &Factory{
		cfg:       cfg,
		carts:     carts,
		catalog:   variants,
		orders:    orders,
		discounts: discounts,
		shipping:  shipping,
		tax:       tax,
		notifier:  notifier,
		now:       time.Now,
	}
}

// CreateOrder executes one checkout attempt. On an approved transaction the
// order is persisted with status PENDING (inventory decremented atomically
// with the insert) and the cart is cleared. A declined or errored transaction
// persists an audit record with the failed transaction status, leaves
// inventory and cart untouched, and returns ErrPaymentDeclined or
// ErrPaymentError. Every failure path leaves the cart intact.
func (f *Factory) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	items, err := f.validateInventory(ctx, req.Input.Items)
	if err != nil {
		return nil, err
	}

	// Subtotal uses the prices captured at checkout time, not a fresh
	// catalog lookup.
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	subtotal = subtotal.Round(2)

	discount, err := f.resolveDiscount(ctx, req.PromoCode, subtotal)
	if err != nil {
		return nil, err
	}

	shippingCost, tax, err := f.resolveShippingAndTax(ctx, subtotal.Sub(discount))
	if err != nil {
		return nil, err
	}

	total := subtotal.Sub(discount).Add(shippingCost).Add(tax)
	if total.IsNegative() {
		total = decimal.Zero
	}
	total = total.Round(2)

	now := f.now()
	o := &Order{
		ID:           uuid.New().String(),
		OrderNumber:  NewOrderNumber(now),
		CustomerRef:  req.CustomerRef,
		Items:        items,
		Subtotal:     subtotal,
		Discount:     discount,
		ShippingCost: shippingCost,
		Tax:          tax,
		Total:        total,
		CardMasked:   payment.MaskCard(req.Input.Card.Number),
		CreatedAt:    now,
	}

	outcome := payment.Simulate(req.Input.Card.Number)
	o.TransactionStatus = outcome

	if outcome != payment.OutcomeApproved {
		// Audit trail for support tooling; no inventory effect.
		o.Status = StatusCancelled
		if err := f.orders.CreateAttempt(ctx, o); err != nil {
			return nil, errors.Wrap(err, "record failed attempt")
		}
		f.dispatchNotify(ctx, o)

		if outcome == payment.OutcomeDeclined {
			return nil, ErrPaymentDeclined
		}
		return nil, ErrPaymentError
	}

	o.Status = StatusPending
	if err := f.orders.CreateApproved(ctx, o); err != nil {
		var iie *InsufficientInventoryError
		if errors.As(err, &iie) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create order")
	}

	// The order is durable; losing the cart-clear would only leave a stale
	// cart behind, so a failure here is logged, not surfaced.
	if err := f.carts.Clear(ctx, req.OwnerRef); err != nil {
		zctx.From(ctx).Warn("clear cart after checkout",
			zap.String("order_number", o.OrderNumber), zap.Error(err))
	}

	f.dispatchNotify(ctx, o)
	return o, nil
}

// validateInventory checks every selection against live stock before any
// mutation, catching the race between cart display and checkout early. The
// authoritative check remains the conditional decrement at commit time.
func (f *Factory) validateInventory(ctx context.Context, sels []checkout.Selection) ([]LineItem, error) {
	ids := make([]string, len(sels))
	for i, sel := range sels {
		ids[i] = sel.VariantID
	}

	variants, err := f.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get variants")
	}
	byID := make(map[string]catalog.Variant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}

	items := make([]LineItem, 0, len(sels))
	for _, sel := range sels {
		v, ok := byID[sel.VariantID]
		if !ok {
			return nil, errors.Wrapf(catalog.ErrNotFound, "variant %s", sel.VariantID)
		}
		if sel.Quantity > v.InventoryQty {
			return nil, &InsufficientInventoryError{VariantID: sel.VariantID}
		}
		items = append(items, LineItem{
			VariantID: v.ID,
			Title:     v.Title,
			UnitPrice: sel.UnitPrice,
			Quantity:  sel.Quantity,
			ImageURL:  v.ImageURL,
		})
	}
	return items, nil
}

func (f *Factory) resolveDiscount(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.PolicyTimeout)
	defer cancel()

	d, err := f.discounts.Discount(ctx, code, subtotal)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "discount policy")
	}
	return d, nil
}

func (f *Factory) resolveShippingAndTax(ctx context.Context, taxable decimal.Decimal) (shipping, tax decimal.Decimal, err error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.PolicyTimeout)
	defer cancel()

	shipping, err = f.shipping.Shipping(ctx, taxable)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "shipping policy")
	}
	tax, err = f.tax.Tax(ctx, taxable)
	if err != nil {
		return decimal.Zero, decimal.Zero, errors.Wrap(err, "tax policy")
	}
	return shipping, tax, nil
}

// dispatchNotify fires the notification in the background. Failure to notify
// never fails the checkout.
func (f *Factory) dispatchNotify(ctx context.Context, o *Order) {
	if f.notifier == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		nctx, cancel := context.WithTimeout(bg, f.cfg.NotifyTimeout)
		defer cancel()
		if err := f.notifier.Notify(nctx, o); err != nil {
			zctx.From(nctx).Warn("order notification failed",
				zap.String("order_number", o.OrderNumber), zap.Error(err))
		}
	}()
}
