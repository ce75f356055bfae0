package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallmart/storefront/internal/domain/cart"
	"github.com/hallmart/storefront/internal/domain/catalog"
	"github.com/hallmart/storefront/internal/domain/checkout"
	"github.com/hallmart/storefront/internal/domain/payment"
)

// --- Mock implementations ---

// mockCatalog backs both the catalog reads and the shared stock counts that
// mockOrderRepo decrements, mirroring how the postgres repositories share the
// variants table.
type mockCatalog struct {
	mu    sync.Mutex
	byID  map[string]*catalog.Variant
	stock map[string]int
}

func newMockCatalog(variants ...*catalog.Variant) *mockCatalog {
	m := &mockCatalog{
		byID:  make(map[string]*catalog.Variant, len(variants)),
		stock: make(map[string]int, len(variants)),
	}
	for _, v := range variants {
		m.byID[v.ID] = v
		m.stock[v.ID] = v.InventoryQty
	}
	return m
}

func (m *mockCatalog) GetVariant(_ context.Context, id string) (*catalog.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *v
	cp.InventoryQty = m.stock[id]
	return &cp, nil
}

func (m *mockCatalog) GetByIDs(_ context.Context, ids []string) ([]catalog.Variant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]catalog.Variant, 0, len(ids))
	for _, id := range ids {
		if v, ok := m.byID[id]; ok {
			cp := *v
			cp.InventoryQty = m.stock[id]
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *mockCatalog) inventory(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[id]
}

// mockOrderRepo persists orders in memory. CreateApproved performs the
// conditional check-then-decrement atomically under the catalog mutex, the
// in-memory analogue of "UPDATE ... WHERE inventory_qty >= $n".
type mockOrderRepo struct {
	mu       sync.Mutex
	cat      *mockCatalog
	orders   map[string]*Order
	attempts []*Order
}

func newOrderRepo(cat *mockCatalog) *mockOrderRepo {
	return &mockOrderRepo{cat: cat, orders: make(map[string]*Order)}
}

func (m *mockOrderRepo) CreateApproved(_ context.Context, o *Order) error {
	m.cat.mu.Lock()
	defer m.cat.mu.Unlock()
	for _, it := range o.Items {
		if m.cat.stock[it.VariantID] < it.Quantity {
			return &InsufficientInventoryError{VariantID: it.VariantID}
		}
	}
	for _, it := range o.Items {
		m.cat.stock[it.VariantID] -= it.Quantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.OrderNumber] = o
	return nil
}

func (m *mockOrderRepo) CreateAttempt(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, o)
	m.orders[o.OrderNumber] = o
	return nil
}

func (m *mockOrderRepo) GetByNumber(_ context.Context, orderNumber string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderNumber]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) ListByCustomer(_ context.Context, customerRef string) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.CustomerRef == customerRef {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, orderNumber string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderNumber]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

type mockCartRepo struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*cart.Cart)}
}

func (m *mockCartRepo) GetByOwner(_ context.Context, ownerRef string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[ownerRef]
	if !ok {
		return nil, cart.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCartRepo) Save(_ context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.carts[c.OwnerRef] = &cp
	return nil
}

func (m *mockCartRepo) Delete(_ context.Context, ownerRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, ownerRef)
	return nil
}

type fixedDiscount struct{ amount decimal.Decimal }

func (d fixedDiscount) Discount(_ context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if code == "" {
		return decimal.Zero, nil
	}
	return decimal.Min(d.amount, subtotal), nil
}

type fixedShipping struct{ amount decimal.Decimal }

func (s fixedShipping) Shipping(_ context.Context, _ decimal.Decimal) (decimal.Decimal, error) {
	return s.amount, nil
}

type fixedTax struct{ amount decimal.Decimal }

func (t fixedTax) Tax(_ context.Context, _ decimal.Decimal) (decimal.Decimal, error) {
	return t.amount, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	done  chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{done: make(chan struct{}, 16)}
}

func (n *recordingNotifier) Notify(_ context.Context, o *Order) error {
	n.mu.Lock()
	n.calls = append(n.calls, o.OrderNumber)
	n.mu.Unlock()
	n.done <- struct{}{}
	return nil
}

func (n *recordingNotifier) wait(t *testing.T) {
	t.Helper()
	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification not dispatched")
	}
}

// --- Helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	factory  *Factory
	catalog  *mockCatalog
	orders   *mockOrderRepo
	carts    *cart.Service
	cartRepo *mockCartRepo
	notifier *recordingNotifier
}

func newFixture(variants ...*catalog.Variant) *fixture {
	cat := newMockCatalog(variants...)
	orders := newOrderRepo(cat)
	cartRepo := newMockCartRepo()
	carts := cart.NewService(cartRepo, cat)
	notifier := newRecordingNotifier()
	f := NewFactory(
		FactoryConfig{PolicyTimeout: time.Second, NotifyTimeout: time.Second},
		carts, cat, orders,
		fixedDiscount{amount: dec("5.00")},
		fixedShipping{amount: dec("4.95")},
		fixedTax{amount: dec("2.00")},
		notifier,
	)
	return &fixture{factory: f, catalog: cat, orders: orders, carts: carts, cartRepo: cartRepo, notifier: notifier}
}

func variant(id string, price string, stock int) *catalog.Variant {
	return &catalog.Variant{
		ID:           id,
		ProductID:    "prod-" + id,
		Title:        "Variant " + id,
		UnitPrice:    dec(price),
		InventoryQty: stock,
		ImageURL:     id + ".jpg",
	}
}

func checkoutReq(card string, sels ...checkout.Selection) CreateOrderRequest {
	return CreateOrderRequest{
		OwnerRef:    "customer:c1",
		CustomerRef: "customer:c1",
		Input: checkout.Input{
			Customer: checkout.CustomerInfo{
				Name: "Ada Lovelace", Email: "ada@example.com",
				Address: "12 Analytical Way", City: "London", PostalCode: "N1 9GU",
			},
			Card:  checkout.CardInfo{Number: card, Expiry: "09/29", CVV: "123"},
			Items: sels,
		},
	}
}

// --- Tests ---

func TestCreateOrder_Approved(t *testing.T) {
	fx := newFixture(variant("v1", "19.90", 10))
	ctx := context.Background()

	_, err := fx.carts.AddItem(ctx, "customer:c1", "v1", 2)
	require.NoError(t, err)

	o, err := fx.factory.CreateOrder(ctx, checkoutReq("4242424242424241",
		checkout.Selection{VariantID: "v1", Quantity: 2, UnitPrice: dec("19.90")},
	))
	require.NoError(t, err)

	assert.Equal(t, payment.OutcomeApproved, o.TransactionStatus)
	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, dec("39.80").Equal(o.Subtotal))
	// total = subtotal - discount + shipping + tax
	assert.True(t, o.Subtotal.Sub(o.Discount).Add(o.ShippingCost).Add(o.Tax).Equal(o.Total))
	assert.Equal(t, "************4241", o.CardMasked)

	// Inventory reserved, cart emptied.
	assert.Equal(t, 8, fx.catalog.inventory("v1"))
	c, err := fx.carts.Get(ctx, "customer:c1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)

	fx.notifier.wait(t)

	stored, err := fx.orders.GetByNumber(ctx, o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestCreateOrder_Declined(t *testing.T) {
	fx := newFixture(variant("v1", "19.90", 10))
	ctx := context.Background()

	_, err := fx.carts.AddItem(ctx, "customer:c1", "v1", 2)
	require.NoError(t, err)

	_, err = fx.factory.CreateOrder(ctx, checkoutReq("4242424242424242",
		checkout.Selection{VariantID: "v1", Quantity: 2, UnitPrice: dec("19.90")},
	))
	require.ErrorIs(t, err, ErrPaymentDeclined)

	// Inventory untouched, cart intact, audit row recorded.
	assert.Equal(t, 10, fx.catalog.inventory("v1"))
	c, err := fx.carts.Get(ctx, "customer:c1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)

	require.Len(t, fx.orders.attempts, 1)
	assert.Equal(t, payment.OutcomeDeclined, fx.orders.attempts[0].TransactionStatus)
	assert.Equal(t, StatusCancelled, fx.orders.attempts[0].Status)
}

func TestCreateOrder_PaymentError(t *testing.T) {
	fx := newFixture(variant("v1", "19.90", 10))

	_, err := fx.factory.CreateOrder(context.Background(), checkoutReq("4242424242424243",
		checkout.Selection{VariantID: "v1", Quantity: 1, UnitPrice: dec("19.90")},
	))
	require.ErrorIs(t, err, ErrPaymentError)
	assert.Equal(t, 10, fx.catalog.inventory("v1"))
}

func TestCreateOrder_InsufficientInventory(t *testing.T) {
	fx := newFixture(variant("v1", "19.90", 1))

	_, err := fx.factory.CreateOrder(context.Background(), checkoutReq("4242424242424241",
		checkout.Selection{VariantID: "v1", Quantity: 2, UnitPrice: dec("19.90")},
	))

	var iie *InsufficientInventoryError
	require.ErrorAs(t, err, &iie)
	assert.Equal(t, "v1", iie.VariantID)
	assert.Equal(t, 1, fx.catalog.inventory("v1"))
}

func TestCreateOrder_UnknownVariant(t *testing.T) {
	fx := newFixture()

	_, err := fx.factory.CreateOrder(context.Background(), checkoutReq("4242424242424241",
		checkout.Selection{VariantID: "ghost", Quantity: 1, UnitPrice: dec("1.00")},
	))
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestCreateOrder_PromoDiscountApplied(t *testing.T) {
	fx := newFixture(variant("v1", "30.00", 10))

	req := checkoutReq("4242424242424241",
		checkout.Selection{VariantID: "v1", Quantity: 1, UnitPrice: dec("30.00")},
	)
	req.PromoCode = "FIVER"

	o, err := fx.factory.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, dec("5.00").Equal(o.Discount))
	assert.True(t, dec("31.95").Equal(o.Total)) // 30 - 5 + 4.95 + 2
}

func TestCreateOrder_TotalInvariantUnderTransitions(t *testing.T) {
	fx := newFixture(variant("v1", "19.90", 10))
	ctx := context.Background()

	o, err := fx.factory.CreateOrder(ctx, checkoutReq("4242424242424241",
		checkout.Selection{VariantID: "v1", Quantity: 2, UnitPrice: dec("19.90")},
	))
	require.NoError(t, err)
	wantTotal := o.Total

	lc := NewLifecycle(fx.orders)
	for _, next := range []Status{StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered} {
		got, err := lc.Transition(ctx, o.OrderNumber, next)
		require.NoError(t, err)
		assert.True(t, wantTotal.Equal(got.Total))
		assert.True(t, got.Subtotal.Sub(got.Discount).Add(got.ShippingCost).Add(got.Tax).Equal(got.Total))
	}
}

func TestCreateOrder_ConcurrentCheckoutsSingleUnit(t *testing.T) {
	fx := newFixture(variant("v1", "19.90", 1))
	ctx := context.Background()

	req := func(owner string) CreateOrderRequest {
		r := checkoutReq("4242424242424241",
			checkout.Selection{VariantID: "v1", Quantity: 1, UnitPrice: dec("19.90")},
		)
		r.OwnerRef = owner
		r.CustomerRef = owner
		return r
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, owner := range []string{"customer:a", "customer:b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = fx.factory.CreateOrder(ctx, req(owner))
		}()
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var iie *InsufficientInventoryError
		if assert.ErrorAs(t, err, &iie) {
			insufficient++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 0, fx.catalog.inventory("v1"))
}
