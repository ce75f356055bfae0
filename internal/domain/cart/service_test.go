package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hallmart/storefront/internal/domain/catalog"
)

// --- Mock implementations ---

type mockCartRepo struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

func newCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*Cart)}
}

func (m *mockCartRepo) GetByOwner(_ context.Context, ownerRef string) (*Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[ownerRef]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	return &cp, nil
}

func (m *mockCartRepo) Save(_ context.Context, c *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	m.carts[c.OwnerRef] = &cp
	return nil
}

func (m *mockCartRepo) Delete(_ context.Context, ownerRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, ownerRef)
	return nil
}

type mockCatalog struct {
	byID map[string]*catalog.Variant
}

func (m *mockCatalog) GetVariant(_ context.Context, id string) (*catalog.Variant, error) {
	v, ok := m.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return v, nil
}

func (m *mockCatalog) GetByIDs(_ context.Context, ids []string) ([]catalog.Variant, error) {
	out := make([]catalog.Variant, 0, len(ids))
	for _, id := range ids {
		if v, ok := m.byID[id]; ok {
			out = append(out, *v)
		}
	}
	return out, nil
}

// --- Helpers ---

func newTestVariant(id, title string, price string, stock int) *catalog.Variant {
	return &catalog.Variant{
		ID:           id,
		ProductID:    "prod-" + id,
		Title:        title,
		UnitPrice:    decimal.RequireFromString(price),
		InventoryQty: stock,
		ImageURL:     id + ".jpg",
	}
}

func newCatalog(variants ...*catalog.Variant) *mockCatalog {
	byID := make(map[string]*catalog.Variant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}
	return &mockCatalog{byID: byID}
}

// --- Tests ---

func TestAddItem_NewLine(t *testing.T) {
	svc := NewService(newCartRepo(), newCatalog(newTestVariant("v1", "Blue Tee M", "19.90", 10)))

	c, err := svc.AddItem(context.Background(), "session:s1", "v1", 2)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "v1", c.Items[0].VariantID)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, "Blue Tee M", c.Items[0].Title)
	assert.True(t, decimal.RequireFromString("39.80").Equal(c.Subtotal()))
}

func TestAddItem_IncrementsExistingLine(t *testing.T) {
	svc := NewService(newCartRepo(), newCatalog(newTestVariant("v1", "Blue Tee M", "19.90", 10)))

	_, err := svc.AddItem(context.Background(), "session:s1", "v1", 2)
	require.NoError(t, err)
	c, err := svc.AddItem(context.Background(), "session:s1", "v1", 3)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
}

func TestAddItem_OutOfStock(t *testing.T) {
	svc := NewService(newCartRepo(), newCatalog(newTestVariant("v1", "Blue Tee M", "19.90", 3)))

	_, err := svc.AddItem(context.Background(), "session:s1", "v1", 2)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), "session:s1", "v1", 2)

	var oos *OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, "v1", oos.VariantID)
	assert.Equal(t, 3, oos.Available)
}

func TestAddItem_InvalidQuantity(t *testing.T) {
	svc := NewService(newCartRepo(), newCatalog())

	_, err := svc.AddItem(context.Background(), "session:s1", "v1", 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAddItem_UnknownVariant(t *testing.T) {
	svc := NewService(newCartRepo(), newCatalog())

	_, err := svc.AddItem(context.Background(), "session:s1", "missing", 1)
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestUpdateItemQuantity(t *testing.T) {
	svc := NewService(newCartRepo(), newCatalog(newTestVariant("v1", "Blue Tee M", "19.90", 10)))

	c, err := svc.AddItem(context.Background(), "session:s1", "v1", 2)
	require.NoError(t, err)
	line := c.Items[0].LineID

	c, err = svc.UpdateItemQuantity(context.Background(), "session:s1", line, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, c.Items[0].Quantity)

	_, err = svc.UpdateItemQuantity(context.Background(), "session:s1", line, 11)
	var oos *OutOfStockError
	require.ErrorAs(t, err, &oos)

	_, err = svc.UpdateItemQuantity(context.Background(), "session:s1", line, -1)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUpdateItemQuantity_ZeroRemovesLine(t *testing.T) {
	svc := NewService(newCartRepo(), newCatalog(newTestVariant("v1", "Blue Tee M", "19.90", 10)))

	c, err := svc.AddItem(context.Background(), "session:s1", "v1", 2)
	require.NoError(t, err)

	c, err = svc.UpdateItemQuantity(context.Background(), "session:s1", c.Items[0].LineID, 0)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, c.Subtotal().IsZero())
}

func TestRemoveItem_AbsentLineIsNoop(t *testing.T) {
	svc := NewService(newCartRepo(), newCatalog(newTestVariant("v1", "Blue Tee M", "19.90", 10)))

	_, err := svc.AddItem(context.Background(), "session:s1", "v1", 1)
	require.NoError(t, err)

	c, err := svc.RemoveItem(context.Background(), "session:s1", "no-such-line")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
}

func TestSubtotal_TracksMutations(t *testing.T) {
	svc := NewService(newCartRepo(), newCatalog(
		newTestVariant("v1", "Blue Tee M", "19.90", 10),
		newTestVariant("v2", "Red Cap", "9.50", 10),
	))
	ctx := context.Background()

	c, err := svc.AddItem(ctx, "session:s1", "v1", 2)
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, "session:s1", "v2", 3)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("68.30").Equal(c.Subtotal()))

	c, err = svc.RemoveItem(ctx, "session:s1", c.Items[0].LineID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("28.50").Equal(c.Subtotal()))

	// Subtotal always equals the sum over remaining lines.
	want := decimal.Zero
	for _, it := range c.Items {
		want = want.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	assert.True(t, want.Equal(c.Subtotal()))
}

func TestMerge_DisjointAndOverlapping(t *testing.T) {
	svc := NewService(newCartRepo(), newCatalog(
		newTestVariant("v1", "Blue Tee M", "19.90", 5),
		newTestVariant("v2", "Red Cap", "9.50", 10),
	))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "session:g1", "v1", 4)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "session:g1", "v2", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "customer:c1", "v1", 3)
	require.NoError(t, err)

	merged, err := svc.Merge(ctx, "session:g1", "customer:c1")
	require.NoError(t, err)

	byVariant := map[string]int{}
	for _, it := range merged.Items {
		byVariant[it.VariantID] = it.Quantity
	}
	// 4+3 capped at inventory 5; disjoint line copied over.
	assert.Equal(t, 5, byVariant["v1"])
	assert.Equal(t, 1, byVariant["v2"])

	// Guest cart is gone.
	g, err := svc.Get(ctx, "session:g1")
	require.NoError(t, err)
	assert.Empty(t, g.Items)
}

func TestMerge_CommutativePerVariantQuantity(t *testing.T) {
	ctx := context.Background()

	run := func(guest, user string) map[string]int {
		svc := NewService(newCartRepo(), newCatalog(
			newTestVariant("v1", "Blue Tee M", "19.90", 5),
			newTestVariant("v2", "Red Cap", "9.50", 10),
			newTestVariant("v3", "Socks", "4.00", 10),
		))
		_, err := svc.AddItem(ctx, "session:a", "v1", 4)
		require.NoError(t, err)
		_, err = svc.AddItem(ctx, "session:a", "v2", 2)
		require.NoError(t, err)
		_, err = svc.AddItem(ctx, "session:b", "v1", 3)
		require.NoError(t, err)
		_, err = svc.AddItem(ctx, "session:b", "v3", 1)
		require.NoError(t, err)

		merged, err := svc.Merge(ctx, guest, user)
		require.NoError(t, err)

		got := map[string]int{}
		for _, it := range merged.Items {
			got[it.VariantID] = it.Quantity
		}
		return got
	}

	assert.Equal(t, run("session:a", "session:b"), run("session:b", "session:a"))
}

func TestClear(t *testing.T) {
	svc := NewService(newCartRepo(), newCatalog(newTestVariant("v1", "Blue Tee M", "19.90", 10)))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "session:s1", "v1", 2)
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, "session:s1"))

	c, err := svc.Get(ctx, "session:s1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, c.Subtotal().IsZero())
}
