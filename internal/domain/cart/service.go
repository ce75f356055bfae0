package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/hallmart/storefront/internal/domain/catalog"
)

// Service encapsulates cart mutation rules over the cart repository and the
// read-only catalog.
type Service struct {
	carts   Repository
	catalog catalog.Repository
	now     func() time.Time
}

// NewService creates a cart Service.
func NewService(carts Repository, variants catalog.Repository) *Service {
	return &Service{
		carts:   carts,
		catalog: variants,
		now:     time.Now,
	}
}

// Get returns the owner's cart. An owner without a persisted cart gets an
// empty one; an empty cart is valid and has subtotal zero.
func (s *Service) Get(ctx context.Context, ownerRef string) (*Cart, error) {
	c, err := s.carts.GetByOwner(ctx, ownerRef)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &Cart{ID: uuid.New().String(), OwnerRef: ownerRef}, nil
		}
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// AddItem adds qty units of a variant to the owner's cart. Re-adding a
// variant already in the cart increments the existing line instead of
// duplicating it. The current line quantity is re-read from the store
// immediately before the write, so concurrent adds from two tabs do not
// clobber each other's increments.
func (s *Service) AddItem(ctx context.Context, ownerRef, variantID string, qty int) (*Cart, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	v, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		return nil, errors.Wrap(err, "get variant")
	}

	c, err := s.Get(ctx, ownerRef)
	if err != nil {
		return nil, err
	}

	if i := c.findVariant(variantID); i >= 0 {
		next := c.Items[i].Quantity + qty
		if next > v.InventoryQty {
			return nil, &OutOfStockError{VariantID: variantID, Available: v.InventoryQty}
		}
		c.Items[i].Quantity = next
	} else {
		if qty > v.InventoryQty {
			return nil, &OutOfStockError{VariantID: variantID, Available: v.InventoryQty}
		}
		c.Items = append(c.Items, Item{
			LineID:    uuid.New().String(),
			VariantID: v.ID,
			Title:     v.Title,
			UnitPrice: v.UnitPrice,
			ImageURL:  v.ImageURL,
			Quantity:  qty,
		})
	}

	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// UpdateItemQuantity sets a line's quantity to an absolute value. Zero removes
// the line. Writes are last-write-wins at the line level; absolute quantities
// make the operation safe to retry.
func (s *Service) UpdateItemQuantity(ctx context.Context, ownerRef, lineID string, qty int) (*Cart, error) {
	if qty < 0 {
		return nil, ErrInvalidQuantity
	}
	if qty == 0 {
		return s.RemoveItem(ctx, ownerRef, lineID)
	}

	c, err := s.Get(ctx, ownerRef)
	if err != nil {
		return nil, err
	}

	i := c.findLine(lineID)
	if i < 0 {
		return nil, ErrNotFound
	}

	v, err := s.catalog.GetVariant(ctx, c.Items[i].VariantID)
	if err != nil {
		return nil, errors.Wrap(err, "get variant")
	}
	if qty > v.InventoryQty {
		return nil, &OutOfStockError{VariantID: v.ID, Available: v.InventoryQty}
	}

	c.Items[i].Quantity = qty
	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// RemoveItem deletes a line from the cart. Removing an absent line is a
// no-op success.
func (s *Service) RemoveItem(ctx context.Context, ownerRef, lineID string) (*Cart, error) {
	c, err := s.Get(ctx, ownerRef)
	if err != nil {
		return nil, err
	}

	i := c.findLine(lineID)
	if i < 0 {
		return c, nil
	}

	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Merge folds the guest owner's cart into the user owner's cart on login.
// Overlapping variants have their quantities summed, capped at current
// inventory; the final quantity per variant does not depend on which cart is
// treated as guest. The guest cart is deleted afterwards.
func (s *Service) Merge(ctx context.Context, guestOwner, userOwner string) (*Cart, error) {
	guest, err := s.Get(ctx, guestOwner)
	if err != nil {
		return nil, err
	}
	user, err := s.Get(ctx, userOwner)
	if err != nil {
		return nil, err
	}

	for _, gi := range guest.Items {
		v, err := s.catalog.GetVariant(ctx, gi.VariantID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				continue // variant withdrawn while the guest cart sat idle
			}
			return nil, errors.Wrap(err, "get variant")
		}

		if i := user.findVariant(gi.VariantID); i >= 0 {
			user.Items[i].Quantity = min(user.Items[i].Quantity+gi.Quantity, v.InventoryQty)
		} else {
			gi.Quantity = min(gi.Quantity, v.InventoryQty)
			gi.LineID = uuid.New().String()
			user.Items = append(user.Items, gi)
		}
	}

	user.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, user); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	if err := s.carts.Delete(ctx, guestOwner); err != nil {
		return nil, errors.Wrap(err, "delete guest cart")
	}
	return user, nil
}

// Clear empties the owner's cart. The order factory calls this exactly once,
// after an order has been persisted with an approved transaction.
func (s *Service) Clear(ctx context.Context, ownerRef string) error {
	if err := s.carts.Delete(ctx, ownerRef); err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
