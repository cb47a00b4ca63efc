// Package cart maintains the per-pharmacy shopping cart: a client-held
// list of inventory selections with quantities and discounts, persisted
// to local key-value storage and totaled with exact decimal arithmetic.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"medistock/m/domain"
	"medistock/m/internal/store"
)

// ErrBadLine is returned when a cart line fails its basic checks:
// non-positive quantity or a discount outside [0, 100].
var ErrBadLine = errors.New("invalid cart line")

// ErrNoSuchLine is returned when a removal targets an index the cart
// does not have.
var ErrNoSuchLine = errors.New("no cart line at that index")

// Service couples cart state in local storage with the inventory store,
// so adding a line decrements on-hand stock and removing one restores it.
type Service struct {
	storage *Storage
	inv     *store.Manager
}

func NewService(storage *Storage, inv *store.Manager) *Service {
	return &Service{storage: storage, inv: inv}
}

func cartKey(tenant string) string {
	return "cartItems_" + tenant
}

// Load returns the pharmacy's saved cart. Malformed stored data is
// discarded: the cart starts empty and the defect is logged only.
func (s *Service) Load(tenant string) ([]domain.CartLine, error) {
	tenant, err := store.NormalizeTenant(tenant)
	if err != nil {
		return nil, err
	}
	data, err := s.storage.Get(cartKey(tenant))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return []domain.CartLine{}, nil
	}
	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		log.Printf("discarding malformed cart for %s: %v", tenant, err)
		return []domain.CartLine{}, nil
	}
	return lines, nil
}

func (s *Service) save(tenant string, lines []domain.CartLine) error {
	data, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	return s.storage.Set(cartKey(tenant), data)
}

// AddLine puts an inventory record in the cart, decrementing the store's
// on-hand quantity immediately. A line for the same (id, type) merges by
// incrementing its quantity. Returns the updated cart.
func (s *Service) AddLine(ctx context.Context, tenant string, line domain.CartLine) ([]domain.CartLine, error) {
	if line.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrBadLine)
	}
	if line.Discount < 0 || line.Discount > 100 {
		return nil, fmt.Errorf("%w: discount must be between 0 and 100", ErrBadLine)
	}
	tenant, err := store.NormalizeTenant(tenant)
	if err != nil {
		return nil, err
	}

	if _, err := s.inv.DecrementStock(ctx, tenant, line.Type, line.ID, line.Quantity); err != nil {
		return nil, err
	}

	lines, err := s.Load(tenant)
	if err != nil {
		s.undoDecrement(ctx, tenant, line)
		return nil, err
	}
	_, idx, found := lo.FindIndexOf(lines, func(l domain.CartLine) bool {
		return l.ID == line.ID && l.Type == line.Type
	})
	if found {
		lines[idx].Quantity += line.Quantity
	} else {
		lines = append(lines, line)
	}

	if err := s.save(tenant, lines); err != nil {
		s.undoDecrement(ctx, tenant, line)
		return nil, err
	}
	return lines, nil
}

// undoDecrement puts the units back when the cart write after a
// successful stock decrement fails, so the on-hand count is not lost.
func (s *Service) undoDecrement(ctx context.Context, tenant string, line domain.CartLine) {
	if _, err := s.inv.RestoreStock(ctx, tenant, line.Type, line.ID, line.Quantity); err != nil {
		log.Printf("restoring stock for %s line %d after cart failure: %v", tenant, line.ID, err)
	}
}

// RemoveLine deletes the line at index and restores its quantity to the
// inventory, keeping stock counts consistent with the immediate
// decrement done on add.
func (s *Service) RemoveLine(ctx context.Context, tenant string, index int) ([]domain.CartLine, error) {
	tenant, err := store.NormalizeTenant(tenant)
	if err != nil {
		return nil, err
	}
	lines, err := s.Load(tenant)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(lines) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchLine, index)
	}
	removed := lines[index]

	if removed.ID != 0 {
		if _, err := s.inv.RestoreStock(ctx, tenant, removed.Type, removed.ID, removed.Quantity); err != nil {
			// The line leaves the cart regardless; a vanished source row
			// should not strand it.
			log.Printf("restoring stock for %s line %d: %v", tenant, removed.ID, err)
		}
	}

	lines = append(lines[:index], lines[index+1:]...)
	if err := s.save(tenant, lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// Clear empties the pharmacy's cart storage.
func (s *Service) Clear(tenant string) error {
	tenant, err := store.NormalizeTenant(tenant)
	if err != nil {
		return err
	}
	return s.storage.Delete(cartKey(tenant))
}

// DiscountedPrice applies a percentage discount to a unit price:
// price - price*discount/100.
func DiscountedPrice(price, discount float64) float64 {
	p := decimal.NewFromFloat(price)
	d := decimal.NewFromFloat(discount)
	out, _ := p.Sub(p.Mul(d).Div(decimal.NewFromInt(100))).Float64()
	return out
}

// Totals is the receipt-ready breakdown of a cart at a given tax rate.
type Totals struct {
	MedicinesSubtotal    float64 `json:"medicines_subtotal"`
	GeneralItemsSubtotal float64 `json:"general_items_subtotal"`
	Subtotal             float64 `json:"subtotal"`
	Tax                  float64 `json:"tax"`
	GrandTotal           float64 `json:"grand_total"`
}

// Subtotal sums discounted price times quantity over the lines of one kind.
func Subtotal(lines []domain.CartLine, kind string) float64 {
	out, _ := subtotal(lines, kind).Float64()
	return out
}

func subtotal(lines []domain.CartLine, kind string) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return lo.Reduce(
		lo.Filter(lines, func(l domain.CartLine, _ int) bool { return l.Type == kind }),
		func(sum decimal.Decimal, l domain.CartLine, _ int) decimal.Decimal {
			price := decimal.NewFromFloat(l.Price)
			discounted := price.Sub(price.Mul(decimal.NewFromFloat(l.Discount)).Div(hundred))
			return sum.Add(discounted.Mul(decimal.NewFromInt(l.Quantity)))
		},
		decimal.Zero)
}

// ComputeTotals produces the full breakdown: per-kind subtotals, their
// sum, tax = subtotal*rate/100, and grand total = subtotal + tax.
func ComputeTotals(lines []domain.CartLine, taxRate float64) Totals {
	meds := subtotal(lines, domain.KindMedicines)
	general := subtotal(lines, domain.KindGeneralItems)
	sub := meds.Add(general)
	tax := sub.Mul(decimal.NewFromFloat(taxRate)).Div(decimal.NewFromInt(100))
	grand := sub.Add(tax)

	var t Totals
	t.MedicinesSubtotal, _ = meds.Float64()
	t.GeneralItemsSubtotal, _ = general.Float64()
	t.Subtotal, _ = sub.Float64()
	t.Tax, _ = tax.Float64()
	t.GrandTotal, _ = grand.Float64()
	return t
}
