package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tripledger/backend/internal/domain"
	"tripledger/backend/internal/store"
	"tripledger/backend/internal/xid"
)

type AllocationInput struct {
	ProductRef    string
	Quantity      int
	PurchasePrice decimal.Decimal
	SalePrice     decimal.Decimal
}

type AllocationPatch struct {
	QuantityStocked *int
	PurchasePrice   *decimal.Decimal
	SalePrice       *decimal.Decimal
}

func (e *Engine) AddAllocation(b *domain.TripBook, in AllocationInput) (*domain.ProductAllocation, error) {
	ref := strings.TrimSpace(in.ProductRef)
	if ref == "" {
		return nil, invalid("product ref is required")
	}
	if in.Quantity < 0 {
		return nil, invalid("quantity must not be negative")
	}
	if !in.PurchasePrice.IsPositive() || !in.SalePrice.IsPositive() {
		return nil, fmt.Errorf("%w: purchase and sale price", ErrNonPositiveAmount)
	}

	a := domain.ProductAllocation{
		ID:              xid.New("alloc"),
		TripID:          b.Trip.ID,
		ProductRef:      ref,
		QuantityStocked: in.Quantity,
		PurchasePrice:   in.PurchasePrice,
		SalePrice:       in.SalePrice,
		CreatedAt:       e.now().UTC(),
	}
	b.Allocations = append(b.Allocations, a)
	e.propagate(b, FieldAllocationStocked, FieldAllocationPurchase, FieldAllocationSalePrice)
	return b.Allocation(a.ID), nil
}

// UpdateAllocation restocks or reprices an allocation. Stock cannot drop
// below what is already claimed, and a new sale price may not change the
// total of a debt that already has confirmed payments.
func (e *Engine) UpdateAllocation(b *domain.TripBook, id string, patch AllocationPatch) (*domain.ProductAllocation, error) {
	a := b.Allocation(id)
	if a == nil {
		return nil, fmt.Errorf("%w: allocation %s", store.ErrNotFound, id)
	}

	changed := make([]string, 0, 3)
	if patch.QuantityStocked != nil {
		qty := *patch.QuantityStocked
		if qty < 0 {
			return nil, invalid("quantity must not be negative")
		}
		claimed := claimedUnits(b, id, nil)
		if qty < claimed {
			return nil, &InsufficientStockError{
				AllocationID: id,
				Requested:    a.QuantityStocked - qty,
				Available:    max(a.QuantityStocked-claimed, 0),
			}
		}
		changed = append(changed, FieldAllocationStocked)
	}
	if patch.PurchasePrice != nil {
		if !patch.PurchasePrice.IsPositive() {
			return nil, fmt.Errorf("%w: purchase price", ErrNonPositiveAmount)
		}
		changed = append(changed, FieldAllocationPurchase)
	}
	if patch.SalePrice != nil {
		price := *patch.SalePrice
		if !price.IsPositive() {
			return nil, fmt.Errorf("%w: sale price", ErrNonPositiveAmount)
		}
		for _, d := range b.Debts {
			if d.AllocationID != id || !hasConfirmedPayments(b, d.ID) {
				continue
			}
			if !price.Mul(decimal.NewFromInt(int64(d.Quantity))).Equal(d.AmountTotal) {
				return nil, fmt.Errorf("%w: debt %s total would change", ErrDebtLocked, d.ID)
			}
		}
		changed = append(changed, FieldAllocationSalePrice)
	}

	if patch.QuantityStocked != nil {
		a.QuantityStocked = *patch.QuantityStocked
	}
	if patch.PurchasePrice != nil {
		a.PurchasePrice = *patch.PurchasePrice
	}
	if patch.SalePrice != nil {
		a.SalePrice = *patch.SalePrice
	}
	e.propagate(b, changed...)
	return b.Allocation(id), nil
}

func (e *Engine) RemoveAllocation(b *domain.TripBook, id string) error {
	if b.Allocation(id) == nil {
		return fmt.Errorf("%w: allocation %s", store.ErrNotFound, id)
	}
	if claimed := claimedUnits(b, id, nil); claimed > 0 {
		return &DeleteBlockedError{Kind: domain.KindAllocation, ID: id, Reason: fmt.Sprintf("%d units are sold or owed", claimed)}
	}
	b.RemoveAllocation(id)
	e.propagate(b, FieldAllocationStocked, FieldAllocationPurchase, FieldAllocationSalePrice)
	return nil
}

// CheckTripDeletable refuses deletion while the trip has sales or any debt
// is not fully paid.
func CheckTripDeletable(b *domain.TripBook) error {
	unsettled := 0
	for _, d := range b.Debts {
		if d.State != domain.DebtPaid {
			unsettled++
		}
	}
	reasons := make([]string, 0, 2)
	if n := len(b.Sales); n > 0 {
		reasons = append(reasons, fmt.Sprintf("%d sales recorded", n))
	}
	if unsettled > 0 {
		reasons = append(reasons, fmt.Sprintf("%d debts unsettled", unsettled))
	}
	if len(reasons) > 0 {
		return &DeleteBlockedError{Kind: domain.KindTrip, ID: b.Trip.ID, Reason: strings.Join(reasons, ", ")}
	}
	return nil
}
