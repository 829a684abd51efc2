package ledger

import (
	"fmt"

	"tripledger/backend/internal/domain"
	"tripledger/backend/internal/store"
)

// Reserve checks that qty units of the allocation are still free. The claim
// held by excludingID (a sale or a debt being edited, together with its linked
// counterpart) does not count against the allocation. It never adjusts qty;
// on shortage it returns *InsufficientStockError carrying the free count.
func Reserve(b *domain.TripBook, allocationID string, qty int, excludingID string) error {
	if qty < 1 {
		return invalid("quantity must be at least 1")
	}
	a := b.Allocation(allocationID)
	if a == nil {
		return fmt.Errorf("%w: allocation %s", store.ErrNotFound, allocationID)
	}

	available := a.QuantityStocked - claimedUnits(b, allocationID, excludedClaims(b, excludingID))
	if available < 0 {
		available = 0
	}
	if qty > available {
		return &InsufficientStockError{AllocationID: allocationID, Requested: qty, Available: available}
	}
	return nil
}

// Available is the number of units that can still be claimed.
func Available(b *domain.TripBook, allocationID string) (int, error) {
	a := b.Allocation(allocationID)
	if a == nil {
		return 0, fmt.Errorf("%w: allocation %s", store.ErrNotFound, allocationID)
	}
	free := a.QuantityStocked - claimedUnits(b, allocationID, nil)
	if free < 0 {
		free = 0
	}
	return free, nil
}

func excludedClaims(b *domain.TripBook, id string) map[string]bool {
	if id == "" {
		return nil
	}
	skip := map[string]bool{id: true}
	if s := b.Sale(id); s != nil && s.DebtID != "" {
		skip[s.DebtID] = true
	}
	if d := b.Debt(id); d != nil && d.SaleID != "" {
		skip[d.SaleID] = true
	}
	return skip
}
