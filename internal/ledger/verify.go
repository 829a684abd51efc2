package ledger

import (
	"fmt"

	"tripledger/backend/internal/domain"
)

// Verify checks the book's cross-record invariants. Operations keep them by
// construction; Verify runs before every commit so a broken book is never
// written.
func Verify(b *domain.TripBook) error {
	for _, a := range b.Allocations {
		if a.QuantitySold != claimedUnits(b, a.ID, nil) {
			return drift("allocation %s sold %d does not match its sales", a.ID, a.QuantitySold)
		}
		if a.QuantitySold > a.QuantityStocked {
			return drift("allocation %s sold %d of %d stocked", a.ID, a.QuantitySold, a.QuantityStocked)
		}
	}

	for _, d := range b.Debts {
		if b.Allocation(d.AllocationID) == nil {
			return drift("debt %s points at missing allocation %s", d.ID, d.AllocationID)
		}
		if paid := confirmedSum(b, d.ID); !d.AmountPaid.Equal(paid) {
			return drift("debt %s paid %s, payments sum to %s", d.ID, d.AmountPaid, paid)
		}
		if !d.AmountPending.Equal(d.AmountTotal.Sub(d.AmountPaid)) {
			return drift("debt %s pending %s is not total minus paid", d.ID, d.AmountPending)
		}
		if d.AmountPending.IsNegative() {
			return drift("debt %s pending %s is negative", d.ID, d.AmountPending)
		}
		if d.SaleID != "" {
			if s := b.Sale(d.SaleID); s == nil || s.DebtID != d.ID {
				return drift("debt %s and sale %s are not linked both ways", d.ID, d.SaleID)
			}
		}
	}

	for _, s := range b.Sales {
		if b.Allocation(s.AllocationID) == nil {
			return drift("sale %s points at missing allocation %s", s.ID, s.AllocationID)
		}
		debts := 0
		for _, d := range b.Debts {
			if d.SaleID == s.ID {
				debts++
			}
		}
		switch {
		case s.Channel == domain.ChannelCredit && debts != 1:
			return drift("credit sale %s has %d debts", s.ID, debts)
		case s.Channel != domain.ChannelCredit && debts != 0:
			return drift("%s sale %s has a debt", s.Channel, s.ID)
		}
	}

	for _, p := range b.Payments {
		if b.Debt(p.DebtID) == nil {
			return drift("payment %s points at missing debt %s", p.ID, p.DebtID)
		}
		if !p.Amount.IsPositive() {
			return drift("payment %s amount %s", p.ID, p.Amount)
		}
	}
	return nil
}

func drift(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLedgerDrift, fmt.Sprintf(format, args...))
}
