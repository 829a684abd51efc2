package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"tripledger/backend/internal/domain"
)

// DebtStateFor is the debt state machine. The state is never stored as an
// edge; it is re-evaluated from its inputs whenever one of them changes.
func DebtStateFor(pending, total decimal.Decimal, dueDate *time.Time, today time.Time) domain.DebtState {
	switch {
	case !pending.IsPositive():
		return domain.DebtPaid
	case pending.LessThan(total):
		return domain.DebtPartial
	case dueDate != nil && dueDate.Before(today):
		return domain.DebtOverdue
	default:
		return domain.DebtPending
	}
}

// claimedUnits sums the units held against an allocation. Each debt is
// backed by a sale, so debts only count on their own when that link is
// missing. Records whose id is in skip are ignored.
func claimedUnits(b *domain.TripBook, allocationID string, skip map[string]bool) int {
	units := 0
	for _, s := range b.Sales {
		if s.AllocationID == allocationID && !skip[s.ID] {
			units += s.Quantity
		}
	}
	for _, d := range b.Debts {
		if d.AllocationID == allocationID && d.SaleID == "" && !skip[d.ID] {
			units += d.Quantity
		}
	}
	return units
}

func computeQuantitySold(f *frame) {
	for i := range f.book.Allocations {
		a := &f.book.Allocations[i]
		a.QuantitySold = claimedUnits(f.book, a.ID, nil)
	}
}

func computeQuantityRemaining(f *frame) {
	for i := range f.book.Allocations {
		a := &f.book.Allocations[i]
		a.QuantityRemaining = a.QuantityStocked - a.QuantitySold
	}
}

func computeAllocationCapital(f *frame) {
	for i := range f.book.Allocations {
		a := &f.book.Allocations[i]
		a.CapitalInvested = a.PurchasePrice.Mul(decimal.NewFromInt(int64(a.QuantityStocked)))
	}
}

func computeAllocationPotential(f *frame) {
	for i := range f.book.Allocations {
		a := &f.book.Allocations[i]
		a.PotentialProfit = a.SalePrice.Sub(a.PurchasePrice).Mul(decimal.NewFromInt(int64(a.QuantityStocked)))
	}
}

func computeAllocationActual(f *frame) {
	for i := range f.book.Allocations {
		a := &f.book.Allocations[i]
		a.ActualProfit = a.SalePrice.Sub(a.PurchasePrice).Mul(decimal.NewFromInt(int64(a.QuantitySold)))
	}
}

func computeSaleUnitPrice(f *frame) {
	for i := range f.book.Sales {
		s := &f.book.Sales[i]
		if a := f.book.Allocation(s.AllocationID); a != nil {
			s.UnitPrice = a.SalePrice
		}
	}
}

func computeSaleTotal(f *frame) {
	for i := range f.book.Sales {
		s := &f.book.Sales[i]
		s.Total = s.UnitPrice.Mul(decimal.NewFromInt(int64(s.Quantity)))
	}
}

func computeSaleProfit(f *frame) {
	for i := range f.book.Sales {
		s := &f.book.Sales[i]
		a := f.book.Allocation(s.AllocationID)
		if a == nil {
			s.Profit = decimal.Zero
			continue
		}
		s.Profit = s.UnitPrice.Sub(a.PurchasePrice).Mul(decimal.NewFromInt(int64(s.Quantity)))
	}
}

func computeSaleStatus(f *frame) {
	for i := range f.book.Sales {
		s := &f.book.Sales[i]
		if s.Channel != domain.ChannelCredit {
			s.Status = domain.SalePaid
			continue
		}
		unpaid := domain.SaleDebt
		if s.FromDebt {
			unpaid = domain.SaleDraft
		}
		d := f.book.DebtForSale(s.ID)
		if d == nil {
			s.Status = unpaid
			continue
		}
		switch d.State {
		case domain.DebtPaid:
			s.Status = domain.SalePaid
		case domain.DebtPartial:
			s.Status = domain.SalePartial
		default:
			s.Status = unpaid
		}
	}
}

// computeSaleSettlement copies the channel of the payment that settled a
// credit sale's debt onto the sale.
func computeSaleSettlement(f *frame) {
	for i := range f.book.Sales {
		s := &f.book.Sales[i]
		s.SettlementChannel = ""
		if s.Channel != domain.ChannelCredit {
			continue
		}
		d := f.book.DebtForSale(s.ID)
		if d == nil || d.State != domain.DebtPaid {
			continue
		}
		if p := lastConfirmedPayment(f.book, d.ID); p != nil {
			s.SettlementChannel = p.Channel
		}
	}
}

func computeDebtTotal(f *frame) {
	for i := range f.book.Debts {
		d := &f.book.Debts[i]
		if a := f.book.Allocation(d.AllocationID); a != nil {
			d.AmountTotal = a.SalePrice.Mul(decimal.NewFromInt(int64(d.Quantity)))
		}
	}
}

func computeDebtPending(f *frame) {
	for i := range f.book.Debts {
		d := &f.book.Debts[i]
		d.AmountPending = d.AmountTotal.Sub(d.AmountPaid)
	}
}

func computeDebtState(f *frame) {
	for i := range f.book.Debts {
		d := &f.book.Debts[i]
		d.State = DebtStateFor(d.AmountPending, d.AmountTotal, d.DueDate, f.today)
	}
}

func computeDebtPaidDate(f *frame) {
	for i := range f.book.Debts {
		d := &f.book.Debts[i]
		d.PaidDate = nil
		if d.State != domain.DebtPaid {
			continue
		}
		if p := lastConfirmedPayment(f.book, d.ID); p != nil {
			paid := p.Date
			d.PaidDate = &paid
		}
	}
}

func computeDebtDaysUntilDue(f *frame) {
	for i := range f.book.Debts {
		d := &f.book.Debts[i]
		if d.DueDate == nil {
			d.DaysUntilDue = 0
			continue
		}
		d.DaysUntilDue = int(d.DueDate.Sub(f.today).Hours() / 24)
	}
}

// lastConfirmedPayment orders by payment date, then creation time, then id.
func lastConfirmedPayment(b *domain.TripBook, debtID string) *domain.Payment {
	var last *domain.Payment
	for i := range b.Payments {
		p := &b.Payments[i]
		if p.DebtID != debtID || p.Status != domain.PaymentConfirmed {
			continue
		}
		if last == nil || paymentAfter(p, last) {
			last = p
		}
	}
	return last
}

func paymentAfter(a, b *domain.Payment) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func confirmedSum(b *domain.TripBook, debtID string) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range b.Payments {
		if p.DebtID == debtID && p.Status == domain.PaymentConfirmed {
			sum = sum.Add(p.Amount)
		}
	}
	return sum
}

func hasConfirmedPayments(b *domain.TripBook, debtID string) bool {
	for _, p := range b.Payments {
		if p.DebtID == debtID && p.Status == domain.PaymentConfirmed {
			return true
		}
	}
	return false
}
