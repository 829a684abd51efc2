package ledger

import (
	"github.com/shopspring/decimal"

	"tripledger/backend/internal/domain"
)

func computeTripCapital(f *frame) {
	sum := decimal.Zero
	for _, a := range f.book.Allocations {
		sum = sum.Add(a.CapitalInvested)
	}
	f.book.Totals.CapitalInvested = sum
}

func computeTripCash(f *frame) {
	f.book.Totals.CashTotal = collected(f.book, domain.ChannelCash)
}

func computeTripTransfer(f *frame) {
	f.book.Totals.TransferTotal = collected(f.book, domain.ChannelTransfer)
}

func computeTripOther(f *frame) {
	sum := decimal.Zero
	for _, p := range f.book.Payments {
		if p.Status != domain.PaymentConfirmed {
			continue
		}
		if p.Channel != domain.ChannelCash && p.Channel != domain.ChannelTransfer {
			sum = sum.Add(p.Amount)
		}
	}
	f.book.Totals.OtherTotal = sum
}

// collected is money received through channel: sales taken directly through
// it plus confirmed debt payments made through it. Credit sales contribute
// only through their payments.
func collected(b *domain.TripBook, channel domain.Channel) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range b.Sales {
		if s.Channel == channel {
			sum = sum.Add(s.Total)
		}
	}
	for _, p := range b.Payments {
		if p.Status == domain.PaymentConfirmed && p.Channel == channel {
			sum = sum.Add(p.Amount)
		}
	}
	return sum
}

func computeTripDebtOutstanding(f *frame) {
	sum := decimal.Zero
	for _, d := range f.book.Debts {
		if d.State != domain.DebtPaid {
			sum = sum.Add(d.AmountPending)
		}
	}
	f.book.Totals.DebtOutstanding = sum
}

func computeTripTotalSold(f *frame) {
	t := &f.book.Totals
	t.TotalSold = t.CashTotal.Add(t.TransferTotal).Add(t.OtherTotal).Add(t.DebtOutstanding)
}

func computeTripRealized(f *frame) {
	sum := decimal.Zero
	for _, a := range f.book.Allocations {
		sum = sum.Add(a.ActualProfit)
	}
	f.book.Totals.RealizedProfit = sum
}

func computeTripPotential(f *frame) {
	t := &f.book.Totals
	t.PotentialProfit = t.TotalSold.Sub(t.CapitalInvested)
}

func computeTripPercentReal(f *frame) {
	t := &f.book.Totals
	t.ProfitPercentReal = percentOf(t.RealizedProfit, t.CapitalInvested)
}

func computeTripPercentPotential(f *frame) {
	t := &f.book.Totals
	t.ProfitPercentPotential = percentOf(t.PotentialProfit, t.CapitalInvested)
}

// percentOf is part/base*100 rounded to two places, and zero when base is zero.
func percentOf(part, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return part.Div(base).Mul(hundred).Round(2)
}
