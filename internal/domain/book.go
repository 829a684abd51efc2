package domain

import "slices"

// TripBook is one trip with every record it owns. It is the unit the
// stores load, mutate and commit atomically.
type TripBook struct {
	Trip        Trip                `json:"trip"`
	Allocations []ProductAllocation `json:"allocations"`
	Sales       []Sale              `json:"sales"`
	Debts       []Debt              `json:"debts"`
	Payments    []Payment           `json:"payments"`
	Totals      TripTotals          `json:"totals"`
}

func NewTripBook(trip Trip) *TripBook {
	return &TripBook{
		Trip:        trip,
		Allocations: []ProductAllocation{},
		Sales:       []Sale{},
		Debts:       []Debt{},
		Payments:    []Payment{},
	}
}

// Clone returns a deep copy; pointer fields are copied by value.
func (b *TripBook) Clone() *TripBook {
	out := &TripBook{
		Trip:        b.Trip,
		Allocations: slices.Clone(b.Allocations),
		Sales:       slices.Clone(b.Sales),
		Debts:       slices.Clone(b.Debts),
		Payments:    slices.Clone(b.Payments),
		Totals:      b.Totals,
	}
	if out.Allocations == nil {
		out.Allocations = []ProductAllocation{}
	}
	if out.Sales == nil {
		out.Sales = []Sale{}
	}
	if out.Debts == nil {
		out.Debts = []Debt{}
	}
	if out.Payments == nil {
		out.Payments = []Payment{}
	}
	for i := range out.Debts {
		out.Debts[i].DueDate = cloneTime(out.Debts[i].DueDate)
		out.Debts[i].PaidDate = cloneTime(out.Debts[i].PaidDate)
	}
	return out
}

func (b *TripBook) Allocation(id string) *ProductAllocation {
	for i := range b.Allocations {
		if b.Allocations[i].ID == id {
			return &b.Allocations[i]
		}
	}
	return nil
}

func (b *TripBook) Sale(id string) *Sale {
	for i := range b.Sales {
		if b.Sales[i].ID == id {
			return &b.Sales[i]
		}
	}
	return nil
}

func (b *TripBook) Debt(id string) *Debt {
	for i := range b.Debts {
		if b.Debts[i].ID == id {
			return &b.Debts[i]
		}
	}
	return nil
}

func (b *TripBook) Payment(id string) *Payment {
	for i := range b.Payments {
		if b.Payments[i].ID == id {
			return &b.Payments[i]
		}
	}
	return nil
}

// DebtForSale returns the debt backed by saleID, if any.
func (b *TripBook) DebtForSale(saleID string) *Debt {
	for i := range b.Debts {
		if b.Debts[i].SaleID == saleID {
			return &b.Debts[i]
		}
	}
	return nil
}

func (b *TripBook) PaymentsForDebt(debtID string) []*Payment {
	out := make([]*Payment, 0, 4)
	for i := range b.Payments {
		if b.Payments[i].DebtID == debtID {
			out = append(out, &b.Payments[i])
		}
	}
	return out
}

func (b *TripBook) RemoveAllocation(id string) {
	b.Allocations = slices.DeleteFunc(b.Allocations, func(a ProductAllocation) bool { return a.ID == id })
}

func (b *TripBook) RemoveSale(id string) {
	b.Sales = slices.DeleteFunc(b.Sales, func(s Sale) bool { return s.ID == id })
}

// RemoveDebt drops the debt together with its payment ledger.
func (b *TripBook) RemoveDebt(id string) {
	b.Debts = slices.DeleteFunc(b.Debts, func(d Debt) bool { return d.ID == id })
	b.Payments = slices.DeleteFunc(b.Payments, func(p Payment) bool { return p.DebtID == id })
}

func (b *TripBook) RemovePayment(id string) {
	b.Payments = slices.DeleteFunc(b.Payments, func(p Payment) bool { return p.ID == id })
}

// Owns reports whether the book holds a record of the given kind and id.
func (b *TripBook) Owns(kind EntityKind, id string) bool {
	switch kind {
	case KindTrip:
		return b.Trip.ID == id
	case KindAllocation:
		return b.Allocation(id) != nil
	case KindSale:
		return b.Sale(id) != nil
	case KindDebt:
		return b.Debt(id) != nil
	case KindPayment:
		return b.Payment(id) != nil
	}
	return false
}

// Summary condenses the book for list views.
func (b *TripBook) Summary() TripSummary {
	open := 0
	for _, d := range b.Debts {
		if d.State != DebtPaid {
			open++
		}
	}
	return TripSummary{
		Trip:            b.Trip,
		Totals:          b.Totals,
		AllocationCount: len(b.Allocations),
		SaleCount:       len(b.Sales),
		OpenDebtCount:   open,
	}
}
