package ledger

import (
	"fmt"
	"strings"
	"time"

	"tripledger/backend/internal/domain"
	"tripledger/backend/internal/store"
	"tripledger/backend/internal/xid"
)

type DebtInput struct {
	PersonRef    string
	AllocationID string
	Quantity     int
	DueDate      *time.Time
}

type DebtPatch struct {
	PersonRef    *string
	Quantity     *int
	DueDate      *time.Time
	ClearDueDate bool
}

// AddDebt records units taken on credit. A draft sale is synthesized to back
// the debt so stock and sales stay in one place.
func (e *Engine) AddDebt(b *domain.TripBook, in DebtInput) (*domain.Debt, error) {
	person := strings.TrimSpace(in.PersonRef)
	if person == "" {
		return nil, invalid("person ref is required")
	}
	if err := e.checkDueDate(in.DueDate); err != nil {
		return nil, err
	}
	if err := Reserve(b, in.AllocationID, in.Quantity, ""); err != nil {
		return nil, err
	}

	sale := domain.Sale{
		ID:           xid.New("sale"),
		TripID:       b.Trip.ID,
		AllocationID: in.AllocationID,
		Quantity:     in.Quantity,
		Channel:      domain.ChannelCredit,
		PersonRef:    person,
		FromDebt:     true,
		Date:         e.Today(),
		CreatedAt:    e.now().UTC(),
	}
	b.Sales = append(b.Sales, sale)
	debtID := e.ensureDebt(b, sale.ID, in.DueDate).ID

	e.propagate(b, append(saleInputs, debtInputs...)...)
	return b.Debt(debtID), nil
}

// UpdateDebt changes quantity, due date or person. The quantity drives the
// debt total, so it is frozen once a confirmed payment exists.
func (e *Engine) UpdateDebt(b *domain.TripBook, id string, patch DebtPatch) (*domain.Debt, error) {
	d := b.Debt(id)
	if d == nil {
		return nil, fmt.Errorf("%w: debt %s", store.ErrNotFound, id)
	}

	qty := d.Quantity
	if patch.Quantity != nil {
		qty = *patch.Quantity
	}
	if qty != d.Quantity {
		if hasConfirmedPayments(b, id) {
			return nil, fmt.Errorf("%w: debt %s", ErrDebtLocked, id)
		}
		if err := Reserve(b, d.AllocationID, qty, id); err != nil {
			return nil, err
		}
	}
	person := d.PersonRef
	if patch.PersonRef != nil {
		person = strings.TrimSpace(*patch.PersonRef)
		if person == "" {
			return nil, invalid("person ref is required")
		}
	}
	if !patch.ClearDueDate {
		if err := e.checkDueDate(patch.DueDate); err != nil {
			return nil, err
		}
	}

	d.Quantity = qty
	d.PersonRef = person
	switch {
	case patch.ClearDueDate:
		d.DueDate = nil
	case patch.DueDate != nil:
		d.DueDate = cloneDate(patch.DueDate)
	}
	if s := b.Sale(d.SaleID); s != nil {
		s.Quantity = qty
		s.PersonRef = person
	}

	e.propagate(b, append(saleInputs, debtInputs...)...)
	return b.Debt(id), nil
}

// RemoveDebt deletes an unpaid debt together with the sale backing it.
func (e *Engine) RemoveDebt(b *domain.TripBook, id string) error {
	d := b.Debt(id)
	if d == nil {
		return fmt.Errorf("%w: debt %s", store.ErrNotFound, id)
	}
	if hasConfirmedPayments(b, id) {
		return fmt.Errorf("%w: debt %s", ErrDebtLocked, id)
	}
	saleID := d.SaleID
	b.RemoveDebt(id)
	if saleID != "" {
		b.RemoveSale(saleID)
	}
	e.propagate(b, append(saleInputs, debtInputs...)...)
	return nil
}
