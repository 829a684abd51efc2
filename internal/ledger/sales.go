package ledger

import (
	"fmt"
	"strings"
	"time"

	"tripledger/backend/internal/domain"
	"tripledger/backend/internal/store"
	"tripledger/backend/internal/xid"
)

type SaleInput struct {
	AllocationID string
	Quantity     int
	Channel      domain.Channel
	PersonRef    string
	DueDate      *time.Time
	Date         time.Time
}

type SalePatch struct {
	AllocationID *string
	Quantity     *int
	Channel      *domain.Channel
	PersonRef    *string
	DueDate      *time.Time
}

// AddSale reserves stock and records the sale. A credit sale gets its debt in
// the same step.
func (e *Engine) AddSale(b *domain.TripBook, in SaleInput) (*domain.Sale, error) {
	if !in.Channel.ValidForSale() {
		return nil, invalid("unsupported sale channel %q", in.Channel)
	}
	person := strings.TrimSpace(in.PersonRef)
	if in.Channel == domain.ChannelCredit {
		if person == "" {
			return nil, invalid("credit sale requires a person")
		}
		if err := e.checkDueDate(in.DueDate); err != nil {
			return nil, err
		}
	}
	if err := Reserve(b, in.AllocationID, in.Quantity, ""); err != nil {
		return nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = e.Today()
	}
	sale := domain.Sale{
		ID:           xid.New("sale"),
		TripID:       b.Trip.ID,
		AllocationID: in.AllocationID,
		Quantity:     in.Quantity,
		Channel:      in.Channel,
		PersonRef:    person,
		Date:         date,
		CreatedAt:    e.now().UTC(),
	}
	b.Sales = append(b.Sales, sale)
	if in.Channel == domain.ChannelCredit {
		e.ensureDebt(b, sale.ID, in.DueDate)
	}
	e.propagate(b, append(saleInputs, debtInputs...)...)
	return b.Sale(sale.ID), nil
}

// UpdateSale edits quantity, allocation, channel or person. Moving to credit
// opens the debt; leaving credit drops it, which is refused once the debt has
// confirmed payments.
func (e *Engine) UpdateSale(b *domain.TripBook, id string, patch SalePatch) (*domain.Sale, error) {
	s := b.Sale(id)
	if s == nil {
		return nil, fmt.Errorf("%w: sale %s", store.ErrNotFound, id)
	}

	allocationID := s.AllocationID
	if patch.AllocationID != nil {
		allocationID = strings.TrimSpace(*patch.AllocationID)
	}
	qty := s.Quantity
	if patch.Quantity != nil {
		qty = *patch.Quantity
	}
	channel := s.Channel
	if patch.Channel != nil {
		channel = *patch.Channel
	}
	person := s.PersonRef
	if patch.PersonRef != nil {
		person = strings.TrimSpace(*patch.PersonRef)
	}

	if !channel.ValidForSale() {
		return nil, invalid("unsupported sale channel %q", channel)
	}
	if s.FromDebt && channel != domain.ChannelCredit {
		return nil, invalid("sale %s backs a debt; settle or delete the debt instead", id)
	}

	debt := b.DebtForSale(id)
	locked := debt != nil && hasConfirmedPayments(b, debt.ID)
	moved := allocationID != s.AllocationID || qty != s.Quantity
	if locked && (moved || channel != domain.ChannelCredit) {
		return nil, fmt.Errorf("%w: debt %s", ErrDebtLocked, debt.ID)
	}
	if moved {
		if err := Reserve(b, allocationID, qty, id); err != nil {
			return nil, err
		}
	}
	if channel == domain.ChannelCredit {
		if person == "" && debt != nil && patch.PersonRef == nil {
			person = debt.PersonRef
		}
		if person == "" {
			return nil, invalid("credit sale requires a person")
		}
		if err := e.checkDueDate(patch.DueDate); err != nil {
			return nil, err
		}
	}

	s.AllocationID = allocationID
	s.Quantity = qty
	s.Channel = channel
	s.PersonRef = person
	if channel == domain.ChannelCredit {
		d := e.ensureDebt(b, id, patch.DueDate)
		d.AllocationID = allocationID
		d.Quantity = qty
		d.PersonRef = person
		if patch.DueDate != nil {
			d.DueDate = cloneDate(patch.DueDate)
		}
	} else if debt != nil {
		b.RemoveDebt(debt.ID)
		b.Sale(id).DebtID = ""
	}

	e.propagate(b, append(saleInputs, debtInputs...)...)
	return b.Sale(id), nil
}

// RemoveSale deletes the sale and its debt. A debt with confirmed payments
// keeps the sale alive.
func (e *Engine) RemoveSale(b *domain.TripBook, id string) error {
	if b.Sale(id) == nil {
		return fmt.Errorf("%w: sale %s", store.ErrNotFound, id)
	}
	if d := b.DebtForSale(id); d != nil {
		if hasConfirmedPayments(b, d.ID) {
			return fmt.Errorf("%w: debt %s", ErrDebtLocked, d.ID)
		}
		b.RemoveDebt(d.ID)
	}
	b.RemoveSale(id)
	e.propagate(b, append(saleInputs, debtInputs...)...)
	return nil
}

// ensureDebt returns the credit sale's debt, creating it only if it does not
// exist yet.
func (e *Engine) ensureDebt(b *domain.TripBook, saleID string, due *time.Time) *domain.Debt {
	if d := b.DebtForSale(saleID); d != nil {
		return d
	}
	s := b.Sale(saleID)
	d := domain.Debt{
		ID:           xid.New("debt"),
		TripID:       b.Trip.ID,
		AllocationID: s.AllocationID,
		SaleID:       s.ID,
		PersonRef:    s.PersonRef,
		Quantity:     s.Quantity,
		DueDate:      cloneDate(due),
		CreatedAt:    e.now().UTC(),
	}
	s.DebtID = d.ID
	b.Debts = append(b.Debts, d)
	return b.Debt(d.ID)
}

func (e *Engine) checkDueDate(due *time.Time) error {
	if due != nil && due.Before(e.Today()) {
		return fmt.Errorf("%w: %s", ErrPastDueDate, due.Format(domain.DateLayout))
	}
	return nil
}

func cloneDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
