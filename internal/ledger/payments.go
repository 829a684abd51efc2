package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tripledger/backend/internal/domain"
	"tripledger/backend/internal/store"
	"tripledger/backend/internal/xid"
)

type PaymentInput struct {
	Amount  decimal.Decimal
	Channel domain.Channel
	Date    time.Time
}

type PaymentPatch struct {
	Amount  *decimal.Decimal
	Channel *domain.Channel
	Status  *domain.PaymentStatus
	Date    *time.Time
}

// RecordPayment adds a confirmed payment against a debt. The amount may not
// exceed what is still pending.
func (e *Engine) RecordPayment(b *domain.TripBook, debtID string, in PaymentInput) (*domain.Payment, error) {
	d := b.Debt(debtID)
	if d == nil {
		return nil, fmt.Errorf("%w: debt %s", store.ErrNotFound, debtID)
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment amount", ErrNonPositiveAmount)
	}
	if !in.Channel.ValidForPayment() {
		return nil, invalid("unsupported payment channel %q", in.Channel)
	}
	if in.Amount.GreaterThan(d.AmountPending) {
		return nil, &PaymentExceedsPendingError{DebtID: debtID, Amount: in.Amount, Pending: d.AmountPending}
	}

	now := e.now().UTC()
	date := in.Date
	if date.IsZero() {
		date = e.Today()
	}
	p := domain.Payment{
		ID:        xid.New("pay"),
		TripID:    b.Trip.ID,
		DebtID:    debtID,
		Amount:    in.Amount,
		Date:      date,
		Channel:   in.Channel,
		Status:    domain.PaymentConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.Payments = append(b.Payments, p)
	applyPayment(d, p)

	e.propagate(b, paymentInputs...)
	return b.Payment(p.ID), nil
}

// UpdatePayment reverses the payment's old effect on its debt and applies the
// new one. The whole edit is checked first so a rejected edit leaves the book
// untouched.
func (e *Engine) UpdatePayment(b *domain.TripBook, id string, patch PaymentPatch) (*domain.Payment, error) {
	p := b.Payment(id)
	if p == nil {
		return nil, fmt.Errorf("%w: payment %s", store.ErrNotFound, id)
	}
	d := b.Debt(p.DebtID)
	if d == nil {
		return nil, fmt.Errorf("%w: payment %s points at missing debt %s", ErrLedgerDrift, id, p.DebtID)
	}

	next := *p
	if patch.Amount != nil {
		if !patch.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: payment amount", ErrNonPositiveAmount)
		}
		next.Amount = *patch.Amount
	}
	if patch.Channel != nil {
		if !patch.Channel.ValidForPayment() {
			return nil, invalid("unsupported payment channel %q", *patch.Channel)
		}
		next.Channel = *patch.Channel
	}
	if patch.Status != nil {
		switch *patch.Status {
		case domain.PaymentConfirmed, domain.PaymentCancelled:
			next.Status = *patch.Status
		default:
			return nil, invalid("unsupported payment status %q", *patch.Status)
		}
	}
	if patch.Date != nil {
		next.Date = *patch.Date
	}

	paid := d.AmountPaid
	if p.Status == domain.PaymentConfirmed {
		paid = paid.Sub(p.Amount)
	}
	if next.Status == domain.PaymentConfirmed {
		pending := d.AmountTotal.Sub(paid)
		if next.Amount.GreaterThan(pending) {
			return nil, &PaymentExceedsPendingError{DebtID: d.ID, Amount: next.Amount, Pending: pending}
		}
	}

	reversePayment(d, *p)
	next.UpdatedAt = e.now().UTC()
	*p = next
	applyPayment(d, *p)

	e.propagate(b, paymentInputs...)
	return b.Payment(id), nil
}

// RemovePayment deletes a payment and takes its amount back off the debt.
func (e *Engine) RemovePayment(b *domain.TripBook, id string) error {
	p := b.Payment(id)
	if p == nil {
		return fmt.Errorf("%w: payment %s", store.ErrNotFound, id)
	}
	if d := b.Debt(p.DebtID); d != nil {
		reversePayment(d, *p)
	}
	b.RemovePayment(id)
	e.propagate(b, paymentInputs...)
	return nil
}

// SettleDebt pays off everything still pending in a single payment. The
// channel defaults to cash.
func (e *Engine) SettleDebt(b *domain.TripBook, debtID string, channel domain.Channel, date time.Time) (*domain.Debt, error) {
	d := b.Debt(debtID)
	if d == nil {
		return nil, fmt.Errorf("%w: debt %s", store.ErrNotFound, debtID)
	}
	if !d.AmountPending.IsPositive() {
		return nil, invalid("debt %s is already settled", debtID)
	}
	if channel == "" {
		channel = domain.ChannelCash
	}
	if _, err := e.RecordPayment(b, debtID, PaymentInput{Amount: d.AmountPending, Channel: channel, Date: date}); err != nil {
		return nil, err
	}
	return b.Debt(debtID), nil
}

// ReopenDebt cancels every confirmed payment of the debt so it is fully
// pending again. The payments stay on record as cancelled.
func (e *Engine) ReopenDebt(b *domain.TripBook, debtID string) (*domain.Debt, error) {
	d := b.Debt(debtID)
	if d == nil {
		return nil, fmt.Errorf("%w: debt %s", store.ErrNotFound, debtID)
	}
	if !hasConfirmedPayments(b, debtID) {
		return nil, invalid("debt %s has no payments to reopen", debtID)
	}
	now := e.now().UTC()
	for i := range b.Payments {
		p := &b.Payments[i]
		if p.DebtID != debtID || p.Status != domain.PaymentConfirmed {
			continue
		}
		reversePayment(d, *p)
		p.Status = domain.PaymentCancelled
		p.UpdatedAt = now
	}
	e.propagate(b, paymentInputs...)
	return b.Debt(debtID), nil
}

func applyPayment(d *domain.Debt, p domain.Payment) {
	if p.Status == domain.PaymentConfirmed {
		d.AmountPaid = d.AmountPaid.Add(p.Amount)
	}
}

func reversePayment(d *domain.Debt, p domain.Payment) {
	if p.Status == domain.PaymentConfirmed {
		d.AmountPaid = d.AmountPaid.Sub(p.Amount)
	}
}
