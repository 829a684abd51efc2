package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"tripledger/backend/internal/derive"
	"tripledger/backend/internal/domain"
)

var (
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrNonPositiveAmount     = errors.New("amount must be greater than zero")
	ErrPaymentExceedsPending = errors.New("payment exceeds pending amount")
	ErrPastDueDate           = errors.New("due date is in the past")
	ErrDebtLocked            = errors.New("debt has confirmed payments")
	ErrDeleteBlocked         = errors.New("delete blocked")
	ErrInvalidInput          = errors.New("invalid input")
	ErrLedgerDrift           = errors.New("ledger invariant violated")

	ErrDependencyCycle = derive.ErrDependencyCycle
)

type InsufficientStockError struct {
	AllocationID string
	Requested    int
	Available    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s: requested %d, available %d", ErrInsufficientStock, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

type PaymentExceedsPendingError struct {
	DebtID  string
	Amount  decimal.Decimal
	Pending decimal.Decimal
}

func (e *PaymentExceedsPendingError) Error() string {
	return fmt.Sprintf("%s: amount %s, pending %s", ErrPaymentExceedsPending, e.Amount.String(), e.Pending.String())
}

func (e *PaymentExceedsPendingError) Unwrap() error {
	return ErrPaymentExceedsPending
}

type DeleteBlockedError struct {
	Kind   domain.EntityKind
	ID     string
	Reason string
}

func (e *DeleteBlockedError) Error() string {
	return fmt.Sprintf("%s: %s %s: %s", ErrDeleteBlocked, e.Kind, e.ID, e.Reason)
}

func (e *DeleteBlockedError) Unwrap() error {
	return ErrDeleteBlocked
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
