package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dates in requests are calendar days formatted as 2006-01-02.
const DateLayout = "2006-01-02"

type TripCreateRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type TripUpdateRequest struct {
	Name *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Date *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type AllocationCreateRequest struct {
	TripID        string          `json:"trip_id"`
	ProductRef    string          `json:"product_ref" validate:"required,max=120"`
	Quantity      int             `json:"quantity" validate:"gte=0"`
	PurchasePrice decimal.Decimal `json:"purchase_price" validate:"lte=1000000000000"`
	SalePrice     decimal.Decimal `json:"sale_price" validate:"lte=1000000000000"`
}

type AllocationUpdateRequest struct {
	QuantityStocked *int             `json:"quantity_stocked,omitempty" validate:"omitempty,gte=0"`
	PurchasePrice   *decimal.Decimal `json:"purchase_price,omitempty" validate:"omitempty,lte=1000000000000"`
	SalePrice       *decimal.Decimal `json:"sale_price,omitempty" validate:"omitempty,lte=1000000000000"`
}

type SaleCreateRequest struct {
	TripID       string  `json:"trip_id"`
	AllocationID string  `json:"allocation_id" validate:"required"`
	Quantity     int     `json:"quantity" validate:"gte=1"`
	Channel      Channel `json:"channel" validate:"required,oneof=cash transfer credit"`
	PersonRef    string  `json:"person_ref" validate:"max=120"`
	DueDate      string  `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Date         string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type SaleUpdateRequest struct {
	AllocationID *string  `json:"allocation_id,omitempty" validate:"omitempty,min=1"`
	Quantity     *int     `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	Channel      *Channel `json:"channel,omitempty" validate:"omitempty,oneof=cash transfer credit"`
	PersonRef    *string  `json:"person_ref,omitempty" validate:"omitempty,max=120"`
	DueDate      *string  `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type DebtCreateRequest struct {
	PersonRef    string `json:"person_ref" validate:"required,max=120"`
	AllocationID string `json:"allocation_id" validate:"required"`
	Quantity     int    `json:"quantity" validate:"gte=1"`
	DueDate      string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

type DebtUpdateRequest struct {
	PersonRef    *string `json:"person_ref,omitempty" validate:"omitempty,min=1,max=120"`
	Quantity     *int    `json:"quantity,omitempty" validate:"omitempty,gte=1"`
	DueDate      *string `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ClearDueDate bool    `json:"clear_due_date,omitempty"`
}

type PaymentCreateRequest struct {
	DebtID  string          `json:"debt_id"`
	Amount  decimal.Decimal `json:"amount" validate:"lte=1000000000000"`
	Channel Channel         `json:"channel" validate:"required,oneof=cash transfer card check other"`
	Date    string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type PaymentUpdateRequest struct {
	Amount  *decimal.Decimal `json:"amount,omitempty" validate:"omitempty,lte=1000000000000"`
	Channel *Channel         `json:"channel,omitempty" validate:"omitempty,oneof=cash transfer card check other"`
	Status  *PaymentStatus   `json:"status,omitempty" validate:"omitempty,oneof=confirmed cancelled"`
	Date    *string          `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type SettleDebtRequest struct {
	Channel Channel `json:"channel" validate:"omitempty,oneof=cash transfer card check other"`
	Date    string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type ManagerApproval struct {
	ManagerPIN string `json:"manager_pin" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type SellerCreateRequest struct {
	Username string `json:"username" validate:"required,min=4,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

// ParseDate parses a calendar day in loc and normalizes it to midnight UTC
// of the same day. Empty input yields the zero time.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout, value, loc)
	if err != nil {
		return time.Time{}, err
	}
	return DayOf(t, loc), nil
}

// DayOf returns midnight UTC of the calendar day t falls on in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
