package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Channel string

const (
	ChannelCash     Channel = "cash"
	ChannelTransfer Channel = "transfer"
	ChannelCredit   Channel = "credit"
	ChannelCard     Channel = "card"
	ChannelCheck    Channel = "check"
	ChannelOther    Channel = "other"
)

// ValidForSale reports whether a sale may be taken through c.
func (c Channel) ValidForSale() bool {
	return c == ChannelCash || c == ChannelTransfer || c == ChannelCredit
}

// ValidForPayment reports whether a debt payment may be made through c.
func (c Channel) ValidForPayment() bool {
	switch c {
	case ChannelCash, ChannelTransfer, ChannelCard, ChannelCheck, ChannelOther:
		return true
	}
	return false
}

type SaleStatus string

const (
	SaleDraft   SaleStatus = "draft"
	SaleDebt    SaleStatus = "debt"
	SalePartial SaleStatus = "partial"
	SalePaid    SaleStatus = "paid"
)

type DebtState string

const (
	DebtPending DebtState = "pending"
	DebtPartial DebtState = "partial"
	DebtPaid    DebtState = "paid"
	DebtOverdue DebtState = "overdue"
)

type PaymentStatus string

const (
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentCancelled PaymentStatus = "cancelled"
)

type EntityKind string

const (
	KindTrip       EntityKind = "trip"
	KindAllocation EntityKind = "allocation"
	KindSale       EntityKind = "sale"
	KindDebt       EntityKind = "debt"
	KindPayment    EntityKind = "payment"
)

type Trip struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ProductAllocation struct {
	ID              string          `json:"id"`
	TripID          string          `json:"trip_id"`
	ProductRef      string          `json:"product_ref"`
	QuantityStocked int             `json:"quantity_stocked"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	SalePrice       decimal.Decimal `json:"sale_price"`
	CreatedAt       time.Time       `json:"created_at"`

	QuantitySold      int             `json:"quantity_sold"`
	QuantityRemaining int             `json:"quantity_remaining"`
	CapitalInvested   decimal.Decimal `json:"capital_invested"`
	PotentialProfit   decimal.Decimal `json:"potential_profit"`
	ActualProfit      decimal.Decimal `json:"actual_profit"`
}

type Sale struct {
	ID           string    `json:"id"`
	TripID       string    `json:"trip_id"`
	AllocationID string    `json:"allocation_id"`
	Quantity     int       `json:"quantity"`
	Channel      Channel   `json:"channel"`
	PersonRef    string    `json:"person_ref,omitempty"`
	DebtID       string    `json:"debt_id,omitempty"`
	FromDebt     bool      `json:"from_debt"`
	Date         time.Time `json:"date"`
	CreatedAt    time.Time `json:"created_at"`

	UnitPrice         decimal.Decimal `json:"unit_price"`
	Total             decimal.Decimal `json:"total"`
	Profit            decimal.Decimal `json:"profit"`
	Status            SaleStatus      `json:"status"`
	SettlementChannel Channel         `json:"settlement_channel,omitempty"`
}

type Debt struct {
	ID           string     `json:"id"`
	TripID       string     `json:"trip_id"`
	AllocationID string     `json:"allocation_id"`
	SaleID       string     `json:"sale_id"`
	PersonRef    string     `json:"person_ref"`
	Quantity     int        `json:"quantity"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`

	AmountTotal   decimal.Decimal `json:"amount_total"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	AmountPending decimal.Decimal `json:"amount_pending"`
	State         DebtState       `json:"state"`
	PaidDate      *time.Time      `json:"paid_date,omitempty"`
	DaysUntilDue  int             `json:"days_until_due"`
}

type Payment struct {
	ID        string          `json:"id"`
	TripID    string          `json:"trip_id"`
	DebtID    string          `json:"debt_id"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	Channel   Channel         `json:"channel"`
	Status    PaymentStatus   `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type TripTotals struct {
	CapitalInvested        decimal.Decimal `json:"capital_invested"`
	CashTotal              decimal.Decimal `json:"cash_total"`
	TransferTotal          decimal.Decimal `json:"transfer_total"`
	OtherTotal             decimal.Decimal `json:"other_total"`
	DebtOutstanding        decimal.Decimal `json:"debt_outstanding"`
	TotalSold              decimal.Decimal `json:"total_sold"`
	RealizedProfit         decimal.Decimal `json:"realized_profit"`
	PotentialProfit        decimal.Decimal `json:"potential_profit"`
	ProfitPercentReal      decimal.Decimal `json:"profit_percent_real"`
	ProfitPercentPotential decimal.Decimal `json:"profit_percent_potential"`
}

type TripSummary struct {
	Trip            Trip       `json:"trip"`
	Totals          TripTotals `json:"totals"`
	AllocationCount int        `json:"allocation_count"`
	SaleCount       int        `json:"sale_count"`
	OpenDebtCount   int        `json:"open_debt_count"`
}

type MonthlyPoint struct {
	Month          string          `json:"month"`
	Label          string          `json:"label"`
	RealizedProfit decimal.Decimal `json:"realized_profit"`
	TotalSold      decimal.Decimal `json:"total_sold"`
}

type Dashboard struct {
	TotalTrips          int             `json:"total_trips"`
	TotalInvested       decimal.Decimal `json:"total_invested"`
	TotalSales          decimal.Decimal `json:"total_sales"`
	TotalRealizedProfit decimal.Decimal `json:"total_realized_profit"`
	TotalDebt           decimal.Decimal `json:"total_debt"`
	AverageROI          decimal.Decimal `json:"average_roi"`
	Months              []MonthlyPoint  `json:"months"`
	ProfitableTrips     int             `json:"profitable_trips"`
	LossTrips           int             `json:"loss_trips"`
	GeneratedAt         time.Time       `json:"generated_at"`
}

type PersonBalance struct {
	PersonRef      string          `json:"person_ref"`
	PendingDebt    decimal.Decimal `json:"pending_debt"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	OpenDebts      int             `json:"open_debts"`
}

type ProductSummary struct {
	ProductRef      string `json:"product_ref"`
	QuantityStocked int    `json:"quantity_stocked"`
	QuantitySold    int    `json:"quantity_sold"`
	SaleCount       int    `json:"sale_count"`
	PendingDebts    int    `json:"pending_debts"`
}

const (
	RoleOwner  = "owner"
	RoleSeller = "seller"
)

type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"-"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}
