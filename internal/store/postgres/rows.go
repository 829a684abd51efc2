package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"tripledger/backend/internal/domain"
)

type tripRow struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Name      string    `gorm:"size:160;not null"`
	Date      time.Time `gorm:"type:date;not null;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	CapitalInvested        decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	CashTotal              decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	TransferTotal          decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	OtherTotal             decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	DebtOutstanding        decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	TotalSold              decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	RealizedProfit         decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	PotentialProfit        decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	ProfitPercentReal      decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	ProfitPercentPotential decimal.Decimal `gorm:"type:numeric;not null;default:0"`
}

func (tripRow) TableName() string { return "trips" }

func tripRowFrom(b *domain.TripBook) tripRow {
	t := b.Totals
	return tripRow{
		ID:                     b.Trip.ID,
		Name:                   b.Trip.Name,
		Date:                   b.Trip.Date,
		CreatedAt:              b.Trip.CreatedAt,
		UpdatedAt:              b.Trip.UpdatedAt,
		CapitalInvested:        t.CapitalInvested,
		CashTotal:              t.CashTotal,
		TransferTotal:          t.TransferTotal,
		OtherTotal:             t.OtherTotal,
		DebtOutstanding:        t.DebtOutstanding,
		TotalSold:              t.TotalSold,
		RealizedProfit:         t.RealizedProfit,
		PotentialProfit:        t.PotentialProfit,
		ProfitPercentReal:      t.ProfitPercentReal,
		ProfitPercentPotential: t.ProfitPercentPotential,
	}
}

func (r tripRow) toBook() *domain.TripBook {
	b := domain.NewTripBook(domain.Trip{
		ID:        r.ID,
		Name:      r.Name,
		Date:      r.Date.UTC(),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	})
	b.Totals = domain.TripTotals{
		CapitalInvested:        r.CapitalInvested,
		CashTotal:              r.CashTotal,
		TransferTotal:          r.TransferTotal,
		OtherTotal:             r.OtherTotal,
		DebtOutstanding:        r.DebtOutstanding,
		TotalSold:              r.TotalSold,
		RealizedProfit:         r.RealizedProfit,
		PotentialProfit:        r.PotentialProfit,
		ProfitPercentReal:      r.ProfitPercentReal,
		ProfitPercentPotential: r.ProfitPercentPotential,
	}
	return b
}

type allocationRow struct {
	ID                string          `gorm:"primaryKey;size:64"`
	TripID            string          `gorm:"size:64;not null;index"`
	ProductRef        string          `gorm:"size:160;not null;index"`
	QuantityStocked   int             `gorm:"not null"`
	PurchasePrice     decimal.Decimal `gorm:"type:numeric;not null"`
	SalePrice         decimal.Decimal `gorm:"type:numeric;not null"`
	CreatedAt         time.Time       `gorm:"not null"`
	QuantitySold      int             `gorm:"not null;default:0"`
	QuantityRemaining int             `gorm:"not null;default:0"`
	CapitalInvested   decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	PotentialProfit   decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	ActualProfit      decimal.Decimal `gorm:"type:numeric;not null;default:0"`
}

func (allocationRow) TableName() string { return "product_allocations" }

func allocationRowFrom(a domain.ProductAllocation) allocationRow {
	return allocationRow{
		ID:                a.ID,
		TripID:            a.TripID,
		ProductRef:        a.ProductRef,
		QuantityStocked:   a.QuantityStocked,
		PurchasePrice:     a.PurchasePrice,
		SalePrice:         a.SalePrice,
		CreatedAt:         a.CreatedAt,
		QuantitySold:      a.QuantitySold,
		QuantityRemaining: a.QuantityRemaining,
		CapitalInvested:   a.CapitalInvested,
		PotentialProfit:   a.PotentialProfit,
		ActualProfit:      a.ActualProfit,
	}
}

func (r allocationRow) toDomain() domain.ProductAllocation {
	return domain.ProductAllocation{
		ID:                r.ID,
		TripID:            r.TripID,
		ProductRef:        r.ProductRef,
		QuantityStocked:   r.QuantityStocked,
		PurchasePrice:     r.PurchasePrice,
		SalePrice:         r.SalePrice,
		CreatedAt:         r.CreatedAt.UTC(),
		QuantitySold:      r.QuantitySold,
		QuantityRemaining: r.QuantityRemaining,
		CapitalInvested:   r.CapitalInvested,
		PotentialProfit:   r.PotentialProfit,
		ActualProfit:      r.ActualProfit,
	}
}

type saleRow struct {
	ID                string          `gorm:"primaryKey;size:64"`
	TripID            string          `gorm:"size:64;not null;index"`
	AllocationID      string          `gorm:"size:64;not null;index"`
	Quantity          int             `gorm:"not null"`
	Channel           string          `gorm:"size:16;not null"`
	PersonRef         string          `gorm:"size:160"`
	DebtID            string          `gorm:"size:64"`
	FromDebt          bool            `gorm:"not null;default:false"`
	Date              time.Time       `gorm:"type:date;not null"`
	CreatedAt         time.Time       `gorm:"not null"`
	UnitPrice         decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	Total             decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	Profit            decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	Status            string          `gorm:"size:16;not null"`
	SettlementChannel string          `gorm:"size:16"`
}

func (saleRow) TableName() string { return "sales" }

func saleRowFrom(s domain.Sale) saleRow {
	return saleRow{
		ID:                s.ID,
		TripID:            s.TripID,
		AllocationID:      s.AllocationID,
		Quantity:          s.Quantity,
		Channel:           string(s.Channel),
		PersonRef:         s.PersonRef,
		DebtID:            s.DebtID,
		FromDebt:          s.FromDebt,
		Date:              s.Date,
		CreatedAt:         s.CreatedAt,
		UnitPrice:         s.UnitPrice,
		Total:             s.Total,
		Profit:            s.Profit,
		Status:            string(s.Status),
		SettlementChannel: string(s.SettlementChannel),
	}
}

func (r saleRow) toDomain() domain.Sale {
	return domain.Sale{
		ID:                r.ID,
		TripID:            r.TripID,
		AllocationID:      r.AllocationID,
		Quantity:          r.Quantity,
		Channel:           domain.Channel(r.Channel),
		PersonRef:         r.PersonRef,
		DebtID:            r.DebtID,
		FromDebt:          r.FromDebt,
		Date:              r.Date.UTC(),
		CreatedAt:         r.CreatedAt.UTC(),
		UnitPrice:         r.UnitPrice,
		Total:             r.Total,
		Profit:            r.Profit,
		Status:            domain.SaleStatus(r.Status),
		SettlementChannel: domain.Channel(r.SettlementChannel),
	}
}

type debtRow struct {
	ID            string          `gorm:"primaryKey;size:64"`
	TripID        string          `gorm:"size:64;not null;index"`
	AllocationID  string          `gorm:"size:64;not null;index"`
	SaleID        string          `gorm:"size:64;index"`
	PersonRef     string          `gorm:"size:160;not null;index"`
	Quantity      int             `gorm:"not null"`
	DueDate       *time.Time      `gorm:"type:date"`
	CreatedAt     time.Time       `gorm:"not null"`
	AmountTotal   decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	AmountPaid    decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	AmountPending decimal.Decimal `gorm:"type:numeric;not null;default:0"`
	State         string          `gorm:"size:16;not null"`
	PaidDate      *time.Time      `gorm:"type:date"`
}

func (debtRow) TableName() string { return "debts" }

func debtRowFrom(d domain.Debt) debtRow {
	return debtRow{
		ID:            d.ID,
		TripID:        d.TripID,
		AllocationID:  d.AllocationID,
		SaleID:        d.SaleID,
		PersonRef:     d.PersonRef,
		Quantity:      d.Quantity,
		DueDate:       d.DueDate,
		CreatedAt:     d.CreatedAt,
		AmountTotal:   d.AmountTotal,
		AmountPaid:    d.AmountPaid,
		AmountPending: d.AmountPending,
		State:         string(d.State),
		PaidDate:      d.PaidDate,
	}
}

func (r debtRow) toDomain() domain.Debt {
	return domain.Debt{
		ID:            r.ID,
		TripID:        r.TripID,
		AllocationID:  r.AllocationID,
		SaleID:        r.SaleID,
		PersonRef:     r.PersonRef,
		Quantity:      r.Quantity,
		DueDate:       utcDate(r.DueDate),
		CreatedAt:     r.CreatedAt.UTC(),
		AmountTotal:   r.AmountTotal,
		AmountPaid:    r.AmountPaid,
		AmountPending: r.AmountPending,
		State:         domain.DebtState(r.State),
		PaidDate:      utcDate(r.PaidDate),
	}
}

type paymentRow struct {
	ID        string          `gorm:"primaryKey;size:64"`
	TripID    string          `gorm:"size:64;not null;index"`
	DebtID    string          `gorm:"size:64;not null;index"`
	Amount    decimal.Decimal `gorm:"type:numeric;not null"`
	Date      time.Time       `gorm:"type:date;not null"`
	Channel   string          `gorm:"size:16;not null"`
	Status    string          `gorm:"size:16;not null"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

func (paymentRow) TableName() string { return "payments" }

func paymentRowFrom(p domain.Payment) paymentRow {
	return paymentRow{
		ID:        p.ID,
		TripID:    p.TripID,
		DebtID:    p.DebtID,
		Amount:    p.Amount,
		Date:      p.Date,
		Channel:   string(p.Channel),
		Status:    string(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (r paymentRow) toDomain() domain.Payment {
	return domain.Payment{
		ID:        r.ID,
		TripID:    r.TripID,
		DebtID:    r.DebtID,
		Amount:    r.Amount,
		Date:      r.Date.UTC(),
		Channel:   domain.Channel(r.Channel),
		Status:    domain.PaymentStatus(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type userRow struct {
	Username  string    `gorm:"primaryKey;size:64"`
	Password  string    `gorm:"not null"`
	Role      string    `gorm:"size:16;not null"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "app_users" }

func utcDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := t.UTC()
	return &d
}
