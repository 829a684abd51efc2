// Package ledger keeps a trip's stock, debts, payments and totals consistent.
//
// Every operation takes a *domain.TripBook that the caller loaded inside one
// unit of work, validates before it mutates anything, applies the mutation
// and then propagates the changed input fields through the derived field
// graph. Callers commit the book only when the operation returns nil.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"tripledger/backend/internal/derive"
	"tripledger/backend/internal/domain"
)

// Input fields. They are written by operations, never by rules.
const (
	FieldAllocationStocked   = "allocation.quantityStocked"
	FieldAllocationPurchase  = "allocation.purchasePrice"
	FieldAllocationSalePrice = "allocation.salePrice"
	FieldSaleQuantity        = "sale.quantity"
	FieldSaleAllocation      = "sale.allocationId"
	FieldSaleChannel         = "sale.channel"
	FieldDebtQuantity        = "debt.quantity"
	FieldDebtDueDate         = "debt.dueDate"
	FieldDebtAmountPaid      = "debt.amountPaid"
	FieldPaymentAmount       = "payment.amount"
	FieldPaymentStatus       = "payment.status"
	FieldPaymentChannel      = "payment.channel"
	FieldPaymentDate         = "payment.date"
	FieldToday               = "clock.today"
)

// Derived fields.
const (
	FieldAllocationSold      = "allocation.quantitySold"
	FieldAllocationRemaining = "allocation.quantityRemaining"
	FieldAllocationCapital   = "allocation.capitalInvested"
	FieldAllocationPotential = "allocation.potentialProfit"
	FieldAllocationActual    = "allocation.actualProfit"

	FieldSaleUnitPrice  = "sale.unitPrice"
	FieldSaleTotal      = "sale.total"
	FieldSaleProfit     = "sale.profit"
	FieldSaleStatus     = "sale.status"
	FieldSaleSettlement = "sale.settlementChannel"

	FieldDebtTotal        = "debt.amountTotal"
	FieldDebtPending      = "debt.amountPending"
	FieldDebtState        = "debt.state"
	FieldDebtPaidDate     = "debt.paidDate"
	FieldDebtDaysUntilDue = "debt.daysUntilDue"

	FieldTripCapital          = "trip.capitalInvested"
	FieldTripCash             = "trip.cashTotal"
	FieldTripTransfer         = "trip.transferTotal"
	FieldTripOther            = "trip.otherTotal"
	FieldTripDebtOutstanding  = "trip.debtOutstanding"
	FieldTripTotalSold        = "trip.totalSold"
	FieldTripRealized         = "trip.realizedProfit"
	FieldTripPotential        = "trip.potentialProfit"
	FieldTripPercentReal      = "trip.profitPercentReal"
	FieldTripPercentPotential = "trip.profitPercentPotential"
)

var (
	saleInputs    = []string{FieldSaleQuantity, FieldSaleAllocation, FieldSaleChannel}
	debtInputs    = []string{FieldDebtQuantity, FieldDebtDueDate, FieldDebtAmountPaid}
	paymentInputs = []string{FieldPaymentAmount, FieldPaymentStatus, FieldPaymentChannel, FieldPaymentDate, FieldDebtAmountPaid}
	hundred       = decimal.NewFromInt(100)
)

// frame is what rules compute over: the book plus the calendar day used for
// due date comparisons.
type frame struct {
	book  *domain.TripBook
	today time.Time
}

type Engine struct {
	graph *derive.Graph[*frame]
	now   func() time.Time
	loc   *time.Location
}

type Option func(*Engine)

// WithClock overrides the wall clock used for "today" and timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the timezone that decides which calendar day it is.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// NewEngine builds the dependency graph. A cycle in the declarations is
// reported here as ErrDependencyCycle.
func NewEngine(opts ...Option) (*Engine, error) {
	return newEngine(rules(), opts...)
}

func newEngine(rs []derive.Rule[*frame], opts ...Option) (*Engine, error) {
	graph, err := derive.New(rs...)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		graph: graph,
		now:   time.Now,
		loc:   time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Today is the current calendar day as midnight UTC.
func (e *Engine) Today() time.Time {
	return domain.DayOf(e.now(), e.loc)
}

func (e *Engine) Now() time.Time {
	return e.now().UTC()
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// Fields lists the derived fields in the order they are recomputed.
func (e *Engine) Fields() []string {
	return e.graph.Order()
}

// Dependents lists the fields that read field directly.
func (e *Engine) Dependents(field string) []string {
	return e.graph.Dependents(field)
}

// Recompute re-derives every field of the book against today and returns the
// resulting totals. It writes nothing outside the book and is idempotent.
func (e *Engine) Recompute(b *domain.TripBook) domain.TripTotals {
	e.graph.RecomputeAll(e.frame(b))
	return b.Totals
}

func (e *Engine) propagate(b *domain.TripBook, changed ...string) []string {
	return e.graph.Propagate(e.frame(b), changed...)
}

func (e *Engine) frame(b *domain.TripBook) *frame {
	return &frame{book: b, today: e.Today()}
}

func rules() []derive.Rule[*frame] {
	return []derive.Rule[*frame]{
		{Field: FieldAllocationSold, DependsOn: []string{FieldSaleQuantity, FieldSaleAllocation, FieldDebtQuantity}, Compute: computeQuantitySold},
		{Field: FieldAllocationRemaining, DependsOn: []string{FieldAllocationStocked, FieldAllocationSold}, Compute: computeQuantityRemaining},
		{Field: FieldAllocationCapital, DependsOn: []string{FieldAllocationStocked, FieldAllocationPurchase}, Compute: computeAllocationCapital},
		{Field: FieldAllocationPotential, DependsOn: []string{FieldAllocationStocked, FieldAllocationPurchase, FieldAllocationSalePrice}, Compute: computeAllocationPotential},
		{Field: FieldAllocationActual, DependsOn: []string{FieldAllocationSold, FieldAllocationPurchase, FieldAllocationSalePrice}, Compute: computeAllocationActual},

		{Field: FieldSaleUnitPrice, DependsOn: []string{FieldAllocationSalePrice, FieldSaleAllocation}, Compute: computeSaleUnitPrice},
		{Field: FieldSaleTotal, DependsOn: []string{FieldSaleQuantity, FieldSaleUnitPrice}, Compute: computeSaleTotal},
		{Field: FieldSaleProfit, DependsOn: []string{FieldSaleQuantity, FieldSaleUnitPrice, FieldAllocationPurchase}, Compute: computeSaleProfit},
		{Field: FieldSaleStatus, DependsOn: []string{FieldSaleChannel, FieldDebtState}, Compute: computeSaleStatus},
		{Field: FieldSaleSettlement, DependsOn: []string{FieldDebtState, FieldPaymentChannel, FieldPaymentStatus, FieldPaymentDate}, Compute: computeSaleSettlement},

		{Field: FieldDebtTotal, DependsOn: []string{FieldDebtQuantity, FieldSaleAllocation, FieldAllocationSalePrice}, Compute: computeDebtTotal},
		{Field: FieldDebtPending, DependsOn: []string{FieldDebtTotal, FieldDebtAmountPaid}, Compute: computeDebtPending},
		{Field: FieldDebtState, DependsOn: []string{FieldDebtPending, FieldDebtTotal, FieldDebtDueDate, FieldToday}, Compute: computeDebtState},
		{Field: FieldDebtPaidDate, DependsOn: []string{FieldDebtState, FieldPaymentDate, FieldPaymentStatus}, Compute: computeDebtPaidDate},
		{Field: FieldDebtDaysUntilDue, DependsOn: []string{FieldDebtDueDate, FieldToday}, Compute: computeDebtDaysUntilDue},

		{Field: FieldTripCapital, DependsOn: []string{FieldAllocationCapital}, Compute: computeTripCapital},
		{Field: FieldTripCash, DependsOn: []string{FieldSaleTotal, FieldSaleChannel, FieldPaymentAmount, FieldPaymentStatus, FieldPaymentChannel}, Compute: computeTripCash},
		{Field: FieldTripTransfer, DependsOn: []string{FieldSaleTotal, FieldSaleChannel, FieldPaymentAmount, FieldPaymentStatus, FieldPaymentChannel}, Compute: computeTripTransfer},
		{Field: FieldTripOther, DependsOn: []string{FieldPaymentAmount, FieldPaymentStatus, FieldPaymentChannel}, Compute: computeTripOther},
		{Field: FieldTripDebtOutstanding, DependsOn: []string{FieldDebtPending, FieldDebtState}, Compute: computeTripDebtOutstanding},
		{Field: FieldTripTotalSold, DependsOn: []string{FieldTripCash, FieldTripTransfer, FieldTripOther, FieldTripDebtOutstanding}, Compute: computeTripTotalSold},
		{Field: FieldTripRealized, DependsOn: []string{FieldAllocationActual}, Compute: computeTripRealized},
		{Field: FieldTripPotential, DependsOn: []string{FieldTripTotalSold, FieldTripCapital}, Compute: computeTripPotential},
		{Field: FieldTripPercentReal, DependsOn: []string{FieldTripRealized, FieldTripCapital}, Compute: computeTripPercentReal},
		{Field: FieldTripPercentPotential, DependsOn: []string{FieldTripPotential, FieldTripCapital}, Compute: computeTripPercentPotential},
	}
}
